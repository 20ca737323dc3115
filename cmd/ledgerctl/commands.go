package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/jobs"
)

var (
	summaryAsJSON bool
	summaryLabel  string
	statementXLSX string
	strictMode    bool
	jobsRedisAddr string
	cleanupMaxAge time.Duration
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <file|->",
	Short: "Print buyer totals and the invoice SMS text",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummarize,
}

var statementCmd = &cobra.Command{
	Use:   "statement <file|->",
	Short: "Print a running-balance statement, optionally as XLSX",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatement,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage background jobs",
}

var jobsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Enqueue an idempotency key cleanup",
	Args:  cobra.NoArgs,
	RunE:  runJobsCleanup,
}

func init() {
	summarizeCmd.Flags().BoolVar(&summaryAsJSON, "json", false, "emit totals as JSON")
	summarizeCmd.Flags().StringVar(&summaryLabel, "range", "", "date range label used in the SMS text")
	summarizeCmd.Flags().BoolVar(&strictMode, "strict", false, "reject malformed transactions")
	statementCmd.Flags().StringVarP(&statementXLSX, "xlsx", "o", "", "write the statement to this XLSX file")
	statementCmd.Flags().BoolVar(&strictMode, "strict", false, "reject malformed transactions")

	jobsCleanupCmd.Flags().StringVar(&jobsRedisAddr, "redis", envOr("REDIS_ADDR", "127.0.0.1:6379"), "redis address")
	jobsCleanupCmd.Flags().DurationVar(&cleanupMaxAge, "older-than", 72*time.Hour, "retention window")
	jobsCmd.AddCommand(jobsCleanupCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	file, err := readLedgerFile(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strictMode {
		if err := ledger.ValidateAll(file.Transactions); err != nil {
			return err
		}
	}
	totals, err := ledger.AggregateBuyerTotals(file.Transactions)
	if err != nil {
		return err
	}
	label := summaryLabel
	if label == "" {
		label = file.RangeLabel
	}
	if label == "" {
		label = ledger.DateRange{}.Label()
	}
	summary := ledger.BuildInvoiceSummaryWithHeader(ledger.SummaryHeader{
		BusinessName: file.BusinessName,
		BuyerName:    file.Buyer.Name,
	}, label, file.Transactions, totals)

	out := cmd.OutOrStdout()
	if summaryAsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"totals": totals, "summary": summary})
	}
	_, err = fmt.Fprintln(out, summary)
	return err
}

func runStatement(cmd *cobra.Command, args []string) error {
	file, err := readLedgerFile(args[0], cmd.InOrStdin())
	if err != nil {
		return err
	}
	if strictMode {
		if err := ledger.ValidateAll(file.Transactions); err != nil {
			return err
		}
	}
	stmt, err := ledger.BuildStatement(file.Buyer, ledger.DateRange{}, file.Transactions)
	if err != nil {
		return err
	}
	if file.RangeLabel != "" {
		stmt.RangeLabel = file.RangeLabel
	}
	if statementXLSX != "" {
		f, err := os.Create(statementXLSX)
		if err != nil {
			return err
		}
		if err := ledger.WriteStatementXLSX(f, stmt); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}

	out := cmd.OutOrStdout()
	for _, row := range stmt.Rows {
		fmt.Fprintf(out, "%s  %-18s %12s %12s %12s\n",
			row.Transaction.CreatedAt.Format("2006-01-02"),
			row.Transaction.Type.Label(),
			row.Contribution.Sale.StringFixed(2),
			row.Contribution.Received.StringFixed(2),
			row.RunningBalance.StringFixed(2),
		)
	}
	fmt.Fprintln(out, ledger.BalanceLine(stmt.Totals.FinalAmountDue))
	return nil
}

func runJobsCleanup(cmd *cobra.Command, _ []string) error {
	if jobsRedisAddr == "" {
		return errors.New("redis address required")
	}
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: jobsRedisAddr})
	defer client.Close()
	task, err := jobs.NewIdempotencyCleanupTask(cleanupMaxAge)
	if err != nil {
		return err
	}
	info, err := client.EnqueueContext(cmd.Context(), task, asynq.MaxRetry(3))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s) on %s\n", info.Type, info.ID, info.Queue)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
