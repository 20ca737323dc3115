package ledger

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const statementSheet = "Statement"

var statementColumns = []string{"Date", "Type", "Direction", "Lines", "Notes", "Sale", "Received", "Balance"}

// WriteStatementXLSX renders a statement workbook to w.
func WriteStatementXLSX(w io.Writer, stmt Statement) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return fmt.Errorf("ledger: xlsx sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("ledger: xlsx style: %w", err)
	}

	meta := [][]any{
		{"Buyer", stmt.Buyer.Name},
		{"Period", stmt.RangeLabel},
	}
	for i, row := range meta {
		if err := f.SetSheetRow(statementSheet, cell(1, i+1), &row); err != nil {
			return err
		}
	}

	headerRow := len(meta) + 2
	header := make([]any, len(statementColumns))
	for i, c := range statementColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(statementSheet, cell(1, headerRow), &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(statementSheet, cell(1, headerRow), cell(len(statementColumns), headerRow), bold); err != nil {
		return err
	}

	r := headerRow + 1
	for _, row := range stmt.Rows {
		t := row.Transaction
		values := []any{
			t.CreatedAt.Format("2006-01-02 15:04"),
			t.Type.Label(),
			string(t.PaymentDirection),
			describeLines(row.Lines),
			t.Notes,
			money(row.Contribution.Sale),
			money(row.Contribution.Received),
			money(row.RunningBalance),
		}
		if err := f.SetSheetRow(statementSheet, cell(1, r), &values); err != nil {
			return err
		}
		r++
	}

	r++
	summary := [][]any{
		{"Total sales", money(stmt.Totals.TotalSaleAmount)},
		{"Payments received", money(stmt.Totals.TotalPaymentReceived)},
		{"Total shipping", money(stmt.Totals.TotalShipping)},
		{"Amount due", money(stmt.Totals.FinalAmountDue)},
	}
	for _, row := range summary {
		if err := f.SetSheetRow(statementSheet, cell(5, r), &row); err != nil {
			return err
		}
		if err := f.SetCellStyle(statementSheet, cell(5, r), cell(5, r), bold); err != nil {
			return err
		}
		r++
	}

	if err := f.SetColWidth(statementSheet, "A", "A", 18); err != nil {
		return err
	}
	if err := f.SetColWidth(statementSheet, "D", "E", 40); err != nil {
		return err
	}
	return f.Write(w)
}

func cell(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "A1"
	}
	return name
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func describeLines(lines []LineTotal) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		name := l.ProductName
		if name == "" {
			name = l.ProductID
		}
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("%s x%s %s", name, l.EffectiveQty.String(), l.Unit)))
	}
	return strings.Join(parts, "; ")
}
