package ledger

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MaxSMSLength is the payload ceiling accepted by the SMS gateway.
const MaxSMSLength = 1600

const maxHeaderRunes = 80

var amountPrinter = message.NewPrinter(language.English)

// SummaryHeader carries the optional free-text lines of an invoice summary.
type SummaryHeader struct {
	BusinessName string
	BuyerName    string
}

// InvoicePayload is submitted to the backoffice SMS notification endpoint.
type InvoicePayload struct {
	BuyerID          string  `json:"buyer_id"`
	Phone            string  `json:"phone"`
	Message          string  `json:"message"`
	TotalAmount      float64 `json:"total_amount"`
	AmountDue        float64 `json:"amount_due"`
	TransactionCount int     `json:"transaction_count"`
	DateRange        string  `json:"date_range"`
}

// BuildInvoiceSummary renders the plain-text SMS summary for a period.
func BuildInvoiceSummary(rangeLabel string, txns []Transaction, totals Totals) string {
	return BuildInvoiceSummaryWithHeader(SummaryHeader{}, rangeLabel, txns, totals)
}

// BuildInvoiceSummaryWithHeader is BuildInvoiceSummary with business and buyer lines.
func BuildInvoiceSummaryWithHeader(header SummaryHeader, rangeLabel string, txns []Transaction, totals Totals) string {
	var b strings.Builder
	if name := clip(header.BusinessName); name != "" {
		b.WriteString(name)
		b.WriteString(" - Account statement\n")
	} else {
		b.WriteString("Account statement\n")
	}
	if name := clip(header.BuyerName); name != "" {
		b.WriteString("Buyer: ")
		b.WriteString(name)
		b.WriteByte('\n')
	}
	b.WriteString("Period: ")
	b.WriteString(clip(rangeLabel))
	b.WriteByte('\n')
	b.WriteString("Transactions: ")
	b.WriteString(strconv.Itoa(len(txns)))
	b.WriteByte('\n')
	b.WriteString("Total sales: ")
	b.WriteString(FormatAmount(totals.TotalSaleAmount))
	b.WriteByte('\n')
	b.WriteString("Payments received: ")
	b.WriteString(FormatAmount(totals.TotalPaymentReceived))
	b.WriteByte('\n')
	b.WriteString(BalanceLine(totals.FinalAmountDue))
	return truncateRunes(b.String(), MaxSMSLength)
}

// BalanceLine describes the final amount as due, credit or paid.
func BalanceLine(due decimal.Decimal) string {
	rounded := due.Round(2)
	switch {
	case rounded.IsPositive():
		return "Amount due: " + FormatAmount(rounded)
	case rounded.IsNegative():
		return "Credit: " + FormatAmount(rounded.Abs())
	default:
		return "Paid in full"
	}
}

// maxGroupedWhole is the largest whole part grouped through an int64.
var maxGroupedWhole = decimal.New(1, 18)

// FormatAmount renders a currency amount with two decimals and digit grouping.
// The whole and fractional parts are taken from the decimal directly, so no
// precision is lost. Whole parts of 10^18 or more are printed ungrouped.
func FormatAmount(d decimal.Decimal) string {
	rounded := d.Round(2)
	abs := rounded.Abs()
	whole := abs.Truncate(0)
	fraction := abs.Sub(whole).StringFixed(2)[1:]

	var digits string
	if whole.LessThan(maxGroupedWhole) {
		digits = amountPrinter.Sprintf("%d", whole.IntPart())
	} else {
		digits = whole.String()
	}
	if rounded.IsNegative() {
		return "-" + digits + fraction
	}
	return digits + fraction
}

// NewInvoicePayload assembles the notification request for a statement.
func NewInvoicePayload(buyer Buyer, phone, rangeLabel, body string, totals Totals) InvoicePayload {
	return InvoicePayload{
		BuyerID:          buyer.ID,
		Phone:            phone,
		Message:          body,
		TotalAmount:      totals.TotalSaleAmount.Round(2).InexactFloat64(),
		AmountDue:        totals.FinalAmountDue.Round(2).InexactFloat64(),
		TransactionCount: totals.TransactionCount,
		DateRange:        rangeLabel,
	}
}

func clip(s string) string {
	return truncateRunes(strings.TrimSpace(strings.ReplaceAll(s, "\n", " ")), maxHeaderRunes)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
