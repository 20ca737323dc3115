package ledger

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInvoiceSummary(t *testing.T) {
	txns := []Transaction{
		saleTxn("s1", "100", 0),
		paymentTxn("p1", "40", DirectionReceived, 1),
	}
	totals, err := AggregateBuyerTotals(txns)
	require.NoError(t, err)

	body := BuildInvoiceSummary("01 Mar 2024 to 31 Mar 2024", txns, totals)
	lines := strings.Split(body, "\n")
	assert.Equal(t, []string{
		"Account statement",
		"Period: 01 Mar 2024 to 31 Mar 2024",
		"Transactions: 2",
		"Total sales: 100.00",
		"Payments received: 40.00",
		"Amount due: 60.00",
	}, lines)
}

func TestBuildInvoiceSummaryWithHeader(t *testing.T) {
	totals, err := AggregateBuyerTotals(nil)
	require.NoError(t, err)
	body := BuildInvoiceSummaryWithHeader(SummaryHeader{BusinessName: "Corner\nShop", BuyerName: " Dana "}, "All time", nil, totals)
	assert.True(t, strings.HasPrefix(body, "Corner Shop - Account statement\nBuyer: Dana\n"))
	assert.True(t, strings.HasSuffix(body, "Paid in full"))
}

func TestBuildInvoiceSummaryRespectsSMSLimit(t *testing.T) {
	long := strings.Repeat("ü", 5000)
	body := BuildInvoiceSummaryWithHeader(SummaryHeader{BusinessName: long, BuyerName: long}, long, nil, Totals{})
	assert.LessOrEqual(t, utf8.RuneCountInString(body), MaxSMSLength)
	assert.True(t, utf8.ValidString(body))
}

func TestBalanceLine(t *testing.T) {
	assert.Equal(t, "Amount due: 12.35", BalanceLine(dec("12.345")))
	assert.Equal(t, "Credit: 7.50", BalanceLine(dec("-7.5")))
	assert.Equal(t, "Paid in full", BalanceLine(dec("0.001")))
}

func TestFormatAmount(t *testing.T) {
	cases := map[string]string{
		"0":                       "0.00",
		"0.355":                   "0.36",
		"1234.5":                  "1,234.50",
		"-0.5":                    "-0.50",
		"-1234567.891":            "-1,234,567.89",
		"9007199254740993.01":     "9,007,199,254,740,993.01",
		"123456789012345678901.1": "123456789012345678901.10",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatAmount(dec(in)), in)
	}
}

func TestNewInvoicePayload(t *testing.T) {
	totals := Totals{
		TotalSaleAmount:  dec("100.456"),
		FinalAmountDue:   dec("60.004"),
		TransactionCount: 3,
	}
	p := NewInvoicePayload(Buyer{ID: "b1"}, "+628123", "All time", "hello", totals)
	assert.Equal(t, "b1", p.BuyerID)
	assert.InDelta(t, 100.46, p.TotalAmount, 1e-9)
	assert.InDelta(t, 60.0, p.AmountDue, 1e-9)
	assert.Equal(t, 3, p.TransactionCount)
	assert.Equal(t, "All time", p.DateRange)

	back := TotalsFromPayload(p)
	requireDecimal(t, "100.46", back.TotalSaleAmount)
	requireDecimal(t, "60", back.FinalAmountDue)
}
