package ledger

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateSingleSale(t *testing.T) {
	totals, err := AggregateBuyerTotals([]Transaction{saleTxn("s1", "100", 0)})
	require.NoError(t, err)
	requireDecimal(t, "100", totals.TotalSaleAmount)
	requireDecimal(t, "0", totals.TotalPaymentReceived)
	requireDecimal(t, "100", totals.FinalAmountDue)
	assert.Equal(t, 1, totals.TransactionCount)
}

func TestAggregateSaleAndPaymentReceived(t *testing.T) {
	totals, err := AggregateBuyerTotals([]Transaction{
		saleTxn("s1", "100", 0),
		paymentTxn("p1", "40", DirectionReceived, 1),
	})
	require.NoError(t, err)
	requireDecimal(t, "60", totals.FinalAmountDue)
	requireDecimal(t, "40", totals.TotalPaymentReceived)
}

func TestAggregateReturnIncludesShipping(t *testing.T) {
	ret := Transaction{
		ID:    "r1",
		Type:  KindReturn,
		Items: []Item{{Qty: dec("2"), Price: dec("10"), Shipping: dec("1")}},
	}
	totals, err := AggregateBuyerTotals([]Transaction{ret})
	require.NoError(t, err)
	requireDecimal(t, "22", totals.TotalPaymentReceived)
	requireDecimal(t, "0", totals.TotalSaleAmount)
	requireDecimal(t, "-22", totals.FinalAmountDue)
}

func TestAggregateEmpty(t *testing.T) {
	totals, err := AggregateBuyerTotals(nil)
	require.NoError(t, err)
	requireDecimal(t, "0", totals.TotalSaleAmount)
	requireDecimal(t, "0", totals.TotalPaymentReceived)
	requireDecimal(t, "0", totals.TotalShipping)
	requireDecimal(t, "0", totals.FinalAmountDue)
	assert.Zero(t, totals.TransactionCount)
}

func TestAggregatePaymentGivenAddsToSales(t *testing.T) {
	totals, err := AggregateBuyerTotals([]Transaction{paymentTxn("p1", "25", DirectionGiven, 0)})
	require.NoError(t, err)
	requireDecimal(t, "25", totals.TotalSaleAmount)
	requireDecimal(t, "25", totals.FinalAmountDue)
}

func TestAggregateRejectsPaymentWithoutDirection(t *testing.T) {
	_, err := AggregateBuyerTotals([]Transaction{paymentTxn("p1", "25", "", 0)})
	require.ErrorIs(t, err, ErrMissingDirection)
}

func TestAggregateRejectsUnknownKind(t *testing.T) {
	_, err := AggregateBuyerTotals([]Transaction{{ID: "x", Type: Kind("refund")}})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestAggregateInventoryAddition(t *testing.T) {
	txn := Transaction{
		ID:   "i1",
		Type: KindInventoryAddition,
		Items: []Item{
			{Qty: dec("3"), Price: dec("4"), Shipping: dec("0.5")},
			{Qty: dec("1"), Price: dec("10"), SalePrice: decimal.NewNullDecimal(dec("12"))},
		},
	}
	totals, err := AggregateBuyerTotals([]Transaction{txn})
	require.NoError(t, err)
	// (4+0.5)*3 + 12*1
	requireDecimal(t, "25.5", totals.TotalPaymentReceived)
}

func TestAggregateSamples(t *testing.T) {
	received := Transaction{
		ID:    "sr1",
		Type:  KindSampleReceived,
		Price: dec("5"),
		Sample: &SampleSession{Products: []Item{
			{Qty: dec("2"), Price: dec("10"), Shipping: dec("1"), SalePrice: decimal.NewNullDecimal(dec("50"))},
		}},
	}
	returned := Transaction{
		ID:     "sx1",
		Type:   KindSampleReturned,
		Price:  dec("99"),
		Sample: &SampleSession{Products: []Item{{Qty: dec("1"), Price: dec("10")}}},
	}
	totals, err := AggregateBuyerTotals([]Transaction{received, returned})
	require.NoError(t, err)
	requireDecimal(t, "22", totals.TotalSaleAmount)
	requireDecimal(t, "5", totals.TotalPaymentReceived)
	requireDecimal(t, "17", totals.FinalAmountDue)
	assert.Equal(t, 2, totals.TransactionCount)
}

func TestAggregateSumsShipping(t *testing.T) {
	a := saleTxn("s1", "10", 0)
	a.TotalShipping = dec("2.5")
	b := saleTxn("s2", "10", 1)
	b.TotalShipping = dec("1.25")
	totals, err := AggregateBuyerTotals([]Transaction{a, b})
	require.NoError(t, err)
	requireDecimal(t, "3.75", totals.TotalShipping)
}

func TestAggregateIsOrderIndependentAndPure(t *testing.T) {
	txns := []Transaction{
		saleTxn("s1", "100", 0),
		paymentTxn("p1", "40", DirectionReceived, 1),
		paymentTxn("p2", "5", DirectionGiven, 2),
		{ID: "r1", Type: KindReturn, Items: []Item{{Qty: dec("1"), Price: dec("3")}}},
	}
	snapshot := make([]Transaction, len(txns))
	copy(snapshot, txns)

	forward, err := AggregateBuyerTotals(txns)
	require.NoError(t, err)
	reversed := []Transaction{txns[3], txns[2], txns[1], txns[0]}
	backward, err := AggregateBuyerTotals(reversed)
	require.NoError(t, err)

	requireDecimal(t, forward.FinalAmountDue.String(), backward.FinalAmountDue)
	requireDecimal(t, "62", forward.FinalAmountDue)
	require.Equal(t, snapshot, txns)
}

func TestLineItemTotal(t *testing.T) {
	item := Item{Qty: dec("2"), Price: dec("10"), Shipping: dec("1")}
	requireDecimal(t, "20", LineItemTotal(item, KindSale))
	requireDecimal(t, "22", LineItemTotal(item, KindReturn))
	requireDecimal(t, "22", LineItemTotal(item, KindSampleReceived))

	item.SalePrice = decimal.NewNullDecimal(dec("15"))
	requireDecimal(t, "30", LineItemTotal(item, KindSale))
	requireDecimal(t, "32", LineItemTotal(item, KindReturn))

	item.SalePrice = decimal.NewNullDecimal(decimal.Zero)
	requireDecimal(t, "0", LineItemTotal(item, KindSale), "explicit zero sale price wins over price")
}

func TestItemMeasurement(t *testing.T) {
	item := Item{Qty: dec("3"), Price: dec("8")}
	requireDecimal(t, "3", item.EffectiveQty())
	item.Measurement = MeasurementHalf
	requireDecimal(t, "1.5", item.EffectiveQty())
	requireDecimal(t, "12", SaleLineTotal(item))
}

func TestTransactionJSONNormalisesLegacyKinds(t *testing.T) {
	raw := `[
		{"id":"a","type":"sample_recieved","price":"5","sample_id":{"products":[{"qty":1,"price":"3"}]}},
		{"id":"b","type":"sample_retured"},
		{"id":"c","type":"sale","sale_price":12.5,"items":[{"qty":1,"price":"10","sale_price":null}]},
		{"id":"d","type":"refund"}
	]`
	var txns []Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &txns))
	require.Len(t, txns, 4)
	assert.Equal(t, KindSampleReceived, txns[0].Type)
	assert.Equal(t, KindSampleReturned, txns[1].Type)
	assert.False(t, txns[2].Items[0].SalePrice.Valid)
	requireDecimal(t, "10", txns[2].Items[0].UnitPrice())
	assert.Equal(t, Kind("refund"), txns[3].Type)

	_, err := AggregateBuyerTotals(txns[:3])
	require.NoError(t, err)
	_, err = AggregateBuyerTotals(txns)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Sale ")
	require.NoError(t, err)
	assert.Equal(t, KindSale, k)
	k, err = ParseKind("sample_returend")
	require.NoError(t, err)
	assert.Equal(t, KindSampleReturned, k)
	_, err = ParseKind("gift")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestTransactionValidate(t *testing.T) {
	require.NoError(t, saleTxn("s", "1", 0).Validate())

	neg := saleTxn("s", "-1", 0)
	require.ErrorIs(t, neg.Validate(), ErrInvalidTransaction)

	odd := Transaction{ID: "r", Type: KindReturn, Items: []Item{{Qty: dec("1"), Measurement: dec("0.3")}}}
	require.ErrorIs(t, odd.Validate(), ErrInvalidTransaction)

	sample := Transaction{ID: "x", Type: KindSampleReceived}
	require.ErrorIs(t, sample.Validate(), ErrInvalidTransaction)

	require.ErrorIs(t, paymentTxn("p", "1", "", 0).Validate(), ErrMissingDirection)
	require.ErrorIs(t, ValidateAll([]Transaction{saleTxn("s", "1", 0), {Type: "nope"}}), ErrUnknownKind)
}
