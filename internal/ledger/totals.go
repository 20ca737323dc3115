package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Totals are the buyer level figures for a set of transactions.
type Totals struct {
	TotalSaleAmount      decimal.Decimal `json:"total_sale_amount"`
	TotalPaymentReceived decimal.Decimal `json:"total_payment_received"`
	TotalShipping        decimal.Decimal `json:"total_shipping"`
	FinalAmountDue       decimal.Decimal `json:"final_amount_due"`
	TransactionCount     int             `json:"transaction_count"`
}

// Contribution is what a single transaction adds to each side of the ledger.
type Contribution struct {
	Sale     decimal.Decimal `json:"sale"`
	Received decimal.Decimal `json:"received"`
}

// Net is sale minus received.
func (c Contribution) Net() decimal.Decimal {
	return c.Sale.Sub(c.Received)
}

// LineItemTotal computes (unit price + shipping per unit) × qty. Shipping is
// excluded for sales and included for every other kind.
func LineItemTotal(item Item, kind Kind) decimal.Decimal {
	shipping := item.Shipping
	if kind == KindSale {
		shipping = decimal.Zero
	}
	return item.UnitPrice().Add(shipping).Mul(item.Qty)
}

// CostLineTotal is (price + shipping) × qty, ignoring any sale price.
func CostLineTotal(item Item) decimal.Decimal {
	return item.Price.Add(item.Shipping).Mul(item.Qty)
}

// SaleLineTotal is sale_price × qty × measurement.
func SaleLineTotal(item Item) decimal.Decimal {
	return item.UnitPrice().Mul(item.EffectiveQty())
}

// ContributionOf dispatches on the transaction kind.
func ContributionOf(t Transaction) (Contribution, error) {
	switch t.Type {
	case KindSale:
		return Contribution{Sale: t.SalePrice}, nil
	case KindPayment:
		switch t.PaymentDirection {
		case DirectionGiven:
			return Contribution{Sale: t.Price}, nil
		case DirectionReceived:
			return Contribution{Received: t.Price}, nil
		default:
			return Contribution{}, fmt.Errorf("%w: transaction %s", ErrMissingDirection, t.ID)
		}
	case KindReturn, KindInventoryAddition:
		return Contribution{Received: sumLines(t.Items, func(it Item) decimal.Decimal {
			return LineItemTotal(it, t.Type)
		})}, nil
	case KindSampleReceived:
		return Contribution{
			Sale:     sumLines(t.Lines(), CostLineTotal),
			Received: t.Price,
		}, nil
	case KindSampleReturned:
		// TODO: confirm with finance whether returned samples should credit the buyer.
		return Contribution{}, nil
	default:
		return Contribution{}, fmt.Errorf("%w: %q on transaction %s", ErrUnknownKind, t.Type, t.ID)
	}
}

// AggregateBuyerTotals folds transactions into buyer totals. It never mutates
// its input and yields zero totals for an empty slice.
func AggregateBuyerTotals(txns []Transaction) (Totals, error) {
	totals := Totals{
		TotalSaleAmount:      decimal.Zero,
		TotalPaymentReceived: decimal.Zero,
		TotalShipping:        decimal.Zero,
	}
	for _, t := range txns {
		c, err := ContributionOf(t)
		if err != nil {
			return Totals{}, err
		}
		totals.TotalSaleAmount = totals.TotalSaleAmount.Add(c.Sale)
		totals.TotalPaymentReceived = totals.TotalPaymentReceived.Add(c.Received)
		totals.TotalShipping = totals.TotalShipping.Add(t.TotalShipping)
		totals.TransactionCount++
	}
	totals.FinalAmountDue = totals.TotalSaleAmount.Sub(totals.TotalPaymentReceived)
	return totals, nil
}

// ValidateAll runs strict validation over every transaction.
func ValidateAll(txns []Transaction) error {
	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func sumLines(items []Item, fn func(Item) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(fn(it))
	}
	return total
}
