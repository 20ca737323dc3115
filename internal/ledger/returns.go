package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrReturnExceedsSold is returned when a return would exceed the quantity sold.
	ErrReturnExceedsSold = errors.New("ledger: return quantity exceeds sold quantity")
	// ErrNotASale is returned when a return is planned against a non-sale transaction.
	ErrNotASale = errors.New("ledger: returns can only be planned against a sale")
	// ErrUnknownProduct is returned for lines that do not exist on the source transaction.
	ErrUnknownProduct = errors.New("ledger: product not found on transaction")
	// ErrNonPositiveQty is returned for zero or negative requested quantities.
	ErrNonPositiveQty = errors.New("ledger: quantity must be positive")
)

// ReturnRequest asks to return part of a sold product.
type ReturnRequest struct {
	ProductID   string          `json:"product_id" validate:"required"`
	Qty         decimal.Decimal `json:"qty"`
	Measurement decimal.Decimal `json:"measurement"`
}

// ReturnPlan is a drafted return transaction ready to be submitted.
type ReturnPlan struct {
	Transaction Transaction                `json:"transaction"`
	Total       decimal.Decimal            `json:"total"`
	Remaining   map[string]decimal.Decimal `json:"remaining"`
}

// PlanReturn drafts a return against sale. prior holds returns already
// recorded for the same sale; quantities are compared as qty × measurement.
func PlanReturn(sale Transaction, prior []Transaction, requests []ReturnRequest) (ReturnPlan, error) {
	if sale.Type != KindSale {
		return ReturnPlan{}, fmt.Errorf("%w: transaction %s is %q", ErrNotASale, sale.ID, sale.Type)
	}

	sold := make(map[string]decimal.Decimal)
	templates := make(map[string]Item)
	for _, it := range sale.Items {
		sold[it.ProductID] = sold[it.ProductID].Add(it.EffectiveQty())
		if _, ok := templates[it.ProductID]; !ok {
			templates[it.ProductID] = it
		}
	}

	returned := make(map[string]decimal.Decimal)
	for _, t := range prior {
		if t.Type != KindReturn {
			continue
		}
		for _, it := range t.Items {
			returned[it.ProductID] = returned[it.ProductID].Add(it.EffectiveQty())
		}
	}

	requested := make(map[string]decimal.Decimal)
	items := make([]Item, 0, len(requests))
	for _, req := range requests {
		tmpl, ok := templates[req.ProductID]
		if !ok {
			return ReturnPlan{}, fmt.Errorf("%w: %s", ErrUnknownProduct, req.ProductID)
		}
		if !req.Qty.IsPositive() {
			return ReturnPlan{}, fmt.Errorf("%w: product %s", ErrNonPositiveQty, req.ProductID)
		}
		line := tmpl
		line.Qty = req.Qty
		if !req.Measurement.IsZero() {
			line.Measurement = req.Measurement
		}
		requested[req.ProductID] = requested[req.ProductID].Add(line.EffectiveQty())
		available := sold[req.ProductID].Sub(returned[req.ProductID])
		if requested[req.ProductID].GreaterThan(available) {
			return ReturnPlan{}, fmt.Errorf("%w: product %s requested %s, returnable %s",
				ErrReturnExceedsSold, req.ProductID, requested[req.ProductID].String(), available.String())
		}
		items = append(items, line)
	}

	total := sumLines(items, func(it Item) decimal.Decimal {
		return LineItemTotal(it, KindReturn)
	})
	remaining := make(map[string]decimal.Decimal, len(sold))
	for id, qty := range sold {
		remaining[id] = qty.Sub(returned[id]).Sub(requested[id])
	}

	return ReturnPlan{
		Transaction: Transaction{
			BuyerID: sale.BuyerID,
			Type:    KindReturn,
			Price:   total,
			Items:   items,
			Notes:   "Return against sale " + sale.ID,
		},
		Total:     total,
		Remaining: remaining,
	}, nil
}
