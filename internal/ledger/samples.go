package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNoUnits is returned when shipping cannot be spread because there are no units.
var ErrNoUnits = errors.New("ledger: no units to apportion shipping over")

// ErrSampleOverAllocated is returned when sold plus returned exceeds what was sent.
var ErrSampleOverAllocated = errors.New("ledger: sample quantities exceed what was sent")

// ApportionShipping spreads total over every unit of items and returns copies
// with the per-unit shipping set. Rounding is left to the presentation layer.
func ApportionShipping(total decimal.Decimal, items []Item) ([]Item, error) {
	out := make([]Item, len(items))
	copy(out, items)
	if total.IsZero() {
		for i := range out {
			out[i].Shipping = decimal.Zero
		}
		return out, nil
	}
	units := decimal.Zero
	for _, it := range items {
		units = units.Add(it.Qty)
	}
	if !units.IsPositive() {
		return nil, ErrNoUnits
	}
	perUnit := total.Div(units)
	for i := range out {
		out[i].Shipping = perUnit
	}
	return out, nil
}

// SampleDecision records what happened to one product of a sample session.
type SampleDecision struct {
	ProductID   string              `json:"product_id" validate:"required"`
	SoldQty     decimal.Decimal     `json:"sold_qty"`
	ReturnedQty decimal.Decimal     `json:"returned_qty"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
}

// SampleSettlement holds the transactions drafted from a sample session.
type SampleSettlement struct {
	Sale       *Transaction               `json:"sale,omitempty"`
	Returned   *Transaction               `json:"returned,omitempty"`
	Unresolved map[string]decimal.Decimal `json:"unresolved"`
}

// SettleSample converts a sample session into a sale and a sample return.
// Shipping is apportioned over the units that were sold.
func SettleSample(session SampleSession, buyerID string, decisions []SampleDecision, totalShipping decimal.Decimal) (SampleSettlement, error) {
	sent := make(map[string]Item, len(session.Products))
	for _, p := range session.Products {
		if existing, ok := sent[p.ProductID]; ok {
			existing.Qty = existing.Qty.Add(p.Qty)
			sent[p.ProductID] = existing
			continue
		}
		sent[p.ProductID] = p
	}

	allocated := make(map[string]decimal.Decimal)
	var soldItems, returnedItems []Item
	for _, d := range decisions {
		product, ok := sent[d.ProductID]
		if !ok {
			return SampleSettlement{}, fmt.Errorf("%w: %s", ErrUnknownProduct, d.ProductID)
		}
		if d.SoldQty.IsNegative() || d.ReturnedQty.IsNegative() {
			return SampleSettlement{}, fmt.Errorf("%w: product %s", ErrNonPositiveQty, d.ProductID)
		}
		allocated[d.ProductID] = allocated[d.ProductID].Add(d.SoldQty).Add(d.ReturnedQty)
		if allocated[d.ProductID].GreaterThan(product.Qty) {
			return SampleSettlement{}, fmt.Errorf("%w: product %s sent %s, allocated %s",
				ErrSampleOverAllocated, d.ProductID, product.Qty.String(), allocated[d.ProductID].String())
		}
		if d.SoldQty.IsPositive() {
			line := product
			line.Qty = d.SoldQty
			if d.SalePrice.Valid {
				line.SalePrice = d.SalePrice
			}
			soldItems = append(soldItems, line)
		}
		if d.ReturnedQty.IsPositive() {
			line := product
			line.Qty = d.ReturnedQty
			returnedItems = append(returnedItems, line)
		}
	}

	settlement := SampleSettlement{Unresolved: make(map[string]decimal.Decimal, len(sent))}
	for id, p := range sent {
		if left := p.Qty.Sub(allocated[id]); left.IsPositive() {
			settlement.Unresolved[id] = left
		}
	}

	if len(soldItems) > 0 {
		shipped, err := ApportionShipping(totalShipping, soldItems)
		if err != nil {
			return SampleSettlement{}, err
		}
		saleValue := sumLines(shipped, SaleLineTotal)
		cost := sumLines(shipped, func(it Item) decimal.Decimal {
			return it.Price.Mul(it.Qty)
		})
		settlement.Sale = &Transaction{
			BuyerID:       buyerID,
			Type:          KindSale,
			Price:         cost,
			SalePrice:     saleValue,
			Profit:        saleValue.Sub(cost).Sub(totalShipping),
			TotalShipping: totalShipping,
			Items:         shipped,
			Notes:         "Sold from sample session " + session.ID,
		}
	}
	if len(returnedItems) > 0 {
		settlement.Returned = &Transaction{
			BuyerID: buyerID,
			Type:    KindSampleReturned,
			Sample: &SampleSession{
				ID:       session.ID,
				Status:   "returned",
				Products: returnedItems,
			},
			Notes: "Returned from sample session " + session.ID,
		}
	}
	return settlement, nil
}
