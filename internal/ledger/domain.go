package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind enumerates the transaction kinds recorded against a buyer.
type Kind string

const (
	KindSale              Kind = "sale"
	KindReturn            Kind = "return"
	KindPayment           Kind = "payment"
	KindInventoryAddition Kind = "inventory_addition"
	KindSampleReceived    Kind = "sample_received"
	KindSampleReturned    Kind = "sample_returned"
)

// Kinds lists every supported kind in display order.
var Kinds = []Kind{
	KindSale,
	KindReturn,
	KindPayment,
	KindInventoryAddition,
	KindSampleReceived,
	KindSampleReturned,
}

var (
	// ErrUnknownKind is returned for transaction types the ledger cannot classify.
	ErrUnknownKind = errors.New("ledger: unknown transaction kind")
	// ErrMissingDirection is returned for payments without a payment direction.
	ErrMissingDirection = errors.New("ledger: payment direction required")
	// ErrInvalidTransaction wraps strict-mode validation failures.
	ErrInvalidTransaction = errors.New("ledger: invalid transaction")
	// ErrInvalidRange is returned for missing or inverted date ranges.
	ErrInvalidRange = errors.New("ledger: invalid date range")
)

// the backoffice API historically stored a few misspelled kinds.
var kindAliases = map[string]Kind{
	"sample_recieved": KindSampleReceived,
	"sample_retured":  KindSampleReturned,
	"sample_returend": KindSampleReturned,
}

// ParseKind normalises a raw kind string.
func ParseKind(raw string) (Kind, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := kindAliases[value]; ok {
		return alias, nil
	}
	k := Kind(value)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindReturn, KindPayment, KindInventoryAddition, KindSampleReceived, KindSampleReturned:
		return true
	}
	return false
}

// IsSample reports whether the kind is driven by sample session products.
func (k Kind) IsSample() bool {
	return k == KindSampleReceived || k == KindSampleReturned
}

// Label returns a human readable kind name.
func (k Kind) Label() string {
	switch k {
	case KindSale:
		return "Sale"
	case KindReturn:
		return "Return"
	case KindPayment:
		return "Payment"
	case KindInventoryAddition:
		return "Inventory addition"
	case KindSampleReceived:
		return "Sample received"
	case KindSampleReturned:
		return "Sample returned"
	}
	return string(k)
}

// UnmarshalJSON accepts the canonical kinds and their legacy spellings. Unknown
// kinds are kept verbatim so aggregation can reject them explicitly.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseKind(raw)
	if err != nil {
		*k = Kind(raw)
		return nil
	}
	*k = parsed
	return nil
}

// Direction captures whether money was given to or received from the buyer.
type Direction string

const (
	DirectionGiven    Direction = "given"
	DirectionReceived Direction = "received"
)

// Measurement multipliers for Full/Half/Quarter unit sales.
var (
	MeasurementFull    = decimal.NewFromInt(1)
	MeasurementHalf    = decimal.NewFromFloat(0.5)
	MeasurementQuarter = decimal.NewFromFloat(0.25)
)

// Item is a single transaction line.
type Item struct {
	ProductID   string              `json:"product_id,omitempty"`
	ProductName string              `json:"product_name,omitempty"`
	Qty         decimal.Decimal     `json:"qty"`
	Unit        string              `json:"unit,omitempty"`
	Measurement decimal.Decimal     `json:"measurement"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	Shipping    decimal.Decimal     `json:"shipping"`
}

// EffectiveMeasurement returns the measurement, treating a missing value as Full.
func (it Item) EffectiveMeasurement() decimal.Decimal {
	if it.Measurement.IsZero() {
		return MeasurementFull
	}
	return it.Measurement
}

// EffectiveQty is qty × measurement.
func (it Item) EffectiveQty() decimal.Decimal {
	return it.Qty.Mul(it.EffectiveMeasurement())
}

// UnitPrice returns sale_price when present, otherwise price.
func (it Item) UnitPrice() decimal.Decimal {
	if it.SalePrice.Valid {
		return it.SalePrice.Decimal
	}
	return it.Price
}

// SampleSession is a pre-sale evaluation session attached to sample transactions.
type SampleSession struct {
	ID       string `json:"id,omitempty"`
	Status   string `json:"status,omitempty"`
	Products []Item `json:"products"`
}

// Transaction is a buyer ledger entry as served by the backoffice API.
type Transaction struct {
	ID               string          `json:"id"`
	BuyerID          string          `json:"buyer_id,omitempty"`
	Type             Kind            `json:"type"`
	Price            decimal.Decimal `json:"price"`
	SalePrice        decimal.Decimal `json:"sale_price"`
	Profit           decimal.Decimal `json:"profit"`
	TotalShipping    decimal.Decimal `json:"total_shipping"`
	PaymentDirection Direction       `json:"payment_direction,omitempty"`
	Items            []Item          `json:"items,omitempty"`
	Sample           *SampleSession  `json:"sample_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Notes            string          `json:"notes,omitempty"`
}

// Lines returns the line items that drive computation for the transaction kind.
func (t Transaction) Lines() []Item {
	if t.Type.IsSample() {
		if t.Sample == nil {
			return nil
		}
		return t.Sample.Products
	}
	return t.Items
}

// Validate applies strict checks. Lenient callers skip it and rely on zero defaults.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, t.Type)
	}
	if t.Type == KindPayment && t.PaymentDirection != DirectionGiven && t.PaymentDirection != DirectionReceived {
		return fmt.Errorf("%w: transaction %s", ErrMissingDirection, t.ID)
	}
	for _, amount := range []decimal.Decimal{t.Price, t.SalePrice, t.TotalShipping} {
		if amount.IsNegative() {
			return fmt.Errorf("%w: transaction %s has a negative amount", ErrInvalidTransaction, t.ID)
		}
	}
	for i, it := range t.Lines() {
		if it.Qty.IsNegative() || it.Price.IsNegative() || it.Shipping.IsNegative() {
			return fmt.Errorf("%w: transaction %s line %d has a negative value", ErrInvalidTransaction, t.ID, i+1)
		}
		if it.SalePrice.Valid && it.SalePrice.Decimal.IsNegative() {
			return fmt.Errorf("%w: transaction %s line %d has a negative sale price", ErrInvalidTransaction, t.ID, i+1)
		}
		m := it.EffectiveMeasurement()
		if !m.Equal(MeasurementFull) && !m.Equal(MeasurementHalf) && !m.Equal(MeasurementQuarter) {
			return fmt.Errorf("%w: transaction %s line %d measurement %s", ErrInvalidTransaction, t.ID, i+1, m.String())
		}
	}
	if t.Type.IsSample() && t.Sample == nil {
		return fmt.Errorf("%w: transaction %s has no sample session", ErrInvalidTransaction, t.ID)
	}
	return nil
}

// Buyer is the account a ledger belongs to. CurrentBalance is display only.
type Buyer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
}

// DateRange bounds a ledger query in local time.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Label renders the range for statements and SMS bodies.
func (r DateRange) Label() string {
	if r.From.IsZero() && r.To.IsZero() {
		return "All time"
	}
	return fmt.Sprintf("%s to %s", r.From.Format("02 Jan 2006"), r.To.Format("02 Jan 2006"))
}

// Validate ensures the range is ordered.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	return nil
}
