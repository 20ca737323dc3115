package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type summarizeRequest struct {
	Transactions []Transaction `json:"transactions"`
	RangeLabel   string        `json:"range_label" validate:"max=120"`
	BuyerName    string        `json:"buyer_name" validate:"max=120"`
}

type summarizeResponse struct {
	Totals  Totals `json:"totals"`
	Summary string `json:"summary"`
	Length  int    `json:"length"`
}

type planReturnRequest struct {
	Sale  Transaction     `json:"sale"`
	Prior []Transaction   `json:"prior"`
	Items []ReturnRequest `json:"items" validate:"required,min=1,dive"`
}

type settleSampleRequest struct {
	BuyerID       string           `json:"buyer_id" validate:"required"`
	Session       SampleSession    `json:"session"`
	Decisions     []SampleDecision `json:"decisions" validate:"required,min=1,dive"`
	TotalShipping decimal.Decimal  `json:"total_shipping"`
}

type sendInvoiceRequest struct {
	From  string `json:"from" validate:"required"`
	To    string `json:"to" validate:"required"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Async bool   `json:"async"`
}

var rangeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseRange reads a from/to pair in local time. A date-only upper bound
// covers the whole day.
func ParseRange(from, to string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	start, _, err := parseLocal(from, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
	}
	end, dateOnly, err := parseLocal(to, loc)
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
	}
	if dateOnly {
		end = end.Add(24*time.Hour - time.Second)
	}
	rng := DateRange{From: start, To: end}
	if err := rng.Validate(); err != nil {
		return DateRange{}, err
	}
	return rng, nil
}

func parseLocal(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, fmt.Errorf("empty value")
	}
	for _, layout := range rangeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, layout == "2006-01-02", nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), false, nil
	}
	return time.Time{}, false, fmt.Errorf("unrecognised date %q", value)
}
