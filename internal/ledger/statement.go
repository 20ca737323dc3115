package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// LineTotal is a computed line of a statement row.
type LineTotal struct {
	Item
	EffectiveQty decimal.Decimal `json:"effective_qty"`
	Total        decimal.Decimal `json:"total"`
}

// StatementRow is one transaction as shown in the account history.
type StatementRow struct {
	Transaction    Transaction     `json:"transaction"`
	Lines          []LineTotal     `json:"lines"`
	Contribution   Contribution    `json:"contribution"`
	RunningBalance decimal.Decimal `json:"running_balance"`
}

// Statement is the account history of a buyer over a date range.
type Statement struct {
	Buyer      Buyer          `json:"buyer"`
	RangeLabel string         `json:"range_label"`
	Rows       []StatementRow `json:"rows"`
	Totals     Totals         `json:"totals"`
}

// BuildStatement orders transactions by creation time and computes line totals
// and a running balance. The input slice is left untouched.
func BuildStatement(buyer Buyer, rng DateRange, txns []Transaction) (Statement, error) {
	ordered := make([]Transaction, len(txns))
	copy(ordered, txns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	totals, err := AggregateBuyerTotals(ordered)
	if err != nil {
		return Statement{}, err
	}

	rows := make([]StatementRow, 0, len(ordered))
	balance := decimal.Zero
	for _, t := range ordered {
		c, err := ContributionOf(t)
		if err != nil {
			return Statement{}, err
		}
		balance = balance.Add(c.Net())
		rows = append(rows, StatementRow{
			Transaction:    t,
			Lines:          lineTotals(t),
			Contribution:   c,
			RunningBalance: balance,
		})
	}

	return Statement{
		Buyer:      buyer,
		RangeLabel: rng.Label(),
		Rows:       rows,
		Totals:     totals,
	}, nil
}

func lineTotals(t Transaction) []LineTotal {
	lines := t.Lines()
	out := make([]LineTotal, 0, len(lines))
	for _, it := range lines {
		total := LineItemTotal(it, t.Type)
		if t.Type == KindSampleReceived {
			total = CostLineTotal(it)
		}
		out = append(out, LineTotal{
			Item:         it,
			EffectiveQty: it.EffectiveQty(),
			Total:        total,
		})
	}
	return out
}
