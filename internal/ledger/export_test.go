package ledger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteStatementXLSX(t *testing.T) {
	txns := []Transaction{
		saleTxn("s1", "100", time.Hour),
		{
			ID:        "r1",
			Type:      KindReturn,
			Items:     []Item{{ProductName: "Rice", Qty: dec("2"), Unit: "kg", Price: dec("10"), Shipping: dec("1")}},
			CreatedAt: baseTime.Add(2 * time.Hour),
		},
	}
	stmt, err := BuildStatement(Buyer{Name: "Dana"}, DateRange{}, txns)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteStatementXLSX(&buf, stmt))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(statementSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 6)
	assert.Equal(t, []string{"Period", "All time"}, rows[1])
	assert.Equal(t, statementColumns, rows[3])
	assert.Equal(t, "Sale", rows[4][1])
	assert.Equal(t, "Return", rows[5][1])
	assert.Equal(t, "Rice x2 kg", rows[5][3])

	due, err := f.GetCellValue(statementSheet, "F11")
	require.NoError(t, err)
	assert.Equal(t, "78", due)
}
