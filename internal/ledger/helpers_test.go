package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), msgAndArgs)
}

var baseTime = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

func saleTxn(id, salePrice string, at time.Duration) Transaction {
	return Transaction{ID: id, Type: KindSale, SalePrice: dec(salePrice), CreatedAt: baseTime.Add(at)}
}

func paymentTxn(id, price string, dir Direction, at time.Duration) Transaction {
	return Transaction{ID: id, Type: KindPayment, Price: dec(price), PaymentDirection: dir, CreatedAt: baseTime.Add(at)}
}
