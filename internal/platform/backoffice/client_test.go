package backoffice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/buyer-ledger/internal/ledger"
	"github.com/odyssey-erp/buyer-ledger/internal/shared"
)

var testSession = &shared.Session{Token: "tok-1"}

func TestListTransactions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/buyer/b%201/range", r.URL.EscapedPath())
		assert.Equal(t, "2024-03-01T00:00:00", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-03-31T23:59:59", r.URL.Query().Get("end"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":[{"id":"s1","type":"sale","sale_price":"10.5"},{"id":"x","type":"sample_recieved"}]}`)
	}))
	defer srv.Close()

	loc := time.FixedZone("WIB", 7*3600)
	rng := ledger.DateRange{
		From: time.Date(2024, 3, 1, 0, 0, 0, 0, loc),
		To:   time.Date(2024, 3, 31, 23, 59, 59, 0, loc),
	}
	txns, err := NewClient(srv.URL, time.Second).ListTransactions(context.Background(), testSession, "b 1", rng)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, ledger.KindSale, txns[0].Type)
	assert.Equal(t, "10.5", txns[0].SalePrice.String())
	assert.Equal(t, ledger.KindSampleReceived, txns[1].Type)
}

func TestGetBuyerBarePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buyers/b1", r.URL.Path)
		_, _ = io.WriteString(w, `{"name":"Dana","phone":"+12015550123","current_balance":12}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", time.Second).WithHTTPClient(srv.Client())
	buyer, err := client.GetBuyer(context.Background(), testSession, "b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", buyer.ID)
	assert.Equal(t, "Dana", buyer.Name)
	assert.Equal(t, "12", buyer.CurrentBalance.String())
}

func TestSendInvoiceSMS(t *testing.T) {
	var got ledger.InvoicePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/notifications/sms/invoice", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	payload := ledger.InvoicePayload{BuyerID: "b1", Phone: "+12015550123", Message: "hi", AmountDue: 60, TransactionCount: 2, DateRange: "All time"}
	require.NoError(t, NewClient(srv.URL, time.Second).SendInvoiceSMS(context.Background(), testSession, payload))
	assert.Equal(t, payload, got)
}

func TestClientErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, `{"message":"expired"}`, shared.ErrUnauthorized},
		{http.StatusForbidden, ``, shared.ErrUnauthorized},
		{http.StatusNotFound, `{"message":"no buyer"}`, shared.ErrNotFound},
		{http.StatusInternalServerError, `{"error":"db down"}`, shared.ErrUpstream},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = io.WriteString(w, tc.body)
		}))
		_, err := NewClient(srv.URL, time.Second).GetBuyer(context.Background(), testSession, "b1")
		srv.Close()
		require.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestAPIErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, `{"error":"sms gateway unavailable"}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).SendInvoiceSMS(context.Background(), testSession, ledger.InvoicePayload{BuyerID: "b1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "sms gateway unavailable", apiErr.Message)
}

func TestClientTransportFailureIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, time.Second).GetBuyer(context.Background(), nil, "b1")
	require.ErrorIs(t, err, shared.ErrUpstream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewClient(addr, time.Second).GetBuyer(ctx, nil, "b1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMalformedResponseIsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":`)
	}))
	defer srv.Close()
	_, err := NewClient(srv.URL, time.Second).ListTransactions(context.Background(), testSession, "b1", ledger.DateRange{})
	require.ErrorIs(t, err, shared.ErrUpstream)
}
