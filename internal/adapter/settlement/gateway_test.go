package settlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"payment-processor/internal/core/ports"
	"payment-processor/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateway_AuthorizeAndCapture_Approved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/captures", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx-1", body["transaction_id"])
		assert.Equal(t, float64(5000), body["amount"])
		assert.Equal(t, "USD", body["currency"])

		json.NewEncoder(w).Encode(map[string]any{"approved": true, "reference": "ext_ref_1"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, srv.Client())
	result, err := g.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{
		TransactionID: "tx-1",
		Amount:        5000,
		Currency:      "USD",
	})
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "ext_ref_1", result.Reference)
}

func TestHTTPGateway_AuthorizeAndCapture_Declined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"approved": false, "reason": "insufficient_funds"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, srv.Client())
	result, err := g.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 100, Currency: "USD"})
	require.NoError(t, err, "a business decline is a result, not an error")
	assert.False(t, result.Approved)
	assert.Equal(t, "insufficient_funds", result.DeclineReason)
}

func TestHTTPGateway_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, srv.Client())
	_, err := g.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 100, Currency: "USD"})
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestHTTPGateway_ClientErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, srv.Client())
	_, err := g.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 100, Currency: "USD"})
	require.Error(t, err)
	assert.False(t, apperror.IsTransient(err))
}

func TestHTTPGateway_ConnectionRefusedIsTransient(t *testing.T) {
	// A closed server port behaves like a dead collaborator.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	g := NewHTTPGateway(srv.URL, &http.Client{})
	_, err := g.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 100, Currency: "USD"})
	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
}

func TestHTTPGateway_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reversals", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ext_ref_1", body["reference"])
		assert.Equal(t, float64(2500), body["amount"])

		json.NewEncoder(w).Encode(map[string]any{"approved": true, "reference": "ext_rev_1"})
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, srv.Client())
	result, err := g.Reverse(context.Background(), "ext_ref_1", 2500, "USD")
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "ext_rev_1", result.Reference)
}

func TestSimulator_Deterministic(t *testing.T) {
	sim := NewSimulator()

	approved, err := sim.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 5000, Currency: "USD"})
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.True(t, strings.HasPrefix(approved.Reference, "sim_"))

	declined, err := sim.AuthorizeAndCapture(context.Background(), ports.SettlementRequest{Amount: 1099, Currency: "USD"})
	require.NoError(t, err)
	assert.False(t, declined.Approved)
	assert.Equal(t, "insufficient_funds", declined.DeclineReason)

	reversed, err := sim.Reverse(context.Background(), approved.Reference, 2500, "USD")
	require.NoError(t, err)
	assert.True(t, reversed.Approved)
	assert.Contains(t, reversed.Reference, "_rev_")
}
