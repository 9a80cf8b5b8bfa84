package toss

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func confirmRequest() domain.GatewayConfirmRequest {
	return domain.GatewayConfirmRequest{
		PaymentKey:     "pay-key-1",
		OrderNumber:    "ORD202508300001",
		Amount:         decimal.RequireFromString("15000.00"),
		IdempotencyKey: "order-1",
	}
}

func TestClient_Confirm_Success(t *testing.T) {
	t.Parallel()

	var gotAuth, gotIdem string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, confirmPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotIdem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test_sk_secret")
	err := client.Confirm(context.Background(), confirmRequest())
	require.NoError(t, err)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("test_sk_secret:"))
	assert.Equal(t, wantAuth, gotAuth)
	assert.Equal(t, "order-1", gotIdem)
	assert.Equal(t, "pay-key-1", gotBody["paymentKey"])
	assert.Equal(t, "ORD202508300001", gotBody["orderId"])
}

func TestClient_Confirm_AlreadyApprovedIsSuccess(t *testing.T) {
	t.Parallel()

	for _, code := range []string{codeAlreadyProcessing, codeAlreadyApproved} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    code,
				"message": "already handled",
			})
		}))

		client := NewClient(srv.URL, "test_sk_secret")
		err := client.Confirm(context.Background(), confirmRequest())
		assert.NoError(t, err, "code %s must be treated as success", code)
		srv.Close()
	}
}

func TestClient_Confirm_GatewayRejects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "REJECT_CARD_COMPANY",
			"message": "card rejected",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test_sk_secret")
	err := client.Confirm(context.Background(), confirmRequest())
	require.ErrorIs(t, err, domain.ErrGatewayConfirmFailed)

	gatewayErr, ok := domain.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "REJECT_CARD_COMPANY", gatewayErr.Code)
}

func TestClient_Confirm_MalformedErrorBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test_sk_secret")
	err := client.Confirm(context.Background(), confirmRequest())
	require.ErrorIs(t, err, domain.ErrGatewayConfirmFailed)

	_, ok := domain.AsGatewayError(err)
	assert.False(t, ok, "non-json body must not produce a gateway error code")
}

func TestClient_Cancel(t *testing.T) {
	t.Parallel()

	var gotPath, gotIdem string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIdem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test_sk_secret")
	err := client.Cancel(context.Background(), "pay-key-9", "customer request", "cancel_ORD202508300001")
	require.NoError(t, err)

	assert.Equal(t, "/v1/payments/pay-key-9/cancel", gotPath)
	assert.Equal(t, "cancel_ORD202508300001", gotIdem)
	assert.Equal(t, "customer request", gotBody["cancelReason"])
}

func TestClient_Cancel_GatewayRejects(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"code":    "NOT_CANCELABLE_PAYMENT",
			"message": "payment is not cancelable",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test_sk_secret")
	err := client.Cancel(context.Background(), "pay-key-9", "customer request", "cancel_ORD202508300001")
	require.ErrorIs(t, err, domain.ErrGatewayCancelFailed)
}
