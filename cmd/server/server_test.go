package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/config"
	"github.com/yourorg/payment-router/internal/payments"
	"github.com/yourorg/payment-router/internal/reporting"
	"github.com/yourorg/payment-router/internal/types"
)

const testMerchant = "merchant_1"

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return setupTestRouterWith(t, func(*config.Config) {})
}

func setupTestRouterWith(t *testing.T, configure func(*config.Config)) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	sandbox := httptest.NewServer(mock.NewSandbox(logger).Handler())
	t.Cleanup(sandbox.Close)

	cfg := &config.Config{
		Server:     config.ServerConfig{Addr: ":0"},
		Storage:    config.StorageConfig{Driver: "memory"},
		Transport:  config.TransportConfig{Timeout: 5 * time.Second},
		Tracing:    config.TracingConfig{ServiceName: "payment-router-test"},
		Connectors: map[string]config.ConnectorConfig{mock.Name: {BaseURL: sandbox.URL}},
		NodeID:     9,
		Merchants: []config.MerchantConfig{{
			ID:               testMerchant,
			ReturnURL:        "https://shop.example/return",
			DefaultProfileID: "pro_default",
			Routing:          config.RoutingConfig{Algorithm: "priority", Connectors: []string{mock.Name}},
			Connectors: []config.ConnectorAccountConfig{{
				Connector: mock.Name,
				Auth:      map[string]string{"auth_type": "HeaderKey", "api_key": "dummy_key"},
			}},
			Profiles: []config.ProfileConfig{{ID: "pro_default", Name: "default"}},
		}},
	}
	configure(cfg)
	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a.engine
}

func do(t *testing.T, h http.Handler, method, path string, body any, merchantID string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if merchantID != "" {
		req.Header.Set(merchantHeader, merchantID)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func cardPayment(captureMethod string) map[string]any {
	return map[string]any{
		"amount":         5000,
		"currency":       "USD",
		"confirm":        true,
		"capture_method": captureMethod,
		"payment_method": "card",
		"payment_method_data": map[string]any{
			"card": map[string]any{
				"card_number":    "4242424242424242",
				"card_exp_month": "10",
				"card_exp_year":  "2030",
				"card_cvc":       "123",
			},
		},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	do(t, h, http.MethodPost, "/payments", cardPayment("automatic"), testMerchant)
	w = do(t, h, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "payment_operations_total")
	assert.Contains(t, w.Body.String(), "connector_requests_total")
}

func TestMerchantHeaderRequired(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodGet, "/payments/pay_1", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(payments.CodeMerchantAccountNotFound), decode[apiError](t, w).Error.Code)

	w = do(t, h, http.MethodGet, "/payments/pay_1", nil, "nobody")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(payments.CodeMerchantAccountNotFound), decode[apiError](t, w).Error.Code)
}

func TestCreatePayment_SchemaViolation(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodPost, "/payments", map[string]any{"amount": "50", "currency": "USD"}, testMerchant)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[apiError](t, w)
	assert.Equal(t, string(payments.CodeInvalidDataFormat), body.Error.Code)
	assert.Contains(t, body.Error.Message, "amount")
}

func TestCreatePayment_ConfiguredSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "payments.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{
		"type": "object",
		"required": ["amount", "currency", "description"]
	}`), 0o600))
	h := setupTestRouterWith(t, func(cfg *config.Config) {
		cfg.Server.PaymentsSchema = schema
	})

	w := do(t, h, http.MethodPost, "/payments", cardPayment("automatic"), testMerchant)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[apiError](t, w).Error.Message, "description")

	payment := cardPayment("automatic")
	payment["description"] = "Order 7"
	w = do(t, h, http.MethodPost, "/payments", payment, testMerchant)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestNewApp_MissingPaymentsSchema(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{
		Server:  config.ServerConfig{PaymentsSchema: filepath.Join(t.TempDir(), "missing.json")},
		Storage: config.StorageConfig{Driver: "memory"},
	}
	_, err := newApp(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodPost, "/payments", cardPayment("manual"), testMerchant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	created := decode[payments.PaymentsResponse](t, w)
	assert.Equal(t, types.IntentRequiresCapture, created.Status)
	require.NotEmpty(t, created.PaymentID)

	w = do(t, h, http.MethodPost, "/payments/"+created.PaymentID+"/capture", nil, testMerchant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, types.IntentSucceeded, decode[payments.PaymentsResponse](t, w).Status)

	w = do(t, h, http.MethodPost, "/payments/"+created.PaymentID+"/cancel", map[string]any{"cancellation_reason": "late"}, testMerchant)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(payments.CodePaymentUnexpectedState), decode[apiError](t, w).Error.Code)

	w = do(t, h, http.MethodPost, "/refunds", map[string]any{"payment_id": created.PaymentID, "amount": 2000}, testMerchant)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refund := decode[payments.RefundResponse](t, w)
	assert.Equal(t, types.RefundSuccess, refund.Status)
	assert.Equal(t, int64(2000), refund.Amount)

	w = do(t, h, http.MethodGet, "/refunds/"+refund.RefundID+"?force_sync=true", nil, testMerchant)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, refund.RefundID, decode[payments.RefundResponse](t, w).RefundID)

	w = do(t, h, http.MethodGet, "/payments/"+created.PaymentID, nil, testMerchant)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.IntentSucceeded, decode[payments.PaymentsResponse](t, w).Status)

	w = do(t, h, http.MethodGet, "/reports/retrospective", nil, testMerchant)
	require.Equal(t, http.StatusOK, w.Code)
	report := decode[reporting.RetrospectiveReport](t, w)
	assert.Equal(t, 1, report.TotalAttempts)
	assert.Equal(t, 1, report.SucceededAttempts)
	assert.Equal(t, "50.00", report.DisplayAmounts[types.USD])
}

func TestPaymentFlow_Unknown(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodPost, "/payments/pay_1/teleport", nil, testMerchant)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(payments.CodeNotSupported), decode[apiError](t, w).Error.Code)
}

func TestRetrievePayment_NotFound(t *testing.T) {
	h := setupTestRouter(t)

	w := do(t, h, http.MethodGet, "/payments/pay_missing", nil, testMerchant)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(payments.CodePaymentNotFound), decode[apiError](t, w).Error.Code)
}
