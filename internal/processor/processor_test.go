package processor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/adapter/nooni"
	"github.com/yourorg/payment-router/internal/adapter/payu"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router/circuitbreaker"
	"github.com/yourorg/payment-router/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authorizeRD = types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]

func authorizeFlow(c adapter.Connector) adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
	return c.Authorize()
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func sandboxAuthorize(number string) *authorizeRD {
	return &authorizeRD{
		Flow:                        types.FlowAuthorize,
		MerchantID:                  "merchant_1",
		PaymentID:                   "pay_1",
		AttemptID:                   "pay_1_1",
		Connector:                   mock.Name,
		Status:                      types.AttemptStarted,
		AuthType:                    types.HeaderKey{APIKey: "dummy"},
		ConnectorRequestReferenceID: "pay_1_1",
		Request: types.PaymentsAuthorizeData{
			PaymentMethodData: types.Card{Number: types.Secret(number), ExpMonth: "03", ExpYear: "2030", CVC: "123"},
			Amount:            2500,
			Currency:          types.USD,
		},
	}
}

func newSandboxProcessor(t *testing.T) *processor.Processor {
	srv := httptest.NewServer(mock.NewSandbox(quietLogger()).Handler())
	t.Cleanup(srv.Close)
	transport := processor.NewHTTPTransport(srv.Client(), quietLogger()).WithRetry(0, 0)
	return processor.NewProcessor(transport, nil, quietLogger(), mock.NewMockAdapter(srv.URL), nooni.New(""), payu.New(""))
}

func TestNewProcessor_PanicsWithoutTransport(t *testing.T) {
	assert.Panics(t, func() { processor.NewProcessor(nil, nil, nil) })
}

func TestProcessor_Connector(t *testing.T) {
	p := newSandboxProcessor(t)

	c, err := p.Connector("nooni")
	require.NoError(t, err)
	assert.Equal(t, "nooni", c.GetName())

	_, err = p.Connector("adyen")
	assert.ErrorIs(t, err, types.ErrInvalidConnectorName)

	assert.Equal(t, []string{"dummyconnector", "nooni", "payu"}, p.ConnectorNames())
}

func TestProcessor_SupportedPaymentMethods(t *testing.T) {
	p := newSandboxProcessor(t)

	ok, err := p.SupportsPaymentMethod("nooni", types.Card{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.SupportsPaymentMethod("nooni", types.Upi{})
	require.NoError(t, err)
	assert.False(t, ok)

	caps, err := p.SupportedPaymentMethods("nooni")
	require.NoError(t, err)
	require.NotEmpty(t, caps)
	for _, c := range caps {
		assert.Equal(t, types.MethodCard, c.PaymentMethod)
	}

	caps, err = p.SupportedPaymentMethods("payu")
	require.NoError(t, err)
	assert.Contains(t, caps, processor.PaymentMethodCapability{PaymentMethod: types.MethodWallet, PaymentMethodType: string(types.WalletGooglePay)})

	_, err = p.SupportedPaymentMethods("unknown")
	assert.ErrorIs(t, err, types.ErrInvalidConnectorName)
}

func TestExecute_Success(t *testing.T) {
	p := newSandboxProcessor(t)
	counter := processor.GetConnectorRequestsTotal().WithLabelValues(mock.Name, "authorize", "success")
	before := testutil.ToFloat64(counter)

	rd := sandboxAuthorize("4111111111111111")
	out, err := processor.Execute(context.Background(), p, mock.Name, authorizeFlow, rd)
	require.NoError(t, err)
	assert.Equal(t, types.AttemptCharged, out.Status)
	require.NotNil(t, out.Response.Data)
	assert.NotEmpty(t, out.Response.Data.ResourceID.ConnectorTransactionID)

	assert.False(t, rd.IsDispatched(), "input must stay untouched")
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestExecute_ConnectorRejectionIsNotAnError(t *testing.T) {
	p := newSandboxProcessor(t)
	out, err := processor.Execute(context.Background(), p, mock.Name, authorizeFlow, sandboxAuthorize(mock.DeclineCard))
	require.NoError(t, err)
	require.NotNil(t, out.Response.Err)
	assert.Equal(t, http.StatusPaymentRequired, out.Response.Err.StatusCode)
	assert.Equal(t, "card_declined", out.Response.Err.Code)
}

func TestExecute_BuildErrorsNeverReachTransport(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()
	p := processor.NewProcessor(processor.NewHTTPTransport(srv.Client(), quietLogger()), nil, quietLogger(), nooni.New(srv.URL))

	rd := sandboxAuthorize("4111111111111111")
	_, err := processor.Execute(context.Background(), p, nooni.Name, authorizeFlow, rd)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField, "processing_channel_id metadata is missing")

	rd.AuthType = types.NoKey{}
	_, err = processor.Execute(context.Background(), p, nooni.Name, authorizeFlow, rd)
	assert.ErrorIs(t, err, types.ErrFailedToObtainAuthType)

	_, err = processor.Execute(context.Background(), p, "adyen", authorizeFlow, rd)
	assert.ErrorIs(t, err, types.ErrInvalidConnectorName)

	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestExecute_AccessTokenIsFetchedOnceAndCached(t *testing.T) {
	var tokenCalls, orderCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/pl/standard/user/oauth/authorize":
			atomic.AddInt32(&tokenCalls, 1)
			_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":43199,"grant_type":"client_credentials"}`))
		case "/api/v2_1/orders":
			atomic.AddInt32(&orderCalls, 1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"status":{"statusCode":"SUCCESS"},"orderId":"ORD1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := processor.NewProcessor(processor.NewHTTPTransport(srv.Client(), quietLogger()), nil, quietLogger(), payu.New(srv.URL))
	rd := &authorizeRD{
		Flow:        types.FlowAuthorize,
		MerchantID:  "merchant_1",
		PaymentID:   "pay_2",
		Connector:   payu.Name,
		AuthType:    types.BodyKey{APIKey: "client-secret", Key1: "300746"},
		Description: types.Ptr("Order 2"),
		Request: types.PaymentsAuthorizeData{
			PaymentMethodData: types.Card{Number: "4444333322221111", ExpMonth: "12", ExpYear: "2029", CVC: "123"},
			Amount:            1000,
			Currency:          types.PLN,
			BrowserInfo:       &types.BrowserInformation{IPAddress: types.Ptr("127.0.0.1")},
		},
	}

	for i := 0; i < 2; i++ {
		out, err := processor.Execute(context.Background(), p, payu.Name, authorizeFlow, rd)
		require.NoError(t, err)
		assert.Equal(t, types.AttemptPending, out.Status)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&orderCalls))
}

func TestExecute_AccessTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Bad credentials"}`))
	}))
	defer srv.Close()

	p := processor.NewProcessor(processor.NewHTTPTransport(srv.Client(), quietLogger()), nil, quietLogger(), payu.New(srv.URL))
	rd := &authorizeRD{Flow: types.FlowAuthorize, MerchantID: "m", AuthType: types.BodyKey{APIKey: "x", Key1: "y"}}
	_, err := processor.Execute(context.Background(), p, payu.Name, authorizeFlow, rd)
	assert.ErrorIs(t, err, types.ErrFailedToObtainAuthType)
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestExecute_CircuitOpensOnServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Hour})
	transport := processor.NewHTTPTransport(srv.Client(), quietLogger()).WithRetry(0, 0)
	p := processor.NewProcessor(transport, breaker, quietLogger(), mock.NewMockAdapter(srv.URL))

	out, err := processor.Execute(context.Background(), p, mock.Name, authorizeFlow, sandboxAuthorize("4111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, types.NoErrorCode, out.Response.Err.Code, "unparseable error body falls back to defaults")

	_, err = processor.Execute(context.Background(), p, mock.Name, authorizeFlow, sandboxAuthorize("4111111111111111"))
	assert.ErrorIs(t, err, processor.ErrCircuitOpen)
}
