package stripe

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

type authorizeRD = types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]

func newAuthorizeRouterData(pmd types.PaymentMethodData) *authorizeRD {
	return &authorizeRD{
		Flow:                        types.FlowAuthorize,
		PaymentID:                   "pay_9",
		AttemptID:                   "pay_9_1",
		Connector:                   Name,
		Status:                      types.AttemptStarted,
		AuthType:                    types.HeaderKey{APIKey: "sk_test_apikey"},
		ConnectorRequestReferenceID: "pay_9_1",
		Description:                 types.Ptr("Order 9"),
		Request: types.PaymentsAuthorizeData{
			PaymentMethodData: pmd,
			Amount:            1099,
			Currency:          types.USD,
			RouterReturnURL:   types.Ptr("https://router.test/return/pay_9"),
		},
	}
}

func testCard() types.Card {
	return types.Card{Number: "4242424242424242", ExpMonth: "12", ExpYear: "30", CVC: "314"}
}

func TestNewStripeAdapter(t *testing.T) {
	a := NewStripeAdapter("")
	require.NotNil(t, a)
	assert.Equal(t, "stripe", a.GetName())
	assert.Equal(t, DefaultBaseURL, a.apiBaseURL)
	assert.Equal(t, "https://stripe.test/v1", NewStripeAdapter("https://stripe.test/v1/").apiBaseURL)
}

func TestGenerateIdempotencyKey(t *testing.T) {
	key1 := generateIdempotencyKey("pay_1_1", types.FlowAuthorize)
	key2 := generateIdempotencyKey("pay_1_1", types.FlowAuthorize)
	key3 := generateIdempotencyKey("pay_1_1", types.FlowCapture)

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
	assert.Len(t, generateIdempotencyKey(strings.Repeat("x", 300), types.FlowAuthorize), maxIdempotencyKeyLen)
}

func TestValidatePaymentMethod(t *testing.T) {
	a := NewStripeAdapter("")
	tests := []struct {
		name string
		pmd  types.PaymentMethodData
		want error
	}{
		{"card", testCard(), nil},
		{"google pay", types.Wallet{Kind: types.WalletGooglePay}, types.ErrNotImplemented},
		{"samsung pay", types.Wallet{Kind: types.WalletSamsungPay}, types.ErrNotSupported},
		{"sepa", types.BankDebit{Kind: types.BankDebitSepa}, types.ErrNotImplemented},
		{"ideal", types.BankRedirect{Kind: types.BankRedirectIdeal}, types.ErrNotImplemented},
		{"trustly", types.BankRedirect{Kind: types.BankRedirectTrustly}, types.ErrNotSupported},
		{"crypto", types.Crypto{}, types.ErrNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.ValidatePaymentMethod(tt.pmd)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	for _, pmd := range types.SamplePaymentMethods() {
		err := a.ValidatePaymentMethod(pmd)
		if err != nil {
			assert.True(t, types.IsCapabilityError(err), "%s: %v", pmd.PaymentMethodType(), err)
		}
	}
}

func TestAuthorize_BuildRequest(t *testing.T) {
	a := NewStripeAdapter("https://stripe.test/v1")
	req, err := a.Authorize().BuildRequest(newAuthorizeRouterData(testCard()))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://stripe.test/v1/payment_intents", req.URL)
	assert.Equal(t, "Bearer sk_test_apikey", req.Headers.Get("Authorization"))
	assert.Equal(t, "pay_9_1-authorize", req.Headers.Get("Idempotency-Key"))
	assert.Equal(t, adapter.ContentTypeForm, req.Headers.Get("Content-Type"))

	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "1099", form.Get("amount"))
	assert.Equal(t, "usd", form.Get("currency"))
	assert.Equal(t, "true", form.Get("confirm"))
	assert.Equal(t, "automatic", form.Get("capture_method"))
	assert.Equal(t, "card", form.Get("payment_method_data[type]"))
	assert.Equal(t, "2030", form.Get("payment_method_data[card][exp_year]"))
	assert.Equal(t, "Order 9", form.Get("description"))
	assert.Equal(t, "https://router.test/return/pay_9", form.Get("return_url"))
	assert.Equal(t, "pay_9_1", form.Get("metadata[order_id]"))
}

func TestAuthorize_ReturnURL(t *testing.T) {
	a := NewStripeAdapter("")

	rd := newAuthorizeRouterData(testCard())
	rd.Request.RouterReturnURL = nil
	rd.ReturnURL = types.Ptr("https://shop.example/return")
	req, err := a.Authorize().BuildRequest(rd)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/return", form.Get("return_url"))

	rd.ReturnURL = nil
	_, err = a.Authorize().BuildRequest(rd)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField)
	assert.Contains(t, err.Error(), "return_url")

	rd.Request.OffSession = types.Ptr(true)
	rd.Request.ConnectorMandateID = types.Ptr("pm_saved")
	req, err = a.Authorize().BuildRequest(rd)
	require.NoError(t, err)
	form, err = url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Empty(t, form.Get("return_url"))
}

func TestAuthorize_MandateUsesStoredPaymentMethod(t *testing.T) {
	rd := newAuthorizeRouterData(types.MandatePayment{})
	rd.Request.ConnectorMandateID = types.Ptr("pm_saved")
	rd.Request.OffSession = types.Ptr(true)
	rd.Request.CaptureMethod = types.Ptr(types.CaptureManual)

	req, err := NewStripeAdapter("").Authorize().BuildRequest(rd)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "pm_saved", form.Get("payment_method"))
	assert.Equal(t, "true", form.Get("off_session"))
	assert.Equal(t, "manual", form.Get("capture_method"))
	assert.Empty(t, form.Get("payment_method_data[type]"))
}

func TestAuthorize_HandleResponse(t *testing.T) {
	a := NewStripeAdapter("")
	rd := newAuthorizeRouterData(testCard())

	out, err := a.Authorize().HandleResponse(rd, &adapter.Response{StatusCode: 200, Body: []byte(
		`{"id":"pi_1","status":"succeeded","amount":1099,"amount_received":1099,"latest_charge":"ch_1"}`)})
	require.NoError(t, err)
	assert.Equal(t, types.AttemptCharged, out.Status)
	assert.Equal(t, int64(1099), *out.AmountCaptured)
	assert.Equal(t, "pi_1", out.Response.Data.ResourceID.ConnectorTransactionID)
	assert.Equal(t, "ch_1", *out.Response.Data.NetworkTxnID)
	assert.Nil(t, rd.Response)

	out, err = a.Authorize().HandleResponse(rd, &adapter.Response{StatusCode: 200, Body: []byte(
		`{"id":"pi_2","status":"requires_action","next_action":{"type":"redirect_to_url","redirect_to_url":{"url":"https://hooks.stripe.test/3ds"}}}`)})
	require.NoError(t, err)
	assert.Equal(t, types.AttemptAuthenticationPending, out.Status)
	require.NotNil(t, out.Response.Data.Redirection)
	assert.Equal(t, "https://hooks.stripe.test/3ds", out.Response.Data.Redirection.Endpoint)
}

func TestAuthorize_DeclinedIntent(t *testing.T) {
	out, err := NewStripeAdapter("").Authorize().HandleResponse(newAuthorizeRouterData(testCard()), &adapter.Response{StatusCode: 200, Body: []byte(
		`{"id":"pi_3","status":"requires_payment_method","last_payment_error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`)})
	require.NoError(t, err)
	assert.Equal(t, types.AttemptFailure, out.Status)
	require.NotNil(t, out.Response.Err)
	assert.Equal(t, "insufficient_funds", out.Response.Err.Code)
	assert.Equal(t, "pi_3", *out.Response.Err.ConnectorTransactionID)
}

func TestIntentStatus_Total(t *testing.T) {
	for _, s := range AllIntentStatuses {
		_, err := s.AttemptStatus()
		assert.NoError(t, err, string(s))
	}
	_, err := IntentStatus("requires_source").AttemptStatus()
	assert.ErrorIs(t, err, types.ErrResponseDeserializationFailed)

	for _, s := range AllRefundStatuses {
		_, err := s.RefundStatus()
		assert.NoError(t, err, string(s))
	}
}

func TestCaptureVoidAndSync(t *testing.T) {
	a := NewStripeAdapter("https://stripe.test/v1")
	auth := types.HeaderKey{APIKey: "sk_test_apikey"}

	capture := &types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]{
		Flow: types.FlowCapture, AuthType: auth, ConnectorRequestReferenceID: "pay_9_1",
		Request: types.PaymentsCaptureData{AmountToCapture: 500, PaymentAmount: 1099, Currency: types.USD, ConnectorTransactionID: "pi_1"},
	}
	req, err := a.Capture().BuildRequest(capture)
	require.NoError(t, err)
	assert.Equal(t, "https://stripe.test/v1/payment_intents/pi_1/capture", req.URL)
	assert.Equal(t, "amount_to_capture=500", string(req.Body))
	assert.Equal(t, "pay_9_1-capture", req.Headers.Get("Idempotency-Key"))

	void := &types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData]{
		Flow: types.FlowVoid, AuthType: auth,
		Request: types.PaymentsCancelData{ConnectorTransactionID: "pi_1", CancellationReason: types.Ptr("requested_by_customer")},
	}
	req, err = a.Void().BuildRequest(void)
	require.NoError(t, err)
	assert.Equal(t, "https://stripe.test/v1/payment_intents/pi_1/cancel", req.URL)
	assert.Equal(t, "cancellation_reason=requested_by_customer", string(req.Body))
	out, err := a.Void().HandleResponse(void, &adapter.Response{StatusCode: 200, Body: []byte(`{"id":"pi_1","status":"canceled"}`)})
	require.NoError(t, err)
	assert.Equal(t, types.AttemptVoided, out.Status)

	sync := &types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]{
		Flow: types.FlowPSync, AuthType: auth,
		Request: types.PaymentsSyncData{ConnectorTransactionID: types.NewResponseID("pi_1")},
	}
	req, err = a.PSync().BuildRequest(sync)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Empty(t, req.Headers.Get("Idempotency-Key"))

	complete := &types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData]{Flow: types.FlowCompleteAuthorize, AuthType: auth}
	_, err = a.CompleteAuthorize().BuildRequest(complete)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField)
}

func TestRefunds(t *testing.T) {
	a := NewStripeAdapter("https://stripe.test/v1")
	rd := &types.RouterData[types.RefundsData, types.RefundsResponseData]{
		Flow:     types.FlowExecute,
		AuthType: types.HeaderKey{APIKey: "sk_test_apikey"},
		Request: types.RefundsData{
			RefundID: "ref_1", ConnectorTransactionID: "pi_1", Currency: types.USD,
			PaymentAmount: 1099, RefundAmount: 1099, Reason: types.Ptr("item damaged"),
		},
	}
	req, err := a.Execute().BuildRequest(rd)
	require.NoError(t, err)
	form, err := url.ParseQuery(string(req.Body))
	require.NoError(t, err)
	assert.Equal(t, "pi_1", form.Get("payment_intent"))
	assert.Equal(t, "1099", form.Get("amount"))
	assert.Empty(t, form.Get("reason"))
	assert.Equal(t, "item damaged", form.Get("metadata[reason]"))

	out, err := a.Execute().HandleResponse(rd, &adapter.Response{StatusCode: 200, Body: []byte(`{"id":"re_1","status":"pending"}`)})
	require.NoError(t, err)
	assert.Equal(t, types.RefundPending, out.Response.Data.RefundStatus)

	rd.Request.ConnectorRefundID = types.Ptr("re_1")
	req, err = a.RSync().BuildRequest(rd)
	require.NoError(t, err)
	assert.Equal(t, "https://stripe.test/v1/refunds/re_1", req.URL)
}

func TestErrorResponse(t *testing.T) {
	a := NewStripeAdapter("")
	got, err := a.Authorize().GetErrorResponse(&adapter.Response{StatusCode: http.StatusPaymentRequired, Body: []byte(
		`{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds.","payment_intent":{"id":"pi_4"}}}`)})
	require.NoError(t, err)
	assert.Equal(t, "insufficient_funds", got.Code)
	assert.Equal(t, "card_error", *got.Reason)
	assert.Equal(t, "pi_4", *got.ConnectorTransactionID)

	got, err = a.Authorize().GetErrorResponse(&adapter.Response{StatusCode: http.StatusBadGateway, Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, types.NoErrorCode, got.Code)
}
