package nooni

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

type authorizeRD = types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]
type refundRD = types.RouterData[types.RefundsData, types.RefundsResponseData]

func channelMeta(t *testing.T) *structpb.Value {
	t.Helper()
	v, err := structpb.NewValue(map[string]any{"processing_channel_id": "pc_123"})
	require.NoError(t, err)
	return v
}

func newAuthorizeRouterData(t *testing.T, pmd types.PaymentMethodData) *authorizeRD {
	return &authorizeRD{
		Flow:                        types.FlowAuthorize,
		PaymentID:                   "pay_1",
		AttemptID:                   "pay_1_1",
		Connector:                   Name,
		Status:                      types.AttemptStarted,
		AuthType:                    types.HeaderKey{APIKey: "sk_test"},
		ConnectorMetaData:           channelMeta(t),
		ConnectorRequestReferenceID: "pay_1_1",
		Request: types.PaymentsAuthorizeData{
			PaymentMethodData: pmd,
			Amount:            1000,
			Currency:          types.USD,
		},
	}
}

func testCard() types.Card {
	return types.Card{Number: "4242424242424242", ExpMonth: "10", ExpYear: "2030", HolderName: "Jane Doe", CVC: "100"}
}

func TestNewAuthType(t *testing.T) {
	for _, auth := range types.AllAuthTypeSamples() {
		got, err := NewAuthType(auth)
		if hk, ok := auth.(types.HeaderKey); ok {
			require.NoError(t, err)
			assert.Equal(t, hk.APIKey, got.APIKey)
			continue
		}
		assert.ErrorIs(t, err, types.ErrFailedToObtainAuthType, auth.AuthType())
	}
}

func TestValidatePaymentMethod_CardOnly(t *testing.T) {
	n := New("")
	for _, pmd := range types.SamplePaymentMethods() {
		err := n.ValidatePaymentMethod(pmd)
		if _, ok := pmd.(types.Card); ok {
			assert.NoError(t, err)
			continue
		}
		assert.ErrorIs(t, err, types.ErrNotImplemented, pmd.PaymentMethodType())
	}
}

func TestValidatePaymentMethod_Missing(t *testing.T) {
	err := New("").ValidatePaymentMethod(nil)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField)
	assert.False(t, types.IsCapabilityError(err))
}

func TestAuthorize_CardAutoCapture(t *testing.T) {
	n := New("https://nooni.test/")
	rd := newAuthorizeRouterData(t, testCard())

	req, err := n.Authorize().BuildRequest(rd)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://nooni.test/payments", req.URL)
	assert.Equal(t, "Bearer sk_test", req.Headers.Get("Authorization"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, true, body["capture"])
	assert.Equal(t, float64(1000), body["amount"])
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, "pc_123", body["processing_channel_id"])
	assert.Equal(t, "pay_1_1", body["reference"])
	source := body["source"].(map[string]any)
	assert.Equal(t, "card", source["type"])
	assert.Equal(t, "4242424242424242", source["number"])
	assert.Equal(t, "Jane Doe", source["name"])

	res := &adapter.Response{StatusCode: http.StatusCreated, Body: []byte(`{
		"id": "pay_nooni_77", "action_id": "act_1", "amount": 1000, "currency": "USD",
		"approved": true, "status": "Authorized", "auth_code": "770120",
		"response_code": "10000", "response_summary": "Approved", "scheme_id": "net_9"
	}`)}
	out, err := n.Authorize().HandleResponse(rd, res)
	require.NoError(t, err)
	assert.Equal(t, types.AttemptAuthorized, out.Status)
	require.True(t, out.IsDispatched())
	require.NotNil(t, out.Response.Data)
	id, err := out.Response.Data.ResourceID.GetConnectorTransactionID()
	require.NoError(t, err)
	assert.Equal(t, "pay_nooni_77", id)
	assert.Equal(t, "net_9", *out.Response.Data.NetworkTxnID)

	assert.Equal(t, types.AttemptStarted, rd.Status)
	assert.False(t, rd.IsDispatched())
}

func TestAuthorize_ManualCapture(t *testing.T) {
	rd := newAuthorizeRouterData(t, testCard())
	rd.Request.CaptureMethod = types.Ptr(types.CaptureManual)

	req, err := New("").Authorize().BuildRequest(rd)
	require.NoError(t, err)
	var body AuthorizeRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.False(t, body.Capture)
}

func TestAuthorize_BuildErrors(t *testing.T) {
	n := New("")

	rd := newAuthorizeRouterData(t, types.Wallet{Kind: types.WalletGooglePay})
	_, err := n.Authorize().BuildRequest(rd)
	assert.ErrorIs(t, err, types.ErrNotImplemented)

	rd = newAuthorizeRouterData(t, testCard())
	rd.ConnectorMetaData = nil
	_, err = n.Authorize().BuildRequest(rd)
	assert.ErrorIs(t, err, types.ErrMissingRequiredField)

	rd = newAuthorizeRouterData(t, testCard())
	rd.AuthType = types.NoKey{}
	_, err = n.Authorize().BuildRequest(rd)
	assert.ErrorIs(t, err, types.ErrFailedToObtainAuthType)

	rd = newAuthorizeRouterData(t, testCard())
	rd.Request.CaptureMethod = types.Ptr(types.CaptureScheduled)
	_, err = n.Authorize().BuildRequest(rd)
	assert.ErrorIs(t, err, types.ErrCaptureMethodNotSupported)
}

func TestPaymentStatus_Total(t *testing.T) {
	want := map[PaymentStatus]types.AttemptStatus{
		PaymentStatusAuthorized: types.AttemptAuthorized,
		PaymentStatusCaptured:   types.AttemptCharged,
		PaymentStatusDeclined:   types.AttemptFailure,
		PaymentStatusPending:    types.AttemptPending,
		PaymentStatusVoided:     types.AttemptVoided,
	}
	for _, s := range AllPaymentStatuses {
		got, err := s.AttemptStatus()
		require.NoError(t, err)
		assert.Equal(t, want[s], got, string(s))
	}
	_, err := PaymentStatus("Exploded").AttemptStatus()
	assert.ErrorIs(t, err, types.ErrResponseDeserializationFailed)

	for _, s := range AllRefundStatuses {
		_, err := s.RefundStatus()
		assert.NoError(t, err, string(s))
	}
	_, err = RefundStatus("Lost").RefundStatus()
	assert.ErrorIs(t, err, types.ErrResponseDeserializationFailed)
}

func TestPSync(t *testing.T) {
	n := New("https://nooni.test")
	rd := &types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]{
		Flow:     types.FlowPSync,
		AuthType: types.HeaderKey{APIKey: "sk_test"},
		Status:   types.AttemptAuthorized,
		Request:  types.PaymentsSyncData{ConnectorTransactionID: types.NewResponseID("pay_nooni_77"), Currency: types.USD},
	}
	req, err := n.PSync().BuildRequest(rd)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://nooni.test/payments/pay_nooni_77", req.URL)
	assert.Empty(t, req.Body)

	out, err := n.PSync().HandleResponse(rd, &adapter.Response{StatusCode: 200, Body: []byte(
		`{"id":"pay_nooni_77","status":"Captured","balances":{"total_captured":1000}}`)})
	require.NoError(t, err)
	assert.Equal(t, types.AttemptCharged, out.Status)
	require.NotNil(t, out.AmountCaptured)
	assert.Equal(t, int64(1000), *out.AmountCaptured)

	rd.Request.ConnectorTransactionID = types.ResponseID{}
	_, err = n.PSync().BuildRequest(rd)
	assert.Error(t, err)
}

func TestRefunds(t *testing.T) {
	n := New("https://nooni.test")
	rd := &refundRD{
		Flow:     types.FlowExecute,
		AuthType: types.HeaderKey{APIKey: "sk_test"},
		Request: types.RefundsData{
			RefundID:               "ref_1",
			ConnectorTransactionID: "pay_nooni_77",
			Currency:               types.USD,
			PaymentAmount:          1000,
			RefundAmount:           400,
		},
	}
	req, err := n.Execute().BuildRequest(rd)
	require.NoError(t, err)
	assert.Equal(t, "https://nooni.test/payments/pay_nooni_77/refunds", req.URL)
	assert.JSONEq(t, `{"amount":400}`, string(req.Body))

	out, err := n.Execute().HandleResponse(rd, &adapter.Response{StatusCode: 202, Body: []byte(`{"id":"rfd_1","status":"Processing"}`)})
	require.NoError(t, err)
	assert.Equal(t, types.RefundPending, out.Response.Data.RefundStatus)
	assert.Equal(t, "rfd_1", out.Response.Data.ConnectorRefundID)

	rd.Flow = types.FlowRSync
	rd.Request.ConnectorRefundID = types.Ptr("rfd_1")
	req, err = n.RSync().BuildRequest(rd)
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "https://nooni.test/payments/pay_nooni_77/refunds/rfd_1", req.URL)

	out, err = n.RSync().HandleResponse(rd, &adapter.Response{StatusCode: 200, Body: []byte(`{"id":"rfd_1","status":"Succeeded"}`)})
	require.NoError(t, err)
	assert.Equal(t, types.RefundSuccess, out.Response.Data.RefundStatus)
}

func TestUnsupportedFlows(t *testing.T) {
	n := New("")
	_, err := n.Capture().BuildRequest(&types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]{})
	assert.ErrorIs(t, err, types.ErrNotImplemented)
	_, err = n.Void().BuildRequest(&types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData]{})
	assert.ErrorIs(t, err, types.ErrNotImplemented)
	_, err = n.CompleteAuthorize().BuildRequest(&types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData]{})
	assert.ErrorIs(t, err, types.ErrNotImplemented)
}

func TestErrorResponse(t *testing.T) {
	got, err := New("").Authorize().GetErrorResponse(&adapter.Response{
		StatusCode: http.StatusUnprocessableEntity,
		Body:       []byte(`{"status_code":422,"code":"card_expired","message":"Card expired","reason":"expiry_date_invalid"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, got.StatusCode)
	assert.Equal(t, "card_expired", got.Code)
	assert.Equal(t, "Card expired", got.Message)
	assert.Equal(t, "expiry_date_invalid", *got.Reason)

	_, err = New("").Authorize().GetErrorResponse(&adapter.Response{StatusCode: 500, Body: []byte("<html>")})
	assert.True(t, errors.Is(err, types.ErrResponseDeserializationFailed))
}
