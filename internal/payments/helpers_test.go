package payments

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/types"
)

func TestCoalesce(t *testing.T) {
	a, b := "incoming", "persisted"

	assert.Equal(t, &a, Coalesce(&a, &b))
	assert.Equal(t, &b, Coalesce(nil, &b))
	assert.Nil(t, Coalesce[string](nil, nil))
	assert.Nil(t, Coalesce[string]())
}

func TestValidatePaymentStatusGuards(t *testing.T) {
	allowed := []types.IntentStatus{types.IntentRequiresCapture}

	assert.NoError(t, ValidatePaymentStatusAllowed(types.IntentRequiresCapture, allowed, actionCapture))
	err := ValidatePaymentStatusAllowed(types.IntentFailed, allowed, actionCapture)
	assertCode(t, err, CodePaymentUnexpectedState)
	assert.Contains(t, err.Error(), "capture is not allowed in current status: failed")

	notAllowed := []types.IntentStatus{types.IntentSucceeded}
	assert.NoError(t, ValidatePaymentStatusAgainstNotAllowedStatuses(types.IntentProcessing, notAllowed, actionCancel))
	assertCode(t, ValidatePaymentStatusAgainstNotAllowedStatuses(types.IntentSucceeded, notAllowed, actionCancel), CodePaymentUnexpectedState)
}

// The guard lists of every mutating operation must exclude all terminal statuses.
func TestGuardListsExcludeTerminalStatuses(t *testing.T) {
	for _, s := range types.AllIntentStatuses {
		if !s.IsTerminal() {
			continue
		}
		assert.Error(t, ValidatePaymentStatusAllowed(s, confirmAllowedStatuses, actionConfirm), s)
		assert.Error(t, ValidatePaymentStatusAllowed(s, captureAllowedStatuses, actionCapture), s)
		assert.Error(t, ValidatePaymentStatusAgainstNotAllowedStatuses(s, cancelNotAllowedStatuses, actionCancel), s)
		assert.Error(t, ValidatePaymentStatusAgainstNotAllowedStatuses(s, completeAuthorizeNotAllowedStatuses, actionConfirm), s)
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, validateID("payment_id", "pay_ABC-123"))
	assertCode(t, validateID("payment_id", "pay 1"), CodeInvalidDataFormat)
	assertCode(t, validateID("payment_id", strings.Repeat("a", maxIDLength+1)), CodeInvalidDataFormat)
	assertCode(t, validatePaymentID(""), CodePaymentNotFound)
}

func TestValidateMandate(t *testing.T) {
	accepted := &types.MandateData{Type: types.MandateMultiUse, CustomerAcceptance: types.Ptr("online")}
	offSession := types.Ptr(types.FutureUsageOffSession)

	tests := []struct {
		name      string
		req       PaymentsRequest
		isConfirm bool
		want      types.MandateTxnType
		code      ErrorCode
	}{
		{name: "none", req: PaymentsRequest{}, want: types.MandateTxnNone},
		{name: "both", req: PaymentsRequest{MandateID: types.Ptr("man_1"), MandateData: accepted}, code: CodePreconditionFailed},
		{name: "recurring", req: PaymentsRequest{
			MandateID: types.Ptr("man_1"), CustomerID: types.Ptr("cus_1"), Confirm: types.Ptr(true), OffSession: types.Ptr(true),
		}, want: types.MandateTxnRecurring},
		{name: "recurring on confirm needs no confirm flag", req: PaymentsRequest{
			MandateID: types.Ptr("man_1"), CustomerID: types.Ptr("cus_1"), OffSession: types.Ptr(true),
		}, isConfirm: true, want: types.MandateTxnRecurring},
		{name: "recurring without customer", req: PaymentsRequest{
			MandateID: types.Ptr("man_1"), Confirm: types.Ptr(true), OffSession: types.Ptr(true),
		}, code: CodePreconditionFailed},
		{name: "recurring without confirm", req: PaymentsRequest{
			MandateID: types.Ptr("man_1"), CustomerID: types.Ptr("cus_1"), OffSession: types.Ptr(true),
		}, code: CodePreconditionFailed},
		{name: "recurring on session", req: PaymentsRequest{
			MandateID: types.Ptr("man_1"), CustomerID: types.Ptr("cus_1"), Confirm: types.Ptr(true),
		}, code: CodePreconditionFailed},
		{name: "new", req: PaymentsRequest{
			MandateData: accepted, CustomerID: types.Ptr("cus_1"), SetupFutureUsage: offSession,
		}, want: types.MandateTxnNew},
		{name: "new on session", req: PaymentsRequest{
			MandateData: accepted, CustomerID: types.Ptr("cus_1"),
		}, code: CodePreconditionFailed},
		{name: "new without acceptance", req: PaymentsRequest{
			MandateData: &types.MandateData{Type: types.MandateSingleUse}, CustomerID: types.Ptr("cus_1"), SetupFutureUsage: offSession,
		}, code: CodePreconditionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := validateMandate(&tt.req, tt.isConfirm)
			if tt.code != "" {
				assertCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedirectResponseFrom(t *testing.T) {
	assert.Nil(t, redirectResponseFrom(nil))

	v, err := structpb.NewValue(map[string]any{"redirect_response": map[string]any{
		"param":        "MD=1&PaRes=2",
		"json_payload": map[string]any{"transStatus": "Y"},
	}})
	require.NoError(t, err)

	rr := redirectResponseFrom(v)
	require.NotNil(t, rr)
	assert.Equal(t, "MD=1&PaRes=2", *rr.Params)
	assert.Equal(t, "Y", rr.Payload.GetStructValue().GetFields()["transStatus"].GetStringValue())
}

func TestMergePaymentsRequest_NeverClearsPersistedFields(t *testing.T) {
	intent := &types.PaymentIntent{Amount: 100, Currency: types.EUR, Description: types.Ptr("kept"), CustomerID: types.Ptr("cus_1")}
	attempt := &types.PaymentAttempt{Amount: 100, Currency: types.EUR, CaptureMethod: types.Ptr(types.CaptureManual)}

	mergePaymentsRequest(intent, attempt, &PaymentsRequest{Amount: types.Ptr(int64(300)), ReturnURL: types.Ptr("https://r.example")})

	assert.Equal(t, int64(300), intent.Amount)
	assert.Equal(t, int64(300), attempt.Amount)
	assert.Equal(t, types.EUR, intent.Currency)
	assert.Equal(t, "kept", *intent.Description)
	assert.Equal(t, "cus_1", *intent.CustomerID)
	assert.Equal(t, "https://r.example", *intent.ReturnURL)
	assert.Equal(t, types.CaptureManual, *attempt.CaptureMethod)

	before := *intent
	mergePaymentsRequest(intent, attempt, &PaymentsRequest{})
	assert.Equal(t, before, *intent)
}

func TestIDGenerator(t *testing.T) {
	ids, err := NewIDGenerator(7)
	require.NoError(t, err)

	p1, p2 := ids.PaymentID(), ids.PaymentID()
	assert.True(t, strings.HasPrefix(p1, "pay_"))
	assert.NotEqual(t, p1, p2)
	assert.True(t, strings.HasPrefix(ids.RefundID(), "ref_"))
	assert.True(t, strings.HasPrefix(ids.MandateID(), "man_"))
	assert.Equal(t, "pay_1_2", AttemptID("pay_1", 2))
	assert.NoError(t, validateID("payment_id", p1))

	_, err = NewIDGenerator(5000)
	assert.Error(t, err)
}
