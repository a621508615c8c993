package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
)

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr), "expected *payments.Error, got %T: %v", err, err)
	assert.Equal(t, code, apiErr.Code, apiErr.Message)
}

func TestPaymentCreate_ConfirmAutoCapture(t *testing.T) {
	f := newFixture(t)

	data := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureAutomatic))

	assert.Equal(t, types.IntentSucceeded, data.Intent.Status)
	assert.Equal(t, types.AttemptCharged, data.Attempt.Status)
	require.NotNil(t, data.Attempt.Connector)
	assert.Equal(t, mock.Name, *data.Attempt.Connector)
	require.NotNil(t, data.Attempt.ConnectorTransactionID)
	require.NotNil(t, data.Intent.AmountCaptured)
	assert.Equal(t, int64(2500), *data.Intent.AmountCaptured)
	assert.NotNil(t, data.Attempt.PaymentToken, "raw card data is vaulted")
	assert.Equal(t, int64(1), data.Intent.Version)
	assert.False(t, data.IsNew)

	stored, err := f.store.FindPaymentIntent(context.Background(), data.Intent.PaymentID, testMerchant, types.StoragePostgresOnly)
	require.NoError(t, err)
	assert.Equal(t, types.IntentSucceeded, stored.Status)
	assert.Equal(t, "pro_default", *stored.ProfileID)
	assert.Equal(t, "https://shop.example/return", *stored.ReturnURL)
}

func TestPaymentCreate_WithoutConfirmStopsBeforeConnector(t *testing.T) {
	f := newFixture(t)

	data := createPayment(t, f, createRequest("4242424242424242", false, types.CaptureAutomatic))

	assert.Equal(t, types.IntentRequiresConfirmation, data.Intent.Status)
	assert.Equal(t, types.AttemptConfirmationAwaited, data.Attempt.Status)
	assert.Nil(t, data.Attempt.Connector)
	assert.False(t, data.Dispatched)
	assert.Equal(t, AttemptID(data.Intent.PaymentID, 1), data.Attempt.AttemptID)
}

func TestPaymentCreate_DeclinedCardFailsAttempt(t *testing.T) {
	f := newFixture(t)

	data := createPayment(t, f, createRequest(mock.DeclineCard, true, types.CaptureAutomatic))

	assert.Equal(t, types.IntentFailed, data.Intent.Status)
	assert.Equal(t, types.AttemptFailure, data.Attempt.Status)
	require.NotNil(t, data.Attempt.ErrorCode)
	assert.Equal(t, "card_declined", *data.Attempt.ErrorCode)

	_, err := run[PaymentsRequest, *PaymentData](t, f, PaymentConfirm{}, &PaymentsRequest{PaymentID: &data.Intent.PaymentID})
	assertCode(t, err, CodePaymentUnexpectedState)
}

func TestPaymentCreate_DuplicatePaymentID(t *testing.T) {
	f := newFixture(t)
	req := createRequest("4242424242424242", false, types.CaptureAutomatic)
	req.PaymentID = types.Ptr("pay_fixed_1")

	createPayment(t, f, req)
	_, err := run[PaymentsRequest, *PaymentData](t, f, PaymentCreate{}, req)
	assertCode(t, err, CodeDuplicatePayment)
}

func TestPaymentCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		mut  func(r *PaymentsRequest)
		code ErrorCode
	}{
		{"missing amount", func(r *PaymentsRequest) { r.Amount = nil }, CodeMissingRequiredField},
		{"zero amount", func(r *PaymentsRequest) { r.Amount = types.Ptr(int64(0)) }, CodeInvalidDataValue},
		{"missing currency", func(r *PaymentsRequest) { r.Currency = nil }, CodeMissingRequiredField},
		{"unknown currency", func(r *PaymentsRequest) { r.Currency = types.Ptr(types.Currency("XXX")) }, CodeInvalidDataValue},
		{"foreign merchant", func(r *PaymentsRequest) { r.MerchantID = types.Ptr("merchant_2") }, CodeInvalidDataFormat},
		{"bad payment id", func(r *PaymentsRequest) { r.PaymentID = types.Ptr("pay 1") }, CodeInvalidDataFormat},
		{"capture above amount", func(r *PaymentsRequest) { r.AmountToCapture = types.Ptr(int64(9999)) }, CodeInvalidDataValue},
		{"type without method", func(r *PaymentsRequest) {
			r.PaymentMethod = nil
			r.PaymentMethodType = types.Ptr("credit")
		}, CodeMissingRequiredField},
		{"method mismatch", func(r *PaymentsRequest) { r.PaymentMethod = types.Ptr(types.MethodWallet) }, CodeInvalidDataValue},
		{"future usage without customer", func(r *PaymentsRequest) {
			r.SetupFutureUsage = types.Ptr(types.FutureUsageOffSession)
		}, CodeMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := createRequest("4242424242424242", false, types.CaptureAutomatic)
			tt.mut(req)
			_, err := run[PaymentsRequest, *PaymentData](t, f, PaymentCreate{}, req)
			assertCode(t, err, tt.code)
		})
	}
}

func TestPaymentCreate_UnknownProfile(t *testing.T) {
	f := newFixture(t)
	req := createRequest("4242424242424242", false, types.CaptureAutomatic)
	req.ProfileID = types.Ptr("pro_missing")

	_, err := run[PaymentsRequest, *PaymentData](t, f, PaymentCreate{}, req)
	assertCode(t, err, CodeBusinessProfileNotFound)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPaymentCreate_NewCustomerIsInserted(t *testing.T) {
	f := newFixture(t)
	req := createRequest("4242424242424242", true, types.CaptureAutomatic)
	req.CustomerID = types.Ptr("cus_1")
	req.Email = types.Ptr("jane@example.com")

	data := createPayment(t, f, req)
	assert.False(t, data.NewCustomer)

	customer, err := f.store.FindCustomer(context.Background(), "cus_1", testMerchant)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", *customer.Email)

	// A second payment for the same customer reuses the record.
	req.PaymentID = nil
	createPayment(t, f, req)
}

func TestPaymentConfirm_UsesVaultedCard(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", false, types.CaptureManual))

	data, err := run[PaymentsRequest, *PaymentData](t, f, PaymentConfirm{}, &PaymentsRequest{PaymentID: &created.Intent.PaymentID})
	require.NoError(t, err)

	assert.Equal(t, types.IntentRequiresCapture, data.Intent.Status)
	assert.Equal(t, types.AttemptAuthorized, data.Attempt.Status)
	assert.Equal(t, int64(2), data.Intent.Version)
}

func TestPaymentConfirm_GetTrackersIsIdempotent(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", false, types.CaptureAutomatic))
	req := &PaymentsRequest{
		PaymentID:   &created.Intent.PaymentID,
		Description: types.Ptr("order 42"),
		CustomerID:  types.Ptr("cus_9"),
		Shipping:    &types.AddressDetails{Line1: types.Ptr("1 Main St"), Country: types.Ptr("US")},
	}
	ctx := context.Background()

	vr, err := PaymentConfirm{}.ValidateRequest(req, f.account)
	require.NoError(t, err)
	first, _, err := PaymentConfirm{}.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	require.NoError(t, err)
	second, _, err := PaymentConfirm{}.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	require.NoError(t, err)

	assert.Equal(t, first.Intent, second.Intent)
	assert.Equal(t, first.Attempt, second.Attempt)
	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, "order 42", *first.Intent.Description)
	require.NotNil(t, first.Intent.ShippingAddressID)
}

func TestPaymentConfirm_MergeKeepsPersistedFields(t *testing.T) {
	f := newFixture(t)
	req := createRequest("4242424242424242", false, types.CaptureManual)
	req.Description = types.Ptr("original")
	created := createPayment(t, f, req)

	data, err := run[PaymentsRequest, *PaymentData](t, f, PaymentConfirm{}, &PaymentsRequest{PaymentID: &created.Intent.PaymentID})
	require.NoError(t, err)
	assert.Equal(t, "original", *data.Intent.Description)
	assert.Equal(t, types.CaptureManual, *data.Attempt.CaptureMethod)
	assert.Equal(t, int64(2500), data.Intent.Amount)
}

func TestThreeDSThenCompleteAuthorize(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest(mock.ThreeDSCard, true, types.CaptureAutomatic))

	assert.Equal(t, types.IntentRequiresCustomerAction, created.Intent.Status)
	require.NotNil(t, created.Attempt.AuthenticationURL)
	resp := NewPaymentsResponse(created)
	require.NotNil(t, resp.NextAction)
	assert.Equal(t, *created.Attempt.AuthenticationURL, resp.NextAction.RedirectToURL)

	feature, err := structpb.NewValue(map[string]any{
		"redirect_response": map[string]any{"param": "PaRes=abc"},
	})
	require.NoError(t, err)
	done, err := run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, &PaymentsRequest{
		PaymentID:       &created.Intent.PaymentID,
		FeatureMetadata: &types.JSONValue{Value: feature},
	})
	require.NoError(t, err)

	assert.Equal(t, types.IntentSucceeded, done.Intent.Status)
	require.NotNil(t, done.RedirectResponse)
	assert.Equal(t, "PaRes=abc", *done.RedirectResponse.Params)
	assert.Nil(t, NewPaymentsResponse(done).NextAction)
}

func TestCompleteAuthorize_ChargesMandate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := createPayment(t, f, createRequest(mock.ThreeDSCard, true, types.CaptureAutomatic))
	require.Equal(t, types.IntentRequiresCustomerAction, created.Intent.Status)
	require.NoError(t, f.store.InsertMandate(ctx, &types.Mandate{
		MandateID: "man_1", MerchantID: testMerchant, CustomerID: "cus_1", Status: types.MandateActive,
		Type: types.MandateMultiUse, Connector: mock.Name, ConnectorMandateID: types.Ptr("cm_1"), CreatedAt: fixedNow,
	}))

	completeWith := func(mandateID, customerID string) *PaymentsRequest {
		return &PaymentsRequest{
			PaymentID:  &created.Intent.PaymentID,
			MandateID:  types.Ptr(mandateID),
			CustomerID: types.Ptr(customerID),
			OffSession: types.Ptr(true),
		}
	}

	req := completeWith("man_1", "cus_1")
	vr, err := CompleteAuthorize{}.ValidateRequest(req, f.account)
	require.NoError(t, err)
	assert.Equal(t, types.MandateTxnRecurring, vr.MandateType)
	data, _, err := CompleteAuthorize{}.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	require.NoError(t, err)
	require.NotNil(t, data.Mandate)
	assert.Equal(t, "cm_1", *data.Mandate.ConnectorMandateID)
	require.NoError(t, CompleteAuthorize{}.MakePaymentMethodData(ctx, f.deps, data, f.ks))
	assert.Equal(t, types.MandatePayment{}, data.PaymentMethodData)

	_, err = run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, completeWith("man_missing", "cus_1"))
	assertCode(t, err, CodeMandateNotFound)

	_, err = run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, completeWith("man_1", "cus_other"))
	assertCode(t, err, CodePreconditionFailed)

	done, err := run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, req)
	require.NoError(t, err)
	assert.Equal(t, types.IntentSucceeded, done.Intent.Status)
	assert.Equal(t, "man_1", *done.Attempt.MandateID)
}

func TestCompleteAuthorize_RejectsTerminalPayment(t *testing.T) {
	f := newFixture(t)
	seedPayment(t, f, "pay_done", types.IntentSucceeded)

	_, err := run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, &PaymentsRequest{PaymentID: types.Ptr("pay_done")})
	assertCode(t, err, CodePaymentUnexpectedState)
}

func TestPaymentCapture_PartialThenRefunds(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureManual))
	require.Equal(t, types.IntentRequiresCapture, created.Intent.Status)
	paymentID := created.Intent.PaymentID

	_, err := run[PaymentsCaptureRequest, *PaymentData](t, f, PaymentCapture{}, &PaymentsCaptureRequest{PaymentID: paymentID, AmountToCapture: types.Ptr(int64(9000))})
	assertCode(t, err, CodeInvalidDataValue)

	captured, err := run[PaymentsCaptureRequest, *PaymentData](t, f, PaymentCapture{}, &PaymentsCaptureRequest{PaymentID: paymentID, AmountToCapture: types.Ptr(int64(1500))})
	require.NoError(t, err)
	assert.Equal(t, types.IntentSucceeded, captured.Intent.Status)
	assert.Equal(t, int64(1500), *captured.Intent.AmountCaptured)

	_, err = run[PaymentsCaptureRequest, *PaymentData](t, f, PaymentCapture{}, &PaymentsCaptureRequest{PaymentID: paymentID})
	assertCode(t, err, CodePaymentUnexpectedState)

	first, err := run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: paymentID, Amount: types.Ptr(int64(1000))})
	require.NoError(t, err)
	assert.Equal(t, types.RefundSuccess, first.Refund.Status)
	assert.NotNil(t, first.Refund.ConnectorRefundID)

	_, err = run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: paymentID, Amount: types.Ptr(int64(600))})
	assertCode(t, err, CodeRefundAmountExceedsTotal)

	rest, err := run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: paymentID})
	require.NoError(t, err)
	assert.Equal(t, int64(500), rest.Refund.RefundAmount)

	_, err = run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: paymentID})
	assertCode(t, err, CodeRefundAmountExceedsTotal)
}

func TestRefundCreate_DuplicateRefundID(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureAutomatic))
	req := &RefundRequest{RefundID: types.Ptr("ref_fixed"), PaymentID: created.Intent.PaymentID, Amount: types.Ptr(int64(100))}

	_, err := run[RefundRequest, *RefundData](t, f, RefundCreate{}, req)
	require.NoError(t, err)
	_, err = run[RefundRequest, *RefundData](t, f, RefundCreate{}, req)
	assertCode(t, err, CodeDuplicateRefund)
}

func TestRefundCreate_RequiresCapturedPayment(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureManual))

	_, err := run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: created.Intent.PaymentID})
	assertCode(t, err, CodePaymentUnexpectedState)
}

func TestRefundStatus(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureAutomatic))
	refund, err := run[RefundRequest, *RefundData](t, f, RefundCreate{}, &RefundRequest{PaymentID: created.Intent.PaymentID})
	require.NoError(t, err)

	got, err := run[RefundsRetrieveRequest, *RefundData](t, f, RefundStatus{}, &RefundsRetrieveRequest{RefundID: refund.Refund.RefundID, ForceSync: true})
	require.NoError(t, err)
	assert.False(t, got.Dispatched, "terminal refunds are not synced")
	assert.Equal(t, types.RefundSuccess, got.Refund.Status)
	assert.Equal(t, refund.Refund.Version, got.Refund.Version)

	_, err = run[RefundsRetrieveRequest, *RefundData](t, f, RefundStatus{}, &RefundsRetrieveRequest{RefundID: "ref_missing"})
	assertCode(t, err, CodeRefundNotFound)
	_, err = run[RefundsRetrieveRequest, *RefundData](t, f, RefundStatus{}, &RefundsRetrieveRequest{})
	assertCode(t, err, CodeRefundNotFound)
}

func TestPaymentStatus_ForceSync(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureManual))

	plain, err := run[PaymentsRetrieveRequest, *PaymentData](t, f, PaymentStatus{}, &PaymentsRetrieveRequest{PaymentID: created.Intent.PaymentID})
	require.NoError(t, err)
	assert.False(t, plain.Dispatched)
	assert.Equal(t, created.Intent.Version, plain.Intent.Version, "a plain read does not write")

	synced, err := run[PaymentsRetrieveRequest, *PaymentData](t, f, PaymentStatus{}, &PaymentsRetrieveRequest{PaymentID: created.Intent.PaymentID, ForceSync: true})
	require.NoError(t, err)
	assert.True(t, synced.Dispatched)
	assert.Equal(t, types.IntentRequiresCapture, synced.Intent.Status)
	assert.Equal(t, created.Intent.Version+1, synced.Intent.Version)
}

func TestPaymentStatus_TerminalIsNotSynced(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureAutomatic))

	got, err := run[PaymentsRetrieveRequest, *PaymentData](t, f, PaymentStatus{}, &PaymentsRetrieveRequest{PaymentID: created.Intent.PaymentID, ForceSync: true})
	require.NoError(t, err)
	assert.False(t, got.Dispatched)

	_, err = run[PaymentsRetrieveRequest, *PaymentData](t, f, PaymentStatus{}, &PaymentsRetrieveRequest{PaymentID: "pay_unknown"})
	assertCode(t, err, CodePaymentNotFound)
}

func TestPaymentCancel_VoidsAuthorization(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", true, types.CaptureManual))

	data, err := run[PaymentsCancelRequest, *PaymentData](t, f, PaymentCancel{}, &PaymentsCancelRequest{
		PaymentID: created.Intent.PaymentID, CancellationReason: types.Ptr("requested_by_customer"),
	})
	require.NoError(t, err)
	assert.True(t, data.Dispatched)
	assert.Equal(t, types.IntentCancelled, data.Intent.Status)
	assert.Equal(t, types.AttemptVoided, data.Attempt.Status)
	assert.Equal(t, "requested_by_customer", *data.Attempt.CancellationReason)
}

func TestPaymentCancel_LocalWithoutConnector(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", false, types.CaptureAutomatic))

	data, err := run[PaymentsCancelRequest, *PaymentData](t, f, PaymentCancel{}, &PaymentsCancelRequest{PaymentID: created.Intent.PaymentID})
	require.NoError(t, err)
	assert.False(t, data.Dispatched)
	assert.Equal(t, types.IntentCancelled, data.Intent.Status)

	_, err = run[PaymentsCancelRequest, *PaymentData](t, f, PaymentCancel{}, &PaymentsCancelRequest{PaymentID: created.Intent.PaymentID})
	assertCode(t, err, CodePaymentUnexpectedState)
}

func TestUpdateTrackers_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	created := createPayment(t, f, createRequest("4242424242424242", false, types.CaptureAutomatic))
	ctx := context.Background()
	req := &PaymentsCancelRequest{PaymentID: created.Intent.PaymentID}

	vr, err := PaymentCancel{}.ValidateRequest(req, f.account)
	require.NoError(t, err)
	a, _, err := PaymentCancel{}.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	require.NoError(t, err)
	b, _, err := PaymentCancel{}.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	require.NoError(t, err)

	_, err = PaymentCancel{}.UpdateTrackers(ctx, f.deps, a, nil, vr.StorageScheme)
	require.NoError(t, err)
	_, err = PaymentCancel{}.UpdateTrackers(ctx, f.deps, b, nil, vr.StorageScheme)
	assertCode(t, err, CodePaymentUnexpectedState)
	assert.ErrorIs(t, err, storage.ErrConflict)
}

// Every mutating operation must refuse intents that reached a terminal status.
func TestTerminalIntentsAreNeverMutated(t *testing.T) {
	ctx := context.Background()
	for _, status := range types.AllIntentStatuses {
		if !status.IsTerminal() {
			continue
		}
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			id := "pay_" + string(status)
			seedPayment(t, f, id, status)

			mutations := map[string]func() error{
				"confirm": func() error {
					_, err := run[PaymentsRequest, *PaymentData](t, f, PaymentConfirm{}, &PaymentsRequest{PaymentID: &id})
					return err
				},
				"complete_authorize": func() error {
					_, err := run[PaymentsRequest, *PaymentData](t, f, CompleteAuthorize{}, &PaymentsRequest{PaymentID: &id})
					return err
				},
				"capture": func() error {
					_, err := run[PaymentsCaptureRequest, *PaymentData](t, f, PaymentCapture{}, &PaymentsCaptureRequest{PaymentID: id})
					return err
				},
				"cancel": func() error {
					_, err := run[PaymentsCancelRequest, *PaymentData](t, f, PaymentCancel{}, &PaymentsCancelRequest{PaymentID: id})
					return err
				},
			}
			for name, mutate := range mutations {
				assertCode(t, mutate(), CodePaymentUnexpectedState)
				stored, err := f.store.FindPaymentIntent(ctx, id, testMerchant, types.StoragePostgresOnly)
				require.NoError(t, err)
				assert.Equal(t, status, stored.Status, name)
				assert.Equal(t, int64(1), stored.Version, name)
			}
		})
	}
}
