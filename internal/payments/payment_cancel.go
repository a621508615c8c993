package payments

import (
	"context"
	"fmt"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

// PaymentCancel voids an authorization. A payment that never reached a
// connector is cancelled locally.
type PaymentCancel struct{}

var _ Operation[PaymentsCancelRequest, *PaymentData] = PaymentCancel{}

var cancelNotAllowedStatuses = []types.IntentStatus{
	types.IntentFailed,
	types.IntentSucceeded,
	types.IntentCancelled,
	types.IntentProcessing,
	types.IntentRequiresMerchantAction,
	types.IntentPartiallyCaptured,
}

func (PaymentCancel) Name() string { return "payment_cancel" }

func (PaymentCancel) ValidateRequest(req *PaymentsCancelRequest, m *merchant.Account) (*ValidateResult, error) {
	if err := validatePaymentID(req.PaymentID); err != nil {
		return nil, err
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	return &ValidateResult{MerchantID: m.MerchantID, PaymentID: req.PaymentID, StorageScheme: m.StorageScheme}, nil
}

func (PaymentCancel) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsCancelRequest, _ *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePaymentStatusAgainstNotAllowedStatuses(intent.Status, cancelNotAllowedStatuses, actionCancel); err != nil {
		return nil, nil, err
	}
	attempt.CancellationReason = Coalesce(req.CancellationReason, attempt.CancellationReason)
	return &PaymentData{
		Intent:             intent,
		Attempt:            attempt,
		Amount:             intent.Amount,
		Currency:           intent.Currency,
		CancellationReason: attempt.CancellationReason,
	}, nil, nil
}

func (PaymentCancel) GetOrCreateCustomerDetails(context.Context, *Deps, *PaymentData, *CustomerDetails, *merchant.KeyStore) (*types.Customer, error) {
	return nil, nil
}

func (PaymentCancel) MakePaymentMethodData(context.Context, *Deps, *PaymentData, *merchant.KeyStore) error {
	return nil
}

func (PaymentCancel) GetConnector(_ context.Context, _ *Deps, _ *PaymentsCancelRequest, data *PaymentData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return attemptConnector(data.Attempt)
}

func (PaymentCancel) ShouldCallConnector(data *PaymentData) bool {
	return data.Attempt.Connector != nil && data.Attempt.ConnectorTransactionID != nil
}

func (PaymentCancel) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	req := types.PaymentsCancelData{
		ConnectorTransactionID: *data.Attempt.ConnectorTransactionID,
		CancellationReason:     data.CancellationReason,
		Amount:                 types.Ptr(data.Amount),
		Currency:               types.Ptr(data.Currency),
		ConnectorMeta:          data.Attempt.ConnectorMetadata,
	}
	rd := newRouterData[types.PaymentsCancelData, types.PaymentsResponseData](types.FlowVoid, data.Intent, data.Attempt, data.Address, choice.Connector, account, req)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.PaymentsCancelData, types.PaymentsResponseData] {
		return c.Void()
	}, rd)
	if err != nil {
		return fmt.Errorf("voiding payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyPaymentsResponse(data, out, types.Ptr(types.AttemptVoidFailed))
}

func (PaymentCancel) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	if !data.Dispatched {
		data.Attempt.Status = types.AttemptVoided
		data.Intent.Status = types.AttemptVoided.IntentStatus()
	}
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
