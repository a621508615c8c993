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

// PaymentStatus reads a payment. With force_sync it first asks the connector
// for the latest status of a non-terminal attempt.
type PaymentStatus struct{}

var _ Operation[PaymentsRetrieveRequest, *PaymentData] = PaymentStatus{}

func (PaymentStatus) Name() string { return "payment_status" }

func (PaymentStatus) ValidateRequest(req *PaymentsRetrieveRequest, m *merchant.Account) (*ValidateResult, error) {
	if err := validatePaymentID(req.PaymentID); err != nil {
		return nil, err
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	return &ValidateResult{MerchantID: m.MerchantID, PaymentID: req.PaymentID, StorageScheme: m.StorageScheme}, nil
}

func (PaymentStatus) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsRetrieveRequest, _ *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	return &PaymentData{
		Intent:    intent,
		Attempt:   attempt,
		Amount:    intent.Amount,
		Currency:  intent.Currency,
		ForceSync: req.ForceSync,
	}, nil, nil
}

func (PaymentStatus) GetOrCreateCustomerDetails(context.Context, *Deps, *PaymentData, *CustomerDetails, *merchant.KeyStore) (*types.Customer, error) {
	return nil, nil
}

func (PaymentStatus) MakePaymentMethodData(context.Context, *Deps, *PaymentData, *merchant.KeyStore) error {
	return nil
}

func (PaymentStatus) GetConnector(_ context.Context, _ *Deps, _ *PaymentsRetrieveRequest, data *PaymentData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return attemptConnector(data.Attempt)
}

func (PaymentStatus) ShouldCallConnector(data *PaymentData) bool {
	return data.ForceSync &&
		data.Attempt.Connector != nil &&
		data.Attempt.ConnectorTransactionID != nil &&
		!data.Attempt.Status.IsTerminal()
}

func (PaymentStatus) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	req := types.PaymentsSyncData{
		ConnectorTransactionID: types.NewResponseID(*data.Attempt.ConnectorTransactionID),
		Currency:               data.Currency,
		CaptureMethod:          data.Attempt.CaptureMethod,
		ConnectorMeta:          data.Attempt.ConnectorMetadata,
	}
	rd := newRouterData[types.PaymentsSyncData, types.PaymentsResponseData](types.FlowPSync, data.Intent, data.Attempt, data.Address, choice.Connector, account, req)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.PaymentsSyncData, types.PaymentsResponseData] {
		return c.PSync()
	}, rd)
	if err != nil {
		return fmt.Errorf("syncing payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyPaymentsResponse(data, out, nil)
}

// UpdateTrackers only writes when the connector was asked; a plain read
// leaves the stored payment untouched.
func (PaymentStatus) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	if !data.Dispatched {
		return data, nil
	}
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
