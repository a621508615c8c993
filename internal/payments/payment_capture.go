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

// PaymentCapture captures funds of a manually captured authorization.
type PaymentCapture struct{}

var _ Operation[PaymentsCaptureRequest, *PaymentData] = PaymentCapture{}

var captureAllowedStatuses = []types.IntentStatus{types.IntentRequiresCapture}

func (PaymentCapture) Name() string { return "payment_capture" }

func (PaymentCapture) ValidateRequest(req *PaymentsCaptureRequest, m *merchant.Account) (*ValidateResult, error) {
	if err := validatePaymentID(req.PaymentID); err != nil {
		return nil, err
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	if req.AmountToCapture != nil && *req.AmountToCapture <= 0 {
		return nil, InvalidDataValue("amount_to_capture")
	}
	return &ValidateResult{MerchantID: m.MerchantID, PaymentID: req.PaymentID, StorageScheme: m.StorageScheme}, nil
}

func (PaymentCapture) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsCaptureRequest, _ *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePaymentStatusAllowed(intent.Status, captureAllowedStatuses, actionCapture); err != nil {
		return nil, nil, err
	}
	amountToCapture := Coalesce(req.AmountToCapture, attempt.AmountToCapture, &intent.Amount)
	if *amountToCapture > intent.Amount {
		return nil, nil, InvalidDataValue("amount_to_capture")
	}
	attempt.AmountToCapture = types.Ptr(*amountToCapture)

	return &PaymentData{
		Intent:          intent,
		Attempt:         attempt,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		AmountToCapture: attempt.AmountToCapture,
	}, nil, nil
}

func (PaymentCapture) GetOrCreateCustomerDetails(context.Context, *Deps, *PaymentData, *CustomerDetails, *merchant.KeyStore) (*types.Customer, error) {
	return nil, nil
}

func (PaymentCapture) MakePaymentMethodData(context.Context, *Deps, *PaymentData, *merchant.KeyStore) error {
	return nil
}

func (PaymentCapture) GetConnector(_ context.Context, _ *Deps, _ *PaymentsCaptureRequest, data *PaymentData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return attemptConnector(data.Attempt)
}

func (PaymentCapture) ShouldCallConnector(*PaymentData) bool { return true }

func (PaymentCapture) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	if data.Attempt.ConnectorTransactionID == nil {
		return types.MissingRequiredField("connector_transaction_id")
	}
	req := types.PaymentsCaptureData{
		AmountToCapture:        *data.AmountToCapture,
		PaymentAmount:          data.Amount,
		Currency:               data.Currency,
		ConnectorTransactionID: *data.Attempt.ConnectorTransactionID,
		ConnectorMeta:          data.Attempt.ConnectorMetadata,
	}
	rd := newRouterData[types.PaymentsCaptureData, types.PaymentsResponseData](types.FlowCapture, data.Intent, data.Attempt, data.Address, choice.Connector, account, req)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.PaymentsCaptureData, types.PaymentsResponseData] {
		return c.Capture()
	}, rd)
	if err != nil {
		return fmt.Errorf("capturing payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyPaymentsResponse(data, out, types.Ptr(types.AttemptCaptureFailed))
}

func (PaymentCapture) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
