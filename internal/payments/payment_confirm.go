package payments

import (
	"context"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

// PaymentConfirm authorizes a payment created earlier without confirm.
type PaymentConfirm struct{}

var _ Operation[PaymentsRequest, *PaymentData] = PaymentConfirm{}

var confirmAllowedStatuses = []types.IntentStatus{
	types.IntentRequiresPaymentMethod,
	types.IntentRequiresConfirmation,
}

func (PaymentConfirm) Name() string { return "payment_confirm" }

func (PaymentConfirm) ValidateRequest(req *PaymentsRequest, m *merchant.Account) (*ValidateResult, error) {
	var paymentID string
	if req.PaymentID != nil {
		paymentID = *req.PaymentID
	}
	if err := validatePaymentID(paymentID); err != nil {
		return nil, err
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, InvalidDataValue("amount")
	}
	if err := validatePaymentMethodFields(req.PaymentMethod, req.PaymentMethodType, req.paymentMethodData()); err != nil {
		return nil, err
	}
	mandateType, err := validateMandate(req, true)
	if err != nil {
		return nil, err
	}
	return &ValidateResult{
		MerchantID:    m.MerchantID,
		PaymentID:     paymentID,
		MandateType:   mandateType,
		StorageScheme: m.StorageScheme,
		Requeue:       requeue(req.RetryAction),
	}, nil
}

func (PaymentConfirm) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsRequest, _ *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePaymentStatusAllowed(intent.Status, confirmAllowedStatuses, actionConfirm); err != nil {
		return nil, nil, err
	}

	mergePaymentsRequest(intent, attempt, req)
	if intent.Currency == "" {
		return nil, nil, MissingRequiredField("currency")
	}
	if err := requireCustomerForFutureUsage(intent); err != nil {
		return nil, nil, err
	}

	data := &PaymentData{
		Intent:            intent,
		Attempt:           attempt,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		PaymentMethodData: req.paymentMethodData(),
		SetupMandate:      req.MandateData,
		MandateType:       vr.MandateType,
		OffSession:        req.OffSession,
		Email:             req.Email,
		CustomerName:      req.Name,
		Confirm:           true,
	}
	if intent.ProfileID != nil {
		if data.BusinessProfile, err = findBusinessProfile(ctx, deps, *intent.ProfileID); err != nil {
			return nil, nil, err
		}
	}
	if attempt.MandateID != nil {
		if data.Mandate, err = findMandate(ctx, deps, *attempt.MandateID, vr.MerchantID, intent.CustomerID); err != nil {
			return nil, nil, err
		}
	}
	if data.Address, err = resolveAddresses(ctx, deps, intent, req.Shipping, req.Billing, vr.StorageScheme); err != nil {
		return nil, nil, err
	}
	return data, req.customerDetails(), nil
}

func (PaymentConfirm) GetOrCreateCustomerDetails(ctx context.Context, deps *Deps, data *PaymentData, details *CustomerDetails, _ *merchant.KeyStore) (*types.Customer, error) {
	return resolveCustomer(ctx, deps, data, details)
}

func (PaymentConfirm) MakePaymentMethodData(ctx context.Context, deps *Deps, data *PaymentData, ks *merchant.KeyStore) error {
	return resolvePaymentMethodData(ctx, deps, data, ks)
}

func (PaymentConfirm) GetConnector(ctx context.Context, deps *Deps, req *PaymentsRequest, data *PaymentData, m *merchant.Account) (router.ConnectorChoice, error) {
	return chooseAuthorizeConnector(ctx, deps, req.Routing, data, m)
}

func (PaymentConfirm) ShouldCallConnector(*PaymentData) bool { return true }

func (PaymentConfirm) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	return callAuthorize(ctx, deps, data, choice, m)
}

func (PaymentConfirm) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
