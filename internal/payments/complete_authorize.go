package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

// CompleteAuthorize finishes an authorization that stopped for customer
// action, such as a 3DS challenge, using what the browser sent back.
type CompleteAuthorize struct{}

var _ Operation[PaymentsRequest, *PaymentData] = CompleteAuthorize{}

var completeAuthorizeNotAllowedStatuses = []types.IntentStatus{
	types.IntentFailed,
	types.IntentSucceeded,
	types.IntentCancelled,
}

func (CompleteAuthorize) Name() string { return "complete_authorize" }

func (CompleteAuthorize) ValidateRequest(req *PaymentsRequest, m *merchant.Account) (*ValidateResult, error) {
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

func (CompleteAuthorize) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsRequest, _ *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePaymentStatusAgainstNotAllowedStatuses(intent.Status, completeAuthorizeNotAllowedStatuses, actionConfirm); err != nil {
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
		RedirectResponse:  redirectResponseFrom(intent.FeatureMetadata),
		Confirm:           true,
	}
	if data.Address, err = resolveAddresses(ctx, deps, intent, req.Shipping, req.Billing, vr.StorageScheme); err != nil {
		return nil, nil, err
	}
	if intent.ProfileID == nil {
		return nil, nil, InternalServerError(errors.New("profile_id is not set in payment_intent"))
	}
	if data.BusinessProfile, err = findBusinessProfile(ctx, deps, *intent.ProfileID); err != nil {
		return nil, nil, err
	}
	if attempt.MandateID != nil {
		if data.Mandate, err = findMandate(ctx, deps, *attempt.MandateID, vr.MerchantID, intent.CustomerID); err != nil {
			return nil, nil, err
		}
	}
	return data, req.customerDetails(), nil
}

func (CompleteAuthorize) GetOrCreateCustomerDetails(ctx context.Context, deps *Deps, data *PaymentData, details *CustomerDetails, _ *merchant.KeyStore) (*types.Customer, error) {
	return resolveCustomer(ctx, deps, data, details)
}

// MakePaymentMethodData is best effort: most connectors finish the
// authorization from the redirect response alone.
func (CompleteAuthorize) MakePaymentMethodData(ctx context.Context, deps *Deps, data *PaymentData, ks *merchant.KeyStore) error {
	return resolvePaymentMethodData(ctx, deps, data, ks)
}

func (CompleteAuthorize) GetConnector(_ context.Context, _ *Deps, _ *PaymentsRequest, data *PaymentData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return attemptConnector(data.Attempt)
}

func (CompleteAuthorize) ShouldCallConnector(*PaymentData) bool { return true }

func (CompleteAuthorize) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	req := types.CompleteAuthorizeData{
		PaymentMethodData:      data.PaymentMethodData,
		Amount:                 data.Amount,
		Currency:               data.Currency,
		CaptureMethod:          data.Attempt.CaptureMethod,
		BrowserInfo:            data.Attempt.BrowserInfo,
		Email:                  data.Email,
		ConnectorTransactionID: data.Attempt.ConnectorTransactionID,
		RedirectResponse:       data.RedirectResponse,
		ConnectorMeta:          data.Attempt.ConnectorMetadata,
	}
	if data.Mandate != nil {
		req.ConnectorMandateID = data.Mandate.ConnectorMandateID
	}
	rd := newRouterData[types.CompleteAuthorizeData, types.PaymentsResponseData](types.FlowCompleteAuthorize, data.Intent, data.Attempt, data.Address, choice.Connector, account, req)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.CompleteAuthorizeData, types.PaymentsResponseData] {
		return c.CompleteAuthorize()
	}, rd)
	if err != nil {
		return fmt.Errorf("completing authorization of payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyPaymentsResponse(data, out, types.Ptr(types.AttemptFailure))
}

func (CompleteAuthorize) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
