package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
)

// PaymentCreate records a new payment and, with confirm=true, authorizes it
// in the same call.
type PaymentCreate struct{}

var _ Operation[PaymentsRequest, *PaymentData] = PaymentCreate{}

func (PaymentCreate) Name() string { return "payment_create" }

func (PaymentCreate) ValidateRequest(req *PaymentsRequest, m *merchant.Account) (*ValidateResult, error) {
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	var paymentID string
	if req.PaymentID != nil {
		if err := validateID("payment_id", *req.PaymentID); err != nil {
			return nil, err
		}
		paymentID = *req.PaymentID
	}
	if req.Amount == nil {
		return nil, MissingRequiredField("amount")
	}
	if *req.Amount <= 0 {
		return nil, InvalidDataValue("amount")
	}
	if req.Currency == nil {
		return nil, MissingRequiredField("currency")
	}
	if _, err := types.ParseCurrency(string(*req.Currency)); err != nil {
		return nil, InvalidDataValue("currency").wrap(err)
	}
	if req.AmountToCapture != nil && (*req.AmountToCapture <= 0 || *req.AmountToCapture > *req.Amount) {
		return nil, InvalidDataValue("amount_to_capture")
	}
	if err := validatePaymentMethodFields(req.PaymentMethod, req.PaymentMethodType, req.paymentMethodData()); err != nil {
		return nil, err
	}
	mandateType, err := validateMandate(req, false)
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

func (PaymentCreate) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *PaymentsRequest, m *merchant.Account, _ *merchant.KeyStore) (*PaymentData, *CustomerDetails, error) {
	if vr.PaymentID == "" {
		vr.PaymentID = deps.IDs.PaymentID()
	}
	paymentID := vr.PaymentID

	_, err := deps.Store.FindPaymentIntent(ctx, paymentID, vr.MerchantID, vr.StorageScheme)
	switch {
	case err == nil:
		return nil, nil, DuplicatePayment(paymentID)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, nil, fmt.Errorf("failed to check for payment %s: %w", paymentID, err)
	}

	pmd := req.paymentMethodData()
	intentStatus, attemptStatus := types.IntentRequiresPaymentMethod, types.AttemptPaymentMethodAwaited
	if pmd != nil || req.PaymentToken != nil || req.MandateID != nil {
		intentStatus, attemptStatus = types.IntentRequiresConfirmation, types.AttemptConfirmationAwaited
	}
	captureMethod := Coalesce(req.CaptureMethod, types.Ptr(types.CaptureAutomatic))
	now := deps.now()
	attemptID := AttemptID(paymentID, 1)

	intent := &types.PaymentIntent{
		PaymentID:                 paymentID,
		MerchantID:                vr.MerchantID,
		Status:                    intentStatus,
		Amount:                    *req.Amount,
		Currency:                  *req.Currency,
		CustomerID:                req.CustomerID,
		Description:               req.Description,
		ReturnURL:                 Coalesce(req.ReturnURL, m.ReturnURL),
		SetupFutureUsage:          req.SetupFutureUsage,
		StatementDescriptor:       req.StatementDescriptor,
		Metadata:                  req.Metadata.Get(),
		AllowedPaymentMethodTypes: req.AllowedPaymentMethodTypes.Get(),
		ConnectorMetadata:         req.ConnectorMetadata.Get(),
		FeatureMetadata:           req.FeatureMetadata.Get(),
		ActiveAttemptID:           attemptID,
		AttemptCount:              1,
		ProfileID:                 Coalesce(req.ProfileID, m.DefaultProfileID),
		CreatedAt:                 now,
		ModifiedAt:                now,
	}
	attempt := &types.PaymentAttempt{
		AttemptID:         attemptID,
		PaymentID:         paymentID,
		MerchantID:        vr.MerchantID,
		Status:            attemptStatus,
		Amount:            *req.Amount,
		Currency:          *req.Currency,
		PaymentMethod:     req.PaymentMethod,
		PaymentMethodType: req.PaymentMethodType,
		PaymentToken:      req.PaymentToken,
		BrowserInfo:       req.BrowserInfo,
		CaptureMethod:     captureMethod,
		AmountToCapture:   req.AmountToCapture,
		MandateID:         req.MandateID,
		CreatedAt:         now,
		ModifiedAt:        now,
	}
	if err := requireCustomerForFutureUsage(intent); err != nil {
		return nil, nil, err
	}

	data := &PaymentData{
		Intent:            intent,
		Attempt:           attempt,
		IsNew:             true,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		PaymentMethodData: pmd,
		SetupMandate:      req.MandateData,
		MandateType:       vr.MandateType,
		OffSession:        req.OffSession,
		Email:             req.Email,
		CustomerName:      req.Name,
		Confirm:           req.Confirm != nil && *req.Confirm,
	}
	if intent.ProfileID != nil {
		if data.BusinessProfile, err = findBusinessProfile(ctx, deps, *intent.ProfileID); err != nil {
			return nil, nil, err
		}
	}
	if req.MandateID != nil {
		if data.Mandate, err = findMandate(ctx, deps, *req.MandateID, vr.MerchantID, req.CustomerID); err != nil {
			return nil, nil, err
		}
	}
	if data.Address, err = resolveAddresses(ctx, deps, intent, req.Shipping, req.Billing, vr.StorageScheme); err != nil {
		return nil, nil, err
	}
	return data, req.customerDetails(), nil
}

func (PaymentCreate) GetOrCreateCustomerDetails(ctx context.Context, deps *Deps, data *PaymentData, details *CustomerDetails, _ *merchant.KeyStore) (*types.Customer, error) {
	return resolveCustomer(ctx, deps, data, details)
}

func (PaymentCreate) MakePaymentMethodData(ctx context.Context, deps *Deps, data *PaymentData, ks *merchant.KeyStore) error {
	return resolvePaymentMethodData(ctx, deps, data, ks)
}

func (PaymentCreate) GetConnector(ctx context.Context, deps *Deps, req *PaymentsRequest, data *PaymentData, m *merchant.Account) (router.ConnectorChoice, error) {
	return chooseAuthorizeConnector(ctx, deps, req.Routing, data, m)
}

func (PaymentCreate) ShouldCallConnector(data *PaymentData) bool { return data.Confirm }

func (PaymentCreate) CallConnector(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	return callAuthorize(ctx, deps, data, choice, m)
}

func (PaymentCreate) UpdateTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	return updatePaymentTrackers(ctx, deps, data, customer, scheme)
}
