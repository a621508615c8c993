package payments

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
)

const maxIDLength = 64

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidatePaymentStatusAgainstNotAllowedStatuses rejects the action when the
// intent is in one of the listed statuses.
func ValidatePaymentStatusAgainstNotAllowedStatuses(status types.IntentStatus, notAllowed []types.IntentStatus, action string) error {
	if slices.Contains(notAllowed, status) {
		return statusNotAllowed(status, action)
	}
	return nil
}

// ValidatePaymentStatusAllowed rejects the action unless the intent is in one
// of the listed statuses.
func ValidatePaymentStatusAllowed(status types.IntentStatus, allowed []types.IntentStatus, action string) error {
	if !slices.Contains(allowed, status) {
		return statusNotAllowed(status, action)
	}
	return nil
}

func statusNotAllowed(status types.IntentStatus, action string) *Error {
	return PaymentUnexpectedState(fmt.Sprintf("%s is not allowed in current status: %s", action, status))
}

const (
	actionConfirm = "confirm"
	actionCapture = "capture"
	actionCancel  = "cancel"
	actionRefund  = "refund"
)

func validateMerchantID(m *merchant.Account, requested *string) error {
	if requested != nil && *requested != m.MerchantID {
		return InvalidDataFormat("merchant_id", "merchant_id from merchant account")
	}
	return nil
}

func validateID(field, id string) error {
	if len(id) > maxIDLength || !idPattern.MatchString(id) {
		return InvalidDataFormat(field, fmt.Sprintf("at most %d characters of [A-Za-z0-9_-]", maxIDLength))
	}
	return nil
}

// validatePaymentID treats an absent id as an unknown payment.
func validatePaymentID(id string) error {
	if id == "" {
		return PaymentNotFound()
	}
	return validateID("payment_id", id)
}

func validatePaymentMethodFields(pm *types.PaymentMethod, pmType *string, pmd types.PaymentMethodData) error {
	if pm == nil && pmType != nil {
		return MissingRequiredField("payment_method")
	}
	if pmd == nil {
		return nil
	}
	if pm != nil && *pm != pmd.PaymentMethod() {
		return InvalidDataValue("payment_method")
	}
	if pmType != nil && *pmType != pmd.PaymentMethodType() {
		return InvalidDataValue("payment_method_type")
	}
	return nil
}

// validateMandate resolves the mandate transaction type and checks the
// fields each type depends on.
func validateMandate(req *PaymentsRequest, isConfirmOperation bool) (types.MandateTxnType, error) {
	switch {
	case req.MandateData == nil && req.MandateID == nil:
		return types.MandateTxnNone, nil
	case req.MandateData != nil && req.MandateID != nil:
		return "", PreconditionFailed("expected one out of mandate_id and mandate_data but got both")
	case req.MandateID != nil:
		if req.CustomerID == nil {
			return "", PreconditionFailed("customer_id is mandatory for mandates")
		}
		if !isConfirmOperation && (req.Confirm == nil || !*req.Confirm) {
			return "", PreconditionFailed("`confirm` must be `true` for mandates")
		}
		if req.OffSession == nil || !*req.OffSession {
			return "", PreconditionFailed("`off_session` should be `true` for mandates")
		}
		return types.MandateTxnRecurring, nil
	default:
		if req.CustomerID == nil {
			return "", PreconditionFailed("customer_id is mandatory for mandates")
		}
		if req.SetupFutureUsage == nil || *req.SetupFutureUsage != types.FutureUsageOffSession {
			return "", PreconditionFailed("`setup_future_usage` must be `off_session` for mandates")
		}
		if req.MandateData.CustomerAcceptance == nil {
			return "", PreconditionFailed("`customer_acceptance` is mandatory for mandates")
		}
		return types.MandateTxnNew, nil
	}
}

func requeue(action *RetryAction) bool {
	return action != nil && *action == RetryActionRequeue
}

func loadPayment(ctx context.Context, deps *Deps, paymentID, merchantID string, scheme types.StorageScheme) (*types.PaymentIntent, *types.PaymentAttempt, error) {
	intent, err := deps.Store.FindPaymentIntent(ctx, paymentID, merchantID, scheme)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, PaymentNotFound().wrap(err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find payment intent %s: %w", paymentID, err)
	}
	attempt, err := deps.Store.FindPaymentAttempt(ctx, paymentID, merchantID, intent.ActiveAttemptID, scheme)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, PaymentNotFound().wrap(err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find payment attempt %s: %w", intent.ActiveAttemptID, err)
	}
	return intent, attempt, nil
}

// mergePaymentsRequest folds an incoming request into the persisted intent
// and attempt, keeping every persisted field the request leaves out.
func mergePaymentsRequest(intent *types.PaymentIntent, attempt *types.PaymentAttempt, req *PaymentsRequest) {
	if req.Amount != nil {
		intent.Amount = *req.Amount
		attempt.Amount = *req.Amount
	}
	if req.Currency != nil {
		intent.Currency = *req.Currency
		attempt.Currency = *req.Currency
	}
	intent.CustomerID = Coalesce(req.CustomerID, intent.CustomerID)
	intent.Description = Coalesce(req.Description, intent.Description)
	intent.ReturnURL = Coalesce(req.ReturnURL, intent.ReturnURL)
	intent.SetupFutureUsage = Coalesce(req.SetupFutureUsage, intent.SetupFutureUsage)
	intent.StatementDescriptor = Coalesce(req.StatementDescriptor, intent.StatementDescriptor)
	intent.ProfileID = Coalesce(req.ProfileID, intent.ProfileID)
	intent.Metadata = Coalesce(req.Metadata.Get(), intent.Metadata)
	intent.ConnectorMetadata = Coalesce(req.ConnectorMetadata.Get(), intent.ConnectorMetadata)
	intent.FeatureMetadata = Coalesce(req.FeatureMetadata.Get(), intent.FeatureMetadata)
	intent.AllowedPaymentMethodTypes = Coalesce(req.AllowedPaymentMethodTypes.Get(), intent.AllowedPaymentMethodTypes)

	attempt.PaymentMethod = Coalesce(req.PaymentMethod, attempt.PaymentMethod)
	attempt.PaymentMethodType = Coalesce(req.PaymentMethodType, attempt.PaymentMethodType)
	attempt.PaymentToken = Coalesce(req.PaymentToken, attempt.PaymentToken)
	attempt.BrowserInfo = Coalesce(req.BrowserInfo, attempt.BrowserInfo)
	attempt.CaptureMethod = Coalesce(req.CaptureMethod, attempt.CaptureMethod)
	attempt.AmountToCapture = Coalesce(req.AmountToCapture, attempt.AmountToCapture)
	attempt.MandateID = Coalesce(req.MandateID, attempt.MandateID)
}

func requireCustomerForFutureUsage(intent *types.PaymentIntent) error {
	if intent.SetupFutureUsage != nil && intent.CustomerID == nil {
		return MissingRequiredField("customer_id")
	}
	return nil
}

// resolveAddresses finds or creates the shipping and billing addresses named
// by the request or already linked to the intent, and links them.
func resolveAddresses(ctx context.Context, deps *Deps, intent *types.PaymentIntent, shipping, billing *types.AddressDetails, scheme types.StorageScheme) (types.PaymentAddress, error) {
	find := func(kind string, details *types.AddressDetails, existing *string) (*types.Address, error) {
		addr, err := deps.Store.FindOrCreateAddress(ctx, storage.AddressRequest{
			Details:    details,
			ExistingID: existing,
			MerchantID: intent.MerchantID,
			CustomerID: intent.CustomerID,
			PaymentID:  intent.PaymentID,
		}, scheme)
		if err != nil {
			return nil, fmt.Errorf("failed to find or create %s address: %w", kind, err)
		}
		return addr, nil
	}

	ship, err := find("shipping", shipping, intent.ShippingAddressID)
	if err != nil {
		return types.PaymentAddress{}, err
	}
	bill, err := find("billing", billing, intent.BillingAddressID)
	if err != nil {
		return types.PaymentAddress{}, err
	}
	if ship != nil {
		intent.ShippingAddressID = &ship.AddressID
	}
	if bill != nil {
		intent.BillingAddressID = &bill.AddressID
	}
	return types.PaymentAddress{Shipping: ship, Billing: bill}, nil
}

func findBusinessProfile(ctx context.Context, deps *Deps, profileID string) (*types.BusinessProfile, error) {
	profile, err := deps.Store.FindBusinessProfile(ctx, profileID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, BusinessProfileNotFound(profileID).wrap(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find business profile %s: %w", profileID, err)
	}
	return profile, nil
}

// findMandate loads the mandate a recurring payment charges.
func findMandate(ctx context.Context, deps *Deps, mandateID, merchantID string, customerID *string) (*types.Mandate, error) {
	m, err := deps.Store.FindMandate(ctx, mandateID, merchantID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, MandateNotFound().wrap(err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mandate %s: %w", mandateID, err)
	}
	if m.Status != types.MandateActive {
		return nil, PreconditionFailed("mandate is not active")
	}
	if customerID != nil && *customerID != m.CustomerID {
		return nil, PreconditionFailed("customer_id must match mandate customer_id")
	}
	return m, nil
}

// redirectResponseFrom reads feature_metadata.redirect_response.
func redirectResponseFrom(feature *structpb.Value) *types.RedirectResponse {
	rr := feature.GetStructValue().GetFields()["redirect_response"].GetStructValue()
	if rr == nil {
		return nil
	}
	out := &types.RedirectResponse{}
	if p := rr.GetFields()["param"].GetStringValue(); p != "" {
		out.Params = &p
	}
	if payload, ok := rr.GetFields()["json_payload"]; ok {
		out.Payload = payload
	}
	return out
}

// resolveCustomer finds the customer the payment names. An unknown id yields
// a new customer that UpdateTrackers inserts; no id means a guest payment.
func resolveCustomer(ctx context.Context, deps *Deps, data *PaymentData, details *CustomerDetails) (*types.Customer, error) {
	if details == nil {
		details = &CustomerDetails{}
	}
	customerID := Coalesce(details.CustomerID, data.Intent.CustomerID)
	if customerID == nil {
		return nil, nil
	}
	data.Intent.CustomerID = customerID

	customer, err := deps.Store.FindCustomer(ctx, *customerID, data.Intent.MerchantID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		customer = &types.Customer{
			CustomerID: *customerID,
			MerchantID: data.Intent.MerchantID,
			Name:       details.Name,
			Email:      details.Email,
			Phone:      details.Phone,
			CreatedAt:  deps.now(),
		}
		data.NewCustomer = true
	default:
		return nil, fmt.Errorf("failed to find customer %s: %w", *customerID, err)
	}

	data.Customer = customer
	data.Email = Coalesce(details.Email, data.Email, customer.Email)
	data.CustomerName = Coalesce(details.Name, data.CustomerName, customer.Name)
	return customer, nil
}

// resolvePaymentMethodData settles the payment method the connector will see.
// Raw data from the request is vaulted so a later confirm can use the token.
func resolvePaymentMethodData(ctx context.Context, deps *Deps, data *PaymentData, ks *merchant.KeyStore) error {
	switch {
	case data.Mandate != nil:
		data.PaymentMethodData = types.MandatePayment{}
	case data.PaymentMethodData != nil:
		token, err := deps.Vault.Tokenize(ctx, ks, data.PaymentMethodData)
		if err != nil {
			return fmt.Errorf("failed to tokenize payment method: %w", err)
		}
		data.Attempt.PaymentToken = &token
	case data.Attempt.PaymentToken != nil:
		pmd, err := deps.Vault.Lookup(ctx, ks, *data.Attempt.PaymentToken)
		if err != nil {
			return fmt.Errorf("failed to look up payment token: %w", err)
		}
		data.PaymentMethodData = pmd
	default:
		return nil
	}
	pm := data.PaymentMethodData.PaymentMethod()
	pmType := data.PaymentMethodData.PaymentMethodType()
	data.Attempt.PaymentMethod = &pm
	data.Attempt.PaymentMethodType = &pmType
	return nil
}

func persistPayment(ctx context.Context, deps *Deps, data *PaymentData, scheme types.StorageScheme) error {
	now := deps.now()
	data.Intent.ModifiedAt = now
	data.Attempt.ModifiedAt = now

	intent, attempt, err := deps.Store.Persist(ctx, data.Intent, data.Attempt, scheme)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrConflict) && data.IsNew:
		return DuplicatePayment(data.Intent.PaymentID).wrap(err)
	case errors.Is(err, storage.ErrConflict):
		return PaymentUnexpectedState("payment was modified concurrently").wrap(err)
	case errors.Is(err, storage.ErrNotFound):
		return PaymentNotFound().wrap(err)
	default:
		return fmt.Errorf("failed to persist payment %s: %w", data.Intent.PaymentID, err)
	}
	data.Intent, data.Attempt, data.IsNew = intent, attempt, false
	return nil
}

// updatePaymentTrackers is the write path shared by the payment operations:
// customer and mandate first, then the intent and attempt as the last write.
func updatePaymentTrackers(ctx context.Context, deps *Deps, data *PaymentData, customer *types.Customer, scheme types.StorageScheme) (*PaymentData, error) {
	if customer != nil && data.NewCustomer {
		err := deps.Store.InsertCustomer(ctx, customer)
		if err != nil && !errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("failed to insert customer %s: %w", customer.CustomerID, err)
		}
		data.NewCustomer = false
	}
	if mandate := newMandate(deps, data); mandate != nil {
		if err := deps.Store.InsertMandate(ctx, mandate); err != nil {
			return nil, fmt.Errorf("failed to insert mandate for payment %s: %w", data.Intent.PaymentID, err)
		}
		data.Attempt.MandateID = &mandate.MandateID
	}
	if err := persistPayment(ctx, deps, data, scheme); err != nil {
		return nil, err
	}
	return data, nil
}

// newMandate returns the mandate a successful setup-mandate payment creates.
func newMandate(deps *Deps, data *PaymentData) *types.Mandate {
	if data.SetupMandate == nil || data.Customer == nil || !data.Dispatched || data.Attempt.Connector == nil {
		return nil
	}
	switch data.Attempt.Status {
	case types.AttemptCharged, types.AttemptAuthorized:
	default:
		return nil
	}
	pm := types.MethodCard
	if data.Attempt.PaymentMethod != nil {
		pm = *data.Attempt.PaymentMethod
	}
	return &types.Mandate{
		MandateID:          deps.IDs.MandateID(),
		MerchantID:         data.Intent.MerchantID,
		CustomerID:         data.Customer.CustomerID,
		Status:             types.MandateActive,
		Type:               data.SetupMandate.Type,
		PaymentMethod:      pm,
		Connector:          *data.Attempt.Connector,
		ConnectorMandateID: data.ConnectorMandateID,
		OriginalPaymentID:  data.Intent.PaymentID,
		CreatedAt:          deps.now(),
	}
}
