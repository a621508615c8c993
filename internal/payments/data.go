// Package payments implements the operation pipeline: one Operation value per
// payment flow, each split into validate, load, resolve, dispatch and persist
// stages that the orchestrator runs in order.
package payments

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
	"github.com/yourorg/payment-router/internal/vault"
)

// Operation is one payment flow. R is the inbound request and D the working
// aggregate the stages share. Every stage may fail; the first failure aborts
// the run and nothing after it executes.
type Operation[R any, D any] interface {
	Name() string
	ValidateRequest(req *R, m *merchant.Account) (*ValidateResult, error)
	GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *R, m *merchant.Account, ks *merchant.KeyStore) (D, *CustomerDetails, error)
	GetOrCreateCustomerDetails(ctx context.Context, deps *Deps, data D, details *CustomerDetails, ks *merchant.KeyStore) (*types.Customer, error)
	MakePaymentMethodData(ctx context.Context, deps *Deps, data D, ks *merchant.KeyStore) error
	GetConnector(ctx context.Context, deps *Deps, req *R, data D, m *merchant.Account) (router.ConnectorChoice, error)
	ShouldCallConnector(data D) bool
	CallConnector(ctx context.Context, deps *Deps, data D, choice router.ConnectorChoice, m *merchant.Account) error
	UpdateTrackers(ctx context.Context, deps *Deps, data D, customer *types.Customer, scheme types.StorageScheme) (D, error)
}

// ConnectorRouter picks the connector for a new authorization.
type ConnectorRouter interface {
	ChooseConnector(ctx context.Context, cfg router.RoutingConfig, override *router.RoutingOverride, in router.Input) (router.ConnectorChoice, error)
}

// Deps are the collaborators shared by every operation.
type Deps struct {
	Store     storage.Store
	Processor *processor.Processor
	Router    ConnectorRouter
	Vault     vault.Vault
	IDs       *IDGenerator
	Logger    logrus.FieldLogger
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *Deps) logger() logrus.FieldLogger {
	if d.Logger == nil {
		return logrus.StandardLogger()
	}
	return d.Logger
}

// ValidateResult is what ValidateRequest hands to the later stages.
type ValidateResult struct {
	MerchantID    string
	PaymentID     string
	RefundID      string
	MandateType   types.MandateTxnType
	StorageScheme types.StorageScheme
	// Requeue only signals that the caller asked for a retry to be scheduled.
	Requeue bool
}

// CustomerDetails are the customer fields a request carried.
type CustomerDetails struct {
	CustomerID *string
	Name       *string
	Email      *string
	Phone      *string
}

// PaymentData is the working copy of a payment. Stages mutate it in place;
// it only reaches storage in UpdateTrackers.
type PaymentData struct {
	Intent  *types.PaymentIntent
	Attempt *types.PaymentAttempt
	// IsNew is set while the intent has never been persisted.
	IsNew bool

	Amount   int64
	Currency types.Currency
	Address  types.PaymentAddress

	PaymentMethodData types.PaymentMethodData
	// Mandate is the stored mandate a recurring payment charges.
	Mandate      *types.Mandate
	SetupMandate *types.MandateData
	MandateType  types.MandateTxnType
	OffSession   *bool

	Email        *string
	CustomerName *string
	Customer     *types.Customer
	// NewCustomer marks Customer for insertion in UpdateTrackers.
	NewCustomer bool

	BusinessProfile    *types.BusinessProfile
	RedirectResponse   *types.RedirectResponse
	AmountToCapture    *int64
	CancellationReason *string
	ForceSync          bool
	Confirm            bool

	// Dispatched is set once the connector answered, successfully or not.
	Dispatched bool
	// ConnectorMandateID is returned by connectors that set up a mandate.
	ConnectorMandateID *string
	Redirection        *types.RedirectForm
}

// RefundData is the working copy of a refund and the payment it belongs to.
type RefundData struct {
	Intent     *types.PaymentIntent
	Attempt    *types.PaymentAttempt
	Refund     *types.Refund
	IsNew      bool
	ForceSync  bool
	Dispatched bool
}

type RetryAction string

const (
	RetryActionRequeue     RetryAction = "requeue"
	RetryActionManualRetry RetryAction = "manual_retry"
)

// PaymentsRequest is the body of create, confirm and complete-authorize calls.
// Every field is optional; what is required depends on the operation.
type PaymentsRequest struct {
	PaymentID                 *string                      `json:"payment_id,omitempty"`
	MerchantID                *string                      `json:"merchant_id,omitempty"`
	Amount                    *int64                       `json:"amount,omitempty"`
	Currency                  *types.Currency              `json:"currency,omitempty"`
	Confirm                   *bool                        `json:"confirm,omitempty"`
	CaptureMethod             *types.CaptureMethod         `json:"capture_method,omitempty"`
	AmountToCapture           *int64                       `json:"amount_to_capture,omitempty"`
	CustomerID                *string                      `json:"customer_id,omitempty"`
	Email                     *string                      `json:"email,omitempty"`
	Name                      *string                      `json:"name,omitempty"`
	Phone                     *string                      `json:"phone,omitempty"`
	Description               *string                      `json:"description,omitempty"`
	ReturnURL                 *string                      `json:"return_url,omitempty"`
	SetupFutureUsage          *types.FutureUsage           `json:"setup_future_usage,omitempty"`
	StatementDescriptor       *string                      `json:"statement_descriptor,omitempty"`
	PaymentMethod             *types.PaymentMethod         `json:"payment_method,omitempty"`
	PaymentMethodType         *string                      `json:"payment_method_type,omitempty"`
	PaymentMethodData         *types.PaymentMethodDataJSON `json:"payment_method_data,omitempty"`
	PaymentToken              *string                      `json:"payment_token,omitempty"`
	MandateID                 *string                      `json:"mandate_id,omitempty"`
	MandateData               *types.MandateData           `json:"mandate_data,omitempty"`
	OffSession                *bool                        `json:"off_session,omitempty"`
	BrowserInfo               *types.BrowserInformation    `json:"browser_info,omitempty"`
	Shipping                  *types.AddressDetails        `json:"shipping,omitempty"`
	Billing                   *types.AddressDetails        `json:"billing,omitempty"`
	ProfileID                 *string                      `json:"profile_id,omitempty"`
	Routing                   *router.RoutingOverride      `json:"routing,omitempty"`
	Metadata                  *types.JSONValue             `json:"metadata,omitempty"`
	ConnectorMetadata         *types.JSONValue             `json:"connector_metadata,omitempty"`
	FeatureMetadata           *types.JSONValue             `json:"feature_metadata,omitempty"`
	AllowedPaymentMethodTypes *types.JSONValue             `json:"allowed_payment_method_types,omitempty"`
	RetryAction               *RetryAction                 `json:"retry_action,omitempty"`
}

func (r *PaymentsRequest) paymentMethodData() types.PaymentMethodData {
	if r.PaymentMethodData == nil {
		return nil
	}
	return r.PaymentMethodData.Data
}

func (r *PaymentsRequest) customerDetails() *CustomerDetails {
	if r.CustomerID == nil && r.Name == nil && r.Email == nil && r.Phone == nil {
		return nil
	}
	return &CustomerDetails{CustomerID: r.CustomerID, Name: r.Name, Email: r.Email, Phone: r.Phone}
}

type PaymentsCaptureRequest struct {
	PaymentID       string  `json:"payment_id"`
	MerchantID      *string `json:"merchant_id,omitempty"`
	AmountToCapture *int64  `json:"amount_to_capture,omitempty"`
}

type PaymentsCancelRequest struct {
	PaymentID          string  `json:"payment_id"`
	MerchantID         *string `json:"merchant_id,omitempty"`
	CancellationReason *string `json:"cancellation_reason,omitempty"`
}

type PaymentsRetrieveRequest struct {
	PaymentID  string  `json:"payment_id"`
	MerchantID *string `json:"merchant_id,omitempty"`
	ForceSync  bool    `json:"force_sync"`
}

type RefundRequest struct {
	RefundID   *string `json:"refund_id,omitempty"`
	PaymentID  string  `json:"payment_id"`
	MerchantID *string `json:"merchant_id,omitempty"`
	Amount     *int64  `json:"amount,omitempty"`
	Reason     *string `json:"reason,omitempty"`
}

type RefundsRetrieveRequest struct {
	RefundID   string  `json:"refund_id"`
	MerchantID *string `json:"merchant_id,omitempty"`
	ForceSync  bool    `json:"force_sync"`
}
