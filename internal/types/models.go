package types

import (
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// PaymentIntent is the merchant-level record of a payment's lifecycle.
// It is never deleted, only moved to a terminal status.
type PaymentIntent struct {
	PaymentID           string       `json:"payment_id"`
	MerchantID          string       `json:"merchant_id"`
	Status              IntentStatus `json:"status"`
	Amount              int64        `json:"amount"`
	Currency            Currency     `json:"currency"`
	AmountCaptured      *int64       `json:"amount_captured,omitempty"`
	CustomerID          *string      `json:"customer_id,omitempty"`
	Description         *string      `json:"description,omitempty"`
	ReturnURL           *string      `json:"return_url,omitempty"`
	ShippingAddressID   *string      `json:"shipping_address_id,omitempty"`
	BillingAddressID    *string      `json:"billing_address_id,omitempty"`
	SetupFutureUsage    *FutureUsage `json:"setup_future_usage,omitempty"`
	StatementDescriptor *string      `json:"statement_descriptor,omitempty"`

	// Opaque structured blobs, merged by presence.
	Metadata                  *structpb.Value `json:"metadata,omitempty"`
	AllowedPaymentMethodTypes *structpb.Value `json:"allowed_payment_method_types,omitempty"`
	ConnectorMetadata         *structpb.Value `json:"connector_metadata,omitempty"`
	FeatureMetadata           *structpb.Value `json:"feature_metadata,omitempty"`

	ActiveAttemptID string    `json:"active_attempt_id"`
	AttemptCount    int       `json:"attempt_count"`
	ProfileID       *string   `json:"profile_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ModifiedAt      time.Time `json:"modified_at"`
	// Version is bumped by the store on every persist.
	Version int64 `json:"-"`
}

func (p *PaymentIntent) Clone() *PaymentIntent {
	if p == nil {
		return nil
	}
	c := *p
	c.AmountCaptured = clonePtr(p.AmountCaptured)
	c.CustomerID = clonePtr(p.CustomerID)
	c.Description = clonePtr(p.Description)
	c.ReturnURL = clonePtr(p.ReturnURL)
	c.ShippingAddressID = clonePtr(p.ShippingAddressID)
	c.BillingAddressID = clonePtr(p.BillingAddressID)
	c.SetupFutureUsage = clonePtr(p.SetupFutureUsage)
	c.StatementDescriptor = clonePtr(p.StatementDescriptor)
	c.ProfileID = clonePtr(p.ProfileID)
	c.Metadata = cloneValue(p.Metadata)
	c.AllowedPaymentMethodTypes = cloneValue(p.AllowedPaymentMethodTypes)
	c.ConnectorMetadata = cloneValue(p.ConnectorMetadata)
	c.FeatureMetadata = cloneValue(p.FeatureMetadata)
	return &c
}

// PaymentAttempt is one dispatch try against a connector.
type PaymentAttempt struct {
	AttemptID                    string              `json:"attempt_id"`
	PaymentID                    string              `json:"payment_id"`
	MerchantID                   string              `json:"merchant_id"`
	Status                       AttemptStatus       `json:"status"`
	Amount                       int64               `json:"amount"`
	Currency                     Currency            `json:"currency"`
	Connector                    *string             `json:"connector,omitempty"`
	ConnectorTransactionID       *string             `json:"connector_transaction_id,omitempty"`
	ConnectorResponseReferenceID *string             `json:"connector_response_reference_id,omitempty"`
	PaymentMethod                *PaymentMethod      `json:"payment_method,omitempty"`
	PaymentMethodType            *string             `json:"payment_method_type,omitempty"`
	PaymentToken                 *string             `json:"payment_token,omitempty"`
	BrowserInfo                  *BrowserInformation `json:"browser_info,omitempty"`
	CaptureMethod                *CaptureMethod      `json:"capture_method,omitempty"`
	AmountToCapture              *int64              `json:"amount_to_capture,omitempty"`
	MandateID                    *string             `json:"mandate_id,omitempty"`
	AuthenticationURL            *string             `json:"authentication_url,omitempty"`
	ErrorCode                    *string             `json:"error_code,omitempty"`
	ErrorMessage                 *string             `json:"error_message,omitempty"`
	ErrorReason                  *string             `json:"error_reason,omitempty"`
	CancellationReason           *string             `json:"cancellation_reason,omitempty"`
	ConnectorMetadata            *structpb.Value     `json:"connector_metadata,omitempty"`
	CreatedAt                    time.Time           `json:"created_at"`
	ModifiedAt                   time.Time           `json:"modified_at"`
}

func (a *PaymentAttempt) Clone() *PaymentAttempt {
	if a == nil {
		return nil
	}
	c := *a
	c.Connector = clonePtr(a.Connector)
	c.ConnectorTransactionID = clonePtr(a.ConnectorTransactionID)
	c.ConnectorResponseReferenceID = clonePtr(a.ConnectorResponseReferenceID)
	c.PaymentMethod = clonePtr(a.PaymentMethod)
	c.PaymentMethodType = clonePtr(a.PaymentMethodType)
	c.PaymentToken = clonePtr(a.PaymentToken)
	if a.BrowserInfo != nil {
		bi := a.BrowserInfo.Clone()
		c.BrowserInfo = &bi
	}
	c.CaptureMethod = clonePtr(a.CaptureMethod)
	c.AmountToCapture = clonePtr(a.AmountToCapture)
	c.MandateID = clonePtr(a.MandateID)
	c.AuthenticationURL = clonePtr(a.AuthenticationURL)
	c.ErrorCode = clonePtr(a.ErrorCode)
	c.ErrorMessage = clonePtr(a.ErrorMessage)
	c.ErrorReason = clonePtr(a.ErrorReason)
	c.CancellationReason = clonePtr(a.CancellationReason)
	c.ConnectorMetadata = cloneValue(a.ConnectorMetadata)
	return &c
}

type BrowserInformation struct {
	IPAddress         *string `json:"ip_address,omitempty"`
	UserAgent         *string `json:"user_agent,omitempty"`
	AcceptHeader      *string `json:"accept_header,omitempty"`
	Language          *string `json:"language,omitempty"`
	ColorDepth        *int    `json:"color_depth,omitempty"`
	ScreenHeight      *int    `json:"screen_height,omitempty"`
	ScreenWidth       *int    `json:"screen_width,omitempty"`
	TimeZone          *int    `json:"time_zone,omitempty"`
	JavaEnabled       *bool   `json:"java_enabled,omitempty"`
	JavaScriptEnabled *bool   `json:"java_script_enabled,omitempty"`
}

func (b BrowserInformation) Clone() BrowserInformation {
	return BrowserInformation{
		IPAddress:         clonePtr(b.IPAddress),
		UserAgent:         clonePtr(b.UserAgent),
		AcceptHeader:      clonePtr(b.AcceptHeader),
		Language:          clonePtr(b.Language),
		ColorDepth:        clonePtr(b.ColorDepth),
		ScreenHeight:      clonePtr(b.ScreenHeight),
		ScreenWidth:       clonePtr(b.ScreenWidth),
		TimeZone:          clonePtr(b.TimeZone),
		JavaEnabled:       clonePtr(b.JavaEnabled),
		JavaScriptEnabled: clonePtr(b.JavaScriptEnabled),
	}
}

// AddressDetails is the address as supplied by a request.
type AddressDetails struct {
	Line1       *string `json:"line1,omitempty"`
	Line2       *string `json:"line2,omitempty"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	Zip         *string `json:"zip,omitempty"`
	Country     *string `json:"country,omitempty"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	CountryCode *string `json:"country_code,omitempty"`
	Email       *string `json:"email,omitempty"`
}

type Address struct {
	AddressID  string  `json:"address_id"`
	MerchantID string  `json:"merchant_id"`
	PaymentID  string  `json:"payment_id"`
	CustomerID *string `json:"customer_id,omitempty"`
	AddressDetails
	CreatedAt time.Time `json:"created_at"`
}

type Customer struct {
	CustomerID  string    `json:"customer_id"`
	MerchantID  string    `json:"merchant_id"`
	Name        *string   `json:"name,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type BusinessProfile struct {
	ProfileID   string    `json:"profile_id"`
	MerchantID  string    `json:"merchant_id"`
	ProfileName string    `json:"profile_name"`
	ReturnURL   *string   `json:"return_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Refund struct {
	RefundID               string       `json:"refund_id"`
	PaymentID              string       `json:"payment_id"`
	MerchantID             string       `json:"merchant_id"`
	AttemptID              string       `json:"attempt_id"`
	Connector              string       `json:"connector"`
	ConnectorTransactionID string       `json:"connector_transaction_id"`
	ConnectorRefundID      *string      `json:"connector_refund_id,omitempty"`
	RefundAmount           int64        `json:"refund_amount"`
	PaymentAmount          int64        `json:"payment_amount"`
	Currency               Currency     `json:"currency"`
	Status                 RefundStatus `json:"refund_status"`
	Reason                 *string      `json:"reason,omitempty"`
	ErrorCode              *string      `json:"error_code,omitempty"`
	ErrorMessage           *string      `json:"error_message,omitempty"`
	CreatedAt              time.Time    `json:"created_at"`
	ModifiedAt             time.Time    `json:"modified_at"`
	Version                int64        `json:"-"`
}

func (r *Refund) Clone() *Refund {
	if r == nil {
		return nil
	}
	c := *r
	c.ConnectorRefundID = clonePtr(r.ConnectorRefundID)
	c.Reason = clonePtr(r.Reason)
	c.ErrorCode = clonePtr(r.ErrorCode)
	c.ErrorMessage = clonePtr(r.ErrorMessage)
	return &c
}

type MandateStatus string

const (
	MandateActive   MandateStatus = "active"
	MandateInactive MandateStatus = "inactive"
	MandateRevoked  MandateStatus = "revoked"
)

type MandateType string

const (
	MandateSingleUse MandateType = "single_use"
	MandateMultiUse  MandateType = "multi_use"
)

// Mandate is a stored authorization for future charges.
type Mandate struct {
	MandateID          string        `json:"mandate_id"`
	MerchantID         string        `json:"merchant_id"`
	CustomerID         string        `json:"customer_id"`
	Status             MandateStatus `json:"status"`
	Type               MandateType   `json:"mandate_type"`
	PaymentMethod      PaymentMethod `json:"payment_method"`
	Connector          string        `json:"connector"`
	ConnectorMandateID *string       `json:"connector_mandate_id,omitempty"`
	OriginalPaymentID  string        `json:"original_payment_id"`
	CreatedAt          time.Time     `json:"created_at"`
}

// MandateData is the request to set up a new mandate.
type MandateData struct {
	Type               MandateType `json:"mandate_type"`
	CustomerAcceptance *string     `json:"customer_acceptance,omitempty"`
	Amount             *int64      `json:"amount,omitempty"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneValue(v *structpb.Value) *structpb.Value {
	if v == nil {
		return nil
	}
	return proto.Clone(v).(*structpb.Value)
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
