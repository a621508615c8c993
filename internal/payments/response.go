package payments

import (
	"time"

	"github.com/yourorg/payment-router/internal/types"
)

// NextAction tells the caller what the customer must do before the payment
// can proceed.
type NextAction struct {
	Type          string              `json:"type"`
	RedirectToURL string              `json:"redirect_to_url"`
	Form          *types.RedirectForm `json:"form,omitempty"`
}

type PaymentsResponse struct {
	PaymentID              string                `json:"payment_id"`
	MerchantID             string                `json:"merchant_id"`
	Status                 types.IntentStatus    `json:"status"`
	AttemptStatus          types.AttemptStatus   `json:"attempt_status"`
	Amount                 int64                 `json:"amount"`
	AmountReceived         *int64                `json:"amount_received,omitempty"`
	AmountToCapture        *int64                `json:"amount_to_capture,omitempty"`
	Currency               types.Currency        `json:"currency"`
	Connector              *string               `json:"connector,omitempty"`
	ConnectorTransactionID *string               `json:"connector_transaction_id,omitempty"`
	ReferenceID            *string               `json:"reference_id,omitempty"`
	CustomerID             *string               `json:"customer_id,omitempty"`
	Email                  *string               `json:"email,omitempty"`
	Name                   *string               `json:"name,omitempty"`
	Description            *string               `json:"description,omitempty"`
	ReturnURL              *string               `json:"return_url,omitempty"`
	CaptureMethod          *types.CaptureMethod  `json:"capture_method,omitempty"`
	SetupFutureUsage       *types.FutureUsage    `json:"setup_future_usage,omitempty"`
	PaymentMethod          *types.PaymentMethod  `json:"payment_method,omitempty"`
	PaymentMethodType      *string               `json:"payment_method_type,omitempty"`
	PaymentToken           *string               `json:"payment_token,omitempty"`
	MandateID              *string               `json:"mandate_id,omitempty"`
	ErrorCode              *string               `json:"error_code,omitempty"`
	ErrorMessage           *string               `json:"error_message,omitempty"`
	CancellationReason     *string               `json:"cancellation_reason,omitempty"`
	NextAction             *NextAction           `json:"next_action,omitempty"`
	Shipping               *types.AddressDetails `json:"shipping,omitempty"`
	Billing                *types.AddressDetails `json:"billing,omitempty"`
	Metadata               *types.JSONValue      `json:"metadata,omitempty"`
	ProfileID              *string               `json:"profile_id,omitempty"`
	AttemptCount           int                   `json:"attempt_count"`
	Created                time.Time             `json:"created"`
}

func NewPaymentsResponse(data *PaymentData) *PaymentsResponse {
	intent, attempt := data.Intent, data.Attempt
	resp := &PaymentsResponse{
		PaymentID:              intent.PaymentID,
		MerchantID:             intent.MerchantID,
		Status:                 intent.Status,
		AttemptStatus:          attempt.Status,
		Amount:                 intent.Amount,
		AmountReceived:         intent.AmountCaptured,
		AmountToCapture:        attempt.AmountToCapture,
		Currency:               intent.Currency,
		Connector:              attempt.Connector,
		ConnectorTransactionID: attempt.ConnectorTransactionID,
		ReferenceID:            attempt.ConnectorResponseReferenceID,
		CustomerID:             intent.CustomerID,
		Description:            intent.Description,
		ReturnURL:              intent.ReturnURL,
		CaptureMethod:          attempt.CaptureMethod,
		SetupFutureUsage:       intent.SetupFutureUsage,
		PaymentMethod:          attempt.PaymentMethod,
		PaymentMethodType:      attempt.PaymentMethodType,
		PaymentToken:           attempt.PaymentToken,
		MandateID:              attempt.MandateID,
		ErrorCode:              attempt.ErrorCode,
		ErrorMessage:           attempt.ErrorMessage,
		CancellationReason:     attempt.CancellationReason,
		ProfileID:              intent.ProfileID,
		AttemptCount:           intent.AttemptCount,
		Created:                intent.CreatedAt,
	}
	if data.Customer != nil {
		resp.Email = data.Customer.Email
		resp.Name = data.Customer.Name
	}
	resp.Email = Coalesce(data.Email, resp.Email)
	resp.Name = Coalesce(data.CustomerName, resp.Name)
	if a := data.Address.Shipping; a != nil {
		resp.Shipping = &a.AddressDetails
	}
	if a := data.Address.Billing; a != nil {
		resp.Billing = &a.AddressDetails
	}
	if intent.Metadata != nil {
		resp.Metadata = &types.JSONValue{Value: intent.Metadata}
	}
	if intent.Status == types.IntentRequiresCustomerAction && attempt.AuthenticationURL != nil {
		resp.NextAction = &NextAction{
			Type:          "redirect_to_url",
			RedirectToURL: *attempt.AuthenticationURL,
			Form:          data.Redirection,
		}
	}
	return resp
}

type RefundResponse struct {
	RefundID     string             `json:"refund_id"`
	PaymentID    string             `json:"payment_id"`
	Amount       int64              `json:"amount"`
	Currency     types.Currency     `json:"currency"`
	Status       types.RefundStatus `json:"status"`
	Connector    string             `json:"connector"`
	Reason       *string            `json:"reason,omitempty"`
	ErrorCode    *string            `json:"error_code,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	Created      time.Time          `json:"created_at"`
	Updated      time.Time          `json:"updated_at"`
}

func NewRefundResponse(data *RefundData) *RefundResponse {
	r := data.Refund
	return &RefundResponse{
		RefundID:     r.RefundID,
		PaymentID:    r.PaymentID,
		Amount:       r.RefundAmount,
		Currency:     r.Currency,
		Status:       r.Status,
		Connector:    r.Connector,
		Reason:       r.Reason,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
		Created:      r.CreatedAt,
		Updated:      r.ModifiedAt,
	}
}
