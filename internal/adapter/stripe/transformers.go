package stripe

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/yourorg/payment-router/internal/types"
)

type AuthType struct {
	APIKey types.Secret
}

func NewAuthType(auth types.ConnectorAuthType) (AuthType, error) {
	if hk, ok := auth.(types.HeaderKey); ok {
		return AuthType{APIKey: hk.APIKey}, nil
	}
	return AuthType{}, types.FailedToObtainAuthType()
}

func notImplemented() error { return types.NotImplemented("payment method") }

func notSupported() error { return types.NotSupported("payment method", Name) }

// setPaymentMethodData writes payment_method_data[...] fields for pmd.
func setPaymentMethodData(form url.Values, pmd types.PaymentMethodData) error {
	switch pm := pmd.(type) {
	case types.Card:
		form.Set("payment_method_data[type]", "card")
		form.Set("payment_method_data[card][number]", pm.Number.Expose())
		form.Set("payment_method_data[card][exp_month]", pm.ExpMonth.Expose())
		form.Set("payment_method_data[card][exp_year]", pm.ExpYear4())
		form.Set("payment_method_data[card][cvc]", pm.CVC.Expose())
		return nil
	case types.Wallet:
		switch pm.Kind {
		case types.WalletGooglePay, types.WalletApplePay:
			return notImplemented()
		default:
			return notSupported()
		}
	case types.BankDebit:
		switch pm.Kind {
		case types.BankDebitAch, types.BankDebitSepa, types.BankDebitBecs, types.BankDebitBacs:
			return notImplemented()
		}
		return notSupported()
	case types.BankRedirect:
		switch pm.Kind {
		case types.BankRedirectIdeal, types.BankRedirectGiropay, types.BankRedirectSofort,
			types.BankRedirectEps, types.BankRedirectBancontactCard, types.BankRedirectPrzelewy24,
			types.BankRedirectBlik:
			return notImplemented()
		default:
			return notSupported()
		}
	case types.BankTransfer, types.PayLater, types.CardRedirect, types.Crypto, types.MandatePayment,
		types.Reward, types.Voucher, types.GiftCard, types.Upi:
		return notSupported()
	}
	return types.UnhandledPaymentMethod(Name, pmd)
}

func routerReturnURL(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]) (string, error) {
	if u := rd.Request.RouterReturnURL; u != nil && *u != "" {
		return *u, nil
	}
	return rd.GetReturnURL()
}

func buildPaymentIntentForm(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], amount string) (url.Values, error) {
	req := rd.Request
	form := url.Values{}
	form.Set("amount", amount)
	form.Set("currency", strings.ToLower(string(req.Currency)))
	form.Set("confirm", "true")
	form.Set("metadata[order_id]", rd.ConnectorRequestReferenceID)
	form.Set("metadata[payment_id]", rd.PaymentID)

	auto, err := req.IsAutoCapture()
	if err != nil {
		return nil, err
	}
	if auto {
		form.Set("capture_method", "automatic")
	} else {
		form.Set("capture_method", "manual")
	}
	if rd.Description != nil {
		form.Set("description", *rd.Description)
	}
	if req.StatementDescriptor != nil {
		form.Set("statement_descriptor_suffix", *req.StatementDescriptor)
	}
	if req.Email != nil {
		form.Set("receipt_email", *req.Email)
	}
	if req.OffSession != nil && *req.OffSession {
		form.Set("off_session", "true")
	} else {
		// stripe rejects on-session confirmation without somewhere to send the customer back to
		returnURL, err := routerReturnURL(rd)
		if err != nil {
			return nil, err
		}
		form.Set("return_url", returnURL)
	}
	if req.SetupFutureUsage != nil {
		form.Set("setup_future_usage", string(*req.SetupFutureUsage))
	}

	if req.ConnectorMandateID != nil {
		form.Set("payment_method", *req.ConnectorMandateID)
		return form, nil
	}
	if err := setPaymentMethodData(form, req.PaymentMethodData); err != nil {
		return nil, err
	}
	return form, nil
}

type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentCanceled              IntentStatus = "canceled"
	IntentSucceeded             IntentStatus = "succeeded"
)

var AllIntentStatuses = []IntentStatus{
	IntentRequiresPaymentMethod,
	IntentRequiresConfirmation,
	IntentRequiresAction,
	IntentProcessing,
	IntentRequiresCapture,
	IntentCanceled,
	IntentSucceeded,
}

func (s IntentStatus) AttemptStatus() (types.AttemptStatus, error) {
	switch s {
	case IntentRequiresPaymentMethod:
		return types.AttemptPaymentMethodAwaited, nil
	case IntentRequiresConfirmation:
		return types.AttemptConfirmationAwaited, nil
	case IntentRequiresAction:
		return types.AttemptAuthenticationPending, nil
	case IntentProcessing:
		return types.AttemptPending, nil
	case IntentRequiresCapture:
		return types.AttemptAuthorized, nil
	case IntentCanceled:
		return types.AttemptVoided, nil
	case IntentSucceeded:
		return types.AttemptCharged, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown stripe intent status %q", string(s)))
}

type RedirectToURL struct {
	URL       string `json:"url"`
	ReturnURL string `json:"return_url"`
}

type NextAction struct {
	Type          string         `json:"type"`
	RedirectToURL *RedirectToURL `json:"redirect_to_url,omitempty"`
}

type LastPaymentError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

type PaymentIntentResponse struct {
	ID               string            `json:"id"`
	Object           string            `json:"object"`
	Amount           int64             `json:"amount"`
	AmountReceived   int64             `json:"amount_received"`
	Currency         string            `json:"currency"`
	Status           IntentStatus      `json:"status"`
	CaptureMethod    string            `json:"capture_method"`
	LatestCharge     *string           `json:"latest_charge,omitempty"`
	PaymentMethod    *string           `json:"payment_method,omitempty"`
	NextAction       *NextAction       `json:"next_action,omitempty"`
	LastPaymentError *LastPaymentError `json:"last_payment_error,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

func handleIntentResponse[Req any](rd *types.RouterData[Req, types.PaymentsResponseData], res PaymentIntentResponse, mandate bool) (*types.RouterData[Req, types.PaymentsResponseData], error) {
	status, err := res.Status.AttemptStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.Status = status

	// A confirmed intent that falls back to requires_payment_method was declined.
	if res.Status == IntentRequiresPaymentMethod && res.LastPaymentError != nil {
		failed := types.AttemptFailure
		out.Status = failed
		out.SetErrorResponse(types.ErrorResponse{
			StatusCode:             402,
			Code:                   declineCode(res.LastPaymentError.Code, res.LastPaymentError.DeclineCode),
			Message:                res.LastPaymentError.Message,
			Reason:                 types.Ptr(res.LastPaymentError.Type),
			AttemptStatus:          &failed,
			ConnectorTransactionID: types.Ptr(res.ID),
		})
		return &out, nil
	}

	if res.AmountReceived > 0 {
		received := res.AmountReceived
		out.AmountCaptured = &received
	}
	data := types.PaymentsResponseData{
		ResourceID:                   types.NewResponseID(res.ID),
		NetworkTxnID:                 res.LatestCharge,
		ConnectorResponseReferenceID: types.Ptr(res.ID),
	}
	if res.NextAction != nil && res.NextAction.RedirectToURL != nil {
		data.Redirection = &types.RedirectForm{Endpoint: res.NextAction.RedirectToURL.URL, Method: "GET"}
	}
	if mandate && res.PaymentMethod != nil {
		data.MandateReference = &types.MandateReference{ConnectorMandateID: res.PaymentMethod}
	}
	out.SetResponse(data)
	return &out, nil
}

var refundReasons = map[string]bool{"duplicate": true, "fraudulent": true, "requested_by_customer": true}

func buildRefundForm(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], amount string) url.Values {
	form := url.Values{}
	form.Set("payment_intent", rd.Request.ConnectorTransactionID)
	form.Set("amount", amount)
	form.Set("metadata[refund_id]", rd.Request.RefundID)
	if reason := rd.Request.Reason; reason != nil && *reason != "" {
		if refundReasons[*reason] {
			form.Set("reason", *reason)
		} else {
			form.Set("metadata[reason]", *reason)
		}
	}
	return form
}

type RefundStatus string

const (
	RefundSucceeded      RefundStatus = "succeeded"
	RefundFailed         RefundStatus = "failed"
	RefundCanceled       RefundStatus = "canceled"
	RefundPending        RefundStatus = "pending"
	RefundRequiresAction RefundStatus = "requires_action"
)

var AllRefundStatuses = []RefundStatus{RefundSucceeded, RefundFailed, RefundCanceled, RefundPending, RefundRequiresAction}

func (s RefundStatus) RefundStatus() (types.RefundStatus, error) {
	switch s {
	case RefundSucceeded:
		return types.RefundSuccess, nil
	case RefundFailed, RefundCanceled:
		return types.RefundFailure, nil
	case RefundPending, RefundRequiresAction:
		return types.RefundPending, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown stripe refund status %q", string(s)))
}

type RefundResponse struct {
	ID            string       `json:"id"`
	Object        string       `json:"object"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	PaymentIntent string       `json:"payment_intent"`
	Status        RefundStatus `json:"status"`
}

// ErrorResponse is the error envelope of the Stripe API.
type ErrorResponse struct {
	Error struct {
		Type          string `json:"type"`
		Code          string `json:"code"`
		Message       string `json:"message"`
		DeclineCode   string `json:"decline_code"`
		PaymentIntent *struct {
			ID string `json:"id"`
		} `json:"payment_intent,omitempty"`
	} `json:"error"`
}

// declineCode prefers the issuer decline code over the generic error code.
func declineCode(code, decline string) string {
	if decline != "" {
		return decline
	}
	if code == "" {
		return types.NoErrorCode
	}
	return code
}

func formatAmount(v int64) string { return strconv.FormatInt(v, 10) }
