package mock

import (
	"fmt"

	"github.com/yourorg/payment-router/internal/types"
)

type CardData struct {
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	CVC         string `json:"cvc"`
	HolderName  string `json:"holder_name,omitempty"`
}

type WalletData struct {
	Kind  string `json:"kind"`
	Token string `json:"token,omitempty"`
}

// PaymentMethodData is externally tagged: exactly one field is set.
type PaymentMethodData struct {
	Card   *CardData   `json:"card,omitempty"`
	Wallet *WalletData `json:"wallet,omitempty"`
}

func buildPaymentMethodData(pmd types.PaymentMethodData) (PaymentMethodData, error) {
	switch pm := pmd.(type) {
	case types.Card:
		return PaymentMethodData{Card: &CardData{
			Number:      pm.Number.Expose(),
			ExpiryMonth: pm.ExpMonth.Expose(),
			ExpiryYear:  pm.ExpYear4(),
			CVC:         pm.CVC.Expose(),
			HolderName:  pm.HolderName.Expose(),
		}}, nil
	case types.Wallet:
		w := &WalletData{Kind: string(pm.Kind)}
		switch {
		case pm.GooglePay != nil:
			w.Token = pm.GooglePay.Token
		case pm.ApplePay != nil:
			w.Token = pm.ApplePay.PaymentData
		}
		return PaymentMethodData{Wallet: w}, nil
	case types.BankDebit, types.BankRedirect, types.BankTransfer, types.PayLater, types.CardRedirect,
		types.Crypto, types.MandatePayment, types.Reward, types.Voucher, types.GiftCard, types.Upi:
		return PaymentMethodData{}, types.NotSupported("payment method", Name)
	}
	return PaymentMethodData{}, types.UnhandledPaymentMethod(Name, pmd)
}

type PaymentRequest struct {
	Amount            string            `json:"amount"`
	Currency          types.Currency    `json:"currency"`
	PaymentMethodData PaymentMethodData `json:"payment_method_data"`
	Capture           bool              `json:"capture"`
	ReturnURL         string            `json:"return_url,omitempty"`
	Reference         string            `json:"reference"`
}

type AmountRequest struct {
	Amount string `json:"amount"`
}

type PaymentStatus string

const (
	PaymentSucceeded             PaymentStatus = "succeeded"
	PaymentAuthorized            PaymentStatus = "authorized"
	PaymentProcessing            PaymentStatus = "processing"
	PaymentPendingAuthentication PaymentStatus = "pending_authentication"
	PaymentFailed                PaymentStatus = "failed"
	PaymentVoided                PaymentStatus = "voided"
)

var AllPaymentStatuses = []PaymentStatus{
	PaymentSucceeded,
	PaymentAuthorized,
	PaymentProcessing,
	PaymentPendingAuthentication,
	PaymentFailed,
	PaymentVoided,
}

func (s PaymentStatus) AttemptStatus() (types.AttemptStatus, error) {
	switch s {
	case PaymentSucceeded:
		return types.AttemptCharged, nil
	case PaymentAuthorized:
		return types.AttemptAuthorized, nil
	case PaymentProcessing:
		return types.AttemptPending, nil
	case PaymentPendingAuthentication:
		return types.AttemptAuthenticationPending, nil
	case PaymentFailed:
		return types.AttemptFailure, nil
	case PaymentVoided:
		return types.AttemptVoided, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown dummy connector status %q", string(s)))
}

type NextAction struct {
	RedirectToURL string `json:"redirect_to_url"`
}

type PaymentResponse struct {
	ID             string         `json:"id"`
	Status         PaymentStatus  `json:"status"`
	Amount         string         `json:"amount"`
	AmountCaptured string         `json:"amount_captured,omitempty"`
	Currency       types.Currency `json:"currency"`
	Reference      string         `json:"reference,omitempty"`
	NextAction     *NextAction    `json:"next_action,omitempty"`
}

type RefundStatus string

const (
	RefundSucceeded  RefundStatus = "succeeded"
	RefundFailed     RefundStatus = "failed"
	RefundProcessing RefundStatus = "processing"
)

var AllRefundStatuses = []RefundStatus{RefundSucceeded, RefundFailed, RefundProcessing}

func (s RefundStatus) RefundStatus() (types.RefundStatus, error) {
	switch s {
	case RefundSucceeded:
		return types.RefundSuccess, nil
	case RefundFailed:
		return types.RefundFailure, nil
	case RefundProcessing:
		return types.RefundPending, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown dummy connector refund status %q", string(s)))
}

type RefundResponse struct {
	ID        string         `json:"id"`
	PaymentID string         `json:"payment_id"`
	Status    RefundStatus   `json:"status"`
	Amount    string         `json:"amount"`
	Currency  types.Currency `json:"currency"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
