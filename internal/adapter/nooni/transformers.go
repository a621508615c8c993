package nooni

import (
	"fmt"

	"github.com/yourorg/payment-router/internal/types"
)

type AuthType struct {
	APIKey types.Secret
}

func NewAuthType(auth types.ConnectorAuthType) (AuthType, error) {
	switch a := auth.(type) {
	case types.HeaderKey:
		return AuthType{APIKey: a.APIKey}, nil
	default:
		return AuthType{}, types.FailedToObtainAuthType()
	}
}

type routerData[T any] struct {
	Amount     int64
	RouterData T
}

type SourceType string

const SourceTypeCard SourceType = "card"

type RequestSource struct {
	Type        SourceType `json:"type"`
	Number      string     `json:"number"`
	ExpiryMonth string     `json:"expiry_month"`
	ExpiryYear  string     `json:"expiry_year"`
	Name        string     `json:"name"`
	CVV         string     `json:"cvv"`
}

type AuthorizeRequest struct {
	Source              RequestSource  `json:"source"`
	ProcessingChannelID string         `json:"processing_channel_id"`
	Amount              int64          `json:"amount"`
	Currency            types.Currency `json:"currency"`
	Reference           *string        `json:"reference,omitempty"`
	Capture             bool           `json:"capture"`
}

// cardSource is the only payment method nooni accepts today.
func cardSource(pmd types.PaymentMethodData) (RequestSource, error) {
	switch pm := pmd.(type) {
	case types.Card:
		return RequestSource{
			Type:        SourceTypeCard,
			Number:      pm.Number.Expose(),
			ExpiryMonth: pm.ExpMonth.Expose(),
			ExpiryYear:  pm.ExpYear.Expose(),
			Name:        pm.HolderName.Expose(),
			CVV:         pm.CVC.Expose(),
		}, nil
	case types.Wallet, types.BankDebit, types.BankRedirect, types.BankTransfer, types.PayLater,
		types.CardRedirect, types.Crypto, types.MandatePayment, types.Reward, types.Voucher,
		types.GiftCard, types.Upi:
		return RequestSource{}, types.NotImplemented("payment method")
	}
	return RequestSource{}, types.UnhandledPaymentMethod(Name, pmd)
}

func newAuthorizeRequest(item routerData[*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]]) (*AuthorizeRequest, error) {
	rd := item.RouterData
	source, err := cardSource(rd.Request.PaymentMethodData)
	if err != nil {
		return nil, err
	}
	channel, err := rd.GetConnectorMetaField("processing_channel_id")
	if err != nil {
		return nil, err
	}
	capture, err := rd.Request.IsAutoCapture()
	if err != nil {
		return nil, err
	}
	return &AuthorizeRequest{
		Source:              source,
		ProcessingChannelID: channel,
		Amount:              item.Amount,
		Currency:            rd.Request.Currency,
		Reference:           types.Ptr(rd.ConnectorRequestReferenceID),
		Capture:             capture,
	}, nil
}

type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "Authorized"
	PaymentStatusCaptured   PaymentStatus = "Captured"
	PaymentStatusDeclined   PaymentStatus = "Declined"
	PaymentStatusPending    PaymentStatus = "Pending"
	PaymentStatusVoided     PaymentStatus = "Voided"
)

var AllPaymentStatuses = []PaymentStatus{
	PaymentStatusAuthorized,
	PaymentStatusCaptured,
	PaymentStatusDeclined,
	PaymentStatusPending,
	PaymentStatusVoided,
}

func (s PaymentStatus) AttemptStatus() (types.AttemptStatus, error) {
	switch s {
	case PaymentStatusAuthorized:
		return types.AttemptAuthorized, nil
	case PaymentStatusCaptured:
		return types.AttemptCharged, nil
	case PaymentStatusDeclined:
		return types.AttemptFailure, nil
	case PaymentStatusPending:
		return types.AttemptPending, nil
	case PaymentStatusVoided:
		return types.AttemptVoided, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown nooni payment status %q", string(s)))
}

type ResponseBalances struct {
	TotalAuthorized    int64 `json:"total_authorized"`
	TotalVoided        int64 `json:"total_voided"`
	AvailableToVoid    int64 `json:"available_to_void"`
	TotalCaptured      int64 `json:"total_captured"`
	AvailableToCapture int64 `json:"available_to_capture"`
	TotalRefunded      int64 `json:"total_refunded"`
	AvailableToRefund  int64 `json:"available_to_refund"`
}

type ResponseSource struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Scheme      string `json:"scheme"`
	Last4       string `json:"last4"`
	Fingerprint string `json:"fingerprint"`
	Bin         string `json:"bin"`
	CardType    string `json:"card_type"`
}

type ResponseProcessing struct {
	AcquirerTransactionID    string `json:"acquirer_transaction_id"`
	RetrievalReferenceNumber string `json:"retrieval_reference_number"`
}

type PaymentsResponse struct {
	ID              string              `json:"id"`
	ActionID        string              `json:"action_id"`
	Amount          int64               `json:"amount"`
	Currency        string              `json:"currency"`
	Approved        bool                `json:"approved"`
	Status          PaymentStatus       `json:"status"`
	AuthCode        string              `json:"auth_code"`
	ResponseCode    string              `json:"response_code"`
	ResponseSummary string              `json:"response_summary"`
	Balances        *ResponseBalances   `json:"balances,omitempty"`
	Source          *ResponseSource     `json:"source,omitempty"`
	Reference       *string             `json:"reference,omitempty"`
	SchemeID        *string             `json:"scheme_id,omitempty"`
	Processing      *ResponseProcessing `json:"processing,omitempty"`
}

func handlePaymentsResponse[Req any](rd *types.RouterData[Req, types.PaymentsResponseData], res PaymentsResponse) (*types.RouterData[Req, types.PaymentsResponseData], error) {
	status, err := res.Status.AttemptStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.Status = status
	if res.Balances != nil && res.Balances.TotalCaptured > 0 {
		captured := res.Balances.TotalCaptured
		out.AmountCaptured = &captured
	}
	out.SetResponse(types.PaymentsResponseData{
		ResourceID:                   types.NewResponseID(res.ID),
		NetworkTxnID:                 res.SchemeID,
		ConnectorResponseReferenceID: res.Reference,
	})
	return &out, nil
}

type RefundRequest struct {
	Amount int64 `json:"amount"`
}

func newRefundRequest(item routerData[*types.RouterData[types.RefundsData, types.RefundsResponseData]]) *RefundRequest {
	return &RefundRequest{Amount: item.Amount}
}

type RefundStatus string

const (
	RefundStatusSucceeded  RefundStatus = "Succeeded"
	RefundStatusFailed     RefundStatus = "Failed"
	RefundStatusProcessing RefundStatus = "Processing"
)

var AllRefundStatuses = []RefundStatus{RefundStatusSucceeded, RefundStatusFailed, RefundStatusProcessing}

func (s RefundStatus) RefundStatus() (types.RefundStatus, error) {
	switch s {
	case RefundStatusSucceeded:
		return types.RefundSuccess, nil
	case RefundStatusFailed:
		return types.RefundFailure, nil
	case RefundStatusProcessing:
		return types.RefundPending, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown nooni refund status %q", string(s)))
}

type RefundResponse struct {
	ID     string       `json:"id"`
	Status RefundStatus `json:"status"`
}

func handleRefundResponse(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res RefundResponse) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	status, err := res.Status.RefundStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.SetResponse(types.RefundsResponseData{ConnectorRefundID: res.ID, RefundStatus: status})
	return &out, nil
}

type ErrorResponse struct {
	StatusCode int     `json:"status_code"`
	Code       string  `json:"code"`
	Message    string  `json:"message"`
	Reason     *string `json:"reason,omitempty"`
}
