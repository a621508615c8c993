package payu

import (
	"encoding/base64"
	"fmt"

	"github.com/yourorg/payment-router/internal/types"
)

const walletIdentifier = "PBL"

const (
	selectedPaymentMethod = "Selected payment method"
	unimplementedMethod   = "Selected payment method through payu"
)

// AuthType is the credential shape payu accepts: api key plus the merchant POS id.
type AuthType struct {
	APIKey        types.Secret
	MerchantPosID types.Secret
}

func NewAuthType(auth types.ConnectorAuthType) (AuthType, error) {
	switch a := auth.(type) {
	case types.BodyKey:
		return AuthType{APIKey: a.APIKey, MerchantPosID: a.Key1}, nil
	default:
		return AuthType{}, types.FailedToObtainAuthType()
	}
}

// routerData pairs a RouterData with the amount already converted to payu's unit.
type routerData[T any] struct {
	Amount     int64
	RouterData T
}

type PaymentsRequest struct {
	CustomerIP    string         `json:"customerIp"`
	MerchantPosID string         `json:"merchantPosId"`
	TotalAmount   int64          `json:"totalAmount"`
	CurrencyCode  types.Currency `json:"currencyCode"`
	Description   string         `json:"description"`
	PayMethods    PaymentMethod  `json:"payMethods"`
	ContinueURL   *string        `json:"continueUrl,omitempty"`
}

type PaymentMethod struct {
	PayMethod PaymentMethodData `json:"payMethod"`
}

// PaymentMethodData is either *Card or *Wallet on the wire.
type PaymentMethodData interface {
	isPayuPaymentMethod()
}

type Card struct {
	Card CardDetails `json:"card"`
}

type CardDetails struct {
	Number          string `json:"number"`
	ExpirationMonth string `json:"expirationMonth"`
	ExpirationYear  string `json:"expirationYear"`
	CVV             string `json:"cvv"`
}

type WalletCode string

const (
	WalletCodeAp WalletCode = "ap"
	WalletCodeJp WalletCode = "jp"
)

type Wallet struct {
	Value             WalletCode `json:"value"`
	Type              string     `json:"type"`
	AuthorizationCode string     `json:"authorizationCode"`
}

func (*Card) isPayuPaymentMethod()   {}
func (*Wallet) isPayuPaymentMethod() {}

func notSupported() error   { return types.NotSupported(selectedPaymentMethod, "Payu") }
func notImplemented() error { return types.NotImplemented(unimplementedMethod) }

// buildPaymentMethod is the full classification of canonical payment methods
// for payu. It also answers capability queries.
func buildPaymentMethod(pmd types.PaymentMethodData) (PaymentMethod, error) {
	switch pm := pmd.(type) {
	case types.Card:
		return PaymentMethod{PayMethod: &Card{Card: CardDetails{
			Number:          pm.Number.Expose(),
			ExpirationMonth: pm.ExpMonth.Expose(),
			ExpirationYear:  pm.ExpYear.Expose(),
			CVV:             pm.CVC.Expose(),
		}}}, nil
	case types.Wallet:
		return walletPaymentMethod(pm)
	case types.BankDebit:
		return PaymentMethod{}, bankDebitError(pm)
	case types.BankRedirect:
		return PaymentMethod{}, bankRedirectError(pm)
	case types.BankTransfer:
		return PaymentMethod{}, bankTransferError(pm)
	case types.PayLater:
		return PaymentMethod{}, notSupported()
	case types.Upi, types.GiftCard:
		return PaymentMethod{}, notImplemented()
	case types.CardRedirect, types.Crypto, types.MandatePayment, types.Reward, types.Voucher:
		return PaymentMethod{}, notSupported()
	}
	return PaymentMethod{}, types.UnhandledPaymentMethod(Name, pmd)
}

func walletPaymentMethod(w types.Wallet) (PaymentMethod, error) {
	switch w.Kind {
	case types.WalletGooglePay:
		if w.GooglePay == nil {
			return PaymentMethod{}, types.MissingRequiredField("wallet.google_pay")
		}
		return PaymentMethod{PayMethod: &Wallet{
			Value:             WalletCodeAp,
			Type:              walletIdentifier,
			AuthorizationCode: base64.StdEncoding.EncodeToString([]byte(w.GooglePay.Token)),
		}}, nil
	case types.WalletApplePay:
		if w.ApplePay == nil {
			return PaymentMethod{}, types.MissingRequiredField("wallet.apple_pay")
		}
		return PaymentMethod{PayMethod: &Wallet{
			Value:             WalletCodeJp,
			Type:              walletIdentifier,
			AuthorizationCode: w.ApplePay.PaymentData,
		}}, nil
	case types.WalletPaypalRedirect:
		return PaymentMethod{}, notImplemented()
	case types.WalletAliPayQr, types.WalletAliPayRedirect, types.WalletAliPayHkRedirect,
		types.WalletMomoRedirect, types.WalletKakaoPayRedirect, types.WalletGoPayRedirect,
		types.WalletGcashRedirect, types.WalletApplePayRedirect, types.WalletApplePayThirdPartySdk,
		types.WalletDanaRedirect, types.WalletGooglePayRedirect, types.WalletGooglePayThirdPartySdk,
		types.WalletMbWayRedirect, types.WalletMobilePayRedirect, types.WalletPaypalSdk,
		types.WalletSamsungPay, types.WalletTwintRedirect, types.WalletVippsRedirect,
		types.WalletTouchNGoRedirect, types.WalletWeChatPayRedirect, types.WalletWeChatPayQr,
		types.WalletCashappQr, types.WalletSwishQr:
		return PaymentMethod{}, notSupported()
	}
	return PaymentMethod{}, types.UnhandledPaymentMethod(Name, w)
}

func bankDebitError(pm types.BankDebit) error {
	switch pm.Kind {
	case types.BankDebitSepa:
		return notImplemented()
	case types.BankDebitAch, types.BankDebitBecs, types.BankDebitBacs:
		return notSupported()
	}
	return types.UnhandledPaymentMethod(Name, pm)
}

func bankRedirectError(pm types.BankRedirect) error {
	switch pm.Kind {
	case types.BankRedirectBancontactCard, types.BankRedirectBlik, types.BankRedirectGiropay,
		types.BankRedirectIdeal, types.BankRedirectSofort, types.BankRedirectTrustly:
		return notImplemented()
	case types.BankRedirectInterac, types.BankRedirectBizum, types.BankRedirectEps,
		types.BankRedirectOnlineBankingCzechRepublic, types.BankRedirectOnlineBankingFinland,
		types.BankRedirectOnlineBankingPoland, types.BankRedirectOnlineBankingSlovakia,
		types.BankRedirectOpenBankingUk, types.BankRedirectPrzelewy24,
		types.BankRedirectOnlineBankingFpx, types.BankRedirectOnlineBankingThailand:
		return notSupported()
	}
	return types.UnhandledPaymentMethod(Name, pm)
}

func bankTransferError(pm types.BankTransfer) error {
	switch pm.Kind {
	case types.BankTransferAch:
		return notImplemented()
	case types.BankTransferSepa, types.BankTransferBacs, types.BankTransferMultibanco,
		types.BankTransferPermata, types.BankTransferBca, types.BankTransferBniVa,
		types.BankTransferBriVa, types.BankTransferCimbVa, types.BankTransferDanamonVa,
		types.BankTransferMandiriVa, types.BankTransferPix, types.BankTransferPse:
		return notSupported()
	}
	return types.UnhandledPaymentMethod(Name, pm)
}

func newPaymentsRequest(item routerData[*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]]) (*PaymentsRequest, error) {
	rd := item.RouterData
	auth, err := NewAuthType(rd.AuthType)
	if err != nil {
		return nil, err
	}
	payMethod, err := buildPaymentMethod(rd.Request.PaymentMethodData)
	if err != nil {
		return nil, err
	}
	browserInfo, err := rd.Request.GetBrowserInfo()
	if err != nil {
		return nil, err
	}
	ip, err := browserInfo.GetIPAddress()
	if err != nil {
		return nil, err
	}
	description, err := rd.GetDescription()
	if err != nil {
		return nil, err
	}
	return &PaymentsRequest{
		CustomerIP:    ip,
		MerchantPosID: auth.MerchantPosID.Expose(),
		TotalAmount:   item.Amount,
		CurrencyCode:  rd.Request.Currency,
		Description:   description,
		PayMethods:    payMethod,
		ContinueURL:   rd.Request.RouterReturnURL,
	}, nil
}

// PaymentStatus is the status code payu returns on order creation and capture.
type PaymentStatus string

const (
	PaymentStatusSuccess                 PaymentStatus = "SUCCESS"
	PaymentStatusWarningContinueRedirect PaymentStatus = "WARNING_CONTINUE_REDIRECT"
	PaymentStatusWarningContinue3DS      PaymentStatus = "WARNING_CONTINUE_3DS"
	PaymentStatusWarningContinueCVV      PaymentStatus = "WARNING_CONTINUE_CVV"
	PaymentStatusPending                 PaymentStatus = "PENDING"
)

var AllPaymentStatuses = []PaymentStatus{
	PaymentStatusSuccess,
	PaymentStatusWarningContinueRedirect,
	PaymentStatusWarningContinue3DS,
	PaymentStatusWarningContinueCVV,
	PaymentStatusPending,
}

// AttemptStatus maps the status code. payu reports the final outcome only via
// order status, so every code here is still pending.
func (s PaymentStatus) AttemptStatus() (types.AttemptStatus, error) {
	switch s {
	case PaymentStatusSuccess:
		return types.AttemptPending, nil
	case PaymentStatusWarningContinueRedirect:
		return types.AttemptPending, nil
	case PaymentStatusWarningContinue3DS:
		return types.AttemptPending, nil
	case PaymentStatusWarningContinueCVV:
		return types.AttemptPending, nil
	case PaymentStatusPending:
		return types.AttemptPending, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown payu status code %q", string(s)))
}

type StatusData struct {
	StatusCode PaymentStatus `json:"statusCode"`
	Severity   *string       `json:"severity,omitempty"`
	StatusDesc *string       `json:"statusDesc,omitempty"`
}

type PaymentsResponse struct {
	Status                 StatusData `json:"status"`
	RedirectURI            string     `json:"redirectUri"`
	IframeAllowed          *bool      `json:"iframeAllowed,omitempty"`
	ThreeDSProtocolVersion *string    `json:"threeDsProtocolVersion,omitempty"`
	OrderID                string     `json:"orderId"`
	ExtOrderID             *string    `json:"extOrderId,omitempty"`
}

func orDefault(v *string, fallback string) *string {
	if v != nil {
		return v
	}
	return &fallback
}

func handlePaymentsResponse[Req any](rd *types.RouterData[Req, types.PaymentsResponseData], res PaymentsResponse) (*types.RouterData[Req, types.PaymentsResponseData], error) {
	status, err := res.Status.StatusCode.AttemptStatus()
	if err != nil {
		return nil, err
	}
	var redirection *types.RedirectForm
	switch res.Status.StatusCode {
	case PaymentStatusWarningContinueRedirect, PaymentStatusWarningContinue3DS:
		if res.RedirectURI != "" {
			redirection = &types.RedirectForm{Endpoint: res.RedirectURI, Method: "GET"}
		}
	}
	out := *rd
	out.Status = status
	out.AmountCaptured = nil
	out.SetResponse(types.PaymentsResponseData{
		ResourceID:                   types.NewResponseID(res.OrderID),
		Redirection:                  redirection,
		ConnectorResponseReferenceID: orDefault(res.ExtOrderID, res.OrderID),
	})
	return &out, nil
}

type OrderStatus string

const (
	OrderStatusNew                    OrderStatus = "NEW"
	OrderStatusCanceled               OrderStatus = "CANCELED"
	OrderStatusCompleted              OrderStatus = "COMPLETED"
	OrderStatusWaitingForConfirmation OrderStatus = "WAITING_FOR_CONFIRMATION"
	OrderStatusPending                OrderStatus = "PENDING"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusNew,
	OrderStatusCanceled,
	OrderStatusCompleted,
	OrderStatusWaitingForConfirmation,
	OrderStatusPending,
}

func (s OrderStatus) AttemptStatus() (types.AttemptStatus, error) {
	switch s {
	case OrderStatusNew:
		return types.AttemptPaymentMethodAwaited, nil
	case OrderStatusCanceled:
		return types.AttemptVoided, nil
	case OrderStatusCompleted:
		return types.AttemptCharged, nil
	case OrderStatusPending:
		return types.AttemptPending, nil
	case OrderStatusWaitingForConfirmation:
		return types.AttemptAuthorized, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown payu order status %q", string(s)))
}

type CaptureRequest struct {
	OrderID     string      `json:"orderId"`
	OrderStatus OrderStatus `json:"orderStatus"`
}

func newCaptureRequest(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]) (*CaptureRequest, error) {
	if rd.Request.ConnectorTransactionID == "" {
		return nil, types.MissingRequiredField("connector_transaction_id")
	}
	return &CaptureRequest{OrderID: rd.Request.ConnectorTransactionID, OrderStatus: OrderStatusCompleted}, nil
}

type CaptureResponse struct {
	Status StatusData `json:"status"`
}

func handleCaptureResponse(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], res CaptureResponse) (*types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], error) {
	status, err := res.Status.StatusCode.AttemptStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.Status = status
	out.AmountCaptured = nil
	out.SetResponse(types.PaymentsResponseData{})
	return &out, nil
}

type CancelResponse struct {
	OrderID    string     `json:"orderId"`
	ExtOrderID *string    `json:"extOrderId,omitempty"`
	Status     StatusData `json:"status"`
}

type AuthUpdateRequest struct {
	GrantType    string
	ClientID     types.Secret
	ClientSecret types.Secret
}

func newAuthUpdateRequest(rd *types.RouterData[types.AccessTokenRequestData, types.AccessToken]) (*AuthUpdateRequest, error) {
	if rd.Request.ID == nil {
		return nil, types.MissingRequiredField("request.id")
	}
	return &AuthUpdateRequest{
		GrantType:    "client_credentials",
		ClientID:     *rd.Request.ID,
		ClientSecret: rd.Request.AppID,
	}, nil
}

type AuthUpdateResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	GrantType   string `json:"grant_type"`
}

type OrderResponseData struct {
	OrderID         string         `json:"orderId"`
	ExtOrderID      *string        `json:"extOrderId,omitempty"`
	OrderCreateDate string         `json:"orderCreateDate"`
	NotifyURL       *string        `json:"notifyUrl,omitempty"`
	CustomerIP      string         `json:"customerIp"`
	MerchantPosID   string         `json:"merchantPosId"`
	Description     string         `json:"description"`
	ValidityTime    *string        `json:"validityTime,omitempty"`
	CurrencyCode    types.Currency `json:"currencyCode"`
	TotalAmount     string         `json:"totalAmount"`
	Buyer           *BuyerData     `json:"buyer,omitempty"`
	PayMethod       *struct {
		Type string `json:"type"`
	} `json:"payMethod,omitempty"`
	Status OrderStatus `json:"status"`
}

type BuyerData struct {
	ExtCustomerID *string `json:"extCustomerId,omitempty"`
	Email         *string `json:"email,omitempty"`
	Phone         *string `json:"phone,omitempty"`
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	Language      *string `json:"language,omitempty"`
	CustomerID    *string `json:"customerId,omitempty"`
}

type OrderProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SyncResponse struct {
	Orders     []OrderResponseData `json:"orders"`
	Status     StatusData          `json:"status"`
	Properties []OrderProperty     `json:"properties,omitempty"`
}

func handleSyncResponse(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], res SyncResponse) (*types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], error) {
	if len(res.Orders) == 0 {
		return nil, types.ResponseHandlingFailed(fmt.Errorf("payu sync response contains no orders"))
	}
	order := res.Orders[0]
	status, err := order.Status.AttemptStatus()
	if err != nil {
		return nil, err
	}
	captured, err := types.StringMinorUnitForConnector{}.ConvertBack(order.TotalAmount, order.CurrencyCode)
	if err != nil {
		return nil, types.ResponseDeserializationFailed(err)
	}
	out := *rd
	out.Status = status
	out.AmountCaptured = &captured
	out.SetResponse(types.PaymentsResponseData{
		ResourceID:                   types.NewResponseID(order.OrderID),
		ConnectorResponseReferenceID: orDefault(order.ExtOrderID, order.OrderID),
	})
	return &out, nil
}

type RefundRequestData struct {
	Description string `json:"description"`
	Amount      *int64 `json:"amount,omitempty"`
}

type RefundRequest struct {
	Refund RefundRequestData `json:"refund"`
}

// newRefundRequest omits the amount for full refunds, which payu treats as
// refunding the remaining balance.
func newRefundRequest(item routerData[*types.RouterData[types.RefundsData, types.RefundsResponseData]]) (*RefundRequest, error) {
	rd := item.RouterData
	if rd.Request.Reason == nil || *rd.Request.Reason == "" {
		return nil, types.MissingRequiredField("reason")
	}
	req := &RefundRequest{Refund: RefundRequestData{Description: *rd.Request.Reason}}
	if rd.Request.RefundAmount < rd.Request.PaymentAmount {
		amount := item.Amount
		req.Refund.Amount = &amount
	}
	return req, nil
}

type RefundStatus string

const (
	RefundStatusFinalized RefundStatus = "FINALIZED"
	RefundStatusCompleted RefundStatus = "COMPLETED"
	RefundStatusCanceled  RefundStatus = "CANCELED"
	RefundStatusPending   RefundStatus = "PENDING"
)

var AllRefundStatuses = []RefundStatus{
	RefundStatusFinalized,
	RefundStatusCompleted,
	RefundStatusCanceled,
	RefundStatusPending,
}

func (s RefundStatus) RefundStatus() (types.RefundStatus, error) {
	switch s {
	case RefundStatusFinalized, RefundStatusCompleted:
		return types.RefundSuccess, nil
	case RefundStatusCanceled:
		return types.RefundFailure, nil
	case RefundStatusPending:
		return types.RefundPending, nil
	}
	return "", types.ResponseDeserializationFailed(fmt.Errorf("unknown payu refund status %q", string(s)))
}

type RefundResponseData struct {
	RefundID         string         `json:"refundId"`
	ExtRefundID      string         `json:"extRefundId"`
	Amount           string         `json:"amount"`
	CurrencyCode     types.Currency `json:"currencyCode"`
	Description      string         `json:"description"`
	CreationDateTime string         `json:"creationDateTime"`
	Status           RefundStatus   `json:"status"`
	StatusDateTime   *string        `json:"statusDateTime,omitempty"`
}

type RefundResponse struct {
	Refund RefundResponseData `json:"refund"`
}

type RefundSyncResponse struct {
	Refunds []RefundResponseData `json:"refunds"`
}

func refundResult(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], data RefundResponseData) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	status, err := data.Status.RefundStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.SetResponse(types.RefundsResponseData{ConnectorRefundID: data.RefundID, RefundStatus: status})
	return &out, nil
}

func handleRefundResponse(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res RefundResponse) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	return refundResult(rd, res.Refund)
}

func handleRefundSyncResponse(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res RefundSyncResponse) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	if len(res.Refunds) == 0 {
		return nil, types.ResponseHandlingFailed(fmt.Errorf("payu refund sync response contains no refunds"))
	}
	return refundResult(rd, res.Refunds[0])
}

type ErrorData struct {
	StatusCode  string  `json:"statusCode"`
	Code        *string `json:"code,omitempty"`
	CodeLiteral *string `json:"codeLiteral,omitempty"`
	StatusDesc  string  `json:"statusDesc"`
}

type ErrorResponse struct {
	Status ErrorData `json:"status"`
}

type AccessTokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
