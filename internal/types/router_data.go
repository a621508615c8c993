package types

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// RouterData is the envelope a connector integration reads from and writes to.
// Req is the flow-specific canonical request and Resp the flow-specific result.
type RouterData[Req, Resp any] struct {
	Flow          Flow
	MerchantID    string
	CustomerID    *string
	PaymentID     string
	AttemptID     string
	Connector     string
	Status        AttemptStatus
	PaymentMethod PaymentMethod
	AuthType      ConnectorAuthType
	// ConnectorMetaData is the merchant connector account's metadata.
	ConnectorMetaData *structpb.Value
	Description       *string
	ReturnURL         *string
	Address           PaymentAddress
	AccessToken       *AccessToken
	// ConnectorRequestReferenceID is the idempotency reference sent to the connector.
	ConnectorRequestReferenceID string
	AmountCaptured              *int64
	// ReferenceID is the connector's own reference for the transaction, if any.
	ReferenceID *string

	Request Req
	// Response is nil until the connector has been called.
	Response *ConnectorResponse[Resp]
}

// ConnectorResponse holds exactly one of Data or Err.
type ConnectorResponse[Resp any] struct {
	Data *Resp
	Err  *ErrorResponse
}

func (r *RouterData[Req, Resp]) SetResponse(resp Resp) {
	r.Response = &ConnectorResponse[Resp]{Data: &resp}
}

func (r *RouterData[Req, Resp]) SetErrorResponse(e ErrorResponse) {
	r.Response = &ConnectorResponse[Resp]{Err: &e}
}

func (r *RouterData[Req, Resp]) IsDispatched() bool { return r.Response != nil }

func (r *RouterData[Req, Resp]) GetDescription() (string, error) {
	if r.Description == nil || *r.Description == "" {
		return "", MissingRequiredField("description")
	}
	return *r.Description, nil
}

func (r *RouterData[Req, Resp]) GetReturnURL() (string, error) {
	if r.ReturnURL == nil || *r.ReturnURL == "" {
		return "", MissingRequiredField("return_url")
	}
	return *r.ReturnURL, nil
}

func (r *RouterData[Req, Resp]) GetConnectorMetaField(field string) (string, error) {
	if r.ConnectorMetaData == nil {
		return "", MissingRequiredField("connector_meta_data." + field)
	}
	s := r.ConnectorMetaData.GetStructValue()
	if s == nil {
		return "", MissingRequiredField("connector_meta_data." + field)
	}
	v, ok := s.GetFields()[field]
	if !ok || v.GetStringValue() == "" {
		return "", MissingRequiredField("connector_meta_data." + field)
	}
	return v.GetStringValue(), nil
}

// CloneForFlow copies the envelope into one carrying a different request and
// result type. The access token flow uses it to borrow the payment's auth.
func CloneForFlow[Resp2, Req2, Req, Resp any](r *RouterData[Req, Resp], flow Flow, req Req2) *RouterData[Req2, Resp2] {
	return &RouterData[Req2, Resp2]{
		Flow:                        flow,
		MerchantID:                  r.MerchantID,
		CustomerID:                  r.CustomerID,
		PaymentID:                   r.PaymentID,
		AttemptID:                   r.AttemptID,
		Connector:                   r.Connector,
		Status:                      r.Status,
		PaymentMethod:               r.PaymentMethod,
		AuthType:                    r.AuthType,
		ConnectorMetaData:           r.ConnectorMetaData,
		Description:                 r.Description,
		ReturnURL:                   r.ReturnURL,
		Address:                     r.Address,
		AccessToken:                 r.AccessToken,
		ConnectorRequestReferenceID: r.ConnectorRequestReferenceID,
		AmountCaptured:              r.AmountCaptured,
		ReferenceID:                 r.ReferenceID,
		Request:                     req,
	}
}

type PaymentAddress struct {
	Shipping *Address
	Billing  *Address
}

func (a PaymentAddress) BillingCountry() string {
	if a.Billing != nil && a.Billing.Country != nil {
		return *a.Billing.Country
	}
	return ""
}

type PaymentsAuthorizeData struct {
	PaymentMethodData   PaymentMethodData
	Amount              int64
	Currency            Currency
	Confirm             bool
	CaptureMethod       *CaptureMethod
	StatementDescriptor *string
	BrowserInfo         *BrowserInformation
	Email               *string
	CustomerName        *string
	SetupFutureUsage    *FutureUsage
	SetupMandateDetails *MandateData
	// ConnectorMandateID is set when charging an existing mandate.
	ConnectorMandateID *string
	OffSession         *bool
	RouterReturnURL    *string
}

func (d PaymentsAuthorizeData) IsAutoCapture() (bool, error) { return IsAutoCapture(d.CaptureMethod) }

func (d PaymentsAuthorizeData) GetBrowserInfo() (*BrowserInformation, error) {
	if d.BrowserInfo == nil {
		return nil, MissingRequiredField("browser_info")
	}
	return d.BrowserInfo, nil
}

func (d PaymentsAuthorizeData) IsMandatePayment() bool {
	return d.SetupMandateDetails != nil || d.ConnectorMandateID != nil ||
		(d.SetupFutureUsage != nil && *d.SetupFutureUsage == FutureUsageOffSession)
}

func (b *BrowserInformation) GetIPAddress() (string, error) {
	if b == nil || b.IPAddress == nil || *b.IPAddress == "" {
		return "", MissingRequiredField("browser_info.ip_address")
	}
	return *b.IPAddress, nil
}

// RedirectResponse carries what the customer's browser returned after authentication.
type RedirectResponse struct {
	Params  *string         `json:"param,omitempty"`
	Payload *structpb.Value `json:"json_payload,omitempty"`
}

type CompleteAuthorizeData struct {
	PaymentMethodData      PaymentMethodData
	Amount                 int64
	Currency               Currency
	CaptureMethod          *CaptureMethod
	BrowserInfo            *BrowserInformation
	Email                  *string
	ConnectorTransactionID *string
	RedirectResponse       *RedirectResponse
	ConnectorMeta          *structpb.Value
	// ConnectorMandateID is set when the payment charges an existing mandate.
	ConnectorMandateID *string
}

func (d CompleteAuthorizeData) IsAutoCapture() (bool, error) { return IsAutoCapture(d.CaptureMethod) }

type PaymentsCaptureData struct {
	AmountToCapture        int64
	PaymentAmount          int64
	Currency               Currency
	ConnectorTransactionID string
	ConnectorMeta          *structpb.Value
}

type PaymentsSyncData struct {
	ConnectorTransactionID ResponseID
	Currency               Currency
	CaptureMethod          *CaptureMethod
	ConnectorMeta          *structpb.Value
}

type PaymentsCancelData struct {
	ConnectorTransactionID string
	CancellationReason     *string
	Amount                 *int64
	Currency               *Currency
	ConnectorMeta          *structpb.Value
}

type RefundsData struct {
	RefundID               string
	ConnectorTransactionID string
	ConnectorRefundID      *string
	Currency               Currency
	PaymentAmount          int64
	RefundAmount           int64
	Reason                 *string
}

func (d RefundsData) GetConnectorRefundID() (string, error) {
	if d.ConnectorRefundID == nil || *d.ConnectorRefundID == "" {
		return "", MissingRequiredField("connector_refund_id")
	}
	return *d.ConnectorRefundID, nil
}

type AccessTokenRequestData struct {
	AppID Secret
	ID    *Secret
}

// ResponseID identifies a transaction at the connector. An empty
// ConnectorTransactionID means the connector returned none.
type ResponseID struct {
	ConnectorTransactionID string
	EncodedData            string
}

func NewResponseID(id string) ResponseID { return ResponseID{ConnectorTransactionID: id} }

func (r ResponseID) GetConnectorTransactionID() (string, error) {
	if r.ConnectorTransactionID == "" {
		return "", MissingRequiredField("connector_transaction_id")
	}
	return r.ConnectorTransactionID, nil
}

type RedirectForm struct {
	Endpoint   string            `json:"endpoint"`
	Method     string            `json:"method"`
	FormFields map[string]string `json:"form_fields,omitempty"`
}

type MandateReference struct {
	ConnectorMandateID *string
}

// PaymentsResponseData is the transaction response produced by a connector.
type PaymentsResponseData struct {
	ResourceID                   ResponseID
	Redirection                  *RedirectForm
	MandateReference             *MandateReference
	ConnectorMetadata            *structpb.Value
	NetworkTxnID                 *string
	ConnectorResponseReferenceID *string
}

type RefundsResponseData struct {
	ConnectorRefundID string
	RefundStatus      RefundStatus
}

type AccessToken struct {
	Token     Secret
	ExpiresIn int64
}

// ErrorResponse is a well-formed rejection from the connector, as opposed to a
// failure to talk to it.
type ErrorResponse struct {
	StatusCode             int
	Code                   string
	Message                string
	Reason                 *string
	AttemptStatus          *AttemptStatus
	ConnectorTransactionID *string
}

const (
	NoErrorCode    = "No error code"
	NoErrorMessage = "No error message"
)
