// Package nooni integrates the Nooni card payments API.
package nooni

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

const (
	Name           = "nooni"
	DefaultBaseURL = "https://api.sandbox.nooni.com"
)

type Nooni struct {
	baseURL         string
	amountConverter types.AmountConvertor[int64]
}

func New(baseURL string) *Nooni {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Nooni{baseURL: strings.TrimRight(baseURL, "/"), amountConverter: types.MinorUnitForConnector{}}
}

func (n *Nooni) GetName() string { return Name }

func (n *Nooni) ValidateAuthType(auth types.ConnectorAuthType) error {
	_, err := NewAuthType(auth)
	return err
}

func (n *Nooni) ValidatePaymentMethod(pmd types.PaymentMethodData) error {
	_, err := cardSource(pmd)
	return err
}

func (n *Nooni) request(method, path string, auth types.ConnectorAuthType) (*adapter.Request, error) {
	a, err := NewAuthType(auth)
	if err != nil {
		return nil, err
	}
	return adapter.NewRequest(method, n.baseURL+path).
		Header("Authorization", "Bearer "+a.APIKey.Expose()), nil
}

func (n *Nooni) Authorize() adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			req, err := n.request(http.MethodPost, "/payments", rd.AuthType)
			if err != nil {
				return nil, err
			}
			amount, err := n.amountConverter.Convert(rd.Request.Amount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			body, err := newAuthorizeRequest(routerData[*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]]{Amount: amount, RouterData: rd})
			if err != nil {
				return nil, err
			}
			return req.JSONBody(body)
		},
		Handle: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentsResponse](res)
			if err != nil {
				return nil, err
			}
			return handlePaymentsResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func (n *Nooni) CompleteAuthorize() adapter.Integration[types.CompleteAuthorizeData, types.PaymentsResponseData] {
	return adapter.Unsupported[types.CompleteAuthorizeData, types.PaymentsResponseData](Name, types.FlowCompleteAuthorize)
}

func (n *Nooni) Capture() adapter.Integration[types.PaymentsCaptureData, types.PaymentsResponseData] {
	return adapter.Unsupported[types.PaymentsCaptureData, types.PaymentsResponseData](Name, types.FlowCapture)
}

func (n *Nooni) Void() adapter.Integration[types.PaymentsCancelData, types.PaymentsResponseData] {
	return adapter.Unsupported[types.PaymentsCancelData, types.PaymentsResponseData](Name, types.FlowVoid)
}

func (n *Nooni) PSync() adapter.Integration[types.PaymentsSyncData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsSyncData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]) (*adapter.Request, error) {
			id, err := rd.Request.ConnectorTransactionID.GetConnectorTransactionID()
			if err != nil {
				return nil, err
			}
			return n.request(http.MethodGet, "/payments/"+url.PathEscape(id), rd.AuthType)
		},
		Handle: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentsResponse](res)
			if err != nil {
				return nil, err
			}
			return handlePaymentsResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func (n *Nooni) Execute() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			req, err := n.request(http.MethodPost, "/payments/"+url.PathEscape(rd.Request.ConnectorTransactionID)+"/refunds", rd.AuthType)
			if err != nil {
				return nil, err
			}
			amount, err := n.amountConverter.Convert(rd.Request.RefundAmount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			return req.JSONBody(newRefundRequest(routerData[*types.RouterData[types.RefundsData, types.RefundsResponseData]]{Amount: amount, RouterData: rd}))
		},
		Handle: handleRefund,
		Error:  errorResponse,
	}
}

func (n *Nooni) RSync() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			refundID, err := rd.Request.GetConnectorRefundID()
			if err != nil {
				return nil, err
			}
			path := "/payments/" + url.PathEscape(rd.Request.ConnectorTransactionID) + "/refunds/" + url.PathEscape(refundID)
			return n.request(http.MethodGet, path, rd.AuthType)
		},
		Handle: handleRefund,
		Error:  errorResponse,
	}
}

func handleRefund(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res *adapter.Response) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	parsed, err := adapter.ParseJSON[RefundResponse](res)
	if err != nil {
		return nil, err
	}
	return handleRefundResponse(rd, parsed)
}

func errorResponse(res *adapter.Response) (*types.ErrorResponse, error) {
	parsed, err := adapter.ParseJSON[ErrorResponse](res)
	if err != nil {
		return nil, err
	}
	return &types.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       parsed.Code,
		Message:    parsed.Message,
		Reason:     parsed.Reason,
	}, nil
}

var _ adapter.Connector = (*Nooni)(nil)
