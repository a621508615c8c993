// Package payu integrates the PayU REST API (orders, refunds and OAuth).
package payu

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

const (
	Name           = "payu"
	DefaultBaseURL = "https://secure.snd.payu.com"
)

type Payu struct {
	baseURL         string
	amountConverter types.AmountConvertor[int64]
}

func New(baseURL string) *Payu {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Payu{
		baseURL:         strings.TrimRight(baseURL, "/"),
		amountConverter: types.MinorUnitForConnector{},
	}
}

func (p *Payu) GetName() string { return Name }

func (p *Payu) ValidateAuthType(auth types.ConnectorAuthType) error {
	_, err := NewAuthType(auth)
	return err
}

func (p *Payu) ValidatePaymentMethod(pmd types.PaymentMethodData) error {
	_, err := buildPaymentMethod(pmd)
	return err
}

func (p *Payu) ordersURL(parts ...string) string {
	return p.baseURL + "/api/v2_1/orders" + joinPath(parts...)
}

func joinPath(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString("/")
		b.WriteString(url.PathEscape(part))
	}
	return b.String()
}

// bearer builds the auth header from the cached OAuth token.
func bearer[Req, Resp any](rd *types.RouterData[Req, Resp]) (string, error) {
	if rd.AccessToken == nil || rd.AccessToken.Token.IsEmpty() {
		return "", types.FailedToObtainAuthType()
	}
	return "Bearer " + rd.AccessToken.Token.Expose(), nil
}

func (p *Payu) newRequest(method, endpoint, authorization string) *adapter.Request {
	return adapter.NewRequest(method, endpoint).
		Header("Authorization", authorization).
		Header("Accept", adapter.ContentTypeJSON)
}

func (p *Payu) AccessToken() adapter.Integration[types.AccessTokenRequestData, types.AccessToken] {
	return adapter.Funcs[types.AccessTokenRequestData, types.AccessToken]{
		Build: func(rd *types.RouterData[types.AccessTokenRequestData, types.AccessToken]) (*adapter.Request, error) {
			body, err := newAuthUpdateRequest(rd)
			if err != nil {
				return nil, err
			}
			form := url.Values{}
			form.Set("grant_type", body.GrantType)
			form.Set("client_id", body.ClientID.Expose())
			form.Set("client_secret", body.ClientSecret.Expose())
			return adapter.NewRequest(http.MethodPost, p.baseURL+"/pl/standard/user/oauth/authorize").FormBody(form), nil
		},
		Handle: func(rd *types.RouterData[types.AccessTokenRequestData, types.AccessToken], res *adapter.Response) (*types.RouterData[types.AccessTokenRequestData, types.AccessToken], error) {
			parsed, err := adapter.ParseJSON[AuthUpdateResponse](res)
			if err != nil {
				return nil, err
			}
			out := *rd
			out.SetResponse(types.AccessToken{Token: types.Secret(parsed.AccessToken), ExpiresIn: parsed.ExpiresIn})
			return &out, nil
		},
		Error: func(res *adapter.Response) (*types.ErrorResponse, error) {
			parsed, err := adapter.ParseJSON[AccessTokenErrorResponse](res)
			if err != nil {
				return nil, err
			}
			return &types.ErrorResponse{
				StatusCode: res.StatusCode,
				Code:       parsed.Error,
				Message:    parsed.ErrorDescription,
			}, nil
		},
	}
}

func (p *Payu) Authorize() adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			amount, err := p.amountConverter.Convert(rd.Request.Amount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			body, err := newPaymentsRequest(routerData[*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]]{Amount: amount, RouterData: rd})
			if err != nil {
				return nil, err
			}
			return p.newRequest(http.MethodPost, p.ordersURL(), authz).JSONBody(body)
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

func (p *Payu) CompleteAuthorize() adapter.Integration[types.CompleteAuthorizeData, types.PaymentsResponseData] {
	return adapter.Unsupported[types.CompleteAuthorizeData, types.PaymentsResponseData](Name, types.FlowCompleteAuthorize)
}

func (p *Payu) Capture() adapter.Integration[types.PaymentsCaptureData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCaptureData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			body, err := newCaptureRequest(rd)
			if err != nil {
				return nil, err
			}
			return p.newRequest(http.MethodPut, p.ordersURL(rd.Request.ConnectorTransactionID, "status"), authz).JSONBody(body)
		},
		Handle: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[CaptureResponse](res)
			if err != nil {
				return nil, err
			}
			return handleCaptureResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func (p *Payu) PSync() adapter.Integration[types.PaymentsSyncData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsSyncData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			id, err := rd.Request.ConnectorTransactionID.GetConnectorTransactionID()
			if err != nil {
				return nil, err
			}
			return p.newRequest(http.MethodGet, p.ordersURL(id), authz), nil
		},
		Handle: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[SyncResponse](res)
			if err != nil {
				return nil, err
			}
			return handleSyncResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func (p *Payu) Void() adapter.Integration[types.PaymentsCancelData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCancelData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			if rd.Request.ConnectorTransactionID == "" {
				return nil, types.MissingRequiredField("connector_transaction_id")
			}
			return p.newRequest(http.MethodDelete, p.ordersURL(rd.Request.ConnectorTransactionID), authz), nil
		},
		Handle: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[CancelResponse](res)
			if err != nil {
				return nil, err
			}
			return handlePaymentsResponse(rd, PaymentsResponse{
				Status:     parsed.Status,
				OrderID:    parsed.OrderID,
				ExtOrderID: parsed.ExtOrderID,
			})
		},
		Error: errorResponse,
	}
}

func (p *Payu) Execute() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			amount, err := p.amountConverter.Convert(rd.Request.RefundAmount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			body, err := newRefundRequest(routerData[*types.RouterData[types.RefundsData, types.RefundsResponseData]]{Amount: amount, RouterData: rd})
			if err != nil {
				return nil, err
			}
			return p.newRequest(http.MethodPost, p.ordersURL(rd.Request.ConnectorTransactionID, "refunds"), authz).JSONBody(body)
		},
		Handle: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res *adapter.Response) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
			parsed, err := adapter.ParseJSON[RefundResponse](res)
			if err != nil {
				return nil, err
			}
			return handleRefundResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func (p *Payu) RSync() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			authz, err := bearer(rd)
			if err != nil {
				return nil, err
			}
			return p.newRequest(http.MethodGet, p.ordersURL(rd.Request.ConnectorTransactionID, "refunds"), authz), nil
		},
		Handle: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res *adapter.Response) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
			parsed, err := adapter.ParseJSON[RefundSyncResponse](res)
			if err != nil {
				return nil, err
			}
			return handleRefundSyncResponse(rd, parsed)
		},
		Error: errorResponse,
	}
}

func errorResponse(res *adapter.Response) (*types.ErrorResponse, error) {
	parsed, err := adapter.ParseJSON[ErrorResponse](res)
	if err != nil {
		return nil, err
	}
	code := parsed.Status.StatusCode
	if parsed.Status.Code != nil {
		code = *parsed.Status.Code
	}
	return &types.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       code,
		Message:    parsed.Status.StatusDesc,
		Reason:     parsed.Status.CodeLiteral,
	}, nil
}

var _ adapter.AccessTokenConnector = (*Payu)(nil)
