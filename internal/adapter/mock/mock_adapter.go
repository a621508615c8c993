// Package mock provides "dummyconnector", a sandbox connector that speaks to
// the in-process Sandbox API. It lets the whole pipeline run without a real
// processor account.
package mock

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

const Name = "dummyconnector"

type MockAdapter struct {
	baseURL         string
	amountConverter types.AmountConvertor[string]
}

// NewMockAdapter points the connector at a running Sandbox.
func NewMockAdapter(baseURL string) *MockAdapter {
	return &MockAdapter{
		baseURL:         strings.TrimRight(baseURL, "/") + basePath,
		amountConverter: types.StringMajorUnitForConnector{},
	}
}

func (m *MockAdapter) GetName() string { return Name }

func (m *MockAdapter) ValidateAuthType(auth types.ConnectorAuthType) error {
	_, err := apiKey(auth)
	return err
}

func (m *MockAdapter) ValidatePaymentMethod(pmd types.PaymentMethodData) error {
	_, err := buildPaymentMethodData(pmd)
	return err
}

func apiKey(auth types.ConnectorAuthType) (types.Secret, error) {
	if hk, ok := auth.(types.HeaderKey); ok {
		return hk.APIKey, nil
	}
	return "", types.FailedToObtainAuthType()
}

func (m *MockAdapter) request(method string, auth types.ConnectorAuthType, parts ...string) (*adapter.Request, error) {
	key, err := apiKey(auth)
	if err != nil {
		return nil, err
	}
	endpoint := m.baseURL
	for _, p := range parts {
		endpoint += "/" + url.PathEscape(p)
	}
	return adapter.NewRequest(method, endpoint).Header("Authorization", "Bearer "+key.Expose()), nil
}

func (m *MockAdapter) Authorize() adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			req, err := m.request(http.MethodPost, rd.AuthType, "payment")
			if err != nil {
				return nil, err
			}
			pmd, err := buildPaymentMethodData(rd.Request.PaymentMethodData)
			if err != nil {
				return nil, err
			}
			amount, err := m.amountConverter.Convert(rd.Request.Amount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			capture, err := rd.Request.IsAutoCapture()
			if err != nil {
				return nil, err
			}
			body := PaymentRequest{
				Amount:            amount,
				Currency:          rd.Request.Currency,
				PaymentMethodData: pmd,
				Capture:           capture,
				Reference:         rd.ConnectorRequestReferenceID,
			}
			if rd.Request.RouterReturnURL != nil {
				body.ReturnURL = *rd.Request.RouterReturnURL
			}
			return req.JSONBody(body)
		},
		Handle: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], error) {
			return handlePayment(m, rd, res, rd.Request.Currency)
		},
		Error: errorResponse,
	}
}

func (m *MockAdapter) CompleteAuthorize() adapter.Integration[types.CompleteAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.CompleteAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			if rd.Request.ConnectorTransactionID == nil {
				return nil, types.MissingRequiredField("connector_transaction_id")
			}
			return m.request(http.MethodPost, rd.AuthType, "payment", *rd.Request.ConnectorTransactionID, "complete")
		},
		Handle: func(rd *types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData], error) {
			return handlePayment(m, rd, res, rd.Request.Currency)
		},
		Error: errorResponse,
	}
}

func (m *MockAdapter) Capture() adapter.Integration[types.PaymentsCaptureData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCaptureData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]) (*adapter.Request, error) {
			req, err := m.request(http.MethodPost, rd.AuthType, "payment", rd.Request.ConnectorTransactionID, "capture")
			if err != nil {
				return nil, err
			}
			amount, err := m.amountConverter.Convert(rd.Request.AmountToCapture, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			return req.JSONBody(AmountRequest{Amount: amount})
		},
		Handle: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], error) {
			return handlePayment(m, rd, res, rd.Request.Currency)
		},
		Error: errorResponse,
	}
}

func (m *MockAdapter) PSync() adapter.Integration[types.PaymentsSyncData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsSyncData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]) (*adapter.Request, error) {
			id, err := rd.Request.ConnectorTransactionID.GetConnectorTransactionID()
			if err != nil {
				return nil, err
			}
			return m.request(http.MethodGet, rd.AuthType, "payment", id)
		},
		Handle: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], error) {
			return handlePayment(m, rd, res, rd.Request.Currency)
		},
		Error: errorResponse,
	}
}

func (m *MockAdapter) Void() adapter.Integration[types.PaymentsCancelData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCancelData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData]) (*adapter.Request, error) {
			return m.request(http.MethodPost, rd.AuthType, "payment", rd.Request.ConnectorTransactionID, "void")
		},
		Handle: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], error) {
			var currency types.Currency
			if rd.Request.Currency != nil {
				currency = *rd.Request.Currency
			}
			return handlePayment(m, rd, res, currency)
		},
		Error: errorResponse,
	}
}

func (m *MockAdapter) Execute() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			req, err := m.request(http.MethodPost, rd.AuthType, "payment", rd.Request.ConnectorTransactionID, "refund")
			if err != nil {
				return nil, err
			}
			amount, err := m.amountConverter.Convert(rd.Request.RefundAmount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			return req.JSONBody(AmountRequest{Amount: amount})
		},
		Handle: handleRefund,
		Error:  errorResponse,
	}
}

func (m *MockAdapter) RSync() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			id, err := rd.Request.GetConnectorRefundID()
			if err != nil {
				return nil, err
			}
			return m.request(http.MethodGet, rd.AuthType, "refunds", id)
		},
		Handle: handleRefund,
		Error:  errorResponse,
	}
}

func handlePayment[Req any](m *MockAdapter, rd *types.RouterData[Req, types.PaymentsResponseData], res *adapter.Response, currency types.Currency) (*types.RouterData[Req, types.PaymentsResponseData], error) {
	parsed, err := adapter.ParseJSON[PaymentResponse](res)
	if err != nil {
		return nil, err
	}
	status, err := parsed.Status.AttemptStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.Status = status
	if parsed.AmountCaptured != "" && currency != "" {
		captured, err := m.amountConverter.ConvertBack(parsed.AmountCaptured, currency)
		if err != nil {
			return nil, types.ResponseDeserializationFailed(err)
		}
		out.AmountCaptured = &captured
	}
	data := types.PaymentsResponseData{ResourceID: types.NewResponseID(parsed.ID)}
	if parsed.Reference != "" {
		data.ConnectorResponseReferenceID = types.Ptr(parsed.Reference)
	}
	if parsed.NextAction != nil {
		data.Redirection = &types.RedirectForm{Endpoint: parsed.NextAction.RedirectToURL, Method: http.MethodGet}
	}
	out.SetResponse(data)
	return &out, nil
}

func handleRefund(rd *types.RouterData[types.RefundsData, types.RefundsResponseData], res *adapter.Response) (*types.RouterData[types.RefundsData, types.RefundsResponseData], error) {
	parsed, err := adapter.ParseJSON[RefundResponse](res)
	if err != nil {
		return nil, err
	}
	status, err := parsed.Status.RefundStatus()
	if err != nil {
		return nil, err
	}
	out := *rd
	out.SetResponse(types.RefundsResponseData{ConnectorRefundID: parsed.ID, RefundStatus: status})
	return &out, nil
}

func errorResponse(res *adapter.Response) (*types.ErrorResponse, error) {
	parsed, err := adapter.ParseJSON[ErrorResponse](res)
	if err != nil {
		return nil, err
	}
	out := &types.ErrorResponse{StatusCode: res.StatusCode, Code: parsed.Error.Code, Message: parsed.Error.Message}
	if parsed.Error.Reason != "" {
		out.Reason = types.Ptr(parsed.Error.Reason)
	}
	return out, nil
}

var _ adapter.Connector = (*MockAdapter)(nil)
