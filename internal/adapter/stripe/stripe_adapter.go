// Package stripe integrates the Stripe PaymentIntents and Refunds APIs.
package stripe

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

const (
	Name           = "stripe"
	DefaultBaseURL = "https://api.stripe.com/v1"

	maxIdempotencyKeyLen = 255
)

type StripeAdapter struct {
	apiBaseURL      string
	amountConverter types.AmountConvertor[int64]
}

func NewStripeAdapter(baseURL string) *StripeAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &StripeAdapter{
		apiBaseURL:      strings.TrimRight(baseURL, "/"),
		amountConverter: types.MinorUnitForConnector{},
	}
}

func (s *StripeAdapter) GetName() string { return Name }

func (s *StripeAdapter) ValidateAuthType(auth types.ConnectorAuthType) error {
	_, err := NewAuthType(auth)
	return err
}

func (s *StripeAdapter) ValidatePaymentMethod(pmd types.PaymentMethodData) error {
	return setPaymentMethodData(url.Values{}, pmd)
}

// generateIdempotencyKey derives a key that is stable across transport retries
// of the same attempt and flow.
func generateIdempotencyKey(reference string, flow types.Flow) string {
	key := fmt.Sprintf("%s-%s", reference, flow)
	if len(key) > maxIdempotencyKeyLen {
		return key[:maxIdempotencyKeyLen]
	}
	return key
}

func newRequest[Req, Resp any](s *StripeAdapter, method, path string, rd *types.RouterData[Req, Resp]) (*adapter.Request, error) {
	auth, err := NewAuthType(rd.AuthType)
	if err != nil {
		return nil, err
	}
	req := adapter.NewRequest(method, s.apiBaseURL+path).
		Header("Authorization", "Bearer "+auth.APIKey.Expose())
	if method == http.MethodPost && rd.ConnectorRequestReferenceID != "" {
		req.Header("Idempotency-Key", generateIdempotencyKey(rd.ConnectorRequestReferenceID, rd.Flow))
	}
	return req, nil
}

func (s *StripeAdapter) Authorize() adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			req, err := newRequest(s, http.MethodPost, "/payment_intents", rd)
			if err != nil {
				return nil, err
			}
			amount, err := s.amountConverter.Convert(rd.Request.Amount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			form, err := buildPaymentIntentForm(rd, formatAmount(amount))
			if err != nil {
				return nil, err
			}
			return req.FormBody(form), nil
		},
		Handle: func(rd *types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentIntentResponse](res)
			if err != nil {
				return nil, err
			}
			return handleIntentResponse(rd, parsed, rd.Request.IsMandatePayment())
		},
		Error: errorResponse,
	}
}

// CompleteAuthorize retrieves the intent once the customer is back from 3DS.
// Stripe finishes authentication on its side, so only the outcome is fetched.
func (s *StripeAdapter) CompleteAuthorize() adapter.Integration[types.CompleteAuthorizeData, types.PaymentsResponseData] {
	return adapter.Funcs[types.CompleteAuthorizeData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData]) (*adapter.Request, error) {
			if rd.Request.ConnectorTransactionID == nil || *rd.Request.ConnectorTransactionID == "" {
				return nil, types.MissingRequiredField("connector_transaction_id")
			}
			return newRequest(s, http.MethodGet, "/payment_intents/"+url.PathEscape(*rd.Request.ConnectorTransactionID), rd)
		},
		Handle: func(rd *types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.CompleteAuthorizeData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentIntentResponse](res)
			if err != nil {
				return nil, err
			}
			return handleIntentResponse(rd, parsed, false)
		},
		Error: errorResponse,
	}
}

func (s *StripeAdapter) Capture() adapter.Integration[types.PaymentsCaptureData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCaptureData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData]) (*adapter.Request, error) {
			if rd.Request.ConnectorTransactionID == "" {
				return nil, types.MissingRequiredField("connector_transaction_id")
			}
			req, err := newRequest(s, http.MethodPost, "/payment_intents/"+url.PathEscape(rd.Request.ConnectorTransactionID)+"/capture", rd)
			if err != nil {
				return nil, err
			}
			amount, err := s.amountConverter.Convert(rd.Request.AmountToCapture, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			return req.FormBody(url.Values{"amount_to_capture": {formatAmount(amount)}}), nil
		},
		Handle: func(rd *types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCaptureData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentIntentResponse](res)
			if err != nil {
				return nil, err
			}
			return handleIntentResponse(rd, parsed, false)
		},
		Error: errorResponse,
	}
}

func (s *StripeAdapter) PSync() adapter.Integration[types.PaymentsSyncData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsSyncData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData]) (*adapter.Request, error) {
			id, err := rd.Request.ConnectorTransactionID.GetConnectorTransactionID()
			if err != nil {
				return nil, err
			}
			return newRequest(s, http.MethodGet, "/payment_intents/"+url.PathEscape(id), rd)
		},
		Handle: func(rd *types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsSyncData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentIntentResponse](res)
			if err != nil {
				return nil, err
			}
			return handleIntentResponse(rd, parsed, false)
		},
		Error: errorResponse,
	}
}

func (s *StripeAdapter) Void() adapter.Integration[types.PaymentsCancelData, types.PaymentsResponseData] {
	return adapter.Funcs[types.PaymentsCancelData, types.PaymentsResponseData]{
		Build: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData]) (*adapter.Request, error) {
			if rd.Request.ConnectorTransactionID == "" {
				return nil, types.MissingRequiredField("connector_transaction_id")
			}
			req, err := newRequest(s, http.MethodPost, "/payment_intents/"+url.PathEscape(rd.Request.ConnectorTransactionID)+"/cancel", rd)
			if err != nil {
				return nil, err
			}
			form := url.Values{}
			if r := rd.Request.CancellationReason; r != nil && *r != "" {
				form.Set("cancellation_reason", *r)
			}
			return req.FormBody(form), nil
		},
		Handle: func(rd *types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], res *adapter.Response) (*types.RouterData[types.PaymentsCancelData, types.PaymentsResponseData], error) {
			parsed, err := adapter.ParseJSON[PaymentIntentResponse](res)
			if err != nil {
				return nil, err
			}
			return handleIntentResponse(rd, parsed, false)
		},
		Error: errorResponse,
	}
}

func (s *StripeAdapter) Execute() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			req, err := newRequest(s, http.MethodPost, "/refunds", rd)
			if err != nil {
				return nil, err
			}
			amount, err := s.amountConverter.Convert(rd.Request.RefundAmount, rd.Request.Currency)
			if err != nil {
				return nil, types.RequestEncodingFailed(err)
			}
			return req.FormBody(buildRefundForm(rd, formatAmount(amount))), nil
		},
		Handle: handleRefund,
		Error:  errorResponse,
	}
}

func (s *StripeAdapter) RSync() adapter.Integration[types.RefundsData, types.RefundsResponseData] {
	return adapter.Funcs[types.RefundsData, types.RefundsResponseData]{
		Build: func(rd *types.RouterData[types.RefundsData, types.RefundsResponseData]) (*adapter.Request, error) {
			id, err := rd.Request.GetConnectorRefundID()
			if err != nil {
				return nil, err
			}
			return newRequest(s, http.MethodGet, "/refunds/"+url.PathEscape(id), rd)
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
	if parsed.Error.Message == "" && parsed.Error.Code == "" {
		return adapter.DefaultErrorResponse(res), nil
	}
	out := &types.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       declineCode(parsed.Error.Code, parsed.Error.DeclineCode),
		Message:    parsed.Error.Message,
		Reason:     types.Ptr(parsed.Error.Type),
	}
	if parsed.Error.PaymentIntent != nil {
		out.ConnectorTransactionID = types.Ptr(parsed.Error.PaymentIntent.ID)
	}
	return out, nil
}

var _ adapter.Connector = (*StripeAdapter)(nil)
