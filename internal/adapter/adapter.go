// Package adapter defines the contract every connector integration implements
// and contains the integrations for specific processors.
// An integration is pure: it turns canonical RouterData into a wire Request and
// a wire Response back into RouterData. Sending the request is the processor's job.
package adapter

import (
	"github.com/yourorg/payment-router/internal/types"
)

// Integration is one flow of one connector.
type Integration[Req, Resp any] interface {
	// BuildRequest builds the outbound wire request for the flow.
	BuildRequest(rd *types.RouterData[Req, Resp]) (*Request, error)
	// HandleResponse parses a 2xx response and returns the updated RouterData.
	HandleResponse(rd *types.RouterData[Req, Resp], res *Response) (*types.RouterData[Req, Resp], error)
	// GetErrorResponse parses a non-2xx response into the canonical error shape.
	GetErrorResponse(res *Response) (*types.ErrorResponse, error)
}

// Connector is implemented once per external processor.
type Connector interface {
	GetName() string
	// ValidateAuthType runs the connector's auth extraction and discards the result.
	ValidateAuthType(auth types.ConnectorAuthType) error
	// ValidatePaymentMethod classifies a payment method with the same switch
	// used to build the authorize request, so it stays the single source of
	// truth for capability queries.
	ValidatePaymentMethod(pmd types.PaymentMethodData) error

	Authorize() Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData]
	CompleteAuthorize() Integration[types.CompleteAuthorizeData, types.PaymentsResponseData]
	Capture() Integration[types.PaymentsCaptureData, types.PaymentsResponseData]
	PSync() Integration[types.PaymentsSyncData, types.PaymentsResponseData]
	Void() Integration[types.PaymentsCancelData, types.PaymentsResponseData]
	Execute() Integration[types.RefundsData, types.RefundsResponseData]
	RSync() Integration[types.RefundsData, types.RefundsResponseData]
}

// AccessTokenConnector is implemented by connectors that require an OAuth
// token before any payment call.
type AccessTokenConnector interface {
	Connector
	AccessToken() Integration[types.AccessTokenRequestData, types.AccessToken]
}

// Funcs adapts plain functions to an Integration.
type Funcs[Req, Resp any] struct {
	Build  func(rd *types.RouterData[Req, Resp]) (*Request, error)
	Handle func(rd *types.RouterData[Req, Resp], res *Response) (*types.RouterData[Req, Resp], error)
	Error  func(res *Response) (*types.ErrorResponse, error)
}

func (f Funcs[Req, Resp]) BuildRequest(rd *types.RouterData[Req, Resp]) (*Request, error) {
	return f.Build(rd)
}

func (f Funcs[Req, Resp]) HandleResponse(rd *types.RouterData[Req, Resp], res *Response) (*types.RouterData[Req, Resp], error) {
	return f.Handle(rd, res)
}

func (f Funcs[Req, Resp]) GetErrorResponse(res *Response) (*types.ErrorResponse, error) {
	if f.Error == nil {
		return DefaultErrorResponse(res), nil
	}
	return f.Error(res)
}

// Unsupported is returned by connectors for flows they do not implement.
// Its BuildRequest fails with NotImplemented before anything is sent.
func Unsupported[Req, Resp any](connector string, flow types.Flow) Integration[Req, Resp] {
	return Funcs[Req, Resp]{
		Build: func(*types.RouterData[Req, Resp]) (*Request, error) {
			return nil, types.NotImplemented(string(flow) + " flow for " + connector)
		},
		Handle: func(*types.RouterData[Req, Resp], *Response) (*types.RouterData[Req, Resp], error) {
			return nil, types.FlowNotSupported(flow, connector)
		},
	}
}

// DefaultErrorResponse is used when a connector's error body cannot be parsed.
func DefaultErrorResponse(res *Response) *types.ErrorResponse {
	return &types.ErrorResponse{
		StatusCode: res.StatusCode,
		Code:       types.NoErrorCode,
		Message:    types.NoErrorMessage,
		Reason:     types.Ptr(string(res.Body)),
	}
}
