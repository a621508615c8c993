package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
	"github.com/yourorg/payment-router/internal/vault"
)

// ErrorCode is the stable, caller-visible error code.
type ErrorCode string

const (
	CodePaymentNotFound          ErrorCode = "payment_not_found"
	CodeBusinessProfileNotFound  ErrorCode = "business_profile_not_found"
	CodeInvalidDataFormat        ErrorCode = "invalid_data_format"
	CodeInvalidDataValue         ErrorCode = "invalid_data_value"
	CodeInternalServerError      ErrorCode = "internal_server_error"
	CodePaymentUnexpectedState   ErrorCode = "payment_unexpected_state"
	CodeMissingRequiredField     ErrorCode = "missing_required_field"
	CodePreconditionFailed       ErrorCode = "precondition_failed"
	CodeNotImplemented           ErrorCode = "not_implemented"
	CodeNotSupported             ErrorCode = "not_supported"
	CodeDuplicatePayment         ErrorCode = "duplicate_payment"
	CodeDuplicateRefund          ErrorCode = "duplicate_refund"
	CodeRefundNotFound           ErrorCode = "refund_not_found"
	CodeMerchantAccountNotFound  ErrorCode = "merchant_account_not_found"
	CodeConnectorError           ErrorCode = "connector_error"
	CodeMandateNotFound          ErrorCode = "mandate_not_found"
	CodeRefundAmountExceedsTotal ErrorCode = "refund_amount_exceeds_payment_amount"
)

// Error is the API error tier: the only error shape that leaves the pipeline.
// Err keeps the underlying cause for errors.Is and errors.As.
type Error struct {
	Code    ErrorCode
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on code, so errors.Is(err, &Error{Code: CodePaymentNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) wrap(err error) *Error {
	e.Err = err
	return e
}

func PaymentNotFound() *Error {
	return &Error{Code: CodePaymentNotFound, Message: "payment does not exist in our records", Status: http.StatusNotFound}
}

func BusinessProfileNotFound(id string) *Error {
	return &Error{Code: CodeBusinessProfileNotFound, Message: fmt.Sprintf("business profile with the given id '%s' does not exist", id), Status: http.StatusNotFound}
}

func InvalidDataFormat(field, expected string) *Error {
	return &Error{Code: CodeInvalidDataFormat, Message: fmt.Sprintf("%s contains invalid data, expected format is %s", field, expected), Status: http.StatusUnprocessableEntity}
}

func InvalidDataValue(field string) *Error {
	return &Error{Code: CodeInvalidDataValue, Message: fmt.Sprintf("invalid value provided: %s", field), Status: http.StatusBadRequest}
}

func InternalServerError(err error) *Error {
	return &Error{Code: CodeInternalServerError, Message: "something went wrong", Status: http.StatusInternalServerError, Err: err}
}

func PaymentUnexpectedState(message string) *Error {
	return &Error{Code: CodePaymentUnexpectedState, Message: message, Status: http.StatusBadRequest}
}

func MissingRequiredField(field string) *Error {
	return &Error{Code: CodeMissingRequiredField, Message: fmt.Sprintf("missing required param: %s", field), Status: http.StatusBadRequest}
}

func PreconditionFailed(message string) *Error {
	return &Error{Code: CodePreconditionFailed, Message: message, Status: http.StatusBadRequest}
}

func NotImplemented(message string) *Error {
	return &Error{Code: CodeNotImplemented, Message: message, Status: http.StatusNotImplemented}
}

func NotSupported(message string) *Error {
	return &Error{Code: CodeNotSupported, Message: message, Status: http.StatusBadRequest}
}

func DuplicatePayment(paymentID string) *Error {
	return &Error{Code: CodeDuplicatePayment, Message: fmt.Sprintf("the payment with the specified payment_id '%s' already exists", paymentID), Status: http.StatusBadRequest}
}

func DuplicateRefund(refundID string) *Error {
	return &Error{Code: CodeDuplicateRefund, Message: fmt.Sprintf("the refund with the specified refund_id '%s' already exists", refundID), Status: http.StatusBadRequest}
}

func RefundNotFound() *Error {
	return &Error{Code: CodeRefundNotFound, Message: "refund does not exist in our records", Status: http.StatusNotFound}
}

func MerchantAccountNotFound() *Error {
	return &Error{Code: CodeMerchantAccountNotFound, Message: "merchant account does not exist in our records", Status: http.StatusUnauthorized}
}

func MandateNotFound() *Error {
	return &Error{Code: CodeMandateNotFound, Message: "mandate does not exist in our records", Status: http.StatusNotFound}
}

func RefundAmountExceedsTotal() *Error {
	return &Error{Code: CodeRefundAmountExceedsTotal, Message: "refund amount exceeds the payment amount", Status: http.StatusBadRequest}
}

// ConnectorFailure is raised when the connector could not be reached or
// answered with something unusable.
func ConnectorFailure(connector string, err error) *Error {
	msg := "error while communicating with the connector"
	if connector != "" {
		msg = fmt.Sprintf("error while communicating with connector %s", connector)
	}
	return &Error{Code: CodeConnectorError, Message: msg, Status: http.StatusBadGateway, Err: err}
}

// ToAPIError maps any error raised inside the pipeline to the API tier.
// It is applied once, at the pipeline boundary.
func ToAPIError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var ce *types.ConnectorError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case types.KindMissingRequiredField:
			return MissingRequiredField(ce.Field).wrap(err)
		case types.KindNotImplemented:
			return NotImplemented(ce.Error()).wrap(err)
		case types.KindNotSupported, types.KindFlowNotSupported, types.KindCaptureMethodNotSupported:
			return NotSupported(ce.Error()).wrap(err)
		case types.KindInvalidConnectorName:
			return InvalidDataValue("connector").wrap(err)
		case types.KindFailedToObtainAuthType:
			return PreconditionFailed("the merchant connector account credentials are invalid").wrap(err)
		case types.KindResponseHandlingFailed, types.KindResponseDeserializationFailed:
			return ConnectorFailure(ce.Connector, err)
		}
		return InternalServerError(err)
	}

	var te *processor.TransportError
	if errors.As(err, &te) {
		return ConnectorFailure("", err)
	}

	switch {
	case errors.Is(err, processor.ErrCircuitOpen):
		return ConnectorFailure("", err)
	case errors.Is(err, merchant.ErrMerchantNotFound):
		return MerchantAccountNotFound().wrap(err)
	case errors.Is(err, merchant.ErrConnectorAccountNotFound):
		return InvalidDataValue("connector").wrap(err)
	case errors.Is(err, router.ErrConnectorNotEnabled):
		return InvalidDataValue("routing.connectors").wrap(err)
	case errors.Is(err, router.ErrNoEligibleConnector):
		return NotSupported("no enabled connector supports this payment").wrap(err)
	case errors.Is(err, types.ErrUnknownPaymentMethod):
		return InvalidDataValue("payment_method_data").wrap(err)
	case errors.Is(err, vault.ErrTokenNotFound):
		return InvalidDataValue("payment_token").wrap(err)
	case errors.Is(err, storage.ErrConflict):
		return PaymentUnexpectedState("payment was modified concurrently").wrap(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &Error{Code: CodeInternalServerError, Message: "request was cancelled", Status: http.StatusGatewayTimeout, Err: err}
	}
	return InternalServerError(err)
}
