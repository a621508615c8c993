package types

import (
	"errors"
	"fmt"
)

// ConnectorErrorKind classifies failures raised inside connector transformers
// and the connector registry.
type ConnectorErrorKind int

const (
	KindFailedToObtainAuthType ConnectorErrorKind = iota + 1
	KindNotImplemented
	KindNotSupported
	KindMissingRequiredField
	KindResponseHandlingFailed
	KindResponseDeserializationFailed
	KindRequestEncodingFailed
	KindCaptureMethodNotSupported
	KindFlowNotSupported
	KindInvalidConnectorName
)

func (k ConnectorErrorKind) String() string {
	switch k {
	case KindFailedToObtainAuthType:
		return "failed_to_obtain_auth_type"
	case KindNotImplemented:
		return "not_implemented"
	case KindNotSupported:
		return "not_supported"
	case KindMissingRequiredField:
		return "missing_required_field"
	case KindResponseHandlingFailed:
		return "response_handling_failed"
	case KindResponseDeserializationFailed:
		return "response_deserialization_failed"
	case KindRequestEncodingFailed:
		return "request_encoding_failed"
	case KindCaptureMethodNotSupported:
		return "capture_method_not_supported"
	case KindFlowNotSupported:
		return "flow_not_supported"
	case KindInvalidConnectorName:
		return "invalid_connector_name"
	}
	return "unknown"
}

// ConnectorError is the inner error tier. It never leaves the pipeline boundary
// in this shape; the payments package maps it to an API error.
type ConnectorError struct {
	Kind ConnectorErrorKind
	// Message holds the feature name for NotImplemented and the
	// description for NotSupported.
	Message   string
	Connector string
	Field     string
	Err       error
}

func (e *ConnectorError) Error() string {
	var msg string
	switch e.Kind {
	case KindFailedToObtainAuthType:
		msg = "failed to obtain authentication type"
	case KindNotImplemented:
		msg = fmt.Sprintf("%s is not implemented", e.Message)
	case KindNotSupported:
		msg = fmt.Sprintf("%s is not supported by %s", e.Message, e.Connector)
	case KindMissingRequiredField:
		msg = fmt.Sprintf("missing required field: %s", e.Field)
	case KindResponseHandlingFailed:
		msg = "failed to handle connector response"
	case KindResponseDeserializationFailed:
		msg = "failed to deserialize connector response"
	case KindRequestEncodingFailed:
		msg = "failed to encode connector request"
	case KindCaptureMethodNotSupported:
		msg = fmt.Sprintf("capture method %q is not supported", e.Message)
	case KindFlowNotSupported:
		msg = fmt.Sprintf("flow %s is not supported by %s", e.Message, e.Connector)
	case KindInvalidConnectorName:
		msg = fmt.Sprintf("invalid connector name: %s", e.Connector)
	default:
		msg = "connector error"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// Is matches on kind only, so the sentinels below work with errors.Is
// regardless of the detail fields.
func (e *ConnectorError) Is(target error) bool {
	t, ok := target.(*ConnectorError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrFailedToObtainAuthType        = &ConnectorError{Kind: KindFailedToObtainAuthType}
	ErrNotImplemented                = &ConnectorError{Kind: KindNotImplemented}
	ErrNotSupported                  = &ConnectorError{Kind: KindNotSupported}
	ErrMissingRequiredField          = &ConnectorError{Kind: KindMissingRequiredField}
	ErrResponseHandlingFailed        = &ConnectorError{Kind: KindResponseHandlingFailed}
	ErrResponseDeserializationFailed = &ConnectorError{Kind: KindResponseDeserializationFailed}
	ErrRequestEncodingFailed         = &ConnectorError{Kind: KindRequestEncodingFailed}
	ErrCaptureMethodNotSupported     = &ConnectorError{Kind: KindCaptureMethodNotSupported}
	ErrFlowNotSupported              = &ConnectorError{Kind: KindFlowNotSupported}
	ErrInvalidConnectorName          = &ConnectorError{Kind: KindInvalidConnectorName}
)

func FailedToObtainAuthType() *ConnectorError {
	return &ConnectorError{Kind: KindFailedToObtainAuthType}
}

// NotImplemented marks a feature the connector could support but that has not been built.
func NotImplemented(feature string) *ConnectorError {
	return &ConnectorError{Kind: KindNotImplemented, Message: feature}
}

// NotSupported marks something the connector cannot do at all.
func NotSupported(message, connector string) *ConnectorError {
	return &ConnectorError{Kind: KindNotSupported, Message: message, Connector: connector}
}

func MissingRequiredField(field string) *ConnectorError {
	return &ConnectorError{Kind: KindMissingRequiredField, Field: field}
}

func ResponseHandlingFailed(err error) *ConnectorError {
	return &ConnectorError{Kind: KindResponseHandlingFailed, Err: err}
}

func ResponseDeserializationFailed(err error) *ConnectorError {
	return &ConnectorError{Kind: KindResponseDeserializationFailed, Err: err}
}

func RequestEncodingFailed(err error) *ConnectorError {
	return &ConnectorError{Kind: KindRequestEncodingFailed, Err: err}
}

func FlowNotSupported(flow Flow, connector string) *ConnectorError {
	return &ConnectorError{Kind: KindFlowNotSupported, Message: string(flow), Connector: connector}
}

func InvalidConnectorName(connector string) *ConnectorError {
	return &ConnectorError{Kind: KindInvalidConnectorName, Connector: connector}
}

// IsCapabilityError reports whether err means "this connector cannot do that"
// rather than a malformed request.
func IsCapabilityError(err error) bool {
	return errors.Is(err, ErrNotImplemented) || errors.Is(err, ErrNotSupported)
}
