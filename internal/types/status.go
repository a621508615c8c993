package types

// IntentStatus is the coarse, merchant-visible status of a PaymentIntent.
type IntentStatus string

const (
	IntentRequiresPaymentMethod  IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation   IntentStatus = "requires_confirmation"
	IntentRequiresCustomerAction IntentStatus = "requires_customer_action"
	IntentRequiresMerchantAction IntentStatus = "requires_merchant_action"
	IntentRequiresCapture        IntentStatus = "requires_capture"
	IntentPartiallyCaptured      IntentStatus = "partially_captured"
	IntentProcessing             IntentStatus = "processing"
	IntentSucceeded              IntentStatus = "succeeded"
	IntentFailed                 IntentStatus = "failed"
	IntentCancelled              IntentStatus = "cancelled"
)

// AllIntentStatuses lists every IntentStatus value.
var AllIntentStatuses = []IntentStatus{
	IntentRequiresPaymentMethod,
	IntentRequiresConfirmation,
	IntentRequiresCustomerAction,
	IntentRequiresMerchantAction,
	IntentRequiresCapture,
	IntentPartiallyCaptured,
	IntentProcessing,
	IntentSucceeded,
	IntentFailed,
	IntentCancelled,
}

// IsTerminal reports whether the intent can no longer be mutated.
func (s IntentStatus) IsTerminal() bool {
	switch s {
	case IntentSucceeded, IntentFailed, IntentCancelled:
		return true
	}
	return false
}

// AttemptStatus is the fine-grained status of a single connector dispatch.
type AttemptStatus string

const (
	AttemptStarted                     AttemptStatus = "started"
	AttemptAuthenticationFailed        AttemptStatus = "authentication_failed"
	AttemptRouterDeclined              AttemptStatus = "router_declined"
	AttemptAuthenticationPending       AttemptStatus = "authentication_pending"
	AttemptAuthenticationSuccessful    AttemptStatus = "authentication_successful"
	AttemptAuthorized                  AttemptStatus = "authorized"
	AttemptAuthorizationFailed         AttemptStatus = "authorization_failed"
	AttemptCharged                     AttemptStatus = "charged"
	AttemptAuthorizing                 AttemptStatus = "authorizing"
	AttemptCodInitiated                AttemptStatus = "cod_initiated"
	AttemptVoided                      AttemptStatus = "voided"
	AttemptVoidInitiated               AttemptStatus = "void_initiated"
	AttemptCaptureInitiated            AttemptStatus = "capture_initiated"
	AttemptCaptureFailed               AttemptStatus = "capture_failed"
	AttemptVoidFailed                  AttemptStatus = "void_failed"
	AttemptAutoRefunded                AttemptStatus = "auto_refunded"
	AttemptPartialCharged              AttemptStatus = "partial_charged"
	AttemptPartialChargedAndChargeable AttemptStatus = "partial_charged_and_chargeable"
	AttemptUnresolved                  AttemptStatus = "unresolved"
	AttemptPending                     AttemptStatus = "pending"
	AttemptFailure                     AttemptStatus = "failure"
	AttemptPaymentMethodAwaited        AttemptStatus = "payment_method_awaited"
	AttemptConfirmationAwaited         AttemptStatus = "confirmation_awaited"
	AttemptDeviceDataCollectionPending AttemptStatus = "device_data_collection_pending"
)

// AllAttemptStatuses lists every AttemptStatus value.
var AllAttemptStatuses = []AttemptStatus{
	AttemptStarted,
	AttemptAuthenticationFailed,
	AttemptRouterDeclined,
	AttemptAuthenticationPending,
	AttemptAuthenticationSuccessful,
	AttemptAuthorized,
	AttemptAuthorizationFailed,
	AttemptCharged,
	AttemptAuthorizing,
	AttemptCodInitiated,
	AttemptVoided,
	AttemptVoidInitiated,
	AttemptCaptureInitiated,
	AttemptCaptureFailed,
	AttemptVoidFailed,
	AttemptAutoRefunded,
	AttemptPartialCharged,
	AttemptPartialChargedAndChargeable,
	AttemptUnresolved,
	AttemptPending,
	AttemptFailure,
	AttemptPaymentMethodAwaited,
	AttemptConfirmationAwaited,
	AttemptDeviceDataCollectionPending,
}

// IntentStatus derives the intent status implied by an attempt status.
// Connectors only ever report attempt statuses; the intent follows from this table.
// An unknown attempt status yields IntentProcessing so the payment stays non-terminal.
func (s AttemptStatus) IntentStatus() IntentStatus {
	switch s {
	case AttemptCharged, AttemptAutoRefunded:
		return IntentSucceeded
	case AttemptConfirmationAwaited:
		return IntentRequiresConfirmation
	case AttemptPaymentMethodAwaited:
		return IntentRequiresPaymentMethod
	case AttemptAuthorized:
		return IntentRequiresCapture
	case AttemptAuthenticationPending, AttemptDeviceDataCollectionPending:
		return IntentRequiresCustomerAction
	case AttemptUnresolved:
		return IntentRequiresMerchantAction
	case AttemptPartialCharged, AttemptPartialChargedAndChargeable:
		return IntentPartiallyCaptured
	case AttemptStarted, AttemptAuthenticationSuccessful, AttemptAuthorizing,
		AttemptCodInitiated, AttemptVoidInitiated, AttemptCaptureInitiated, AttemptPending:
		return IntentProcessing
	case AttemptAuthenticationFailed, AttemptAuthorizationFailed, AttemptVoidFailed,
		AttemptRouterDeclined, AttemptCaptureFailed, AttemptFailure:
		return IntentFailed
	case AttemptVoided:
		return IntentCancelled
	}
	return IntentProcessing
}

// IsTerminal reports whether no further connector interaction can change the attempt.
func (s AttemptStatus) IsTerminal() bool {
	return s.IntentStatus().IsTerminal()
}

// RefundStatus is shared by the refund Execute and RSync flows.
type RefundStatus string

const (
	RefundSuccess RefundStatus = "success"
	RefundFailure RefundStatus = "failure"
	RefundPending RefundStatus = "pending"
)

func (s RefundStatus) IsTerminal() bool {
	return s == RefundSuccess || s == RefundFailure
}

// CaptureMethod selects whether funds are captured together with authorization.
type CaptureMethod string

const (
	CaptureAutomatic           CaptureMethod = "automatic"
	CaptureManual              CaptureMethod = "manual"
	CaptureManualMultiple      CaptureMethod = "manual_multiple"
	CaptureScheduled           CaptureMethod = "scheduled"
	CaptureSequentialAutomatic CaptureMethod = "sequential_automatic"
)

// IsAutoCapture resolves a capture method to the boolean most connectors expect.
// An empty capture method means automatic.
func IsAutoCapture(m *CaptureMethod) (bool, error) {
	if m == nil {
		return true, nil
	}
	switch *m {
	case CaptureAutomatic, CaptureSequentialAutomatic:
		return true, nil
	case CaptureManual, CaptureManualMultiple:
		return false, nil
	}
	return false, &ConnectorError{Kind: KindCaptureMethodNotSupported, Message: string(*m)}
}

// FutureUsage tells whether the payment method should be stored for later use.
type FutureUsage string

const (
	FutureUsageOnSession  FutureUsage = "on_session"
	FutureUsageOffSession FutureUsage = "off_session"
)

// StorageScheme is the consistency mode threaded through every storage call.
type StorageScheme string

const (
	StoragePostgresOnly StorageScheme = "postgres_only"
	StorageRedisKV      StorageScheme = "redis_kv"
)

// MandateTxnType is resolved during request validation.
type MandateTxnType string

const (
	MandateTxnNone      MandateTxnType = ""
	MandateTxnNew       MandateTxnType = "new_mandate"
	MandateTxnRecurring MandateTxnType = "recurring_mandate"
)

// Flow names a connector interaction.
type Flow string

const (
	FlowAuthorize         Flow = "authorize"
	FlowCompleteAuthorize Flow = "complete_authorize"
	FlowCapture           Flow = "capture"
	FlowPSync             Flow = "psync"
	FlowVoid              Flow = "void"
	FlowExecute           Flow = "execute"
	FlowRSync             Flow = "rsync"
	FlowAccessToken       Flow = "access_token"
)
