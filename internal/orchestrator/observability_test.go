package orchestrator

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yourorg/payment-router/internal/payments"
	"github.com/yourorg/payment-router/internal/types"
)

func recordingOrchestrator(t *testing.T) (*Orchestrator, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orc := newTestOrchestrator(t)
	orc.tracer = tp.Tracer("orchestrator")
	return orc, rec
}

func spanNames(spans []sdktrace.ReadOnlySpan) []string {
	names := make([]string, 0, len(spans))
	for _, s := range spans {
		names = append(names, s.Name())
	}
	return names
}

func TestExecute_StageSpansAndMetrics(t *testing.T) {
	orc, rec := recordingOrchestrator(t)
	op := new(MockOperation)
	data := &fakeData{}
	vr := &payments.ValidateResult{MerchantID: "merchant_1", StorageScheme: types.StoragePostgresOnly}

	op.On("ValidateRequest", mock.Anything, mock.Anything).Return(vr, nil)
	op.On("GetTrackers", vr, mock.Anything).Return(data, nil)
	op.On("GetOrCreateCustomerDetails", data).Return(nil, nil)
	op.On("MakePaymentMethodData", data).Return(nil)
	op.On("ShouldCallConnector", data).Return(false)
	op.On("UpdateTrackers", data, (*types.Customer)(nil), types.StoragePostgresOnly).Return(data, nil)

	_, err := Execute[fakeRequest, *fakeData](context.Background(), orc, op, "merchant_1", &fakeRequest{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"stage." + StageMerchant,
		"stage." + StageValidate,
		"stage." + StageGetTrackers,
		"stage." + StageCustomer,
		"stage." + StagePaymentMethod,
		"stage." + StageUpdateTrackers,
		"Orchestrator.fake_operation",
	}, spanNames(rec.Ended()))

	assert.Positive(t, testutil.CollectAndCount(GetStageDuration(), "payment_operation_stage_duration_seconds"))
	assert.Positive(t, testutil.CollectAndCount(GetOperationDuration(), "payment_operation_duration_seconds"))
}

func TestExecute_FailedStageMarksSpans(t *testing.T) {
	orc, rec := recordingOrchestrator(t)
	op := new(MockOperation)

	op.On("ValidateRequest", mock.Anything, mock.Anything).Return(nil, payments.InvalidDataValue("amount"))

	_, err := Execute[fakeRequest, *fakeData](context.Background(), orc, op, "merchant_1", &fakeRequest{})
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "stage."+StageValidate, spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)

	root := spans[2]
	assert.Equal(t, codes.Error, root.Status().Code)
	assert.Equal(t, string(payments.CodeInvalidDataValue), root.Status().Description)

	var failedStage string
	for _, kv := range root.Attributes() {
		if kv.Key == "payment.failed_stage" {
			failedStage = kv.Value.AsString()
		}
	}
	assert.Equal(t, StageValidate, failedStage)
}
