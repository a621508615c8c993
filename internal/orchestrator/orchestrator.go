// Package orchestrator drives one payment operation through its stages for a
// single request. It resolves the merchant, runs each stage under its own
// span, stops at the first failing stage and maps that failure to the API
// error tier exactly once.
package orchestrator

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/payments"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

// Stage names, as used for spans, logs and metrics.
const (
	StageMerchant       = "merchant"
	StageValidate       = "validate_request"
	StageGetTrackers    = "get_trackers"
	StageCustomer       = "customer_details"
	StagePaymentMethod  = "payment_method_data"
	StageGetConnector   = "get_connector"
	StageCallConnector  = "call_connector"
	StageUpdateTrackers = "update_trackers"
)

// Orchestrator holds what every operation run needs.
type Orchestrator struct {
	merchants merchant.Repository
	deps      *payments.Deps
	logger    logrus.FieldLogger
	tracer    trace.Tracer
}

func NewOrchestrator(merchants merchant.Repository, deps *payments.Deps, logger logrus.FieldLogger) *Orchestrator {
	if merchants == nil {
		panic("merchant repository cannot be nil")
	}
	if deps == nil || deps.Store == nil || deps.Processor == nil || deps.Router == nil || deps.Vault == nil || deps.IDs == nil {
		panic("payment dependencies are incomplete")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Orchestrator{
		merchants: merchants,
		deps:      deps,
		logger:    logger,
		tracer:    otel.Tracer("orchestrator"),
	}
}

// Result is a finished run.
type Result[D any] struct {
	Data D
	// Connector is nil when the operation did not call a connector.
	Connector *router.ConnectorChoice
	// Requeue echoes the caller's retry_action; nothing is scheduled here.
	Requeue bool
}

// Execute runs op for merchantID. On failure the returned error is always a
// *payments.Error and nothing after the failing stage has run.
func Execute[R any, D any](ctx context.Context, o *Orchestrator, op payments.Operation[R, D], merchantID string, req *R) (*Result[D], error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "Orchestrator."+op.Name(), trace.WithAttributes(
		attribute.String("payment.operation", op.Name()),
		attribute.String("merchant.id", merchantID),
	))
	defer span.End()

	log := o.logger.WithFields(logrus.Fields{"operation": op.Name(), "merchant_id": merchantID})
	r := &run{o: o, ctx: ctx, operation: op.Name(), log: log}

	res, stage, err := execute(r, op, merchantID, req)
	if err != nil {
		apiErr := payments.ToAPIError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apiErr.Code))
		span.SetAttributes(attribute.String("payment.failed_stage", stage))

		entry := log.WithFields(logrus.Fields{"stage": stage, "code": apiErr.Code, "status": apiErr.Status}).WithError(err)
		if apiErr.Status >= http.StatusInternalServerError {
			entry.Error("Payment operation failed")
		} else {
			entry.Info("Payment operation rejected")
		}
		operationsTotal.WithLabelValues(op.Name(), string(apiErr.Code)).Inc()
		operationDuration.WithLabelValues(op.Name()).Observe(time.Since(start).Seconds())
		return nil, apiErr
	}

	if res.Connector != nil {
		span.SetAttributes(attribute.String("payment.connector", res.Connector.Connector))
	}
	operationsTotal.WithLabelValues(op.Name(), outcomeSuccess).Inc()
	operationDuration.WithLabelValues(op.Name()).Observe(time.Since(start).Seconds())
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Payment operation completed")
	return res, nil
}

// execute returns the name of the failing stage alongside any error.
func execute[R any, D any](r *run, op payments.Operation[R, D], merchantID string, req *R) (*Result[D], string, error) {
	var (
		account *merchant.Account
		ks      *merchant.KeyStore
	)
	if err := r.stage(StageMerchant, func(ctx context.Context) error {
		var err error
		if account, err = r.o.merchants.FindAccount(ctx, merchantID); err != nil {
			return err
		}
		ks, err = r.o.merchants.FindKeyStore(ctx, merchantID)
		return err
	}); err != nil {
		return nil, StageMerchant, err
	}

	var vr *payments.ValidateResult
	if err := r.stage(StageValidate, func(context.Context) error {
		var err error
		vr, err = op.ValidateRequest(req, account)
		return err
	}); err != nil {
		return nil, StageValidate, err
	}

	var (
		data    D
		details *payments.CustomerDetails
	)
	if err := r.stage(StageGetTrackers, func(ctx context.Context) error {
		var err error
		data, details, err = op.GetTrackers(ctx, r.o.deps, vr, req, account, ks)
		return err
	}); err != nil {
		return nil, StageGetTrackers, err
	}
	r.log = r.log.WithField("payment_id", vr.PaymentID)

	var customer *types.Customer
	if err := r.stage(StageCustomer, func(ctx context.Context) error {
		var err error
		customer, err = op.GetOrCreateCustomerDetails(ctx, r.o.deps, data, details, ks)
		return err
	}); err != nil {
		return nil, StageCustomer, err
	}

	if err := r.stage(StagePaymentMethod, func(ctx context.Context) error {
		return op.MakePaymentMethodData(ctx, r.o.deps, data, ks)
	}); err != nil {
		return nil, StagePaymentMethod, err
	}

	res := &Result[D]{Requeue: vr.Requeue}
	if op.ShouldCallConnector(data) {
		var choice router.ConnectorChoice
		if err := r.stage(StageGetConnector, func(ctx context.Context) error {
			var err error
			choice, err = op.GetConnector(ctx, r.o.deps, req, data, account)
			return err
		}); err != nil {
			return nil, StageGetConnector, err
		}
		r.log = r.log.WithFields(logrus.Fields{"connector": choice.Connector, "connector_source": choice.Source})
		if err := r.stage(StageCallConnector, func(ctx context.Context) error {
			return op.CallConnector(ctx, r.o.deps, data, choice, account)
		}); err != nil {
			return nil, StageCallConnector, err
		}
		res.Connector = &choice
	}

	if err := r.stage(StageUpdateTrackers, func(ctx context.Context) error {
		var err error
		data, err = op.UpdateTrackers(ctx, r.o.deps, data, customer, vr.StorageScheme)
		return err
	}); err != nil {
		return nil, StageUpdateTrackers, err
	}
	res.Data = data
	return res, "", nil
}

// run carries the per-request state shared by the stages.
type run struct {
	o         *Orchestrator
	ctx       context.Context
	operation string
	log       logrus.FieldLogger
}

// stage runs fn under a child span and records its duration.
func (r *run) stage(name string, fn func(ctx context.Context) error) error {
	ctx, span := r.o.tracer.Start(r.ctx, "stage."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	stageDuration.WithLabelValues(r.operation, name).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	r.log.WithField("stage", name).Debug("Stage completed")
	return nil
}
