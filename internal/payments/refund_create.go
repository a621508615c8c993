package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
)

// RefundCreate returns some or all of a captured payment to the customer.
type RefundCreate struct{}

var _ Operation[RefundRequest, *RefundData] = RefundCreate{}

var refundAllowedStatuses = []types.IntentStatus{
	types.IntentSucceeded,
	types.IntentPartiallyCaptured,
}

func (RefundCreate) Name() string { return "refund_create" }

func (RefundCreate) ValidateRequest(req *RefundRequest, m *merchant.Account) (*ValidateResult, error) {
	if err := validatePaymentID(req.PaymentID); err != nil {
		return nil, err
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, InvalidDataValue("amount")
	}
	var refundID string
	if req.RefundID != nil {
		refundID = *req.RefundID
		if err := validateID("refund_id", refundID); err != nil {
			return nil, err
		}
	}
	return &ValidateResult{
		MerchantID:    m.MerchantID,
		PaymentID:     req.PaymentID,
		RefundID:      refundID,
		StorageScheme: m.StorageScheme,
	}, nil
}

func (RefundCreate) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *RefundRequest, _ *merchant.Account, _ *merchant.KeyStore) (*RefundData, *CustomerDetails, error) {
	intent, attempt, err := loadPayment(ctx, deps, vr.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidatePaymentStatusAllowed(intent.Status, refundAllowedStatuses, actionRefund); err != nil {
		return nil, nil, err
	}
	if attempt.Connector == nil || attempt.ConnectorTransactionID == nil {
		return nil, nil, PaymentUnexpectedState("payment has no connector transaction to refund")
	}

	if vr.RefundID == "" {
		vr.RefundID = deps.IDs.RefundID()
	} else {
		_, err := deps.Store.FindRefund(ctx, vr.RefundID, vr.MerchantID)
		switch {
		case err == nil:
			return nil, nil, DuplicateRefund(vr.RefundID)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, nil, fmt.Errorf("looking up refund %s: %w", vr.RefundID, err)
		}
	}

	refundable, err := refundableAmount(ctx, deps, intent)
	if err != nil {
		return nil, nil, err
	}
	amount := *Coalesce(req.Amount, &refundable)
	if amount > refundable || amount <= 0 {
		return nil, nil, RefundAmountExceedsTotal()
	}

	now := deps.now()
	refund := &types.Refund{
		RefundID:               vr.RefundID,
		PaymentID:              intent.PaymentID,
		MerchantID:             intent.MerchantID,
		AttemptID:              attempt.AttemptID,
		Connector:              *attempt.Connector,
		ConnectorTransactionID: *attempt.ConnectorTransactionID,
		RefundAmount:           amount,
		PaymentAmount:          intent.Amount,
		Currency:               intent.Currency,
		Status:                 types.RefundPending,
		Reason:                 req.Reason,
		CreatedAt:              now,
		ModifiedAt:             now,
	}
	return &RefundData{Intent: intent, Attempt: attempt, Refund: refund, IsNew: true}, nil, nil
}

// refundableAmount is the captured amount less every refund that has not failed.
func refundableAmount(ctx context.Context, deps *Deps, intent *types.PaymentIntent) (int64, error) {
	captured := intent.Amount
	if intent.AmountCaptured != nil {
		captured = *intent.AmountCaptured
	}
	existing, err := deps.Store.ListRefunds(ctx, intent.PaymentID, intent.MerchantID)
	if err != nil {
		return 0, fmt.Errorf("listing refunds of payment %s: %w", intent.PaymentID, err)
	}
	for _, r := range existing {
		if r.Status != types.RefundFailure {
			captured -= r.RefundAmount
		}
	}
	return captured, nil
}

func (RefundCreate) GetOrCreateCustomerDetails(context.Context, *Deps, *RefundData, *CustomerDetails, *merchant.KeyStore) (*types.Customer, error) {
	return nil, nil
}

func (RefundCreate) MakePaymentMethodData(context.Context, *Deps, *RefundData, *merchant.KeyStore) error {
	return nil
}

func (RefundCreate) GetConnector(_ context.Context, _ *Deps, _ *RefundRequest, data *RefundData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return router.ConnectorChoice{Connector: data.Refund.Connector, Source: router.SourceRouting}, nil
}

func (RefundCreate) ShouldCallConnector(*RefundData) bool { return true }

func (RefundCreate) CallConnector(ctx context.Context, deps *Deps, data *RefundData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	rd := newRefundRouterData[types.RefundsResponseData](types.FlowExecute, data, account)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.RefundsData, types.RefundsResponseData] {
		return c.Execute()
	}, rd)
	if err != nil {
		return fmt.Errorf("refunding payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyRefundResponse(data, out, true)
}

func (RefundCreate) UpdateTrackers(ctx context.Context, deps *Deps, data *RefundData, _ *types.Customer, _ types.StorageScheme) (*RefundData, error) {
	return persistRefund(ctx, deps, data)
}

func persistRefund(ctx context.Context, deps *Deps, data *RefundData) (*RefundData, error) {
	data.Refund.ModifiedAt = deps.now()
	stored, err := deps.Store.PersistRefund(ctx, data.Refund)
	switch {
	case errors.Is(err, storage.ErrConflict) && data.IsNew:
		return nil, DuplicateRefund(data.Refund.RefundID)
	case errors.Is(err, storage.ErrConflict):
		return nil, PaymentUnexpectedState("refund was modified concurrently")
	case errors.Is(err, storage.ErrNotFound):
		return nil, RefundNotFound()
	case err != nil:
		return nil, fmt.Errorf("persisting refund %s: %w", data.Refund.RefundID, err)
	}
	data.Refund = stored
	return data, nil
}
