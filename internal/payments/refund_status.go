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

// RefundStatus reads a refund, optionally syncing a pending one with the
// connector first.
type RefundStatus struct{}

var _ Operation[RefundsRetrieveRequest, *RefundData] = RefundStatus{}

func (RefundStatus) Name() string { return "refund_status" }

func (RefundStatus) ValidateRequest(req *RefundsRetrieveRequest, m *merchant.Account) (*ValidateResult, error) {
	if req.RefundID == "" {
		return nil, RefundNotFound()
	}
	if err := validateMerchantID(m, req.MerchantID); err != nil {
		return nil, err
	}
	return &ValidateResult{MerchantID: m.MerchantID, RefundID: req.RefundID, StorageScheme: m.StorageScheme}, nil
}

func (RefundStatus) GetTrackers(ctx context.Context, deps *Deps, vr *ValidateResult, req *RefundsRetrieveRequest, _ *merchant.Account, _ *merchant.KeyStore) (*RefundData, *CustomerDetails, error) {
	refund, err := deps.Store.FindRefund(ctx, vr.RefundID, vr.MerchantID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil, RefundNotFound()
	case err != nil:
		return nil, nil, fmt.Errorf("loading refund %s: %w", vr.RefundID, err)
	}
	vr.PaymentID = refund.PaymentID
	intent, attempt, err := loadPayment(ctx, deps, refund.PaymentID, vr.MerchantID, vr.StorageScheme)
	if err != nil {
		return nil, nil, err
	}
	return &RefundData{Intent: intent, Attempt: attempt, Refund: refund, ForceSync: req.ForceSync}, nil, nil
}

func (RefundStatus) GetOrCreateCustomerDetails(context.Context, *Deps, *RefundData, *CustomerDetails, *merchant.KeyStore) (*types.Customer, error) {
	return nil, nil
}

func (RefundStatus) MakePaymentMethodData(context.Context, *Deps, *RefundData, *merchant.KeyStore) error {
	return nil
}

func (RefundStatus) GetConnector(_ context.Context, _ *Deps, _ *RefundsRetrieveRequest, data *RefundData, _ *merchant.Account) (router.ConnectorChoice, error) {
	return router.ConnectorChoice{Connector: data.Refund.Connector, Source: router.SourceRouting}, nil
}

func (RefundStatus) ShouldCallConnector(data *RefundData) bool {
	return data.ForceSync && !data.Refund.Status.IsTerminal()
}

func (RefundStatus) CallConnector(ctx context.Context, deps *Deps, data *RefundData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	rd := newRefundRouterData[types.RefundsResponseData](types.FlowRSync, data, account)
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.RefundsData, types.RefundsResponseData] {
		return c.RSync()
	}, rd)
	if err != nil {
		return fmt.Errorf("syncing refund %s: %w", data.Refund.RefundID, err)
	}
	return applyRefundResponse(data, out, false)
}

func (RefundStatus) UpdateTrackers(ctx context.Context, deps *Deps, data *RefundData, _ *types.Customer, _ types.StorageScheme) (*RefundData, error) {
	if !data.Dispatched {
		return data, nil
	}
	return persistRefund(ctx, deps, data)
}
