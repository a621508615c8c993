package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

var errNoConnectorResponse = errors.New("connector returned no response")

func newRouterData[Req, Resp any](flow types.Flow, intent *types.PaymentIntent, attempt *types.PaymentAttempt, address types.PaymentAddress, connector string, account *merchant.ConnectorAccount, req Req) *types.RouterData[Req, Resp] {
	rd := &types.RouterData[Req, Resp]{
		Flow:                        flow,
		MerchantID:                  intent.MerchantID,
		CustomerID:                  intent.CustomerID,
		PaymentID:                   intent.PaymentID,
		AttemptID:                   attempt.AttemptID,
		Connector:                   connector,
		Status:                      attempt.Status,
		AuthType:                    account.AuthType,
		ConnectorMetaData:           account.Metadata,
		Description:                 intent.Description,
		ReturnURL:                   intent.ReturnURL,
		Address:                     address,
		ConnectorRequestReferenceID: attempt.AttemptID,
		AmountCaptured:              intent.AmountCaptured,
		ReferenceID:                 attempt.ConnectorResponseReferenceID,
		Request:                     req,
	}
	if attempt.PaymentMethod != nil {
		rd.PaymentMethod = *attempt.PaymentMethod
	}
	return rd
}

// attemptConnector is the connector an earlier authorization went to. Every
// follow-up flow must reuse it.
func attemptConnector(attempt *types.PaymentAttempt) (router.ConnectorChoice, error) {
	if attempt.Connector == nil || *attempt.Connector == "" {
		return router.ConnectorChoice{}, PaymentUnexpectedState("payment has not been sent to a connector")
	}
	return router.ConnectorChoice{Connector: *attempt.Connector, Source: router.SourceRouting}, nil
}

// chooseAuthorizeConnector resolves the connector for a new authorization.
// A recurring payment must go to the connector that holds its mandate.
func chooseAuthorizeConnector(ctx context.Context, deps *Deps, override *router.RoutingOverride, data *PaymentData, m *merchant.Account) (router.ConnectorChoice, error) {
	if data.Mandate != nil {
		if _, err := m.ConnectorAccount(data.Mandate.Connector); err != nil {
			return router.ConnectorChoice{}, fmt.Errorf("mandate connector %s: %w", data.Mandate.Connector, err)
		}
		return router.ConnectorChoice{Connector: data.Mandate.Connector, Source: router.SourceRequest}, nil
	}
	if data.PaymentMethodData == nil {
		return router.ConnectorChoice{}, MissingRequiredField("payment_method_data")
	}
	captureMethod := types.CaptureAutomatic
	if data.Attempt.CaptureMethod != nil {
		captureMethod = *data.Attempt.CaptureMethod
	}
	choice, err := deps.Router.ChooseConnector(ctx, m.Routing, override, router.Input{
		Amount:            data.Amount,
		Currency:          data.Currency,
		PaymentMethodData: data.PaymentMethodData,
		CaptureMethod:     captureMethod,
		BillingCountry:    data.Address.BillingCountry(),
		EnabledConnectors: m.EnabledConnectors(),
	})
	if err != nil {
		return router.ConnectorChoice{}, fmt.Errorf("routing payment %s: %w", data.Intent.PaymentID, err)
	}
	return choice, nil
}

func authorizeData(data *PaymentData) types.PaymentsAuthorizeData {
	req := types.PaymentsAuthorizeData{
		PaymentMethodData:   data.PaymentMethodData,
		Amount:              data.Amount,
		Currency:            data.Currency,
		Confirm:             true,
		CaptureMethod:       data.Attempt.CaptureMethod,
		StatementDescriptor: data.Intent.StatementDescriptor,
		BrowserInfo:         data.Attempt.BrowserInfo,
		Email:               data.Email,
		CustomerName:        data.CustomerName,
		SetupFutureUsage:    data.Intent.SetupFutureUsage,
		SetupMandateDetails: data.SetupMandate,
		OffSession:          data.OffSession,
		RouterReturnURL:     data.Intent.ReturnURL,
	}
	if data.Mandate != nil {
		req.ConnectorMandateID = data.Mandate.ConnectorMandateID
	}
	return req
}

func callAuthorize(ctx context.Context, deps *Deps, data *PaymentData, choice router.ConnectorChoice, m *merchant.Account) error {
	account, err := m.ConnectorAccount(choice.Connector)
	if err != nil {
		return fmt.Errorf("connector %s: %w", choice.Connector, err)
	}
	data.Attempt.Connector = &choice.Connector
	rd := newRouterData[types.PaymentsAuthorizeData, types.PaymentsResponseData](types.FlowAuthorize, data.Intent, data.Attempt, data.Address, choice.Connector, account, authorizeData(data))
	out, err := processor.Execute(ctx, deps.Processor, choice.Connector, func(c adapter.Connector) adapter.Integration[types.PaymentsAuthorizeData, types.PaymentsResponseData] {
		return c.Authorize()
	}, rd)
	if err != nil {
		return fmt.Errorf("authorizing payment %s: %w", data.Intent.PaymentID, err)
	}
	return applyPaymentsResponse(data, out, types.Ptr(types.AttemptFailure))
}

// applyPaymentsResponse folds a connector answer into the attempt and derives
// the intent status from it. A rejection moves the attempt to failed, or to
// the status the connector reported; failed == nil keeps the current status.
func applyPaymentsResponse[Req any](data *PaymentData, out *types.RouterData[Req, types.PaymentsResponseData], failed *types.AttemptStatus) error {
	if out.Response == nil || (out.Response.Data == nil && out.Response.Err == nil) {
		return types.ResponseHandlingFailed(errNoConnectorResponse)
	}
	a := data.Attempt
	data.Dispatched = true

	if e := out.Response.Err; e != nil {
		a.ErrorCode = types.Ptr(e.Code)
		a.ErrorMessage = types.Ptr(e.Message)
		a.ErrorReason = e.Reason
		a.ConnectorTransactionID = Coalesce(e.ConnectorTransactionID, a.ConnectorTransactionID)
		switch {
		case e.AttemptStatus != nil:
			a.Status = *e.AttemptStatus
		case failed != nil:
			a.Status = *failed
		}
		data.Intent.Status = a.Status.IntentStatus()
		return nil
	}

	resp := out.Response.Data
	a.Status = out.Status
	a.ErrorCode, a.ErrorMessage, a.ErrorReason = nil, nil, nil
	if id := resp.ResourceID.ConnectorTransactionID; id != "" {
		a.ConnectorTransactionID = &id
	}
	a.ConnectorResponseReferenceID = Coalesce(resp.ConnectorResponseReferenceID, a.ConnectorResponseReferenceID)
	a.ConnectorMetadata = Coalesce(resp.ConnectorMetadata, a.ConnectorMetadata)
	data.Redirection = resp.Redirection
	if resp.Redirection != nil {
		a.AuthenticationURL = types.Ptr(resp.Redirection.Endpoint)
	}
	if resp.MandateReference != nil {
		data.ConnectorMandateID = resp.MandateReference.ConnectorMandateID
	}
	data.Intent.AmountCaptured = Coalesce(out.AmountCaptured, data.Intent.AmountCaptured)
	data.Intent.Status = a.Status.IntentStatus()
	return nil
}

func newRefundRouterData[Resp any](flow types.Flow, data *RefundData, account *merchant.ConnectorAccount) *types.RouterData[types.RefundsData, Resp] {
	r := data.Refund
	return newRouterData[types.RefundsData, Resp](flow, data.Intent, data.Attempt, types.PaymentAddress{}, r.Connector, account, types.RefundsData{
		RefundID:               r.RefundID,
		ConnectorTransactionID: r.ConnectorTransactionID,
		ConnectorRefundID:      r.ConnectorRefundID,
		Currency:               r.Currency,
		PaymentAmount:          r.PaymentAmount,
		RefundAmount:           r.RefundAmount,
		Reason:                 r.Reason,
	})
}

// applyRefundResponse folds a refund answer into the refund. A rejected
// Execute fails the refund; a rejected RSync leaves the status alone.
func applyRefundResponse(data *RefundData, out *types.RouterData[types.RefundsData, types.RefundsResponseData], failOnError bool) error {
	if out.Response == nil || (out.Response.Data == nil && out.Response.Err == nil) {
		return types.ResponseHandlingFailed(errNoConnectorResponse)
	}
	r := data.Refund
	data.Dispatched = true
	if e := out.Response.Err; e != nil {
		r.ErrorCode = types.Ptr(e.Code)
		r.ErrorMessage = types.Ptr(e.Message)
		if failOnError {
			r.Status = types.RefundFailure
		}
		return nil
	}
	resp := out.Response.Data
	r.Status = resp.RefundStatus
	r.ErrorCode, r.ErrorMessage = nil, nil
	if resp.ConnectorRefundID != "" {
		r.ConnectorRefundID = types.Ptr(resp.ConnectorRefundID)
	}
	return nil
}
