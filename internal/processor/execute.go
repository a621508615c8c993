package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/types"
)

// ErrCircuitOpen is returned without calling the connector while its circuit is open.
var ErrCircuitOpen = errors.New("connector circuit is open")

// FlowSelector picks one flow of a connector, e.g. adapter.Connector.Authorize.
type FlowSelector[Req, Resp any] func(adapter.Connector) adapter.Integration[Req, Resp]

// Execute runs one flow against the named connector: auth check, access token
// when required, request build, transport, then response or error parsing.
// A well-formed connector rejection is not an error: it comes back in
// RouterData.Response.Err. The input RouterData is never mutated.
func Execute[Req, Resp any](ctx context.Context, p *Processor, connectorName string, selectFlow FlowSelector[Req, Resp], rd *types.RouterData[Req, Resp]) (*types.RouterData[Req, Resp], error) {
	conn, err := p.Connector(connectorName)
	if err != nil {
		return nil, err
	}
	if err := conn.ValidateAuthType(rd.AuthType); err != nil {
		return nil, fmt.Errorf("%s auth: %w", connectorName, err)
	}

	if atc, ok := conn.(adapter.AccessTokenConnector); ok && rd.AccessToken == nil {
		token, err := accessToken(ctx, p, atc, rd)
		if err != nil {
			return nil, err
		}
		withToken := *rd
		withToken.AccessToken = token
		rd = &withToken
	}

	out, err := dispatch(ctx, p, connectorName, selectFlow(conn), rd)
	if err != nil {
		return nil, err
	}
	if out.Response != nil && out.Response.Err != nil && out.Response.Err.StatusCode == http.StatusUnauthorized {
		if _, ok := conn.(adapter.AccessTokenConnector); ok {
			p.tokens.Invalidate(ctx, rd.MerchantID, connectorName)
		}
	}
	return out, nil
}

func dispatch[Req, Resp any](ctx context.Context, p *Processor, connectorName string, integration adapter.Integration[Req, Resp], rd *types.RouterData[Req, Resp]) (*types.RouterData[Req, Resp], error) {
	flow := string(rd.Flow)
	log := p.logger.WithFields(logrus.Fields{
		"connector":  connectorName,
		"flow":       flow,
		"payment_id": rd.PaymentID,
		"attempt_id": rd.AttemptID,
	})

	req, err := integration.BuildRequest(rd)
	if err != nil {
		connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeBuildError).Inc()
		return nil, fmt.Errorf("%s %s: %w", connectorName, flow, err)
	}

	if !p.breaker.AllowRequest(connectorName) {
		connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeCircuitOpen).Inc()
		return nil, fmt.Errorf("%s %s: %w", connectorName, flow, ErrCircuitOpen)
	}

	start := time.Now()
	res, err := p.transport.Send(ctx, req)
	connectorRequestDuration.WithLabelValues(connectorName, flow).Observe(time.Since(start).Seconds())
	if err != nil {
		p.breaker.RecordFailure(connectorName)
		connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeTransportError).Inc()
		log.WithError(err).Error("Connector call failed")
		return nil, fmt.Errorf("%s %s: %w", connectorName, flow, err)
	}

	if res.StatusCode >= http.StatusInternalServerError {
		p.breaker.RecordFailure(connectorName)
	} else {
		p.breaker.RecordSuccess(connectorName)
	}

	if res.IsSuccess() {
		out, err := integration.HandleResponse(rd, res)
		if err != nil {
			connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeResponseError).Inc()
			log.WithError(err).Error("Failed to handle connector response")
			return nil, fmt.Errorf("%s %s: %w", connectorName, flow, err)
		}
		connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeSuccess).Inc()
		log.WithField("status", out.Status).Debug("Connector call succeeded")
		return out, nil
	}

	errResp, err := integration.GetErrorResponse(res)
	if err != nil {
		log.WithError(err).Warn("Unparseable connector error body")
		errResp = adapter.DefaultErrorResponse(res)
	}
	connectorRequestsTotal.WithLabelValues(connectorName, flow, outcomeConnectorError).Inc()
	log.WithFields(logrus.Fields{
		"status_code": errResp.StatusCode,
		"code":        errResp.Code,
	}).Info("Connector rejected request")

	out := *rd
	out.SetErrorResponse(*errResp)
	return &out, nil
}

// accessToken returns the cached token for the merchant or fetches one using
// the payment's envelope.
func accessToken[Req, Resp any](ctx context.Context, p *Processor, conn adapter.AccessTokenConnector, parent *types.RouterData[Req, Resp]) (*types.AccessToken, error) {
	name := conn.GetName()
	merchantID := parent.MerchantID
	if token, ok := p.tokens.Get(ctx, merchantID, name); ok {
		return token, nil
	}

	req, err := accessTokenRequestData(parent.AuthType)
	if err != nil {
		return nil, err
	}
	rd := types.CloneForFlow[types.AccessToken](parent, types.FlowAccessToken, req)
	rd.Connector = name
	out, err := dispatch(ctx, p, name, conn.AccessToken(), rd)
	if err != nil {
		return nil, err
	}
	if out.Response == nil || out.Response.Data == nil {
		cause := errors.New("connector returned no access token")
		if out.Response != nil && out.Response.Err != nil {
			cause = fmt.Errorf("%s: %s", out.Response.Err.Code, out.Response.Err.Message)
		}
		return nil, &types.ConnectorError{Kind: types.KindFailedToObtainAuthType, Connector: name, Err: cause}
	}
	token := *out.Response.Data
	p.tokens.Set(ctx, merchantID, name, token)
	return &token, nil
}

// accessTokenRequestData maps the stored credentials onto the OAuth client
// credentials pair: the key is the secret, key1 the client id.
func accessTokenRequestData(auth types.ConnectorAuthType) (types.AccessTokenRequestData, error) {
	switch a := auth.(type) {
	case types.BodyKey:
		id := a.Key1
		return types.AccessTokenRequestData{AppID: a.APIKey, ID: &id}, nil
	case types.SignatureKey:
		id := a.Key1
		return types.AccessTokenRequestData{AppID: a.APIKey, ID: &id}, nil
	case types.MultiAuthKey:
		id := a.Key1
		return types.AccessTokenRequestData{AppID: a.APIKey, ID: &id}, nil
	case types.HeaderKey:
		return types.AccessTokenRequestData{AppID: a.APIKey}, nil
	}
	return types.AccessTokenRequestData{}, types.FailedToObtainAuthType()
}
