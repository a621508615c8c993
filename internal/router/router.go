// Package router resolves which connector a payment is sent to.
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/policy"
	"github.com/yourorg/payment-router/internal/router/circuitbreaker"
	"github.com/yourorg/payment-router/internal/types"
)

type Algorithm string

const (
	AlgorithmSingle    Algorithm = "single"
	AlgorithmPriority  Algorithm = "priority"
	AlgorithmRuleBased Algorithm = "rule_based"
)

// RoutingConfig is a merchant's configured routing.
type RoutingConfig struct {
	Algorithm  Algorithm     `json:"algorithm" mapstructure:"algorithm"`
	Connectors []string      `json:"connectors" mapstructure:"connectors"`
	Rules      []policy.Rule `json:"rules,omitempty" mapstructure:"rules"`
}

// RoutingOverride is a per-request routing choice sent by the merchant.
type RoutingOverride struct {
	Type       Algorithm `json:"type"`
	Connectors []string  `json:"connectors"`
}

type ChoiceSource string

const (
	SourceRequest ChoiceSource = "request"
	SourceRouting ChoiceSource = "routing"
)

// ConnectorChoice is the single connector a payment is dispatched to.
type ConnectorChoice struct {
	Connector string       `json:"connector"`
	Source    ChoiceSource `json:"source"`
}

// Input is the payment as seen by the routing rules.
type Input struct {
	Amount            int64
	Currency          types.Currency
	PaymentMethodData types.PaymentMethodData
	CaptureMethod     types.CaptureMethod
	BillingCountry    string
	// EnabledConnectors are the connectors the merchant has an account for.
	EnabledConnectors []string
}

// Parameters exposes the input to rule expressions.
func (in Input) Parameters() policy.Parameters {
	params := policy.Parameters{
		"amount":              float64(in.Amount),
		"currency":            string(in.Currency),
		"payment_method":      "",
		"payment_method_type": "",
		"capture_method":      string(in.CaptureMethod),
		"billing_country":     in.BillingCountry,
	}
	if in.PaymentMethodData != nil {
		params["payment_method"] = string(in.PaymentMethodData.PaymentMethod())
		params["payment_method_type"] = in.PaymentMethodData.PaymentMethodType()
	}
	return params
}

var (
	ErrNoEligibleConnector  = errors.New("no eligible connector")
	ErrConnectorNotEnabled  = errors.New("connector is not enabled for merchant")
	ErrInvalidRoutingConfig = errors.New("invalid routing config")
)

// Capabilities answers whether a connector can take a payment method.
type Capabilities interface {
	SupportsPaymentMethod(name string, pmd types.PaymentMethodData) (bool, error)
}

type Router struct {
	caps    Capabilities
	breaker *circuitbreaker.CircuitBreaker
	logger  logrus.FieldLogger
}

func NewRouter(caps Capabilities, breaker *circuitbreaker.CircuitBreaker, logger logrus.FieldLogger) *Router {
	if caps == nil {
		panic("capabilities cannot be nil")
	}
	if breaker == nil {
		panic("circuit breaker cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Router{caps: caps, breaker: breaker, logger: logger}
}

// ChooseConnector returns exactly one connector. A request override wins when
// present; its connector must be enabled but is not health-checked, since the
// merchant asked for it explicitly. Otherwise matching rules are tried in
// priority order, then the configured list, and the first enabled, healthy
// connector that supports the payment method is chosen.
func (r *Router) ChooseConnector(ctx context.Context, cfg RoutingConfig, override *RoutingOverride, in Input) (ConnectorChoice, error) {
	enabled := make(map[string]bool, len(in.EnabledConnectors))
	for _, c := range in.EnabledConnectors {
		enabled[c] = true
	}

	if override != nil && len(override.Connectors) > 0 {
		name := override.Connectors[0]
		if !enabled[name] {
			return ConnectorChoice{}, fmt.Errorf("%w: %s", ErrConnectorNotEnabled, name)
		}
		return ConnectorChoice{Connector: name, Source: SourceRequest}, nil
	}

	candidates, err := r.candidates(cfg, in)
	if err != nil {
		return ConnectorChoice{}, err
	}
	log := r.logger.WithFields(logrus.Fields{"algorithm": cfg.Algorithm, "candidates": strings.Join(candidates, ",")})

	for _, name := range candidates {
		if !enabled[name] {
			continue
		}
		if !r.breaker.IsHealthy(name) {
			log.WithField("connector", name).Warn("Skipping connector with open circuit")
			continue
		}
		if in.PaymentMethodData != nil {
			ok, err := r.caps.SupportsPaymentMethod(name, in.PaymentMethodData)
			if err != nil {
				log.WithField("connector", name).WithError(err).Debug("Skipping connector whose capabilities could not be checked")
				continue
			}
			if !ok {
				continue
			}
		}
		log.WithField("connector", name).Debug("Connector chosen")
		return ConnectorChoice{Connector: name, Source: SourceRouting}, nil
	}
	return ConnectorChoice{}, ErrNoEligibleConnector
}

func (r *Router) candidates(cfg RoutingConfig, in Input) ([]string, error) {
	switch cfg.Algorithm {
	case AlgorithmSingle:
		if len(cfg.Connectors) == 0 {
			return nil, fmt.Errorf("%w: single routing needs one connector", ErrInvalidRoutingConfig)
		}
		return cfg.Connectors[:1], nil
	case AlgorithmPriority, "":
		return cfg.Connectors, nil
	case AlgorithmRuleBased:
		engine, err := policy.NewRuleEngine(cfg.Rules)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRoutingConfig, err)
		}
		matched, err := engine.Evaluate(in.Parameters())
		if err != nil {
			return nil, err
		}
		var out []string
		seen := make(map[string]bool)
		for _, d := range matched {
			for _, c := range d.Connectors {
				if !seen[c] {
					seen[c] = true
					out = append(out, c)
				}
			}
		}
		for _, c := range cfg.Connectors {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidRoutingConfig, cfg.Algorithm)
}
