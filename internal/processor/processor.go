// Package processor is the connector registry. It looks connectors up by
// name, answers capability queries and drives one connector call end to end.
package processor

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/payment-router/internal/adapter"
	"github.com/yourorg/payment-router/internal/router/circuitbreaker"
	"github.com/yourorg/payment-router/internal/types"
)

type Processor struct {
	connectors map[string]adapter.Connector
	transport  Transport
	breaker    *circuitbreaker.CircuitBreaker
	tokens     TokenCache
	logger     *logrus.Logger
}

func NewProcessor(transport Transport, breaker *circuitbreaker.CircuitBreaker, logger *logrus.Logger, connectors ...adapter.Connector) *Processor {
	if transport == nil {
		panic("processor: transport cannot be nil")
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Processor{
		connectors: make(map[string]adapter.Connector, len(connectors)),
		transport:  transport,
		breaker:    breaker,
		tokens:     NewMemoryTokenCache(),
		logger:     logger,
	}
	for _, c := range connectors {
		p.connectors[c.GetName()] = c
	}
	return p
}

// WithTokenCache replaces the in-memory access-token cache.
func (p *Processor) WithTokenCache(c TokenCache) *Processor {
	p.tokens = c
	return p
}

func (p *Processor) Breaker() *circuitbreaker.CircuitBreaker { return p.breaker }

// Connector fails with InvalidConnectorName for names nobody registered.
func (p *Processor) Connector(name string) (adapter.Connector, error) {
	c, ok := p.connectors[name]
	if !ok {
		return nil, types.InvalidConnectorName(name)
	}
	return c, nil
}

func (p *Processor) ConnectorNames() []string {
	names := make([]string, 0, len(p.connectors))
	for name := range p.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SupportsPaymentMethod runs the connector's own classification of pmd.
// Only NotImplemented and NotSupported mean false. Other validation errors are
// about the data, not the capability, and surface later when the request is built.
func (p *Processor) SupportsPaymentMethod(name string, pmd types.PaymentMethodData) (bool, error) {
	c, err := p.Connector(name)
	if err != nil {
		return false, err
	}
	err = c.ValidatePaymentMethod(pmd)
	switch {
	case err == nil:
		return true, nil
	case types.IsCapabilityError(err):
		return false, nil
	default:
		return true, nil
	}
}

type PaymentMethodCapability struct {
	PaymentMethod     types.PaymentMethod `json:"payment_method"`
	PaymentMethodType string              `json:"payment_method_type"`
}

// SupportedPaymentMethods derives the capability list from the connector's
// transformer over every known payment method variant.
func (p *Processor) SupportedPaymentMethods(name string) ([]PaymentMethodCapability, error) {
	if _, err := p.Connector(name); err != nil {
		return nil, err
	}
	var out []PaymentMethodCapability
	seen := make(map[PaymentMethodCapability]bool)
	for _, pmd := range types.SamplePaymentMethods() {
		ok, err := p.SupportsPaymentMethod(name, pmd)
		if err != nil {
			return nil, err
		}
		capability := PaymentMethodCapability{PaymentMethod: pmd.PaymentMethod(), PaymentMethodType: pmd.PaymentMethodType()}
		if ok && !seen[capability] {
			seen[capability] = true
			out = append(out, capability)
		}
	}
	return out, nil
}
