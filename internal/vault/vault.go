// Package vault keeps payment method data behind opaque tokens so a payment
// can be confirmed later with a payment_token instead of raw card data.
package vault

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/types"
)

var ErrTokenNotFound = errors.New("payment token not found")

type Vault interface {
	Tokenize(ctx context.Context, ks *merchant.KeyStore, pmd types.PaymentMethodData) (string, error)
	Lookup(ctx context.Context, ks *merchant.KeyStore, token string) (types.PaymentMethodData, error)
}

type entry struct {
	merchantID string
	data       types.PaymentMethodData
}

// MemoryVault holds tokens for the lifetime of the process.
type MemoryVault struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{entries: make(map[string]entry)}
}

func (v *MemoryVault) Tokenize(_ context.Context, ks *merchant.KeyStore, pmd types.PaymentMethodData) (string, error) {
	if pmd == nil {
		return "", types.MissingRequiredField("payment_method_data")
	}
	token := "tok_" + uuid.NewString()
	v.mu.Lock()
	defer v.mu.Unlock()
	v.entries[token] = entry{merchantID: ks.MerchantID, data: pmd}
	return token, nil
}

// Lookup only returns data tokenized under the same merchant.
func (v *MemoryVault) Lookup(_ context.Context, ks *merchant.KeyStore, token string) (types.PaymentMethodData, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[token]
	if !ok || e.merchantID != ks.MerchantID {
		return nil, ErrTokenNotFound
	}
	return e.data, nil
}

var _ Vault = (*MemoryVault)(nil)
