// Package merchant resolves the merchant context a request runs under.
package merchant

import (
	"context"
	"errors"
	"sort"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/types"
)

var (
	ErrMerchantNotFound         = errors.New("merchant account not found")
	ErrConnectorAccountNotFound = errors.New("merchant connector account not found")
)

// ConnectorAccount is a merchant's credentials and settings for one connector.
type ConnectorAccount struct {
	Connector string
	AuthType  types.ConnectorAuthType
	// Metadata is passed to the connector as RouterData.ConnectorMetaData.
	Metadata *structpb.Value
	Disabled bool
}

type Account struct {
	MerchantID        string
	Name              string
	ReturnURL         *string
	DefaultProfileID  *string
	StorageScheme     types.StorageScheme
	Routing           router.RoutingConfig
	ConnectorAccounts []ConnectorAccount
}

// ConnectorAccount returns the enabled account for connector.
func (a *Account) ConnectorAccount(connector string) (*ConnectorAccount, error) {
	for i := range a.ConnectorAccounts {
		ca := &a.ConnectorAccounts[i]
		if ca.Connector == connector && !ca.Disabled {
			return ca, nil
		}
	}
	return nil, ErrConnectorAccountNotFound
}

// EnabledConnectors lists the connectors the merchant may be routed to, sorted.
func (a *Account) EnabledConnectors() []string {
	var out []string
	for _, ca := range a.ConnectorAccounts {
		if !ca.Disabled {
			out = append(out, ca.Connector)
		}
	}
	sort.Strings(out)
	return out
}

// KeyStore scopes vault lookups to a merchant.
type KeyStore struct {
	MerchantID string
	Key        types.Secret
}

type Repository interface {
	FindAccount(ctx context.Context, merchantID string) (*Account, error)
	FindKeyStore(ctx context.Context, merchantID string) (*KeyStore, error)
}

// MemoryRepository serves accounts loaded from configuration.
type MemoryRepository struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	keyStores map[string]*KeyStore
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[string]*Account), keyStores: make(map[string]*KeyStore)}
}

func (r *MemoryRepository) Add(a *Account, ks *KeyStore) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.StorageScheme == "" {
		a.StorageScheme = types.StoragePostgresOnly
	}
	r.accounts[a.MerchantID] = a
	if ks == nil {
		ks = &KeyStore{MerchantID: a.MerchantID}
	}
	r.keyStores[a.MerchantID] = ks
}

func (r *MemoryRepository) FindAccount(_ context.Context, merchantID string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[merchantID]
	if !ok {
		return nil, ErrMerchantNotFound
	}
	return a, nil
}

func (r *MemoryRepository) FindKeyStore(_ context.Context, merchantID string) (*KeyStore, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ks, ok := r.keyStores[merchantID]
	if !ok {
		return nil, ErrMerchantNotFound
	}
	return ks, nil
}

var _ Repository = (*MemoryRepository)(nil)
