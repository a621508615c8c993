package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yourorg/payment-router/internal/types"
)

// MemoryStore keeps records in maps. Every record is copied on the way in and
// on the way out, so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	intents   map[string]*types.PaymentIntent
	attempts  map[string]*types.PaymentAttempt
	addresses map[string]*types.Address
	profiles  map[string]*types.BusinessProfile
	customers map[string]*types.Customer
	refunds   map[string]*types.Refund
	mandates  map[string]*types.Mandate
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents:   make(map[string]*types.PaymentIntent),
		attempts:  make(map[string]*types.PaymentAttempt),
		addresses: make(map[string]*types.Address),
		profiles:  make(map[string]*types.BusinessProfile),
		customers: make(map[string]*types.Customer),
		refunds:   make(map[string]*types.Refund),
		mandates:  make(map[string]*types.Mandate),
		now:       time.Now,
	}
}

func key(merchantID, id string) string { return merchantID + "/" + id }

func (s *MemoryStore) FindPaymentIntent(_ context.Context, paymentID, merchantID string, _ types.StorageScheme) (*types.PaymentIntent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pi, ok := s.intents[key(merchantID, paymentID)]
	if !ok {
		return nil, ErrNotFound
	}
	return pi.Clone(), nil
}

func (s *MemoryStore) FindPaymentAttempt(_ context.Context, paymentID, merchantID, attemptID string, _ types.StorageScheme) (*types.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pa, ok := s.attempts[key(merchantID, attemptID)]
	if !ok || pa.PaymentID != paymentID {
		return nil, ErrNotFound
	}
	return pa.Clone(), nil
}

func (s *MemoryStore) ListAttempts(_ context.Context, merchantID string) ([]*types.PaymentAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.PaymentAttempt
	for _, pa := range s.attempts {
		if merchantID == "" || pa.MerchantID == merchantID {
			out = append(out, pa.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindOrCreateAddress(_ context.Context, req AddressRequest, _ types.StorageScheme) (*types.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case req.Details != nil:
		addr, err := newAddress(req, s.now())
		if err != nil {
			return nil, err
		}
		if existing, ok := s.addresses[key(req.MerchantID, addr.AddressID)]; ok {
			cp := *existing
			return &cp, nil
		}
		s.addresses[key(req.MerchantID, addr.AddressID)] = addr
		cp := *addr
		return &cp, nil
	case req.ExistingID != nil:
		existing, ok := s.addresses[key(req.MerchantID, *req.ExistingID)]
		if !ok {
			return nil, ErrNotFound
		}
		cp := *existing
		return &cp, nil
	}
	return nil, nil
}

func (s *MemoryStore) FindBusinessProfile(_ context.Context, profileID string) (*types.BusinessProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) InsertBusinessProfile(_ context.Context, profile *types.BusinessProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ProfileID]; ok {
		return ErrConflict
	}
	cp := *profile
	s.profiles[profile.ProfileID] = &cp
	return nil
}

func (s *MemoryStore) Persist(_ context.Context, intent *types.PaymentIntent, attempt *types.PaymentAttempt, _ types.StorageScheme) (*types.PaymentIntent, *types.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(intent.MerchantID, intent.PaymentID)
	current, exists := s.intents[k]
	switch {
	case !exists && intent.Version != 0:
		return nil, nil, ErrNotFound
	case exists && current.Version != intent.Version:
		return nil, nil, ErrConflict
	}

	pi := intent.Clone()
	pi.Version = intent.Version + 1
	s.intents[k] = pi
	var pa *types.PaymentAttempt
	if attempt != nil {
		pa = attempt.Clone()
		s.attempts[key(attempt.MerchantID, attempt.AttemptID)] = pa
	}
	return pi.Clone(), pa.Clone(), nil
}

func (s *MemoryStore) FindCustomer(_ context.Context, customerID, merchantID string) (*types.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[key(merchantID, customerID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) InsertCustomer(_ context.Context, customer *types.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(customer.MerchantID, customer.CustomerID)
	if _, ok := s.customers[k]; ok {
		return ErrConflict
	}
	cp := *customer
	s.customers[k] = &cp
	return nil
}

func (s *MemoryStore) FindRefund(_ context.Context, refundID, merchantID string) (*types.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refunds[key(merchantID, refundID)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.Clone(), nil
}

func (s *MemoryStore) ListRefunds(_ context.Context, paymentID, merchantID string) ([]*types.Refund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.Refund
	for _, r := range s.refunds {
		if r.MerchantID == merchantID && r.PaymentID == paymentID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PersistRefund(_ context.Context, refund *types.Refund) (*types.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(refund.MerchantID, refund.RefundID)
	current, exists := s.refunds[k]
	switch {
	case !exists && refund.Version != 0:
		return nil, ErrNotFound
	case exists && current.Version != refund.Version:
		return nil, ErrConflict
	}
	r := refund.Clone()
	r.Version = refund.Version + 1
	s.refunds[k] = r
	return r.Clone(), nil
}

func (s *MemoryStore) FindMandate(_ context.Context, mandateID, merchantID string) (*types.Mandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mandates[key(merchantID, mandateID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) InsertMandate(_ context.Context, mandate *types.Mandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(mandate.MerchantID, mandate.MandateID)
	if _, ok := s.mandates[k]; ok {
		return ErrConflict
	}
	cp := *mandate
	s.mandates[k] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
