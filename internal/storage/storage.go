// Package storage persists payment state. The pipeline reads through Store
// during GetTrackers and writes through it exactly once in UpdateTrackers.
package storage

import (
	"context"
	"errors"

	"github.com/yourorg/payment-router/internal/types"
)

var (
	// ErrNotFound is returned for any missing record; it is distinct from
	// failures of the store itself.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write was based on a stale version or
	// would create a record that already exists.
	ErrConflict = errors.New("record was modified concurrently")
)

// AddressRequest identifies an address by id, by content, or both. When
// Details is set it wins over ExistingID.
type AddressRequest struct {
	Details    *types.AddressDetails
	ExistingID *string
	MerchantID string
	CustomerID *string
	PaymentID  string
}

type Store interface {
	FindPaymentIntent(ctx context.Context, paymentID, merchantID string, scheme types.StorageScheme) (*types.PaymentIntent, error)
	FindPaymentAttempt(ctx context.Context, paymentID, merchantID, attemptID string, scheme types.StorageScheme) (*types.PaymentAttempt, error)
	ListAttempts(ctx context.Context, merchantID string) ([]*types.PaymentAttempt, error)
	// FindOrCreateAddress returns nil, nil when the request names no address.
	FindOrCreateAddress(ctx context.Context, req AddressRequest, scheme types.StorageScheme) (*types.Address, error)
	FindBusinessProfile(ctx context.Context, profileID string) (*types.BusinessProfile, error)
	InsertBusinessProfile(ctx context.Context, profile *types.BusinessProfile) error

	// Persist writes intent and attempt together. intent.Version must equal
	// the stored version (zero for a new intent); the stored copies with the
	// bumped version are returned.
	Persist(ctx context.Context, intent *types.PaymentIntent, attempt *types.PaymentAttempt, scheme types.StorageScheme) (*types.PaymentIntent, *types.PaymentAttempt, error)

	FindCustomer(ctx context.Context, customerID, merchantID string) (*types.Customer, error)
	InsertCustomer(ctx context.Context, customer *types.Customer) error

	FindRefund(ctx context.Context, refundID, merchantID string) (*types.Refund, error)
	ListRefunds(ctx context.Context, paymentID, merchantID string) ([]*types.Refund, error)
	PersistRefund(ctx context.Context, refund *types.Refund) (*types.Refund, error)

	FindMandate(ctx context.Context, mandateID, merchantID string) (*types.Mandate, error)
	InsertMandate(ctx context.Context, mandate *types.Mandate) error
}
