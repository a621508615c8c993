package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/payment-router/internal/types"
)

// SQLiteStore keeps each record as a JSON document next to the columns it is
// looked up by. Opaque structured fields are encoded with protojson.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens dsn with the modernc driver. A single connection is used
// so that ":memory:" databases are shared by every caller.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return db, nil
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// RunMigrations creates the schema if it does not exist yet.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payment_intents (
			merchant_id TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, payment_id)
		);`,
		`CREATE TABLE IF NOT EXISTS payment_attempts (
			merchant_id TEXT NOT NULL,
			attempt_id TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, attempt_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_payment ON payment_attempts(merchant_id, payment_id);`,
		`CREATE TABLE IF NOT EXISTS addresses (
			merchant_id TEXT NOT NULL,
			address_id TEXT NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, address_id)
		);`,
		`CREATE TABLE IF NOT EXISTS business_profiles (
			profile_id TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS customers (
			merchant_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, customer_id)
		);`,
		`CREATE TABLE IF NOT EXISTS refunds (
			merchant_id TEXT NOT NULL,
			refund_id TEXT NOT NULL,
			payment_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, refund_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_payment ON refunds(merchant_id, payment_id);`,
		`CREATE TABLE IF NOT EXISTS mandates (
			merchant_id TEXT NOT NULL,
			mandate_id TEXT NOT NULL,
			doc TEXT NOT NULL,
			PRIMARY KEY (merchant_id, mandate_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// getDoc loads one JSON document into v, mapping sql.ErrNoRows to ErrNotFound.
func getDoc(ctx context.Context, q queryer, v any, query string, args ...any) error {
	var doc string
	if err := q.QueryRowContext(ctx, query, args...).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to query record: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}
	return string(b), nil
}

func (s *SQLiteStore) FindPaymentIntent(ctx context.Context, paymentID, merchantID string, _ types.StorageScheme) (*types.PaymentIntent, error) {
	var version int64
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT version, doc FROM payment_intents WHERE merchant_id = ? AND payment_id = ?`,
		merchantID, paymentID,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query payment intent: %w", err)
	}
	var pi types.PaymentIntent
	if err := json.Unmarshal([]byte(doc), &pi); err != nil {
		return nil, fmt.Errorf("failed to decode payment intent: %w", err)
	}
	pi.Version = version
	return &pi, nil
}

func (s *SQLiteStore) FindPaymentAttempt(ctx context.Context, paymentID, merchantID, attemptID string, _ types.StorageScheme) (*types.PaymentAttempt, error) {
	var pa types.PaymentAttempt
	err := getDoc(ctx, s.db, &pa,
		`SELECT doc FROM payment_attempts WHERE merchant_id = ? AND attempt_id = ? AND payment_id = ?`,
		merchantID, attemptID, paymentID)
	if err != nil {
		return nil, err
	}
	return &pa, nil
}

func (s *SQLiteStore) ListAttempts(ctx context.Context, merchantID string) ([]*types.PaymentAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM payment_attempts WHERE (? = '' OR merchant_id = ?) ORDER BY created_at`,
		merchantID, merchantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()
	var out []*types.PaymentAttempt
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		var pa types.PaymentAttempt
		if err := json.Unmarshal([]byte(doc), &pa); err != nil {
			return nil, fmt.Errorf("failed to decode attempt: %w", err)
		}
		out = append(out, &pa)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FindOrCreateAddress(ctx context.Context, req AddressRequest, _ types.StorageScheme) (*types.Address, error) {
	switch {
	case req.Details != nil:
		addr, err := newAddress(req, s.now())
		if err != nil {
			return nil, err
		}
		doc, err := encode(addr)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO addresses (merchant_id, address_id, doc) VALUES (?, ?, ?)`,
			addr.MerchantID, addr.AddressID, doc); err != nil {
			return nil, fmt.Errorf("failed to insert address: %w", err)
		}
		return s.findAddress(ctx, req.MerchantID, addr.AddressID)
	case req.ExistingID != nil:
		return s.findAddress(ctx, req.MerchantID, *req.ExistingID)
	}
	return nil, nil
}

func (s *SQLiteStore) findAddress(ctx context.Context, merchantID, addressID string) (*types.Address, error) {
	var addr types.Address
	if err := getDoc(ctx, s.db, &addr,
		`SELECT doc FROM addresses WHERE merchant_id = ? AND address_id = ?`, merchantID, addressID); err != nil {
		return nil, err
	}
	return &addr, nil
}

func (s *SQLiteStore) FindBusinessProfile(ctx context.Context, profileID string) (*types.BusinessProfile, error) {
	var p types.BusinessProfile
	if err := getDoc(ctx, s.db, &p, `SELECT doc FROM business_profiles WHERE profile_id = ?`, profileID); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) InsertBusinessProfile(ctx context.Context, profile *types.BusinessProfile) error {
	doc, err := encode(profile)
	if err != nil {
		return err
	}
	return s.insertOnce(ctx,
		`INSERT OR IGNORE INTO business_profiles (profile_id, doc) VALUES (?, ?)`,
		profile.ProfileID, doc)
}

// insertOnce runs an INSERT OR IGNORE and reports ErrConflict when the row existed.
func (s *SQLiteStore) insertOnce(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLiteStore) Persist(ctx context.Context, intent *types.PaymentIntent, attempt *types.PaymentAttempt, _ types.StorageScheme) (*types.PaymentIntent, *types.PaymentAttempt, error) {
	pi := intent.Clone()
	pi.Version = intent.Version + 1
	intentDoc, err := encode(pi)
	if err != nil {
		return nil, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if intent.Version == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO payment_intents (merchant_id, payment_id, version, doc) VALUES (?, ?, ?, ?)`,
			pi.MerchantID, pi.PaymentID, pi.Version, intentDoc)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE payment_intents SET version = ?, doc = ? WHERE merchant_id = ? AND payment_id = ? AND version = ?`,
			pi.Version, intentDoc, pi.MerchantID, pi.PaymentID, intent.Version)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write payment intent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write payment intent: %w", err)
	}
	if affected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM payment_intents WHERE merchant_id = ? AND payment_id = ?`,
			pi.MerchantID, pi.PaymentID).Scan(&exists)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check payment intent: %w", err)
		}
		if exists == 0 {
			return nil, nil, ErrNotFound
		}
		return nil, nil, ErrConflict
	}

	var pa *types.PaymentAttempt
	if attempt != nil {
		pa = attempt.Clone()
		attemptDoc, err := encode(pa)
		if err != nil {
			return nil, nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO payment_attempts (merchant_id, attempt_id, payment_id, created_at, doc) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(merchant_id, attempt_id) DO UPDATE SET doc = excluded.doc`,
			pa.MerchantID, pa.AttemptID, pa.PaymentID, pa.CreatedAt.UnixNano(), attemptDoc); err != nil {
			return nil, nil, fmt.Errorf("failed to write payment attempt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return pi, pa, nil
}

func (s *SQLiteStore) FindCustomer(ctx context.Context, customerID, merchantID string) (*types.Customer, error) {
	var c types.Customer
	if err := getDoc(ctx, s.db, &c,
		`SELECT doc FROM customers WHERE merchant_id = ? AND customer_id = ?`, merchantID, customerID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) InsertCustomer(ctx context.Context, customer *types.Customer) error {
	doc, err := encode(customer)
	if err != nil {
		return err
	}
	return s.insertOnce(ctx,
		`INSERT OR IGNORE INTO customers (merchant_id, customer_id, doc) VALUES (?, ?, ?)`,
		customer.MerchantID, customer.CustomerID, doc)
}

func (s *SQLiteStore) FindRefund(ctx context.Context, refundID, merchantID string) (*types.Refund, error) {
	var version int64
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT version, doc FROM refunds WHERE merchant_id = ? AND refund_id = ?`, merchantID, refundID,
	).Scan(&version, &doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query refund: %w", err)
	}
	var r types.Refund
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("failed to decode refund: %w", err)
	}
	r.Version = version
	return &r, nil
}

func (s *SQLiteStore) ListRefunds(ctx context.Context, paymentID, merchantID string) ([]*types.Refund, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, doc FROM refunds WHERE merchant_id = ? AND payment_id = ? ORDER BY created_at`,
		merchantID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()
	var out []*types.Refund
	for rows.Next() {
		var version int64
		var doc string
		if err := rows.Scan(&version, &doc); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		var r types.Refund
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("failed to decode refund: %w", err)
		}
		r.Version = version
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PersistRefund(ctx context.Context, refund *types.Refund) (*types.Refund, error) {
	r := refund.Clone()
	r.Version = refund.Version + 1
	doc, err := encode(r)
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if refund.Version == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO refunds (merchant_id, refund_id, payment_id, version, created_at, doc) VALUES (?, ?, ?, ?, ?, ?)`,
			r.MerchantID, r.RefundID, r.PaymentID, r.Version, r.CreatedAt.UnixNano(), doc)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE refunds SET version = ?, doc = ? WHERE merchant_id = ? AND refund_id = ? AND version = ?`,
			r.Version, doc, r.MerchantID, r.RefundID, refund.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write refund: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to write refund: %w", err)
	}
	if affected == 0 {
		if _, err := s.FindRefund(ctx, refund.RefundID, refund.MerchantID); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return r, nil
}

func (s *SQLiteStore) FindMandate(ctx context.Context, mandateID, merchantID string) (*types.Mandate, error) {
	var m types.Mandate
	if err := getDoc(ctx, s.db, &m,
		`SELECT doc FROM mandates WHERE merchant_id = ? AND mandate_id = ?`, merchantID, mandateID); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) InsertMandate(ctx context.Context, mandate *types.Mandate) error {
	doc, err := encode(mandate)
	if err != nil {
		return err
	}
	return s.insertOnce(ctx,
		`INSERT OR IGNORE INTO mandates (merchant_id, mandate_id, doc) VALUES (?, ?, ?)`,
		mandate.MerchantID, mandate.MandateID, doc)
}

var _ Store = (*SQLiteStore)(nil)
