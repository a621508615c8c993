package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/payment-router/internal/types"
)

var addressNamespace = uuid.MustParse("6f1c2a4e-8d3b-5e7f-9a01-b2c3d4e5f607")

// AddressID derives the id from the address content, so finding or creating
// the same address twice for a payment yields the same record.
func AddressID(merchantID, paymentID string, d types.AddressDetails) (string, error) {
	content, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding address for id: %w", err)
	}
	name := merchantID + "\x00" + paymentID + "\x00" + string(content)
	return "addr_" + uuid.NewSHA1(addressNamespace, []byte(name)).String(), nil
}

func newAddress(req AddressRequest, now time.Time) (*types.Address, error) {
	id, err := AddressID(req.MerchantID, req.PaymentID, *req.Details)
	if err != nil {
		return nil, err
	}
	return &types.Address{
		AddressID:      id,
		MerchantID:     req.MerchantID,
		PaymentID:      req.PaymentID,
		CustomerID:     req.CustomerID,
		AddressDetails: *req.Details,
		CreatedAt:      now,
	}, nil
}
