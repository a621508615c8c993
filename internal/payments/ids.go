package payments

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator mints prefixed, time-ordered ids. Each process needs its own node id.
type IDGenerator struct {
	node *snowflake.Node
}

func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create id node %d: %w", nodeID, err)
	}
	return &IDGenerator{node: node}, nil
}

func (g *IDGenerator) PaymentID() string { return "pay_" + g.node.Generate().Base58() }
func (g *IDGenerator) RefundID() string  { return "ref_" + g.node.Generate().Base58() }
func (g *IDGenerator) MandateID() string { return "man_" + g.node.Generate().Base58() }

// AttemptID numbers attempts within their payment.
func AttemptID(paymentID string, attemptCount int) string {
	return fmt.Sprintf("%s_%d", paymentID, attemptCount)
}
