package settlement

import (
	"context"
	"fmt"
	"strings"

	"payment-processor/internal/core/ports"

	"github.com/google/uuid"
)

// Simulator is a deterministic ports.SettlementGateway for development and
// tests: amounts ending in 99 minor units are declined, everything else is
// approved. Selected when no settlement URL is configured.
type Simulator struct{}

// NewSimulator creates the simulated settlement gateway.
func NewSimulator() *Simulator {
	return &Simulator{}
}

// AuthorizeAndCapture approves unless the amount ends in 99.
func (s *Simulator) AuthorizeAndCapture(_ context.Context, req ports.SettlementRequest) (*ports.SettlementResult, error) {
	if req.Amount%100 == 99 {
		return &ports.SettlementResult{Approved: false, DeclineReason: "insufficient_funds"}, nil
	}
	ref := "sim_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
	return &ports.SettlementResult{Approved: true, Reference: ref}, nil
}

// Reverse always approves reversals of simulated captures.
func (s *Simulator) Reverse(_ context.Context, reference string, amount int64, _ string) (*ports.SettlementResult, error) {
	return &ports.SettlementResult{
		Approved:  true,
		Reference: fmt.Sprintf("%s_rev_%d", reference, amount),
	}, nil
}
