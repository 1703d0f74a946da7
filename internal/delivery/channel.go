// Package delivery defines the outbound message channel. The production
// implementation would call a real email/SMS vendor; the simulated channel
// reproduces a vendor with a configurable success rate.
package delivery

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/campaignify/xenocrm/internal/models"
)

// Result is the vendor's verdict for one send. A failed delivery is data,
// not an error; the error return of Deliver is reserved for infrastructure
// problems.
type Result struct {
	Success bool
	Error   string
}

type Channel interface {
	Deliver(ctx context.Context, customer models.Customer, content string) (Result, error)
}

// SimulatedChannel delivers with a fixed success probability after a short
// simulated network delay. The random source is injected so tests can force
// deterministic outcomes.
type SimulatedChannel struct {
	successRate float64
	latency     time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedChannel(successRate float64, latency time.Duration, rng *rand.Rand) *SimulatedChannel {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SimulatedChannel{successRate: successRate, latency: latency, rng: rng}
}

func (c *SimulatedChannel) Deliver(ctx context.Context, _ models.Customer, _ string) (Result, error) {
	if c.latency > 0 {
		select {
		case <-time.After(c.latency):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	c.mu.Lock()
	roll := c.rng.Float64()
	c.mu.Unlock()

	if roll >= c.successRate {
		return Result{Success: false, Error: "vendor: message delivery failed"}, nil
	}
	return Result{Success: true}, nil
}
