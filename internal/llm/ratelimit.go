package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sectorfolio/sectorfolio/internal/agent"
	"github.com/sectorfolio/sectorfolio/internal/conversation"
	"github.com/sectorfolio/sectorfolio/internal/tools"
)

// RateLimited caps the request rate of a ModelClient. The limiter may be
// shared by several clients of the same provider account.
type RateLimited struct {
	next    agent.ModelClient
	limiter *rate.Limiter
}

// NewRateLimited allows rps requests per second with a burst of one.
func NewRateLimited(next agent.ModelClient, rps float64) *RateLimited {
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func NewRateLimitedWith(next agent.ModelClient, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) Propose(ctx context.Context, turns []conversation.Turn, descriptors []tools.Descriptor) (agent.Proposal, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return agent.Proposal{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Propose(ctx, turns, descriptors)
}
