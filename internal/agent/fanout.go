package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/sectorfolio/sectorfolio/internal/conversation"
)

// Branch is one concurrent unit of a fan-out stage. It reads the shared
// snapshot and returns the value stored under its own slot.
type Branch struct {
	Name string
	Run  func(ctx context.Context, snapshot map[string]any) (any, error)
}

// FanOutPolicy runs branches concurrently and joins them on a barrier.
type FanOutPolicy struct {
	Branches []Branch
}

// BranchError reports which branch failed a stage.
type BranchError struct {
	Branch string
	Err    error
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("branch %s failed: %v", e.Branch, e.Err)
}

func (e *BranchError) Unwrap() error { return e.Err }

// Run executes every branch against a snapshot of the state's
// accumulators. Either all branch slots are written or none are.
func (p FanOutPolicy) Run(ctx context.Context, state *conversation.State) error {
	if len(p.Branches) == 0 {
		return errors.New("fan-out has no branches")
	}

	names := make(map[string]bool, len(p.Branches))
	for _, b := range p.Branches {
		if b.Name == "" || b.Run == nil {
			return errors.New("fan-out branch needs a name and a run function")
		}
		if names[b.Name] {
			return fmt.Errorf("duplicate fan-out branch %q", b.Name)
		}
		names[b.Name] = true
	}

	snapshot := state.Accumulators()
	results := make([]any, len(p.Branches))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range p.Branches {
		g.Go(func() error {
			v, err := b.Run(gctx, maps.Clone(snapshot))
			if err != nil {
				return &BranchError{Branch: b.Name, Err: err}
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, b := range p.Branches {
		state.Put(b.Name, results[i])
	}
	return nil
}
