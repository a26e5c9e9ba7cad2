package sheets

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Gate gives one caller at a time exclusive use of the spreadsheet. The
// reconciliation read pass and the write-back consumer share a single Gate.
type Gate struct {
	sem *semaphore.Weighted
}

func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Do runs fn while holding the gate. It returns ctx.Err() if the gate could not
// be acquired before ctx ended.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn(ctx)
}
