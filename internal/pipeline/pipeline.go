// Package pipeline runs fetch cycles for a batch of queries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/imgsearch/internal/search"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is used when Runner.Concurrency is not positive.
const DefaultConcurrency = 4

// Runner searches several queries concurrently.
type Runner struct {
	Client      search.Client
	Concurrency int
	Logger      *slog.Logger
}

// Run performs one cycle per query and returns the results in query order.
// A failed search is recorded in its Result and does not stop the batch;
// cancelling ctx does, in which case the results gathered so far are
// returned with ctx's error.
func (r *Runner) Run(ctx context.Context, queries []string) ([]search.Result, error) {
	if r.Client == nil {
		return nil, errors.New("pipeline: client is nil")
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]search.Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, q := range queries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := search.Cycle(gctx, r.Client, q)
			if res.Err != nil {
				logger.Warn("query failed", "query", q, "cycle_id", res.ID, "err", res.Err)
			} else {
				logger.Info("query completed", "query", q, "cycle_id", res.ID, "items", len(res.Items))
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("pipeline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("pipeline: %w", err)
	}
	return results, nil
}
