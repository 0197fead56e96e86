// Package search runs image searches and holds the reactive search state
// a front end binds to.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/FranksOps/imgsearch/internal/extractor"
	"github.com/FranksOps/imgsearch/internal/metrics"
	"github.com/google/uuid"
)

// Client fetches the raw results page for a query.
type Client interface {
	Fetch(ctx context.Context, query string) (string, error)
}

// ErrNoClient is the failure of a cycle that has no Client to fetch with.
var ErrNoClient = errors.New("search: no client configured")

// Result is the outcome of one fetch cycle. Err == nil means success.
type Result struct {
	ID        string        `json:"id"`
	Query     string        `json:"query"`
	Items     []string      `json:"items"`
	Err       error         `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the cycle succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Cycle fetches the results page for query and extracts its image URLs.
func Cycle(ctx context.Context, client Client, query string) Result {
	return runCycle(ctx, client, query, time.Now)
}

func runCycle(ctx context.Context, client Client, query string, now func() time.Time) Result {
	metrics.CyclesInFlight.Inc()
	defer metrics.CyclesInFlight.Dec()

	start := now()
	res := Result{
		ID:        uuid.NewString(),
		Query:     query,
		StartedAt: start.UTC(),
	}

	var (
		text string
		err  = ErrNoClient
	)
	if client != nil {
		text, err = client.Fetch(ctx, query)
	}
	if err != nil {
		res.Err = err
		res.Duration = now().Sub(start)
		metrics.RecordCycle(metrics.OutcomeFailure, 0)
		return res
	}

	res.Items = extractor.Extract(text)
	res.Duration = now().Sub(start)
	metrics.RecordCycle(metrics.OutcomeSuccess, len(res.Items))
	return res
}
