// Package fetcher executes a layer's fetch plan against its endpoint with
// retries, a per-layer wall-clock budget and bounded chunk parallelism.
package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
)

type Options struct {
	// RequestTimeout bounds one query attempt, independent of the budget.
	RequestTimeout time.Duration
	// LayerBudget bounds total wall-clock time for the layer; once exceeded
	// no new chunk fetch starts.
	LayerBudget time.Duration
	// Attempts is the total tries per chunk (first attempt included).
	Attempts int
	// Backoff is the fixed sleep between retries.
	Backoff time.Duration
	// Workers bounds concurrent chunk fetches to respect server rate limits.
	Workers int
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 45 * time.Second
	}
	if o.LayerBudget <= 0 {
		o.LayerBudget = 5 * time.Minute
	}
	if o.Attempts < 1 {
		o.Attempts = 2
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	if o.Workers < 1 {
		o.Workers = 4
	}
	return o
}

// Outcome summarizes how the plan went. A failed chunk contributes zero
// features; only the completeness flag records it.
type Outcome struct {
	Planned        int
	Attempted      int
	Failed         int
	BudgetExceeded bool
}

// Complete reports whether every planned chunk/page was attempted and none
// was permanently abandoned.
func (o Outcome) Complete() bool {
	return !o.BudgetExceeded && o.Failed == 0
}

type Fetcher struct {
	client *arcgis.Client
	opts   Options
	log    *slog.Logger
}

func New(client *arcgis.Client, opts Options, log *slog.Logger) *Fetcher {
	return &Fetcher{client: client, opts: opts.withDefaults(), log: log}
}

// Run executes the plan and accumulates raw features. Chunk failures are
// absorbed into the outcome; the only returned error is cancellation of ctx.
func (f *Fetcher) Run(ctx context.Context, queryURL string, plan planner.Plan) ([]arcgis.RawFeature, Outcome, error) {
	deadline := time.Now().Add(f.opts.LayerBudget)
	if plan.Paged() {
		return f.runPaged(ctx, queryURL, plan, deadline)
	}
	return f.runChunked(ctx, queryURL, plan, deadline)
}

func (f *Fetcher) runChunked(ctx context.Context, queryURL string, plan planner.Plan, deadline time.Time) ([]arcgis.RawFeature, Outcome, error) {
	outcome := Outcome{Planned: len(plan.Chunks)}

	var mu sync.Mutex
	var features []arcgis.RawFeature

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)

	for _, chunk := range plan.Chunks {
		chunk := chunk
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if time.Now().After(deadline) {
				mu.Lock()
				outcome.BudgetExceeded = true
				mu.Unlock()
				return nil
			}

			feats, err := f.fetchOne(gctx, queryURL, arcgis.EnvelopeParams(chunk.Env), deadline)

			mu.Lock()
			defer mu.Unlock()
			outcome.Attempted++
			if err != nil {
				// Chunk-local: a dead chunk never blocks its siblings.
				outcome.Failed++
				f.log.WarnContext(gctx, "chunk abandoned",
					"layer", plan.Layer, "chunk", chunk.Index, "bounds", chunk.Env.String(), "err", err)
				return nil
			}
			if len(feats) > 0 {
				features = append(features, feats...)
				f.log.DebugContext(gctx, "chunk fetched",
					"layer", plan.Layer, "chunk", chunk.Index, "features", len(feats))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, outcome, err
	}
	if outcome.BudgetExceeded {
		f.log.WarnContext(ctx, "layer budget exceeded",
			"layer", plan.Layer, "attempted", outcome.Attempted, "planned", outcome.Planned)
	}
	return features, outcome, nil
}

func (f *Fetcher) runPaged(ctx context.Context, queryURL string, plan planner.Plan, deadline time.Time) ([]arcgis.RawFeature, Outcome, error) {
	var (
		outcome  Outcome
		features []arcgis.RawFeature
	)

	for offset := 0; ; offset += plan.PageSize {
		if err := ctx.Err(); err != nil {
			return nil, outcome, err
		}
		if time.Now().After(deadline) {
			outcome.BudgetExceeded = true
			f.log.WarnContext(ctx, "layer budget exceeded",
				"layer", plan.Layer, "pages", outcome.Attempted)
			break
		}

		outcome.Planned++
		outcome.Attempted++
		feats, err := f.fetchOne(ctx, queryURL, arcgis.PageParams(offset, plan.PageSize), deadline)
		if err != nil {
			outcome.Failed++
			f.log.WarnContext(ctx, "page abandoned",
				"layer", plan.Layer, "offset", offset, "err", err)
			continue
		}
		if len(feats) == 0 {
			// Empty page is the terminal condition.
			break
		}
		features = append(features, feats...)
	}
	return features, outcome, nil
}

// fetchOne runs the bounded retry loop for a single chunk or page.
func (f *Fetcher) fetchOne(ctx context.Context, queryURL string, params url.Values, deadline time.Time) ([]arcgis.RawFeature, error) {
	var lastErr error
	for attempt := 1; attempt <= f.opts.Attempts; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, f.opts.RequestTimeout)
		resp, err := f.client.Query(reqCtx, queryURL, params)
		cancel()
		if err == nil {
			return resp.Features, nil
		}
		lastErr = err

		var re *arcgis.RequestError
		if !errors.As(err, &re) || !re.Transient() {
			return nil, err
		}
		if attempt == f.opts.Attempts || ctx.Err() != nil {
			break
		}
		f.log.DebugContext(ctx, "transient failure, retrying",
			"attempt", attempt, "backoff", f.opts.Backoff.String(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.opts.Backoff):
		}
		if time.Now().After(deadline) {
			break
		}
	}
	return nil, lastErr
}
