package harvest

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/mikeaa1983/mineralink-tiles/internal/assemble"
	"github.com/mikeaa1983/mineralink-tiles/internal/catalog"
	"github.com/mikeaa1983/mineralink-tiles/internal/crs"
	"github.com/mikeaa1983/mineralink-tiles/internal/fallback"
	"github.com/mikeaa1983/mineralink-tiles/internal/fetcher"
	"github.com/mikeaa1983/mineralink-tiles/internal/logger"
	"github.com/mikeaa1983/mineralink-tiles/internal/normalize"
	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
	"github.com/mikeaa1983/mineralink-tiles/internal/tiler"
)

type Options struct {
	GridDivs     int
	PageSize     int
	LayerWorkers int
}

func (o Options) withDefaults() Options {
	if o.GridDivs < 1 {
		o.GridDivs = 5
	}
	if o.PageSize < 1 {
		o.PageSize = 1000
	}
	if o.LayerWorkers < 1 {
		o.LayerWorkers = 2
	}
	return o
}

// Orchestrator iterates the layer catalog and produces one summary per
// layer. Layers are independent (distinct endpoints, distinct output files)
// and run with bounded parallelism.
type Orchestrator struct {
	layers    []catalog.LayerDescriptor
	resolver  *crs.Resolver
	fetcher   *fetcher.Fetcher
	assembler *assemble.Assembler
	fallbacks fallback.Store
	tiles     tiler.Builder
	outDir    string
	opts      Options
	log       *slog.Logger
}

// New wires the pipeline. A nil tiles builder runs harvest-only.
func New(
	layers []catalog.LayerDescriptor,
	resolver *crs.Resolver,
	f *fetcher.Fetcher,
	a *assemble.Assembler,
	store fallback.Store,
	tiles tiler.Builder,
	outDir string,
	opts Options,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		layers:    layers,
		resolver:  resolver,
		fetcher:   f,
		assembler: a,
		fallbacks: store,
		tiles:     tiles,
		outDir:    outDir,
		opts:      opts.withDefaults(),
		log:       log,
	}
}

// Run processes every layer and returns the summaries. It returns
// ErrNoUsableData only when no layer produced usable output, live or
// fallback.
func (o *Orchestrator) Run(ctx context.Context) ([]Summary, error) {
	summaries := make([]Summary, len(o.layers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.LayerWorkers)
	for i, layer := range o.layers {
		i, layer := i, layer
		g.Go(func() error {
			lctx := logger.WithLayer(gctx, layer.Name)
			summaries[i] = o.harvestLayer(lctx, layer)
			return nil
		})
	}
	_ = g.Wait()

	usable := 0
	for _, s := range summaries {
		if o.usable(s) {
			usable++
		}
	}

	// Last resort inherited from the batch's original policy: when nothing
	// came through, try the first catalog entry's fallback dataset so a
	// deploy is never completely empty.
	if usable == 0 && len(o.layers) > 0 {
		first := o.layers[0]
		o.log.WarnContext(ctx, "no layer produced output, trying emergency fallback", "layer", first.Name)
		sum := Summary{Layer: first.Name, State: StateEmpty, Err: ErrLayerEmpty.Error()}
		sum = o.substitute(logger.WithLayer(ctx, first.Name), first, sum)
		if o.usable(sum) {
			summaries[0] = sum
			usable++
		}
	}

	if usable == 0 {
		return summaries, ErrNoUsableData
	}
	return summaries, nil
}

func (o *Orchestrator) harvestLayer(ctx context.Context, layer catalog.LayerDescriptor) Summary {
	sum := Summary{Layer: layer.Name, State: StatePending}
	sum.State = StateFetching
	o.log.InfoContext(ctx, "harvesting layer", "endpoint", layer.QueryURL, "state", string(sum.State))

	code := o.resolver.Resolve(ctx, layer)
	transform, err := crs.Transform(code)
	if err != nil {
		// Unsupported CRS never blocks the pipeline; coordinates that are
		// genuinely off will be dropped by the range check.
		o.log.WarnContext(ctx, "unsupported source crs, assuming default",
			"crs", code, "default", crs.Default, "err", err)
		code = crs.Default
		transform, _ = crs.Transform(code)
	}

	plan := planner.New(layer.Name, layer.BBox, o.opts.GridDivs, o.opts.PageSize)
	raws, outcome, err := o.fetcher.Run(ctx, layer.QueryURL, plan)
	if err != nil {
		sum.State = StateDone
		sum.Err = err.Error()
		return sum
	}

	feats, stats := normalize.New(transform, o.log).Features(raws)
	o.log.InfoContext(ctx, "layer normalized",
		"fetched", len(raws),
		"kept", stats.Kept,
		"dropped", stats.DroppedTotal(),
		"axis_swapped", stats.AxisSwapped,
		"complete", outcome.Complete())

	if len(feats) == 0 {
		sum.State = StateEmpty
		sum.Err = ErrLayerEmpty.Error()
		o.log.WarnContext(ctx, "layer empty, looking up fallback", "state", string(sum.State))
		return o.substitute(ctx, layer, sum)
	}

	prov := assemble.Provenance{
		Layer:     layer.Name,
		SourceCRS: code,
		Endpoint:  layer.QueryURL,
		FetchedAt: time.Now(),
		Complete:  outcome.Complete(),
	}
	path, err := o.assembler.Write(feats, prov)
	if err != nil {
		o.log.ErrorContext(ctx, "assembly failed, looking up fallback", "err", err)
		sum.State = StateEmpty
		sum.Err = err.Error()
		return o.substitute(ctx, layer, sum)
	}

	sum.State = StateAssembled
	sum.Count = len(feats)
	sum.Complete = outcome.Complete()
	sum.Tiled = o.buildTiles(ctx, layer, path)
	o.log.InfoContext(ctx, "layer done", "state", string(StateDone), "features", sum.Count)
	return sum
}

// substitute copies the layer's fallback dataset forward. Without one the
// layer stays a failure and contributes nothing downstream.
func (o *Orchestrator) substitute(ctx context.Context, layer catalog.LayerDescriptor, sum Summary) Summary {
	dst, err := o.fallbacks.CopyTo(layer.Name, layer.Fallback, o.outDir)
	if err != nil {
		o.log.WarnContext(ctx, "no fallback dataset, layer contributes nothing", "err", err)
		return sum
	}

	sum.State = StateFallback
	sum.FallbackUsed = true
	sum.Err = ""
	if n, err := countFeatures(dst); err == nil {
		sum.Count = n
	}
	sum.Tiled = o.buildTiles(ctx, layer, dst)
	o.log.InfoContext(ctx, "fallback substituted", "state", string(sum.State), "features", sum.Count)
	return sum
}

func (o *Orchestrator) buildTiles(ctx context.Context, layer catalog.LayerDescriptor, geojsonPath string) bool {
	if o.tiles == nil {
		return false
	}
	if err := o.tiles.Build(ctx, layer.Name, geojsonPath, layer.MinZoom, layer.MaxZoom); err != nil {
		o.log.ErrorContext(ctx, "tile build failed", "err", err)
		return false
	}
	return true
}

// usable reports whether a layer's output can be handed downstream: features
// were produced, and tiles were built whenever a tiler is configured.
func (o *Orchestrator) usable(s Summary) bool {
	if s.Count == 0 {
		return false
	}
	if o.tiles != nil {
		return s.Tiled
	}
	return true
}

func countFeatures(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}
