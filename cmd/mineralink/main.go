package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
	"github.com/mikeaa1983/mineralink-tiles/internal/assemble"
	"github.com/mikeaa1983/mineralink-tiles/internal/catalog"
	"github.com/mikeaa1983/mineralink-tiles/internal/config"
	"github.com/mikeaa1983/mineralink-tiles/internal/crs"
	"github.com/mikeaa1983/mineralink-tiles/internal/fallback"
	"github.com/mikeaa1983/mineralink-tiles/internal/fetcher"
	"github.com/mikeaa1983/mineralink-tiles/internal/harvest"
	"github.com/mikeaa1983/mineralink-tiles/internal/httpclient"
	"github.com/mikeaa1983/mineralink-tiles/internal/logger"
	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
	"github.com/mikeaa1983/mineralink-tiles/internal/publish"
	"github.com/mikeaa1983/mineralink-tiles/internal/tiler"
)

var Version = "dev"

var (
	flagCatalog     string
	flagOutDir      string
	flagTilesDir    string
	flagFallbackDir string
	flagLogLevel    string
	flagGridDivs    int
	flagWorkers     int
	flagSkipTiles   bool
	flagPublish     bool
	flagLayer       string
)

var rootCmd = &cobra.Command{
	Use:     "mineralink",
	Short:   "Harvest map-service feature layers into WGS84 GeoJSON and vector tiles",
	Version: Version,
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the batch harvest over the layer catalog",
	RunE:  runHarvest,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the chunk plan for one catalog layer",
	RunE:  runPlan,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagCatalog, "catalog", "c", "", "Catalog JSON file (built-in catalog when empty)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug|info|warn|error")
	rootCmd.PersistentFlags().IntVar(&flagGridDivs, "grid-divs", 0, "Spatial chunk grid divisions per axis")

	harvestCmd.Flags().StringVarP(&flagOutDir, "out-dir", "o", "", "Output directory for feature collections")
	harvestCmd.Flags().StringVar(&flagTilesDir, "tiles-dir", "", "Output directory for generated tiles")
	harvestCmd.Flags().StringVar(&flagFallbackDir, "fallback-dir", "", "Directory of fallback datasets keyed by layer name")
	harvestCmd.Flags().IntVarP(&flagWorkers, "workers", "w", 0, "Concurrent chunk fetches per layer")
	harvestCmd.Flags().BoolVar(&flagSkipTiles, "skip-tiles", false, "Harvest only, skip tile generation")
	harvestCmd.Flags().BoolVar(&flagPublish, "publish", false, "Commit the tiles directory after a successful run")

	planCmd.Flags().StringVarP(&flagLayer, "layer", "l", "", "Layer name to plan")
	_ = planCmd.MarkFlagRequired("layer")

	rootCmd.AddCommand(harvestCmd, planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if flagCatalog != "" {
		cfg.CatalogPath = flagCatalog
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.Flags().Changed("grid-divs") {
		cfg.GridDivs = flagGridDivs
	}
	if cmd.Flags().Changed("out-dir") {
		cfg.OutDir = flagOutDir
	}
	if cmd.Flags().Changed("tiles-dir") {
		cfg.TilesDir = flagTilesDir
	}
	if cmd.Flags().Changed("fallback-dir") {
		cfg.FallbackDir = flagFallbackDir
	}
	if cmd.Flags().Changed("workers") {
		cfg.ChunkWorkers = flagWorkers
	}
	if flagSkipTiles {
		cfg.SkipTiles = true
	}
	return cfg
}

func loadCatalog(cfg config.Config) ([]catalog.LayerDescriptor, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.CatalogPath)
}

func runHarvest(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cfg := loadConfig(cmd)

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "harvester",
	}, os.Stdout)
	log := logger.NewSlog(&zl)

	layers, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, "")

	log.InfoContext(ctx, "starting harvest",
		"version", Version,
		"layers", len(layers),
		"out_dir", cfg.OutDir,
		"grid_divs", cfg.GridDivs,
		"layer_budget", cfg.LayerBudget.String())

	client := arcgis.NewClient(httpclient.NewOutbound(cfg.RequestTimeout), log)
	fetch := fetcher.New(client, fetcher.Options{
		RequestTimeout: cfg.RequestTimeout,
		LayerBudget:    cfg.LayerBudget,
		Attempts:       cfg.RetryAttempts,
		Backoff:        cfg.RetryBackoff,
		Workers:        cfg.ChunkWorkers,
	}, log)

	var tiles tiler.Builder
	if !cfg.SkipTiles {
		tiles = tiler.NewTippecanoe(cfg.TippecanoePath, cfg.TilesDir, log)
	}

	orch := harvest.New(
		layers,
		crs.NewResolver(client, log),
		fetch,
		assemble.New(cfg.OutDir, log),
		fallback.NewStore(cfg.FallbackDir),
		tiles,
		cfg.OutDir,
		harvest.Options{
			GridDivs:     cfg.GridDivs,
			PageSize:     cfg.PageSize,
			LayerWorkers: cfg.LayerWorkers,
		},
		log,
	)

	summaries, err := orch.Run(ctx)
	for _, s := range summaries {
		log.InfoContext(ctx, "layer summary",
			"layer", s.Layer,
			"state", string(s.State),
			"features", s.Count,
			"complete", s.Complete,
			"fallback", s.FallbackUsed,
			"tiled", s.Tiled,
			"err", s.Err)
	}
	if err != nil {
		if errors.Is(err, harvest.ErrNoUsableData) {
			log.ErrorContext(ctx, "harvest produced nothing, aborting before handoff")
		}
		return err
	}

	var pub publish.Publisher = publish.Noop{}
	if flagPublish && !cfg.SkipTiles {
		pub = publish.NewGit(".", log)
	}
	if err := pub.Publish(ctx, cfg.TilesDir, cfg.CommitMessage); err != nil {
		return err
	}

	log.InfoContext(ctx, "harvest complete")
	return nil
}

func runPlan(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cfg := loadConfig(cmd)

	layers, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	for _, l := range layers {
		if l.Name != flagLayer {
			continue
		}
		plan := planner.New(l.Name, l.BBox, cfg.GridDivs, cfg.PageSize)
		if plan.Paged() {
			fmt.Printf("%s: no bbox, offset pagination with page size %d\n", l.Name, plan.PageSize)
			return nil
		}
		fmt.Printf("%s: %d chunks\n", l.Name, len(plan.Chunks))
		for _, c := range plan.Chunks {
			fmt.Printf("  %3d  %s\n", c.Index, c.Env)
		}
		return nil
	}
	return fmt.Errorf("layer %q not in catalog", flagLayer)
}
