package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	CatalogPath    string
	OutDir         string
	TilesDir       string
	FallbackDir    string
	LogLevel       string
	GridDivs       int
	PageSize       int
	LayerBudget    time.Duration
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	ChunkWorkers   int
	LayerWorkers   int
	TippecanoePath string
	MinZoom        int
	MaxZoom        int
	SkipTiles      bool
	CommitMessage  string
}

func FromEnv() Config {
	return Config{
		CatalogPath:    getenv("CATALOG_PATH", ""),
		OutDir:         getenv("OUT_DIR", "out"),
		TilesDir:       getenv("TILES_DIR", "tiles"),
		FallbackDir:    getenv("FALLBACK_DIR", "fallback_data"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		GridDivs:       getint("GRID_DIVS", 5),
		PageSize:       getint("PAGE_SIZE", 1000),
		LayerBudget:    getduration("LAYER_BUDGET", 5*time.Minute),
		RequestTimeout: getduration("REQUEST_TIMEOUT", 45*time.Second),
		RetryAttempts:  getint("RETRY_ATTEMPTS", 2),
		RetryBackoff:   getduration("RETRY_BACKOFF", 2*time.Second),
		ChunkWorkers:   getint("CHUNK_WORKERS", 4),
		LayerWorkers:   getint("LAYER_WORKERS", 2),
		TippecanoePath: getenv("TIPPECANOE", "tippecanoe"),
		MinZoom:        getint("MIN_ZOOM", 4),
		MaxZoom:        getint("MAX_ZOOM", 14),
		SkipTiles:      getbool("SKIP_TILES", false),
		CommitMessage:  getenv("COMMIT_MESSAGE", "Update generated tiles"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
