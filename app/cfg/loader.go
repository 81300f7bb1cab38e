package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Input / output locations
	RegistryPath string `long:"registry" env:"REGISTRY_PATH" default:"./registry.yml" description:"Path to the source registry file"`
	DataDir      string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for snapshot, blocklist and index artifacts"`

	// GitHub access
	GitHubToken string `long:"github-token" env:"GITHUB_TOKEN" description:"GitHub API token; enrichment is skipped when empty"`

	// Pipeline tuning
	WorkerCount     int `long:"worker-count" env:"WORKER_COUNT" default:"8" description:"Number of concurrent document fetch workers"`
	FetchTimeout    int `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-request fetch timeout in seconds"`
	ProbeBatchSize  int `long:"probe-batch-size" env:"PROBE_BATCH_SIZE" default:"50" description:"Repositories per combined freshness query"`
	EnrichBatchSize int `long:"enrich-batch-size" env:"ENRICH_BATCH_SIZE" default:"40" description:"Repositories per combined metadata query"`
	RotationSize    int `long:"rotation-size" env:"ROTATION_SIZE" default:"200" description:"Oldest-enriched items rechecked per run"`
	RetryPasses     int `long:"retry-passes" env:"RETRY_PASSES" default:"2" description:"Extra passes over failed sources"`

	// Run selection
	SourceFilter string `long:"filter" env:"SOURCE_FILTER" description:"Process only sources whose id contains this substring"`
	RangeStart   int    `long:"range-start" env:"RANGE_START" default:"0" description:"Index of the first source to process"`
	RangeCount   int    `long:"range-count" env:"RANGE_COUNT" default:"0" description:"Number of sources to process (0 = all)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Awesome Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		RegistryPath:    raw.RegistryPath,
		DataDir:         raw.DataDir,
		GitHubToken:     raw.GitHubToken,
		WorkerCount:     raw.WorkerCount,
		FetchTimeout:    raw.FetchTimeout,
		ProbeBatchSize:  raw.ProbeBatchSize,
		EnrichBatchSize: raw.EnrichBatchSize,
		RotationSize:    raw.RotationSize,
		RetryPasses:     raw.RetryPasses,
		SourceFilter:    raw.SourceFilter,
		RangeStart:      raw.RangeStart,
		RangeCount:      raw.RangeCount,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
