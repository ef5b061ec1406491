// Command instancer runs the instance extraction pipeline: it reads
// clustered point sets from a SQLite point store, evaluates per-class
// quality, merges fragmented neighbours, and publishes renumbered final
// instances plus per-group summary reports.
//
// With -cluster it first clusters raw classified points into instances
// using the per-class DBSCAN parameters.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morius-data/instance.report/internal/cloud"
	"github.com/morius-data/instance.report/internal/cloud/storage/sqlite"
	"github.com/morius-data/instance.report/internal/config"
	"github.com/morius-data/instance.report/internal/fsutil"
	"github.com/morius-data/instance.report/internal/pipeline"
	"github.com/morius-data/instance.report/internal/version"
)

func main() {
	dbPath := flag.String("db", "instances.db", "Path to the SQLite point store")
	outDir := flag.String("out", "output", "Output directory for per-group summaries")
	profilesPath := flag.String("profiles", "", "Class profile JSON file (built-in defaults when empty)")
	configPath := flag.String("config", "", "Run configuration JSON file")
	workers := flag.Int("workers", 0, "Worker pool size (0 = config value or NumCPU)")
	timeout := flag.Duration("timeout", 0, "Per-unit timeout (0 = config value or 60s)")
	mergeScope := flag.String("merge-scope", "", "Merge eligibility: 'all' or 'fail_only' (empty = config value)")
	cluster := flag.Bool("cluster", false, "Cluster raw classified points into instances before extraction")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	cfg := config.EmptyRunConfig()
	if *configPath != "" {
		loaded, err := config.LoadRunConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags win over config values.
	if *workers == 0 {
		*workers = cfg.GetWorkers()
	}
	if *timeout == 0 {
		*timeout = cfg.GetUnitTimeout()
	}
	if *mergeScope == "" {
		*mergeScope = cfg.GetMergeScope()
	}
	if *profilesPath == "" {
		*profilesPath = cfg.GetProfilesPath()
	}

	scope, ok := cloud.ParseMergeScope(*mergeScope)
	if !ok {
		log.Fatalf("invalid merge scope %q (want 'all' or 'fail_only')", *mergeScope)
	}

	profiles := cloud.DefaultProfiles()
	if *profilesPath != "" {
		loaded, err := cloud.LoadProfiles(*profilesPath)
		if err != nil {
			log.Fatalf("failed to load profiles: %v", err)
		}
		profiles = loaded
	}

	log.Printf("instancer %s (%s)", version.Version, version.GitSHA)

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open point store: %v", err)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *cluster || cfg.GetClusterPoints() {
		ing := &pipeline.Ingestor{
			Store:     store,
			Profiles:  profiles,
			Clusterer: cloud.DBSCANClusterer{},
			Verbose:   *verbose,
		}
		start := time.Now()
		n, err := ing.IngestAll(ctx)
		if err != nil {
			log.Fatalf("clustering failed: %v", err)
		}
		log.Printf("clustered %d instances in %s", n, time.Since(start).Round(time.Millisecond))
	}

	runner := &pipeline.Runner{
		Store:    store,
		Profiles: profiles,
		Assembler: &pipeline.Assembler{
			Store:  store,
			FS:     fsutil.OSFileSystem{},
			OutDir: *outDir,
		},
		Scope:       scope,
		Workers:     *workers,
		UnitTimeout: *timeout,
		Verbose:     *verbose,
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	log.Printf("run %s: %d units processed, %d failed, %d -> %d instances (%d merged) in %s",
		summary.RunID, summary.UnitsProcessed, summary.UnitsFailed,
		summary.OriginalInstances, summary.FinalInstances, summary.MergedInstances,
		summary.Elapsed.Round(time.Millisecond))

	if *verbose {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err == nil {
			log.Printf("run summary:\n%s", data)
		}
	}

	if summary.UnitsFailed > 0 {
		os.Exit(1)
	}
}
