package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morius-data/instance.report/internal/cloud"
)

// DefaultUnitTimeout bounds how long one (chunk, class) unit may run
// before it is abandoned.
const DefaultUnitTimeout = 60 * time.Second

// RunSummary is the per-run aggregate report.
type RunSummary struct {
	RunID string `json:"run_id"`

	UnitsProcessed int `json:"units_processed"`
	UnitsFailed    int `json:"units_failed"`

	OriginalInstances int `json:"original_instances"`
	FinalInstances    int `json:"final_instances"`
	MergedInstances   int `json:"merged_instances"`
	SkippedRefs       int `json:"skipped_refs"`
	UnionFailures     int `json:"union_failures"`

	Stats   RunStats      `json:"stats"`
	Elapsed time.Duration `json:"elapsed_nanos"`

	Units []UnitReport `json:"-"`
}

// Runner drives one extraction run: enumerate groups, fan units out
// over a bounded worker pool, aggregate reports.
type Runner struct {
	Store       PointStore
	Profiles    *cloud.ProfileStore
	Assembler   *Assembler
	Scope       cloud.MergeScope
	Workers     int
	UnitTimeout time.Duration
	Verbose     bool
}

// Run processes every (chunk, class) group in the store. Only group
// enumeration can fail the run; unit failures are absorbed into the
// summary and the run completes.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()

	groups, err := r.Store.InstanceGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate groups: %w", err)
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	timeout := r.UnitTimeout
	if timeout <= 0 {
		timeout = DefaultUnitTimeout
	}

	unit := &Unit{
		Store:     r.Store,
		Profiles:  r.Profiles,
		Scope:     r.Scope,
		Assembler: r.Assembler,
		Verbose:   r.Verbose,
	}

	// Reports land in a slice indexed by group position, so the
	// aggregate below is independent of worker scheduling.
	reports := make([]UnitReport, len(groups))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, group := range groups {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, group cloud.Group) {
			defer wg.Done()
			defer func() { <-sem }()

			unitCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			if r.Verbose {
				log.Printf("processing unit %s", group)
			}
			reports[i] = unit.Process(unitCtx, group)
		}(i, group)
	}
	wg.Wait()

	summary := &RunSummary{
		RunID: uuid.New().String(),
		Units: reports,
	}

	var finals []cloud.InstanceRecord
	for _, report := range reports {
		if report.Err != nil {
			summary.UnitsFailed++
			log.Printf("unit %s failed: %v", report.Group, report.Err)
			continue
		}
		summary.UnitsProcessed++
		summary.OriginalInstances += report.OriginalCount
		summary.FinalInstances += report.FinalCount
		summary.MergedInstances += report.MergedCount
		summary.SkippedRefs += len(report.SkippedRefs)
		summary.UnionFailures += report.UnionFailures
		finals = append(finals, report.Final...)
	}
	summary.Stats = ComputeRunStats(finals)
	summary.Elapsed = time.Since(start)

	return summary, nil
}
