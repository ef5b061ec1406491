package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/morius-data/instance.report/internal/cloud"
	"github.com/morius-data/instance.report/internal/fsutil"
)

func seedMultiGroup(store *memStore) {
	seedMastsScenario(store)
	store.addInstance("chunk_1", "7_Trees", columnPoints(80, 0, 0, 3))
	store.addInstance("chunk_2", "12_Masts", columnPoints(150, 0, 0, 7))
	store.addInstance("chunk_2", "12_Masts", columnPoints(40, 300, 0, 7))
}

func newTestRunner(store *memStore, workers int) *Runner {
	return &Runner{
		Store:    store,
		Profiles: cloud.DefaultProfiles(),
		Assembler: &Assembler{
			Store:  store,
			FS:     fsutil.NewMemoryFileSystem(),
			OutDir: "/out",
		},
		Scope:   cloud.MergeScopeAll,
		Workers: workers,
	}
}

func TestRunnerProcessesAllGroups(t *testing.T) {
	store := newMemStore()
	seedMultiGroup(store)

	summary, err := newTestRunner(store, 2).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.UnitsProcessed != 3 {
		t.Errorf("UnitsProcessed = %d, want 3", summary.UnitsProcessed)
	}
	if summary.UnitsFailed != 0 {
		t.Errorf("UnitsFailed = %d, want 0", summary.UnitsFailed)
	}
	if summary.OriginalInstances != 7 {
		t.Errorf("OriginalInstances = %d, want 7", summary.OriginalInstances)
	}
	// chunk_1/Masts merges to 2, Trees keeps 1, chunk_2 keeps 1 and
	// discards the isolated fragment.
	if summary.FinalInstances != 4 {
		t.Errorf("FinalInstances = %d, want 4", summary.FinalInstances)
	}
	if summary.RunID == "" {
		t.Error("RunID should be assigned")
	}
}

// Unit output must not depend on worker scheduling.
func TestRunnerWorkerCountIndependence(t *testing.T) {
	storeA := newMemStore()
	seedMultiGroup(storeA)
	storeB := newMemStore()
	seedMultiGroup(storeB)

	one, err := newTestRunner(storeA, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run(workers=1) failed: %v", err)
	}
	eight, err := newTestRunner(storeB, 8).Run(context.Background())
	if err != nil {
		t.Fatalf("Run(workers=8) failed: %v", err)
	}

	ignore := cmpopts.IgnoreFields(RunSummary{}, "RunID", "Elapsed", "Units")
	if diff := cmp.Diff(one, eight, ignore); diff != "" {
		t.Errorf("summaries differ across worker counts (-one +eight):\n%s", diff)
	}

	if diff := cmp.Diff(
		storeA.finalRows("chunk_1", "12_Masts"),
		storeB.finalRows("chunk_1", "12_Masts"),
	); diff != "" {
		t.Errorf("final rows differ across worker counts:\n%s", diff)
	}
}

func TestRunnerEmptyStore(t *testing.T) {
	summary, err := newTestRunner(newMemStore(), 4).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.UnitsProcessed != 0 || summary.FinalInstances != 0 {
		t.Errorf("expected empty summary, got %+v", summary)
	}
}

func TestRunnerTimedOutUnitsAreReportedNotFatal(t *testing.T) {
	store := newMemStore()
	seedMultiGroup(store)

	runner := newTestRunner(store, 2)
	runner.UnitTimeout = time.Nanosecond

	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.UnitsFailed != 3 {
		t.Errorf("UnitsFailed = %d, want 3", summary.UnitsFailed)
	}
	if summary.FinalInstances != 0 {
		t.Errorf("FinalInstances = %d, want 0", summary.FinalInstances)
	}
}

func TestRunnerAggregatesStats(t *testing.T) {
	store := newMemStore()
	store.addInstance("chunk_1", "12_Masts", columnPoints(150, 0, 0, 10))
	store.addInstance("chunk_1", "12_Masts", columnPoints(250, 100, 0, 20))

	summary, err := newTestRunner(store, 1).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := summary.Stats.MeanPointCount; got != 200 {
		t.Errorf("MeanPointCount = %v, want 200", got)
	}
	if got := summary.Stats.MeanHeight; got != 15 {
		t.Errorf("MeanHeight = %v, want 15", got)
	}
	if got := summary.Stats.ClassCounts["12_Masts"]; got != 2 {
		t.Errorf("ClassCounts[12_Masts] = %d, want 2", got)
	}
}
