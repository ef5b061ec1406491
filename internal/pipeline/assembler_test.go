package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/morius-data/instance.report/internal/cloud"
	"github.com/morius-data/instance.report/internal/fsutil"
)

func TestAssemblerAssignsSequentialIDs(t *testing.T) {
	store := newMemStore()
	refA := store.addInstance("chunk_1", "12_Masts", columnPoints(134, 0, 0, 6))
	refB := store.addInstance("chunk_1", "12_Masts", columnPoints(249, 50, 0, 6))

	asm := &Assembler{Store: store, FS: fsutil.NewMemoryFileSystem(), OutDir: "/out"}

	final := []cloud.InstanceRecord{
		{ID: refA, SourceRef: refA},
		{ID: refB, SourceRef: refB},
	}

	published, err := asm.Publish(context.Background(), mastsGroup,
		cloud.DefaultProfiles().Lookup("12_Masts"), final, UnitReport{OriginalCount: 2, PassCount: 2})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if published[0].ID != "instance_1" || published[1].ID != "instance_2" {
		t.Errorf("unexpected ids %q, %q", published[0].ID, published[1].ID)
	}

	rows := store.finalRows("chunk_1", "12_Masts")
	if len(rows) != 2 || rows[0].Ref != refA || rows[1].Ref != refB {
		t.Errorf("unexpected final rows %+v", rows)
	}
}

func TestAssemblerSummaryContent(t *testing.T) {
	store := newMemStore()
	ref := store.addInstance("chunk_1", "12_Masts", columnPoints(134, 0, 0, 6))

	mfs := fsutil.NewMemoryFileSystem()
	asm := &Assembler{Store: store, FS: mfs, OutDir: "/out"}

	report := UnitReport{OriginalCount: 4, PassCount: 3, MergedCount: 2}
	_, err := asm.Publish(context.Background(), mastsGroup,
		cloud.DefaultProfiles().Lookup("12_Masts"),
		[]cloud.InstanceRecord{{ID: ref, SourceRef: ref}}, report)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	data, err := mfs.ReadFile("/out/chunk_1/12_Masts/summary.json")
	if err != nil {
		t.Fatalf("summary not written: %v", err)
	}

	var got GroupSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("summary is not valid JSON: %v", err)
	}

	want := GroupSummary{
		ChunkID:               "chunk_1",
		ClassName:             "12_Masts",
		OriginalInstanceCount: 4,
		QualityPassCount:      3,
		MergedCount:           2,
		FinalCount:            1,
		Parameters: SummaryParameters{
			MinPoints:     100,
			MinHeight:     5.0,
			MergeDistance: 2.5,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestAssemblerEmptyGroupWritesSummary(t *testing.T) {
	store := newMemStore()
	mfs := fsutil.NewMemoryFileSystem()
	asm := &Assembler{Store: store, FS: mfs, OutDir: "/out"}

	published, err := asm.Publish(context.Background(), mastsGroup,
		cloud.DefaultProfiles().Lookup("12_Masts"), nil, UnitReport{})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(published) != 0 {
		t.Errorf("expected no published instances, got %d", len(published))
	}
	if !mfs.Exists("/out/chunk_1/12_Masts/summary.json") {
		t.Error("summary should be written even for an empty group")
	}
}

func TestAssemblerUnknownRefFails(t *testing.T) {
	store := newMemStore()
	asm := &Assembler{Store: store, FS: fsutil.NewMemoryFileSystem(), OutDir: "/out"}

	_, err := asm.Publish(context.Background(), mastsGroup,
		cloud.DefaultProfiles().Lookup("12_Masts"),
		[]cloud.InstanceRecord{{ID: "x", SourceRef: "no-such-ref"}}, UnitReport{})
	if err == nil {
		t.Fatal("expected error for unknown ref")
	}
}
