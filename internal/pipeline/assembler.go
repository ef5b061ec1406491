package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/morius-data/instance.report/internal/cloud"
	"github.com/morius-data/instance.report/internal/fsutil"
)

// SummaryFileName is the per-group summary written under
// <out>/<chunk>/<class>/.
const SummaryFileName = "summary.json"

// GroupSummary is the per-group output report. It carries no timestamp
// so reruns over unchanged input produce byte-identical files.
type GroupSummary struct {
	ChunkID               string            `json:"chunkId"`
	ClassName             string            `json:"className"`
	OriginalInstanceCount int               `json:"originalInstanceCount"`
	QualityPassCount      int               `json:"qualityPassCount"`
	MergedCount           int               `json:"mergedCount"`
	FinalCount            int               `json:"finalCount"`
	Parameters            SummaryParameters `json:"parameters"`
}

// SummaryParameters echoes the profile thresholds the group was
// evaluated against.
type SummaryParameters struct {
	MinPoints     int     `json:"minPoints"`
	MinHeight     float64 `json:"minHeight"`
	MergeDistance float64 `json:"mergeDistance"`
}

// Assembler publishes a unit's final instance set: sequential ids,
// final rows in the point store, and a GroupSummary JSON on disk.
// Pure reporting, no control flow.
type Assembler struct {
	Store  PointStore
	FS     fsutil.FileSystem
	OutDir string
}

// Publish renumbers final as instance_1..n (the caller supplies output
// order), rewrites the group's final rows in the store, and writes the
// group summary. It returns the records with their assigned ids.
//
// The store rows are cleared first so a rerun rewrites rather than
// appends.
func (a *Assembler) Publish(ctx context.Context, group cloud.Group, profile cloud.ClassProfile, final []cloud.InstanceRecord, report UnitReport) ([]cloud.InstanceRecord, error) {
	if err := a.Store.ClearFinal(ctx, group.ChunkID, group.ClassName); err != nil {
		return nil, fmt.Errorf("failed to clear previous output: %w", err)
	}

	published := make([]cloud.InstanceRecord, len(final))
	for i, rec := range final {
		rec.ID = fmt.Sprintf("instance_%d", i+1)
		if err := a.Store.WriteInstance(ctx, rec.SourceRef, group.ChunkID, group.ClassName, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", rec.ID, err)
		}
		published[i] = rec
	}

	summary := GroupSummary{
		ChunkID:               group.ChunkID,
		ClassName:             group.ClassName,
		OriginalInstanceCount: report.OriginalCount,
		QualityPassCount:      report.PassCount,
		MergedCount:           report.MergedCount,
		FinalCount:            len(published),
		Parameters: SummaryParameters{
			MinPoints:     profile.MinPoints,
			MinHeight:     profile.MinHeight,
			MergeDistance: profile.MergeDistance,
		},
	}
	if err := a.writeSummary(group, summary); err != nil {
		return nil, err
	}

	return published, nil
}

func (a *Assembler) writeSummary(group cloud.Group, summary GroupSummary) error {
	dir := filepath.Join(a.OutDir, group.ChunkID, group.ClassName)
	if err := a.FS.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, SummaryFileName)
	if err := a.FS.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
