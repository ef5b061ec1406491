package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/morius-data/instance.report/internal/cloud"
)

// PointStore is the store surface a unit of work consumes. The SQLite
// implementation lives in internal/cloud/storage/sqlite.
type PointStore interface {
	InstanceGroups(ctx context.Context) ([]cloud.Group, error)
	InstanceRefs(ctx context.Context, chunkID, className string) ([]string, error)
	ReadInstancePoints(ctx context.Context, ref string) ([]cloud.Point, error)
	UnionPoints(ctx context.Context, refA, refB string) (string, error)
	ClearFinal(ctx context.Context, chunkID, className string) error
	WriteInstance(ctx context.Context, ref, chunkID, className, instanceID string) error
}

// UnitReport summarizes the outcome of one (chunk, class) unit.
type UnitReport struct {
	Group cloud.Group

	OriginalCount int
	PassCount     int
	MergedCount   int
	DiscardCount  int
	FinalCount    int

	// SkippedRefs lists point-set refs dropped before evaluation
	// (empty subsets or unreadable metadata).
	SkippedRefs []string
	// UnionFailures counts merges abandoned because the point store
	// could not materialize the union.
	UnionFailures int

	// Final holds the published records in output order, ids assigned.
	Final []cloud.InstanceRecord

	// Err is set when the unit was abandoned entirely.
	Err error
}

// Unit processes one (chunk, class) group end to end: read instance
// metadata, classify, detect and resolve merges, publish.
type Unit struct {
	Store     PointStore
	Profiles  *cloud.ProfileStore
	Scope     cloud.MergeScope
	Assembler *Assembler
	Verbose   bool
}

// Process runs the unit for group. Errors on individual instances are
// absorbed into the report; a returned report with Err set means the
// whole unit was abandoned (store enumeration failure or ctx expiry).
func (u *Unit) Process(ctx context.Context, group cloud.Group) UnitReport {
	report := UnitReport{Group: group}

	refs, err := u.Store.InstanceRefs(ctx, group.ChunkID, group.ClassName)
	if err != nil {
		report.Err = fmt.Errorf("failed to enumerate instances for %s: %w", group, err)
		return report
	}
	report.OriginalCount = len(refs)

	profile := u.Profiles.Lookup(group.ClassName)

	records := u.loadRecords(ctx, refs, group, &report)
	if ctx.Err() != nil {
		report.Err = fmt.Errorf("unit %s abandoned: %w", group, ctx.Err())
		return report
	}

	report.PassCount = cloud.ClassifyAll(records, profile)

	pairs := cloud.DetectMergeCandidates(records, profile, u.Scope)
	plan := cloud.ResolveMerges(records, pairs)

	final := u.executePlan(ctx, records, plan, profile, &report)
	if ctx.Err() != nil {
		report.Err = fmt.Errorf("unit %s abandoned: %w", group, ctx.Err())
		return report
	}

	published, err := u.Assembler.Publish(ctx, group, profile, final, report)
	if err != nil {
		report.Err = fmt.Errorf("failed to publish %s: %w", group, err)
		return report
	}

	report.Final = published
	report.FinalCount = len(published)
	return report
}

// loadRecords reads each ref's point set and extracts its metadata
// record. Empty subsets and missing refs are skipped, not failed.
func (u *Unit) loadRecords(ctx context.Context, refs []string, group cloud.Group, report *UnitReport) []cloud.InstanceRecord {
	records := make([]cloud.InstanceRecord, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			return records
		}

		points, err := u.Store.ReadInstancePoints(ctx, ref)
		if err != nil {
			report.SkippedRefs = append(report.SkippedRefs, ref)
			log.Printf("unit %s: skipping ref %s: %v", group, ref,
				&cloud.MetadataError{Ref: ref, Field: "points", Err: err})
			continue
		}

		rec, err := cloud.Extract(points, group.ChunkID, group.ClassName, ref)
		if err != nil {
			report.SkippedRefs = append(report.SkippedRefs, ref)
			if u.Verbose || !errors.Is(err, cloud.ErrEmptyInstance) {
				log.Printf("unit %s: skipping ref %s: %v", group, ref, err)
			}
			continue
		}

		// Refs are unique within the group, so they double as the
		// pre-publication record id.
		rec.ID = ref
		records = append(records, rec)
	}
	return records
}

// executePlan materializes the plan's merges through the point store and
// returns the final record set in output order: retained originals in
// original cluster order, then merge results in plan order. A failed
// union abandons that merge and both constituents fall back to their
// pre-merge fate.
func (u *Unit) executePlan(ctx context.Context, records []cloud.InstanceRecord, plan cloud.MergePlan, profile cloud.ClassProfile, report *UnitReport) []cloud.InstanceRecord {
	fellBack := make(map[string]bool)

	var merged []cloud.InstanceRecord
	for _, action := range plan.Merges {
		unionRef, err := u.Store.UnionPoints(ctx, action.A.SourceRef, action.B.SourceRef)
		if err != nil {
			report.UnionFailures++
			fellBack[action.A.ID] = true
			fellBack[action.B.ID] = true
			log.Printf("unit %s: %v", report.Group,
				&cloud.UnionError{RefA: action.A.SourceRef, RefB: action.B.SourceRef, Err: err})
			continue
		}

		rec := cloud.CombineRecords(*action.A, *action.B, unionRef)
		rec.Quality = cloud.Classify(rec, profile)
		merged = append(merged, rec)
	}
	report.MergedCount = len(merged)

	retained := make(map[string]bool, len(plan.Retain))
	for _, rec := range plan.Retain {
		retained[rec.ID] = true
	}

	// Walk the original records so retained instances (including union
	// fallbacks) keep original cluster order.
	var final []cloud.InstanceRecord
	for _, rec := range records {
		switch {
		case retained[rec.ID]:
			final = append(final, rec)
		case fellBack[rec.ID] && rec.Quality == cloud.QualityPass:
			final = append(final, rec)
		case fellBack[rec.ID]:
			report.DiscardCount++
		}
	}
	report.DiscardCount += len(plan.Discard)

	return append(final, merged...)
}
