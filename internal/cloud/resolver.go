package cloud

// MergeAction pairs two instances the resolver decided to combine.
type MergeAction struct {
	A, B *InstanceRecord
}

// MergePlan partitions a group into retained originals, merge pairs, and
// discards. Executing the plan (materializing point-set unions) happens
// in the pipeline layer; the plan itself is pure.
type MergePlan struct {
	Retain  []*InstanceRecord
	Merges  []MergeAction
	Discard []*InstanceRecord
}

// ResolveMerges walks the sorted candidate list greedily and produces a
// conflict-free plan:
//
//  1. Pairs are taken in list order (distance ascending, High priority
//     winning ties — the detector's ordering).
//  2. A pair is accepted only if neither member was claimed by an
//     earlier pair; accepted pairs claim both members.
//  3. Unclaimed Pass instances are retained in original group order.
//  4. Unclaimed Fail instances are discarded.
//
// Every instance therefore participates in at most one merge per pass.
// Merged results are terminal within the pass; transitive chains of
// three or more fragments are left for a subsequent run.
//
// Given the same records and candidate ordering the plan is identical,
// which is what makes the pipeline idempotent.
func ResolveMerges(records []InstanceRecord, pairs []MergeCandidatePair) MergePlan {
	claimed := make(map[string]bool, len(records))

	var plan MergePlan
	for _, pair := range pairs {
		if claimed[pair.A.ID] || claimed[pair.B.ID] {
			continue
		}
		claimed[pair.A.ID] = true
		claimed[pair.B.ID] = true
		plan.Merges = append(plan.Merges, MergeAction{A: pair.A, B: pair.B})
	}

	for i := range records {
		rec := &records[i]
		if claimed[rec.ID] {
			continue
		}
		if rec.Quality == QualityPass {
			plan.Retain = append(plan.Retain, rec)
		} else {
			plan.Discard = append(plan.Discard, rec)
		}
	}

	return plan
}

// CombineRecords builds the merged record for a and b. The point sets
// are disjoint (both come from a single clustering pass), so the count
// is a plain sum and the centroid is the point-count-weighted average of
// the two centroids — not a midpoint, which would drift toward the
// smaller fragment. Height is recomputed from the unioned bounding box.
// ref is the store reference for the materialized union.
//
// The merged record comes back unevaluated; callers re-derive its
// quality flag from the profile. Merge results are accepted into the
// final set by origin, so the flag on a merged record is informational.
func CombineRecords(a, b InstanceRecord, ref string) InstanceRecord {
	total := a.PointCount + b.PointCount
	wa := float64(a.PointCount) / float64(total)
	wb := float64(b.PointCount) / float64(total)

	bounds := a.Bounds.Union(b.Bounds)
	height := bounds.Height()

	denom := height
	if denom < 1.0 {
		denom = 1.0
	}

	return InstanceRecord{
		ChunkID:    a.ChunkID,
		ClassName:  a.ClassName,
		PointCount: total,
		Bounds:     bounds,
		Height:     height,
		Centroid: Point{
			X: a.Centroid.X*wa + b.Centroid.X*wb,
			Y: a.Centroid.Y*wa + b.Centroid.Y*wb,
			Z: a.Centroid.Z*wa + b.Centroid.Z*wb,
		},
		PointDensity: float64(total) / denom,
		SourceRef:    ref,
		Quality:      QualityUnevaluated,
		Origin:       OriginMerged,
		Constituents: []string{a.ID, b.ID},
	}
}
