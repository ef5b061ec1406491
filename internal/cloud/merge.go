package cloud

import "sort"

// MergeScope selects which instances are eligible for merge candidacy.
// The source pipelines disagreed on this: the mast cleanup merged any
// close pair while other variants only repaired quality failures. The
// scope is therefore configuration, never hard-coded.
type MergeScope int

const (
	// MergeScopeAll evaluates every pair regardless of quality flag.
	// This is the default; over-segmentation also splits healthy
	// instances.
	MergeScopeAll MergeScope = iota
	// MergeScopeFailOnly restricts candidacy to pairs where both
	// instances failed quality.
	MergeScopeFailOnly
)

// String returns the scope name used in config files and summaries.
func (s MergeScope) String() string {
	if s == MergeScopeFailOnly {
		return "fail_only"
	}
	return "all"
}

// ParseMergeScope maps a config string to a MergeScope. Unrecognized
// values report ok=false.
func ParseMergeScope(s string) (MergeScope, bool) {
	switch s {
	case "all", "":
		return MergeScopeAll, true
	case "fail_only", "failonly", "fail-only":
		return MergeScopeFailOnly, true
	}
	return MergeScopeAll, false
}

// Priority ranks merge candidates. High means both members look like
// fragments of one broken object; those merges are preferred when
// distances tie.
type Priority int

const (
	// PriorityNormal is the default candidate rank.
	PriorityNormal Priority = iota
	// PriorityHigh marks a pair where both members failed quality and
	// both are below the class fragment threshold.
	PriorityHigh
)

// String returns the priority name for logs and summaries.
func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// MergeCandidatePair is one proximity pairing produced by the detector.
// Pairs are derived, never persisted.
type MergeCandidatePair struct {
	A, B     *InstanceRecord
	Distance float64
	Priority Priority
}

// DetectMergeCandidates finds every pair of instances in one
// (chunk, class) group whose centroid distance is within the class merge
// distance, subject to the configured scope.
//
// The scan is O(n²) over the group; groups are tens to low hundreds of
// instances, so a spatial index is not worth its bookkeeping here.
//
// The returned slice is sorted ascending by distance, High priority
// first among equal distances, then by (A.ID, B.ID) so the ordering is
// total. The resolver consumes this ordering as its tie-break.
func DetectMergeCandidates(records []InstanceRecord, profile ClassProfile, scope MergeScope) []MergeCandidatePair {
	if len(records) < 2 || profile.MergeDistance <= 0 {
		return nil
	}

	fragment := profile.FragmentThreshold()
	var pairs []MergeCandidatePair

	for i := range records {
		for j := i + 1; j < len(records); j++ {
			a, b := &records[i], &records[j]

			if scope == MergeScopeFailOnly &&
				(a.Quality != QualityFail || b.Quality != QualityFail) {
				continue
			}

			d := CentroidDistance(*a, *b)
			if d > profile.MergeDistance {
				continue
			}

			priority := PriorityNormal
			if a.Quality == QualityFail && b.Quality == QualityFail &&
				a.PointCount < fragment && b.PointCount < fragment {
				priority = PriorityHigh
			}

			pairs = append(pairs, MergeCandidatePair{
				A:        a,
				B:        b,
				Distance: d,
				Priority: priority,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Distance != pairs[j].Distance {
			return pairs[i].Distance < pairs[j].Distance
		}
		if pairs[i].Priority != pairs[j].Priority {
			return pairs[i].Priority > pairs[j].Priority
		}
		if pairs[i].A.ID != pairs[j].A.ID {
			return pairs[i].A.ID < pairs[j].A.ID
		}
		return pairs[i].B.ID < pairs[j].B.ID
	})

	return pairs
}
