package cloud

import (
	"errors"
	"fmt"
)

// ErrEmptyInstance reports a zero-point cluster. Such clusters are
// dropped before quality evaluation and never become records.
var ErrEmptyInstance = errors.New("instance has no points")

// MetadataError reports that stored metadata for an instance is missing
// or unreadable. The instance is skipped and counted in the unit report
// rather than being treated as a quality failure, so real data is never
// silently discarded because of a bookkeeping gap.
type MetadataError struct {
	Ref   string
	Field string
	Err   error
}

func (e *MetadataError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("metadata unavailable for %s: missing %s", e.Ref, e.Field)
	}
	return fmt.Sprintf("metadata unavailable for %s: %v", e.Ref, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// UnionError reports that the point store failed to materialize the
// union of two point sets. The owning merge is abandoned and both
// constituents fall back to their pre-merge classification.
type UnionError struct {
	RefA, RefB string
	Err        error
}

func (e *UnionError) Error() string {
	return fmt.Sprintf("union of %s and %s failed: %v", e.RefA, e.RefB, e.Err)
}

func (e *UnionError) Unwrap() error { return e.Err }
