// Package pipeline orchestrates instance extraction runs. A run
// enumerates (chunk, class) groups from the point store, processes each
// group as an independent unit of work on a bounded worker pool, and
// publishes renumbered final instances plus per-group summaries.
//
// Units share no mutable state; output ordering and numbering are local
// to each unit, so results do not depend on worker scheduling.
package pipeline
