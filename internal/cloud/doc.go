// Package cloud implements instance quality classification and merge
// resolution for classified point clouds.
//
// A classified point cloud arrives partitioned by spatial chunk and
// semantic class (e.g. 12_Masts, 6_Buildings). A clustering pass splits
// each (chunk, class) group into candidate object instances. This package
// provides the decision layer on top of that output:
//
//   - metadata extraction: per-instance geometric summaries (centroid,
//     axis-aligned bounding box, height, density)
//   - quality classification: per-class point-count and height thresholds
//   - merge candidate detection: centroid-proximity pairing to find
//     fragments of over-segmented objects
//   - merge resolution: a deterministic greedy matching that turns the
//     candidate list into a conflict-free merge plan
//
// The package also ships grid-accelerated DBSCAN and euclidean clusterers
// so the pipeline can run end to end without an external clustering
// service; callers with their own clusterer only need to produce
// InstanceRecords.
//
// All operations are pure over their inputs: re-running the same group
// with the same profile yields the same plan.
package cloud
