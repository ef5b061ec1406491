package cloud

import "math"

// Point is a single point in Cartesian world coordinates (meters).
// The source data is UTM-projected, so X/Y are planar and Z is elevation.
type Point struct {
	X, Y, Z float64
}

// BoundingBox is an axis-aligned box in world coordinates.
type BoundingBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() float64 {
	return b.MaxZ - b.MinZ
}

// Union returns the smallest box containing both b and other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	return BoundingBox{
		MinX: math.Min(b.MinX, other.MinX),
		MinY: math.Min(b.MinY, other.MinY),
		MinZ: math.Min(b.MinZ, other.MinZ),
		MaxX: math.Max(b.MaxX, other.MaxX),
		MaxY: math.Max(b.MaxY, other.MaxY),
		MaxZ: math.Max(b.MaxZ, other.MaxZ),
	}
}

// Center returns the geometric center of the box. This is a reporting
// convenience only: merge distance is always computed from the centroid
// (mean of member points), which diverges from the box center for
// non-convex clusters.
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.MinX + b.MaxX) / 2,
		Y: (b.MinY + b.MaxY) / 2,
		Z: (b.MinZ + b.MaxZ) / 2,
	}
}

// QualityFlag is the result of evaluating an instance against its class
// quality profile.
type QualityFlag int

const (
	// QualityUnevaluated means the instance has not been classified yet.
	QualityUnevaluated QualityFlag = iota
	// QualityPass means the instance meets all class thresholds.
	QualityPass
	// QualityFail means the instance misses at least one threshold.
	QualityFail
)

// String returns the flag name for logs and summaries.
func (q QualityFlag) String() string {
	switch q {
	case QualityPass:
		return "pass"
	case QualityFail:
		return "fail"
	default:
		return "unevaluated"
	}
}

// Origin records how an instance came to exist.
type Origin int

const (
	// OriginClustered marks an instance produced directly by clustering.
	OriginClustered Origin = iota
	// OriginMerged marks an instance combined from two clustered fragments.
	OriginMerged
)

// String returns the origin name for logs and summaries.
func (o Origin) String() string {
	if o == OriginMerged {
		return "merged"
	}
	return "clustered"
}

// InstanceRecord is the geometric summary of one candidate object
// instance within a (chunk, class) group. Records never own raw points:
// SourceRef identifies the point set in the external point store, and
// merged records reference a store-materialized union.
type InstanceRecord struct {
	ID        string
	ChunkID   string
	ClassName string

	PointCount int
	Bounds     BoundingBox
	Height     float64
	Centroid   Point
	// PointDensity is points per meter of height, the fragment/facade
	// discriminator used by the mast cleanup stage.
	PointDensity float64

	// SourceRef identifies the underlying point set in the point store.
	SourceRef string

	Quality QualityFlag
	Origin  Origin
	// Constituents lists the source instance IDs when Origin is
	// OriginMerged, in merge order.
	Constituents []string
}

// Group is one (chunk, class) partition key. Each group is an
// independent unit of work.
type Group struct {
	ChunkID   string
	ClassName string
}

func (g Group) String() string {
	return g.ChunkID + "/" + g.ClassName
}

// CentroidDistance returns the 3D euclidean distance between the
// centroids of two instances.
func CentroidDistance(a, b InstanceRecord) float64 {
	dx := a.Centroid.X - b.Centroid.X
	dy := a.Centroid.Y - b.Centroid.Y
	dz := a.Centroid.Z - b.Centroid.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}
