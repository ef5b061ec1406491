package cloud

// Extract computes the geometric summary for one clustered point subset
// and returns it as an InstanceRecord with quality not yet evaluated.
//
// The centroid is the arithmetic mean of all member points, not the
// bounding-box center; merge-distance logic depends on this distinction
// for non-convex clusters. Returns ErrEmptyInstance for an empty subset.
func Extract(points []Point, chunkID, className, ref string) (InstanceRecord, error) {
	if len(points) == 0 {
		return InstanceRecord{}, ErrEmptyInstance
	}

	n := float64(len(points))

	var sumX, sumY, sumZ float64
	bounds := BoundingBox{
		MinX: points[0].X, MaxX: points[0].X,
		MinY: points[0].Y, MaxY: points[0].Y,
		MinZ: points[0].Z, MaxZ: points[0].Z,
	}

	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumZ += p.Z
		if p.X < bounds.MinX {
			bounds.MinX = p.X
		}
		if p.X > bounds.MaxX {
			bounds.MaxX = p.X
		}
		if p.Y < bounds.MinY {
			bounds.MinY = p.Y
		}
		if p.Y > bounds.MaxY {
			bounds.MaxY = p.Y
		}
		if p.Z < bounds.MinZ {
			bounds.MinZ = p.Z
		}
		if p.Z > bounds.MaxZ {
			bounds.MaxZ = p.Z
		}
	}

	height := bounds.Height()

	// Density uses max(height, 1m) so squat clusters do not divide by a
	// near-zero extent.
	denom := height
	if denom < 1.0 {
		denom = 1.0
	}

	return InstanceRecord{
		ChunkID:      chunkID,
		ClassName:    className,
		PointCount:   len(points),
		Bounds:       bounds,
		Height:       height,
		Centroid:     Point{X: sumX / n, Y: sumY / n, Z: sumZ / n},
		PointDensity: n / denom,
		SourceRef:    ref,
		Quality:      QualityUnevaluated,
		Origin:       OriginClustered,
	}, nil
}
