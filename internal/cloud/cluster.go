package cloud

// NoiseLabel is the sentinel cluster label for unclustered points.
// Cluster labels proper start at 1.
const NoiseLabel = 0

// Default clustering parameters for classes with no configured values.
const (
	DefaultClusterEps    = 2.0
	DefaultClusterMinPts = 15
)

// ClusteringParams configures a clusterer. Clustering operates on the XY
// projection; Z only contributes to instance features downstream, which
// matches how the source pipeline clustered masts and buildings.
type ClusteringParams struct {
	// Eps is the neighborhood radius in meters.
	Eps float64
	// MinPts is the minimum neighborhood size for a core point (DBSCAN)
	// or the minimum cluster size (euclidean).
	MinPts int
}

// ClusteringParamsFor returns the clustering parameters configured on a
// class profile, falling back to package defaults.
func ClusteringParamsFor(profile ClassProfile) ClusteringParams {
	params := ClusteringParams{
		Eps:    profile.ClusterEps,
		MinPts: profile.ClusterMinPts,
	}
	if params.Eps <= 0 {
		params.Eps = DefaultClusterEps
	}
	if params.MinPts <= 0 {
		params.MinPts = DefaultClusterMinPts
	}
	return params
}

// Clusterer partitions a point set into labeled clusters. The returned
// slice has one label per input point: NoiseLabel for unclustered
// points, 1..k for cluster membership. Implementations must be
// deterministic over identical input.
type Clusterer interface {
	Cluster(points []Point, params ClusteringParams) []int
}

// DBSCANClusterer implements density-based clustering. Labels are
// assigned in first-touch scan order, so identical input produces
// identical labeling.
type DBSCANClusterer struct{}

// Cluster runs DBSCAN over the XY projection of points.
func (DBSCANClusterer) Cluster(points []Point, params ClusteringParams) []int {
	n := len(points)
	if n == 0 {
		return nil
	}

	const unvisited = -1
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	index := newSpatialIndex(params.Eps)
	index.build(points)

	clusterID := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		neighbors := index.regionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i] = NoiseLabel
			continue
		}

		clusterID++
		labels[i] = clusterID

		// Queue-based expansion; the slice grows as new core points
		// contribute their neighborhoods.
		for j := 0; j < len(neighbors); j++ {
			idx := neighbors[j]

			if labels[idx] == NoiseLabel {
				labels[idx] = clusterID // noise becomes a border point
			}
			if labels[idx] != unvisited {
				continue
			}
			labels[idx] = clusterID

			expansion := index.regionQuery(points, idx, params.Eps)
			if len(expansion) >= params.MinPts {
				neighbors = append(neighbors, expansion...)
			}
		}
	}

	return labels
}

// EuclideanClusterer implements single-linkage distance clustering:
// any two points within Eps of each other share a cluster, with no
// density requirement. Clusters smaller than MinPts are relabeled as
// noise. This is the tolerance-based variant offered alongside DBSCAN.
type EuclideanClusterer struct{}

// Cluster runs euclidean clustering over the XY projection of points.
func (EuclideanClusterer) Cluster(points []Point, params ClusteringParams) []int {
	n := len(points)
	if n == 0 {
		return nil
	}

	const unvisited = -1
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	index := newSpatialIndex(params.Eps)
	index.build(points)

	clusterID := 0
	counts := make(map[int]int)

	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}

		clusterID++
		labels[i] = clusterID
		counts[clusterID]++

		queue := []int{i}
		for len(queue) > 0 {
			idx := queue[0]
			queue = queue[1:]

			for _, neighbor := range index.regionQuery(points, idx, params.Eps) {
				if labels[neighbor] != unvisited {
					continue
				}
				labels[neighbor] = clusterID
				counts[clusterID]++
				queue = append(queue, neighbor)
			}
		}
	}

	// Undersized components are noise, but labels must stay dense so
	// downstream instance ids are stable: compact the surviving labels.
	remap := make(map[int]int, len(counts))
	next := 0
	for id := 1; id <= clusterID; id++ {
		if counts[id] >= params.MinPts {
			next++
			remap[id] = next
		}
	}
	for i, label := range labels {
		if mapped, ok := remap[label]; ok {
			labels[i] = mapped
		} else {
			labels[i] = NoiseLabel
		}
	}

	return labels
}

// GroupByLabel splits points by cluster label, dropping noise. The
// returned slice is ordered by label, so element 0 is cluster 1.
func GroupByLabel(points []Point, labels []int) [][]Point {
	maxLabel := 0
	for _, label := range labels {
		if label > maxLabel {
			maxLabel = label
		}
	}
	if maxLabel == 0 {
		return nil
	}

	groups := make([][]Point, maxLabel)
	for i, label := range labels {
		if label == NoiseLabel {
			continue
		}
		groups[label-1] = append(groups[label-1], points[i])
	}
	return groups
}
