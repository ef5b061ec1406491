package cloud

import "math"

// estimatedPointsPerCell sizes the initial grid allocation.
const estimatedPointsPerCell = 4

// spatialIndex is a regular-grid hash over the XY plane for neighborhood
// queries. Cell size should approximately match the clustering radius so
// a 3x3 cell scan covers every possible neighbor.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	return &spatialIndex{
		cellSize: cellSize,
		grid:     make(map[int64][]int),
	}
}

func (si *spatialIndex) build(points []Point) {
	si.grid = make(map[int64][]int, len(points)/estimatedPointsPerCell+1)
	for i, p := range points {
		id := si.cellID(cellCoord(p.X, si.cellSize), cellCoord(p.Y, si.cellSize))
		si.grid[id] = append(si.grid[id], i)
	}
}

func cellCoord(v, cellSize float64) int64 {
	return int64(math.Floor(v / cellSize))
}

// cellID pairs two signed cell coordinates into one key: zigzag-encode
// to non-negative, then Szudzik's pairing function.
func (si *spatialIndex) cellID(cx, cy int64) int64 {
	var a, b int64
	if cx >= 0 {
		a = 2 * cx
	} else {
		a = -2*cx - 1
	}
	if cy >= 0 {
		b = 2 * cy
	} else {
		b = -2*cy - 1
	}
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// regionQuery returns indices of all points within eps (XY distance) of
// points[idx], including idx itself. Distances are compared squared to
// avoid the sqrt.
func (si *spatialIndex) regionQuery(points []Point, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps

	baseX := cellCoord(p.X, si.cellSize)
	baseY := cellCoord(p.Y, si.cellSize)

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for _, candidate := range si.grid[si.cellID(baseX+dx, baseY+dy)] {
				c := points[candidate]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidate)
				}
			}
		}
	}
	return neighbors
}
