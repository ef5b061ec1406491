package pipeline

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/morius-data/instance.report/internal/cloud"
)

// RunStats holds aggregate statistics over the run's final instances.
type RunStats struct {
	// Point count distribution
	MeanPointCount   float64 `json:"mean_point_count"`
	MedianPointCount float64 `json:"median_point_count"`
	P90PointCount    float64 `json:"p90_point_count"`

	// Height distribution
	MeanHeight   float64 `json:"mean_height_meters"`
	MedianHeight float64 `json:"median_height_meters"`
	P90Height    float64 `json:"p90_height_meters"`

	ClassCounts map[string]int `json:"class_counts"`
}

// ComputeRunStats calculates aggregate statistics from the final
// instances of all units.
func ComputeRunStats(records []cloud.InstanceRecord) RunStats {
	if len(records) == 0 {
		return RunStats{}
	}

	stats := RunStats{
		ClassCounts: make(map[string]int),
	}

	counts := make([]float64, 0, len(records))
	heights := make([]float64, 0, len(records))
	for _, rec := range records {
		counts = append(counts, float64(rec.PointCount))
		heights = append(heights, rec.Height)
		stats.ClassCounts[rec.ClassName]++
	}

	// Quantile requires sorted input.
	sort.Float64s(counts)
	sort.Float64s(heights)

	stats.MeanPointCount = stat.Mean(counts, nil)
	stats.MedianPointCount = stat.Quantile(0.5, stat.Empirical, counts, nil)
	stats.P90PointCount = stat.Quantile(0.9, stat.Empirical, counts, nil)

	stats.MeanHeight = stat.Mean(heights, nil)
	stats.MedianHeight = stat.Quantile(0.5, stat.Empirical, heights, nil)
	stats.P90Height = stat.Quantile(0.9, stat.Empirical, heights, nil)

	return stats
}
