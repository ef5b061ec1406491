package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/morius-data/instance.report/internal/cloud"
)

// ClassPointStore is the store surface ingestion consumes: raw
// classified points in, clustered instance subsets out.
type ClassPointStore interface {
	ClassPointGroups(ctx context.Context) ([]cloud.Group, error)
	ClassPoints(ctx context.Context, chunkID, className string) ([]cloud.Point, error)
	InsertInstance(ctx context.Context, chunkID, className string, points []cloud.Point) (string, error)
}

// Ingestor clusters raw classified points into stored instances. Runs
// before extraction when the input arrives unclustered.
type Ingestor struct {
	Store     ClassPointStore
	Profiles  *cloud.ProfileStore
	Clusterer cloud.Clusterer
	Verbose   bool
}

// IngestAll clusters every (chunk, class) group of raw points and
// stores one instance per cluster. Noise points are dropped. Returns
// the number of instances stored.
func (ing *Ingestor) IngestAll(ctx context.Context) (int, error) {
	groups, err := ing.Store.ClassPointGroups(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to enumerate point groups: %w", err)
	}

	total := 0
	for _, group := range groups {
		n, err := ing.ingestGroup(ctx, group)
		if err != nil {
			return total, fmt.Errorf("failed to ingest %s: %w", group, err)
		}
		total += n
	}
	return total, nil
}

func (ing *Ingestor) ingestGroup(ctx context.Context, group cloud.Group) (int, error) {
	points, err := ing.Store.ClassPoints(ctx, group.ChunkID, group.ClassName)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	profile := ing.Profiles.Lookup(group.ClassName)
	params := cloud.ClusteringParamsFor(profile)

	labels := ing.Clusterer.Cluster(points, params)
	clusters := cloud.GroupByLabel(points, labels)

	if ing.Verbose {
		noise := 0
		for _, label := range labels {
			if label == cloud.NoiseLabel {
				noise++
			}
		}
		log.Printf("ingest %s: %d points, %d clusters, %d noise",
			group, len(points), len(clusters), noise)
	}

	for _, cluster := range clusters {
		if _, err := ing.Store.InsertInstance(ctx, group.ChunkID, group.ClassName, cluster); err != nil {
			return 0, err
		}
	}
	return len(clusters), nil
}
