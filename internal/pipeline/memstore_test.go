package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/morius-data/instance.report/internal/cloud"
)

var errFakeNotFound = errors.New("ref not found")

type finalRow struct {
	InstanceID string
	Ref        string
}

// memStore is an in-memory PointStore/ClassPointStore for tests.
type memStore struct {
	mu sync.Mutex

	refs       map[cloud.Group][]string
	points     map[string][]cloud.Point
	rawPoints  map[cloud.Group][]cloud.Point
	finals     map[cloud.Group][]finalRow
	nextRef    int
	failUnions bool
}

func newMemStore() *memStore {
	return &memStore{
		refs:      make(map[cloud.Group][]string),
		points:    make(map[string][]cloud.Point),
		rawPoints: make(map[cloud.Group][]cloud.Point),
		finals:    make(map[cloud.Group][]finalRow),
	}
}

// addInstance seeds one clustered point subset and returns its ref.
func (m *memStore) addInstance(chunkID, className string, points []cloud.Point) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRef++
	ref := fmt.Sprintf("ref-%d", m.nextRef)
	g := cloud.Group{ChunkID: chunkID, ClassName: className}
	m.refs[g] = append(m.refs[g], ref)
	m.points[ref] = points
	return ref
}

func (m *memStore) InstanceGroups(ctx context.Context) ([]cloud.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make([]cloud.Group, 0, len(m.refs))
	for g := range m.refs {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ChunkID != groups[j].ChunkID {
			return groups[i].ChunkID < groups[j].ChunkID
		}
		return groups[i].ClassName < groups[j].ClassName
	})
	return groups, nil
}

func (m *memStore) InstanceRefs(ctx context.Context, chunkID, className string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[cloud.Group{ChunkID: chunkID, ClassName: className}], nil
}

func (m *memStore) ReadInstancePoints(ctx context.Context, ref string) ([]cloud.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	points, ok := m.points[ref]
	if !ok {
		return nil, fmt.Errorf("ref %s: %w", ref, errFakeNotFound)
	}
	return points, nil
}

func (m *memStore) UnionPoints(ctx context.Context, refA, refB string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUnions {
		return "", errors.New("union unavailable")
	}

	unionRef := "union:" + refA + "|" + refB
	if _, ok := m.points[unionRef]; ok {
		return unionRef, nil
	}

	a, okA := m.points[refA]
	b, okB := m.points[refB]
	if !okA || !okB {
		return "", errFakeNotFound
	}

	combined := make([]cloud.Point, 0, len(a)+len(b))
	combined = append(combined, a...)
	combined = append(combined, b...)
	m.points[unionRef] = combined
	return unionRef, nil
}

func (m *memStore) ClearFinal(ctx context.Context, chunkID, className string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.finals, cloud.Group{ChunkID: chunkID, ClassName: className})
	return nil
}

func (m *memStore) WriteInstance(ctx context.Context, ref, chunkID, className, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.points[ref]; !ok {
		return fmt.Errorf("ref %s: %w", ref, errFakeNotFound)
	}
	g := cloud.Group{ChunkID: chunkID, ClassName: className}
	m.finals[g] = append(m.finals[g], finalRow{InstanceID: instanceID, Ref: ref})
	return nil
}

func (m *memStore) ClassPointGroups(ctx context.Context) ([]cloud.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := make([]cloud.Group, 0, len(m.rawPoints))
	for g := range m.rawPoints {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].ChunkID != groups[j].ChunkID {
			return groups[i].ChunkID < groups[j].ChunkID
		}
		return groups[i].ClassName < groups[j].ClassName
	})
	return groups, nil
}

func (m *memStore) ClassPoints(ctx context.Context, chunkID, className string) ([]cloud.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rawPoints[cloud.Group{ChunkID: chunkID, ClassName: className}], nil
}

func (m *memStore) InsertInstance(ctx context.Context, chunkID, className string, points []cloud.Point) (string, error) {
	if len(points) == 0 {
		return "", cloud.ErrEmptyInstance
	}
	return m.addInstance(chunkID, className, points), nil
}

func (m *memStore) finalRows(chunkID, className string) []finalRow {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.finals[cloud.Group{ChunkID: chunkID, ClassName: className}]
	out := make([]finalRow, len(rows))
	copy(out, rows)
	return out
}

// columnPoints generates n points in a vertical column of the given
// height centered on (x, y). The centroid lands at (x, y, height/2).
func columnPoints(n int, x, y, height float64) []cloud.Point {
	points := make([]cloud.Point, n)
	for i := range points {
		points[i] = cloud.Point{X: x, Y: y, Z: height * float64(i) / float64(n-1)}
	}
	return points
}
