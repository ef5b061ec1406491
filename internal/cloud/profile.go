package cloud

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Fallback thresholds for classes with no configured profile. The
// pipeline stays total: an unknown class is still evaluated, just with
// permissive generic thresholds.
const (
	FallbackMinPoints     = 50
	FallbackMinHeight     = 0.5
	FallbackMergeDistance = 2.0
)

// ClassProfile holds the per-class quality thresholds and the merge
// distance used for over-segmentation repair. MaxPoints and MaxHeight
// are optional upper bounds (zero means unbounded); masts use them to
// reject building facades misclassified as poles.
type ClassProfile struct {
	ClassName string `json:"class_name"`

	MinPoints int     `json:"min_points"`
	MaxPoints int     `json:"max_points,omitempty"`
	MinHeight float64 `json:"min_height"`
	MaxHeight float64 `json:"max_height,omitempty"`

	// MergeDistance is the centroid-distance threshold (meters) under
	// which two instances are merge candidates.
	MergeDistance float64 `json:"merge_distance"`

	// FragmentPoints is the "clearly fragmentary" point count used for
	// merge-priority ranking. Zero means use MinPoints.
	FragmentPoints int `json:"fragment_points,omitempty"`

	// Clustering defaults for the in-process clusterer.
	ClusterEps    float64 `json:"cluster_eps,omitempty"`
	ClusterMinPts int     `json:"cluster_min_pts,omitempty"`
}

// FragmentThreshold returns the point count below which an instance is
// considered clearly fragmentary.
func (p ClassProfile) FragmentThreshold() int {
	if p.FragmentPoints > 0 {
		return p.FragmentPoints
	}
	return p.MinPoints
}

// ProfileStore maps class names to their quality profiles. Lookup never
// fails: unknown classes receive the fallback profile.
type ProfileStore struct {
	profiles map[string]ClassProfile
	fallback ClassProfile
}

// DefaultProfiles returns the built-in profile table for the production
// class set.
func DefaultProfiles() *ProfileStore {
	store := &ProfileStore{
		profiles: make(map[string]ClassProfile),
		fallback: ClassProfile{
			MinPoints:     FallbackMinPoints,
			MinHeight:     FallbackMinHeight,
			MergeDistance: FallbackMergeDistance,
		},
	}
	for _, p := range []ClassProfile{
		{
			ClassName:      "12_Masts",
			MinPoints:      100,
			MaxPoints:      3000,
			MinHeight:      5.0,
			MaxHeight:      50.0,
			MergeDistance:  2.5,
			FragmentPoints: 150,
			ClusterEps:     1.5,
			ClusterMinPts:  30,
		},
		{
			ClassName:     "7_Trees",
			MinPoints:     60,
			MinHeight:     2.0,
			MergeDistance: 2.5,
			ClusterEps:    2.5,
			ClusterMinPts: 20,
		},
		{
			ClassName:     "6_Buildings",
			MinPoints:     80,
			MinHeight:     2.5,
			MergeDistance: 8.0,
			ClusterEps:    5.0,
			ClusterMinPts: 25,
		},
		{
			ClassName:     "8_OtherVegetation",
			MinPoints:     50,
			MinHeight:     0.5,
			MergeDistance: 2.0,
			ClusterEps:    2.0,
			ClusterMinPts: 15,
		},
	} {
		store.profiles[p.ClassName] = p
	}
	return store
}

// NewProfileStore builds a store from explicit profiles and a fallback.
func NewProfileStore(profiles []ClassProfile, fallback ClassProfile) *ProfileStore {
	store := &ProfileStore{
		profiles: make(map[string]ClassProfile, len(profiles)),
		fallback: fallback,
	}
	for _, p := range profiles {
		store.profiles[p.ClassName] = p
	}
	return store
}

// Lookup returns the profile for className, or the fallback profile (with
// the class name filled in) when none is configured.
func (s *ProfileStore) Lookup(className string) ClassProfile {
	if p, ok := s.profiles[className]; ok {
		return p
	}
	p := s.fallback
	p.ClassName = className
	return p
}

// Known reports whether className has an explicit profile.
func (s *ProfileStore) Known(className string) bool {
	_, ok := s.profiles[className]
	return ok
}

// profileFile is the on-disk JSON shape for LoadProfiles.
type profileFile struct {
	Classes  []ClassProfile `json:"classes"`
	Fallback *ClassProfile  `json:"fallback,omitempty"`
}

// LoadProfiles reads a profile table from a JSON file. Classes omitted
// from the file use the fallback; a fallback omitted from the file uses
// the package constants. A file failing to load is fatal to the run, so
// errors here are returned rather than defaulted away.
func LoadProfiles(path string) (*ProfileStore, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("profile file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	var file profileFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}

	fallback := ClassProfile{
		MinPoints:     FallbackMinPoints,
		MinHeight:     FallbackMinHeight,
		MergeDistance: FallbackMergeDistance,
	}
	if file.Fallback != nil {
		fallback = *file.Fallback
	}

	for i, p := range file.Classes {
		if err := validateProfile(p); err != nil {
			return nil, fmt.Errorf("profile %d (%s): %w", i, p.ClassName, err)
		}
	}

	return NewProfileStore(file.Classes, fallback), nil
}

func validateProfile(p ClassProfile) error {
	if p.ClassName == "" {
		return fmt.Errorf("class_name is required")
	}
	if p.MinPoints < 0 {
		return fmt.Errorf("min_points must be >= 0, got %d", p.MinPoints)
	}
	if p.MaxPoints != 0 && p.MaxPoints < p.MinPoints {
		return fmt.Errorf("max_points %d is below min_points %d", p.MaxPoints, p.MinPoints)
	}
	if p.MinHeight < 0 {
		return fmt.Errorf("min_height must be >= 0, got %f", p.MinHeight)
	}
	if p.MaxHeight != 0 && p.MaxHeight < p.MinHeight {
		return fmt.Errorf("max_height %f is below min_height %f", p.MaxHeight, p.MinHeight)
	}
	if p.MergeDistance < 0 {
		return fmt.Errorf("merge_distance must be >= 0, got %f", p.MergeDistance)
	}
	return nil
}
