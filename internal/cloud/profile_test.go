package cloud

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfileFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profiles.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write profile file: %v", err)
	}
	return path
}

func TestLoadProfiles(t *testing.T) {
	path := writeProfileFile(t, `{
		"classes": [
			{"class_name": "12_Masts", "min_points": 100, "min_height": 5.0, "merge_distance": 2.5},
			{"class_name": "7_Trees", "min_points": 60, "min_height": 2.0, "merge_distance": 2.5}
		],
		"fallback": {"min_points": 40, "min_height": 0.3, "merge_distance": 1.0}
	}`)

	store, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles returned error: %v", err)
	}

	masts := store.Lookup("12_Masts")
	if masts.MinPoints != 100 || masts.MinHeight != 5.0 {
		t.Errorf("12_Masts = %+v, want MinPoints 100, MinHeight 5.0", masts)
	}

	other := store.Lookup("42_Other")
	if other.MinPoints != 40 || other.MinHeight != 0.3 || other.MergeDistance != 1.0 {
		t.Errorf("fallback profile = %+v, want file-supplied fallback", other)
	}
}

func TestLoadProfiles_DefaultFallback(t *testing.T) {
	path := writeProfileFile(t, `{"classes": []}`)

	store, err := LoadProfiles(path)
	if err != nil {
		t.Fatalf("LoadProfiles returned error: %v", err)
	}

	p := store.Lookup("anything")
	if p.MinPoints != FallbackMinPoints || p.MinHeight != FallbackMinHeight ||
		p.MergeDistance != FallbackMergeDistance {
		t.Errorf("fallback = %+v, want package constants", p)
	}
}

func TestLoadProfiles_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad json", `{`, "parse"},
		{"missing class name", `{"classes": [{"min_points": 10}]}`, "class_name"},
		{"negative min points", `{"classes": [{"class_name": "x", "min_points": -1}]}`, "min_points"},
		{"max below min", `{"classes": [{"class_name": "x", "min_points": 100, "max_points": 10}]}`, "max_points"},
		{"negative merge distance", `{"classes": [{"class_name": "x", "merge_distance": -2}]}`, "merge_distance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeProfileFile(t, tt.content)
			_, err := LoadProfiles(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadProfiles_RejectsNonJSONExtension(t *testing.T) {
	if _, err := LoadProfiles("profiles.yaml"); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	if _, err := LoadProfiles(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
