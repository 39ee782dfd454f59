package backend

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backend.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write descriptor: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `{
  "backend_name": "ibm_torino",
  "timestamp": "2025-09-14T10:22:31.123456+00:00",
  "note": "Open-plan, non-session selection"
}`)

	d, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "ibm_torino" {
		t.Errorf("Name = %q, want ibm_torino", d.Name)
	}
	want := time.Date(2025, 9, 14, 10, 22, 31, 123456000, time.UTC)
	if !d.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", d.Timestamp, want)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"backend_name": `},
		{"missing name", `{"timestamp": "2025-09-14T10:22:31Z", "note": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected error, got nil")
		}
	})
}
