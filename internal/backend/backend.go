package backend

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Descriptor identifies the remote backend jobs are submitted to. It is
// written by the backend selection step and only ever read here.
type Descriptor struct {
	Name      string    `json:"backend_name"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note"`
}

// Load reads a descriptor file.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to read backend descriptor: %w", err)
	}

	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("failed to parse backend descriptor %s: %w", path, err)
	}
	if d.Name == "" {
		return Descriptor{}, fmt.Errorf("backend descriptor %s: backend_name must be specified", path)
	}

	return d, nil
}
