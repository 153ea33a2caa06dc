package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFilename is written into the output root at the end of a run.
const ManifestFilename = "crawl-manifest.json"

// Manifest summarizes one crawl run for downstream tooling.
type Manifest struct {
	RunID      string    `json:"run_id"`
	Strategy   string    `json:"strategy"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Records    Records   `json:"records"`
}

// WriteManifest serializes the manifest into the output directory.
func WriteManifest(outputDir string, m Manifest) (string, error) {
	payload, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(outputDir, ManifestFilename)
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return "", fmt.Errorf("write manifest %s: %w", path, err)
	}
	return path, nil
}
