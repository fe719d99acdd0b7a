package sources

import (
	"context"
	"fmt"
	"os"

	"mongocsvexport/internal/etl"
)

// ── JSON File Source ────────────────────────────────────────
// Reads records from a local Extended JSON file, such as mongoexport output.

type jsonFileSource struct{}

func init() { etl.RegisterSource(&jsonFileSource{}) }

func (s *jsonFileSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "json_file",
		Label: "JSON File",
		ConfigFields: []etl.ConfigField{
			{Key: "filePath", Label: "File Path", Type: "file", Required: true, Help: "Path to a JSON array or newline-delimited documents"},
			{Key: "dataPath", Label: "Data Path", Type: "string", Required: false, Help: "Dot-separated path to the array (e.g., 'data.items'). Leave empty if root is an array."},
		},
	}
}

func (s *jsonFileSource) Open(ctx context.Context, cfg etl.SourceConfig) (etl.Cursor, error) {
	f, err := os.Open(cfg.String("filePath"))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return openDocuments(f, cfg.String("dataPath"))
}
