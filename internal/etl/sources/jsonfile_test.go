package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mongocsvexport/internal/etl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisteredSources(t *testing.T) {
	var types []string
	for _, spec := range etl.ListSources() {
		types = append(types, spec.Type)
	}
	assert.Equal(t, []string{"database", "http", "json_file", "mongodb"}, types)
}

func TestJSONFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotels.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hotel": "Hilton", "rooms": [{"name": "Standard"}, {"name": "Deluxe"}]}`), 0o644))

	cur, err := etl.OpenSource(context.Background(), "json_file", etl.SourceConfig{"filePath": path})
	require.NoError(t, err)
	docs := drain(t, cur)
	require.Len(t, docs, 1)

	table, err := etl.BuildPathTable([]string{"hotel", "rooms.name"})
	require.NoError(t, err)
	rows, err := etl.Preview(context.Background(), etl.NewSliceCursor(docs...), table, etl.RunOptions{}, 10)
	require.NoError(t, err)
	assert.Equal(t, []etl.Row{{"Hilton", "Standard"}, {"Hilton", "Deluxe"}}, rows)
}

func TestJSONFileSource_MissingPath(t *testing.T) {
	_, err := etl.OpenSource(context.Background(), "json_file", etl.SourceConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing filePath")

	_, err = etl.OpenSource(context.Background(), "json_file", etl.SourceConfig{"filePath": filepath.Join(t.TempDir(), "nope.json")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
