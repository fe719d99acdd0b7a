package mcpserver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"mongocsvexport/internal/config"
	"mongocsvexport/internal/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, jobs ...config.Job) *Server {
	t.Helper()
	svc := service.NewExportService(&config.Config{Jobs: jobs}, nil, nil)
	return New(Deps{Exports: svc})
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestPreviewExport(t *testing.T) {
	input := filepath.Join(t.TempDir(), "hotels.json")
	require.NoError(t, os.WriteFile(input, []byte(`{"hotel": "Hilton", "rooms": [{"name": "Standard"}, {"name": "Deluxe"}, {}]}`), 0o644))
	s := newTestServer(t)

	for _, cfg := range []any{
		`{"filePath": "` + filepath.ToSlash(input) + `"}`,
		map[string]any{"filePath": input},
	} {
		res, err := s.handlePreviewExport(context.Background(), callTool(map[string]any{
			"sourceType":       "json_file",
			"sourceConfigJSON": cfg,
			"fields":           "hotel,rooms.name",
			"nullValue":        "-",
			"rows":             float64(10),
		}))
		require.NoError(t, err)

		var preview service.PreviewResult
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &preview))
		assert.Equal(t, []string{"hotel", "rooms.name"}, preview.Columns)
		require.Len(t, preview.Rows, 3)
		assert.Equal(t, "Deluxe", preview.Rows[1][1])
		assert.Equal(t, "-", preview.Rows[2][1])
	}
}

func TestPreviewExport_BadArguments(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handlePreviewExport(ctx, callTool(map[string]any{"fields": "a"}))
	assert.ErrorContains(t, err, "sourceType is required")

	_, err = s.handlePreviewExport(ctx, callTool(map[string]any{"sourceType": "json_file", "fields": "a", "sourceConfigJSON": "{"}))
	assert.ErrorContains(t, err, "parse sourceConfig")

	_, err = s.handlePreviewExport(ctx, callTool(map[string]any{"sourceType": "nope", "fields": "a", "sourceConfigJSON": "{}"}))
	assert.ErrorContains(t, err, `unknown source type: "nope"`)
}

func TestListTools(t *testing.T) {
	job := config.Job{Name: "hotels", Fields: config.FieldList{"a"}}
	job.ApplyDefaults()
	s := newTestServer(t, job)
	ctx := context.Background()

	res, err := s.handleListJobs(ctx, callTool(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"name": "hotels"`)

	res, err = s.handleListSources(ctx, callTool(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"type": "json_file"`)

	_, err = s.handleRunJob(ctx, callTool(map[string]any{"name": "missing"}))
	assert.ErrorContains(t, err, `unknown job: "missing"`)

	_, err = s.handleListRuns(ctx, callTool(nil))
	assert.ErrorContains(t, err, "run history is not enabled")
}

func TestJobsResource(t *testing.T) {
	job := config.Job{Name: "hotels", Fields: config.FieldList{"a"}}
	job.ApplyDefaults()
	s := newTestServer(t, job)

	contents, err := s.handleJobsResource(context.Background(), mcp.ReadResourceRequest{})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	text := contents[0].(mcp.TextResourceContents)
	assert.Equal(t, jobsURI, text.URI)
	assert.Contains(t, text.Text, `"hotels"`)
}
