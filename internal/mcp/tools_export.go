package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"mongocsvexport/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerExportTools() {
	s.mcp.AddTool(mcp.NewTool("list_export_sources",
		mcp.WithDescription("List available record source types with their configuration fields"),
	), s.handleListSources)

	s.mcp.AddTool(mcp.NewTool("list_export_jobs",
		mcp.WithDescription("List the configured export jobs with their trigger and last run status"),
	), s.handleListJobs)

	s.mcp.AddTool(mcp.NewTool("preview_export",
		mcp.WithDescription(`Preview flattened CSV rows from a source without writing anything.
Fields are dot-separated paths into each document (e.g. "hotel,rooms.name,rooms.price").
Arrays along a path produce one row per element; several independent arrays produce their cartesian product.`),
		mcp.WithString("sourceType", mcp.Description("Source type (use list_export_sources to see available types)"), mcp.Required()),
		mcp.WithString("sourceConfigJSON", mcp.Description("Source configuration as JSON"), mcp.Required()),
		mcp.WithString("fields", mcp.Description("Comma separated field paths"), mcp.Required()),
		mcp.WithNumber("rows", mcp.Description("Maximum rows to return (default 10)")),
		mcp.WithString("nullValue", mcp.Description("Text for null and missing values (default empty)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewExport)

	s.mcp.AddTool(mcp.NewTool("run_export_job",
		mcp.WithDescription("Run a configured export job now. Overwrites the job's output file or loads rows into its target table."),
		mcp.WithString("name", mcp.Description("Job name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRunJob)

	s.mcp.AddTool(mcp.NewTool("list_export_runs",
		mcp.WithDescription("List recent export runs, newest first"),
		mcp.WithString("name", mcp.Description("Job name (optional, all jobs when empty)")),
		mcp.WithNumber("limit", mcp.Description("Maximum runs to return (default 20)")),
	), s.handleListRuns)
}

func (s *Server) handleListSources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.exports.ListSources())
}

func (s *Server) handleListJobs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.exports.ListJobs())
}

func (s *Server) handlePreviewExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	sourceType := req.GetString("sourceType", "")
	if sourceType == "" {
		return nil, fmt.Errorf("sourceType is required")
	}
	fields, ok := args["fields"].(string)
	if !ok {
		return nil, fmt.Errorf("fields is required")
	}

	// sourceConfigJSON may come as a string or as a raw JSON object
	var sourceConfig map[string]any
	switch v := args["sourceConfigJSON"].(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &sourceConfig); err != nil {
			return nil, fmt.Errorf("parse sourceConfig: %w", err)
		}
	case map[string]any:
		sourceConfig = v
	default:
		return nil, fmt.Errorf("sourceConfigJSON is required")
	}

	job := &config.Job{
		Name:      "preview",
		Source:    config.Source{Type: sourceType, Config: sourceConfig},
		Fields:    config.SplitFields(fields),
		NullValue: req.GetString("nullValue", ""),
	}
	job.ApplyDefaults()

	preview, err := s.exports.Preview(ctx, job, req.GetInt("rows", 10))
	if err != nil {
		return nil, fmt.Errorf("preview export: %w", err)
	}
	return jsonResult(preview)
}

func (s *Server) handleRunJob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	result, err := s.exports.RunJob(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("run export job: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logs, err := s.exports.ListRunLogs(req.GetString("name", ""), req.GetInt("limit", 20))
	if err != nil {
		return nil, err
	}
	return jsonResult(logs)
}
