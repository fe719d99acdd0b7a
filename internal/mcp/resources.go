package mcpserver

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const jobsURI = "mongocsvexport://jobs"

func (s *Server) registerResources() {
	// ── mongocsvexport://jobs ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		jobsURI,
		"Export Jobs",
		mcp.WithMIMEType("application/json"),
	), s.handleJobsResource)

	// ── mongocsvexport://jobs/{name}/runs ──────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			jobsURI+"/{name}/runs",
			"Recent Runs of a Job",
		),
		s.handleJobRunsResource,
	)
}

func (s *Server) handleJobsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.exports.ListJobs(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      jobsURI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleJobRunsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	// mongocsvexport://jobs/{name}/runs
	name := strings.TrimSuffix(strings.TrimPrefix(uri, jobsURI+"/"), "/runs")

	logs, err := s.exports.ListRunLogs(name, 20)
	if err != nil {
		return nil, err
	}
	data, _ := json.MarshalIndent(logs, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
