package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("plan_export",
		mcp.WithPromptDescription("Work out the field list for flattening a collection into CSV"),
		mcp.WithArgument("sourceType",
			mcp.ArgumentDescription("Source type (e.g. mongodb, json_file, database)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the exported table is for"),
			mcp.RequiredArgument(),
		),
	), s.handlePlanExportPrompt)
}

func (s *Server) handlePlanExportPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	sourceType := req.Params.Arguments["sourceType"]
	goal := req.Params.Arguments["goal"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Plan a %s export", sourceType),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Plan a CSV export from a %s source. Goal: %s. Follow these steps:

1. Use list_export_sources to see which configuration the source needs
2. Call preview_export with a single empty field ("") to see whole documents
3. Pick dot-separated field paths; every array on a path yields one row per element,
   and two independent arrays yield every combination, so prefer one array per export
4. Call preview_export again with the chosen fields and check the row count looks right

Finish with the final field list and an example job entry for the jobs file.`, sourceType, goal),
				},
			},
		},
	}, nil
}
