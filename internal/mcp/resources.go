package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/ironlog/internal/catalog"
	"github.com/mark3labs/mcp-go/mcp"
)

var resExerciseCatalog = mcp.NewResource(
	"ironlog://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Reference exercises grouped by category"),
	mcp.WithMIMEType("application/json"),
)

func (h *handlers) exerciseCatalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(catalog.ByCategory())
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
