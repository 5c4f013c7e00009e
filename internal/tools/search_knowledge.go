package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morrisonlaw/clara/internal/agent"
	"github.com/morrisonlaw/clara/internal/knowledge"
)

// SearchFirmKnowledge answers questions about the firm through the
// configured retriever. Retrieval failures degrade to a safe message
// directing the caller to the office number; they never surface as
// error results.
type SearchFirmKnowledge struct {
	retriever knowledge.Retriever
	logger    *slog.Logger
}

// NewSearchFirmKnowledge creates the knowledge search tool.
func NewSearchFirmKnowledge(retriever knowledge.Retriever, logger *slog.Logger) *SearchFirmKnowledge {
	return &SearchFirmKnowledge{retriever: retriever, logger: logger}
}

func (t *SearchFirmKnowledge) Name() string { return "search_firm_knowledge" }

func (t *SearchFirmKnowledge) Description() string {
	return "Search Morrison & Associates knowledge base for information about " +
		"services, pricing, attorneys, office hours, and firm policies. " +
		"Use this for any question about the firm."
}

func (t *SearchFirmKnowledge) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "The question or topic to search for"}
		},
		"required": ["query"]
	}`)
}

type searchParams struct {
	Query string `json:"query"`
}

func (t *SearchFirmKnowledge) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p searchParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("invalid search arguments: %w", err)
	}

	t.logger.Debug("knowledge search", "query", p.Query)
	return &agent.ToolResult{Content: knowledge.Answer(ctx, t.retriever, p.Query)}, nil
}
