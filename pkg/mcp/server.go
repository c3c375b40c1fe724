package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/zkb-tools/zkbinfo/pkg/client"
)

// Server adapts zkbinfo-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"zkbinfo",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// zkbinfo://statistic
	s.mcpServer.AddResource(mcp.NewResource(
		"zkbinfo://statistic",
		"Zkbinfo Server Counters",
		mcp.WithResourceDescription("Operation counters accumulated since the daemon started"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadStatistic)
}

// --- Tools ---

func (s *Server) registerTools() {
	// get_activity
	s.mcpServer.AddTool(mcp.NewTool(
		"get_activity",
		mcp.WithDescription("Get win/loss activity for a character, corporation or alliance over the recent window."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("One of 'character', 'corporation', 'alliance'")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The EVE entity id")),
	), s.handleGetActivity)

	// get_relations
	s.mcpServer.AddTool(mcp.NewTool(
		"get_relations",
		mcp.WithDescription("Get friends or enemies of an entity, counted by shared killmails. Returns a map of entity id to event count."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("One of 'character', 'corporation', 'alliance'")),
		mcp.WithString("polarity", mcp.Required(), mcp.Description("'friends' or 'enemies'")),
		mcp.WithString("grouping", mcp.Required(), mcp.Description("Group counterparts by 'character', 'corporation' or 'alliance'")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The EVE entity id")),
	), s.handleGetRelations)

	// get_hourly_activity
	s.mcpServer.AddTool(mcp.NewTool(
		"get_hourly_activity",
		mcp.WithDescription("Get a 24-bucket hour-of-day histogram of an entity's killmail participation."),
		mcp.WithString("subject", mcp.Required(), mcp.Description("One of 'character', 'corporation', 'alliance'")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("The EVE entity id")),
	), s.handleGetHourlyActivity)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"zkbinfo-aware",
		mcp.WithPromptDescription("Provides context about zkbinfo concepts (killmails, subjects, relations)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadStatistic(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := s.apiClient.Statistic(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch statistic: %w", err)
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal statistic: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGetActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject := mcp.ParseString(request, "subject", "")
	id := int64(mcp.ParseFloat64(request, "id", 0))

	report, err := s.apiClient.Activity(ctx, subject, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	resultMsg := fmt.Sprintf("Wins: %d kills, %d total damage dealt\nLosses: %d deaths, %d total damage taken",
		report.Wins.TotalCount, report.Wins.TotalDamage,
		report.Losses.TotalCount, report.Losses.TotalDamage)
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handleGetRelations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject := mcp.ParseString(request, "subject", "")
	polarity := mcp.ParseString(request, "polarity", "")
	grouping := mcp.ParseString(request, "grouping", "")
	id := int64(mcp.ParseFloat64(request, "id", 0))

	rels, err := s.apiClient.Relations(ctx, subject, polarity, grouping, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	data, err := json.MarshalIndent(rels, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetHourlyActivity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subject := mcp.ParseString(request, "subject", "")
	id := int64(mcp.ParseFloat64(request, "id", 0))

	hours, err := s.apiClient.ActivityHourly(ctx, subject, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	data, err := json.MarshalIndent(hours, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal error: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "zkbinfo-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are interacting with zkbinfo, a local killmail statistics service for EVE Online.

Concepts:
- Killmail: A combat loss event with one victim and one or more attackers.
- Subject: An entity the queries pivot on ('character', 'corporation' or 'alliance').
- Activity: Win/loss totals for a subject over the recent window (default 30 days).
- Relations: Counterparts that appear on the same killmails as the subject.
  'friends' count co-participants on kills the subject took part in;
  'enemies' count attackers on killmails where the subject was the victim.

Use 'get_activity' for win/loss summaries, 'get_relations' to map who an
entity flies with or fights against, and 'get_hourly_activity' to find when
an entity is usually online.
`

	return mcp.NewGetPromptResult(
		"zkbinfo-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}
