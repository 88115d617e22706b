// Package mcp provides a Model Context Protocol server for Quorum.
//
// It exposes the vote extraction engine as MCP tools (extract a meeting,
// inspect the learning memory, read the quality history) over stdio so
// agent frontends can drive extraction directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openquorum/quorum/internal/extract"
	"github.com/openquorum/quorum/internal/memory"
	"github.com/openquorum/quorum/internal/store"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Engine     *extract.Engine
	Archive    store.Store // optional; enables archiving and history tools
	Memory     *memory.ExtractionMemory
	MemoryPath string // "" = do not persist memory updates
	Version    string
}

// mu serializes tool calls. The mcp-go library dispatches handlers
// concurrently via goroutines; the learning memory and the SQLite archive
// both expect a single writer.
var mu sync.Mutex

// NewServer creates a configured MCP server with all Quorum tools.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Quorum",
		ver,
		server.WithToolCapabilities(false),
	)

	registerExtractTool(s, cfg)
	registerMemoryStatsTool(s, cfg)
	if cfg.Archive != nil {
		registerQualityHistoryTool(s, cfg.Archive)
	}

	return s
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("quorum_extract",
		mcp.WithDescription("Extract structured vote records from council meeting minutes and agenda text. Runs the hybrid pipeline: consent-calendar and roll-call pattern matching, LLM fallback when quality is low, then merge, filter, and dedup. Returns the full extraction result as JSON."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("minutes_text",
			mcp.Required(),
			mcp.Description("Plain text of the meeting minutes"),
		),
		mcp.WithString("agenda_text",
			mcp.Description("Plain text of the meeting agenda (improves title resolution)"),
		),
		mcp.WithString("meeting_id",
			mcp.Description("Identifier for the meeting (e.g. '2024-03-05'). Defaults to 'mcp-extract'."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()

		minutes, err := req.RequireString("minutes_text")
		if err != nil || strings.TrimSpace(minutes) == "" {
			return mcp.NewToolResultError("minutes_text is required"), nil
		}

		in := extract.MeetingInput{
			MeetingID:   "mcp-extract",
			MinutesText: minutes,
		}
		if agenda, err := req.RequireString("agenda_text"); err == nil {
			in.AgendaText = agenda
		}
		if id, err := req.RequireString("meeting_id"); err == nil && id != "" {
			in.MeetingID = id
		}

		result, delta, err := cfg.Engine.ExtractMeeting(ctx, in)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extraction error: %v", err)), nil
		}

		if cfg.Archive != nil {
			if _, err := cfg.Archive.ArchiveRun(ctx, result); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("archiving result: %v", err)), nil
			}
		}
		if cfg.MemoryPath != "" && cfg.Memory != nil && !delta.Empty() {
			cfg.Memory.Apply(delta)
			if err := cfg.Memory.Save(cfg.MemoryPath); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("saving memory: %v", err)), nil
			}
		}

		data, _ := json.MarshalIndent(result, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerMemoryStatsTool(s *server.MCPServer, cfg ServerConfig) {
	tool := mcp.NewTool("quorum_memory_stats",
		mcp.WithDescription("Inspect Quorum's learning memory: pattern hit/miss counts, learned member-name corrections, and the quality score trend."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()

		mem := cfg.Memory
		if mem == nil {
			mem = memory.New()
		}

		summary := map[string]any{
			"successful_patterns":     mem.SuccessfulPatterns,
			"failed_patterns":         mem.FailedPatterns,
			"member_name_corrections": mem.MemberNameCorrections,
			"quality_runs":            len(mem.QualityHistory),
			"average_quality":         mem.AverageQuality(),
			"last_updated":            mem.LastUpdated,
		}
		data, _ := json.MarshalIndent(summary, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerQualityHistoryTool(s *server.MCPServer, archive store.Store) {
	tool := mcp.NewTool("quorum_quality_history",
		mcp.WithDescription("Read recent extraction runs from the archive: meeting id, quality score, and method used, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of runs to return (default: 20, max: 200)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		mu.Lock()
		defer mu.Unlock()

		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil {
			limit = int(v)
			if limit > 200 {
				limit = 200
			}
		}

		points, err := archive.QualityHistory(ctx, limit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("quality history error: %v", err)), nil
		}

		data, _ := json.MarshalIndent(points, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	})
}
