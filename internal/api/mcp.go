package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/debrief/internal/ledger"
	"github.com/kalambet/debrief/internal/transcript"
)

// MCPDeps holds dependencies for the MCP server. It reuses the HTTP
// layer's interfaces so both surfaces stay behaviorally identical.
type MCPDeps struct {
	Runner      Runner
	Transcripts TranscriptSource
	Contracts   ContractStore
	Runs        RunStore
}

// NewMCPServer creates an MCP server exposing the meeting pipeline as
// tools plus the contract ledger as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"debrief",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("debrief — local meeting assistant: summarize transcripts, draft follow-up emails, and track contract details."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("process_meeting",
			mcp.WithDescription("Run the full pipeline on a meeting transcript: summary, follow-up email, contract extraction, ledger update."),
			mcp.WithString("file", mcp.Description("Transcript file name, e.g. Acme_20250503.txt. Omit to process the most recent transcript.")),
		),
		mcpProcessMeeting(deps),
	)

	s.AddTool(
		mcp.NewTool("list_transcripts",
			mcp.WithDescription("List available meeting transcripts, oldest first."),
		),
		mcpListTranscripts(deps),
	)

	s.AddTool(
		mcp.NewTool("list_contracts",
			mcp.WithDescription("List all contract ledger records."),
		),
		mcpListContracts(deps),
	)

	s.AddTool(
		mcp.NewTool("get_contract",
			mcp.WithDescription("Fetch one contract ledger record by client and meeting date."),
			mcp.WithString("client", mcp.Description("Client name as it appears in the ledger"), mcp.Required()),
			mcp.WithString("date", mcp.Description("Meeting date, YYYY-MM-DD"), mcp.Required()),
		),
		mcpGetContract(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"debrief://ledger",
			"Contract Ledger",
			mcp.WithResourceDescription("All contract ledger records as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceLedger(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"debrief://runs",
			"Recent Runs",
			mcp.WithResourceDescription("Last 10 pipeline runs"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRuns(deps),
	)

	return s
}

func mcpProcessMeeting(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("file", "")

		var (
			file transcript.File
			err  error
		)
		if name == "" {
			file, err = deps.Transcripts.Latest()
		} else {
			file, err = deps.Transcripts.ByName(name)
		}
		if err != nil {
			return mcpError(fmt.Sprintf("resolving transcript: %v", err)), nil
		}

		st, err := deps.Runner.Run(ctx, file)
		if err != nil {
			return mcpError(fmt.Sprintf("pipeline failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"run_id":       st.RunID,
			"file":         st.File.Name,
			"client":       st.Key().Client,
			"date":         st.Key().DateISO(),
			"summary":      st.Summary,
			"action_items": st.ActionItems,
			"email":        st.Email,
			"summary_path": st.SummaryPath,
			"email_path":   st.EmailPath,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListTranscripts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		files, err := deps.Transcripts.List()
		if err != nil && !errors.Is(err, transcript.ErrNoTranscripts) {
			return mcpError(fmt.Sprintf("listing transcripts: %v", err)), nil
		}
		if len(files) == 0 {
			return mcpText("[]"), nil
		}

		out := make([]transcriptResponse, len(files))
		for i, f := range files {
			out[i] = transcriptResponse{Name: f.Name, Client: f.Key.Client, Date: f.Key.DateISO()}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal transcripts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListContracts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := deps.Contracts.List()
		if err != nil {
			return mcpError(fmt.Sprintf("listing contracts: %v", err)), nil
		}
		if len(records) == 0 {
			return mcpText("[]"), nil
		}

		out := make([]ledgerRowResponse, len(records))
		for i, rec := range records {
			out[i] = ledgerRow(rec)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal contracts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetContract(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := req.RequireString("client")
		if err != nil {
			return mcpError("client is required"), nil
		}
		date, err := req.RequireString("date")
		if err != nil {
			return mcpError("date is required"), nil
		}

		rec, err := deps.Contracts.Get(client, date)
		if errors.Is(err, ledger.ErrNotFound) {
			return mcpError(fmt.Sprintf("no contract for %s on %s", client, date)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("reading contract: %v", err)), nil
		}

		b, err := json.Marshal(ledgerRow(rec))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal contract: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceLedger(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		records, err := deps.Contracts.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list contracts: %w", err)
		}

		out := make([]ledgerRowResponse, len(records))
		for i, rec := range records {
			out[i] = ledgerRow(rec)
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal ledger: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRuns(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		runs, err := deps.Runs.ListRuns(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}

		b, err := json.Marshal(runs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal runs: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
