package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mohammad-safakhou/scholar/models"
	"go.uber.org/zap"
)

// Research is the set of operations exposed as MCP tools.
type Research interface {
	EnsureSession(ctx context.Context, id string) (string, error)
	Chat(ctx context.Context, id, message, mode string) (string, error)
	SearchPapers(ctx context.Context, id, query string, maxResults int) ([]models.Paper, error)
	AnalyzePaper(ctx context.Context, id string, p models.Paper) (models.Extraction, error)
	GetTopics(ctx context.Context, id string) ([]string, error)
	GetCitations(ctx context.Context, id string) ([]models.Citation, error)
	GetFindings(ctx context.Context, id string) ([]models.Finding, error)
	GetPapers(ctx context.Context, id string, limit int) ([]models.Paper, error)
	GetContext(ctx context.Context, id string) (models.Snapshot, error)
	GetSummary(ctx context.Context, id string) (string, error)
	GenerateLiteratureReview(ctx context.Context, id, topic string) (string, error)
	ClearContext(ctx context.Context, id string) error
}

type tools struct {
	research Research
	logger   *zap.Logger
}

func sessionArg() mcp.ToolOption {
	return mcp.WithString("session_id",
		mcp.Description("Research session id. Omit to start a new session; the id is returned in every result."))
}

// New registers every research operation as a tool on a fresh MCP server.
func New(research Research, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &tools{research: research, logger: logger.Named("mcp")}
	s := server.NewMCPServer("scholar", version, server.WithToolCapabilities(false), server.WithRecovery())

	s.AddTool(mcp.NewTool("chat",
		mcp.WithDescription("Send a message to the research assistant; the reply is grounded in the session's papers and findings."),
		sessionArg(),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message")),
		mcp.WithString("mode", mcp.Description("default, research, paper_analysis or literature_review")),
	), t.chat)
	s.AddTool(mcp.NewTool("search_papers",
		mcp.WithDescription("Search for papers and add every result to the session."),
		sessionArg(),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
		mcp.WithNumber("max_results", mcp.Description("Maximum number of papers (default from configuration)")),
	), t.searchPapers)
	s.AddTool(mcp.NewTool("analyze_paper",
		mcp.WithDescription("Store a paper and extract its citations, topics and findings into the session."),
		sessionArg(),
		mcp.WithString("title", mcp.Required()),
		mcp.WithArray("authors", mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("abstract", mcp.Required()),
		mcp.WithNumber("year"),
		mcp.WithString("url"),
	), t.analyzePaper)
	s.AddTool(mcp.NewTool("literature_review",
		mcp.WithDescription("Write a markdown literature review on a topic from the session's papers."),
		sessionArg(),
		mcp.WithString("topic", mcp.Required()),
	), t.literatureReview)
	s.AddTool(mcp.NewTool("summary",
		mcp.WithDescription("Summarize the session."),
		sessionArg(),
	), t.summary)
	s.AddTool(mcp.NewTool("research_papers",
		mcp.WithDescription("List the session's papers."),
		sessionArg(),
		mcp.WithNumber("limit", mcp.Description("Return only the most relevant papers")),
	), t.papers)
	s.AddTool(mcp.NewTool("topics", mcp.WithDescription("List the session's topics."), sessionArg()), t.topics)
	s.AddTool(mcp.NewTool("citations", mcp.WithDescription("List the session's citations."), sessionArg()), t.citations)
	s.AddTool(mcp.NewTool("research_findings", mcp.WithDescription("List the session's findings."), sessionArg()), t.findings)
	s.AddTool(mcp.NewTool("context", mcp.WithDescription("Return the full session snapshot."), sessionArg()), t.context)
	s.AddTool(mcp.NewTool("clear_context", mcp.WithDescription("Empty the session, keeping its id."), sessionArg()), t.clear)
	return s
}

// Serve runs the MCP server over stdin/stdout.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// session resolves the session_id argument, creating a session if needed.
func (t *tools) session(ctx context.Context, req mcp.CallToolRequest) (string, error) {
	return t.research.EnsureSession(ctx, req.GetString("session_id", ""))
}

// result renders payload as JSON with the session id attached.
func (t *tools) result(id string, payload map[string]any) (*mcp.CallToolResult, error) {
	payload["session_id"] = id
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// failure turns domain errors into tool errors the client can show; only
// unexpected errors abort the call.
func (t *tools) failure(tool string, err error) (*mcp.CallToolResult, error) {
	t.logger.Warn("tool failed", zap.String("tool", tool), zap.Error(err))
	return mcp.NewToolResultError(err.Error()), nil
}

func (t *tools) chat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("chat", err)
	}
	reply, err := t.research.Chat(ctx, id, message, req.GetString("mode", ""))
	if err != nil {
		return t.failure("chat", err)
	}
	return t.result(id, map[string]any{"response": reply})
}

func (t *tools) searchPapers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("search_papers", err)
	}
	papers, err := t.research.SearchPapers(ctx, id, query, req.GetInt("max_results", 0))
	if err != nil {
		return t.failure("search_papers", err)
	}
	return t.result(id, map[string]any{"papers": papers})
}

func (t *tools) analyzePaper(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("analyze_paper", err)
	}
	p := models.Paper{
		Title:    req.GetString("title", ""),
		Authors:  req.GetStringSlice("authors", nil),
		Abstract: req.GetString("abstract", ""),
		URL:      req.GetString("url", ""),
	}
	if y := req.GetInt("year", 0); y > 0 {
		p.Year = &y
	}
	ext, err := t.research.AnalyzePaper(ctx, id, p)
	if err != nil {
		return t.failure("analyze_paper", err)
	}
	return t.result(id, map[string]any{"citations": ext.Citations, "topics": ext.Topics, "findings": ext.Findings})
}

func (t *tools) literatureReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("literature_review", err)
	}
	review, err := t.research.GenerateLiteratureReview(ctx, id, req.GetString("topic", ""))
	if err != nil {
		return t.failure("literature_review", err)
	}
	return t.result(id, map[string]any{"review": review})
}

func (t *tools) summary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("summary", err)
	}
	summary, err := t.research.GetSummary(ctx, id)
	if err != nil {
		return t.failure("summary", err)
	}
	return t.result(id, map[string]any{"summary": summary})
}

func (t *tools) papers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("research_papers", err)
	}
	papers, err := t.research.GetPapers(ctx, id, req.GetInt("limit", 0))
	if err != nil {
		return t.failure("research_papers", err)
	}
	return t.result(id, map[string]any{"papers": papers})
}

func (t *tools) topics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("topics", err)
	}
	topics, err := t.research.GetTopics(ctx, id)
	if err != nil {
		return t.failure("topics", err)
	}
	return t.result(id, map[string]any{"topics": topics})
}

func (t *tools) citations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("citations", err)
	}
	citations, err := t.research.GetCitations(ctx, id)
	if err != nil {
		return t.failure("citations", err)
	}
	return t.result(id, map[string]any{"citations": citations})
}

func (t *tools) findings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("research_findings", err)
	}
	findings, err := t.research.GetFindings(ctx, id)
	if err != nil {
		return t.failure("research_findings", err)
	}
	return t.result(id, map[string]any{"findings": findings})
}

func (t *tools) context(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("context", err)
	}
	snap, err := t.research.GetContext(ctx, id)
	if err != nil {
		return t.failure("context", err)
	}
	return t.result(id, map[string]any{"context": snap})
}

func (t *tools) clear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := t.session(ctx, req)
	if err != nil {
		return t.failure("clear_context", err)
	}
	if err := t.research.ClearContext(ctx, id); err != nil {
		return t.failure("clear_context", err)
	}
	return t.result(id, map[string]any{})
}
