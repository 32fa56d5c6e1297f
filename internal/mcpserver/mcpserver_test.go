package mcpserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mohammad-safakhou/scholar/internal/knowledge"
	"github.com/mohammad-safakhou/scholar/internal/research"
	offlineprovider "github.com/mohammad-safakhou/scholar/provider/offline"
	"github.com/mohammad-safakhou/scholar/session/inmemory"
	"github.com/mohammad-safakhou/scholar/tools/paper_search"
	"github.com/mohammad-safakhou/scholar/tools/paper_search/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTools(t *testing.T) *tools {
	t.Helper()
	store := inmemory.NewInMemorySessionStore(inmemory.Options{})
	t.Cleanup(store.Close)
	provider := offlineprovider.New()
	orch := research.NewOrchestrator(
		store,
		paper_search.NewClient(zap.NewNop(), nil, catalog.Search{}),
		knowledge.NewExtractor(provider, nil, nil),
		provider,
		zap.NewNop(),
		nil,
		research.Options{CapabilityTimeout: 5 * time.Second},
	)
	require.NotNil(t, New(orch, "test", nil))
	return &tools{research: orch, logger: zap.NewNop()}
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func payload(t *testing.T, res *mcp.CallToolResult) map[string]json.RawMessage {
	t.Helper()
	require.False(t, res.IsError, text(t, res))
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out
}

func TestSearchThenListPapers(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	res, err := tl.searchPapers(ctx, call(map[string]any{"session_id": "m1", "query": "transformers", "max_results": 2}))
	require.NoError(t, err)
	out := payload(t, res)
	assert.JSONEq(t, `"m1"`, string(out["session_id"]))
	var papers []map[string]any
	require.NoError(t, json.Unmarshal(out["papers"], &papers))
	assert.Len(t, papers, 2)

	res, err = tl.papers(ctx, call(map[string]any{"session_id": "m1"}))
	require.NoError(t, err)
	out = payload(t, res)
	require.NoError(t, json.Unmarshal(out["papers"], &papers))
	assert.Len(t, papers, 2)
}

func TestChatWithoutSessionStartsOne(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	res, err := tl.chat(ctx, call(map[string]any{"message": "hello"}))
	require.NoError(t, err)
	out := payload(t, res)
	var id string
	require.NoError(t, json.Unmarshal(out["session_id"], &id))
	assert.NotEmpty(t, id)
	assert.Contains(t, string(out["response"]), "hello")
}

func TestToolErrorsAreReportedInResult(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)

	res, err := tl.chat(ctx, call(map[string]any{"session_id": "m2"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = tl.analyzePaper(ctx, call(map[string]any{"session_id": "m2", "title": "No abstract"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "abstract")

	res, err = tl.topics(ctx, call(map[string]any{"session_id": "bad id"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAnalyzeReviewAndClear(t *testing.T) {
	ctx := context.Background()
	tl := newTools(t)
	args := map[string]any{
		"session_id": "m3",
		"title":      "Random Forests",
		"authors":    []any{"Leo Breiman"},
		"abstract":   "Random forests are a combination of tree predictors.",
		"year":       2001,
	}
	res, err := tl.analyzePaper(ctx, call(args))
	require.NoError(t, err)
	payload(t, res)

	res, err = tl.literatureReview(ctx, call(map[string]any{"session_id": "m3", "topic": "tree predictors"}))
	require.NoError(t, err)
	out := payload(t, res)
	assert.Contains(t, string(out["review"]), "Random Forests")

	res, err = tl.summary(ctx, call(map[string]any{"session_id": "m3"}))
	require.NoError(t, err)
	payload(t, res)

	res, err = tl.clear(ctx, call(map[string]any{"session_id": "m3"}))
	require.NoError(t, err)
	payload(t, res)

	res, err = tl.context(ctx, call(map[string]any{"session_id": "m3"}))
	require.NoError(t, err)
	out = payload(t, res)
	var snap struct {
		Papers   []any `json:"papers"`
		Messages []any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(out["context"], &snap))
	assert.Empty(t, snap.Papers)
	assert.Empty(t, snap.Messages)

	for _, fn := range []func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){tl.topics, tl.citations, tl.findings} {
		res, err := fn(ctx, call(map[string]any{"session_id": "m3"}))
		require.NoError(t, err)
		payload(t, res)
	}
}
