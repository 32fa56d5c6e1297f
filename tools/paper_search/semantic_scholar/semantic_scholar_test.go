package semantic_scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverDecodesGraphResponse(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/paper/search", r.URL.Path)
		assert.Equal(t, "graph neural networks", r.URL.Query().Get("query"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"total": 2, "data": [
			{"paperId": "a", "title": "Semi-Supervised Classification with Graph Convolutional Networks", "abstract": "We present GCNs.", "year": 2016, "url": "https://www.semanticscholar.org/paper/a", "authors": [{"name": "Thomas Kipf"}, {"name": "Max Welling"}]},
			{"paperId": "b", "title": "No abstract here", "abstract": null, "year": 0, "authors": []}
		]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, "secret", time.Second, 0).Discover(context.Background(), "graph neural networks", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Thomas Kipf", "Max Welling"}, got[0].Authors)
	require.NotNil(t, got[0].Year)
	assert.Equal(t, 2016, *got[0].Year)
	assert.Equal(t, 1.0, got[0].Relevance)
	assert.Empty(t, got[1].Abstract)
	assert.Nil(t, got[1].Year)
}
