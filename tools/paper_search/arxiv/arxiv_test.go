package arxiv

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
      You Need</title>
    <summary>  The dominant sequence transduction models are based on recurrent networks.
    We propose the Transformer. </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/1810.04805v2</id>
    <published>2018-10-11T00:50:01Z</published>
    <title>BERT</title>
    <summary>We introduce BERT.</summary>
    <author><name>Jacob Devlin</name></author>
  </entry>
</feed>`

func TestDiscoverParsesAtom(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "all:transformers", r.URL.Query().Get("search_query"))
		assert.Equal(t, "2", r.URL.Query().Get("max_results"))
		w.Header().Set("Content-Type", "application/atom+xml")
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	got, err := New(srv.URL, time.Second, 0).Discover(context.Background(), "transformers", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Attention Is All You Need", got[0].Title)
	assert.Equal(t, "The dominant sequence transduction models are based on recurrent networks. We propose the Transformer.", got[0].Abstract)
	assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, got[0].Authors)
	require.NotNil(t, got[0].Year)
	assert.Equal(t, 2017, *got[0].Year)
	assert.Equal(t, 1.0, got[0].Relevance)
	assert.Equal(t, 0.5, got[1].Relevance)
}

func TestDiscoverSurfacesServerErrors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second, 0).Discover(context.Background(), "x", 1)
	require.Error(t, err)
}
