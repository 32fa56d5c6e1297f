package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/httpclient"
	"github.com/mohammad-safakhou/scholar/models"
)

const DefaultEndpoint = "https://export.arxiv.org/api/query"

// Search queries the arXiv Atom API.
type Search struct {
	Endpoint string
	HTTP     *httpclient.Client
}

func New(endpoint string, timeout time.Duration, retries int) Search {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return Search{Endpoint: endpoint, HTTP: httpclient.New(timeout, retries, 0)}
}

func (s Search) Name() string { return "arxiv" }

type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID        string `xml:"id"`
	Title     string `xml:"title"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

// Discover returns up to k papers in arXiv's relevance order. arXiv does not
// expose scores, so relevance decays linearly with rank from 1.
func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Paper, error) {
	// https://info.arxiv.org/help/api/user-manual.html
	params := url.Values{}
	params.Set("search_query", "all:"+q)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(k))
	params.Set("sortBy", "relevance")

	raw, err := s.HTTP.Do(ctx, http.MethodGet, s.Endpoint+"?"+params.Encode(), map[string]string{"Accept": "application/atom+xml"}, nil)
	if err != nil {
		return nil, fmt.Errorf("arxiv query: %w", err)
	}
	var f feed
	if err := xml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("arxiv feed: %w", err)
	}

	out := make([]models.Paper, 0, len(f.Entries))
	for i, e := range f.Entries {
		p := models.Paper{
			Title:     strings.Join(strings.Fields(e.Title), " "),
			Abstract:  strings.Join(strings.Fields(e.Summary), " "),
			URL:       strings.TrimSpace(e.ID),
			Relevance: rankRelevance(i, len(f.Entries)),
		}
		for _, a := range e.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				p.Authors = append(p.Authors, name)
			}
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			y := t.Year()
			p.Year = &y
		}
		out = append(out, p)
	}
	return out, nil
}

func rankRelevance(i, n int) float64 {
	if n <= 1 {
		return 1
	}
	return 1 - 0.5*float64(i)/float64(n-1)
}
