package semantic_scholar

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammad-safakhou/scholar/internal/httpclient"
	"github.com/mohammad-safakhou/scholar/models"
)

const DefaultEndpoint = "https://api.semanticscholar.org/graph/v1"

// Search queries the Semantic Scholar Graph API.
type Search struct {
	Endpoint string
	APIKey   string
	HTTP     *httpclient.Client
}

func New(endpoint, apiKey string, timeout time.Duration, retries int) Search {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return Search{Endpoint: strings.TrimRight(endpoint, "/"), APIKey: apiKey, HTTP: httpclient.New(timeout, retries, 0)}
}

func (s Search) Name() string { return "semantic_scholar" }

type searchResponse struct {
	Data []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		Year     int    `json:"year"`
		URL      string `json:"url"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"data"`
}

// Discover returns up to k papers in the API's relevance order; relevance
// decays linearly with rank from 1.
func (s Search) Discover(ctx context.Context, q string, k int) ([]models.Paper, error) {
	// https://api.semanticscholar.org/api-docs/graph#tag/Paper-Data/operation/get_graph_paper_relevance_search
	params := url.Values{}
	params.Set("query", q)
	params.Set("limit", strconv.Itoa(k))
	params.Set("fields", "title,abstract,year,url,authors")

	headers := map[string]string{}
	if s.APIKey != "" {
		headers["x-api-key"] = s.APIKey
	}
	var raw searchResponse
	if err := s.HTTP.DoJSON(ctx, http.MethodGet, s.Endpoint+"/paper/search?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, fmt.Errorf("semantic scholar search: %w", err)
	}

	out := make([]models.Paper, 0, len(raw.Data))
	for i, d := range raw.Data {
		p := models.Paper{
			Title:     d.Title,
			Abstract:  d.Abstract,
			URL:       d.URL,
			Relevance: rankRelevance(i, len(raw.Data)),
		}
		for _, a := range d.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		if d.Year > 0 {
			y := d.Year
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
