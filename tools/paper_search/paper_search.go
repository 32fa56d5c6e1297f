package paper_search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mohammad-safakhou/scholar/config"
	"github.com/mohammad-safakhou/scholar/internal/helpers"
	"github.com/mohammad-safakhou/scholar/internal/telemetry"
	"github.com/mohammad-safakhou/scholar/models"
	"github.com/mohammad-safakhou/scholar/tools/paper_search/arxiv"
	"github.com/mohammad-safakhou/scholar/tools/paper_search/catalog"
	"github.com/mohammad-safakhou/scholar/tools/paper_search/semantic_scholar"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Capability is the name reported in ProviderUnavailable errors and metrics.
const Capability = "paper_search"

// Searcher is one paper discovery provider.
type Searcher interface {
	Discover(ctx context.Context, q string, k int) ([]models.Paper, error)
	Name() string
}

type Provider string

const (
	CatalogProvider         Provider = "catalog"
	ArxivProvider           Provider = "arxiv"
	SemanticScholarProvider Provider = "semantic_scholar"
)

var ErrUnsupportedProvider = errors.New("unsupported paper search provider")

// NewSearcher builds a provider from the search configuration.
func NewSearcher(provider Provider, cfg config.SearchConfig) (Searcher, error) {
	switch provider {
	case CatalogProvider:
		return catalog.Search{}, nil
	case ArxivProvider:
		return arxiv.New(cfg.ArxivEndpoint, cfg.Timeout, cfg.MaxRetries), nil
	case SemanticScholarProvider:
		return semantic_scholar.New(cfg.SemanticScholarEndpoint, cfg.SemanticScholarAPIKey, cfg.Timeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}

// Client turns a free-text query into candidate papers. It performs no
// re-ranking: results keep provider order, providers keep configuration order.
type Client struct {
	searchers []Searcher
	logger    *zap.Logger
	metrics   *telemetry.Metrics
}

func NewClient(logger *zap.Logger, metrics *telemetry.Metrics, searchers ...Searcher) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{searchers: searchers, logger: logger.Named("paper_search"), metrics: metrics}
}

// NewClientFromConfig wires every configured provider.
func NewClientFromConfig(cfg config.SearchConfig, logger *zap.Logger, metrics *telemetry.Metrics) (*Client, error) {
	searchers := make([]Searcher, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		s, err := NewSearcher(Provider(name), cfg)
		if err != nil {
			return nil, err
		}
		searchers = append(searchers, s)
	}
	return NewClient(logger, metrics, searchers...), nil
}

// Search queries every provider concurrently and returns at most maxResults
// well-formed papers. It fails with a ValidationError for a blank query or a
// non-positive maxResults, and with ProviderUnavailableError only when every
// provider failed.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]models.Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.EmptyQueryError()
	}
	if maxResults <= 0 {
		return nil, models.NewValidationError("max_results", "must be a positive integer")
	}
	if len(c.searchers) == 0 {
		return nil, &models.ProviderUnavailableError{Capability: Capability, Err: errors.New("no providers configured")}
	}

	results := make([][]models.Paper, len(c.searchers))
	errs := make([]error, len(c.searchers))
	var g errgroup.Group
	for i, s := range c.searchers {
		g.Go(func() error {
			papers, err := s.Discover(ctx, query, maxResults)
			c.metrics.ObserveCapability(Capability, s.Name(), err)
			if err != nil {
				c.logger.Warn("provider failed", zap.String("provider", s.Name()), zap.String("query", query), zap.Error(err))
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
				return nil
			}
			results[i] = papers
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(c.searchers) {
		return nil, &models.ProviderUnavailableError{Capability: Capability, Err: errors.Join(errs...)}
	}

	seen := make(map[string]struct{})
	out := make([]models.Paper, 0, maxResults)
	for _, batch := range results {
		for _, p := range batch {
			p, ok := shape(p)
			if !ok {
				continue
			}
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
			if len(out) == maxResults {
				return out, nil
			}
		}
	}
	return out, nil
}

// shape cleans a provider result and reports whether it is usable.
func shape(p models.Paper) (models.Paper, bool) {
	p = p.Clone()
	p.Title = helpers.SanitizeHTMLStrict(p.Title)
	p.Abstract = helpers.SanitizeHTMLStrict(p.Abstract)
	if p.Title == "" || p.Abstract == "" {
		return p, false
	}
	authors := p.Authors[:0]
	for _, a := range p.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	p.Authors = authors
	if p.URL != "" {
		if canonical, err := helpers.CanonicalPaperURL(p.URL); err == nil {
			p.URL = canonical
		}
	}
	switch {
	case math.IsNaN(p.Relevance), p.Relevance < 0:
		p.Relevance = 0
	case p.Relevance > 1:
		p.Relevance = 1
	}
	p.ID = models.Fingerprint(p.Title, p.Authors)
	return p, true
}
