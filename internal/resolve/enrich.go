package resolve

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/source"
)

const (
	// Items with summaries shorter than this are candidates for enrichment.
	thinSummaryLen = 80

	maxFetchBody = 2 << 20
)

// Enricher fills in thin item summaries by fetching the resolved article and
// extracting readable text. Best effort only: failures leave the item as is.
type Enricher struct {
	cfg     config.ResolverConfig
	client  *http.Client
	snippet int
}

func NewEnricher(cfg config.ResolverConfig, snippetLimit int) *Enricher {
	if cfg.EnrichTimeout == 0 {
		cfg.EnrichTimeout = 8 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if snippetLimit <= 0 {
		snippetLimit = source.SnippetLimit
	}
	return &Enricher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.EnrichTimeout},
		snippet: snippetLimit,
	}
}

// EnrichItems fetches readable text for items whose summaries are too short
// to inform downstream analysis. Items are mutated in place.
func (e *Enricher) EnrichItems(ctx context.Context, items []intel.Item) {
	if !e.cfg.Enrich {
		return
	}
	sem := make(chan struct{}, e.cfg.Concurrency)
	var wg sync.WaitGroup
	for i := range items {
		if len(strings.TrimSpace(items[i].Summary)) >= thinSummaryLen {
			continue
		}
		wg.Add(1)
		go func(it *intel.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if text := e.extract(ctx, it.URL); text != "" {
				it.Summary = source.Snippet(text, e.snippet)
			}
		}(&items[i])
	}
	wg.Wait()
}

func (e *Enricher) extract(ctx context.Context, rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(strings.NewReader(string(body)), parsed)
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(article.TextContent), " ")
}
