package resolve

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/helpers"
	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/internal/telemetry"
)

var embeddedURLPattern = regexp.MustCompile(`https?://[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;=%]+`)

// Resolver turns redirect/obfuscated aggregator links into canonical
// destination URLs. Resolve never fails: every fallback layer degrades to
// returning the input unchanged, so downstream consumers must tolerate
// unresolved aggregator links.
type Resolver struct {
	cfg     config.ResolverConfig
	client  *http.Client
	metrics *telemetry.Metrics
	logger  *log.Logger
}

// New builds a Resolver with a redirect-following HEAD client bounded by the
// configured hop count and timeout.
func New(cfg config.ResolverConfig, metrics *telemetry.Metrics, logger *log.Logger) *Resolver {
	if cfg.MaxHops <= 0 {
		cfg.MaxHops = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RESOLVE] ", log.LstdFlags)
	}
	maxHops := cfg.MaxHops
	return &Resolver{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxHops {
					return fmt.Errorf("stopped after %d redirects", maxHops)
				}
				return nil
			},
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve returns the canonical destination for raw. Layered strategy:
// passthrough for non-aggregator hosts, then a HEAD redirect chase, then
// base64 path decoding, then percent-decoding. The input is returned
// unchanged when every layer fails.
func (r *Resolver) Resolve(ctx context.Context, raw string) string {
	if !helpers.HostMatchesAny(raw, r.cfg.AggregatorHosts) {
		r.metrics.ResolverOutcome("passthrough")
		return raw
	}

	if resolved, ok := r.chaseRedirects(ctx, raw); ok {
		r.metrics.ResolverOutcome("redirect")
		return resolved
	}
	if decoded, ok := decodeArticlePath(raw); ok {
		r.metrics.ResolverOutcome("decoded")
		return decoded
	}
	if decoded, ok := r.percentDecode(raw); ok {
		r.metrics.ResolverOutcome("percent")
		return decoded
	}
	r.metrics.ResolverOutcome("unresolved")
	return raw
}

// ResolveItems resolves the URL of every item concurrently, preserving order.
func (r *Resolver) ResolveItems(ctx context.Context, items []intel.Item) []intel.Item {
	out := make([]intel.Item, len(items))
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item intel.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			item.URL = r.Resolve(ctx, item.URL)
			out[i] = item
		}(i, item)
	}
	wg.Wait()
	return out
}

func (r *Resolver) chaseRedirects(ctx context.Context, raw string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return "", false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return "", false
	}
	final := resp.Request.URL.String()
	if final == "" {
		return "", false
	}
	return final, true
}

// decodeArticlePath handles Google News style links whose path carries a
// base64-encoded blob with the destination URL embedded in it.
func decodeArticlePath(raw string) (string, bool) {
	idx := strings.Index(raw, "articles/")
	if idx < 0 {
		return "", false
	}
	segment := raw[idx+len("articles/"):]
	if q := strings.IndexByte(segment, '?'); q >= 0 {
		segment = segment[:q]
	}
	if segment == "" {
		return "", false
	}
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.StdEncoding} {
		decoded, err := enc.DecodeString(segment)
		if err != nil {
			continue
		}
		if match := embeddedURLPattern.FindString(string(decoded)); match != "" {
			return match, true
		}
	}
	return "", false
}

// percentDecode unwraps redirector links that carry the destination as a
// percent-encoded parameter. The embedded URL is accepted only when it points
// outside the aggregator set.
func (r *Resolver) percentDecode(raw string) (string, bool) {
	decoded, err := url.QueryUnescape(raw)
	if err != nil || decoded == raw {
		return "", false
	}
	idx := strings.LastIndex(decoded, "http")
	if idx <= 0 {
		return "", false
	}
	match := embeddedURLPattern.FindString(decoded[idx:])
	if match == "" || helpers.HostMatchesAny(match, r.cfg.AggregatorHosts) {
		return "", false
	}
	return match, true
}
