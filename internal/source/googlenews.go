package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
)

const defaultGoogleNewsBase = "https://news.google.com/rss/search"

// pubDate layouts observed in Google News feeds.
var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
}

type feedDocument struct {
	Channel struct {
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
}

type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Description string `xml:"description"`
	Source      string `xml:"source"`
}

// GoogleNews is a feed-style adapter: one locale plus one category-boosting
// search vector. Feed items carry explicit publish dates, so timestamps are
// high confidence.
type GoogleNews struct {
	locale    config.Locale
	vector    config.SearchVector
	blacklist Blacklist
	client    *http.Client
	logger    *log.Logger
	baseURL   string
	maxItems  int
	snippet   int
}

// NewGoogleNews builds an adapter for the given locale and search vector.
func NewGoogleNews(locale config.Locale, vector config.SearchVector, cfg config.GoogleNewsConfig, blacklist Blacklist, snippetLimit int, logger *log.Logger) *GoogleNews {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 6 * time.Second
	}
	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = 20
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SOURCE] ", log.LstdFlags)
	}
	return &GoogleNews{
		locale:    locale,
		vector:    vector,
		blacklist: blacklist,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
		baseURL:   defaultGoogleNewsBase,
		maxItems:  maxItems,
		snippet:   snippetLimit,
	}
}

// Name identifies this adapter in logs and item source labels.
func (g *GoogleNews) Name() string {
	return fmt.Sprintf("gnews:%s:%s", g.locale.CEID, g.vector.Name)
}

// Fetch downloads and parses the feed. Failures log and return nil.
func (g *GoogleNews) Fetch(ctx context.Context, topic string, window intel.Window) []intel.Item {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.feedURL(topic, window), nil)
	if err != nil {
		g.logger.Printf("warn: %s: build request: %v", g.Name(), err)
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Printf("warn: %s: fetch: %v", g.Name(), err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		g.logger.Printf("warn: %s: unexpected status %s", g.Name(), resp.Status)
		return nil
	}

	var doc feedDocument
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		g.logger.Printf("warn: %s: parse feed: %v", g.Name(), err)
		return nil
	}

	items := make([]intel.Item, 0, len(doc.Channel.Items))
	for _, fi := range doc.Channel.Items {
		if len(items) >= g.maxItems {
			break
		}
		if fi.Link == "" || fi.Title == "" {
			continue
		}
		if g.blacklist.Blocked(fi.Link) {
			continue
		}
		publisher := fi.Source
		if publisher == "" {
			publisher = "Source"
		}
		published := parseFeedDate(fi.PubDate)
		confidence := intel.DateConfidenceHigh
		if published.IsZero() {
			confidence = intel.DateConfidenceLow
		}
		items = append(items, intel.Item{
			Source:      g.Name(),
			Publisher:   publisher,
			Title:       StripMarkup(fi.Title),
			Summary:     Snippet(fi.Description, g.snippet),
			URL:         fi.Link,
			PublishedAt: published,
			Confidence:  confidence,
			Category:    intel.Category(g.vector.Category),
		})
	}
	return items
}

func (g *GoogleNews) feedURL(topic string, window intel.Window) string {
	timeParam := "qdr:w"
	if window.Strict() {
		timeParam = "qdr:h72"
	}
	params := url.Values{}
	params.Set("hl", g.locale.HL)
	params.Set("gl", g.locale.GL)
	params.Set("ceid", g.locale.CEID)
	params.Set("scoring", "n")
	params.Set("tbs", timeParam)
	params.Set("q", buildQuery(topic, g.vector.Keywords))
	return g.baseURL + "?" + params.Encode()
}

func parseFeedDate(raw string) time.Time {
	for _, layout := range feedDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}
