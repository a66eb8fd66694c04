package source

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
)

// DuckDuckGo is a search-style adapter scraping the HTML endpoint. Results
// carry no publish date, so items are stamped "now" with low date confidence.
type DuckDuckGo struct {
	cfg       config.DuckDuckGoConfig
	category  intel.Category
	terms     []string
	blacklist Blacklist
	client    *http.Client
	logger    *log.Logger
	snippet   int
	now       func() time.Time
}

// NewDuckDuckGo builds the scraper adapter. terms are appended to the topic
// as plain search terms (no OR grouping; the HTML endpoint scores them
// loosely anyway).
func NewDuckDuckGo(cfg config.DuckDuckGoConfig, category intel.Category, terms []string, blacklist Blacklist, snippetLimit int, logger *log.Logger) *DuckDuckGo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://html.duckduckgo.com/html/"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 6 * time.Second
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 9
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SOURCE] ", log.LstdFlags)
	}
	return &DuckDuckGo{
		cfg:       cfg,
		category:  category,
		terms:     terms,
		blacklist: blacklist,
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		snippet:   snippetLimit,
		now:       time.Now,
	}
}

// Name identifies this adapter in logs and item source labels.
func (d *DuckDuckGo) Name() string { return "duckduckgo:" + string(d.category) }

// Fetch scrapes the HTML results page. Failures log and return nil.
func (d *DuckDuckGo) Fetch(ctx context.Context, topic string, _ intel.Window) []intel.Item {
	query := topic
	if len(d.terms) > 0 {
		query += " " + strings.Join(d.terms, " ")
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", d.cfg.Region)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		d.logger.Printf("warn: %s: build request: %v", d.Name(), err)
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Printf("warn: %s: fetch: %v", d.Name(), err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		d.logger.Printf("warn: %s: unexpected status %s", d.Name(), resp.Status)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		d.logger.Printf("warn: %s: parse html: %v", d.Name(), err)
		return nil
	}

	var items []intel.Item
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(items) >= d.cfg.MaxResults {
			return false
		}
		anchor := sel.Find(".result__a")
		title := strings.TrimSpace(anchor.Text())
		link, _ := anchor.Attr("href")
		if title == "" || link == "" || strings.Contains(link, "duckduckgo.com/y.js") {
			return true
		}
		link = decodeResultLink(link)
		if d.blacklist.Blocked(link) {
			return true
		}
		items = append(items, intel.Item{
			Source:      d.Name(),
			Publisher:   "DuckDuckGo",
			Title:       title,
			Summary:     Snippet(sel.Find(".result__snippet").Text(), d.snippet),
			URL:         link,
			PublishedAt: d.now(),
			Confidence:  intel.DateConfidenceLow,
			Category:    d.category,
		})
		return true
	})
	return items
}

// decodeResultLink unwraps the //duckduckgo.com/l/?uddg= redirect wrapper
// around organic result links.
func decodeResultLink(link string) string {
	idx := strings.Index(link, "uddg=")
	if idx < 0 {
		return link
	}
	target := link[idx+len("uddg="):]
	if amp := strings.IndexByte(target, '&'); amp >= 0 {
		target = target[:amp]
	}
	decoded, err := url.QueryUnescape(target)
	if err != nil {
		return link
	}
	return decoded
}
