package source

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/fwerner/sitrep/internal/intel"
)

const userAgent = "Mozilla/5.0 (compatible; SitrepBot/1.0)"

// SnippetLimit is the character budget applied to summaries after markup
// stripping.
const SnippetLimit = 300

// Adapter fetches one external feed or search endpoint and parses it into
// evidence items. Fetch never returns an error: any network, parse or timeout
// failure yields an empty result and a logged warning, so one bad source
// cannot stall or fail the batch.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, topic string, window intel.Window) []intel.Item
}

// Blacklist filters items whose URL contains a blocked domain fragment.
type Blacklist []string

// Blocked reports whether the URL matches a blacklist entry.
func (b Blacklist) Blocked(url string) bool {
	for _, d := range b {
		if d != "" && strings.Contains(url, d) {
			return true
		}
	}
	return false
}

// StripMarkup flattens an HTML fragment to plain text and collapses
// whitespace.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate cuts s to at most limit characters, rune-safe.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// Snippet strips markup from s and truncates it to the snippet budget.
func Snippet(s string, limit int) string {
	if limit <= 0 {
		limit = SnippetLimit
	}
	return Truncate(StripMarkup(s), limit)
}

// buildQuery combines the topic with a keyword group via boolean OR. An empty
// group yields the bare topic.
func buildQuery(topic string, keywords []string) string {
	if len(keywords) == 0 {
		return topic
	}
	return topic + " AND (" + strings.Join(keywords, " OR ") + ")"
}
