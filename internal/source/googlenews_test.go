package source

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Search results</title>
<item>
<title>Navy frigate shadows vessel near coast</title>
<link>https://news.google.com/rss/articles/abc123</link>
<pubDate>Sun, 10 Mar 2024 08:30:00 GMT</pubDate>
<description>&lt;b&gt;Breaking:&lt;/b&gt; a &lt;a href="x"&gt;frigate&lt;/a&gt; was observed earlier today.</description>
<source url="https://navalnews.example">Naval News</source>
</item>
<item>
<title>Hotel deals for the weekend</title>
<link>https://www.tripadvisor.com/deal/42</link>
<pubDate>Sun, 10 Mar 2024 07:00:00 GMT</pubDate>
<description>Great rooms.</description>
<source>Tripadvisor</source>
</item>
<item>
<title>Undated wire item</title>
<link>https://wire.example.com/item/9</link>
<pubDate>not a date</pubDate>
<description>No date on this one.</description>
<source>Wire</source>
</item>
</channel>
</rss>`

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestGoogleNews(baseURL string) *GoogleNews {
	locale := config.Locale{HL: "en-US", GL: "US", CEID: "US:en"}
	vector := config.SearchVector{Name: "defense", Category: "security", Keywords: []string{"navy", "vessel"}}
	cfg := config.GoogleNewsConfig{Timeout: 2 * time.Second, MaxItems: 20}
	g := NewGoogleNews(locale, vector, cfg, Blacklist{"tripadvisor"}, SnippetLimit, testLogger())
	if baseURL != "" {
		g.baseURL = baseURL
	}
	return g
}

func TestGoogleNewsFetchParsesFeed(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, sampleFeed)
	}))
	defer srv.Close()

	g := newTestGoogleNews(srv.URL)
	items := g.Fetch(context.Background(), "Berlin", intel.Window72h)

	if !strings.Contains(gotQuery, "Berlin AND (navy OR vessel)") {
		t.Fatalf("expected OR-grouped query, got %q", gotQuery)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after blacklist filter, got %d", len(items))
	}

	first := items[0]
	if first.Title != "Navy frigate shadows vessel near coast" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if strings.Contains(first.Summary, "<") {
		t.Fatalf("summary should be markup-free, got %q", first.Summary)
	}
	if first.Publisher != "Naval News" {
		t.Fatalf("unexpected publisher: %q", first.Publisher)
	}
	if first.Category != intel.CategorySecurity {
		t.Fatalf("unexpected category: %q", first.Category)
	}
	if !first.HasDate() {
		t.Fatalf("feed item should carry a timestamp")
	}

	if items[1].HasDate() {
		t.Fatalf("unparseable pubDate should yield zero timestamp")
	}
}

func TestGoogleNewsFetchWindowParam(t *testing.T) {
	var gotTBS []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTBS = append(gotTBS, r.URL.Query().Get("tbs"))
		_, _ = io.WriteString(w, sampleFeed)
	}))
	defer srv.Close()

	g := newTestGoogleNews(srv.URL)
	g.Fetch(context.Background(), "Berlin", intel.Window72h)
	g.Fetch(context.Background(), "Berlin", intel.WindowWeek)

	if len(gotTBS) != 2 || gotTBS[0] != "qdr:h72" || gotTBS[1] != "qdr:w" {
		t.Fatalf("unexpected tbs params: %v", gotTBS)
	}
}

func TestGoogleNewsFetchFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := newTestGoogleNews(srv.URL)
	if items := g.Fetch(context.Background(), "Berlin", intel.WindowWeek); len(items) != 0 {
		t.Fatalf("expected empty result on server error, got %d items", len(items))
	}
}

func TestGoogleNewsFetchTimeoutReturnsEmpty(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	g := newTestGoogleNews(srv.URL)
	g.client.Timeout = 50 * time.Millisecond
	if items := g.Fetch(context.Background(), "Berlin", intel.WindowWeek); len(items) != 0 {
		t.Fatalf("expected empty result on timeout, got %d items", len(items))
	}
}

func TestGoogleNewsMaxItems(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel>`)
	for i := 0; i < 10; i++ {
		b.WriteString(`<item><title>t</title><link>https://example.com/` +
			string(rune('a'+i)) + `</link><pubDate>Sun, 10 Mar 2024 08:30:00 GMT</pubDate></item>`)
	}
	b.WriteString(`</channel></rss>`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, b.String())
	}))
	defer srv.Close()

	g := newTestGoogleNews(srv.URL)
	g.maxItems = 3
	if items := g.Fetch(context.Background(), "x", intel.WindowWeek); len(items) != 3 {
		t.Fatalf("expected max_items cap of 3, got %d", len(items))
	}
}
