package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
)

const sampleResults = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fmeteoalarm.example%2Fwarning%2F7&amp;rut=abc">Severe storm warning issued</a>
  <div class="result__snippet">Authorities issued a <b>red alert</b> for the coastal region.</div>
</div>
<div class="result">
  <a class="result__a" href="https://duckduckgo.com/y.js?ad=1">Sponsored result</a>
  <div class="result__snippet">Buy now.</div>
</div>
<div class="result">
  <a class="result__a" href="https://www.pinterest.com/pin/1">Storm photos</a>
  <div class="result__snippet">Nice pictures.</div>
</div>
<div class="result">
  <a class="result__a" href="https://news.example.com/direct">Direct link result</a>
  <div class="result__snippet">Plain snippet.</div>
</div>
</body></html>`

func newTestDuckDuckGo(endpoint string) *DuckDuckGo {
	cfg := config.DuckDuckGoConfig{Endpoint: endpoint, Region: "us-en", Timeout: 2 * time.Second, MaxResults: 9}
	return NewDuckDuckGo(cfg, intel.CategoryWeather, []string{"weather", "warning"}, Blacklist{"pinterest"}, SnippetLimit, testLogger())
}

func TestDuckDuckGoFetchParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if q := r.URL.Query().Get("q"); q != "Kiel weather warning" {
			t.Errorf("unexpected query: %q", q)
		}
		_, _ = io.WriteString(w, sampleResults)
	}))
	defer srv.Close()

	d := newTestDuckDuckGo(srv.URL)
	stamp := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return stamp }

	items := d.Fetch(context.Background(), "Kiel", intel.WindowWeek)
	if len(items) != 2 {
		t.Fatalf("expected 2 items after ad and blacklist filters, got %d", len(items))
	}

	first := items[0]
	if first.URL != "https://meteoalarm.example/warning/7" {
		t.Fatalf("expected uddg wrapper decoded, got %q", first.URL)
	}
	if first.Title != "Severe storm warning issued" {
		t.Fatalf("unexpected title: %q", first.Title)
	}
	if first.Summary != "Authorities issued a red alert for the coastal region." {
		t.Fatalf("unexpected snippet: %q", first.Summary)
	}
	if !first.PublishedAt.Equal(stamp) {
		t.Fatalf("scraped items should be stamped now, got %v", first.PublishedAt)
	}
	if first.Confidence != intel.DateConfidenceLow {
		t.Fatalf("scraped items should carry low date confidence")
	}

	if items[1].URL != "https://news.example.com/direct" {
		t.Fatalf("direct links should pass through, got %q", items[1].URL)
	}
}

func TestDuckDuckGoFetchFailureReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer srv.Close()

	d := newTestDuckDuckGo(srv.URL)
	if items := d.Fetch(context.Background(), "Kiel", intel.WindowWeek); len(items) != 0 {
		t.Fatalf("expected empty result on server error, got %d items", len(items))
	}
}

func TestDecodeResultLink(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=x", "https://example.com/a"},
		{"https://example.com/plain", "https://example.com/plain"},
		{"//duckduckgo.com/l/?uddg=%zzbroken", "//duckduckgo.com/l/?uddg=%zzbroken"},
	}
	for _, tc := range cases {
		if got := decodeResultLink(tc.in); got != tc.want {
			t.Fatalf("decodeResultLink(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSnippetStripsAndTruncates(t *testing.T) {
	if got := Snippet("<p>hello <b>world</b></p>", 300); got != "hello world" {
		t.Fatalf("unexpected snippet: %q", got)
	}
	if got := Snippet("abcdefghij", 4); got != "abcd" {
		t.Fatalf("expected truncation, got %q", got)
	}
}
