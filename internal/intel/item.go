package intel

import (
	"strings"
	"time"
)

// Category tags an evidence item with the collection vector that produced it.
type Category string

const (
	CategoryGeneral  Category = "general"
	CategorySecurity Category = "security"
	CategoryWeather  Category = "weather"
	CategorySocial   Category = "social"
)

// DateConfidence indicates how trustworthy an item's publication timestamp is.
// Feed items carry an explicit pubDate; scraped search results are stamped
// "now" and marked low so strict windows can treat them accordingly.
type DateConfidence string

const (
	DateConfidenceHigh DateConfidence = "high"
	DateConfidenceLow  DateConfidence = "low"
)

// Item is one normalized unit of fetched information. URL is the
// deduplication key: two items with the same URL are the same evidence.
type Item struct {
	Source      string         `json:"source"`
	Publisher   string         `json:"publisher,omitempty"`
	Title       string         `json:"title"`
	Summary     string         `json:"summary,omitempty"`
	URL         string         `json:"url"`
	PublishedAt time.Time      `json:"published_at,omitempty"`
	Confidence  DateConfidence `json:"date_confidence,omitempty"`
	Category    Category       `json:"category"`
	Score       int            `json:"score"`
}

// HasDate reports whether the item carries a usable publication timestamp.
func (it Item) HasDate() bool { return !it.PublishedAt.IsZero() }

// Window is the recency filter mode for a scan.
type Window string

const (
	// Window72h is the strict acute mode: items older than 72 hours, or
	// without a parseable date, are dropped before scoring.
	Window72h Window = "72h"
	// WindowWeek is the default loose mode: age influences scoring only.
	WindowWeek Window = "week"
)

// Strict reports whether the window drops items outside its cutoff.
func (w Window) Strict() bool { return w == Window72h }

// Cutoff returns the oldest acceptable publication time under this window.
func (w Window) Cutoff(now time.Time) time.Time {
	if w == Window72h {
		return now.Add(-72 * time.Hour)
	}
	return now.Add(-7 * 24 * time.Hour)
}

// Label is the human-readable window name used in progress messages and
// report headers.
func (w Window) Label() string {
	if w == Window72h {
		return "ACUTE (72h)"
	}
	return "7 DAYS"
}

const mode72hPrefix = "MODE_72H:"

// legacy prefix still emitted by older clients; stripped but otherwise ignored
const regionScanPrefix = "Region Scan:"

// ParseTopic splits a raw submitted topic into the plain topic string and the
// recency window it encodes. A "MODE_72H:" prefix selects the strict window;
// everything else defaults to the weekly mode.
func ParseTopic(raw string) (string, Window) {
	topic := strings.TrimSpace(raw)
	window := WindowWeek
	if strings.HasPrefix(topic, mode72hPrefix) {
		window = Window72h
		topic = strings.TrimPrefix(topic, mode72hPrefix)
	}
	topic = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(topic), regionScanPrefix))
	return topic, window
}
