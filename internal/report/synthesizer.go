package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/fwerner/sitrep/internal/intel"
	"github.com/fwerner/sitrep/provider"
)

// SynthesisError wraps a failure of the report generation stage so callers
// can distinguish it from collection problems.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("report synthesis: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

const systemPrompt = `You are a military intelligence analyst producing a SITREP (situation report) for a regional security audience. You will receive a topic, a reporting window and a JSON array of collected open-source items.

Rules:
- Base every statement strictly on the supplied items. Do not invent events, numbers or sources.
- When sources disagree, say so explicitly and name the disagreement.
- Cite items by their "ref" number in square brackets, e.g. [3].
- Write concise analytical prose, not bullet-spam. British or American spelling, but consistent.

Structure the report with exactly these markdown sections:

# SITREP: <topic>
## BLUF
## Key Judgments
## Military & Kinetic Activity
## Infrastructure & Environmental Hazards
## Social & Information Environment
## Prognosis (24-72h Outlook)
## Intelligence Gaps

If a section has no supporting evidence, state that explicitly rather than padding it.`

// evidenceItem is the shape of one item as presented to the model. The ref
// number lets the report cite items without repeating URLs inline.
type evidenceItem struct {
	Ref         int    `json:"ref"`
	Title       string `json:"title"`
	Summary     string `json:"summary,omitempty"`
	Publisher   string `json:"publisher,omitempty"`
	Source      string `json:"source"`
	Category    string `json:"category"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
	Score       int    `json:"score"`
}

// Synthesizer turns a ranked evidence set into a structured SITREP via the
// configured LLM provider. One attempt per job; a failed call is a failed job.
type Synthesizer struct {
	llm    provider.Provider
	logger *log.Logger
}

func NewSynthesizer(llm provider.Provider, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[REPORT] ", log.LstdFlags)
	}
	return &Synthesizer{llm: llm, logger: logger}
}

// Synthesize generates the SITREP for topic from items. The caller guarantees
// items is non-empty; an empty evidence set is handled upstream as a failed
// job, never as an empty prompt.
func (s *Synthesizer) Synthesize(ctx context.Context, topic string, window intel.Window, items []intel.Item) (string, error) {
	evidence := make([]evidenceItem, len(items))
	for i, item := range items {
		ev := evidenceItem{
			Ref:       i + 1,
			Title:     item.Title,
			Summary:   item.Summary,
			Publisher: item.Publisher,
			Source:    item.Source,
			Category:  string(item.Category),
			URL:       item.URL,
			Score:     item.Score,
		}
		if item.HasDate() {
			ev.PublishedAt = item.PublishedAt.UTC().Format(time.RFC3339)
		}
		evidence[i] = ev
	}

	payload, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return "", &SynthesisError{Err: fmt.Errorf("marshal evidence: %w", err)}
	}

	user := fmt.Sprintf("Topic: %s\nReporting window: %s\nItem count: %d\n\nCollected items:\n%s",
		topic, window.Label(), len(items), payload)

	started := time.Now()
	text, err := s.llm.Complete(ctx, systemPrompt, user)
	if err != nil {
		return "", &SynthesisError{Err: err}
	}
	s.logger.Printf("synthesized report for %q from %d items in %s", topic, len(items), time.Since(started).Round(time.Millisecond))
	return text, nil
}
