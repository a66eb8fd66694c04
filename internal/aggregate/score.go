package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/helpers"
	"github.com/fwerner/sitrep/internal/intel"
)

// Scorer assigns relevance scores and collapses duplicates. Weights come from
// configuration so deployments can rebalance signal importance without a
// rebuild.
type Scorer struct {
	cfg      config.ScoringConfig
	lexicon  []string
	priority []string
	now      func() time.Time
}

func NewScorer(cfg config.ScoringConfig, lexicon, priorityDomains []string) *Scorer {
	// Zero means unset and takes the default; a negative weight disables
	// that bonus outright.
	if cfg.KeywordBonus == 0 {
		cfg.KeywordBonus = 10
	}
	if cfg.DomainBonus == 0 {
		cfg.DomainBonus = 5
	}
	if cfg.RecencyBonus == 0 {
		cfg.RecencyBonus = 3
	}
	if cfg.KeywordBonus < 0 {
		cfg.KeywordBonus = 0
	}
	if cfg.DomainBonus < 0 {
		cfg.DomainBonus = 0
	}
	if cfg.RecencyBonus < 0 {
		cfg.RecencyBonus = 0
	}
	if cfg.FreshWithin == 0 {
		cfg.FreshWithin = 4 * time.Hour
	}
	if cfg.TitleSimilarity == 0 {
		cfg.TitleSimilarity = 0.85
	}
	lower := make([]string, 0, len(lexicon))
	for _, kw := range lexicon {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lower = append(lower, kw)
		}
	}
	return &Scorer{cfg: cfg, lexicon: lower, priority: priorityDomains, now: time.Now}
}

// Score computes the relevance score of a single item: a keyword bonus when
// title or summary hits the crisis lexicon, a trust bonus for priority
// publishers and a recency bonus for very fresh reporting.
func (s *Scorer) Score(item intel.Item) int {
	score := 0
	text := strings.ToLower(item.Title + " " + item.Summary)
	for _, kw := range s.lexicon {
		if strings.Contains(text, kw) {
			score += s.cfg.KeywordBonus
			break
		}
	}
	if helpers.HostMatchesAny(item.URL, s.priority) {
		score += s.cfg.DomainBonus
	}
	if item.HasDate() && s.now().Sub(item.PublishedAt) < s.cfg.FreshWithin {
		score += s.cfg.RecencyBonus
	}
	return score
}

// Rank scores every item, orders them best first and removes duplicates.
// The sort is stable so items with equal scores keep their arrival order,
// and dedup keeps the first (highest ranked) occurrence.
func (s *Scorer) Rank(items []intel.Item) []intel.Item {
	scored := make([]intel.Item, len(items))
	copy(scored, items)
	for i := range scored {
		scored[i].Score = s.Score(scored[i])
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	return s.dedupe(scored)
}

// dedupe drops repeat coverage: exact URL duplicates (after canonicalisation)
// and near-identical headlines from different outlets.
func (s *Scorer) dedupe(items []intel.Item) []intel.Item {
	seen := make(map[string]struct{}, len(items))
	var kept []intel.Item
	var keptTitles [][]string
	for _, item := range items {
		key, err := helpers.CanonicalURL(item.URL)
		if err != nil {
			key = item.URL
		}
		if _, dup := seen[key]; dup {
			continue
		}

		tokens := titleTokens(item.Title)
		similar := false
		for _, prev := range keptTitles {
			if jaccard(tokens, prev) >= s.cfg.TitleSimilarity {
				similar = true
				break
			}
		}
		if similar {
			continue
		}

		seen[key] = struct{}{}
		kept = append(kept, item)
		keptTitles = append(keptTitles, tokens)
	}
	return kept
}

func titleTokens(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]")
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// jaccard measures token-set overlap between two titles.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tok := range a {
		set[tok] = struct{}{}
	}
	inter := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, tok := range b {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set[tok]; ok {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}
