package source

import (
	"log"

	"github.com/fwerner/sitrep/config"
	"github.com/fwerner/sitrep/internal/intel"
)

// Build assembles the adapter set from configuration: one feed adapter per
// locale and search vector combination, plus the search scraper per category
// of interest.
func Build(cfg config.SourcesConfig, snippetLimit int, logger *log.Logger) []Adapter {
	blacklist := Blacklist(cfg.Blacklist)
	var adapters []Adapter

	for _, locale := range cfg.GoogleNews.Locales {
		for _, vector := range cfg.GoogleNews.Vectors {
			adapters = append(adapters, NewGoogleNews(locale, vector, cfg.GoogleNews, blacklist, snippetLimit, logger))
		}
	}

	if cfg.DuckDuckGo.Endpoint != "" {
		adapters = append(adapters,
			NewDuckDuckGo(cfg.DuckDuckGo, intel.CategorySecurity, []string{"unrest", "protest", "incident"}, blacklist, snippetLimit, logger),
		)
	}
	return adapters
}
