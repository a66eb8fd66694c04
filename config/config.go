package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sitrep service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Resolver  ResolverConfig  `mapstructure:"resolver"`
	Report    ReportConfig    `mapstructure:"report"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen   string `mapstructure:"listen"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// RedisConfig locates the job store and work queue backend.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("redis.host and redis.port are required")
	}
	return nil
}

// Addr returns the host:port address for the Redis client.
func (r RedisConfig) Addr() string { return fmt.Sprintf("%s:%s", r.Host, r.Port) }

// LLMConfig selects and configures the summarizer provider.
type LLMConfig struct {
	Provider  string          `mapstructure:"provider"` // "openai" or "anthropic"
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// OpenAIConfig configures the OpenAI chat-completions provider.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// AnthropicConfig configures the Anthropic messages provider.
type AnthropicConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	switch l.Provider {
	case "openai":
		if l.OpenAI.APIKey == "" {
			return fmt.Errorf("llm.openai.api_key required when llm.provider is openai")
		}
	case "anthropic":
		if l.Anthropic.APIKey == "" {
			return fmt.Errorf("llm.anthropic.api_key required when llm.provider is anthropic")
		}
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", l.Provider)
	}
	return nil
}

// SourcesConfig describes the collection vectors the aggregator fans out to.
type SourcesConfig struct {
	GoogleNews GoogleNewsConfig `mapstructure:"google_news"`
	DuckDuckGo DuckDuckGoConfig `mapstructure:"duckduckgo"`
	// Blacklist lists low-value domains filtered before items leave an adapter.
	Blacklist []string `mapstructure:"blacklist"`
	// PriorityDomains earn the domain trust bonus during scoring.
	PriorityDomains []string `mapstructure:"priority_domains"`
	// Lexicon is the crisis/security keyword list driving the keyword bonus.
	Lexicon []string `mapstructure:"lexicon"`
}

// GoogleNewsConfig configures the feed-style adapters.
type GoogleNewsConfig struct {
	Locales  []Locale       `mapstructure:"locales"`
	Vectors  []SearchVector `mapstructure:"vectors"`
	Timeout  time.Duration  `mapstructure:"timeout"`
	MaxItems int            `mapstructure:"max_items"`
}

// Locale is one hl/gl/ceid combination for Google News feeds.
type Locale struct {
	HL   string `mapstructure:"hl"`
	GL   string `mapstructure:"gl"`
	CEID string `mapstructure:"ceid"`
}

// SearchVector is one category-boosted query: the topic is combined with the
// keyword group via boolean OR to amplify a particular signal.
type SearchVector struct {
	Name     string   `mapstructure:"name"`
	Category string   `mapstructure:"category"`
	Keywords []string `mapstructure:"keywords"`
}

// DuckDuckGoConfig configures the HTML-scraped search adapter.
type DuckDuckGoConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	Region     string        `mapstructure:"region"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxResults int           `mapstructure:"max_results"`
}

// ScoringConfig carries the tunable relevance weights. The exact values are
// configuration, not contract; the defaults preserve the ordering property
// keyword > domain > recency. A zero weight means unset and takes the
// default; set a weight negative to disable that bonus.
type ScoringConfig struct {
	KeywordBonus    int           `mapstructure:"keyword_bonus"`
	DomainBonus     int           `mapstructure:"domain_bonus"`
	RecencyBonus    int           `mapstructure:"recency_bonus"`
	FreshWithin     time.Duration `mapstructure:"fresh_within"`
	TitleSimilarity float64       `mapstructure:"title_similarity"`
}

// ResolverConfig bounds the redirect-chasing link resolver.
type ResolverConfig struct {
	// AggregatorHosts are the redirect-indirection domains worth resolving;
	// anything else passes through untouched.
	AggregatorHosts []string      `mapstructure:"aggregator_hosts"`
	MaxHops         int           `mapstructure:"max_hops"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Concurrency     int           `mapstructure:"concurrency"`
	// Enrich fetches readable excerpts for resolved items with thin snippets.
	Enrich        bool          `mapstructure:"enrich"`
	EnrichTimeout time.Duration `mapstructure:"enrich_timeout"`
}

// ReportConfig bounds the evidence set handed to synthesis.
type ReportConfig struct {
	MaxItems     int `mapstructure:"max_items"`
	SnippetLimit int `mapstructure:"snippet_limit"`
}

// SchedulerConfig lists recurring region watches.
type SchedulerConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Watches []Watch `mapstructure:"watches"`
}

// Watch is one recurring scan: a topic re-submitted on a cron schedule.
type Watch struct {
	Topic  string `mapstructure:"topic"`
	Window string `mapstructure:"window"`
	Cron   string `mapstructure:"cron"`
}

// TelemetryConfig controls metrics exposure and cost tracking.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig loads config from file, with SITREP_* environment overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("SITREP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// config file is optional; defaults plus env cover the common case
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Redis.Validate(); err != nil {
		panic(err)
	}
	return &config
}

func setDefaults() {
	viper.SetDefault("general.listen", ":10030")
	viper.SetDefault("general.log_level", "info")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.timeout", "5s")

	viper.SetDefault("llm.provider", "anthropic")
	viper.SetDefault("llm.openai.model", "gpt-4o-mini")
	viper.SetDefault("llm.openai.max_tokens", 4096)
	viper.SetDefault("llm.openai.temperature", 0.2)
	viper.SetDefault("llm.openai.timeout", "90s")
	viper.SetDefault("llm.anthropic.model", "claude-3-5-sonnet-20240620")
	viper.SetDefault("llm.anthropic.max_tokens", 4096)
	viper.SetDefault("llm.anthropic.timeout", "90s")

	viper.SetDefault("sources.google_news.timeout", "6s")
	viper.SetDefault("sources.google_news.max_items", 20)
	viper.SetDefault("sources.google_news.locales", []map[string]interface{}{
		{"hl": "en-US", "gl": "US", "ceid": "US:en"},
		{"hl": "de", "gl": "CH", "ceid": "CH:de"},
	})
	viper.SetDefault("sources.google_news.vectors", []map[string]interface{}{
		{"name": "main", "category": "general", "keywords": []string{}},
		{"name": "defense", "category": "security", "keywords": []string{
			"military", "navy", "police", "spy", "vessel", "incident", "cyber",
		}},
		{"name": "infrastructure", "category": "weather", "keywords": []string{
			"storm", "severe weather", "warning", "power outage", "flood", "traffic",
		}},
		{"name": "social", "category": "social", "keywords": []string{
			"site:reddit.com", "site:x.com", "breaking", "video",
		}},
	})
	viper.SetDefault("sources.duckduckgo.endpoint", "https://html.duckduckgo.com/html/")
	viper.SetDefault("sources.duckduckgo.region", "us-en")
	viper.SetDefault("sources.duckduckgo.timeout", "6s")
	viper.SetDefault("sources.duckduckgo.max_results", 9)
	viper.SetDefault("sources.blacklist", []string{
		"tripadvisor", "booking", "pinterest", "ebay", "temu", "tiktok.com/video",
	})
	viper.SetDefault("sources.priority_domains", []string{
		"reuters", "apnews", "bbc", "cnn", "aljazeera",
		"ukdefencejournal", "navalnews", "janes",
		"meteoalarm", "weather",
		"police", "mil", "gov",
	})
	viper.SetDefault("sources.lexicon", []string{
		"attack", "military", "ship", "marine", "navy", "police",
		"alert", "warning", "storm", "cyber", "outage", "evacuation",
	})

	viper.SetDefault("scoring.keyword_bonus", 10)
	viper.SetDefault("scoring.domain_bonus", 5)
	viper.SetDefault("scoring.recency_bonus", 3)
	viper.SetDefault("scoring.fresh_within", "4h")
	viper.SetDefault("scoring.title_similarity", 0.85)

	viper.SetDefault("resolver.aggregator_hosts", []string{
		"news.google.com", "google.com", "r.search.yahoo.com", "duckduckgo.com",
	})
	viper.SetDefault("resolver.max_hops", 3)
	viper.SetDefault("resolver.timeout", "3s")
	viper.SetDefault("resolver.concurrency", 8)
	viper.SetDefault("resolver.enrich", false)
	viper.SetDefault("resolver.enrich_timeout", "8s")

	viper.SetDefault("report.max_items", 50)
	viper.SetDefault("report.snippet_limit", 300)

	viper.SetDefault("scheduler.enabled", false)

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)
}
