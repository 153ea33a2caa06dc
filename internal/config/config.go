// Package config loads and validates crawler run configuration via Viper.
// It supports the current item-based format as well as the legacy
// single_page/sitemap/scrap layout, expands sitemap items into individual
// fetch items, and deduplicates everything by normalized URL.
package config

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-crawler/internal/persist"
	"github.com/JakeFAU/docs-crawler/internal/urlutil"
)

// Persistence strategy names accepted by the factory in internal/persist.
const (
	StrategyFolderPerDomain = persist.StrategyFolderPerDomain
	StrategyFilePerDomain   = persist.StrategyFilePerDomain
)

// Item defaults applied when a field is absent from the config file.
const (
	DefaultMaxDepth = 2
	DefaultMaxPages = 100
)

// Config is the fully parsed and validated run configuration.
type Config struct {
	PersistenceStrategy string
	Persistence         PersistenceOptions
	Defaults            Defaults
	Items               []Item
	YouTube             []string
	Observe             ObserveConfig
}

// PersistenceOptions tunes the buffered file_per_domain strategy.
type PersistenceOptions struct {
	BufferSize  int `mapstructure:"bufferSize"`
	FlushSizeMB int `mapstructure:"flushSizeMB"`
}

// Defaults holds run-wide settings applied to every item.
type Defaults struct {
	Threads               int               `mapstructure:"threads"`
	UserAgent             string            `mapstructure:"userAgent"`
	RequestTimeoutSeconds int               `mapstructure:"requestTimeoutSeconds"`
	RateLimiter           RateLimiterConfig `mapstructure:"rateLimiter"`
	OutputFormat          string            `mapstructure:"outputFormat"`
}

// RateLimiterConfig is consumed by the page fetcher only; the orchestrator
// never reimplements retry or delay behavior.
type RateLimiterConfig struct {
	BaseDelayMs    int   `mapstructure:"baseDelayMs"`
	MaxDelayMs     int   `mapstructure:"maxDelayMs"`
	MaxRetries     int   `mapstructure:"maxRetries"`
	RateLimitCodes []int `mapstructure:"rateLimitCodes"`
}

// Item is one crawl task: a single fetch, a sitemap to expand, or a
// recursive scrap root.
type Item struct {
	URL               string
	IsSitemap         bool
	ShouldScrap       bool
	Selectors         []string
	IncludeExternal   bool
	IncludeSubdomains bool
	MaxDepth          int
	MaxPages          int
	PathsToSkipRegex  string
	OutputFormat      string

	// SkipPattern is compiled from PathsToSkipRegex during validation so a
	// malformed pattern fails the run before any fetching starts.
	SkipPattern *regexp.Regexp
}

// ObserveConfig controls the optional metrics/progress HTTP listener.
type ObserveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// itemSpec mirrors the on-disk item shape. Pointer fields distinguish
// "absent" from zero so per-item defaults can be applied.
type itemSpec struct {
	URL               string   `mapstructure:"url"`
	IsSitemap         bool     `mapstructure:"isSitemap"`
	ShouldScrap       bool     `mapstructure:"shouldScrap"`
	Selectors         []string `mapstructure:"selectors"`
	IncludeExternal   bool     `mapstructure:"includeExternal"`
	IncludeSubdomains *bool    `mapstructure:"includeSubdomains"`
	MaxDepth          *int     `mapstructure:"maxDepth"`
	MaxPages          *int     `mapstructure:"maxPages"`
	PathsToSkipRegex  string   `mapstructure:"pathsToSkipRegex"`
	OutputFormat      string   `mapstructure:"outputFormat"`
}

type fileSpec struct {
	PersistenceStrategy string             `mapstructure:"persistenceStrategy"`
	Persistence         PersistenceOptions `mapstructure:"persistence"`
	Defaults            Defaults           `mapstructure:"defaults"`
	Items               []itemSpec         `mapstructure:"items"`
	YouTube             []string           `mapstructure:"youtube"`
	Observe             ObserveConfig      `mapstructure:"observe"`
}

// Load reads, migrates, and validates the configuration file at path.
// Sitemap items are left unexpanded; callers run ExpandSitemaps once a
// sitemap client is available.
func Load(path string, logger *zap.Logger) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DOCSCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if isLegacyFormat(v) {
		logger.Info("Migrating legacy configuration format", zap.String("path", path))
		migrateLegacy(v)
	}

	var spec fileSpec
	if err := v.Unmarshal(&spec); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg := Config{
		PersistenceStrategy: spec.PersistenceStrategy,
		Persistence:         spec.Persistence,
		Defaults:            spec.Defaults,
		YouTube:             spec.YouTube,
		Observe:             spec.Observe,
	}
	for i, raw := range spec.Items {
		item, err := resolveItem(raw)
		if err != nil {
			return Config{}, fmt.Errorf("item %d (%s): %w", i, raw.URL, err)
		}
		cfg.Items = append(cfg.Items, item)
	}

	for i, u := range cfg.YouTube {
		cfg.YouTube[i] = urlutil.Normalize(u, true)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("persistenceStrategy", StrategyFolderPerDomain)
	v.SetDefault("persistence.bufferSize", 100)
	v.SetDefault("persistence.flushSizeMB", 10)
	v.SetDefault("defaults.threads", 20)
	v.SetDefault("defaults.userAgent", "docs-crawler/2.0 (+https://github.com/JakeFAU/docs-crawler)")
	v.SetDefault("defaults.requestTimeoutSeconds", 30)
	v.SetDefault("defaults.rateLimiter.baseDelayMs", 2000)
	v.SetDefault("defaults.rateLimiter.maxDelayMs", 30000)
	v.SetDefault("defaults.rateLimiter.maxRetries", 5)
	v.SetDefault("defaults.rateLimiter.rateLimitCodes", []int{429, 503})
	v.SetDefault("defaults.outputFormat", "markdown")
	v.SetDefault("observe.enabled", false)
	v.SetDefault("observe.addr", ":9090")
}

func resolveItem(raw itemSpec) (Item, error) {
	item := Item{
		URL:               raw.URL,
		IsSitemap:         raw.IsSitemap,
		ShouldScrap:       raw.ShouldScrap,
		Selectors:         raw.Selectors,
		IncludeExternal:   raw.IncludeExternal,
		IncludeSubdomains: true,
		MaxDepth:          DefaultMaxDepth,
		MaxPages:          DefaultMaxPages,
		PathsToSkipRegex:  raw.PathsToSkipRegex,
		OutputFormat:      raw.OutputFormat,
	}
	if raw.IncludeSubdomains != nil {
		item.IncludeSubdomains = *raw.IncludeSubdomains
	}
	if raw.MaxDepth != nil {
		item.MaxDepth = *raw.MaxDepth
	}
	if raw.MaxPages != nil {
		item.MaxPages = *raw.MaxPages
	}
	if item.PathsToSkipRegex != "" {
		re, err := regexp.Compile(item.PathsToSkipRegex)
		if err != nil {
			return Item{}, fmt.Errorf("compile pathsToSkipRegex: %w", err)
		}
		item.SkipPattern = re
	}
	return item, nil
}

// isLegacyFormat detects the pre-items config layout.
func isLegacyFormat(v *viper.Viper) bool {
	if v.IsSet("items") {
		return false
	}
	return v.IsSet("single_page") || v.IsSet("sitemap") || v.IsSet("scrap")
}

// migrateLegacy rewrites single_page/sitemap/scrap entries as items in
// place, preserving the scrap-specific knobs the old format supported.
func migrateLegacy(v *viper.Viper) {
	var items []map[string]any

	for _, u := range v.GetStringSlice("single_page") {
		items = append(items, map[string]any{"url": u})
	}
	for _, u := range v.GetStringSlice("sitemap") {
		items = append(items, map[string]any{"url": u, "isSitemap": true})
	}
	var scraps []map[string]any
	if err := v.UnmarshalKey("scrap", &scraps); err == nil {
		for _, s := range scraps {
			entry := map[string]any{"url": s["url"], "shouldScrap": true}
			if d, ok := s["depth"]; ok {
				entry["maxDepth"] = d
			}
			if ext, ok := s["allow_external_links"]; ok {
				entry["includeExternal"] = ext
			}
			if re, ok := s["paths_to_skip_regex"]; ok {
				entry["pathsToSkipRegex"] = re
			}
			items = append(items, entry)
		}
	}
	v.Set("items", items)
}

// Validate enforces the invariants the rest of the system assumes.
func (c Config) Validate() error {
	switch c.PersistenceStrategy {
	case StrategyFolderPerDomain, StrategyFilePerDomain:
	default:
		return fmt.Errorf("unknown persistence strategy: %q", c.PersistenceStrategy)
	}
	if c.Defaults.Threads <= 0 {
		return fmt.Errorf("defaults.threads must be > 0")
	}
	if c.Defaults.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("defaults.requestTimeoutSeconds must be > 0")
	}
	if c.Persistence.BufferSize <= 0 {
		return fmt.Errorf("persistence.bufferSize must be > 0")
	}
	if c.Persistence.FlushSizeMB <= 0 {
		return fmt.Errorf("persistence.flushSizeMB must be > 0")
	}
	for i, item := range c.Items {
		if err := validateItem(item); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.URL, err)
		}
	}
	for _, u := range c.YouTube {
		if !isAbsoluteURL(u) {
			return fmt.Errorf("youtube url %q is not absolute", u)
		}
	}
	if c.Observe.Enabled && c.Observe.Addr == "" {
		return fmt.Errorf("observe.addr must be set when observe is enabled")
	}
	return nil
}

func validateItem(item Item) error {
	if item.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !isAbsoluteURL(item.URL) {
		return fmt.Errorf("url must be absolute")
	}
	if item.MaxDepth < 0 {
		return fmt.Errorf("maxDepth must be >= 0")
	}
	if item.MaxPages <= 0 {
		return fmt.Errorf("maxPages must be > 0")
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.IsAbs() && u.Host != ""
}

// SitemapLister returns the page URLs listed by the sitemap at the given
// URL; internal/sitemap provides the production implementation.
type SitemapLister interface {
	List(ctx context.Context, sitemapURL string) ([]string, error)
}

// ExpandSitemaps replaces every isSitemap item with one single-fetch item
// per listed URL, carrying over the parent item's settings, then removes
// duplicates by normalized URL while preserving order. A sitemap that fails
// to load is logged and dropped; the rest of the run proceeds.
func ExpandSitemaps(ctx context.Context, cfg *Config, lister SitemapLister, logger *zap.Logger) {
	expanded := make([]Item, 0, len(cfg.Items))
	for _, item := range cfg.Items {
		if !item.IsSitemap || item.ShouldScrap {
			expanded = append(expanded, item)
			continue
		}
		urls, err := lister.List(ctx, item.URL)
		if err != nil {
			logger.Error("Failed to expand sitemap", zap.String("url", item.URL), zap.Error(err))
			continue
		}
		logger.Info("Expanded sitemap", zap.String("url", item.URL), zap.Int("urls", len(urls)))
		for _, u := range urls {
			child := item
			child.URL = urlutil.Normalize(u, true)
			child.IsSitemap = false
			expanded = append(expanded, child)
		}
	}
	cfg.Items = dedupeItems(expanded)
}

func dedupeItems(items []Item) []Item {
	seen := make(map[string]struct{}, len(items))
	out := make([]Item, 0, len(items))
	for _, item := range items {
		key := urlutil.Normalize(item.URL, true)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}
