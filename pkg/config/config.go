// Package config handles loading and saving mapdiff configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/mapdiff/config.yaml
//
// The same file carries the live settings (feature flags and tag overrides)
// that the watcher reloads while mapdiff is running.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/mapdiff/pkg/version"
)

const appName = "mapdiff"

// Feature names a toggleable part of the output.
type Feature string

const (
	FeatureAnalysisPanel   Feature = "analysis-panel"
	FeatureDiffBadges      Feature = "diff-badges"
	FeatureRankedWinRate   Feature = "ranked-partitions-winrate"
	FeatureRankedPickRate  Feature = "ranked-partitions-pickrate"
	FeatureProgressMarkers Feature = "progress-markers"
	FeatureSortControls    Feature = "sort-controls"
)

// Features lists every recognized feature flag in display order.
var Features = []Feature{
	FeatureAnalysisPanel,
	FeatureDiffBadges,
	FeatureRankedWinRate,
	FeatureRankedPickRate,
	FeatureProgressMarkers,
	FeatureSortControls,
}

// Label returns the settings-editor label for a feature.
func (f Feature) Label() string {
	switch f {
	case FeatureAnalysisPanel:
		return "Map Analysis"
	case FeatureDiffBadges:
		return "Diff Badges"
	case FeatureRankedWinRate:
		return "Top/Bottom Maps"
	case FeatureRankedPickRate:
		return "Pick Rate Maps"
	case FeatureProgressMarkers:
		return "Progress Markers"
	case FeatureSortControls:
		return "Sort Buttons"
	default:
		return string(f)
	}
}

// SourceConfig describes where snapshots come from and how to read them.
type SourceConfig struct {
	URL               string        `yaml:"url,omitempty"`                // Current location of the stats page
	PartitionParam    string        `yaml:"partition_param,omitempty"`    // Query parameter selecting the partition
	Baseline          string        `yaml:"baseline,omitempty"`           // Sentinel all-partitions ID
	TableSelector     string        `yaml:"table_selector,omitempty"`     // tag.class of the data element
	RowsAttr          string        `yaml:"rows_attr,omitempty"`          // Attribute carrying the JSON rows
	PartitionSelector string        `yaml:"partition_selector,omitempty"` // tag#id of the partition <select>
	Timeout           time.Duration `yaml:"timeout,omitempty"`            // Per-request timeout
	UserAgent         string        `yaml:"user_agent,omitempty"`
	RateLimit         float64       `yaml:"rate_limit,omitempty"` // Requests per second, 0 = unlimited
}

// CacheConfig controls snapshot memoization.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// BatchConfig controls partition fan-out.
type BatchConfig struct {
	GroupSize int `yaml:"group_size,omitempty"`
}

// DebounceConfig holds the trailing-edge windows per signal kind.
type DebounceConfig struct {
	Mutation     time.Duration `yaml:"mutation,omitempty"`
	Navigation   time.Duration `yaml:"navigation,omitempty"`
	Settings     time.Duration `yaml:"settings,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"` // Location poll period
}

// Config is the top-level configuration for mapdiff.
type Config struct {
	Source   SourceConfig        `yaml:"source,omitempty"`
	Cache    CacheConfig         `yaml:"cache,omitempty"`
	Batch    BatchConfig         `yaml:"batch,omitempty"`
	Debounce DebounceConfig      `yaml:"debounce,omitempty"`
	Features map[Feature]bool    `yaml:"features,omitempty"` // Unset flags are enabled
	Tags     map[string][]string `yaml:"tags,omitempty"`     // Subject ID -> tag override
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source: SourceConfig{
			PartitionParam:    "map",
			Baseline:          "all-maps",
			TableSelector:     "blz-data-table.herostats-data-table",
			RowsAttr:          "allrows",
			PartitionSelector: "select#filter-map-select",
			Timeout:           15 * time.Second,
			UserAgent:         version.UserAgent(),
		},
		Cache: CacheConfig{TTL: 5 * time.Minute},
		Batch: BatchConfig{GroupSize: 5},
		Debounce: DebounceConfig{
			Mutation:     500 * time.Millisecond,
			Navigation:   1000 * time.Millisecond,
			Settings:     500 * time.Millisecond,
			PollInterval: 500 * time.Millisecond,
		},
		Features: make(map[Feature]bool),
		Tags:     make(map[string][]string),
	}
}

// ConfigDir returns the XDG config directory for mapdiff.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return applyEnv(DefaultConfig()), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path.
// Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return applyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return applyEnv(cfg), nil
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Write-then-rename so a running watcher never reads a torn file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Batch.GroupSize < 1:
		return fmt.Errorf("batch.group_size must be >= 1, got %d", c.Batch.GroupSize)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	case c.Source.RateLimit < 0:
		return fmt.Errorf("source.rate_limit must be >= 0, got %v", c.Source.RateLimit)
	}
	for f := range c.Features {
		if !slices.Contains(Features, f) {
			return fmt.Errorf("unknown feature %q", f)
		}
	}
	return nil
}

// fillDefaults restores defaults for fields a partial file left empty.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Source.PartitionParam == "" {
		c.Source.PartitionParam = def.Source.PartitionParam
	}
	if c.Source.Baseline == "" {
		c.Source.Baseline = def.Source.Baseline
	}
	if c.Source.TableSelector == "" {
		c.Source.TableSelector = def.Source.TableSelector
	}
	if c.Source.RowsAttr == "" {
		c.Source.RowsAttr = def.Source.RowsAttr
	}
	if c.Source.PartitionSelector == "" {
		c.Source.PartitionSelector = def.Source.PartitionSelector
	}
	if c.Source.Timeout <= 0 {
		c.Source.Timeout = def.Source.Timeout
	}
	if c.Source.UserAgent == "" {
		c.Source.UserAgent = def.Source.UserAgent
	}
	if c.Debounce.Mutation <= 0 {
		c.Debounce.Mutation = def.Debounce.Mutation
	}
	if c.Debounce.Navigation <= 0 {
		c.Debounce.Navigation = def.Debounce.Navigation
	}
	if c.Debounce.Settings <= 0 {
		c.Debounce.Settings = def.Debounce.Settings
	}
	if c.Debounce.PollInterval <= 0 {
		c.Debounce.PollInterval = def.Debounce.PollInterval
	}
	if c.Features == nil {
		c.Features = make(map[Feature]bool)
	}
	if c.Tags == nil {
		c.Tags = make(map[string][]string)
	}
}

func applyEnv(cfg Config) Config {
	if u := strings.TrimSpace(os.Getenv("MAPDIFF_URL")); u != "" {
		cfg.Source.URL = u
	}
	return cfg
}

// Settings returns a read-only snapshot of the live settings.
func (c Config) Settings() Settings {
	s := Settings{
		features: make(map[Feature]bool, len(c.Features)),
		tags:     make(map[string][]string, len(c.Tags)),
	}
	for f, on := range c.Features {
		s.features[f] = on
	}
	for id, tags := range c.Tags {
		s.tags[id] = slices.Clone(tags)
	}
	return s
}

// Settings is the subset of configuration that may change while running.
// The zero value has every feature enabled and no tag overrides.
type Settings struct {
	features map[Feature]bool
	tags     map[string][]string
}

// Enabled reports whether f is on. Unset flags default to enabled.
func (s Settings) Enabled(f Feature) bool {
	on, ok := s.features[f]
	return !ok || on
}

// TagsFor returns the subject's override tags, else the built-in tags.
func (s Settings) TagsFor(subjectID string) []string {
	if tags, ok := s.tags[subjectID]; ok {
		return tags
	}
	return DefaultHeroTags[subjectID]
}

// WithFeature returns a copy of s with f set.
func (s Settings) WithFeature(f Feature, on bool) Settings {
	out := Settings{features: make(map[Feature]bool, len(s.features)+1), tags: s.tags}
	for k, v := range s.features {
		out.features[k] = v
	}
	out.features[f] = on
	return out
}
