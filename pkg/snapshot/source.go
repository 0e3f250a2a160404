// Package snapshot retrieves per-partition stats snapshots from the host
// site and parses them into tables. It performs no caching and no retries.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vanderheijden86/mapdiff/pkg/config"
	"github.com/vanderheijden86/mapdiff/pkg/debug"
	"github.com/vanderheijden86/mapdiff/pkg/metrics"
	"github.com/vanderheijden86/mapdiff/pkg/model"
	"github.com/vanderheijden86/mapdiff/pkg/version"
)

// HTTPClient allows injecting a custom transport, e.g. in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Source.
type Config struct {
	Timeout   time.Duration // Per-request timeout. Default: 15s.
	MaxBytes  int64         // Max response body size. Default: 16MB.
	UserAgent string
	RateLimit float64 // Requests per second; 0 disables limiting.
	Parser    Parser
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 16 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = version.UserAgent()
	}
	if c.Parser.RowsAttr == "" {
		c.Parser.RowsAttr = "allrows"
	}
}

// ConfigFrom builds a source Config from the application config.
func ConfigFrom(sc config.SourceConfig) Config {
	return Config{
		Timeout:   sc.Timeout,
		UserAgent: sc.UserAgent,
		RateLimit: sc.RateLimit,
		Parser: Parser{
			Table:    ParseSelector(sc.TableSelector),
			RowsAttr: sc.RowsAttr,
			Selector: ParseSelector(sc.PartitionSelector),
			Baseline: sc.Baseline,
		},
	}
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c HTTPClient) Option {
	return func(s *Source) {
		s.client = c
	}
}

// Source fetches and parses snapshot documents.
type Source struct {
	client  HTTPClient
	config  Config
	limiter *rate.Limiter
}

// New creates a Source.
func New(cfg Config, opts ...Option) *Source {
	cfg.defaults()
	s := &Source{
		client: &http.Client{},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retrieves the snapshot for partition under the filter context fc.
// The returned error is a *FetchError or *ParseError; the table is nil
// whenever the error is non-nil.
func (s *Source) Fetch(ctx context.Context, fc model.FilterContext, partition string) (model.SnapshotTable, error) {
	url := fc.URLFor(partition)
	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	table, err := s.config.Parser.ParseTable(bytes.NewReader(body))
	if err != nil {
		return nil, withURL(err, url)
	}
	debug.Log("snapshot %s: %d subjects", partition, len(table))
	return table, nil
}

// FetchPage retrieves the document at the current location and parses both
// its table and its partition selector.
func (s *Source) FetchPage(ctx context.Context, fc model.FilterContext) (*Page, error) {
	url := fc.String()
	body, err := s.get(ctx, url)
	if err != nil {
		return nil, err
	}
	page, err := s.config.Parser.ParsePage(bytes.NewReader(body))
	if err != nil {
		return nil, withURL(err, url)
	}
	if page.Selected == "" {
		page.Selected = fc.Partition()
	}
	return page, nil
}

func (s *Source) get(ctx context.Context, url string) ([]byte, error) {
	defer metrics.Timer(metrics.SnapshotFetch)()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: url, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	debug.LogTiming("GET "+url, time.Since(start))
	return body, nil
}

func withURL(err error, url string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.URL == "" {
		pe.URL = url
	}
	return err
}
