package xcmquery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "xcm-query").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "xcm-query").Logger()
}

const healthPath = "/health"

// XcmQueryClient talks to the XCM routing service. Endpoint 0 is the primary; the
// others are backups used after the active endpoint keeps failing lookups.
// Only idempotent lookups are retried. A router execution is sent once to the
// active endpoint.
type XcmQueryClient struct {
	httpClient   *http.Client
	streamClient *http.Client
	config       FailoverConfig

	endpoints []string
	mu        sync.RWMutex
	active    int

	stopRestore context.CancelFunc
	restoreDone chan struct{}
	closeOnce   sync.Once
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed lookup on the active endpoint
	MaxRetries int
	// RetryDelay is the delay before the first retry, doubled for each further retry
	RetryDelay time.Duration
	// HealthCheckInterval is how often a failed-over client probes the primary
	HealthCheckInterval time.Duration
	// Timeout bounds lookups and health probes; router executions are bounded by their context only
	Timeout time.Duration
}

// DefaultFailoverConfig returns the settings used by the portal server
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          2,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

// NewXcmQueryClient creates a client with a single endpoint
func NewXcmQueryClient(apiURL string) (*XcmQueryClient, error) {
	return NewXcmQueryClientWithFailover(apiURL, nil, DefaultFailoverConfig())
}

// NewXcmQueryClientWithFailover creates a client that fails over to backupURLs.
// An invalid primary URL is an error; invalid backups are logged and skipped.
func NewXcmQueryClientWithFailover(primaryURL string, backupURLs []string, config FailoverConfig) (*XcmQueryClient, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid primary router URL %q: %w", primaryURL, err)
	}

	backups := lo.Filter(backupURLs, func(u string, _ int) bool {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			return false
		}
		return true
	})

	c := &XcmQueryClient{
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		config:       config,
		endpoints:    append([]string{trimBase(primaryURL)}, lo.Map(backups, func(u string, _ int) string { return trimBase(u) })...),
	}
	if len(c.endpoints) > 1 {
		c.startRestoreLoop()
	}

	log.Debug().
		Str("primary", c.endpoints[0]).
		Int("backups", len(c.endpoints)-1).
		Msg("XCM router client created")
	return c, nil
}

func trimBase(u string) string {
	return strings.TrimRight(u, "/")
}

// startRestoreLoop moves the client back to the primary once its health probe passes.
func (c *XcmQueryClient) startRestoreLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stopRestore = cancel
	c.restoreDone = make(chan struct{})

	go func() {
		defer close(c.restoreDone)
		ticker := time.NewTicker(c.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.activeIndex() != 0 && c.healthy(ctx, c.endpoints[0]) {
					c.setActive(0)
					log.Info().Str("url", c.endpoints[0]).Msg("Restored primary endpoint")
				}
			}
		}
	}()
}

// Close stops the restore loop. It is safe to call more than once.
func (c *XcmQueryClient) Close() {
	c.closeOnce.Do(func() {
		if c.stopRestore != nil {
			c.stopRestore()
			<-c.restoreDone
		}
	})
}

// healthy probes GET {endpoint}/health.
func (c *XcmQueryClient) healthy(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health probe failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *XcmQueryClient) activeIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *XcmQueryClient) setActive(i int) {
	c.mu.Lock()
	c.active = i
	c.mu.Unlock()
}

// getCurrentURL returns the base URL of the active endpoint
func (c *XcmQueryClient) getCurrentURL() string {
	return c.endpoints[c.activeIndex()]
}

// failover activates the next endpoint, in ring order, whose health probe passes.
func (c *XcmQueryClient) failover(ctx context.Context) bool {
	from := c.activeIndex()
	for step := 1; step < len(c.endpoints); step++ {
		next := (from + step) % len(c.endpoints)
		if !c.healthy(ctx, c.endpoints[next]) {
			continue
		}
		c.setActive(next)
		metrics.RecordFailover()
		log.Warn().
			Str("from", c.endpoints[from]).
			Str("to", c.endpoints[next]).
			Msg("Router endpoint failover")
		return true
	}
	log.Warn().Str("url", c.endpoints[from]).Msg("No healthy backup endpoint, staying on current")
	return false
}

// getOnce performs a single GET and returns the body of a 200 response
func (c *XcmQueryClient) getOnce(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	return io.ReadAll(resp.Body)
}

// doRequestWithFailover GETs path from the active endpoint, retrying with a doubling
// delay, then once more from the next healthy endpoint.
func (c *XcmQueryClient) doRequestWithFailover(ctx context.Context, endpoint, path string) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2
		}

		body, err := c.getOnce(ctx, c.getCurrentURL()+path)
		if err == nil {
			metrics.RecordRouterRequest(endpoint, "ok")
			return body, nil
		}
		metrics.RecordRouterRequest(endpoint, "error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Debug().Err(err).Str("endpoint", endpoint).Int("attempt", attempt+1).Msg("Lookup failed")
	}

	if len(c.endpoints) > 1 && c.failover(ctx) {
		body, err := c.getOnce(ctx, c.getCurrentURL()+path)
		if err != nil {
			metrics.RecordRouterRequest(endpoint, "error")
			return nil, fmt.Errorf("%s failed after failover: %w (before failover: %w)", endpoint, err, lastErr)
		}
		metrics.RecordRouterRequest(endpoint, "ok")
		return body, nil
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", endpoint, c.config.MaxRetries+1, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
