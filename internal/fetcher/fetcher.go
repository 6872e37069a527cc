// Package fetcher implements polite HTTP retrieval: robots.txt compliance,
// per-domain token-bucket rate limiting and timeout-bounded retries with
// exponential backoff.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aleister1102/oerscout/internal/common"
	"github.com/aleister1102/oerscout/internal/common/cache"
	"github.com/aleister1102/oerscout/internal/common/contextutils"
	"github.com/aleister1102/oerscout/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

const maxRedirects = 10

// Fetcher is the shared polite HTTP client. It is safe for concurrent use and is
// meant to be created once at startup and passed to every component.
type Fetcher struct {
	client        *http.Client
	base          http.RoundTripper
	limiter       *RateLimiter
	robots        *cache.TTLCache[string, RobotsResult]
	userAgent     string
	botToken      string
	timeout       time.Duration
	retries       int
	retryDelay    time.Duration
	maxBodyBytes  int64
	respectRobots bool
	sleep         contextutils.SleepFunc
	logger        zerolog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the underlying client. Its transport is also used for
// requests coming through Transport().
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
		if client.Transport != nil {
			f.base = client.Transport
		} else {
			f.base = http.DefaultTransport
		}
	}
}

// WithClock sets the time source used by the rate limiter and robots cache.
func WithClock(now Clock) Option {
	return func(f *Fetcher) {
		f.limiter.WithClock(now)
		f.robots.WithClock(now)
	}
}

// WithSleeper sets the wait function used for rate-limit waits and retry backoff.
func WithSleeper(sleep contextutils.SleepFunc) Option {
	return func(f *Fetcher) {
		f.sleep = sleep
		f.limiter.WithSleeper(sleep)
	}
}

// New creates a Fetcher from configuration.
func New(cfg config.FetcherConfig, logger zerolog.Logger, opts ...Option) *Fetcher {
	logger = logger.With().Str("component", "Fetcher").Logger()

	cfg = withDefaults(cfg)
	transport := newTransport(logger)

	f := &Fetcher{
		base:          transport,
		limiter:       NewRateLimiter(cfg.DefaultRatePerMinute, cfg.BurstSize, logger),
		robots:        cache.New[string, RobotsResult](cfg.RobotsCacheTTL()),
		userAgent:     cfg.UserAgent,
		botToken:      strings.ToLower(cfg.BotToken),
		timeout:       cfg.Timeout(),
		retries:       cfg.Retries,
		retryDelay:    cfg.RetryDelay(),
		maxBodyBytes:  int64(cfg.MaxBodyMB) * 1024 * 1024,
		respectRobots: cfg.RespectRobotsTxt,
		sleep:         contextutils.Sleep,
		logger:        logger,
	}
	f.client = &http.Client{
		Transport:     transport,
		CheckRedirect: limitRedirects,
	}

	for _, opt := range opts {
		opt(f)
	}

	logger.Debug().
		Str("user_agent", f.userAgent).
		Dur("timeout", f.timeout).
		Int("retries", f.retries).
		Dur("retry_delay", f.retryDelay).
		Bool("respect_robots", f.respectRobots).
		Msg("Fetcher created")

	return f
}

func withDefaults(cfg config.FetcherConfig) config.FetcherConfig {
	def := config.NewDefaultFetcherConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.BotToken == "" {
		cfg.BotToken = def.BotToken
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = def.TimeoutSecs
	}
	if cfg.Retries <= 0 {
		cfg.Retries = def.Retries
	}
	if cfg.RetryDelayMs < 0 {
		cfg.RetryDelayMs = def.RetryDelayMs
	}
	if cfg.DefaultRatePerMinute <= 0 {
		cfg.DefaultRatePerMinute = def.DefaultRatePerMinute
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = def.BurstSize
	}
	if cfg.RobotsCacheTTLMinutes <= 0 {
		cfg.RobotsCacheTTLMinutes = def.RobotsCacheTTLMinutes
	}
	if cfg.MaxBodyMB <= 0 {
		cfg.MaxBodyMB = def.MaxBodyMB
	}
	return cfg
}

func newTransport(logger zerolog.Logger) *http.Transport {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
	}
	return transport
}

func limitRedirects(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// redirectPolicy extends limitRedirects for one Fetch call. A hop to another host
// must pass that host's robots.txt and takes a token from its rate-limit bucket.
func (f *Fetcher) redirectPolicy(opts FetchOptions) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if err := limitRedirects(req, via); err != nil {
			return err
		}
		if strings.EqualFold(via[len(via)-1].URL.Hostname(), req.URL.Hostname()) {
			return nil
		}

		target := req.URL.String()
		ctx := req.Context()
		if f.respectRobots && !opts.SkipRobots {
			if robots := f.CheckRobots(ctx, target); !robots.Allowed {
				f.logger.Warn().
					Str("action", "fetch").
					Str("from", via[0].URL.String()).
					Str("url", target).
					Msg("Redirect blocked by robots.txt")
				return common.NewPolicyError(target, "redirect blocked by robots.txt")
			}
		}
		_, err := f.limiter.Acquire(ctx, domainKey(req.URL))
		return err
	}
}

// domainKey is the default rate-limit key: the lowercase hostname.
func domainKey(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// Fetch retrieves rawURL. The robots.txt check runs first and a refusal returns a
// synthetic 403 without touching the network. Only network and timeout failures
// are retried; a non-2xx response is returned as a completed but failed Result.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) *Result {
	start := time.Now()

	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		msg := "invalid URL"
		if err != nil {
			msg = err.Error()
		}
		return failedResult(rawURL, ErrCodeInvalidURL, msg)
	}
	rawURL = parsed.String()

	if f.respectRobots && !opts.SkipRobots {
		robots := f.CheckRobots(ctx, rawURL)
		if !robots.Allowed {
			f.logger.Warn().
				Str("action", "fetch").
				Str("url", rawURL).
				Msg("Blocked by robots.txt")
			res := failedResult(rawURL, ErrCodeRobotsDisallowed, "blocked by robots.txt")
			res.Status = http.StatusForbidden
			return res
		}
	}

	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return failedResult(rawURL, ErrCodeInvalidURL, err.Error())
	}
	f.applyHeaders(req, opts)

	key := opts.RateLimitKey
	if key == "" {
		key = domainKey(parsed)
	}
	attempts := opts.Retries
	if attempts <= 0 {
		attempts = f.retries
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.timeout
	}

	client := *f.client
	client.CheckRedirect = f.redirectPolicy(opts)

	resp, tries, err := f.send(ctx, req, key, attempts, timeout, client.Do)
	if err != nil {
		res := f.errorResult(rawURL, err)
		res.Attempts = tries
		res.Duration = time.Since(start)
		f.logger.Error().
			Str("action", "fetch").
			Str("url", rawURL).
			Int("attempts", tries).
			Str("error_code", res.ErrorCode).
			Dur("duration", res.Duration).
			Err(err).
			Msg("Fetch failed")
		return res
	}
	defer resp.Body.Close()

	res := &Result{
		Status:      resp.StatusCode,
		URL:         rawURL,
		FinalURL:    rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Attempts:    tries,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		res.FinalURL = resp.Request.URL.String()
	}
	res.Redirected = res.FinalURL != rawURL

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		res.Error = common.WrapError(err, "failed to read response body").Error()
		res.ErrorCode = ErrCodeNetwork
		res.Duration = time.Since(start)
		return res
	}
	if int64(len(body)) > f.maxBodyBytes {
		body = body[:f.maxBodyBytes]
		res.Truncated = true
		f.logger.Warn().Str("url", rawURL).Int64("max_bytes", f.maxBodyBytes).Msg("Response body truncated")
	}
	res.Body = body
	res.Duration = time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		res.ErrorCode = ErrCodeHTTPStatus
		f.logger.Debug().
			Str("action", "fetch").
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Dur("duration", res.Duration).
			Msg("Fetch returned non-success status")
		return res
	}

	res.OK = true
	f.logger.Debug().
		Str("action", "fetch").
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Bool("redirected", res.Redirected).
		Dur("duration", res.Duration).
		Msg("Fetch completed")
	return res
}

func (f *Fetcher) applyHeaders(req *http.Request, opts FetchOptions) {
	req.Header.Set("User-Agent", f.userAgent)
	accept := opts.Accept
	if accept == "" {
		accept = "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8"
	}
	req.Header.Set("Accept", accept)
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
}

func (f *Fetcher) errorResult(rawURL string, err error) *Result {
	switch {
	case errors.Is(err, common.ErrPolicyViolation):
		res := failedResult(rawURL, ErrCodeRobotsDisallowed, err.Error())
		res.Status = http.StatusForbidden
		return res
	case contextutils.IsCancellation(err) && !isTimeout(err):
		return failedResult(rawURL, ErrCodeCancelled, err.Error())
	case isTimeout(err):
		return failedResult(rawURL, ErrCodeTimeout, err.Error())
	default:
		return failedResult(rawURL, ErrCodeNetwork, err.Error())
	}
}

// FetchJSON fetches rawURL and decodes a JSON body into v.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, v interface{}) error {
	res := f.Fetch(ctx, rawURL, FetchOptions{Accept: "application/json"})
	if !res.OK {
		return res.Err()
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return common.WrapErrorf(err, "failed to decode JSON from '%s'", rawURL)
	}
	return nil
}

// SetRateLimit sets the requests-per-minute budget for a domain.
func (f *Fetcher) SetRateLimit(domain string, perMinute int) {
	f.limiter.SetRateLimit(strings.ToLower(domain), perMinute)
}

// RateLimitState returns the token bucket snapshot for a domain.
func (f *Fetcher) RateLimitState(domain string) (RateLimitState, bool) {
	return f.limiter.State(strings.ToLower(domain))
}

// ClearCaches resets the robots cache and every rate-limit bucket.
func (f *Fetcher) ClearCaches() {
	f.robots.Clear()
	f.limiter.Reset()
	f.logger.Debug().Msg("Fetcher caches cleared")
}

// UserAgent returns the User-Agent sent with every request.
func (f *Fetcher) UserAgent() string {
	return f.userAgent
}
