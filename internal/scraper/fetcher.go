package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/imgsearch/internal/bypass"
	"github.com/FranksOps/imgsearch/internal/fingerprint"
	"github.com/FranksOps/imgsearch/internal/metrics"
	"github.com/FranksOps/imgsearch/pkg/httpclient"
	"github.com/FranksOps/imgsearch/pkg/proxy"
	"github.com/FranksOps/imgsearch/pkg/ratelimit"
	"github.com/FranksOps/imgsearch/pkg/useragent"
	"github.com/google/uuid"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 16 << 20

// Stages a fetch can fail at. Errors returned by Fetch wrap exactly one.
var (
	ErrBuildRequest = errors.New("build request")
	ErrRateLimit    = errors.New("rate limiter")
	ErrTransport    = errors.New("request failed")
	ErrReadBody     = errors.New("read body")
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Header holds defaults for every request; the rotated User-Agent wins.
	Header       http.Header
	MaxBodyBytes int64
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
	// Detectors classify bot-protection pages. Nil means
	// bypass.DefaultDetectors; an empty slice disables detection.
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

// Result is the outcome of a single GET.
type Result struct {
	ID           string
	URL          string
	StatusCode   int
	Header       http.Header
	Body         []byte
	Duration     time.Duration
	DetectionSrc string // e.g. "Cloudflare", "Captcha"; empty if none fired
	CreatedAt    time.Time
}

// Fetcher performs single URL fetches. One Fetcher holds one transport, so
// connections and cookies (if enabled) are reused across fetches.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileGo
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// The proxy for a request travels in its context so a single transport
	// can rotate proxies per request.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to setup transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Header:       cfg.Header,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
		logger: cfg.Logger,
	}, nil
}

// Fetch executes a GET request to targetURL. On error the returned Result
// still carries whatever was learned before the failure (ID, URL, timing,
// status if a response arrived).
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()
	result := &Result{
		ID:        uuid.New().String(),
		URL:       targetURL,
		CreatedAt: start.UTC(),
	}

	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("%w: %w", ErrRateLimit, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrBuildRequest, err)
	}
	host := req.URL.Hostname()

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		if activeProxy = f.config.ProxyPool.Next(); activeProxy != nil {
			req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
		}
	}

	req.Header.Set("User-Agent", f.config.UAPool.Next())

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.Redacted()).Inc()
		}
		result.Duration = time.Since(start)
		metrics.RecordFetch(host, metrics.FetchSample{Failed: true, Duration: result.Duration})
		return result, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	result.StatusCode = resp.StatusCode
	result.Header = resp.Header

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	result.Duration = time.Since(start)
	if err == nil && int64(len(body)) > f.config.MaxBodyBytes {
		err = fmt.Errorf("body exceeds %d bytes", f.config.MaxBodyBytes)
		body = body[:f.config.MaxBodyBytes]
	}
	result.Body = body
	if err != nil {
		metrics.RecordFetch(host, metrics.FetchSample{StatusCode: resp.StatusCode, Duration: result.Duration, Bytes: len(body)})
		return result, fmt.Errorf("%w: %w", ErrReadBody, err)
	}

	if src, detected := bypass.Analyze(&bypass.Page{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       result.Body,
	}, f.config.Detectors); detected {
		result.DetectionSrc = src
		f.logger.Warn("bot protection detected", "url", targetURL, "status", result.StatusCode, "source", src)
	}

	metrics.RecordFetch(host, metrics.FetchSample{
		StatusCode:   result.StatusCode,
		DetectionSrc: result.DetectionSrc,
		Duration:     result.Duration,
		Bytes:        len(result.Body),
	})

	return result, nil
}
