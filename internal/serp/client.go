package serp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/FranksOps/imgsearch/internal/bypass"
	"github.com/FranksOps/imgsearch/internal/fingerprint"
	"github.com/FranksOps/imgsearch/internal/scraper"
	"github.com/FranksOps/imgsearch/pkg/proxy"
	"github.com/FranksOps/imgsearch/pkg/ratelimit"
	"github.com/FranksOps/imgsearch/pkg/useragent"
)

// DefaultEndpoint is the Yahoo! JAPAN image search page.
const DefaultEndpoint = "https://search.yahoo.co.jp/image/search"

// Config configures a Client. The zero value performs a plain GET against
// DefaultEndpoint with the default contact User-Agent and a 60s timeout.
type Config struct {
	Endpoint string
	// UserAgents are rotated per request. Empty means useragent.DefaultContact.
	UserAgents []string
	// Header is sent with every request unless the request sets it already.
	Header       http.Header
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	Fingerprint  fingerprint.Profile
	ProxyPool    *proxy.Pool
	Limiter      *ratelimit.Limiter
	// Detectors classify non-2xx pages as blocked. Nil means the defaults.
	Detectors []bypass.Detector
	Logger    *slog.Logger
}

// Client performs one GET per search, with no retries.
type Client struct {
	endpoint string
	fetcher  *scraper.Fetcher
	logger   *slog.Logger
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	uas := useragent.NewPool(cfg.UserAgents)
	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Header:       cfg.Header,
		UAPool:       uas,
		Fingerprint:  cfg.Fingerprint,
		ProxyPool:    cfg.ProxyPool,
		Limiter:      cfg.Limiter,
		Detectors:    cfg.Detectors,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("serp: %w", err)
	}

	cfg.Logger.Debug("search client ready",
		"endpoint", cfg.Endpoint,
		"user_agents", uas.All(),
		"proxies", cfg.ProxyPool.Len(),
		"interval", cfg.Limiter.Interval(),
		"fingerprint", cfg.Fingerprint,
	)

	return &Client{
		endpoint: cfg.Endpoint,
		fetcher:  fetcher,
		logger:   cfg.Logger,
	}, nil
}

// SearchURL returns the results page URL for query. Spaces are encoded as
// %20 rather than '+'.
func SearchURL(endpoint, query string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q is not an absolute URL", endpoint)
	}
	u.RawQuery = "ei=UTF-8&p=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return u.String(), nil
}

// Fetch GETs the results page for query and returns its body as text.
// Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, query string) (string, error) {
	target, err := SearchURL(c.endpoint, query)
	if err != nil {
		return "", &FetchError{Kind: KindRequest, Query: query, Err: err}
	}

	res, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		fe := &FetchError{Kind: KindTransport, Query: query, URL: target, Err: err}
		if errors.Is(err, scraper.ErrBuildRequest) {
			fe.Kind = KindRequest
		}
		if res != nil {
			fe.StatusCode = res.StatusCode
		}
		c.logger.Debug("search fetch failed", "query", query, "kind", fe.Kind, "err", err)
		return "", fe
	}

	c.logger.Debug("search fetched", "query", query, "status", res.StatusCode, "bytes", len(res.Body), "duration", res.Duration)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		fe := &FetchError{Kind: KindStatus, Query: query, URL: target, StatusCode: res.StatusCode}
		if res.DetectionSrc != "" {
			fe.Kind = KindBlocked
			fe.Source = res.DetectionSrc
		}
		return "", fe
	}

	if !utf8.Valid(res.Body) {
		return "", &FetchError{Kind: KindDecode, Query: query, URL: target, StatusCode: res.StatusCode, Err: ErrInvalidUTF8}
	}

	return string(res.Body), nil
}
