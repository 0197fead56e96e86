// Package config loads imgsearch settings from flags, IMGSEARCH_* environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/FranksOps/imgsearch/internal/fingerprint"
	"github.com/FranksOps/imgsearch/internal/serp"
	"github.com/FranksOps/imgsearch/pkg/httpclient"
	"github.com/FranksOps/imgsearch/pkg/proxy"
	"github.com/FranksOps/imgsearch/pkg/ratelimit"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. IMGSEARCH_LOG_LEVEL.
const EnvPrefix = "IMGSEARCH"

// Config holds every runtime setting.
type Config struct {
	Endpoint     string            `mapstructure:"endpoint"`
	UserAgents   []string          `mapstructure:"user_agent"`
	Headers      map[string]string `mapstructure:"header"`
	Timeout      time.Duration     `mapstructure:"timeout"`
	MaxRedirects int               `mapstructure:"max_redirects"`
	Cookies      bool              `mapstructure:"cookies"`
	Fingerprint  string            `mapstructure:"fingerprint"`
	ProxiesFile  string            `mapstructure:"proxies"`
	RPS          float64           `mapstructure:"rps"`
	Jitter       float64           `mapstructure:"jitter"`
	Concurrency  int               `mapstructure:"concurrency"`
	LogLevel     string            `mapstructure:"log_level"`
	LogFormat    string            `mapstructure:"log_format"`
	LogFile      string            `mapstructure:"log_file"`
	MetricsPort  int               `mapstructure:"metrics_port"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Endpoint:    serp.DefaultEndpoint,
		Timeout:     httpclient.DefaultTimeout,
		Fingerprint: string(fingerprint.ProfileGo),
		Concurrency: 4,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"endpoint":      "endpoint",
	"user-agent":    "user_agent",
	"header":        "header",
	"timeout":       "timeout",
	"max-redirects": "max_redirects",
	"cookies":       "cookies",
	"fingerprint":   "fingerprint",
	"proxies":       "proxies",
	"rps":           "rps",
	"jitter":        "jitter",
	"concurrency":   "concurrency",
	"log-level":     "log_level",
	"log-format":    "log_format",
	"log-file":      "log_file",
	"metrics-port":  "metrics_port",
}

// RegisterFlags adds the settings to fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("endpoint", d.Endpoint, "image search endpoint")
	fs.StringSlice("user-agent", d.UserAgents, "User-Agent header, repeat to rotate")
	fs.StringToString("header", d.Headers, "extra request header as Name=value, repeatable")
	fs.Duration("timeout", d.Timeout, "request timeout")
	fs.Int("max-redirects", d.MaxRedirects, "redirects to follow (0 = net/http default, -1 = none)")
	fs.Bool("cookies", d.Cookies, "keep cookies between searches")
	fs.String("fingerprint", d.Fingerprint, "TLS fingerprint: go, chrome, firefox, safari, random")
	fs.String("proxies", d.ProxiesFile, "file with one proxy URL per line")
	fs.Float64("rps", d.RPS, "maximum requests per second (0 = unlimited)")
	fs.Float64("jitter", d.Jitter, "extra random delay between requests, as a fraction of the interval")
	fs.Int("concurrency", d.Concurrency, "parallel searches for batch runs")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
	fs.String("log-file", d.LogFile, "write logs to this file")
	fs.Int("metrics-port", d.MetricsPort, "serve Prometheus metrics on this port (0 = off)")
}

// Load resolves settings with precedence flags > environment > file > defaults.
// fs may be nil; path may be empty.
func Load(fs *pflag.FlagSet, path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("user_agent", d.UserAgents)
	v.SetDefault("header", d.Headers)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("max_redirects", d.MaxRedirects)
	v.SetDefault("cookies", d.Cookies)
	v.SetDefault("fingerprint", d.Fingerprint)
	v.SetDefault("proxies", d.ProxiesFile)
	v.SetDefault("rps", d.RPS)
	v.SetDefault("jitter", d.Jitter)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("metrics_port", d.MetricsPort)

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("config: bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := fingerprint.ParseProfile(c.Fingerprint); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch {
	case c.Timeout < 0:
		return errors.New("config: timeout must not be negative")
	case c.MaxRedirects < -1:
		return errors.New("config: max redirects must be -1 or more")
	case c.RPS < 0:
		return errors.New("config: rps must not be negative")
	case c.Jitter < 0 || c.Jitter > 1:
		return errors.New("config: jitter must be between 0 and 1")
	case c.Concurrency < 0:
		return errors.New("config: concurrency must not be negative")
	case c.MetricsPort < 0 || c.MetricsPort > 65535:
		return fmt.Errorf("config: invalid metrics port %d", c.MetricsPort)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NewLogger builds the slog handler the settings ask for, writing to w.
func (c Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// ClientConfig translates the settings into a search client configuration,
// loading the proxy list if one is set.
func (c Config) ClientConfig(logger *slog.Logger) (serp.Config, error) {
	profile, err := fingerprint.ParseProfile(c.Fingerprint)
	if err != nil {
		return serp.Config{}, fmt.Errorf("config: %w", err)
	}

	var pool *proxy.Pool
	if c.ProxiesFile != "" {
		pool = proxy.NewPool(proxy.Config{})
		if err := pool.LoadFile(c.ProxiesFile); err != nil {
			return serp.Config{}, fmt.Errorf("config: %w", err)
		}
	}

	var limiter *ratelimit.Limiter
	if c.RPS > 0 {
		limiter = ratelimit.NewLimiter(c.RPS, c.Jitter)
	}

	var header http.Header
	if len(c.Headers) > 0 {
		header = make(http.Header, len(c.Headers))
		for k, v := range c.Headers {
			header.Set(k, v)
		}
	}

	return serp.Config{
		Endpoint:     c.Endpoint,
		UserAgents:   c.UserAgents,
		Header:       header,
		Timeout:      c.Timeout,
		MaxRedirects: c.MaxRedirects,
		UseCookieJar: c.Cookies,
		Fingerprint:  profile,
		ProxyPool:    pool,
		Limiter:      limiter,
		Logger:       logger,
	}, nil
}
