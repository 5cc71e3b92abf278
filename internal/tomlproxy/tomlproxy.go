// Package tomlproxy serves asset metadata from issuer-published stellar.toml
// files. Unfetchable URLs and over-limit clients are rejected up front; once
// a URL passes validation the metadata is cosmetic only (logo, name,
// description), so fetch failures degrade to a minimal record the caller
// could have built itself.
package tomlproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	toml "github.com/pelletier/go-toml"
	"golang.org/x/time/rate"

	"explorer/internal/metrics"
	"explorer/internal/models"
)

const maxTomlBytes = 1 << 20 // upper bound on one issuer file read

// Metadata is the normalized subset of a stellar.toml currency entry.
// Code and Issuer are always present; the rest only on a successful fetch.
type Metadata struct {
	Code        string `json:"code"`
	Issuer      string `json:"issuer"`
	Name        string `json:"name,omitempty"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
	OrgName     string `json:"org_name,omitempty"`
	OrgURL      string `json:"org_url,omitempty"`
}

// Complete reports whether the record carries more than the fallback fields.
func (m Metadata) Complete() bool {
	return m.Name != "" || m.Image != "" || m.Description != "" || m.OrgName != ""
}

// LookupFunc resolves a hostname for the pre-fetch address check.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// Options tunes the proxy. Zero values take the documented defaults.
type Options struct {
	Timeout           time.Duration // upstream fetch budget, default 10s
	SuccessTTL        time.Duration // default 24h
	FallbackTTL       time.Duration // default 1h, shorter so transient failures retry sooner
	RequestsPerWindow int           // per client IP, default 30
	Window            time.Duration // default 60s
	HTTPClient        *http.Client
	Lookup            LookupFunc
}

type cachedMeta struct {
	meta    Metadata
	expires time.Time
}

// Proxy fetches, validates and caches issuer metadata.
type Proxy struct {
	opts     Options
	client   *http.Client
	lookup   LookupFunc
	cache    *lru.Cache[string, cachedMeta]
	limiters *lru.Cache[string, *rate.Limiter]
	now      func() time.Time
}

// Private and link-local ranges are rejected by CIDR containment, not by
// string prefix, so 172.32.x.x stays reachable while 172.16.0.0/12 does not.
var blockedRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
}

// New creates a proxy.
func New(opts Options) (*Proxy, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SuccessTTL <= 0 {
		opts.SuccessTTL = 24 * time.Hour
	}
	if opts.FallbackTTL <= 0 {
		opts.FallbackTTL = time.Hour
	}
	if opts.RequestsPerWindow <= 0 {
		opts.RequestsPerWindow = 30
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}

	cache, err := lru.New[string, cachedMeta](2048)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}
	limiters, err := lru.New[string, *rate.Limiter](4096)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter table: %w", err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	lookup := opts.Lookup
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		}
	}

	return &Proxy{
		opts:     opts,
		client:   client,
		lookup:   lookup,
		cache:    cache,
		limiters: limiters,
		now:      time.Now,
	}, nil
}

// ServeHTTP handles GET /api/toml?url=&code=&issuer=.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, models.ErrorResponse{
			Error: "method not allowed",
			Code:  http.StatusMethodNotAllowed,
		})
		return
	}

	q := r.URL.Query()
	tomlURL := q.Get("url")
	code := q.Get("code")
	issuer := q.Get("issuer")
	if tomlURL == "" || code == "" || issuer == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   "missing query parameter",
			Message: "url, code and issuer are required",
			Code:    http.StatusBadRequest,
		})
		return
	}

	fallback := Metadata{Code: code, Issuer: issuer}
	cacheKey := tomlURL + "|" + code + "|" + issuer

	if entry, ok := p.cache.Get(cacheKey); ok && p.now().Before(entry.expires) {
		writeJSON(w, http.StatusOK, entry.meta)
		return
	}

	if !p.allow(clientIP(r)) {
		metrics.TomlRateLimited.Inc()
		writeJSON(w, http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "rate limited",
			Message: "per-client request limit reached, retry later",
			Code:    http.StatusTooManyRequests,
		})
		return
	}

	if err := p.validateURL(r.Context(), tomlURL); err != nil {
		metrics.TomlBlocked.Inc()
		slog.Warn("Blocked stellar.toml URL", "url", tomlURL, "reason", err)
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   "url not allowed",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	metrics.TomlRequests.Inc()
	meta, err := p.fetch(r.Context(), tomlURL, code, issuer)
	if err != nil {
		slog.Warn("stellar.toml fetch degraded to fallback",
			"url", tomlURL,
			"code", code,
			"error", err)
		p.respondFallback(w, cacheKey, fallback)
		return
	}

	p.cache.Add(cacheKey, cachedMeta{meta: meta, expires: p.now().Add(p.opts.SuccessTTL)})
	writeJSON(w, http.StatusOK, meta)
}

func (p *Proxy) respondFallback(w http.ResponseWriter, cacheKey string, fallback Metadata) {
	metrics.TomlFallbacks.Inc()
	p.cache.Add(cacheKey, cachedMeta{meta: fallback, expires: p.now().Add(p.opts.FallbackTTL)})
	writeJSON(w, http.StatusOK, fallback)
}

// allow checks the per-client token bucket.
func (p *Proxy) allow(ip string) bool {
	limiter, ok := p.limiters.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(
			rate.Every(p.opts.Window/time.Duration(p.opts.RequestsPerWindow)),
			p.opts.RequestsPerWindow,
		)
		p.limiters.Add(ip, limiter)
	}
	return limiter.Allow()
}

// validateURL enforces HTTPS and rejects URLs whose host resolves to a
// loopback, private or link-local address.
func (p *Proxy) validateURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("unparseable url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not https", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("url has no host")
	}

	var addrs []netip.Addr
	if addr, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{addr}
	} else {
		lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		addrs, err = p.lookup(lookupCtx, host)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", host, err)
		}
	}

	for _, addr := range addrs {
		addr = addr.Unmap()
		if addr.IsLoopback() || addr.IsLinkLocalUnicast() {
			return fmt.Errorf("%s resolves to non-routable address %s", host, addr)
		}
		for _, prefix := range blockedRanges {
			if prefix.Contains(addr) {
				return fmt.Errorf("%s resolves to blocked range %s", host, prefix)
			}
		}
	}
	return nil
}

// tomlFile mirrors the SEP-1 sections the explorer consumes.
type tomlFile struct {
	Documentation struct {
		OrgName string `toml:"ORG_NAME"`
		OrgURL  string `toml:"ORG_URL"`
	} `toml:"DOCUMENTATION"`
	Currencies []struct {
		Code   string `toml:"code"`
		Issuer string `toml:"issuer"`
		Name   string `toml:"name"`
		Image  string `toml:"image"`
		Desc   string `toml:"desc"`
	} `toml:"CURRENCIES"`
}

func (p *Proxy) fetch(ctx context.Context, tomlURL, code, issuer string) (Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tomlURL, nil)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/plain, application/toml")

	resp, err := p.client.Do(req)
	if err != nil {
		return Metadata{}, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Metadata{}, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTomlBytes))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read body: %w", err)
	}

	var file tomlFile
	if err := toml.Unmarshal(body, &file); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse toml: %w", err)
	}

	meta := Metadata{
		Code:    code,
		Issuer:  issuer,
		OrgName: file.Documentation.OrgName,
		OrgURL:  file.Documentation.OrgURL,
	}
	for _, cur := range file.Currencies {
		// Codes compare case-insensitively, issuers exactly
		if strings.EqualFold(cur.Code, code) && cur.Issuer == issuer {
			meta.Name = cur.Name
			meta.Image = cur.Image
			meta.Description = cur.Desc
			return meta, nil
		}
	}
	return Metadata{}, fmt.Errorf("no currency entry for %s:%s", code, issuer)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
