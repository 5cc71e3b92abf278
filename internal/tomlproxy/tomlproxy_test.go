package tomlproxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testIssuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
	testToml   = `
[DOCUMENTATION]
ORG_NAME = "Centre"
ORG_URL = "https://centre.io"

[[CURRENCIES]]
code = "USDC"
issuer = "GA5ZSEJYB37JRC5AVCIA5MOP4RHTM335X2KGX3IHOJAPP5RE34K4KZVN"
name = "USD Coin"
image = "https://centre.io/usdc.png"
desc = "Fully reserved dollar token"
`
)

type fakeTransport struct {
	calls   atomic.Int32
	status  int
	body    string
	delay   time.Duration
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(f.delay):
		}
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(f.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

func staticLookup(addrs ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]netip.Addr, error) {
		out := make([]netip.Addr, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	}
}

func newTestProxy(t *testing.T, transport *fakeTransport, opts Options) *Proxy {
	t.Helper()
	if opts.Lookup == nil {
		opts.Lookup = staticLookup("93.184.216.34")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Transport: transport}
	}
	p, err := New(opts)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func doRequest(t *testing.T, p *Proxy, tomlURL, code, issuer string) (*httptest.ResponseRecorder, Metadata) {
	t.Helper()
	target := fmt.Sprintf("/api/toml?url=%s&code=%s&issuer=%s",
		url.QueryEscape(tomlURL), url.QueryEscape(code), url.QueryEscape(issuer))
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	var meta Metadata
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&meta); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rec, meta
}

func TestProxy_FetchesAndCachesMetadata(t *testing.T) {
	transport := &fakeTransport{body: testToml}
	p := newTestProxy(t, transport, Options{})

	_, meta := doRequest(t, p, "https://centre.io/.well-known/stellar.toml", "usdc", testIssuer)

	if meta.Name != "USD Coin" || meta.Image != "https://centre.io/usdc.png" {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.OrgName != "Centre" {
		t.Errorf("org name = %q", meta.OrgName)
	}
	if meta.Code != "usdc" || meta.Issuer != testIssuer {
		t.Errorf("identity fields must echo the request, got %+v", meta)
	}

	// Second request is served from cache
	doRequest(t, p, "https://centre.io/.well-known/stellar.toml", "usdc", testIssuer)
	if transport.calls.Load() != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", transport.calls.Load())
	}
}

func TestProxy_RejectsNonHTTPS(t *testing.T) {
	transport := &fakeTransport{body: testToml}
	p := newTestProxy(t, transport, Options{})

	rec, _ := doRequest(t, p, "http://centre.io/stellar.toml", "USDC", testIssuer)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400 for a non-https url", rec.Code)
	}
	if transport.calls.Load() != 0 {
		t.Error("blocked URL must not reach the upstream")
	}
}

func TestProxy_BlocksPrivateRangesByCIDR(t *testing.T) {
	cases := []struct {
		name    string
		addr    string
		blocked bool
	}{
		{"loopback", "127.0.0.1", true},
		{"ten-slash-eight", "10.1.2.3", true},
		{"infra-range", "172.16.0.5", true},
		{"infra-range-upper", "172.31.255.254", true},
		{"outside-infra-range", "172.32.0.1", false},
		{"rfc1918-c", "192.168.1.1", true},
		{"link-local", "169.254.10.10", true},
		{"public", "93.184.216.34", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &fakeTransport{body: testToml}
			p := newTestProxy(t, transport, Options{Lookup: staticLookup(tc.addr)})

			rec, _ := doRequest(t, p, "https://issuer.example/stellar.toml", "USDC", testIssuer)

			fetched := transport.calls.Load() > 0
			if tc.blocked && fetched {
				t.Errorf("address %s must be blocked before the fetch", tc.addr)
			}
			if !tc.blocked && !fetched {
				t.Errorf("address %s must be allowed through", tc.addr)
			}
			if tc.blocked && rec.Code != http.StatusBadRequest {
				t.Errorf("address %s: status = %d, expected 400", tc.addr, rec.Code)
			}
			if !tc.blocked && rec.Code != http.StatusOK {
				t.Errorf("address %s: status = %d, expected 200", tc.addr, rec.Code)
			}
		})
	}
}

func TestProxy_RateLimitSkipsUpstream(t *testing.T) {
	transport := &fakeTransport{body: testToml}
	p := newTestProxy(t, transport, Options{RequestsPerWindow: 2, Window: time.Minute})

	// Distinct URLs so the metadata cache cannot satisfy the requests
	doRequest(t, p, "https://a.example/stellar.toml", "USDC", testIssuer)
	doRequest(t, p, "https://b.example/stellar.toml", "USDC", testIssuer)
	rec, _ := doRequest(t, p, "https://c.example/stellar.toml", "USDC", testIssuer)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, expected 429 past the limit", rec.Code)
	}
	if transport.calls.Load() != 2 {
		t.Errorf("expected 2 upstream fetches before the limit, got %d", transport.calls.Load())
	}
}

func TestProxy_UpstreamFailureCachesFallback(t *testing.T) {
	transport := &fakeTransport{status: http.StatusNotFound}
	p := newTestProxy(t, transport, Options{})

	_, meta := doRequest(t, p, "https://gone.example/stellar.toml", "USDC", testIssuer)
	if meta.Complete() {
		t.Errorf("expected fallback after 404, got %+v", meta)
	}

	// The fallback is cached, so the upstream is not hammered
	doRequest(t, p, "https://gone.example/stellar.toml", "USDC", testIssuer)
	if transport.calls.Load() != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", transport.calls.Load())
	}
}

func TestProxy_IssuerMustMatchExactly(t *testing.T) {
	transport := &fakeTransport{body: testToml}
	p := newTestProxy(t, transport, Options{})

	otherIssuer := "GBBD47IF6LWK7P7MDEVSCWR7DPUWV3NY3DTQEVFL4NAT4AQH3ZLLFLA5"
	_, meta := doRequest(t, p, "https://centre.io/stellar.toml", "USDC", otherIssuer)

	if meta.Complete() {
		t.Errorf("issuer mismatch must yield the fallback record, got %+v", meta)
	}
}

func TestProxy_MissingParamsRejected(t *testing.T) {
	p := newTestProxy(t, &fakeTransport{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/toml?code=USDC", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, expected 400", rec.Code)
	}
}

func TestProxy_UpstreamTimeout(t *testing.T) {
	transport := &fakeTransport{body: testToml, delay: 200 * time.Millisecond}
	p := newTestProxy(t, transport, Options{Timeout: 20 * time.Millisecond})

	_, meta := doRequest(t, p, "https://slow.example/stellar.toml", "USDC", testIssuer)

	if meta.Complete() {
		t.Errorf("expected fallback after timeout, got %+v", meta)
	}
}
