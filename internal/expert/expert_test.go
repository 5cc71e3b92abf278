package expert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssetRating_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/testnet/asset/USDC-GISSUER/rating" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"asset":"USDC-GISSUER","rating":{"average":7.5},"trustlines_total":120000}`))
	}))
	defer srv.Close()

	c := NewClient("testnet", srv.Client()).WithBaseURL(srv.URL)

	rating := c.AssetRating(context.Background(), "USDC", "GISSUER")
	if rating == nil {
		t.Fatal("expected a rating")
	}
	if rating.Rating.Average != 7.5 || rating.TrustlinesTotal != 120000 {
		t.Errorf("unexpected rating %+v", rating)
	}
}

func TestEnrichment_DegradesToNil(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"garbage payload", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>not json</html>"))
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := NewClient("public", srv.Client()).WithBaseURL(srv.URL)

			if got := c.AssetRating(context.Background(), "USDC", "GISSUER"); got != nil {
				t.Errorf("expected nil rating, got %+v", got)
			}
			if got := c.NetworkStats(context.Background()); got != nil {
				t.Errorf("expected nil stats, got %+v", got)
			}
			if got := c.ContractValidation(context.Background(), "CABC"); got != nil {
				t.Errorf("expected nil validation, got %+v", got)
			}
		})
	}
}

func TestEnrichment_UnreachableHost(t *testing.T) {
	c := NewClient("public", nil).WithBaseURL("http://127.0.0.1:1")

	if got := c.NetworkStats(context.Background()); got != nil {
		t.Errorf("expected nil on connection failure, got %+v", got)
	}
}
