package netclient

import (
	"net/http"
	"testing"
)

func TestRegistry_MemoizesHandles(t *testing.T) {
	r := NewRegistry(DefaultDescriptors())

	h1, err := r.Handle(NetworkTestnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h2, err := r.Handle(NetworkTestnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if h1 != h2 {
		t.Error("expected the same handle instance for repeated lookups")
	}
}

func TestRegistry_DistinctHandlesPerNetwork(t *testing.T) {
	r := NewRegistry(DefaultDescriptors())

	pub, err := r.Handle(NetworkPublic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	test, err := r.Handle(NetworkTestnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pub == test {
		t.Error("expected distinct handles per network")
	}
	if pub.Descriptor.Passphrase == test.Descriptor.Passphrase {
		t.Error("expected distinct passphrases per network")
	}
}

func TestRegistry_StreamClientHasNoOverallTimeout(t *testing.T) {
	r := NewRegistry(DefaultDescriptors())

	h, err := r.Handle(NetworkTestnet)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	unary, ok := h.Horizon.HTTP.(*http.Client)
	if !ok {
		t.Fatalf("unary client HTTP is %T, expected *http.Client", h.Horizon.HTTP)
	}
	if unary.Timeout == 0 {
		t.Error("unary client should carry a request timeout")
	}

	streaming, ok := h.HorizonStream.HTTP.(*http.Client)
	if !ok {
		t.Fatalf("stream client HTTP is %T, expected *http.Client", h.HorizonStream.HTTP)
	}
	if streaming.Timeout != 0 {
		t.Errorf("stream client Timeout = %v, it would sever open SSE bodies", streaming.Timeout)
	}
	if streaming.Transport == nil {
		t.Fatal("stream client should bound dial and header waits at the transport")
	}
	tr, ok := streaming.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("stream transport is %T, expected *http.Transport", streaming.Transport)
	}
	if tr.ResponseHeaderTimeout == 0 || tr.TLSHandshakeTimeout == 0 {
		t.Error("stream transport should still bound connection setup")
	}
}

func TestRegistry_UnknownNetwork(t *testing.T) {
	r := NewRegistry(DefaultDescriptors())

	if _, err := r.Handle(Network("mainnet2")); err == nil {
		t.Error("expected error for unknown network")
	}
	if r.Valid("mainnet2") {
		t.Error("unknown network should not be valid")
	}
	if !r.Valid(NetworkFuturenet) {
		t.Error("futurenet should be valid")
	}
}
