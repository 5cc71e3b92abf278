package netclient

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/network"
	"github.com/stellar/stellar-rpc/client"
)

// Network identifies one of the Stellar networks the explorer can point at.
type Network string

const (
	NetworkPublic    Network = "public"
	NetworkTestnet   Network = "testnet"
	NetworkFuturenet Network = "futurenet"
)

// Descriptor holds the endpoints and passphrase for a network.
type Descriptor struct {
	Name       Network
	Display    string
	HorizonURL string
	RPCURL     string
	Passphrase string
}

// DefaultDescriptors returns the built-in network set. Endpoint URLs can be
// overridden via config before the registry is constructed.
func DefaultDescriptors() map[Network]Descriptor {
	return map[Network]Descriptor{
		NetworkPublic: {
			Name:       NetworkPublic,
			Display:    "Public Network",
			HorizonURL: "https://horizon.stellar.org",
			RPCURL:     "https://mainnet.sorobanrpc.com",
			Passphrase: network.PublicNetworkPassphrase,
		},
		NetworkTestnet: {
			Name:       NetworkTestnet,
			Display:    "Testnet",
			HorizonURL: "https://horizon-testnet.stellar.org",
			RPCURL:     "https://soroban-testnet.stellar.org",
			Passphrase: network.TestNetworkPassphrase,
		},
		NetworkFuturenet: {
			Name:       NetworkFuturenet,
			Display:    "Futurenet",
			HorizonURL: "https://horizon-futurenet.stellar.org",
			RPCURL:     "https://rpc-futurenet.stellar.org",
			Passphrase: network.FutureNetworkPassphrase,
		},
	}
}

// Handle bundles the per-network clients. Handles are created once and
// never mutated afterwards, so they are safe to share between goroutines.
//
// Horizon and RPC carry a hard request timeout and serve unary lookups.
// HorizonStream has no overall timeout, only connect and response-header
// deadlines, because an SSE response body stays open indefinitely.
type Handle struct {
	Descriptor    Descriptor
	Horizon       *horizonclient.Client
	HorizonStream *horizonclient.Client
	RPC           *client.Client
}

// Registry memoizes one Handle per network. It is constructor-injected
// wherever clients are needed instead of living in a package-level map,
// which keeps tests free to substitute fake Horizon clients.
type Registry struct {
	mu          sync.Mutex
	descriptors map[Network]Descriptor
	handles     map[Network]*Handle
}

// NewRegistry creates a registry over the given network descriptors.
func NewRegistry(descriptors map[Network]Descriptor) *Registry {
	return &Registry{
		descriptors: descriptors,
		handles:     make(map[Network]*Handle),
	}
}

// Handle returns the memoized client pair for a network, constructing it on
// first use.
func (r *Registry) Handle(nw Network) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[nw]; ok {
		return h, nil
	}

	desc, ok := r.descriptors[nw]
	if !ok {
		return nil, fmt.Errorf("unknown network %q", nw)
	}

	h := &Handle{
		Descriptor: desc,
		Horizon: &horizonclient.Client{
			HorizonURL: desc.HorizonURL,
			HTTP:       &http.Client{Timeout: 30 * time.Second},
		},
		HorizonStream: &horizonclient.Client{
			HorizonURL: desc.HorizonURL,
			HTTP: &http.Client{
				// No Client.Timeout: it would cut long-lived SSE
				// bodies off mid-stream.
				Transport: &http.Transport{
					DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
					TLSHandshakeTimeout:   10 * time.Second,
					ResponseHeaderTimeout: 30 * time.Second,
				},
			},
		},
		RPC: client.NewClient(desc.RPCURL, &http.Client{Timeout: 30 * time.Second}),
	}
	r.handles[nw] = h
	return h, nil
}

// Networks lists the networks this registry knows about.
func (r *Registry) Networks() []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	return out
}

// Valid reports whether net names a configured network.
func (r *Registry) Valid(net Network) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.descriptors[net]
	return ok
}
