package stream

import (
	"sync"
	"time"

	hProtocol "github.com/stellar/go/protocols/horizon"

	"explorer/internal/derive"
)

// TPSSample is one throughput observation derived from consecutive ledgers.
type TPSSample struct {
	TPS       float64   `json:"tps"`
	LedgerSeq uint32    `json:"ledger_seq"`
	ClosedAt  time.Time `json:"closed_at"`
}

// TPSTracker derives transactions-per-second from the ledger stream. The
// first ledger only seeds the baseline; duplicate sequences and
// non-positive close-time deltas produce no sample.
type TPSTracker struct {
	mu         sync.Mutex
	seeded     bool
	prevSeq    uint32
	prevClosed int64
}

// NewTPSTracker returns an empty tracker.
func NewTPSTracker() *TPSTracker {
	return &TPSTracker{}
}

// Observe feeds one pushed ledger through the tracker.
func (t *TPSTracker) Observe(l hProtocol.Ledger) (TPSSample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := uint32(l.Sequence)
	closed := l.ClosedAt.Unix()

	if !t.seeded {
		t.seeded = true
		t.prevSeq = seq
		t.prevClosed = closed
		return TPSSample{}, false
	}
	if seq == t.prevSeq {
		return TPSSample{}, false
	}

	tps, ok := derive.TPS(t.prevSeq, seq, t.prevClosed, closed, l.SuccessfulTransactionCount)

	// The newest ledger becomes the baseline even when no sample was
	// emitted, so a clock hiccup does not wedge the tracker.
	t.prevSeq = seq
	t.prevClosed = closed

	if !ok {
		return TPSSample{}, false
	}
	return TPSSample{TPS: tps, LedgerSeq: seq, ClosedAt: l.ClosedAt}, true
}

// Reset clears the baseline. Called when the ledger stream reattaches to a
// different network.
func (t *TPSTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seeded = false
	t.prevSeq = 0
	t.prevClosed = 0
}
