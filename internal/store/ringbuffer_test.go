package store

import (
	"testing"
	"time"
)

type stamped struct {
	at time.Time
	id int
}

type recordingPersistence struct {
	loaded []stamped
	saves  int
	last   []stamped
}

func (p *recordingPersistence) Load() []stamped { return p.loaded }

func (p *recordingPersistence) Save(items []stamped) error {
	p.saves++
	p.last = append([]stamped(nil), items...)
	return nil
}

func stampedAt(t time.Time) func(stamped) time.Time {
	return func(s stamped) time.Time { return s.at }
}

func TestRingBuffer_CapacityBound(t *testing.T) {
	now := time.Now()
	buf := NewRingBuffer(3, 0, stampedAt(now), nil)

	for i := 0; i < 5; i++ {
		buf.Append(stamped{at: now, id: i})
	}

	items := buf.Items()
	if len(items) != 3 {
		t.Fatalf("expected capacity bound of 3, got %d", len(items))
	}
	// Oldest entries are the ones evicted
	if items[0].id != 2 || items[2].id != 4 {
		t.Errorf("unexpected survivors %v", items)
	}
}

func TestRingBuffer_AgePruning(t *testing.T) {
	now := time.Now()
	buf := NewRingBuffer(10, time.Hour, stampedAt(now), nil)

	buf.Append(stamped{at: now.Add(-2 * time.Hour), id: 1})
	buf.Append(stamped{at: now.Add(-30 * time.Minute), id: 2})
	buf.Append(stamped{at: now, id: 3})

	items := buf.Items()
	if len(items) != 2 {
		t.Fatalf("expected stale entry pruned, got %d items", len(items))
	}
	if items[0].id != 2 {
		t.Errorf("wrong entry survived: %v", items)
	}
}

func TestRingBuffer_LoadsAndPrunesPersisted(t *testing.T) {
	now := time.Now()
	persist := &recordingPersistence{
		loaded: []stamped{
			{at: now.Add(-2 * time.Hour), id: 1}, // too old, dropped on load
			{at: now.Add(-time.Minute), id: 2},
		},
	}

	buf := NewRingBuffer(10, time.Hour, stampedAt(now), persist)
	if buf.Len() != 1 {
		t.Fatalf("expected stale persisted entry dropped, got %d", buf.Len())
	}

	buf.Append(stamped{at: now, id: 3})
	if persist.saves != 1 {
		t.Errorf("expected save on append, got %d saves", persist.saves)
	}
	if len(persist.last) != 2 {
		t.Errorf("persisted %d items, expected 2", len(persist.last))
	}
}

func TestRingBuffer_ItemsReturnsCopy(t *testing.T) {
	now := time.Now()
	buf := NewRingBuffer(5, 0, stampedAt(now), nil)
	buf.Append(stamped{at: now, id: 1})

	items := buf.Items()
	items[0].id = 99

	if buf.Items()[0].id != 1 {
		t.Error("mutating the returned slice must not affect the buffer")
	}
}
