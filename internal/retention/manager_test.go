package retention

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"solana-mev-engine/internal/storage"
)

type fakePurgeable struct {
	lastCutoff int64
	removed    int
}

func (f *fakePurgeable) PurgeOlderThan(cutoffMs int64) int {
	f.lastCutoff = cutoffMs
	return f.removed
}

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) DeleteOlderThan(ctx context.Context, cutoffMs int64) (int64, error) {
	f.calls++
	return 3, f.err
}

func TestManagerPurgesAllTargets(t *testing.T) {
	a := &fakePurgeable{removed: 5}
	b := &fakePurgeable{removed: 2}
	m := NewManager(Options{
		Targets: []Target{{Name: "a", Purgeable: a}, {Name: "b", Purgeable: b}},
		Logger:  log.New(io.Discard, "", 0),
	})

	now := time.Now()
	removed := m.Tick(context.Background(), now)
	if removed != 7 {
		t.Fatalf("removed = %d, want 7", removed)
	}

	wantCutoff := now.Add(-DefaultMaxAge).UnixMilli()
	if a.lastCutoff != wantCutoff {
		t.Fatalf("cutoff = %d, want %d", a.lastCutoff, wantCutoff)
	}
}

func TestManagerCustomMaxAge(t *testing.T) {
	a := &fakePurgeable{}
	m := NewManager(Options{
		Targets: []Target{{Name: "a", Purgeable: a}},
		MaxAge:  time.Hour,
		Logger:  log.New(io.Discard, "", 0),
	})

	now := time.Now()
	m.Tick(context.Background(), now)
	if got, want := a.lastCutoff, now.Add(-time.Hour).UnixMilli(); got != want {
		t.Fatalf("cutoff = %d, want %d", got, want)
	}
}

func TestManagerArchiveErrorDoesNotStopSweep(t *testing.T) {
	failing := &fakePurger{err: context.DeadlineExceeded}
	ok := &fakePurger{}
	m := NewManager(Options{
		Archives: []storage.Purger{failing, ok},
		Logger:   log.New(io.Discard, "", 0),
	})

	m.Tick(context.Background(), time.Now())
	if failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("archive calls = %d/%d, want 1/1", failing.calls, ok.calls)
	}
}
