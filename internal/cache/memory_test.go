package cache

import (
	"context"
	"testing"
	"time"

	"defi-strategy-lab/internal/domain"
)

func testEntry(sharpe float64) *Entry {
	return &Entry{
		InSampleScores:    domain.ObjectiveScores{domain.ObjectiveSharpe: sharpe},
		OutOfSampleScores: domain.ObjectiveScores{domain.ObjectiveSharpe: sharpe * 0.8},
		DegradationPct:    20,
	}
}

func TestMemory_SetAndGet(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	if err := m.Set(ctx, "fp-1", testEntry(1.5), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok, err := m.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got := entry.InSampleScores[domain.ObjectiveSharpe]; got != 1.5 {
		t.Errorf("expected sharpe 1.5, got %v", got)
	}
}

func TestMemory_MissOnUnknownKey(t *testing.T) {
	m := NewMemory(10)

	_, ok, err := m.Get(context.Background(), "never-stored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected cache miss")
	}
}

func TestMemory_ExpiredEntryIsMiss(t *testing.T) {
	m := NewMemory(10)
	ctx := context.Background()

	if err := m.Set(ctx, "fp-1", testEntry(1.0), time.Nanosecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err := m.Get(ctx, "fp-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected expired entry to miss")
	}
	if m.Len() != 0 {
		t.Errorf("expected expired entry removed, have %d entries", m.Len())
	}
}

func TestMemory_EvictsWhenFull(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	m.Set(ctx, "fp-1", testEntry(1), 0)
	time.Sleep(time.Millisecond)
	m.Set(ctx, "fp-2", testEntry(2), 0)
	time.Sleep(time.Millisecond)

	// Touch fp-1 so fp-2 becomes the least recently used entry.
	if _, ok, _ := m.Get(ctx, "fp-1"); !ok {
		t.Fatal("expected fp-1 present")
	}
	time.Sleep(time.Millisecond)

	m.Set(ctx, "fp-3", testEntry(3), 0)

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", m.Len())
	}
	if _, ok, _ := m.Get(ctx, "fp-2"); ok {
		t.Error("expected least recently used entry evicted")
	}
	if _, ok, _ := m.Get(ctx, "fp-1"); !ok {
		t.Error("expected recently used entry kept")
	}
	if _, ok, _ := m.Get(ctx, "fp-3"); !ok {
		t.Error("expected new entry present")
	}
}

func TestMemory_OverwriteDoesNotEvict(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()

	m.Set(ctx, "fp-1", testEntry(1), 0)
	m.Set(ctx, "fp-2", testEntry(2), 0)
	m.Set(ctx, "fp-1", testEntry(9), 0)

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", m.Len())
	}
	entry, ok, _ := m.Get(ctx, "fp-1")
	if !ok {
		t.Fatal("expected fp-1 present")
	}
	if got := entry.InSampleScores[domain.ObjectiveSharpe]; got != 9 {
		t.Errorf("expected overwritten value 9, got %v", got)
	}
}
