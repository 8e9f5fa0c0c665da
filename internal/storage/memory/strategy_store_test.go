package memory

import (
	"context"
	"errors"
	"testing"

	"defi-strategy-lab/internal/domain"
	"defi-strategy-lab/internal/storage"
)

func testStrategy(id string, createdAtMs int64) *domain.Strategy {
	return &domain.Strategy{
		ID:          id,
		Name:        "eth momentum",
		CreatedAtMs: createdAtMs,
		Blocks: []domain.Block{
			{
				ID:         "entry",
				Kind:       domain.KindPriceTrigger,
				Category:   domain.CategoryEntry,
				InputToken: "ETH",
				Comparator: domain.CmpGTE,
				Params:     map[string]float64{"target": 3000},
			},
		},
	}
}

func TestStrategyStore_InsertAndGet(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStrategy("strat1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "strat1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "eth momentum" {
		t.Errorf("Name mismatch: got %q, want %q", got.Name, "eth momentum")
	}
	if len(got.Blocks) != 1 || got.Blocks[0].ID != "entry" {
		t.Errorf("Blocks not preserved: got %+v", got.Blocks)
	}
}

func TestStrategyStore_DuplicateKey(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStrategy("strat1", 1000)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, testStrategy("strat1", 2000))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestStrategyStore_NotFound(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStrategyStore_ListOrdersByCreation(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	for _, s := range []*domain.Strategy{
		testStrategy("newer", 3000),
		testStrategy("older", 1000),
		testStrategy("middle", 2000),
	} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert %s failed: %v", s.ID, err)
		}
	}

	got, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 strategies, got %d", len(got))
	}
	if got[0].ID != "older" || got[1].ID != "middle" || got[2].ID != "newer" {
		t.Errorf("Wrong order: got %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestStrategyStore_ReturnsCopies(t *testing.T) {
	store := NewStrategyStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testStrategy("strat1", 1000)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	first, err := store.GetByID(ctx, "strat1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	first.Blocks[0].Params["target"] = 9999

	second, err := store.GetByID(ctx, "strat1")
	if err != nil {
		t.Fatalf("Second GetByID failed: %v", err)
	}
	if second.Blocks[0].Params["target"] != 3000 {
		t.Errorf("Stored strategy mutated through returned copy: got %f", second.Blocks[0].Params["target"])
	}
}
