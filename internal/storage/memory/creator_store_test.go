package memory

import (
	"context"
	"errors"
	"testing"

	"solana-meme-radar/internal/domain"
	"solana-meme-radar/internal/storage"
)

func TestCreatorStore_UpsertAndGet(t *testing.T) {
	store := NewCreatorStore()
	ctx := context.Background()

	lifespan := 12.5
	p := &domain.CreatorProfile{
		Address:          "CreatorA",
		TokensLaunched:   4,
		Rugs:             3,
		RugRatio:         0.75,
		AvgLifespanHours: &lifespan,
		UpdatedAt:        1000,
	}
	if err := store.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "CreatorA")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.RugRatio != 0.75 || got.Rugs != 3 {
		t.Errorf("Profile mismatch: %+v", got)
	}

	// Replays overwrite stats.
	p.Rugs = 4
	p.RugRatio = 0.8
	if err := store.Upsert(ctx, p); err != nil {
		t.Fatalf("Upsert replay failed: %v", err)
	}
	got, err = store.GetByAddress(ctx, "CreatorA")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.RugRatio != 0.8 {
		t.Errorf("RugRatio not replaced: %v", got.RugRatio)
	}
}

func TestCreatorStore_ApplyStats(t *testing.T) {
	store := NewCreatorStore()
	ctx := context.Background()

	// Unknown creator: the patch inserts a blank profile first.
	if err := store.ApplyStats(ctx, "CreatorB", domain.CreatorStatsPatch{LaunchDelta: 1}); err != nil {
		t.Fatalf("ApplyStats failed: %v", err)
	}
	got, err := store.GetByAddress(ctx, "CreatorB")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.TokensLaunched != 1 {
		t.Fatalf("TokensLaunched should be 1, got %d", got.TokensLaunched)
	}

	// Deltas accumulate, nil fields keep their stored value.
	ratio := 0.4
	if err := store.ApplyStats(ctx, "CreatorB", domain.CreatorStatsPatch{RugRatio: &ratio, LaunchDelta: 2}); err != nil {
		t.Fatalf("ApplyStats failed: %v", err)
	}
	if err := store.ApplyStats(ctx, "CreatorB", domain.CreatorStatsPatch{LaunchDelta: 1}); err != nil {
		t.Fatalf("ApplyStats failed: %v", err)
	}
	got, err = store.GetByAddress(ctx, "CreatorB")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}
	if got.TokensLaunched != 4 {
		t.Errorf("TokensLaunched should be 4, got %d", got.TokensLaunched)
	}
	if got.RugRatio != 0.4 {
		t.Errorf("RugRatio should survive a nil patch, got %v", got.RugRatio)
	}
}

func TestCreatorStore_NotFound(t *testing.T) {
	store := NewCreatorStore()

	_, err := store.GetByAddress(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
