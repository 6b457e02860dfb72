package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFileStore_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	store := NewFileStore(path, zerolog.Nop())

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	saved := State{
		Indicators: map[string]IndicatorSnapshot{
			IndicatorRateFX: {
				Value:     json.RawMessage(`{"buy":"1450.00","sell":"1490.00"}`),
				Source:    "https://example.com/fx",
				UpdatedAt: now,
				Status:    StatusOK,
			},
			IndicatorRepoRates: {
				Value:     json.RawMessage(`["38.5%","39.1%","40.0%"]`),
				Source:    "https://example.com/repo",
				UpdatedAt: now.Add(time.Minute),
				Status:    StatusFallback,
			},
		},
	}

	if err := store.Save(context.Background(), saved); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(loaded.Indicators) != len(saved.Indicators) {
		t.Fatalf("expected %d indicators, got %d", len(saved.Indicators), len(loaded.Indicators))
	}

	fx := loaded.Indicators[IndicatorRateFX]
	if fx.Status != StatusOK {
		t.Fatalf("unexpected fx status: %s", fx.Status)
	}
	if fx.Source != "https://example.com/fx" {
		t.Fatalf("unexpected fx source: %s", fx.Source)
	}
	if !fx.UpdatedAt.Equal(now) {
		t.Fatalf("unexpected fx timestamp: %s", fx.UpdatedAt)
	}
	if string(fx.Value) != `{"buy":"1450.00","sell":"1490.00"}` {
		t.Fatalf("unexpected fx value: %s", fx.Value)
	}

	repo := loaded.Indicators[IndicatorRepoRates]
	if repo.Status != StatusFallback {
		t.Fatalf("unexpected repo status: %s", repo.Status)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "missing.json")
	store := NewFileStore(path, zerolog.Nop())

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(loaded.Indicators) != 0 {
		t.Fatalf("expected empty state, got %v", loaded.Indicators)
	}
}

func TestFileStore_CorruptFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := os.WriteFile(path, []byte("{not-json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}

	if len(loaded.Indicators) != 0 {
		t.Fatalf("expected empty state, got %v", loaded.Indicators)
	}
}

func TestFileStore_CreatesNestedDir(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "state.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := store.Save(context.Background(), Default()); err != nil {
		t.Fatalf("save state: %v", err)
	}

	loaded, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if loaded.Indicators[IndicatorWalletYields].Status != StatusInitial {
		t.Fatalf("unexpected status: %s", loaded.Indicators[IndicatorWalletYields].Status)
	}
}
