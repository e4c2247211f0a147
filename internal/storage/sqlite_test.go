package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"log/slog"
)

func TestSQLiteStore(t *testing.T) {
	// Create temp directory for test database
	tmpDir, err := os.MkdirTemp("", "contraverify-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Run migrations
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Migrations are idempotent
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "etherscan-api-key")
		if err != ErrNotFound {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.Set(ctx, "etherscan-api-key", "KEY-1"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, err := store.Get(ctx, "etherscan-api-key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "KEY-1" {
			t.Errorf("Get() = %v, want KEY-1", got)
		}
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		if err := store.Set(ctx, "etherscan-api-key", "KEY-2"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, err := store.Get(ctx, "etherscan-api-key")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "KEY-2" {
			t.Errorf("Get() = %v, want KEY-2", got)
		}
	})

	t.Run("EmptyValueIsStored", func(t *testing.T) {
		if err := store.Set(ctx, "empty", ""); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := store.Get(ctx, "empty")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "" {
			t.Errorf("Get() = %q, want empty", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "etherscan-api-key"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := store.Get(ctx, "etherscan-api-key"); err != ErrNotFound {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
		if err := store.Delete(ctx, "etherscan-api-key"); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		if err := store.Set(ctx, "", "x"); err != ErrInvalidKey {
			t.Errorf("Set() error = %v, want ErrInvalidKey", err)
		}
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "settings.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := store.Set(ctx, "etherscan-api-key", "persisted"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(dbPath, logger)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "etherscan-api-key")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "persisted" {
		t.Errorf("Get() = %v, want persisted", got)
	}
}
