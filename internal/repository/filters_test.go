package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"dancetonight/internal/db"
)

// TestFilterSlotRoundTrip verifies the upsert keeps only the last payload.
func TestFilterSlotRoundTrip(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		t.Skipf("db connection failed: %v", err)
	}
	defer pool.Close()

	repo := New(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	slot := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM filter_slots WHERE slot = $1`, slot)
	})

	if _, err := repo.GetFilterSlot(ctx, slot); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.PutFilterSlot(ctx, slot, []byte(`{"radius":5}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := repo.PutFilterSlot(ctx, slot, []byte(`{"radius":10}`)); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, err := repo.GetFilterSlot(ctx, slot)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Payload) != `{"radius": 10}` {
		t.Fatalf("unexpected payload: %s", got.Payload)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}
}
