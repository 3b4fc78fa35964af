package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// FilterSlot is one persisted filter payload.
type FilterSlot struct {
	Slot      string
	Payload   []byte
	UpdatedAt time.Time
}

// GetFilterSlot returns the stored payload for slot, or ErrNotFound.
func (r *Repository) GetFilterSlot(ctx context.Context, slot string) (FilterSlot, error) {
	row := r.pool.QueryRow(ctx, `SELECT slot, payload::text, updated_at FROM filter_slots WHERE slot = $1`, slot)
	var out FilterSlot
	var payload string
	if err := row.Scan(&out.Slot, &payload, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FilterSlot{}, ErrNotFound
		}
		return FilterSlot{}, err
	}
	out.Payload = []byte(payload)
	return out, nil
}

// PutFilterSlot stores payload under slot; the last write wins.
func (r *Repository) PutFilterSlot(ctx context.Context, slot string, payload []byte) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO filter_slots (slot, payload, updated_at)
VALUES ($1, $2::jsonb, now())
ON CONFLICT (slot) DO UPDATE SET
	payload = EXCLUDED.payload,
	updated_at = now();`, slot, string(payload))
	return err
}
