package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"dancetonight/internal/models"
	"dancetonight/internal/repository"
)

// DefaultSlot is the slot used when the caller names none.
const DefaultSlot = "danceTonightFilters"

// Backend stores raw filter payloads by slot name.
type Backend interface {
	Get(ctx context.Context, slot string) ([]byte, error)
	Put(ctx context.Context, slot string, payload []byte) error
}

// ErrNotFound is returned by backends for an empty slot.
var ErrNotFound = errors.New("filter slot not found")

// Store persists the last used filters. Reads never fail: a missing,
// unreadable or invalid payload yields the defaults.
type Store struct {
	backend  Backend
	validate *validator.Validate
	logger   *slog.Logger
}

func NewStore(backend Backend, validate *validator.Validate, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if backend == nil {
		backend = NewMemoryBackend()
	}
	return &Store{backend: backend, validate: validate, logger: logger}
}

// Load returns the filters stored in slot, or the defaults.
func (s *Store) Load(ctx context.Context, slot string) models.Filters {
	slot = slotName(slot)
	payload, err := s.backend.Get(ctx, slot)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("filters_load_failed", "slot", slot, "error", err)
		}
		return models.DefaultFilters()
	}
	filters, err := s.decode(payload)
	if err != nil {
		s.logger.Warn("filters_payload_invalid", "slot", slot, "error", err)
		return models.DefaultFilters()
	}
	return filters
}

// Save validates and stores filters in slot.
func (s *Store) Save(ctx context.Context, slot string, filters models.Filters) error {
	if err := s.validate.Struct(filters); err != nil {
		return &ValidationError{Reason: Describe(err)}
	}
	payload, err := json.Marshal(filters)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	if err := s.backend.Put(ctx, slotName(slot), payload); err != nil {
		return fmt.Errorf("store filters: %w", err)
	}
	return nil
}

// decode requires every field of the default shape to be present and valid.
func (s *Store) decode(payload []byte) (models.Filters, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(payload, &shape); err != nil {
		return models.Filters{}, err
	}
	for _, key := range []string{"danceStyle", "eventType", "skillLevel", "costCategory", "date", "radius"} {
		if _, ok := shape[key]; !ok {
			return models.Filters{}, fmt.Errorf("missing field %q", key)
		}
	}
	var filters models.Filters
	if err := json.Unmarshal(payload, &filters); err != nil {
		return models.Filters{}, err
	}
	if err := s.validate.Struct(filters); err != nil {
		return models.Filters{}, &ValidationError{Reason: Describe(err)}
	}
	return filters, nil
}

// ValidationError reports filters that do not satisfy the stored shape.
type ValidationError struct {
	Reason string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e == nil {
		return "invalid filters"
	}
	return "invalid filters: " + e.Reason
}

func slotName(slot string) string {
	if slot == "" {
		return DefaultSlot
	}
	return slot
}

// MemoryBackend keeps payloads in process memory.
type MemoryBackend struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{slots: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(_ context.Context, slot string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.slots[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

func (m *MemoryBackend) Put(_ context.Context, slot string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = append([]byte(nil), payload...)
	return nil
}

// PostgresBackend stores payloads in the filter_slots table.
type PostgresBackend struct {
	repo *repository.Repository
}

func NewPostgresBackend(repo *repository.Repository) *PostgresBackend {
	return &PostgresBackend{repo: repo}
}

func (p *PostgresBackend) Get(ctx context.Context, slot string) ([]byte, error) {
	row, err := p.repo.GetFilterSlot(ctx, slot)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.Payload, nil
}

func (p *PostgresBackend) Put(ctx context.Context, slot string, payload []byte) error {
	return p.repo.PutFilterSlot(ctx, slot, payload)
}
