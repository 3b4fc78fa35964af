package preferences

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancetonight/internal/logging"
	"dancetonight/internal/models"
)

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingBackend) Put(context.Context, string, []byte) error   { return f.err }

func newTestStore(backend Backend) *Store {
	return NewStore(backend, nil, logging.Discard())
}

func TestLoadDefaultsWhenEmpty(t *testing.T) {
	store := newTestStore(NewMemoryBackend())
	assert.Equal(t, models.DefaultFilters(), store.Load(context.Background(), ""))
}

func TestSaveThenLoad(t *testing.T) {
	backend := NewMemoryBackend()
	store := newTestStore(backend)
	filters := models.Filters{
		DanceStyle:          models.DanceStyleBachata,
		EventType:           models.EventTypeLesson,
		SkillLevel:          models.SkillLevelBeginner,
		CostCategory:        models.CostLow,
		Date:                "2026-05-01",
		Radius:              50,
		ManualLocationQuery: "Madrid",
	}
	require.NoError(t, store.Save(context.Background(), "", filters))
	assert.Equal(t, filters, store.Load(context.Background(), DefaultSlot))
	assert.Equal(t, models.DefaultFilters(), store.Load(context.Background(), "other"))
}

func TestSaveRejectsInvalidFilters(t *testing.T) {
	store := newTestStore(NewMemoryBackend())
	filters := models.DefaultFilters()
	filters.DanceStyle = "foxtrot"
	filters.Radius = 0

	err := store.Save(context.Background(), "", filters)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Reason, "DanceStyle: dancestyle")
	assert.Contains(t, verr.Reason, "Radius: gt")
}

func TestLoadFallsBackOnBadPayloads(t *testing.T) {
	payloads := map[string]string{
		"not json":        `{"danceStyle":`,
		"missing key":     `{"danceStyle":"salsa","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"tonight"}`,
		"invalid value":   `{"danceStyle":"salsa","eventType":"rave","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":25}`,
		"invalid date":    `{"danceStyle":"salsa","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"someday","radius":25}`,
		"wrong type":      `{"danceStyle":"salsa","eventType":"social","skillLevel":"all levels","costCategory":"all costs","date":"tonight","radius":"far"}`,
		"array not shape": `[]`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			backend := NewMemoryBackend()
			require.NoError(t, backend.Put(context.Background(), DefaultSlot, []byte(payload)))
			assert.Equal(t, models.DefaultFilters(), newTestStore(backend).Load(context.Background(), DefaultSlot))
		})
	}
}

func TestLoadAcceptsCompletePayload(t *testing.T) {
	backend := NewMemoryBackend()
	payload := `{"danceStyle":"salsa","eventType":"social","skillLevel":"all levels","costCategory":"free","date":"tomorrow","radius":10}`
	require.NoError(t, backend.Put(context.Background(), DefaultSlot, []byte(payload)))

	got := newTestStore(backend).Load(context.Background(), DefaultSlot)
	assert.Equal(t, models.DanceStyleSalsa, got.DanceStyle)
	assert.Equal(t, models.CostFree, got.CostCategory)
	assert.Equal(t, "tomorrow", got.Date)
	assert.Equal(t, 10, got.Radius)
}

func TestBackendErrors(t *testing.T) {
	store := newTestStore(failingBackend{err: errors.New("db down")})
	assert.Equal(t, models.DefaultFilters(), store.Load(context.Background(), ""))
	err := store.Save(context.Background(), "", models.DefaultFilters())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestValidatorLocation(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.Struct(models.UserLocation{Latitude: -90, Longitude: 180}))
	assert.Error(t, v.Struct(models.UserLocation{Latitude: 91}))
	assert.Error(t, v.Struct(models.UserLocation{Longitude: -181}))
}
