package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"dancetonight/internal/eventsearch"
	"dancetonight/internal/geocode"
	"dancetonight/internal/models"
	"dancetonight/internal/preferences"
)

// ReverseGeocoder names a coordinate pair.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lng float64) geocode.Place
}

// ForwardGeocoder resolves a free-text place.
type ForwardGeocoder interface {
	Search(ctx context.Context, query string, limit int) ([]geocode.Result, error)
}

type Deps struct {
	Search          *eventsearch.Orchestrator
	Filters         *preferences.Store
	Reverse         ReverseGeocoder
	Forward         ForwardGeocoder
	DefaultLocation models.UserLocation
	// DefaultSlot names the filter slot used when a request names none.
	DefaultSlot string
	Validator   *validator.Validate
	Logger      *slog.Logger
}

type Handler struct {
	search          *eventsearch.Orchestrator
	filters         *preferences.Store
	reverse         ReverseGeocoder
	forward         ForwardGeocoder
	defaultLocation models.UserLocation
	defaultSlot     string
	validator       *validator.Validate
	logger          *slog.Logger
	now             func() time.Time

	sessionsMu  sync.Mutex
	sessions    map[string]*sessionEntry
	maxSessions int
}

// maxSessions bounds the result slots kept in memory. Slots are client-named,
// so the least recently used one is dropped once the bound is reached.
const maxSessions = 256

type sessionEntry struct {
	session  *eventsearch.Session
	lastUsed time.Time
}

func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	v := deps.Validator
	if v == nil {
		v = preferences.NewValidator()
	}
	slot := strings.TrimSpace(deps.DefaultSlot)
	if slot == "" {
		slot = preferences.DefaultSlot
	}
	filters := deps.Filters
	if filters == nil {
		filters = preferences.NewStore(nil, v, logger)
	}
	return &Handler{
		search:          deps.Search,
		filters:         filters,
		reverse:         deps.Reverse,
		forward:         deps.Forward,
		defaultLocation: deps.DefaultLocation,
		defaultSlot:     slot,
		validator:       v,
		logger:          logger,
		now:             time.Now,
		sessions:        make(map[string]*sessionEntry),
		maxSessions:     maxSessions,
	}
}

// session returns the result slot for a filter slot, creating it when
// missing; a new search on the same slot supersedes the one in flight.
func (h *Handler) session(slot string) *eventsearch.Session {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()
	if e, ok := h.sessions[slot]; ok {
		e.lastUsed = h.now()
		return e.session
	}
	if len(h.sessions) >= h.maxSessions {
		h.evictSessionLocked()
	}
	s := eventsearch.NewSession(h.search)
	h.sessions[slot] = &sessionEntry{session: s, lastUsed: h.now()}
	return s
}

// existingSession looks a slot up without creating it.
func (h *Handler) existingSession(slot string) (*eventsearch.Session, bool) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()
	e, ok := h.sessions[slot]
	if !ok {
		return nil, false
	}
	e.lastUsed = h.now()
	return e.session, true
}

// evictSessionLocked drops the least recently used idle slot, or the least
// recently used one when every slot has a search running.
func (h *Handler) evictSessionLocked() {
	var victim, idle string
	var victimAt, idleAt time.Time
	for slot, e := range h.sessions {
		if victim == "" || e.lastUsed.Before(victimAt) {
			victim, victimAt = slot, e.lastUsed
		}
		if !e.session.Running() && (idle == "" || e.lastUsed.Before(idleAt)) {
			idle, idleAt = slot, e.lastUsed
		}
	}
	if idle != "" {
		victim = idle
	}
	if victim == "" {
		return
	}
	h.sessions[victim].session.Cancel()
	delete(h.sessions, victim)
	h.logger.Info("session_evicted", "slot", victim, "sessions", len(h.sessions))
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 8*time.Second)
}

func (h *Handler) loggerForRequest(r *http.Request) *slog.Logger {
	logger := h.logger
	if reqID := chimw.GetReqID(r.Context()); reqID != "" {
		logger = logger.With("request_id", reqID)
	}
	return logger
}

func (h *Handler) slotOrDefault(slot string) string {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return h.defaultSlot
	}
	return slot
}
