package eventsearch

import (
	"context"
	"sync"

	"dancetonight/internal/eventsearch/core"
)

// Session owns the single "current result" slot of one client. Starting a
// search cancels the one in flight, and a completion that was superseded while
// running is discarded instead of replacing a newer result.
type Session struct {
	orch *Orchestrator

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *Result
}

func NewSession(orch *Orchestrator) *Session {
	return &Session{orch: orch}
}

// Search runs a search and commits it unless a newer one started meanwhile or
// it was canceled. committed reports whether the result became current.
func (s *Session) Search(ctx context.Context, req Request, progress core.ProgressFunc) (res Result, committed bool) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	res = s.orch.Search(runCtx, req, progress)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.orch.logger.Info("search_superseded", "search_id", res.SearchID, "generation", gen, "current_generation", s.generation)
		res.Outcome = core.OutcomeSuperseded
		return res, false
	}
	s.cancel = nil
	if res.Outcome == core.OutcomeCanceled {
		return res, false
	}
	snapshot := res
	s.current = &snapshot
	return res, true
}

// Current returns the last committed result.
func (s *Session) Current() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Result{}, false
	}
	return *s.current, true
}

// Running reports whether a search is in flight.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cancel stops the search in flight, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
