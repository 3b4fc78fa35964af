package eventsearch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/models"
)

func TestSessionCommitsLatest(t *testing.T) {
	s := NewSession(newTestOrchestrator(&stubProvider{text: salsaResponse}))
	_, ok := s.Current()
	assert.False(t, ok)

	loc := &models.UserLocation{Latitude: 37.7749, Longitude: -122.4194}
	res, committed := s.Search(context.Background(), Request{Filters: models.DefaultFilters(), Location: loc}, nil)
	assert.True(t, committed)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, res.SearchID, current.SearchID)
	assert.Len(t, current.Events, 1)
}

// gatedProvider blocks its first call until that call's context ends and
// answers every later call at once.
type gatedProvider struct {
	calls   int32
	entered chan struct{}
}

func (p *gatedProvider) Search(ctx context.Context, _ string) (*core.ProviderResponse, error) {
	if atomic.AddInt32(&p.calls, 1) == 1 {
		close(p.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &core.ProviderResponse{Text: "[]"}, nil
}

func TestSessionDiscardsSupersededSearch(t *testing.T) {
	provider := &gatedProvider{entered: make(chan struct{})}
	s := NewSession(newTestOrchestrator(provider))
	loc := &models.UserLocation{Latitude: 37.7749, Longitude: -122.4194}

	type outcome struct {
		res       Result
		committed bool
	}
	first := make(chan outcome, 1)
	go func() {
		res, committed := s.Search(context.Background(), Request{Filters: models.DefaultFilters(), Location: loc}, nil)
		first <- outcome{res, committed}
	}()

	select {
	case <-provider.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("first search never reached the provider")
	}

	second, committed := s.Search(context.Background(), Request{Filters: models.DefaultFilters(), Location: loc}, nil)
	assert.True(t, committed)
	assert.Equal(t, core.OutcomeOK, second.Outcome)

	var got outcome
	select {
	case got = <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first search did not finish")
	}
	assert.False(t, got.committed)
	assert.Equal(t, core.OutcomeSuperseded, got.res.Outcome)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, core.OutcomeOK, current.Outcome)
}

func TestSessionCancel(t *testing.T) {
	slow := &stubProvider{block: make(chan struct{})}
	s := NewSession(newTestOrchestrator(slow))
	loc := &models.UserLocation{Latitude: 1, Longitude: 1}

	done := make(chan bool, 1)
	progress := func(st core.Stage) {
		if st == core.StageScanningWebsites {
			s.Cancel()
		}
	}
	go func() {
		_, committed := s.Search(context.Background(), Request{Filters: models.DefaultFilters(), Location: loc}, progress)
		done <- committed
	}()
	select {
	case committed := <-done:
		assert.False(t, committed)
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not stop the search")
	}
	_, ok := s.Current()
	assert.False(t, ok)
}
