package eventsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"dancetonight/internal/archive"
	"dancetonight/internal/eventsearch/assemble"
	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/eventsearch/extract"
	"dancetonight/internal/eventsearch/prompt"
	"dancetonight/internal/geolocate"
	"dancetonight/internal/metrics"
	"dancetonight/internal/models"
)

const (
	NoticeMissingCredentials = "Gemini API Key is missing. Please configure it to fetch live events. Showing no events."
	NoticeProviderError      = "Failed to fetch dance events. Please try again later."
	NoticeCanceled           = "Search was canceled."

	archiveTimeout = 15 * time.Second
)

// DefaultPacing reproduces the step-by-step feel of the interactive client.
var DefaultPacing = map[core.Stage]time.Duration{
	core.StageDetectingLocation:      800 * time.Millisecond,
	core.StageInitializingProvider:   600 * time.Millisecond,
	core.StageSettingLocationContext: 700 * time.Millisecond,
	core.StageFilteringDanceStyle:    500 * time.Millisecond,
	core.StageFilteringDate:          400 * time.Millisecond,
	core.StageSearchingStudios:       1200 * time.Millisecond,
	core.StageCheckingSocialMedia:    1000 * time.Millisecond,
	core.StageScanningWebsites:       800 * time.Millisecond,
	core.StageFilteringEventType:     600 * time.Millisecond,
	core.StageProcessingResults:      500 * time.Millisecond,
	core.StageOrganizingByDistance:   400 * time.Millisecond,
	core.StageFinalizing:             300 * time.Millisecond,
}

// Request is one search's input.
type Request struct {
	Filters models.Filters
	// Location is the caller's known position, if any.
	Location *models.UserLocation
	// Locator is consulted only when there is neither a manual location query nor a Location.
	Locator geolocate.Locator
}

// Result is the outcome of one search. Events and Sources are never nil.
type Result struct {
	SearchID       string                   `json:"searchId"`
	Events         []models.DanceEvent      `json:"events"`
	Sources        []models.GroundingSource `json:"sources"`
	Stages         []core.Stage             `json:"stages"`
	Outcome        core.Outcome             `json:"outcome"`
	Notice         string                   `json:"notice,omitempty"`
	Location       *models.UserLocation     `json:"location,omitempty"`
	LocationStatus string                   `json:"locationStatus,omitempty"`
	Strategy       string                   `json:"extractionStrategy,omitempty"`
}

// Enricher adds missing event coordinates.
type Enricher interface {
	Enrich(ctx context.Context, events []models.DanceEvent) []models.DanceEvent
}

// Archiver persists a finished search.
type Archiver interface {
	Put(ctx context.Context, rec archive.Record) (string, error)
}

// Orchestrator runs the search pipeline: prompt, provider call, extraction,
// assembly, distance ordering. Progress is reported through a callback and the
// terminal stage is emitted exactly once on every path.
type Orchestrator struct {
	provider        core.Provider
	prompts         *prompt.Builder
	extractor       *extract.Extractor
	assembler       *assemble.Assembler
	enricher        Enricher
	archive         Archiver
	metrics         *metrics.Metrics
	pacing          map[core.Stage]time.Duration
	defaultLocation models.UserLocation
	newID           func() string
	now             func() time.Time
	logger          *slog.Logger

	pending sync.WaitGroup
}

type Option func(*Orchestrator)

func WithPromptBuilder(b *prompt.Builder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.prompts = b
		}
	}
}

func WithDateNormalizer(d *extract.DateNormalizer) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.assembler = assemble.New(d, o.logger)
		}
	}
}

func WithEnricher(e Enricher) Option {
	return func(o *Orchestrator) { o.enricher = e }
}

func WithArchive(a Archiver) Option {
	return func(o *Orchestrator) { o.archive = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPacing sets the delay after each stage. Nil disables pacing.
func WithPacing(p map[core.Stage]time.Duration) Option {
	return func(o *Orchestrator) { o.pacing = p }
}

func WithDefaultLocation(loc models.UserLocation) Option {
	return func(o *Orchestrator) { o.defaultLocation = loc }
}

func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New builds an orchestrator. provider may be nil, which behaves like a
// provider without credentials.
func New(provider core.Provider, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		provider:        provider,
		prompts:         prompt.NewBuilder(),
		extractor:       extract.NewExtractor(logger),
		assembler:       assemble.New(nil, logger),
		defaultLocation: models.UserLocation{Latitude: 37.7749, Longitude: -122.4194},
		newID:           func() string { return uuid.NewString() },
		now:             time.Now,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Wait blocks until background archive uploads have finished.
func (o *Orchestrator) Wait() {
	o.pending.Wait()
}

// Search runs one search. It never returns an error: failures are reported
// through Result.Outcome and Result.Notice with empty events and sources.
func (o *Orchestrator) Search(ctx context.Context, req Request, progress core.ProgressFunc) Result {
	run := &searchRun{
		o:        o,
		progress: progress,
		started:  o.now(),
		result: Result{
			SearchID: o.newID(),
			Events:   []models.DanceEvent{},
			Sources:  []models.GroundingSource{},
			Stages:   make([]core.Stage, 0, len(core.Stages)),
		},
		filters: req.Filters.Normalize(),
	}
	run.logger = o.logger.With("search_id", run.result.SearchID)
	run.execute(ctx, req)
	return run.result
}

type searchRun struct {
	o        *Orchestrator
	progress core.ProgressFunc
	logger   *slog.Logger
	started  time.Time
	filters  models.Filters
	location *models.UserLocation
	prompt   string
	rawText  string
	result   Result
}

func (r *searchRun) execute(ctx context.Context, req Request) {
	defer r.complete()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("search_panic", "panic", fmt.Sprint(rec))
			r.fail(core.OutcomeProviderError, NoticeProviderError)
		}
	}()

	r.location = req.Location
	if r.filters.ManualLocationQuery == "" && r.location == nil {
		if !r.stage(ctx, core.StageDetectingLocation) {
			return
		}
		status := geolocate.Resolve(ctx, req.Locator, r.o.defaultLocation, r.logger)
		loc := status.Location
		r.location = &loc
		r.result.LocationStatus = status.Message
	}
	r.result.Location = r.location
	if r.result.LocationStatus == "" {
		r.result.LocationStatus = LocationMessage(r.filters, r.location)
	}

	if !r.stage(ctx, core.StageInitializingProvider) {
		return
	}
	if !providerReady(r.o.provider) {
		r.logger.Error("search_no_credentials")
		r.fail(core.OutcomeNoCredentials, NoticeMissingCredentials)
		return
	}

	for _, s := range []core.Stage{core.StageSettingLocationContext, core.StageFilteringDanceStyle, core.StageFilteringDate} {
		if !r.stage(ctx, s) {
			return
		}
	}
	r.prompt = r.o.prompts.Build(r.filters, r.location)
	r.logger.Debug("search_prompt", "prompt", r.prompt)

	for _, s := range []core.Stage{core.StageSearchingStudios, core.StageCheckingSocialMedia} {
		if !r.stage(ctx, s) {
			return
		}
	}
	r.emit(core.StageScanningWebsites)
	resp, err := r.callProvider(ctx)
	if err != nil {
		r.providerFailed(ctx, err)
		return
	}
	if !r.pace(ctx, core.StageScanningWebsites) {
		return
	}
	r.rawText = resp.Text

	if !r.stage(ctx, core.StageFilteringEventType) {
		return
	}
	r.emit(core.StageProcessingResults)
	records, strategy := r.o.extractor.ExtractWithStrategy(resp.Text)
	r.result.Strategy = strategy
	r.o.metrics.ObserveExtraction(strategy)
	events := r.o.assembler.Events(records)
	if r.o.enricher != nil {
		events = r.enrich(ctx, events)
	}
	if !r.pace(ctx, core.StageProcessingResults) {
		return
	}

	if !r.stage(ctx, core.StageOrganizingByDistance) {
		return
	}
	filtered := assemble.ApplyDistance(events, r.location, r.filters.Radius)
	r.o.metrics.ObserveEvents(len(filtered), len(events)-len(filtered))

	sources := assemble.Sources(resp.Citations)
	if !r.stage(ctx, core.StageFinalizing) {
		return
	}
	r.result.Events = filtered
	r.result.Sources = sources
	r.result.Outcome = core.OutcomeOK
	r.logger.Info("search_finished", "records", len(records), "events", len(filtered), "sources", len(sources), "strategy", strategy)
}

func (r *searchRun) callProvider(ctx context.Context) (*core.ProviderResponse, error) {
	started := time.Now()
	resp, err := r.o.provider.Search(ctx, r.prompt)
	status := "ok"
	var perr *core.ProviderError
	switch {
	case err == nil:
	case errors.As(err, &perr) && perr.Status > 0:
		status = fmt.Sprintf("%d", perr.Status)
	default:
		status = "error"
	}
	r.o.metrics.ObserveProvider(status, time.Since(started))
	if err == nil && resp == nil {
		resp = &core.ProviderResponse{}
	}
	return resp, err
}

func (r *searchRun) providerFailed(ctx context.Context, err error) {
	switch {
	case errors.Is(err, core.ErrMissingCredentials):
		r.logger.Error("search_no_credentials", "error", err)
		r.fail(core.OutcomeNoCredentials, NoticeMissingCredentials)
	case ctx.Err() != nil:
		r.logger.Info("search_canceled", "error", err)
		r.fail(core.OutcomeCanceled, NoticeCanceled)
	default:
		r.logger.Error("search_provider_failed", "error", err)
		r.fail(core.OutcomeProviderError, NoticeProviderError)
	}
}

func (r *searchRun) enrich(ctx context.Context, events []models.DanceEvent) []models.DanceEvent {
	missing := 0
	for _, e := range events {
		if !e.Location.HasCoordinates() {
			missing++
		}
	}
	if missing == 0 {
		return events
	}
	out := r.o.enricher.Enrich(ctx, events)
	found := 0
	for _, e := range out {
		if e.Location.HasCoordinates() {
			found++
		}
	}
	found -= len(events) - missing
	r.o.metrics.ObserveEnrichment("found", found)
	r.o.metrics.ObserveEnrichment("missed", missing-found)
	return out
}

// stage emits s and waits out its pacing delay. It returns false when the
// search was canceled meanwhile.
func (r *searchRun) stage(ctx context.Context, s core.Stage) bool {
	r.emit(s)
	return r.pace(ctx, s)
}

func (r *searchRun) emit(s core.Stage) {
	r.result.Stages = append(r.result.Stages, s)
	if r.progress != nil {
		r.progress(s)
	}
}

func (r *searchRun) pace(ctx context.Context, s core.Stage) bool {
	if err := ctx.Err(); err != nil {
		r.fail(core.OutcomeCanceled, NoticeCanceled)
		return false
	}
	d := r.o.pacing[s]
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		r.fail(core.OutcomeCanceled, NoticeCanceled)
		return false
	case <-t.C:
		return true
	}
}

func (r *searchRun) fail(outcome core.Outcome, notice string) {
	r.result.Outcome = outcome
	r.result.Notice = notice
	r.result.Events = []models.DanceEvent{}
	r.result.Sources = []models.GroundingSource{}
}

func (r *searchRun) complete() {
	if r.result.Outcome == "" {
		r.fail(core.OutcomeProviderError, NoticeProviderError)
	}
	r.emit(core.StageComplete)
	r.o.metrics.ObserveSearch(string(r.result.Outcome), r.o.now().Sub(r.started))
	r.archive()
}

func (r *searchRun) archive() {
	if r.o.archive == nil || r.prompt == "" {
		return
	}
	rec := archive.Record{
		SearchID:  r.result.SearchID,
		CreatedAt: r.started.UTC(),
		Filters:   r.filters,
		Location:  r.location,
		Prompt:    r.prompt,
		RawText:   r.rawText,
		Strategy:  r.result.Strategy,
		Outcome:   string(r.result.Outcome),
		Events:    r.result.Events,
		Sources:   r.result.Sources,
	}
	archiver, m, logger := r.o.archive, r.o.metrics, r.logger
	r.o.pending.Add(1)
	go func() {
		defer r.o.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		key, err := archiver.Put(ctx, rec)
		if err != nil {
			m.ObserveArchive("error")
			logger.Warn("archive_failed", "error", err)
			return
		}
		m.ObserveArchive("ok")
		logger.Debug("archive_stored", "key", key)
	}()
}

func providerReady(p core.Provider) bool {
	if p == nil {
		return false
	}
	if c, ok := p.(core.CredentialedProvider); ok {
		return c.HasCredentials()
	}
	return true
}

// LocationMessage describes which location the search is centred on.
func LocationMessage(filters models.Filters, loc *models.UserLocation) string {
	switch {
	case filters.ManualLocationQuery != "":
		return "Searching near: " + filters.ManualLocationQuery
	case loc != nil:
		return fmt.Sprintf("Using your current location (Lat: %.2f, Lon: %.2f)", loc.Latitude, loc.Longitude)
	default:
		return "Location unknown. Using default search parameters. Enter a location manually."
	}
}
