package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dancetonight/internal/app"
	"dancetonight/internal/config"
	"dancetonight/internal/db"
	"dancetonight/internal/http/handlers"
	"dancetonight/internal/http/middleware"
	"dancetonight/internal/logging"
	"dancetonight/internal/metrics"
	"dancetonight/internal/preferences"
	"dancetonight/internal/rate"
	"dancetonight/internal/repository"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "api")
	slog.SetDefault(logger)

	ctx := context.Background()
	validate := preferences.NewValidator()

	var backend preferences.Backend = preferences.NewMemoryBackend()
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db error", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		repo := repository.New(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("db schema error", "error", err)
			os.Exit(1)
		}
		backend = preferences.NewPostgresBackend(repo)
	} else {
		logger.Warn("filters_in_memory", "hint", "set DATABASE_URL to persist filters")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	pipeline, err := app.Build(ctx, cfg, m, logger)
	if err != nil {
		logger.Error("pipeline error", "error", err)
		os.Exit(1)
	}

	h := handlers.New(handlers.Deps{
		Search:          pipeline.Search,
		Filters:         preferences.NewStore(backend, validate, logger),
		Reverse:         pipeline.Reverse,
		Forward:         pipeline.Forward,
		DefaultLocation: pipeline.DefaultLocation,
		DefaultSlot:     cfg.Search.FilterSlot,
		Validator:       validate,
		Logger:          logger,
	})
	searchLimiter := rate.NewWindowLimiter(cfg.Search.RateLimitPerMinute, time.Minute)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", m.Handler())

	// Searches run for as long as the provider takes; only the cheap routes
	// get the request timeout.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(searchLimiter))
		r.Post("/events/search", h.SearchEvents)
		r.Get("/events/search/stream", h.SearchEventsStream)
	})

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/events/search/latest", h.LatestSearch)
		r.Delete("/events/search", h.CancelSearch)
		r.Get("/vocabularies", h.Vocabularies)
		r.Get("/filters", h.GetFilters)
		r.Put("/filters", h.PutFilters)
		r.Get("/filters/{slot}", h.GetFilters)
		r.Put("/filters/{slot}", h.PutFilters)
		r.Get("/geocode/reverse", h.ReverseGeocode)
		r.Get("/geocode/search", h.SearchPlaces)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown", "service", "api")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	pipeline.Search.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
