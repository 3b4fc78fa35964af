package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dancetonight/internal/app"
	"dancetonight/internal/config"
	"dancetonight/internal/eventsearch"
	"dancetonight/internal/eventsearch/core"
	"dancetonight/internal/logging"
	"dancetonight/internal/models"
	"dancetonight/internal/preferences"
)

func main() {
	presetFlag := flag.String("preset", "", "quick filter: tonight-social|beginner-classes|salsa|free")
	styleFlag := flag.String("style", "", "dance style, e.g. salsa")
	typeFlag := flag.String("type", "", "event type: social|lesson|workshop|festival|free")
	levelFlag := flag.String("level", "", "skill level for lessons and workshops")
	costFlag := flag.String("cost", "", "cost category: free|low|medium|high")
	dateFlag := flag.String("date", "", "tonight|tomorrow|YYYY-MM-DD")
	radiusFlag := flag.Int("radius", 0, "search radius in km")
	whereFlag := flag.String("where", "", "manual location, e.g. \"Austin, TX\"")
	latFlag := flag.Float64("lat", 0, "latitude of the searcher")
	lngFlag := flag.Float64("lng", 0, "longitude of the searcher")
	timeoutFlag := flag.Duration("timeout", 90*time.Second, "overall search timeout")
	quietFlag := flag.Bool("quiet", false, "do not print progress stages")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cfg.Logging.Output = "stderr"
	logger, cleanup, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	logger = logger.With("service", "dance-search")

	filters := models.DefaultFilters()
	if *presetFlag != "" {
		preset, ok := models.FindPreset(*presetFlag)
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown preset: %s\n", *presetFlag)
			os.Exit(2)
		}
		filters = preset.Apply(filters)
	}
	setIf(&filters.DanceStyle, *styleFlag)
	setIf(&filters.EventType, *typeFlag)
	setIf(&filters.SkillLevel, *levelFlag)
	setIf(&filters.CostCategory, *costFlag)
	if *dateFlag != "" {
		filters.Date = *dateFlag
	}
	if *radiusFlag > 0 {
		filters.Radius = *radiusFlag
	}
	filters.ManualLocationQuery = strings.TrimSpace(*whereFlag)
	filters = filters.Normalize()
	if err := preferences.NewValidator().Struct(filters); err != nil {
		fmt.Fprintf(os.Stderr, "invalid filters: %s\n", preferences.Describe(err))
		os.Exit(2)
	}

	req := eventsearch.Request{Filters: filters}
	if isFlagSet("lat") || isFlagSet("lng") {
		req.Location = &models.UserLocation{Latitude: *latFlag, Longitude: *lngFlag}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeoutFlag)
	defer cancel()

	pipeline, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup error: %v\n", err)
		os.Exit(1)
	}

	var progress core.ProgressFunc
	if !*quietFlag {
		progress = func(stage core.Stage) {
			fmt.Fprintf(os.Stderr, "> %s\n", stage)
		}
	}
	res := pipeline.Search.Search(ctx, req, progress)
	pipeline.Search.Wait()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	if res.Outcome != core.OutcomeOK {
		os.Exit(1)
	}
}

func setIf[T ~string](dst *T, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = T(v)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
