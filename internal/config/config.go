package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string
	Gemini      GeminiConfig
	Search      SearchConfig
	Geocode     GeocodeConfig
	S3          S3Config
	Logging     LoggingConfig
}

type GeminiConfig struct {
	APIKey   string
	Model    string
	Endpoint string
	// Timeout of zero leaves provider calls unbounded.
	Timeout      time.Duration
	RateLimitRPS float64
}

type SearchConfig struct {
	DefaultLat   float64
	DefaultLng   float64
	DefaultLabel string
	Timezone     string
	RegionsFile  string
	Pacing       bool
	// EnrichCoordinates enables page and geocoder lookups for events without coordinates.
	EnrichCoordinates bool
	FilterSlot        string
	// RateLimitPerMinute caps search requests per client IP; zero disables it.
	RateLimitPerMinute int
}

type GeocodeConfig struct {
	NominatimEndpoint string
	ReverseEndpoint   string
	RateLimitRPS      float64
}

type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Prefix    string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
	// Output is stdout or stderr.
	Output string
}

// Load reads the configuration from the environment. Values from a .env file
// in the working directory are applied first without overriding real variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	cfg := &Config{
		Env:         getenv("APP_ENV", "dev"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Gemini: GeminiConfig{
			APIKey:       getenv("GEMINI_API_KEY", os.Getenv("API_KEY")),
			Model:        getenv("GEMINI_MODEL", "gemini-2.5-flash"),
			Endpoint:     getenv("GEMINI_ENDPOINT", "https://generativelanguage.googleapis.com"),
			Timeout:      getenvDuration("GEMINI_TIMEOUT", 0, &errs),
			RateLimitRPS: getenvFloat("GEMINI_RATE_LIMIT_RPS", 1, &errs),
		},
		Search: SearchConfig{
			DefaultLat:         getenvFloat("DEFAULT_LAT", 37.7749, &errs),
			DefaultLng:         getenvFloat("DEFAULT_LNG", -122.4194, &errs),
			DefaultLabel:       getenv("DEFAULT_LOCATION_LABEL", ""),
			Timezone:           getenv("TIMEZONE", "Local"),
			RegionsFile:        os.Getenv("REGIONS_FILE"),
			Pacing:             getenvBool("PACING", false),
			EnrichCoordinates:  getenvBool("ENRICH_COORDINATES", false),
			FilterSlot:         getenv("FILTER_SLOT", "danceTonightFilters"),
			RateLimitPerMinute: getenvInt("SEARCH_RATE_LIMIT", 20, &errs),
		},
		Geocode: GeocodeConfig{
			NominatimEndpoint: os.Getenv("NOMINATIM_ENDPOINT"),
			ReverseEndpoint:   os.Getenv("REVERSE_GEOCODE_ENDPOINT"),
			RateLimitRPS:      getenvFloat("GEOCODE_RATE_LIMIT_RPS", 1, &errs),
		},
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Bucket:    os.Getenv("S3_BUCKET"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Region:    getenv("S3_REGION", "us-east-1"),
			UseSSL:    getenvBool("S3_USE_SSL", true),
			Prefix:    getenv("S3_PREFIX", "searches"),
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
			File:   os.Getenv("LOG_FILE"),
			Output: getenv("LOG_OUTPUT", "stdout"),
		},
	}

	if cfg.Search.DefaultLat < -90 || cfg.Search.DefaultLat > 90 {
		errs = append(errs, fmt.Errorf("DEFAULT_LAT out of range: %v", cfg.Search.DefaultLat))
	}
	if cfg.Search.DefaultLng < -180 || cfg.Search.DefaultLng > 180 {
		errs = append(errs, fmt.Errorf("DEFAULT_LNG out of range: %v", cfg.Search.DefaultLng))
	}
	if _, err := cfg.Search.Location(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured time zone.
func (c SearchConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return parsed
}
