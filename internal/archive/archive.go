package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dancetonight/internal/config"
	"dancetonight/internal/models"
)

// Record is everything needed to replay one search's extraction offline.
type Record struct {
	SearchID  string                   `json:"searchId"`
	CreatedAt time.Time                `json:"createdAt"`
	Filters   models.Filters           `json:"filters"`
	Location  *models.UserLocation     `json:"location,omitempty"`
	Prompt    string                   `json:"prompt"`
	RawText   string                   `json:"rawText"`
	Strategy  string                   `json:"strategy"`
	Outcome   string                   `json:"outcome"`
	Events    []models.DanceEvent      `json:"events"`
	Sources   []models.GroundingSource `json:"sources"`
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive stores search records as JSON objects.
type S3Archive struct {
	bucket string
	prefix string
	client objectPutter
	logger *slog.Logger
}

// NewS3 builds an archive from configuration. It returns nil, nil when no
// bucket is configured.
func NewS3(cfg config.S3Config, logger *slog.Logger) (*S3Archive, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_BUCKET is set")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	options := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL); endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}
	return newArchive(cfg.Bucket, cfg.Prefix, s3.New(options), logger), nil
}

func newArchive(bucket, prefix string, client objectPutter, logger *slog.Logger) *S3Archive {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Archive{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		client: client,
		logger: logger,
	}
}

// Key returns the object key for a record: <prefix>/YYYY/MM/DD/<search id>.json.
func (a *S3Archive) Key(rec Record) string {
	ts := rec.CreatedAt.UTC()
	day := fmt.Sprintf("%04d/%02d/%02d", ts.Year(), ts.Month(), ts.Day())
	name := strings.ReplaceAll(rec.SearchID, "/", "-") + ".json"
	if a.prefix == "" {
		return path.Join(day, name)
	}
	return path.Join(a.prefix, day, name)
}

// Put uploads rec and returns its key.
func (a *S3Archive) Put(ctx context.Context, rec Record) (string, error) {
	if a == nil {
		return "", fmt.Errorf("archive is not configured")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode archive record: %w", err)
	}
	key := a.Key(rec)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	a.logger.Debug("archive_put", "key", key, "bytes", len(data))
	return key, nil
}

func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + endpoint
}
