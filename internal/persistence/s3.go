// internal/persistence/s3.go
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"doccenter/internal/library"
)

// S3Config selects the bucket snapshots are archived to. Endpoint and
// PathStyle target S3-compatible servers such as MinIO.
type S3Config struct {
	Region    string
	Bucket    string
	Endpoint  string
	PathStyle bool
	Prefix    string
	Every     time.Duration
}

// S3Archive uploads full snapshots to a bucket, at most once per interval.
// Each upload writes a versioned object and overwrites latest.json.
type S3Archive struct {
	client *s3.Client
	bucket string
	prefix string
	every  time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewS3Archive builds an archive using the default AWS credential chain.
func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Archive(client, cfg), nil
}

func newS3Archive(client *s3.Client, cfg S3Config) *S3Archive {
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Archive{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		every:  cfg.Every,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (a *S3Archive) Name() string { return "s3" }

// Persist uploads the commit's state unless a successful upload happened
// within the interval.
func (a *S3Archive) Persist(ctx context.Context, commit library.Commit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if !a.last.IsZero() && now.Sub(a.last) < a.every {
		return nil
	}
	if err := a.Upload(ctx, commit.Snapshot(), commit.Version); err != nil {
		return err
	}
	a.last = now
	return nil
}

// Upload writes snap unconditionally.
func (a *S3Archive) Upload(ctx context.Context, snap library.Snapshot, version uint64) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	for _, key := range []string{a.versionKey(version), a.latestKey()} {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(payload),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
	}
	return nil
}

// Latest downloads the most recently uploaded snapshot.
func (a *S3Archive) Latest(ctx context.Context) (library.Snapshot, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.latestKey()),
	})
	if err != nil {
		return library.Snapshot{}, fmt.Errorf("get %s: %w", a.latestKey(), err)
	}
	defer out.Body.Close()

	var snap library.Snapshot
	if err := json.NewDecoder(out.Body).Decode(&snap); err != nil {
		return library.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

func (a *S3Archive) versionKey(version uint64) string {
	return fmt.Sprintf("%ssnapshots/%020d.json", a.prefix, version)
}

func (a *S3Archive) latestKey() string { return a.prefix + "latest.json" }
