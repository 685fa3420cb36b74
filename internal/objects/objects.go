// Package objects stores document bytes in an S3-compatible bucket. Clients
// upload directly through presigned URLs; the server only signs and deletes.
package objects

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/alecgard/mergeflow/internal/id"
)

type Config struct {
	Bucket        string
	Region        string
	Endpoint      string // set for MinIO and other non-AWS endpoints
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Upload tells the client where to PUT the bytes and what URL to record.
type Upload struct {
	UploadURL string    `json:"uploadUrl"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     Config
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 15 * time.Minute
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = DefaultPublicBaseURL(cfg)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Store{client: client, presign: s3.NewPresignClient(client), cfg: cfg}, nil
}

// DefaultPublicBaseURL is the URL prefix objects are served from when none
// is configured.
func DefaultPublicBaseURL(cfg Config) string {
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}

func (s *Store) PresignUpload(ctx context.Context, teamID id.ID, fileName, contentType string) (*Upload, error) {
	key := ObjectKey(teamID, fileName, uuid.NewString())
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, in, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return nil, fmt.Errorf("presigning put %s: %w", key, err)
	}
	return &Upload{
		UploadURL: req.URL,
		Method:    req.Method,
		URL:       s.cfg.PublicBaseURL + "/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(s.cfg.PresignTTL).UTC(),
	}, nil
}

// Remove deletes the object behind url when it lies under teamID's prefix.
// Other URLs are ignored.
func (s *Store) Remove(ctx context.Context, teamID id.ID, url string) error {
	key, ok := OwnedKey(s.cfg.PublicBaseURL, teamID, url)
	if !ok {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// TeamPrefix is the key prefix shared by every object uploaded for teamID.
func TeamPrefix(teamID id.ID) string {
	return "teams/" + teamID.String() + "/"
}

// ObjectKey places uploads under the team's prefix.
func ObjectKey(teamID id.ID, fileName, token string) string {
	return fmt.Sprintf("%s%s_%s", TeamPrefix(teamID), token, sanitize(fileName))
}

// OwnedKey resolves url to a bucket key under base that belongs to teamID.
// Keys of other teams, and keys that climb out of the prefix, report false.
func OwnedKey(base string, teamID id.ID, url string) (string, bool) {
	key, ok := KeyFromURL(base, url)
	if !ok || teamID.IsZero() || !strings.HasPrefix(key, TeamPrefix(teamID)) {
		return "", false
	}
	if slices.Contains(strings.Split(key, "/"), "..") {
		return "", false
	}
	return key, true
}

// KeyFromURL strips base from url. It reports false when url is not under base.
func KeyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if base == "" || !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
