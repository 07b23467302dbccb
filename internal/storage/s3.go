// Package storage uploads user-submitted media to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ObjectStore persists a data-URL encoded image and returns its public URL.
type ObjectStore interface {
	UploadDataURL(ctx context.Context, dataURL string) (string, error)
}

// S3Config carries connection settings for an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are served from. Defaults to
	// Endpoint/Bucket when empty (path-style, MinIO compatible).
	PublicURL string
}

// S3Store implements ObjectStore against an S3-compatible service.
type S3Store struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

// NewS3Store builds the S3 client with static credentials and a custom endpoint.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
	})

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = strings.TrimSuffix(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// UploadDataURL decodes a base64 data URL and stores it under a random key.
func (s *S3Store) UploadDataURL(ctx context.Context, dataURL string) (string, error) {
	contentType, payload, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	key := randomStorageKey(contentType)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put object: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// DecodeDataURL splits a "data:<type>;base64,<payload>" URL into its media
// type and decoded bytes.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", nil, fmt.Errorf("storage: not a data url")
	}
	meta, encoded, ok := strings.Cut(dataURL[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("storage: malformed data url")
	}
	contentType, hasBase64 := strings.CutSuffix(meta, ";base64")
	if !hasBase64 {
		return "", nil, fmt.Errorf("storage: data url is not base64 encoded")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("storage: decode payload: %w", err)
	}
	return contentType, payload, nil
}

func randomStorageKey(contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	case "image/gif":
		ext = ".gif"
	case "image/webp":
		ext = ".webp"
	}
	d := time.Now().UTC()
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
