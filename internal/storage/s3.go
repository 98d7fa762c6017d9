package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/videshare/backend/internal/config"
)

// BlobSigner issues short-lived capability URLs for video blobs held in an
// S3-compatible bucket. Read URLs let feed clients stream a clip; write URLs
// let upload clients PUT the blob directly without routing bytes through us.
type BlobSigner struct {
	presign     *s3.PresignClient
	bucket      string
	baseURL     string
	playableTTL time.Duration
	uploadTTL   time.Duration
}

// NewBlobSigner configures a presigning client targeting the provided object store.
func NewBlobSigner(ctx context.Context, cfg config.ObjectStoreConfig, playableTTL, uploadTTL time.Duration) (*BlobSigner, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("blob signer: bucket is required")
	}
	if playableTTL <= 0 {
		playableTTL = time.Hour
	}
	if uploadTTL <= 0 {
		uploadTTL = time.Hour
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if strings.TrimSpace(cfg.Endpoint) != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:           cfg.Endpoint,
					SigningRegion: cfg.Region,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		loadOpts = append(loadOpts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		endpoint := strings.TrimSuffix(cfg.Endpoint, "/")
		if endpoint != "" {
			baseURL = fmt.Sprintf("%s/%s", endpoint, cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &BlobSigner{
		presign:     s3.NewPresignClient(client),
		bucket:      cfg.Bucket,
		baseURL:     baseURL,
		playableTTL: playableTTL,
		uploadTTL:   uploadTTL,
	}, nil
}

// Manages reports whether the provided canonical blob URL lives inside the
// bucket this deployment signs for. Foreign URLs are served unmodified.
func (s *BlobSigner) Manages(blobURL string) bool {
	return blobURL != "" && strings.HasPrefix(blobURL, s.baseURL+"/")
}

// BlobURL returns the canonical (capability-free) URL for a stored filename.
func (s *BlobSigner) BlobURL(filename string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, strings.TrimLeft(filename, "/"))
}

// PresignPlayback issues a time-scoped read URL for the named blob.
func (s *BlobSigner) PresignPlayback(ctx context.Context, filename string) (string, error) {
	key := strings.TrimLeft(filename, "/")
	if key == "" {
		return "", fmt.Errorf("blob signer: empty key")
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.playableTTL
	})
	if err != nil {
		return "", fmt.Errorf("presign playback %s: %w", key, err)
	}

	return req.URL, nil
}

// PresignUpload issues a time-scoped write URL for the named blob.
func (s *BlobSigner) PresignUpload(ctx context.Context, filename string) (string, error) {
	key := strings.TrimLeft(filename, "/")
	if key == "" {
		return "", fmt.Errorf("blob signer: empty key")
	}

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = s.uploadTTL
	})
	if err != nil {
		return "", fmt.Errorf("presign upload %s: %w", key, err)
	}

	return req.URL, nil
}
