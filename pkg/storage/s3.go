package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("roster/storage")

// S3Store keeps avatars in an S3 bucket. It works against AWS and
// S3-compatible stores such as MinIO when S3Endpoint and path-style
// addressing are set.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store creates an S3-backed avatar store
func NewS3Store(cfg Config) (*S3Store, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Static credentials for MinIO or explicit AWS keys
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain: IAM roles, env vars
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.S3Bucket}, nil
}

// Put uploads the avatar, replacing any previous one
func (s *S3Store) Put(ctx context.Context, kind Kind, id string, content io.Reader, contentType string) (string, error) {
	ext, ok := extByContentType[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	key := avatarKey(kind, id, ext)
	ctx, span := tracer.Start(ctx, "S3.PutAvatar",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
			attribute.String("content.type", contentType),
		),
	)
	defer span.End()

	if err := s.deleteVariants(ctx, kind, id, ext); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove previous avatar")
		return "", err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload avatar")
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}

	span.SetStatus(codes.Ok, "avatar uploaded")
	return "/" + key, nil
}

// Get downloads the stored avatar and reports its content type
func (s *S3Store) Get(ctx context.Context, kind Kind, id string) (io.ReadCloser, string, error) {
	ctx, span := tracer.Start(ctx, "S3.GetAvatar",
		trace.WithAttributes(
			attribute.String("s3.bucket", s.bucket),
			attribute.String("avatar.kind", string(kind)),
			attribute.String("avatar.id", id),
		),
	)
	defer span.End()

	for ext, contentType := range contentTypeByExt {
		result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(avatarKey(kind, id, ext)),
		})
		if err != nil {
			if isNotFoundError(err) {
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to get avatar")
			return nil, "", fmt.Errorf("failed to get avatar: %w", err)
		}
		span.SetStatus(codes.Ok, "avatar retrieved")
		return result.Body, contentType, nil
	}

	return nil, "", ErrNotFound
}

// Delete removes the stored avatar. Deleting a missing avatar is a no-op.
func (s *S3Store) Delete(ctx context.Context, kind Kind, id string) error {
	return s.deleteVariants(ctx, kind, id, "")
}

// HealthCheck verifies bucket access
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

// deleteVariants removes every stored extension except keep
func (s *S3Store) deleteVariants(ctx context.Context, kind Kind, id, keep string) error {
	for ext := range contentTypeByExt {
		if ext == keep {
			continue
		}
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(avatarKey(kind, id, ext)),
		})
		if err != nil && !isNotFoundError(err) {
			return fmt.Errorf("failed to delete avatar: %w", err)
		}
	}
	return nil
}

func avatarKey(kind Kind, id, ext string) string {
	return fmt.Sprintf("avatars/%s/%s%s", kind, id, ext)
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey")
}
