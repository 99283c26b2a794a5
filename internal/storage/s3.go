package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campus-tf/trove/internal/config"
	"github.com/campus-tf/trove/internal/domain"
)

// S3Backend stores images in an S3 (or S3-compatible) bucket.
// Images are served to clients from the bucket's public base URL rather
// than proxied through the API server.
type S3Backend struct {
	client        *s3.Client
	bucket        string
	prefix        string
	publicBaseURL string
	maxSize       int64
	logger        zerolog.Logger
}

var _ Backend = (*S3Backend)(nil)

// objectPrefix namespaces item images inside the bucket.
const objectPrefix = "items/"

// NewS3Backend creates an S3 backend from configuration.
func NewS3Backend(ctx context.Context, cfg config.S3StorageConfig, maxSize int64, logger zerolog.Logger) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{
		client:        client,
		bucket:        cfg.Bucket,
		prefix:        objectPrefix,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		maxSize:       maxSize,
		logger:        logger.With().Str("component", "s3_storage").Logger(),
	}, nil
}

// Store uploads the image and returns its reference.
func (b *S3Backend) Store(ctx context.Context, reader io.Reader, size int64, contentType string) (string, error) {
	ext, err := ValidateImageType(contentType)
	if err != nil {
		return "", err
	}
	if b.maxSize > 0 && size > b.maxSize {
		return "", domain.ErrImageTooLarge
	}

	ref := uuid.NewString() + ext

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(b.prefix + ref),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	b.logger.Debug().Str("ref", ref).Int64("size", size).Msg("stored image")
	return ref, nil
}

// Retrieve downloads the image content.
func (b *S3Backend) Retrieve(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !validRef(ref) {
		return nil, domain.ErrImageNotFound
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + ref),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return out.Body, nil
}

// Delete removes the image object.
func (b *S3Backend) Delete(ctx context.Context, ref string) error {
	if !validRef(ref) {
		return domain.ErrImageNotFound
	}

	// S3 DeleteObject succeeds on missing keys, so check first to keep the
	// not-found contract consistent with the filesystem backend.
	exists, err := b.Exists(ctx, ref)
	if err != nil {
		return err
	}
	if !exists {
		return domain.ErrImageNotFound
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + ref),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	b.logger.Debug().Str("ref", ref).Msg("deleted image")
	return nil
}

// Exists checks whether the image object is present.
func (b *S3Backend) Exists(ctx context.Context, ref string) (bool, error) {
	if !validRef(ref) {
		return false, nil
	}

	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.prefix + ref),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head image: %w", err)
	}
	return true, nil
}

// List returns the references of all stored images.
func (b *S3Backend) List(ctx context.Context) ([]string, error) {
	var refs []string

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list images: %w", err)
		}
		for _, obj := range page.Contents {
			refs = append(refs, strings.TrimPrefix(aws.ToString(obj.Key), b.prefix))
		}
	}
	return refs, nil
}

// URLPath returns the public URL for a stored reference.
func (b *S3Backend) URLPath(ref string) string {
	return b.publicBaseURL + "/" + b.prefix + ref
}

func isNoSuchKey(err error) bool {
	var nsk *types.NoSuchKey
	return errors.As(err, &nsk)
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	return errors.As(err, &nf)
}
