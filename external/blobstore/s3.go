// Package blobstore keeps result payloads, replays and batch manifests in
// object storage.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-pipeline/internal/usecase"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("blob not found")

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, input *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignAPI is the subset of the presign client the store uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// PathStyle is needed for MinIO and R2 style endpoints.
	PathStyle bool
}

type S3Store struct {
	client  S3API
	presign PresignAPI
	bucket  string
}

var _ usecase.BlobStore = (*S3Store)(nil)

type S3Option func(*S3Store)

// WithS3Client sets a custom client (tests).
func WithS3Client(c S3API) S3Option {
	return func(s *S3Store) { s.client = c }
}

// WithPresigner sets a custom presigner (tests).
func WithPresigner(p PresignAPI) S3Option {
	return func(s *S3Store) { s.presign = p }
}

func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, crerr.New("blob store bucket is required")
	}
	s := &S3Store{bucket: strings.TrimSpace(cfg.Bucket)}
	for _, o := range opts {
		o(s)
	}
	if s.client != nil && s.presign != nil {
		return s, nil
	}

	loadOpts := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, crerr.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	if s.client == nil {
		s.client = client
	}
	if s.presign == nil {
		s.presign = s3.NewPresignClient(client)
	}
	return s, nil
}

func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, crerr.Wrapf(ErrNotFound, "get %s", key)
		}
		return nil, crerr.Wrapf(err, "get object %s", key)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	raw, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, crerr.Wrapf(err, "read object %s", key)
	}
	return raw, nil
}

func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, crerr.Wrapf(err, "head object %s", key)
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return crerr.Wrapf(err, "put object %s", key)
	}
	return nil
}

func (s *S3Store) SignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", crerr.Wrapf(err, "presign get %s", key)
	}
	return req.URL, nil
}

func (s *S3Store) SignedWriteURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", crerr.Wrapf(err, "presign put %s", key)
	}
	return req.URL, nil
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
