// Package storage keeps uploaded leaf images in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Options configures the S3 image store.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	// PublicURL is the base URL objects are served from. When empty,
	// path-style URLs under Endpoint are returned.
	PublicURL string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// for tests
var loadDefaultAWSConfig = config.LoadDefaultConfig

// S3ImageStore uploads images to a bucket.
type S3ImageStore struct {
	client    putObjectAPI
	bucket    string
	publicURL string
}

// NewS3ImageStore builds a store from static credentials.
func NewS3ImageStore(ctx context.Context, opts Options) (*S3ImageStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3ImageStore(client, opts), nil
}

func newS3ImageStore(client putObjectAPI, opts Options) *S3ImageStore {
	base := strings.TrimRight(opts.PublicURL, "/")
	if base == "" {
		endpoint := opts.Endpoint
		if endpoint == "" {
			endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", opts.Region)
		}
		base = strings.TrimRight(endpoint, "/") + "/" + opts.Bucket
	}
	return &S3ImageStore{client: client, bucket: opts.Bucket, publicURL: base}
}

// CreateFolder writes a zero-byte "<folder>/" marker so the folder shows up
// in bucket listings. It is idempotent.
func (s *S3ImageStore) CreateFolder(ctx context.Context, folder string) (string, error) {
	key := cleanKey(folder)
	if key == "" {
		return "", errors.New("storage: empty folder path")
	}
	key += "/"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return "", fmt.Errorf("storage: create folder %q: %w", key, err)
	}
	return fmt.Sprintf("folder %s ready in bucket %s", key, s.bucket), nil
}

// Upload stores data as folder/name and returns its public URL.
func (s *S3ImageStore) Upload(ctx context.Context, folder, name string, data []byte, mimeType string) (string, error) {
	key := cleanKey(path.Join(folder, name))
	if key == "" {
		return "", errors.New("storage: empty object key")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mimeType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload %q: %w", key, err)
	}
	return s.objectURL(key), nil
}

func (s *S3ImageStore) objectURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicURL + "/" + strings.Join(parts, "/")
}

// cleanKey normalizes p into a relative object key without dot segments.
func cleanKey(p string) string {
	k := strings.TrimLeft(path.Clean("/"+p), "/")
	if k == "." {
		return ""
	}
	return k
}
