package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOOptions configures an S3-compatible bucket.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseTLS    bool
	Bucket    string
	// PublicURL is the origin objects are served from, e.g. a CDN in front
	// of the bucket. Defaults to the endpoint.
	PublicURL string
}

// MinIO stores objects in a bucket.
type MinIO struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

func NewMinIO(o MinIOOptions) (*MinIO, error) {
	mc, err := minio.New(o.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(o.AccessKey, o.SecretKey, ""),
		Secure: o.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinIO{mc: mc, bucket: o.Bucket, publicURL: publicBase(o)}, nil
}

func publicBase(o MinIOOptions) string {
	if o.PublicURL != "" {
		return strings.TrimSuffix(o.PublicURL, "/")
	}
	scheme := "http"
	if o.UseTLS {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, o.Endpoint, o.Bucket)
}

// EnsureBucket creates the bucket when it does not exist.
func (m *MinIO) EnsureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	_, err := m.mc.PutObject(ctx, m.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}
	return m.publicURL + "/" + url.PathEscape(name), nil
}
