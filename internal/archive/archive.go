// Package archive uploads audit reports to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrNotConfigured = errors.New("archive not configured")

type Uploader struct {
	client *minio.Client
	bucket string
}

// New connects to endpoint. An empty endpoint returns (nil, nil); a nil
// *Uploader rejects every upload with ErrNotConfigured.
func New(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Uploader, error) {
	if endpoint == "" {
		return nil, nil
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Uploader{client: client, bucket: bucket}, nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// PutJSON stores v as an indented JSON object under key.
func (u *Uploader) PutJSON(ctx context.Context, key string, v any) error {
	if u == nil {
		return ErrNotConfigured
	}
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := u.ensureBucket(ctx); err != nil {
		return err
	}
	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// AuditKey names the object for an audit run started at at.
func AuditKey(at time.Time) string {
	at = at.UTC()
	return path.Join("audits", at.Format("2006/01/02"), "audit-"+at.Format("20060102T150405Z")+".json")
}
