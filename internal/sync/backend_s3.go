package sync

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/Faroukdata/fairsync/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultS3ObjectKey = "career-fair/state.csv"

// S3Backend implements Backend using S3-compatible storage via minio-go.
type S3Backend struct {
	client *minio.Client
	bucket string
	key    string
}

// NewS3Backend creates an S3Backend from the remote config and credentials.
func NewS3Backend(rc *config.RemoteConfig, sec *config.Secrets) (*S3Backend, error) {
	endpoint := rc.Endpoint
	useSSL := true
	// Strip scheme for minio client
	if len(endpoint) > 8 && endpoint[:8] == "https://" {
		endpoint = endpoint[8:]
	} else if len(endpoint) > 7 && endpoint[:7] == "http://" {
		endpoint = endpoint[7:]
		useSSL = false
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(sec.S3AccessKey, sec.S3SecretKey, ""),
		Secure: useSSL,
		Region: rc.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 init: %w", err)
	}
	key := rc.Path
	if key == "" {
		key = defaultS3ObjectKey
	}
	return &S3Backend{client: client, bucket: rc.Bucket, key: key}, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Download(ctx context.Context) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3 download: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMissingObject(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3 download: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return data, nil
}

func (b *S3Backend) Upload(ctx context.Context, data []byte) error {
	reader := bytes.NewReader(data)
	_, err := b.client.PutObject(ctx, b.bucket, b.key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}
	return nil
}

// Fingerprint returns the object's ETag, which S3 derives from content.
func (b *S3Backend) Fingerprint(ctx context.Context) (string, error) {
	info, err := b.client.StatObject(ctx, b.bucket, b.key, minio.StatObjectOptions{})
	if err != nil {
		if isMissingObject(err) {
			return "", nil
		}
		return "", fmt.Errorf("s3 fingerprint: %w", err)
	}
	return info.ETag, nil
}

func isMissingObject(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "NotFound"
}
