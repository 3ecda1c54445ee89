package retrieve

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/TobiSchelling/tenderwatch/internal/config"
)

// Archiver mirrors retrieved documents to durable storage.
type Archiver interface {
	Archive(ctx context.Context, tenderKey, localPath string) error
}

// MinioArchive stores documents in an S3-compatible bucket under
// <tender key>/<file name>.
type MinioArchive struct {
	client *minio.Client
	bucket string
}

// NewMinioArchive connects to the configured endpoint. Credentials are read
// from the environment variables named in the config.
func NewMinioArchive(cfg config.Minio) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(os.Getenv(cfg.AccessKeyEnv), os.Getenv(cfg.SecretKeyEnv), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *MinioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
		}
	}
	return nil
}

func (m *MinioArchive) Archive(ctx context.Context, tenderKey, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, m.bucket, ObjectName(tenderKey, localPath), f, info.Size(),
		minio.PutObjectOptions{ContentType: contentType(localPath)})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", localPath, err)
	}
	return nil
}

// ObjectName is the bucket key of a tender document.
func ObjectName(tenderKey, localPath string) string {
	return path.Join(SanitizeFilename(tenderKey), filepath.Base(localPath))
}

func contentType(p string) string {
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
