package store

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

// Archive keeps the raw fetched bytes of PDF artifacts in an object
// bucket. The document store only ever holds extracted text; this bucket
// is the place to go back to when an extraction bug needs a re-run.
type Archive struct {
	client *minio.Client
	bucket string
	logger logger.Logger
}

// NewArchive connects to MinIO and ensures the bucket exists.
func NewArchive(ctx context.Context, cfg config.MinioConfig, log logger.Logger) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("can't create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("can't check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("can't create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &Archive{client: client, bucket: cfg.Bucket, logger: log.Named("archive")}, nil
}

// Put stores raw bytes under a digest of the identity key. Idempotent:
// re-archiving the same document overwrites the same object.
func (a *Archive) Put(ctx context.Context, identityKey string, body []byte) error {
	sum := sha1.Sum([]byte(identityKey))
	object := hex.EncodeToString(sum[:]) + ".pdf"

	_, err := a.client.PutObject(ctx, a.bucket, object,
		bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		return fmt.Errorf("can't archive %s: %w", identityKey, err)
	}
	return nil
}
