package source

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"leadsync_backend/platform/config"
	"leadsync_backend/platform/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archive stores raw fetched CSV payloads in object storage for debugging
// disputed syncs. It is optional: a nil *Archive is a no-op, and archival
// failures are logged, never propagated. A snapshot must not fail a sync.
type Archive struct {
	client *minio.Client
	bucket string
	log    *logger.Logger
}

// NewArchive creates the snapshot archive when MinIO is configured,
// otherwise returns nil.
func NewArchive(cfg config.SnapshotConfig, log *logger.Logger) (*Archive, error) {
	if !cfg.IsSnapshotArchiveEnabled() {
		return nil, nil
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("init snapshot archive: %w", err)
	}

	return &Archive{client: client, bucket: cfg.GetMinioBucketSheetSnapshots(), log: log}, nil
}

// EnsureBucket verifies the snapshot bucket exists, creating it if needed.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	if a == nil {
		return nil
	}

	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
}

// Store uploads one fetched payload. Object keys group snapshots by
// customer and sort chronologically.
func (a *Archive) Store(ctx context.Context, customerID, variant, text string, fetchedAt time.Time) {
	if a == nil {
		return
	}

	key := fmt.Sprintf("%s/%s_gid%s.csv", customerID, fetchedAt.UTC().Format("20060102T150405Z"), variant)
	payload := []byte(text)

	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		a.log.Warn("sheet snapshot upload failed", "customer_id", customerID, "key", key, "error", err)
	}
}
