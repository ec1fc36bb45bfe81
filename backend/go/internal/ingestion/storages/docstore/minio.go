package docstore

import (
	"context"
	"fmt"
	"strings"

	"RepoChat/backend/go/internal/ingestion/interfaces"
	"RepoChat/backend/go/internal/ingestion/schema"
	"RepoChat/backend/go/pkg/logger"
	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"
)

const defaultUploadConcurrency = 4

// MinIODocStore archives documents as objects in a MinIO bucket.
type MinIODocStore struct {
	put         func(ctx context.Context, bucket, object string, body string) error
	bucket      string
	concurrency int
	log         *logger.Logger
}

// NewMinIODocStore archives into bucket through client. The bucket must exist;
// database/minio.NewClient creates it.
func NewMinIODocStore(client *minio.Client, bucket string, log *logger.Logger) *MinIODocStore {
	return newMinIODocStore(func(ctx context.Context, b, object, body string) error {
		_, err := client.PutObject(ctx, b, object, strings.NewReader(body), int64(len(body)),
			minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
		return err
	}, bucket, log)
}

func newMinIODocStore(put func(ctx context.Context, bucket, object, body string) error, bucket string, log *logger.Logger) *MinIODocStore {
	if log == nil {
		log = logger.Discard()
	}
	return &MinIODocStore{put: put, bucket: bucket, concurrency: defaultUploadConcurrency, log: log}
}

// Put uploads every document as "<prefix>/<source path>". The first failed
// upload cancels the rest.
func (s *MinIODocStore) Put(ctx context.Context, prefix string, docs []schema.Document) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, doc := range docs {
		key := objectKey(prefix, doc.SourcePath)
		text := doc.Text
		g.Go(func() error {
			if err := s.put(gctx, s.bucket, key, text); err != nil {
				return fmt.Errorf("put object %s/%s: %w", s.bucket, key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.log.WithPayload(map[string]interface{}{"bucket": s.bucket, "prefix": prefix, "objects": len(docs)}).Info("Documents archived")
	return nil
}

var _ interfaces.DocumentArchive = (*MinIODocStore)(nil)
