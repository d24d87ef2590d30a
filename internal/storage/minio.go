package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/publishflow/publishflow/internal/config"
)

// MinIOStorage keeps published snapshots of documents in a bucket.
type MinIOStorage struct {
	client *minio.Client
	bucket string
}

// NewMinIOStorage creates a new MinIO storage client and ensures the bucket exists.
func NewMinIOStorage(ctx context.Context, cfg config.MinIOConfig) (*MinIOStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	s := &MinIOStorage{client: mc, bucket: cfg.Bucket}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, s.bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return s, nil
}

// SnapshotKey is the object key of a snapshot taken at ts.
func SnapshotKey(collection, id string, ts time.Time) string {
	return path.Join(snapshotPrefix(collection, id), ts.UTC().Format("20060102T150405.000000000Z")+".json")
}

func snapshotPrefix(collection, id string) string {
	return path.Join("snapshots", collection, id)
}

// SnapshotName is the last element of a snapshot key.
func SnapshotName(key string) string { return path.Base(key) }

func validSnapshotName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// EncodeSnapshot renders doc as relaxed extended JSON.
func EncodeSnapshot(doc bson.M) ([]byte, error) {
	return bson.MarshalExtJSON(doc, false, false)
}

// Archive stores doc as the snapshot of a publish and returns its key.
func (s *MinIOStorage) Archive(ctx context.Context, collection, id string, doc bson.M) (string, error) {
	b, err := EncodeSnapshot(doc)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(collection, id, time.Now())
	if err := s.UploadFile(ctx, key, bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// UploadFile uploads data from reader to the configured bucket using the provided key.
func (s *MinIOStorage) UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// DownloadFile returns a ReadCloser for the stored object. A missing object
// yields an error wrapping fs.ErrNotExist.
func (s *MinIOStorage) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, objectError(key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, objectError(key, err)
	}
	return obj, nil
}

func objectError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return fmt.Errorf("%w: %s", fs.ErrNotExist, key)
	}
	return err
}

// Snapshots lists the snapshot keys of one document, oldest first.
func (s *MinIOStorage) Snapshots(ctx context.Context, collection, id string) ([]string, error) {
	prefix := snapshotPrefix(collection, id) + "/"
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// OpenSnapshot opens one snapshot of a document by name.
func (s *MinIOStorage) OpenSnapshot(ctx context.Context, collection, id, name string) (io.ReadCloser, error) {
	if !validSnapshotName(name) {
		return nil, fmt.Errorf("%w: snapshot %q", fs.ErrNotExist, name)
	}
	return s.DownloadFile(ctx, path.Join(snapshotPrefix(collection, id), name))
}

// GetPresignedURL returns a presigned GET URL valid for the given duration.
func (s *MinIOStorage) GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, make(url.Values))
	if err != nil {
		return "", err
	}
	return presigned.String(), nil
}
