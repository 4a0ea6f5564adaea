package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"memeforge/internal/config"
)

type ObjectStore struct {
	client *minio.Client
	cfg    config.StorageConfig
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client: client,
		cfg:    cfg,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.cfg.Bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.cfg.Bucket, err)
		}
	}
	return nil
}

// UploadPreview stores the rendered preview keyed by the meme's short id so
// the public URL is guessable from the id alone.
func (s *ObjectStore) UploadPreview(ctx context.Context, idShort string, data []byte, contentType string) (string, error) {
	key := ObjectKey(idShort, contentType)
	_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return s.PublicURL(key), nil
}

func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return nil
}

// Exists probes the object without fetching it, for the preview finalizer.
func (s *ObjectStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("stat %s/%s: %w", s.cfg.Bucket, key, err)
	}
	return true, nil
}

func (s *ObjectStore) PublicURL(key string) string {
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	return base + "/" + s.cfg.Bucket + "/" + key
}

func ObjectKey(idShort, contentType string) string {
	ext := ".png"
	switch contentType {
	case "image/webp":
		ext = ".webp"
	case "image/jpeg":
		ext = ".jpg"
	}
	return idShort + ext
}

// PreviewKeys lists every object key a preview for the short id may live
// under, one per format the exporter can emit.
func PreviewKeys(idShort string) []string {
	return []string{idShort + ".webp", idShort + ".jpg", idShort + ".png"}
}

func (s *ObjectStore) Client() *minio.Client {
	return s.client
}
