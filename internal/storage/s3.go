package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"songgraph/internal/keys"
	"songgraph/internal/models"
)

// S3Config holds the connection settings of an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Region    string
	Prefix    string
}

// S3Store keeps playlists as JSON objects in a bucket.
type S3Store struct {
	client *minio.Client
	bucket string
	prefix string
	region string
	logger *zap.Logger
}

// NewS3Store connects to the endpoint described by cfg.
func NewS3Store(cfg S3Config, logger *zap.Logger) (*S3Store, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("missing one or more required settings: MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY, PLAYLIST_BUCKET")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create MinIO client: %w", err)
	}

	logger.Info("connected to object storage", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		region: cfg.Region,
		logger: logger,
	}, nil
}

// EnsureBucket creates the playlist bucket when it does not exist yet.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("created bucket", zap.String("bucket", s.bucket))
	return nil
}

func (s *S3Store) Save(ctx context.Context, name string, tracks []models.Track) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	key := keys.Playlist(name)
	data, err := json.Marshal(nonNil(tracks))
	if err != nil {
		return "", fmt.Errorf("encode playlist: %w", err)
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		s.objectKey(key),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", fmt.Errorf("store playlist in S3: %w", err)
	}

	s.logger.Info("stored playlist", zap.String("bucket", s.bucket), zap.String("key", key), zap.Int("tracks", len(tracks)))
	return key, nil
}

func (s *S3Store) List(ctx context.Context) ([]models.PlaylistSummary, error) {
	out := []models.PlaylistSummary{}
	opts := minio.ListObjectsOptions{Prefix: s.listPrefix(), Recursive: false}
	for obj := range s.client.ListObjects(ctx, s.bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list playlists: %w", obj.Err)
		}
		key := strings.TrimPrefix(obj.Key, s.listPrefix())
		if !keys.IsPlaylist(key) {
			continue
		}
		var tracks []models.Track
		if err := s.GetJSON(ctx, s.bucket, obj.Key, &tracks); err != nil {
			s.logger.Warn("skipping unreadable playlist", zap.String("key", obj.Key), zap.Error(err))
			continue
		}
		out = append(out, models.PlaylistSummary{Name: keys.Name(key), Key: key, TrackCount: len(tracks)})
	}
	sortSummaries(out)
	return out, nil
}

func (s *S3Store) Load(ctx context.Context, name string) (models.Playlist, error) {
	if err := validName(name); err != nil {
		return models.Playlist{}, err
	}
	key := keys.Playlist(name)
	info, err := s.client.StatObject(ctx, s.bucket, s.objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return models.Playlist{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return models.Playlist{}, fmt.Errorf("stat playlist: %w", err)
	}

	var tracks []models.Track
	if err := s.GetJSON(ctx, s.bucket, s.objectKey(key), &tracks); err != nil {
		return models.Playlist{}, err
	}
	return models.Playlist{Name: keys.Name(key), Tracks: tracks, UpdatedAt: info.LastModified}, nil
}

// GetJSON streams the object at bucket/key and decodes it into v.
func (s *S3Store) GetJSON(ctx context.Context, bucket, key string, v any) error {
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get object from S3: %w", err)
	}
	defer object.Close()

	if err := json.NewDecoder(object).Decode(v); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("decode JSON from stream: %w", err)
	}
	return nil
}

func (s *S3Store) objectKey(key string) string {
	return s.listPrefix() + key
}

func (s *S3Store) listPrefix() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}
