package artifacts

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"rul-pipeline/internal/common/errors"
)

// MinioConfig locates the bucket receiving artifacts.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// ObjectClient is the subset of *minio.Client the store uses.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinioStore uploads artifacts to an S3 compatible bucket.
type MinioStore struct {
	client ObjectClient
	bucket string
	region string

	mu    sync.Mutex
	ready bool
}

// NewMinioStore creates a MinIO client. No request is made until the first Put.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ValidationError("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.ValidationError("minio credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.ValidationError("minio bucket is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create minio client", err)
	}
	return NewMinioStoreWithClient(client, cfg.Bucket, cfg.Region), nil
}

// NewMinioStoreWithClient wraps an existing client.
func NewMinioStoreWithClient(client ObjectClient, bucket, region string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket, region: region}
}

func (s *MinioStore) Name() string {
	return "minio"
}

// Put uploads the file, creating the bucket on first use.
func (s *MinioStore) Put(ctx context.Context, key, localPath string) error {
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return errors.InternalError(fmt.Sprintf("failed to upload %s", localPath), err).
			WithContext("bucket", s.bucket).
			WithContext("key", key)
	}
	return nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.ConnectionError("failed to check minio bucket", err).WithContext("bucket", s.bucket)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return errors.ConnectionError("failed to create minio bucket", err).WithContext("bucket", s.bucket)
		}
	}
	s.ready = true
	return nil
}
