package artifacts

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/pipeline"
)

type MockObjectClient struct {
	mock.Mock
}

func (m *MockObjectClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectClient) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *MockObjectClient) FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucket, object, filePath, opts)
	return minio.UploadInfo{Bucket: bucket, Key: object}, args.Error(0)
}

type recordingStore struct {
	puts map[string]string
	err  error
}

func (s *recordingStore) Name() string { return "recording" }

func (s *recordingStore) Put(_ context.Context, key, localPath string) error {
	if s.err != nil {
		return s.err
	}
	if s.puts == nil {
		s.puts = map[string]string{}
	}
	s.puts[key] = localPath
	return nil
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "run-1/model/model.gob", ObjectKey("run-1", "model", "/artifacts/model_trainer/model.gob"))
}

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore()
	assert.Equal(t, "local", s.Name())

	require.NoError(t, s.Put(context.Background(), "k", writeFile(t, dir, "metrics.json")))
	err := s.Put(context.Background(), "k", filepath.Join(dir, "missing.json"))
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
}

func TestUploader_Upload(t *testing.T) {
	dir := t.TempDir()
	rc := pipeline.NewRunContext("run-9", nil)
	rc.SetArtifact("model", writeFile(t, dir, "model.gob"))
	rc.SetArtifact("metrics", writeFile(t, dir, "metrics.json"))

	store := &recordingStore{}
	keys, err := NewUploader(store, nil, 0).Upload(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-9/metrics/metrics.json", "run-9/model/model.gob"}, keys)
	assert.Equal(t, filepath.Join(dir, "model.gob"), store.puts["run-9/model/model.gob"])
}

func TestUploader_RunFinished(t *testing.T) {
	dir := t.TempDir()
	rc := pipeline.NewRunContext("run-10", nil)
	rc.SetArtifact("metrics", writeFile(t, dir, "metrics.json"))

	t.Run("failed runs are not uploaded", func(t *testing.T) {
		store := &recordingStore{}
		u := NewUploader(store, nil, 0)
		u.StageFinished(rc, pipeline.StageResult{})
		u.RunFinished(rc, &pipeline.Result{Success: false})
		assert.Empty(t, store.puts)
	})

	t.Run("successful runs are uploaded", func(t *testing.T) {
		store := &recordingStore{}
		NewUploader(store, nil, 0).RunFinished(rc, &pipeline.Result{Success: true})
		assert.Len(t, store.puts, 1)
	})

	t.Run("store errors are swallowed", func(t *testing.T) {
		store := &recordingStore{err: stderrors.New("disk full")}
		assert.NotPanics(t, func() {
			NewUploader(store, nil, 0).RunFinished(rc, &pipeline.Result{Success: true})
		})
	})
}

func TestNewMinioStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  MinioConfig
	}{
		{"missing endpoint", MinioConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"missing credentials", MinioConfig{Endpoint: "localhost:9000", Bucket: "b"}},
		{"missing bucket", MinioConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMinioStore(tt.cfg)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		})
	}

	s, err := NewMinioStore(MinioConfig{Endpoint: "https://minio.local", AccessKey: "a", SecretKey: "s", Bucket: "b"})
	require.NoError(t, err)
	assert.Equal(t, "minio", s.Name())
}

func TestMinioStore_PutCreatesBucketOnce(t *testing.T) {
	client := new(MockObjectClient)
	client.On("BucketExists", mock.Anything, "rul").Return(false, nil).Once()
	client.On("MakeBucket", mock.Anything, "rul", minio.MakeBucketOptions{Region: "eu"}).Return(nil).Once()
	client.On("FPutObject", mock.Anything, "rul", mock.Anything, mock.Anything, mock.Anything).Return(nil).Twice()

	s := NewMinioStoreWithClient(client, "rul", "eu")
	require.NoError(t, s.Put(context.Background(), "r/model/model.gob", "/tmp/model.gob"))
	require.NoError(t, s.Put(context.Background(), "r/metrics/metrics.json", "/tmp/metrics.json"))

	client.AssertExpectations(t)
	client.AssertCalled(t, "FPutObject", mock.Anything, "rul", "r/model/model.gob", "/tmp/model.gob", mock.Anything)
}

func TestMinioStore_Errors(t *testing.T) {
	t.Run("bucket check fails and is retried", func(t *testing.T) {
		client := new(MockObjectClient)
		client.On("BucketExists", mock.Anything, "rul").Return(false, stderrors.New("dial tcp: refused")).Once()
		client.On("BucketExists", mock.Anything, "rul").Return(true, nil).Once()
		client.On("FPutObject", mock.Anything, "rul", "k", "p", mock.Anything).Return(nil).Once()

		s := NewMinioStoreWithClient(client, "rul", "")
		err := s.Put(context.Background(), "k", "p")
		assert.True(t, errors.IsType(err, errors.ErrTypeConnection))
		require.NoError(t, s.Put(context.Background(), "k", "p"))
		client.AssertExpectations(t)
	})

	t.Run("upload fails", func(t *testing.T) {
		client := new(MockObjectClient)
		client.On("BucketExists", mock.Anything, "rul").Return(true, nil)
		client.On("FPutObject", mock.Anything, "rul", "k", "p", mock.Anything).Return(stderrors.New("access denied"))

		err := NewMinioStoreWithClient(client, "rul", "").Put(context.Background(), "k", "p")
		assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})
}
