// Package artifacts copies the files a run produced to durable storage.
package artifacts

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/pipeline"
)

// Store receives run artifacts.
type Store interface {
	Name() string
	// Put stores the file at localPath under key
	Put(ctx context.Context, key, localPath string) error
}

// LocalStore leaves artifacts where the stages wrote them.
type LocalStore struct{}

func NewLocalStore() *LocalStore {
	return &LocalStore{}
}

func (s *LocalStore) Name() string {
	return "local"
}

// Put only checks that the file exists.
func (s *LocalStore) Put(_ context.Context, key, localPath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return errors.NotFoundError("artifact "+localPath).WithContext("key", key)
	}
	return nil
}

// ObjectKey returns the key an artifact is stored under: <run_id>/<name>/<file>.
func ObjectKey(runID, name, localPath string) string {
	return path.Join(runID, name, filepath.Base(localPath))
}

// Uploader copies the artifacts of successful runs to a Store.
type Uploader struct {
	store   Store
	logger  logging.Logger
	timeout time.Duration
}

// NewUploader creates an uploader; a zero timeout means one minute.
func NewUploader(store Store, logger logging.Logger, timeout time.Duration) *Uploader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Uploader{store: store, logger: logger, timeout: timeout}
}

// Upload stores every artifact of rc and returns the keys written, in order
// of artifact name. It stops at the first failure.
func (u *Uploader) Upload(ctx context.Context, rc *pipeline.RunContext) ([]string, error) {
	produced := rc.Artifacts()
	names := make([]string, 0, len(produced))
	for name := range produced {
		names = append(names, name)
	}
	sort.Strings(names)

	keys := make([]string, 0, len(names))
	for _, name := range names {
		key := ObjectKey(rc.RunID, name, produced[name])
		if err := u.store.Put(ctx, key, produced[name]); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// StageFinished implements pipeline.Observer.
func (u *Uploader) StageFinished(*pipeline.RunContext, pipeline.StageResult) {}

// RunFinished uploads the artifacts of a successful run. Failures are logged.
func (u *Uploader) RunFinished(rc *pipeline.RunContext, result *pipeline.Result) {
	if result == nil || !result.Success {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.timeout)
	defer cancel()

	keys, err := u.Upload(ctx, rc)
	if err != nil {
		u.logger.Error("Failed to store run artifacts", err,
			logging.String("store", u.store.Name()),
			logging.String("run_id", rc.RunID),
		)
		return
	}
	u.logger.Info("Run artifacts stored",
		logging.String("store", u.store.Name()),
		logging.Strings("keys", keys),
	)
}
