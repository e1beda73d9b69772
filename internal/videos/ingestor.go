package videos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// AssetStorage persists uploaded video files and returns their public location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// StatusUpdater records the processing lifecycle of an uploaded video.
type StatusUpdater interface {
	MarkProcessing(ctx context.Context, id int64) error
	MarkReady(ctx context.Context, id int64, location string, size int64) error
	MarkFailed(ctx context.Context, id int64) error
}

// FeedInvalidator drops cached feed pages once a video becomes visible.
type FeedInvalidator interface {
	Invalidate()
}

// UploadIngestorConfig controls the concurrency characteristics of the ingestor.
type UploadIngestorConfig struct {
	QueueSize int
	Workers   int
	// StoreTimeout bounds a single asset upload.
	StoreTimeout time.Duration
}

// Upload is a received file waiting to be moved into asset storage.
type Upload struct {
	VideoID  int64
	TempPath string
	Filename string
}

// UploadIngestor asynchronously moves uploaded files into asset storage and
// advances each video from uploading to ready or failed.
type UploadIngestor struct {
	storage     AssetStorage
	updater     StatusUpdater
	invalidator FeedInvalidator
	logger      *slog.Logger
	timeout     time.Duration

	jobs   chan Upload
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewUploadIngestor starts a worker pool that persists uploads. The invalidator may be nil.
func NewUploadIngestor(storage AssetStorage, updater StatusUpdater, invalidator FeedInvalidator, cfg UploadIngestorConfig, logger *slog.Logger) *UploadIngestor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	ing := &UploadIngestor{
		storage:     storage,
		updater:     updater,
		invalidator: invalidator,
		logger:      logger,
		timeout:     cfg.StoreTimeout,
		jobs:        make(chan Upload, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}

	ing.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go ing.worker()
	}

	return ing
}

// Enqueue schedules an upload for persistence.
func (i *UploadIngestor) Enqueue(ctx context.Context, upload Upload) error {
	if i.storage == nil {
		return ErrAssetStorageUnavailable
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.ctx.Done():
		return ErrIngestorClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-i.ctx.Done():
		return ErrIngestorClosed
	case i.jobs <- upload:
		return nil
	}
}

// Shutdown stops accepting work and waits for in-flight uploads to finish.
// Queued uploads that have not started are marked failed.
func (i *UploadIngestor) Shutdown(ctx context.Context) error {
	i.once.Do(i.cancel)

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	for {
		select {
		case upload := <-i.jobs:
			i.logger.Warn("dropping queued upload on shutdown", "videoId", upload.VideoID)
			i.recordFailure(upload)
			removeTemp(i.logger, upload.TempPath)
		default:
			return nil
		}
	}
}

func (i *UploadIngestor) worker() {
	defer i.wg.Done()

	for {
		select {
		case <-i.ctx.Done():
			return
		case upload := <-i.jobs:
			i.handle(upload)
		}
	}
}

func (i *UploadIngestor) handle(upload Upload) {
	defer removeTemp(i.logger, upload.TempPath)

	logger := i.logger.With("videoId", upload.VideoID)

	if i.updater == nil {
		logger.Error("upload ingestor has no status updater")
		return
	}

	if err := i.withTimeout(5*time.Second, func(ctx context.Context) error {
		return i.updater.MarkProcessing(ctx, upload.VideoID)
	}); err != nil {
		logger.Error("mark video processing", "error", err)
	}

	location, size, err := i.store(upload)
	if err != nil {
		logger.Error("store video asset", "error", err)
		i.recordFailure(upload)
		return
	}

	if err := i.withTimeout(5*time.Second, func(ctx context.Context) error {
		return i.updater.MarkReady(ctx, upload.VideoID, location, size)
	}); err != nil {
		logger.Error("mark video ready", "error", err)
		i.recordFailure(upload)
		return
	}

	if i.invalidator != nil {
		i.invalidator.Invalidate()
	}
	logger.Info("video ready", "location", location, "size", size)
}

func (i *UploadIngestor) store(upload Upload) (string, int64, error) {
	f, err := os.Open(upload.TempPath)
	if err != nil {
		return "", 0, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, fmt.Errorf("stat upload: %w", err)
	}

	var location string
	err = i.withTimeout(i.timeout, func(ctx context.Context) error {
		var saveErr error
		location, saveErr = i.storage.Save(ctx, AssetKey(upload.VideoID, upload.Filename), f)
		return saveErr
	})
	if err != nil {
		return "", 0, err
	}

	return location, info.Size(), nil
}

func (i *UploadIngestor) recordFailure(upload Upload) {
	if i.updater == nil {
		return
	}
	if err := i.withTimeout(5*time.Second, func(ctx context.Context) error {
		return i.updater.MarkFailed(ctx, upload.VideoID)
	}); err != nil {
		i.logger.Error("record upload failure", "videoId", upload.VideoID, "error", err)
	}
}

func (i *UploadIngestor) withTimeout(d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return fn(ctx)
}

// AssetKey is the storage key of a video's asset.
func AssetKey(videoID int64, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "video"
	}
	return path.Join("videos", strconv.FormatInt(videoID, 10), name)
}

func removeTemp(logger *slog.Logger, name string) {
	if name == "" {
		return
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		logger.Warn("remove temporary upload", "path", name, "error", err)
	}
}
