package videos

import "errors"

var (
	// ErrAssetStorageUnavailable indicates no asset storage backend is configured.
	ErrAssetStorageUnavailable = errors.New("asset storage unavailable")
	// ErrIngestorClosed is returned when enqueueing after shutdown has begun.
	ErrIngestorClosed = errors.New("upload ingestor closed")
)
