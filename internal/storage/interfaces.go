package storage

import (
	"context"
	"io"

	"github.com/aman-zulfiqar/simpledex-engine/internal/models"
)

// SnapshotPublisher mirrors published snapshots to an external channel
type SnapshotPublisher interface {
	// PublishSnapshot stores the latest snapshot and fans it out to subscribers
	PublishSnapshot(ctx context.Context, update *models.SnapshotUpdate) error
}

// OperationCache keeps recent operation records for quick reads
type OperationCache interface {
	// AddRecentOperation pushes a record onto the recent list
	AddRecentOperation(ctx context.Context, op *models.OperationRecord) error

	// GetRecentOperations retrieves the most recent records, newest first
	GetRecentOperations(ctx context.Context, limit int64) ([]*models.OperationRecord, error)

	// PublishOperation publishes a record to the Pub/Sub channel
	PublishOperation(ctx context.Context, op *models.OperationRecord) error

	// Ping checks if the cache is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// OperationStore defines persistent storage for operation records
type OperationStore interface {
	// InsertOperation appends a record to the journal
	InsertOperation(ctx context.Context, op *models.OperationRecord) error

	// Ping checks if the store is reachable
	Ping(ctx context.Context) error

	io.Closer
}

// BlockHandler is invoked with each newly observed block height
type BlockHandler func(ctx context.Context, block uint64)

// BlockSource defines a feed of new block heights
type BlockSource interface {
	// Start begins watching and blocks until ctx ends
	Start(ctx context.Context, handler BlockHandler) error

	// Stop stops the source
	Stop() error
}
