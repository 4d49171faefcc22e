// Package blockstore implements the content-addressed key/value store
// the oplog core treats as an external collaborator (spec.md §1): one
// capability contract, three backends — an in-memory store for tests
// and single-process demos, a Postgres-backed store for a durable
// single-node deployment, and an S3-backed store for object-storage
// deployments.
package blockstore

import (
	"context"
	"fmt"

	"github.com/meshlog/oplogsync/internal/common"
)

// Store is the block storage capability: get/put/has/delete keyed by
// content-identifier string. The oplog core and the manifest package
// declare their own narrower Put/Get interfaces, which every Store
// satisfies.
type Store interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ErrBlockNotFound is returned by Get when key is absent. Delete of an
// absent key does not return it.
var ErrBlockNotFound = fmt.Errorf("blockstore: %w", common.ErrNotFound)
