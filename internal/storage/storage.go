// Package storage publishes the active program as a static JSON document
// to object storage, for clients that read it without calling the API.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/programhub/apiserver/config"
	"github.com/programhub/apiserver/types"
)

const (
	StorageNone  = "none"
	StorageMinio = "minio"
	StorageGCS   = "gcs"

	contentTypeJSON = "application/json"
	cacheControl    = "no-cache, max-age=0"
)

// ObjectStorage defines the object operations the publisher needs.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// NewBackend connects to the object store selected by cfg. It returns a nil
// backend when snapshots are disabled.
func NewBackend(ctx context.Context, cfg config.SnapshotConfig) (ObjectStorage, error) {
	switch cfg.Kind {
	case "", StorageNone:
		return nil, nil
	case StorageMinio:
		client, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return client, nil
	case StorageGCS:
		client, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown snapshot storage %q", cfg.Kind)
	}
}

// Snapshot is the document written for the active program.
type Snapshot struct {
	Program     types.ProgramSetting `json:"program"`
	PublishedAt time.Time            `json:"publishedAt"`
}

// SnapshotPublisher writes the active program under a fixed key.
type SnapshotPublisher struct {
	backend ObjectStorage
	key     string
	now     func() time.Time
}

func NewSnapshotPublisher(backend ObjectStorage, key string) *SnapshotPublisher {
	return &SnapshotPublisher{backend: backend, key: key, now: time.Now}
}

// PublishActive writes program, or removes the document when program is
// nil.
func (p *SnapshotPublisher) PublishActive(ctx context.Context, program *types.ProgramSetting) error {
	if program == nil {
		if err := p.backend.Delete(ctx, p.key); err != nil {
			return fmt.Errorf("remove snapshot %s/%s: %w", p.backend.Bucket(), p.key, err)
		}
		return nil
	}

	data, err := json.Marshal(Snapshot{Program: *program, PublishedAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := p.backend.Put(ctx, p.key, data, contentTypeJSON); err != nil {
		return fmt.Errorf("write snapshot %s/%s: %w", p.backend.Bucket(), p.key, err)
	}
	return nil
}
