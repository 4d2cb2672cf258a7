package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

// Object keys inside the blob store. The registry dataset is content-
// addressed by a fixed key.
const (
	RegistryKey      = "tools.json"
	OpportunitiesKey = "comparison_opportunities.json"
)

// RegistryStore persists the registry snapshot as one JSON object through a
// BlobStore. Reads are served from a cached copy; the cache is invalidated
// only by a successful replace, so consumers may see a stale snapshot but
// never a partial one. Replace checks the stored revision against the one
// the snapshot was read at and refuses to clobber a concurrent write.
type RegistryStore struct {
	blobs  ports.BlobStore
	logger *slog.Logger

	mu     sync.Mutex
	cached *domain.Snapshot
}

var _ ports.RegistryStore = (*RegistryStore)(nil)

// NewRegistryStore wires a snapshot codec over the given blob backend.
func NewRegistryStore(blobs ports.BlobStore, log *slog.Logger) *RegistryStore {
	return &RegistryStore{blobs: blobs, logger: log}
}

// Read returns a deep copy of the current snapshot. An absent dataset
// yields a fresh empty registry.
func (s *RegistryStore) Read(ctx context.Context) (*domain.Snapshot, error) {
	s.mu.Lock()
	if s.cached != nil {
		snap := cloneSnapshot(s.cached)
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cached = cloneSnapshot(snap)
	s.mu.Unlock()
	return snap, nil
}

// Replace atomically writes the snapshot and invalidates the read cache.
// The caller's snapshot must descend from the currently stored revision.
func (s *RegistryStore) Replace(ctx context.Context, snapshot *domain.Snapshot) error {
	stored, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	if stored.Revision != snapshot.Revision {
		return fmt.Errorf("replace registry: stored revision %d, read at %d: %w",
			stored.Revision, snapshot.Revision, ports.ErrSnapshotConflict)
	}

	out := cloneSnapshot(snapshot)
	out.Revision++
	out.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := s.blobs.Put(ctx, RegistryKey, data, "application/json"); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}

	s.mu.Lock()
	s.cached = cloneSnapshot(out)
	s.mu.Unlock()

	snapshot.Revision = out.Revision
	snapshot.LastUpdated = out.LastUpdated

	if s.logger != nil {
		s.logger.Info("registry replaced", "tools", len(out.Tools), "comparisons", len(out.Comparisons), "revision", out.Revision)
	}
	return nil
}

// Invalidate drops the cached snapshot, forcing the next read to hit the
// blob store.
func (s *RegistryStore) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func (s *RegistryStore) fetch(ctx context.Context) (*domain.Snapshot, error) {
	data, err := s.blobs.Get(ctx, RegistryKey)
	if err != nil {
		if errors.Is(err, ports.ErrBlobNotFound) {
			return domain.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if snap.Comparisons == nil {
		snap.Comparisons = map[string]domain.Comparison{}
	}
	return &snap, nil
}

func cloneSnapshot(in *domain.Snapshot) *domain.Snapshot {
	out := &domain.Snapshot{
		Revision:    in.Revision,
		Tools:       make([]domain.Tool, len(in.Tools)),
		Comparisons: make(map[string]domain.Comparison, len(in.Comparisons)),
		Categories:  append([]string(nil), in.Categories...),
		LastUpdated: in.LastUpdated,
	}
	copy(out.Tools, in.Tools)
	for i := range out.Tools {
		out.Tools[i].Comparisons = append([]string(nil), in.Tools[i].Comparisons...)
	}
	for k, v := range in.Comparisons {
		out.Comparisons[k] = v
	}
	return out
}
