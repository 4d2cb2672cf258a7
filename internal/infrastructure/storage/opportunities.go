package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

// OpportunityStore keeps the detected comparison-opportunity set as a JSON
// object next to the registry dataset.
type OpportunityStore struct {
	blobs ports.BlobStore
}

var _ ports.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore wires the store over the given blob backend.
func NewOpportunityStore(blobs ports.BlobStore) *OpportunityStore {
	return &OpportunityStore{blobs: blobs}
}

// Load returns the stored set, or an empty (hence stale) set when absent.
func (s *OpportunityStore) Load(ctx context.Context) (domain.OpportunitySet, error) {
	data, err := s.blobs.Get(ctx, OpportunitiesKey)
	if err != nil {
		if errors.Is(err, ports.ErrBlobNotFound) {
			return domain.OpportunitySet{}, nil
		}
		return domain.OpportunitySet{}, fmt.Errorf("read opportunities: %w", err)
	}

	var set domain.OpportunitySet
	if err := json.Unmarshal(data, &set); err != nil {
		return domain.OpportunitySet{}, fmt.Errorf("decode opportunities: %w", err)
	}
	return set, nil
}

// Save replaces the stored set.
func (s *OpportunityStore) Save(ctx context.Context, set domain.OpportunitySet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("encode opportunities: %w", err)
	}
	if err := s.blobs.Put(ctx, OpportunitiesKey, data, "application/json"); err != nil {
		return fmt.Errorf("write opportunities: %w", err)
	}
	return nil
}
