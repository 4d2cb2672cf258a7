package ports

import (
	"context"
	"errors"

	"ToolCurator/internal/domain"
)

// ErrSnapshotConflict is returned by RegistryStore.Replace when the stored
// revision moved between the caller's read and its replace.
var ErrSnapshotConflict = errors.New("registry snapshot changed since read")

// ErrBlobNotFound is returned by BlobStore.Get for absent keys.
var ErrBlobNotFound = errors.New("blob not found")

// RegistryStore persists the full tool/comparison dataset with atomic
// read/replace semantics. Partial in-place mutation is never visible.
type RegistryStore interface {
	Read(ctx context.Context) (*domain.Snapshot, error)
	Replace(ctx context.Context, snapshot *domain.Snapshot) error
}

// BlobStore is the minimal object-storage contract shared by the local
// filesystem and networked implementations.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ModelRequest describes one external model call. WebSearch asks the
// provider to ground the response with live search results.
type ModelRequest struct {
	Model     string
	System    string
	Prompt    string
	WebSearch bool
}

// ModelProvider sends prompts to an external model and returns raw text.
// Callers own parsing and must tolerate formatting fences around payloads.
type ModelProvider interface {
	Generate(ctx context.Context, req ModelRequest) (string, error)
}

// CandidateSource supplies raw tool leads from web search providers.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, queries []string, perQuery int) ([]domain.ToolCandidate, error)
}

// Page is the extracted content of a candidate's landing page.
type Page struct {
	FinalURL string
	Title    string
	Text     string
}

// PageFetcher downloads a candidate URL and extracts readable content.
// Listing/search-result pages are rejected with an error.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// OpportunityStore persists the detected comparison-opportunity set.
type OpportunityStore interface {
	Load(ctx context.Context) (domain.OpportunitySet, error)
	Save(ctx context.Context, set domain.OpportunitySet) error
}

// RunRecorder appends pipeline run summaries to the history log.
type RunRecorder interface {
	Record(ctx context.Context, summary domain.RunSummary) error
}
