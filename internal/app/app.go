package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/infrastructure/runlog"
	"ToolCurator/internal/infrastructure/search"
	"ToolCurator/internal/infrastructure/storage"
	"ToolCurator/internal/infrastructure/webpage"
	"ToolCurator/internal/logging"
	"ToolCurator/internal/ports"
	"ToolCurator/internal/usecase"
)

// Application wires configuration to stores, the model provider and the
// pipeline service.
type Application struct {
	cfg     config.Config
	Service *usecase.Service
	Blobs   ports.BlobStore
	RunLog  *runlog.SQLiteStore
	log     *slog.Logger
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	blobs, err := newBlobStore(ctx, cfg.Storage, baseLogger)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewGeminiProvider(ctx, cfg.Model, cfg.Limits.CallTimeout, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("model provider: %w", err)
	}

	runLog, err := runlog.Open(cfg.Storage.RunHistoryDB)
	if err != nil {
		return nil, err
	}

	registry := storage.NewRegistryStore(blobs, baseLogger.With("component", "registry"))
	opportunities := storage.NewOpportunityStore(blobs)
	source := search.NewModelSource(provider, cfg.Model.ValidatorModel, baseLogger)
	fetcher := webpage.NewFetcher(&http.Client{Timeout: 20 * time.Second})

	service := usecase.NewService(cfg, provider, registry, opportunities, source, fetcher, runLog, baseLogger)

	return &Application{
		cfg:     cfg,
		Service: service,
		Blobs:   blobs,
		RunLog:  runLog,
		log:     baseLogger,
	}, nil
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.RunLog != nil {
		return a.RunLog.Close()
	}
	return nil
}

func newBlobStore(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (ports.BlobStore, error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return storage.NewLocalStore(cfg.LocalDataDir)
	case config.BackendMinio:
		return storage.NewMinioStore(ctx, cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
