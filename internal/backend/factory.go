package backend

import (
	"context"
	"fmt"
	"log/slog"

	"chartscope/internal/snapshot/memory"
	"chartscope/internal/snapshot/sheets"
	"chartscope/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateStore implements Factory.CreateStore
func (f *DefaultFactory) CreateStore(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case MemoryBackend:
		return f.createMemoryStore(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteStore(ctx, config)
	case SheetsBackend:
		return f.createSheetsStore(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createMemoryStore(ctx context.Context, config Config) (*Result, error) {
	store, err := memory.NewFromFiles(ctx, config.SnapshotDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot files: %w", err)
	}

	sums, tracks, points := store.Counts()
	f.logger.Info("Initialized memory backend",
		"snapshot_dir", config.SnapshotDir,
		"summaries", sums,
		"tracks", tracks,
		"trend_points", points)

	return &Result{
		Store:   store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

func (f *DefaultFactory) createSQLiteStore(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if err := repo.ImportFromFiles(ctx, config.SnapshotDir); err != nil {
		closeErr := repo.Close()
		if closeErr != nil {
			f.logger.Warn("Failed to close repository after import error", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to import snapshot files: %w", err)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"snapshot_dir", config.SnapshotDir)

	return &Result{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsStore(ctx context.Context, config Config) (*Result, error) {
	src, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID: config.GoogleSpreadsheetID,
		SummarySheet:  config.GoogleSummarySheetName,
		TracksSheet:   config.GoogleTracksSheetName,
		ArtistsSheet:  config.GoogleArtistsSheetName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	// The spreadsheet is fetched once at startup; the indexed in-memory
	// store serves all reads afterwards.
	store, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots from spreadsheet: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID)

	return &Result{
		Store:   store,
		Cleanup: nil, // No cleanup needed for sheets backend
	}, nil
}
