package backend

import (
	"context"

	"chartscope/internal/snapshot"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the snapshot store and optional cleanup function
type Result struct {
	Store   snapshot.Store
	Cleanup CleanupFunc
}

// Factory creates snapshot stores based on configuration
type Factory interface {
	// CreateStore creates a snapshot store based on the provided config
	CreateStore(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for store creation
type Config struct {
	// Backend type
	Type Type

	// Snapshot files, read by the memory and sqlite backends
	SnapshotDir string

	// SQLite specific
	SQLiteDBPath string

	// Google Sheets specific
	GoogleSpreadsheetID    string
	GoogleSummarySheetName string
	GoogleTracksSheetName  string
	GoogleArtistsSheetName string
}

// Type represents the type of snapshot backend
type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	SheetsBackend Type = "sheets"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, SheetsBackend:
		return true
	default:
		return false
	}
}
