package backend

import (
	"fmt"

	"chartscope/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := Type(appConfig.SnapshotBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.SnapshotBackend)
	}

	return Config{
		Type: backendType,

		SnapshotDir: appConfig.SnapshotDir,

		SQLiteDBPath: appConfig.SQLiteDBPath,

		GoogleSpreadsheetID:    appConfig.GoogleSpreadsheetID,
		GoogleSummarySheetName: appConfig.GoogleSummarySheetName,
		GoogleTracksSheetName:  appConfig.GoogleTracksSheetName,
		GoogleArtistsSheetName: appConfig.GoogleArtistsSheetName,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case MemoryBackend:
		if c.SnapshotDir == "" {
			return fmt.Errorf("snapshot directory is required for memory backend")
		}

	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
		if c.SnapshotDir == "" {
			return fmt.Errorf("snapshot directory is required to import into the sqlite backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	}

	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, SheetsBackend}
}
