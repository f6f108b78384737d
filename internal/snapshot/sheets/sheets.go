// Package sheets reads the three snapshot tables from tabs of a Google
// Spreadsheet. Rows go through the same decoder as the CSV path and land in
// the in-memory store, so derived-view semantics are identical to the
// memory backend.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"chartscope/internal/snapshot"
	"chartscope/internal/snapshot/memory"
)

type Source struct {
	svc           *gsheet.Service
	spreadsheetID string
	summarySheet  string
	tracksSheet   string
	artistsSheet  string
}

// Config names the spreadsheet and the tab holding each table.
type Config struct {
	SpreadsheetID string
	SummarySheet  string
	TracksSheet   string
	ArtistsSheet  string
}

// NewFromEnv creates a Sheets source using environment variables.
// Required: GOOGLE_SPREADSHEET_ID. Tab names default to the snapshot file
// base names. Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context) (*Source, error) {
	cfg := Config{
		SpreadsheetID: strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SummarySheet:  strings.TrimSpace(os.Getenv("GOOGLE_SUMMARY_SHEET_NAME")),
		TracksSheet:   strings.TrimSpace(os.Getenv("GOOGLE_TRACKS_SHEET_NAME")),
		ArtistsSheet:  strings.TrimSpace(os.Getenv("GOOGLE_ARTISTS_SHEET_NAME")),
	}
	return New(ctx, cfg)
}

// New creates a Sheets source for the given spreadsheet configuration.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.SummarySheet == "" {
		cfg.SummarySheet = "country_year_summary"
	}
	if cfg.TracksSheet == "" {
		cfg.TracksSheet = "top_tracks_country_year_top500"
	}
	if cfg.ArtistsSheet == "" {
		cfg.ArtistsSheet = "artist_country_year_top200"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Source{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		summarySheet:  cfg.SummarySheet,
		tracksSheet:   cfg.TracksSheet,
		artistsSheet:  cfg.ArtistsSheet,
	}, nil
}

// newSheetsService initializes a Sheets service using Service Account
// credentials from the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Load fetches the three tabs and builds the indexed store. One-shot: any
// missing tab or schema mismatch fails the whole load.
func (s *Source) Load(ctx context.Context) (*memory.Store, error) {
	sumRows, err := s.fetch(ctx, s.summarySheet)
	if err != nil {
		return nil, err
	}
	sums, err := snapshot.DecodeSummaries(sumRows)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", s.summarySheet, err)
	}

	trackRows, err := s.fetch(ctx, s.tracksSheet)
	if err != nil {
		return nil, err
	}
	tracks, err := snapshot.DecodeTracks(trackRows)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", s.tracksSheet, err)
	}

	artistRows, err := s.fetch(ctx, s.artistsSheet)
	if err != nil {
		return nil, err
	}
	points, err := snapshot.DecodeTrendPoints(artistRows)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", s.artistsSheet, err)
	}

	slog.InfoContext(ctx, "Snapshots fetched from spreadsheet",
		"summaries", len(sums), "tracks", len(tracks), "trend_points", len(points))

	return memory.New(sums, tracks, points)
}

func (s *Source) fetch(ctx context.Context, sheetName string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch sheet %s: %w", sheetName, err)
	}
	return toStringRows(resp.Values), nil
}

// toStringRows flattens the Sheets values matrix to strings, the shape the
// shared decoder expects.
func toStringRows(values [][]interface{}) [][]string {
	rows := make([][]string, 0, len(values))
	for _, row := range values {
		out := make([]string, 0, len(row))
		for _, cell := range row {
			out = append(out, strings.TrimSpace(fmt.Sprintf("%v", cell)))
		}
		rows = append(rows, out)
	}
	return rows
}
