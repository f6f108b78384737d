// Package storage is the SQLite-backed snapshot store. The three CSV
// tables are bulk-loaded once at startup; afterwards every read is a SQL
// query, which suits snapshot sets too large to index in RAM.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"chartscope/internal/core"
	"chartscope/internal/snapshot"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

var _ snapshot.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ImportFromFiles decodes the three snapshot CSVs in dir and replaces the
// table contents in one transaction. The snapshots are immutable for the
// life of the process, so a full replace on startup keeps the database in
// step with the files.
func (r *Repository) ImportFromFiles(ctx context.Context, dir string) error {
	sums, tracks, points, err := decodeDir(dir)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"country_year_summary", "top_tracks", "artist_trend"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	sumStmt, err := tx.PrepareContext(ctx, `INSERT INTO country_year_summary
		(country, iso3, year, total_entries, total_streams, unique_artists, unique_tracks, avg_rank, dominant_genre, artist_diversity)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare summary insert: %w", err)
	}
	defer sumStmt.Close()
	for _, s := range sums {
		if _, err := sumStmt.ExecContext(ctx, s.Country, s.ISO3, s.Year, s.TotalEntries, s.TotalStreams,
			s.UniqueArtists, s.UniqueTracks, s.AvgRank, s.DominantGenre, s.ArtistDiversity); err != nil {
			return fmt.Errorf("insert summary %s/%d: %w", s.Country, s.Year, err)
		}
	}

	trackStmt, err := tx.PrepareContext(ctx, `INSERT INTO top_tracks
		(country, year, rank, track_name, artist_name, streams_sum, best_rank, days_charted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare track insert: %w", err)
	}
	defer trackStmt.Close()
	for _, t := range tracks {
		if _, err := trackStmt.ExecContext(ctx, t.Country, t.Year, t.Rank, t.TrackName, t.ArtistName,
			t.StreamsSum, t.BestRank, t.DaysCharted); err != nil {
			return fmt.Errorf("insert track %s/%d rank %d: %w", t.Country, t.Year, t.Rank, err)
		}
	}

	trendStmt, err := tx.PrepareContext(ctx, `INSERT INTO artist_trend
		(country, year, artist_name, streams_sum, rank)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trend insert: %w", err)
	}
	defer trendStmt.Close()
	for _, p := range points {
		if _, err := trendStmt.ExecContext(ctx, p.Country, p.Year, p.ArtistName, p.StreamsSum, p.Rank); err != nil {
			return fmt.Errorf("insert trend %s/%d %s: %w", p.Country, p.Year, p.ArtistName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}

	slog.InfoContext(ctx, "Snapshots imported into SQLite",
		"summaries", len(sums), "tracks", len(tracks), "trend_points", len(points))
	return nil
}

func decodeDir(dir string) ([]core.CountryYearSummary, []core.TrackEntry, []core.ArtistTrendPoint, error) {
	rows, err := snapshot.ReadTable(filepath.Join(dir, snapshot.SummaryFile))
	if err != nil {
		return nil, nil, nil, err
	}
	sums, err := snapshot.DecodeSummaries(rows)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", snapshot.SummaryFile, err)
	}

	rows, err = snapshot.ReadTable(filepath.Join(dir, snapshot.TracksFile))
	if err != nil {
		return nil, nil, nil, err
	}
	tracks, err := snapshot.DecodeTracks(rows)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", snapshot.TracksFile, err)
	}

	rows, err = snapshot.ReadTable(filepath.Join(dir, snapshot.ArtistsFile))
	if err != nil {
		return nil, nil, nil, err
	}
	points, err := snapshot.DecodeTrendPoints(rows)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", snapshot.ArtistsFile, err)
	}

	return sums, tracks, points, nil
}

func (r *Repository) Countries(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT country FROM country_year_summary
		ORDER BY CASE WHEN country = ? THEN 0 ELSE 1 END, country`, core.GlobalCountry)
	if err != nil {
		return nil, fmt.Errorf("query countries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan country: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) Years(ctx context.Context, country string) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT year FROM country_year_summary WHERE country = ? ORDER BY year`, country)
	if err != nil {
		return nil, fmt.Errorf("query years: %w", err)
	}
	defer rows.Close()

	var out []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		out = append(out, y)
	}
	return out, rows.Err()
}

func (r *Repository) SummaryFor(ctx context.Context, country string, year int) (core.CountryYearSummary, bool, error) {
	var s core.CountryYearSummary
	err := r.db.QueryRowContext(ctx, `SELECT country, iso3, year, total_entries, total_streams,
		unique_artists, unique_tracks, avg_rank, dominant_genre, artist_diversity
		FROM country_year_summary WHERE country = ? AND year = ?`, country, year).
		Scan(&s.Country, &s.ISO3, &s.Year, &s.TotalEntries, &s.TotalStreams,
			&s.UniqueArtists, &s.UniqueTracks, &s.AvgRank, &s.DominantGenre, &s.ArtistDiversity)
	if err == sql.ErrNoRows {
		return core.CountryYearSummary{}, false, nil
	}
	if err != nil {
		return core.CountryYearSummary{}, false, fmt.Errorf("query summary: %w", err)
	}
	return s, true, nil
}

func (r *Repository) TracksFor(ctx context.Context, country string, year int) ([]core.TrackEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT country, year, rank, track_name, artist_name,
		streams_sum, best_rank, days_charted
		FROM top_tracks WHERE country = ? AND year = ?
		ORDER BY rank, track_name, artist_name LIMIT ?`, country, year, core.MaxTrackRank)
	if err != nil {
		return nil, fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()

	var out []core.TrackEntry
	for rows.Next() {
		var t core.TrackEntry
		if err := rows.Scan(&t.Country, &t.Year, &t.Rank, &t.TrackName, &t.ArtistName,
			&t.StreamsSum, &t.BestRank, &t.DaysCharted); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) TrendFor(ctx context.Context, country string, window core.YearWindow) ([]core.ArtistTrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT country, year, artist_name, streams_sum, rank
		FROM artist_trend WHERE country = ? AND year BETWEEN ? AND ?`,
		country, window.From, window.To)
	if err != nil {
		return nil, fmt.Errorf("query trend: %w", err)
	}
	defer rows.Close()

	var out []core.ArtistTrendPoint
	for rows.Next() {
		var p core.ArtistTrendPoint
		if err := rows.Scan(&p.Country, &p.Year, &p.ArtistName, &p.StreamsSum, &p.Rank); err != nil {
			return nil, fmt.Errorf("scan trend point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) SummariesForYear(ctx context.Context, year int) ([]core.CountryYearSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT country, iso3, year, total_entries, total_streams,
		unique_artists, unique_tracks, avg_rank, dominant_genre, artist_diversity
		FROM country_year_summary WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("query summaries for year: %w", err)
	}
	defer rows.Close()

	var out []core.CountryYearSummary
	for rows.Next() {
		var s core.CountryYearSummary
		if err := rows.Scan(&s.Country, &s.ISO3, &s.Year, &s.TotalEntries, &s.TotalStreams,
			&s.UniqueArtists, &s.UniqueTracks, &s.AvgRank, &s.DominantGenre, &s.ArtistDiversity); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
