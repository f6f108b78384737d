package snapshot

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"chartscope/internal/core"
)

// Expected headers, in order, after snake-case normalization. A mismatch is
// a schema error and aborts the load: the snapshots are produced offline and
// a wrong header means the wrong file or the wrong export version.
var (
	summaryHeader = []string{"country", "iso3", "year", "total_entries", "total_streams", "unique_artists", "unique_tracks", "avg_rank", "dominant_genre", "artist_diversity"}
	tracksHeader  = []string{"country", "year", "rank", "track_name", "artist_name", "streams_sum", "best_rank", "days_charted"}
	artistsHeader = []string{"country", "year", "artist_name", "streams_sum", "rank"}
)

// ReadTable reads a CSV file into a raw row matrix, header included.
func ReadTable(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

// DecodeSummaries converts a raw row matrix (header first) into summary rows.
func DecodeSummaries(rows [][]string) ([]core.CountryYearSummary, error) {
	if err := checkHeader(rows, summaryHeader); err != nil {
		return nil, err
	}
	out := make([]core.CountryYearSummary, 0, len(rows)-1)
	for i, row := range rows[1:] {
		d := rowDecoder{row: row, line: i + 2}
		s := core.CountryYearSummary{
			Country:         d.str(0),
			ISO3:            d.str(1),
			Year:            d.intval(2),
			TotalEntries:    d.int64val(3),
			TotalStreams:    d.int64val(4),
			UniqueArtists:   d.int64val(5),
			UniqueTracks:    d.int64val(6),
			AvgRank:         d.floatval(7),
			DominantGenre:   d.str(8),
			ArtistDiversity: d.floatval(9),
		}
		if d.err != nil {
			return nil, d.err
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("summary row %d: %w", d.line, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// DecodeTracks converts a raw row matrix (header first) into track entries.
func DecodeTracks(rows [][]string) ([]core.TrackEntry, error) {
	if err := checkHeader(rows, tracksHeader); err != nil {
		return nil, err
	}
	out := make([]core.TrackEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		d := rowDecoder{row: row, line: i + 2}
		t := core.TrackEntry{
			Country:     d.str(0),
			Year:        d.intval(1),
			Rank:        d.intval(2),
			TrackName:   d.str(3),
			ArtistName:  d.str(4),
			StreamsSum:  d.int64val(5),
			BestRank:    d.intval(6),
			DaysCharted: d.intval(7),
		}
		if d.err != nil {
			return nil, d.err
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("track row %d: %w", d.line, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// DecodeTrendPoints converts a raw row matrix (header first) into artist
// trend points.
func DecodeTrendPoints(rows [][]string) ([]core.ArtistTrendPoint, error) {
	if err := checkHeader(rows, artistsHeader); err != nil {
		return nil, err
	}
	out := make([]core.ArtistTrendPoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		d := rowDecoder{row: row, line: i + 2}
		p := core.ArtistTrendPoint{
			Country:    d.str(0),
			Year:       d.intval(1),
			ArtistName: d.str(2),
			StreamsSum: d.int64val(3),
			Rank:       d.intval(4),
		}
		if d.err != nil {
			return nil, d.err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("artist row %d: %w", d.line, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func checkHeader(rows [][]string, want []string) error {
	if len(rows) == 0 {
		return fmt.Errorf("empty table, want header %v", want)
	}
	got := rows[0]
	if len(got) != len(want) {
		return fmt.Errorf("unexpected header %v, want %v", got, want)
	}
	for i, h := range got {
		if toSnakeCase(h) != want[i] {
			return fmt.Errorf("unexpected header column %q at position %d, want %q", h, i, want[i])
		}
	}
	return nil
}

// toSnakeCase normalizes "Track Name" to "track_name" for header matching.
func toSnakeCase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// rowDecoder accumulates the first conversion error for a row so call sites
// can decode all columns and check once.
type rowDecoder struct {
	row  []string
	line int
	err  error
}

func (d *rowDecoder) cell(i int) string {
	if i >= len(d.row) {
		if d.err == nil {
			d.err = fmt.Errorf("row %d: missing column %d", d.line, i)
		}
		return ""
	}
	return strings.TrimSpace(d.row[i])
}

func (d *rowDecoder) str(i int) string { return d.cell(i) }

func (d *rowDecoder) intval(i int) int {
	v := d.cell(i)
	if d.err != nil {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		d.err = fmt.Errorf("row %d column %d: %q is not an integer", d.line, i, v)
		return 0
	}
	return n
}

func (d *rowDecoder) int64val(i int) int64 {
	v := d.cell(i)
	if d.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Offline exports sometimes write whole counts as floats.
		if f, ferr := strconv.ParseFloat(v, 64); ferr == nil {
			return int64(f)
		}
		d.err = fmt.Errorf("row %d column %d: %q is not an integer", d.line, i, v)
		return 0
	}
	return n
}

func (d *rowDecoder) floatval(i int) float64 {
	v := d.cell(i)
	if d.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		d.err = fmt.Errorf("row %d column %d: %q is not a number", d.line, i, v)
		return 0
	}
	return f
}
