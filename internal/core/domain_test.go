package core

import (
	"errors"
	"testing"
)

func TestSelectionValidate(t *testing.T) {
	tests := []struct {
		name    string
		sel     Selection
		wantErr error
	}{
		{"valid", Selection{Country: "Portugal", Year: 2021}, nil},
		{"global is valid", Selection{Country: GlobalCountry, Year: 2020}, nil},
		{"empty country", Selection{Country: "  ", Year: 2021}, ErrEmptyCountry},
		{"year too small", Selection{Country: "Brazil", Year: 1800}, ErrInvalidYear},
		{"year too large", Selection{Country: "Brazil", Year: 3000}, ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestYearWindowValidate(t *testing.T) {
	if err := (YearWindow{From: 2018, To: 2022}).Validate(); err != nil {
		t.Fatalf("valid window rejected: %v", err)
	}
	if err := (YearWindow{From: 2022, To: 2018}).Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("inverted window accepted: %v", err)
	}
	if err := (YearWindow{From: 2021, To: 2021}).Validate(); err != nil {
		t.Fatalf("single-year window rejected: %v", err)
	}
}

func TestYearWindowContains(t *testing.T) {
	w := YearWindow{From: 2018, To: 2022}
	for _, y := range []int{2018, 2020, 2022} {
		if !w.Contains(y) {
			t.Errorf("Contains(%d) = false, want true", y)
		}
	}
	for _, y := range []int{2017, 2023} {
		if w.Contains(y) {
			t.Errorf("Contains(%d) = true, want false", y)
		}
	}
}

func TestTrackEntryValidate(t *testing.T) {
	base := TrackEntry{Country: "Brazil", Year: 2020, Rank: 1, TrackName: "Song", ArtistName: "Artist"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}

	over := base
	over.Rank = MaxTrackRank + 1
	if err := over.Validate(); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("rank %d accepted: %v", over.Rank, err)
	}

	zero := base
	zero.Rank = 0
	if err := zero.Validate(); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("rank 0 accepted: %v", err)
	}

	noName := base
	noName.TrackName = ""
	if err := noName.Validate(); !errors.Is(err, ErrEmptyTrack) {
		t.Fatalf("empty track name accepted: %v", err)
	}
}

func TestArtistTrendPointValidate(t *testing.T) {
	base := ArtistTrendPoint{Country: "Brazil", Year: 2020, ArtistName: "Artist", Rank: 1}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid point rejected: %v", err)
	}

	over := base
	over.Rank = MaxArtistRank + 1
	if err := over.Validate(); !errors.Is(err, ErrInvalidRank) {
		t.Fatalf("rank %d accepted: %v", over.Rank, err)
	}
}
