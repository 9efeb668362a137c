package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Genre is a catalog genre reference.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RatingSummary is an average over a number of ratings.
type RatingSummary struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

// MovieSnapshot is the normalized view of a catalog entry used to seed a
// local Movie. Details holds the parts of the catalog payload that are
// stored and returned verbatim (languages, production, cast, crew,
// keywords, videos).
type MovieSnapshot struct {
	ExternalID     string
	Title          string
	OriginalTitle  string
	Genres         []Genre
	ReleaseDate    *time.Time
	Runtime        *int
	ExternalRating RatingSummary
	PosterPath     *string
	BackdropPath   *string
	Overview       string
	Tagline        string
	Status         string
	Budget         int64
	Revenue        int64
	Popularity     float64
	Details        json.RawMessage
}

// Movie is the local record for a catalog entry. LocalRating is derived
// from visible reviews only and is never written from catalog data.
type Movie struct {
	ID             string
	ExternalID     string
	Title          string
	OriginalTitle  string
	Genres         []Genre
	ReleaseDate    *time.Time
	Runtime        *int
	ExternalRating RatingSummary
	LocalRating    RatingSummary
	PosterPath     *string
	BackdropPath   *string
	Overview       string
	Tagline        string
	Status         string
	Budget         int64
	Revenue        int64
	Popularity     float64
	Details        json.RawMessage
	ViewCount      int64
	FavoriteCount  int64
	WatchlistCount int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewMovie seeds a Movie from a catalog snapshot with zeroed derived fields.
func NewMovie(id string, snap MovieSnapshot, now time.Time) Movie {
	return Movie{
		ID:             id,
		ExternalID:     snap.ExternalID,
		Title:          snap.Title,
		OriginalTitle:  snap.OriginalTitle,
		Genres:         snap.Genres,
		ReleaseDate:    snap.ReleaseDate,
		Runtime:        snap.Runtime,
		ExternalRating: snap.ExternalRating,
		PosterPath:     snap.PosterPath,
		BackdropPath:   snap.BackdropPath,
		Overview:       snap.Overview,
		Tagline:        snap.Tagline,
		Status:         snap.Status,
		Budget:         snap.Budget,
		Revenue:        snap.Revenue,
		Popularity:     snap.Popularity,
		Details:        snap.Details,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ReleaseYear returns the year of ReleaseDate or 0 when unknown.
func (m Movie) ReleaseYear() int {
	if m.ReleaseDate == nil {
		return 0
	}
	return m.ReleaseDate.Year()
}

// CanonicalExternalID trims id and reduces numeric catalog ids, including
// zero-padded and slugged forms such as "0550" or "550-fight-club", to
// their plain decimal form. Other ids are returned trimmed.
func CanonicalExternalID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", Errorf(ErrInvalidInput, "movie id is required")
	}
	digits := id
	if i := strings.IndexByte(id, '-'); i > 0 {
		digits = id[:i]
	}
	if n, err := strconv.ParseUint(digits, 10, 64); err == nil && n > 0 {
		return strconv.FormatUint(n, 10), nil
	}
	return id, nil
}
