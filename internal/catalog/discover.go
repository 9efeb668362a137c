package catalog

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
)

const (
	DefaultDiscoverSort     = "popularity.desc"
	DefaultDiscoverMinVotes = 10
)

var discoverSorts = map[string]bool{
	"popularity.desc":           true,
	"popularity.asc":            true,
	"vote_average.desc":         true,
	"vote_average.asc":          true,
	"primary_release_date.desc": true,
	"primary_release_date.asc":  true,
	"revenue.desc":              true,
	"revenue.asc":               true,
	"title.asc":                 true,
	"title.desc":                true,
}

// DiscoverFilter narrows a discover query. Zero values are not sent.
type DiscoverFilter struct {
	Genres        []int
	ExcludeGenres []int
	Year          int
	FromDate      string
	ToDate        string
	MinRating     *float64
	MaxRating     *float64
	MinVotes      int
	MinRuntime    int
	MaxRuntime    int
	SortBy        string
}

// Validate rejects filters the catalog would misinterpret.
func (f DiscoverFilter) Validate() error {
	if f.SortBy != "" && !discoverSorts[f.SortBy] {
		return domain.Errorf(domain.ErrInvalidInput, "invalid sortBy %q", f.SortBy)
	}
	if f.Year != 0 && (f.Year < 1874 || f.Year > 2100) {
		return domain.Errorf(domain.ErrInvalidInput, "invalid year %d", f.Year)
	}
	for _, d := range []string{f.FromDate, f.ToDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return domain.Errorf(domain.ErrInvalidInput, "dates must be YYYY-MM-DD, got %q", d)
		}
	}
	for _, r := range []*float64{f.MinRating, f.MaxRating} {
		if r != nil && (*r < 0 || *r > 10) {
			return domain.Errorf(domain.ErrInvalidInput, "rating filters must be between 0 and 10")
		}
	}
	if f.MinRating != nil && f.MaxRating != nil && *f.MinRating > *f.MaxRating {
		return domain.Errorf(domain.ErrInvalidInput, "minRating cannot exceed maxRating")
	}
	if f.MinVotes < 0 || f.MinRuntime < 0 || f.MaxRuntime < 0 {
		return domain.Errorf(domain.ErrInvalidInput, "numeric filters must be non-negative")
	}
	return nil
}

func (f DiscoverFilter) params() url.Values {
	params := url.Values{}
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = DefaultDiscoverSort
	}
	params.Set("sort_by", sortBy)
	params.Set("include_adult", "false")
	params.Set("include_video", "false")

	minVotes := f.MinVotes
	if minVotes == 0 {
		minVotes = DefaultDiscoverMinVotes
	}
	params.Set("vote_count.gte", strconv.Itoa(minVotes))

	if len(f.Genres) > 0 {
		params.Set("with_genres", joinInts(f.Genres))
	}
	if len(f.ExcludeGenres) > 0 {
		params.Set("without_genres", joinInts(f.ExcludeGenres))
	}
	if f.Year != 0 {
		params.Set("primary_release_year", strconv.Itoa(f.Year))
	}
	if f.FromDate != "" {
		params.Set("primary_release_date.gte", f.FromDate)
	}
	if f.ToDate != "" {
		params.Set("primary_release_date.lte", f.ToDate)
	}
	if f.MinRating != nil {
		params.Set("vote_average.gte", strconv.FormatFloat(*f.MinRating, 'f', -1, 64))
	}
	if f.MaxRating != nil {
		params.Set("vote_average.lte", strconv.FormatFloat(*f.MaxRating, 'f', -1, 64))
	}
	if f.MinRuntime > 0 {
		params.Set("with_runtime.gte", strconv.Itoa(f.MinRuntime))
	}
	if f.MaxRuntime > 0 {
		params.Set("with_runtime.lte", strconv.Itoa(f.MaxRuntime))
	}
	return params
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
