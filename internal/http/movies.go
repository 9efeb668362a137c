package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movplay/internal/auth"
	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/domain"
)

// movieCategories maps URL segments onto catalog listings.
var movieCategories = map[string]catalog.Category{
	"popular":     catalog.CategoryPopular,
	"top-rated":   catalog.CategoryTopRated,
	"now-playing": catalog.CategoryNowPlaying,
	"upcoming":    catalog.CategoryUpcoming,
	"trending":    catalog.CategoryTrending,
}

type ratingSummaryResponse struct {
	Average float64 `json:"average"`
	Count   int64   `json:"count"`
}

type movieResponse struct {
	ID             string                `json:"id"`
	ExternalID     string                `json:"externalId"`
	Title          string                `json:"title"`
	OriginalTitle  string                `json:"originalTitle,omitempty"`
	Genres         []domain.Genre        `json:"genres"`
	ReleaseDate    *string               `json:"releaseDate"`
	Runtime        *int                  `json:"runtime"`
	ExternalRating ratingSummaryResponse `json:"externalRating"`
	LocalRating    ratingSummaryResponse `json:"localRating"`
	PosterURL      *string               `json:"posterUrl"`
	BackdropURL    *string               `json:"backdropUrl"`
	Overview       string                `json:"overview"`
	Tagline        string                `json:"tagline,omitempty"`
	Status         string                `json:"status,omitempty"`
	Budget         int64                 `json:"budget"`
	Revenue        int64                 `json:"revenue"`
	Popularity     float64               `json:"popularity"`
	Details        json.RawMessage       `json:"details,omitempty"`
	ViewCount      int64                 `json:"viewCount"`
	FavoriteCount  int64                 `json:"favoriteCount"`
	WatchlistCount int64                 `json:"watchlistCount"`
	IsFavorited    *bool                 `json:"isFavorited,omitempty"`
}

type catalogPageResponse struct {
	Page         int            `json:"page"`
	Results      []catalogEntry `json:"results"`
	TotalPages   int            `json:"totalPages"`
	TotalResults int            `json:"totalResults"`
}

type catalogEntry struct {
	ExternalID  string  `json:"externalId"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"releaseDate,omitempty"`
	PosterURL   *string `json:"posterUrl"`
	BackdropURL *string `json:"backdropUrl"`
	GenreIDs    []int   `json:"genreIds"`
	Popularity  float64 `json:"popularity"`
	VoteAverage float64 `json:"voteAverage"`
	VoteCount   int64   `json:"voteCount"`
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	viewer, signedIn := auth.UserIDFromContext(r.Context())
	view, err := s.svc.GetMovie(r.Context(), viewer, chi.URLParam(r, "externalID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := s.toMovieResponse(view.Movie)
	if signedIn {
		resp.IsFavorited = &view.IsFavorited
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRating(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.MovieRating(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toRatingSummary(summary))
}

func (s *Server) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	page, err := parseCatalogPage(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.svc.SearchMovies(r.Context(), r.URL.Query().Get("query"), page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toCatalogPage(result))
}

func (s *Server) handleBrowseMovies(category catalog.Category) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parseCatalogPage(r)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		result, err := s.svc.BrowseMovies(r.Context(), category, page)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, s.toCatalogPage(result))
	}
}

func (s *Server) handleDiscoverMovies(w http.ResponseWriter, r *http.Request) {
	page, err := parseCatalogPage(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	filter, err := parseDiscoverFilter(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.svc.DiscoverMovies(r.Context(), filter, page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toCatalogPage(result))
}

func (s *Server) handleListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := s.svc.MovieGenres(r.Context())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string][]domain.Genre{"genres": genres})
}

func (s *Server) handleRelatedMovies(fetch func(context.Context, string, int) (*catalog.Page, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := parseCatalogPage(r)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		result, err := fetch(r.Context(), chi.URLParam(r, "externalID"), page)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		s.respondJSON(w, http.StatusOK, s.toCatalogPage(result))
	}
}

func (s *Server) handleListTrailers(w http.ResponseWriter, r *http.Request) {
	trailers, err := s.svc.MovieTrailers(r.Context(), chi.URLParam(r, "externalID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := make([]trailerResponse, 0, len(trailers))
	for _, v := range trailers {
		resp = append(resp, trailerResponse{
			Key:      v.Key,
			Name:     v.Name,
			Site:     v.Site,
			Official: v.Official,
			URL:      "https://www.youtube.com/watch?v=" + v.Key,
		})
	}
	s.respondJSON(w, http.StatusOK, map[string][]trailerResponse{"trailers": resp})
}

type trailerResponse struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Official bool   `json:"official"`
	URL      string `json:"url"`
}

// parseDiscoverFilter reads the discover query parameters. Range and
// vocabulary checks are left to DiscoverFilter.Validate.
func parseDiscoverFilter(r *http.Request) (catalog.DiscoverFilter, error) {
	q := r.URL.Query()
	var (
		filter catalog.DiscoverFilter
		err    error
	)
	if filter.Genres, err = parseIntList(q.Get("genres"), "genres"); err != nil {
		return filter, err
	}
	if filter.ExcludeGenres, err = parseIntList(q.Get("excludeGenres"), "excludeGenres"); err != nil {
		return filter, err
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"year", &filter.Year},
		{"minVotes", &filter.MinVotes},
		{"minRuntime", &filter.MinRuntime},
		{"maxRuntime", &filter.MaxRuntime},
	}
	for _, p := range ints {
		val := strings.TrimSpace(q.Get(p.name))
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return filter, domain.Errorf(domain.ErrInvalidInput, "invalid %s value", p.name)
		}
		*p.dst = n
	}
	floats := []struct {
		name string
		dst  **float64
	}{
		{"minRating", &filter.MinRating},
		{"maxRating", &filter.MaxRating},
	}
	for _, p := range floats {
		val := strings.TrimSpace(q.Get(p.name))
		if val == "" {
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return filter, domain.Errorf(domain.ErrInvalidInput, "invalid %s value", p.name)
		}
		*p.dst = &f
	}
	filter.FromDate = strings.TrimSpace(q.Get("fromDate"))
	filter.ToDate = strings.TrimSpace(q.Get("toDate"))
	filter.SortBy = strings.TrimSpace(q.Get("sortBy"))
	return filter, nil
}

func parseIntList(val, name string) ([]int, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	parts := strings.Split(val, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			return nil, domain.Errorf(domain.ErrInvalidInput, "invalid %s value", name)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseCatalogPage(r *http.Request) (int, error) {
	val := strings.TrimSpace(r.URL.Query().Get("page"))
	if val == "" {
		return 1, nil
	}
	page, err := strconv.Atoi(val)
	if err != nil || page < 1 {
		return 0, domain.Errorf(domain.ErrInvalidInput, "invalid page value")
	}
	return page, nil
}

func (s *Server) toMovieResponse(movie domain.Movie) movieResponse {
	resp := movieResponse{
		ID:             movie.ID,
		ExternalID:     movie.ExternalID,
		Title:          movie.Title,
		OriginalTitle:  movie.OriginalTitle,
		Genres:         movie.Genres,
		Runtime:        movie.Runtime,
		ExternalRating: toRatingSummary(movie.ExternalRating),
		LocalRating:    toRatingSummary(movie.LocalRating),
		PosterURL:      s.images.Poster(movie.PosterPath),
		BackdropURL:    s.images.Backdrop(movie.BackdropPath),
		Overview:       movie.Overview,
		Tagline:        movie.Tagline,
		Status:         movie.Status,
		Budget:         movie.Budget,
		Revenue:        movie.Revenue,
		Popularity:     movie.Popularity,
		Details:        movie.Details,
		ViewCount:      movie.ViewCount,
		FavoriteCount:  movie.FavoriteCount,
		WatchlistCount: movie.WatchlistCount,
	}
	if resp.Genres == nil {
		resp.Genres = []domain.Genre{}
	}
	if movie.ReleaseDate != nil {
		d := movie.ReleaseDate.Format(time.DateOnly)
		resp.ReleaseDate = &d
	}
	return resp
}

func (s *Server) toMovieList(movies []domain.Movie) []movieResponse {
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, s.toMovieResponse(m))
	}
	return out
}

func (s *Server) toCatalogPage(p *catalog.Page) catalogPageResponse {
	resp := catalogPageResponse{
		Page:         p.Page,
		Results:      make([]catalogEntry, 0, len(p.Results)),
		TotalPages:   p.TotalPages,
		TotalResults: p.TotalResults,
	}
	for _, m := range p.Results {
		resp.Results = append(resp.Results, catalogEntry{
			ExternalID:  strconv.FormatInt(m.ID, 10),
			Title:       m.Title,
			Overview:    m.Overview,
			ReleaseDate: m.ReleaseDate,
			PosterURL:   s.images.Poster(m.PosterPath),
			BackdropURL: s.images.Backdrop(m.BackdropPath),
			GenreIDs:    m.GenreIDs,
			Popularity:  m.Popularity,
			VoteAverage: m.VoteAverage,
			VoteCount:   m.VoteCount,
		})
	}
	return resp
}

func toRatingSummary(r domain.RatingSummary) ratingSummaryResponse {
	return ratingSummaryResponse{
		Average: domain.RoundToOneDecimal(r.Average),
		Count:   r.Count,
	}
}
