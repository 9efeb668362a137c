package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/domain"
)

const inceptionPayload = `{
  "id": 27205,
  "title": "Inception",
  "original_title": "Inception",
  "genres": [{"id": 28, "name": "Action"}, {"id": 878, "name": "Science Fiction"}],
  "release_date": "2010-07-15",
  "runtime": 148,
  "vote_average": 8.4,
  "vote_count": 35000,
  "poster_path": "/poster.jpg",
  "backdrop_path": "",
  "overview": "A thief who steals corporate secrets.",
  "tagline": "Your mind is the scene of the crime.",
  "status": "Released",
  "budget": 160000000,
  "revenue": 825532764,
  "popularity": 83.1,
  "spoken_languages": [{"iso_639_1": "en", "name": "English"}],
  "production_companies": null,
  "credits": {"cast": [{"name": "Leonardo DiCaprio"}], "crew": [{"name": "Christopher Nolan", "job": "Director"}]},
  "videos": {"results": []},
  "keywords": {"keywords": [{"id": 1, "name": "dream"}]}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewHTTPClient(srv.URL+"/3", "test-key", 2*time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

func TestMovieDetails(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/movie/27205" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api key")
		}
		if r.URL.Query().Get("append_to_response") != "credits,videos,keywords" {
			t.Errorf("append_to_response = %q", r.URL.Query().Get("append_to_response"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(inceptionPayload))
	})

	snap, err := client.MovieDetails(context.Background(), "27205")
	if err != nil {
		t.Fatalf("MovieDetails: %v", err)
	}
	if snap.ExternalID != "27205" || snap.Title != "Inception" {
		t.Fatalf("unexpected snapshot identity: %+v", snap)
	}
	if len(snap.Genres) != 2 || snap.Genres[1].Name != "Science Fiction" {
		t.Fatalf("genres = %+v", snap.Genres)
	}
	if snap.ReleaseDate == nil || snap.ReleaseDate.Year() != 2010 {
		t.Fatalf("release date = %v", snap.ReleaseDate)
	}
	if snap.Runtime == nil || *snap.Runtime != 148 {
		t.Fatalf("runtime = %v", snap.Runtime)
	}
	if snap.ExternalRating.Average != 8.4 || snap.ExternalRating.Count != 35000 {
		t.Fatalf("external rating = %+v", snap.ExternalRating)
	}
	if snap.BackdropPath != nil {
		t.Fatalf("empty backdrop should be nil")
	}

	details := map[string]any{}
	if err := json.Unmarshal(snap.Details, &details); err != nil {
		t.Fatalf("details not JSON: %v", err)
	}
	for _, key := range []string{"spokenLanguages", "cast", "crew", "videos", "keywords"} {
		if _, ok := details[key]; !ok {
			t.Fatalf("details missing %s: %s", key, snap.Details)
		}
	}
	if _, ok := details["productionCompanies"]; ok {
		t.Fatalf("null sub-document should be dropped")
	}
}

func TestMovieDetailsErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"not found", http.StatusNotFound, `{"status_code":34}`, ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, ``, ErrUnavailable},
		{"unauthorized", http.StatusUnauthorized, ``, ErrUnavailable},
		{"server error", http.StatusBadGateway, ``, ErrUnavailable},
		{"malformed body", http.StatusOK, `{"id": "oops"`, ErrUnavailable},
		{"missing title", http.StatusOK, `{"id": 5}`, ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.MovieDetails(context.Background(), "5")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestMovieDetailsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client, err := NewHTTPClient(srv.URL, "k", 500*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	if _, err := client.MovieDetails(context.Background(), "1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSearchAndList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/3/search/movie":
			if r.URL.Query().Get("query") != "dune" || r.URL.Query().Get("page") != "2" {
				t.Errorf("search query = %s", r.URL.RawQuery)
			}
		case r.URL.Path == "/3/movie/top_rated", r.URL.Path == "/3/trending/movie/week":
			if r.URL.Query().Get("page") != "1" {
				t.Errorf("page = %s", r.URL.Query().Get("page"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"page":1,"results":[{"id":438631,"title":"Dune"}],"total_pages":1,"total_results":1}`))
	})

	page, err := client.Search(context.Background(), "dune", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Results) != 1 || page.Results[0].ID != 438631 {
		t.Fatalf("unexpected results: %+v", page.Results)
	}

	for _, category := range []Category{CategoryTopRated, CategoryTrending} {
		if _, err := client.List(context.Background(), category, 0); err != nil {
			t.Fatalf("List(%s): %v", category, err)
		}
	}
	if _, err := client.List(context.Background(), Category("latest"), 1); err == nil || !strings.Contains(err.Error(), "unknown category") {
		t.Fatalf("expected unknown category error, got %v", err)
	}
}

func TestDiscover(t *testing.T) {
	minRating := 7.5
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/discover/movie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{
			"with_genres":          "18,53",
			"primary_release_year": "1999",
			"vote_average.gte":     "7.5",
			"vote_count.gte":       "10",
			"sort_by":              "popularity.desc",
			"page":                 "3",
		}
		for key, val := range want {
			if got := q.Get(key); got != val {
				t.Errorf("%s = %q, want %q", key, got, val)
			}
		}
		if q.Has("vote_average.lte") || q.Has("without_genres") {
			t.Errorf("unset filters were sent: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"page":3,"results":[{"id":550,"title":"Fight Club","genre_ids":[18]}],"total_pages":3,"total_results":41}`))
	})

	page, err := client.Discover(context.Background(), DiscoverFilter{Genres: []int{18, 53}, Year: 1999, MinRating: &minRating}, 3)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if page.TotalResults != 41 || len(page.Results) != 1 || page.Results[0].GenreIDs[0] != 18 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestDiscoverFilterValidate(t *testing.T) {
	low, high := 8.0, 6.0
	outOfRange := 11.0
	cases := []struct {
		name   string
		filter DiscoverFilter
		ok     bool
	}{
		{"empty", DiscoverFilter{}, true},
		{"full", DiscoverFilter{Genres: []int{28}, Year: 2010, FromDate: "2010-01-01", ToDate: "2010-12-31", SortBy: "vote_average.desc"}, true},
		{"unknown sort", DiscoverFilter{SortBy: "rating"}, false},
		{"bad date", DiscoverFilter{FromDate: "01/02/2010"}, false},
		{"inverted ratings", DiscoverFilter{MinRating: &low, MaxRating: &high}, false},
		{"rating out of range", DiscoverFilter{MaxRating: &outOfRange}, false},
		{"year", DiscoverFilter{Year: 12}, false},
		{"negative runtime", DiscoverFilter{MinRuntime: -1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.filter.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestGenresAndRelated(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/genre/movie/list":
			_, _ = w.Write([]byte(`{"genres":[{"id":28,"name":"Action"},{"id":18,"name":"Drama"}]}`))
		case "/3/movie/550/recommendations", "/3/movie/550/similar":
			if r.URL.Query().Get("page") != "2" {
				t.Errorf("page = %s", r.URL.Query().Get("page"))
			}
			_, _ = w.Write([]byte(`{"page":2,"results":[{"id":807,"title":"Se7en"}],"total_pages":2,"total_results":21}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	genres, err := client.Genres(ctx)
	if err != nil {
		t.Fatalf("Genres: %v", err)
	}
	if len(genres) != 2 || genres[0] != (domain.Genre{ID: 28, Name: "Action"}) {
		t.Fatalf("unexpected genres: %+v", genres)
	}

	for name, fetch := range map[string]func(context.Context, string, int) (*Page, error){
		"recommendations": client.Recommendations,
		"similar":         client.Similar,
	} {
		page, err := fetch(ctx, "550", 2)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(page.Results) != 1 || page.Results[0].ID != 807 {
			t.Fatalf("%s: unexpected results %+v", name, page.Results)
		}
		if _, err := fetch(ctx, "999999", 1); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s for unknown id: got %v, want ErrNotFound", name, err)
		}
	}
}

func TestImages(t *testing.T) {
	images := Images{BaseURL: "https://image.tmdb.org/t/p/"}
	path := "/abc.jpg"
	if got := images.Poster(&path); got == nil || *got != "https://image.tmdb.org/t/p/w500/abc.jpg" {
		t.Fatalf("Poster = %v", got)
	}
	if got := images.Backdrop(&path); got == nil || *got != "https://image.tmdb.org/t/p/w1280/abc.jpg" {
		t.Fatalf("Backdrop = %v", got)
	}
	if images.Poster(nil) != nil {
		t.Fatalf("nil path should yield nil URL")
	}
}

func TestIsPassthrough(t *testing.T) {
	cases := map[string]bool{
		`[{"name":"en"}]`: true,
		` {"a":1} `:       true,
		`null`:            false,
		``:                false,
		`{"broken"`:       false,
		`1 2`:             false,
		`[] x`:            false,
	}
	for raw, want := range cases {
		if got := isPassthrough([]byte(raw)); got != want {
			t.Fatalf("isPassthrough(%q) = %v, want %v", raw, got, want)
		}
	}
}
