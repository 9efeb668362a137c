// Command catalog-mock serves a fixed set of movies over the subset of the
// TMDB v3 API used by the catalog client.
package main

import (
	_ "embed"
	"flag"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/logging"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed movies.json
var defaultFixture []byte

const pageSize = 20

type fixtureMovie struct {
	catalog.Summary
	Raw jsoniter.RawMessage `json:"-"`
}

type fixture struct {
	byID   map[string]fixtureMovie
	order  []fixtureMovie
	genres []genre
}

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func loadFixture(data []byte) (*fixture, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	f := &fixture{byID: make(map[string]fixtureMovie, len(raw))}
	seen := make(map[int]bool)
	for id, doc := range raw {
		var m fixtureMovie
		if err := json.Unmarshal(doc, &m.Summary); err != nil {
			return nil, err
		}
		var genres struct {
			Genres []genre `json:"genres"`
		}
		if err := json.Unmarshal(doc, &genres); err != nil {
			return nil, err
		}
		for _, g := range genres.Genres {
			m.GenreIDs = append(m.GenreIDs, g.ID)
			if !seen[g.ID] {
				seen[g.ID] = true
				f.genres = append(f.genres, g)
			}
		}
		m.Raw = doc
		f.byID[id] = m
		f.order = append(f.order, m)
	}
	sort.Slice(f.order, func(i, j int) bool { return f.order[i].Popularity > f.order[j].Popularity })
	sort.Slice(f.genres, func(i, j int) bool { return f.genres[i].ID < f.genres[j].ID })
	return f, nil
}

// discover applies the genre and year filters of a /discover/movie query.
func (f *fixture) discover(q url.Values) func(fixtureMovie) bool {
	with := splitInts(q.Get("with_genres"))
	without := splitInts(q.Get("without_genres"))
	year := q.Get("primary_release_year")
	return func(m fixtureMovie) bool {
		for _, id := range with {
			if !hasGenre(m, id) {
				return false
			}
		}
		for _, id := range without {
			if hasGenre(m, id) {
				return false
			}
		}
		return year == "" || strings.HasPrefix(m.ReleaseDate, year)
	}
}

// related matches other movies sharing at least one genre with m.
func related(m fixtureMovie) func(fixtureMovie) bool {
	return func(other fixtureMovie) bool {
		if other.ID == m.ID {
			return false
		}
		for _, id := range m.GenreIDs {
			if hasGenre(other, id) {
				return true
			}
		}
		return false
	}
}

func hasGenre(m fixtureMovie, id int) bool {
	for _, g := range m.GenreIDs {
		if g == id {
			return true
		}
	}
	return false
}

func splitInts(val string) []int {
	var out []int
	for _, part := range strings.Split(val, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func (f *fixture) page(match func(fixtureMovie) bool, page int) catalog.Page {
	var hits []catalog.Summary
	for _, m := range f.order {
		if match(m) {
			hits = append(hits, m.Summary)
		}
	}
	if page < 1 {
		page = 1
	}
	out := catalog.Page{
		Page:         page,
		Results:      []catalog.Summary{},
		TotalResults: len(hits),
		TotalPages:   (len(hits) + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start < len(hits) {
		end := start + pageSize
		if end > len(hits) {
			end = len(hits)
		}
		out.Results = hits[start:end]
	}
	return out
}

func main() {
	var (
		port     = flag.String("port", "9099", "port to listen on")
		data     = flag.String("data", "", "path to a fixture file; defaults to the embedded set")
		apiKey   = flag.String("api-key", "", "reject requests whose api_key differs (empty accepts any)")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	payload := defaultFixture
	if *data != "" {
		if payload, err = os.ReadFile(*data); err != nil {
			logger.Fatal("read fixture", zap.String("path", *data), zap.Error(err))
		}
	}
	fx, err := loadFixture(payload)
	if err != nil {
		logger.Fatal("parse fixture", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if *apiKey != "" && req.URL.Query().Get("api_key") != *apiKey {
				writeStatus(w, http.StatusUnauthorized, "Invalid API key: You must be granted a valid key.")
				return
			}
			logger.Debug("request", zap.String("path", req.URL.Path), zap.String("query", req.URL.RawQuery))
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/search/movie", func(w http.ResponseWriter, req *http.Request) {
		query := strings.ToLower(strings.TrimSpace(req.URL.Query().Get("query")))
		writeJSON(w, fx.page(func(m fixtureMovie) bool {
			return query != "" && strings.Contains(strings.ToLower(m.Title), query)
		}, pageParam(req)))
	})
	r.Get("/trending/movie/week", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, fx.page(func(fixtureMovie) bool { return true }, pageParam(req)))
	})
	r.Get("/discover/movie", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, fx.page(fx.discover(req.URL.Query()), pageParam(req)))
	})
	r.Get("/genre/movie/list", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, map[string][]genre{"genres": fx.genres})
	})
	relatedHandler := func(w http.ResponseWriter, req *http.Request) {
		m, ok := fx.byID[chi.URLParam(req, "id")]
		if !ok {
			writeStatus(w, http.StatusNotFound, "The resource you requested could not be found.")
			return
		}
		writeJSON(w, fx.page(related(m), pageParam(req)))
	}
	r.Get("/movie/{id}/recommendations", relatedHandler)
	r.Get("/movie/{id}/similar", relatedHandler)
	r.Get("/movie/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		switch catalog.Category(id) {
		case catalog.CategoryPopular, catalog.CategoryTopRated, catalog.CategoryNowPlaying, catalog.CategoryUpcoming:
			writeJSON(w, fx.page(func(fixtureMovie) bool { return true }, pageParam(req)))
			return
		}
		m, ok := fx.byID[id]
		if !ok {
			writeStatus(w, http.StatusNotFound, "The resource you requested could not be found.")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(m.Raw)
	})

	addr := ":" + *port
	logger.Info("mock catalog listening", zap.String("addr", addr), zap.Int("movies", len(fx.byID)))
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		return 1
	}
	return page
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":        false,
		"status_message": message,
	})
}
