package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
	"github.com/Clark-Hu/movplay/internal/repository/memory"
)

// fakeCatalog serves snapshots for ids listed in titles. Ids in aliases
// resolve to the movie of the id they map to.
type fakeCatalog struct {
	mu       sync.Mutex
	titles   map[string]string
	aliases  map[string]string
	err      error
	delay    time.Duration
	calls    atomic.Int32
	discover catalog.DiscoverFilter
}

func newFakeCatalog(ids ...string) *fakeCatalog {
	c := &fakeCatalog{titles: make(map[string]string), aliases: make(map[string]string)}
	for _, id := range ids {
		c.titles[id] = "Movie " + id
	}
	return c
}

func (c *fakeCatalog) MovieDetails(ctx context.Context, externalID string) (*domain.MovieSnapshot, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if canonical, ok := c.aliases[externalID]; ok {
		externalID = canonical
	}
	title, ok := c.titles[externalID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &domain.MovieSnapshot{
		ExternalID:     externalID,
		Title:          title,
		ExternalRating: domain.RatingSummary{Average: 7.9, Count: 1200},
		Details: []byte(`{"cast":[],"videos":[
			{"key":"tr1","name":"Official Trailer","site":"YouTube","type":"Trailer","official":true},
			{"key":"cl1","name":"Clip","site":"YouTube","type":"Clip"}
		]}`),
	}, nil
}

func (c *fakeCatalog) Search(ctx context.Context, query string, page int) (*catalog.Page, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &catalog.Page{Page: page, Results: []catalog.Summary{{ID: 1, Title: query}}, TotalPages: 1, TotalResults: 1}, nil
}

func (c *fakeCatalog) List(ctx context.Context, category catalog.Category, page int) (*catalog.Page, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &catalog.Page{Page: page, Results: []catalog.Summary{}}, nil
}

func (c *fakeCatalog) Discover(ctx context.Context, filter catalog.DiscoverFilter, page int) (*catalog.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.discover = filter
	return &catalog.Page{Page: page, Results: []catalog.Summary{{ID: 27205, Title: "Inception"}}, TotalPages: 1, TotalResults: 1}, nil
}

func (c *fakeCatalog) Genres(ctx context.Context) ([]domain.Genre, error) {
	if c.err != nil {
		return nil, c.err
	}
	return []domain.Genre{{ID: 18, Name: "Drama"}, {ID: 53, Name: "Thriller"}}, nil
}

func (c *fakeCatalog) Recommendations(ctx context.Context, externalID string, page int) (*catalog.Page, error) {
	return c.related(externalID, page, 603)
}

func (c *fakeCatalog) Similar(ctx context.Context, externalID string, page int) (*catalog.Page, error) {
	return c.related(externalID, page, 680)
}

func (c *fakeCatalog) related(externalID string, page int, id int64) (*catalog.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if _, ok := c.titles[externalID]; !ok {
		return nil, catalog.ErrNotFound
	}
	return &catalog.Page{Page: page, Results: []catalog.Summary{{ID: id}}, TotalPages: 1, TotalResults: 1}, nil
}

type fixture struct {
	svc     *Service
	repo    *memory.Repository
	catalog *fakeCatalog
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	repo := memory.New()
	cat := newFakeCatalog(ids...)
	svc := New(Deps{
		Movies:         repo.Movies,
		Reviews:        repo.Reviews,
		Users:          repo.Users,
		Watchlists:     repo.Watchlists,
		Catalog:        cat,
		Logger:         zap.NewNop(),
		BootstrapAdmin: "root_admin",
	})
	return &fixture{svc: svc, repo: repo, catalog: cat}
}

func (f *fixture) register(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), Registration{
		Username: username,
		Email:    username + "@example.com",
		Password: "Secret123",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) defaultWatchlist(t *testing.T, userID string) domain.Watchlist {
	t.Helper()
	lists, err := f.svc.ListWatchlists(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, lists)
	require.True(t, lists[0].IsDefault)
	return lists[0]
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind, "got %v", err)
}

func TestEnsureMovieCreatesOnFirstReference(t *testing.T) {
	f := newFixture(t, "550")
	ctx := context.Background()

	movie, err := f.svc.EnsureMovie(ctx, "550")
	require.NoError(t, err)
	require.Equal(t, "550", movie.ExternalID)
	require.Equal(t, "Movie 550", movie.Title)
	require.Equal(t, domain.RatingSummary{}, movie.LocalRating)
	require.Equal(t, domain.RatingSummary{Average: 7.9, Count: 1200}, movie.ExternalRating)
	require.Zero(t, movie.ViewCount)
	require.Zero(t, movie.FavoriteCount)
	require.Zero(t, movie.WatchlistCount)

	again, err := f.svc.EnsureMovie(ctx, " 550 ")
	require.NoError(t, err)
	require.Equal(t, movie.ID, again.ID)
	require.EqualValues(t, 1, f.catalog.calls.Load(), "found movies must not hit the catalog")
}

func TestEnsureMovieErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.EnsureMovie(ctx, "  ")
	requireKind(t, err, domain.ErrInvalidInput)

	_, err = f.svc.EnsureMovie(ctx, "404")
	requireKind(t, err, domain.ErrNotFound)

	f.catalog.err = fmt.Errorf("%w: rate limited", catalog.ErrUnavailable)
	_, err = f.svc.EnsureMovie(ctx, "404")
	requireKind(t, err, domain.ErrDependencyUnavailable)
}

func TestEnsureMovieConcurrentFirstReference(t *testing.T) {
	f := newFixture(t, "603")
	f.catalog.delay = 5 * time.Millisecond
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			movie, err := f.svc.EnsureMovie(ctx, "603")
			ids[i], errs[i] = movie.ID, err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	stored, err := f.repo.Movies.GetByExternalID(ctx, "603")
	require.NoError(t, err)
	require.Equal(t, ids[0], stored.ID)
}

// raceStore hides existing rows from the first lookup so the insert path
// collides with a row that already exists.
type raceStore struct {
	MovieStore
	missed atomic.Bool
}

func (r *raceStore) GetByExternalID(ctx context.Context, externalID string) (domain.Movie, error) {
	if r.missed.CompareAndSwap(false, true) {
		return domain.Movie{}, repository.ErrNotFound
	}
	return r.MovieStore.GetByExternalID(ctx, externalID)
}

func TestEnsureMovieRecoversFromInsertRace(t *testing.T) {
	f := newFixture(t, "680")
	ctx := context.Background()

	winner, err := f.svc.EnsureMovie(ctx, "680")
	require.NoError(t, err)

	f.svc.movies = &raceStore{MovieStore: f.repo.Movies}
	loser, err := f.svc.EnsureMovie(ctx, "680")
	require.NoError(t, err)
	require.Equal(t, winner.ID, loser.ID)
	require.EqualValues(t, 2, f.catalog.calls.Load())
}

func TestGetMovieCountsViewsAndFavorite(t *testing.T) {
	f := newFixture(t, "13")
	ctx := context.Background()
	user := f.register(t, "viewer")

	view, err := f.svc.GetMovie(ctx, "", "13")
	require.NoError(t, err)
	require.EqualValues(t, 1, view.ViewCount)
	require.False(t, view.IsFavorited)

	_, err = f.svc.AddFavorite(ctx, user.ID, "13")
	require.NoError(t, err)

	view, err = f.svc.GetMovie(ctx, user.ID, "13")
	require.NoError(t, err)
	require.EqualValues(t, 2, view.ViewCount)
	require.True(t, view.IsFavorited)
}

func TestSearchMovies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SearchMovies(ctx, " ", 1)
	requireKind(t, err, domain.ErrInvalidInput)

	page, err := f.svc.SearchMovies(ctx, "matrix", 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)
	require.Len(t, page.Results, 1)

	f.catalog.err = catalog.ErrUnavailable
	_, err = f.svc.BrowseMovies(ctx, catalog.CategoryPopular, 1)
	requireKind(t, err, domain.ErrDependencyUnavailable)
}

func TestEnsureMovieConvergesOnCatalogID(t *testing.T) {
	f := newFixture(t, "550")
	f.catalog.aliases["tt0137523"] = "550"
	ctx := context.Background()

	movie, err := f.svc.EnsureMovie(ctx, "550")
	require.NoError(t, err)

	for _, id := range []string{"0550", "550-fight-club", " 00550 "} {
		same, err := f.svc.EnsureMovie(ctx, id)
		require.NoError(t, err, id)
		require.Equal(t, movie.ID, same.ID, id)
	}
	require.EqualValues(t, 1, f.catalog.calls.Load(), "numeric forms resolve locally")

	aliased, err := f.svc.EnsureMovie(ctx, "tt0137523")
	require.NoError(t, err)
	require.Equal(t, movie.ID, aliased.ID)
	require.Equal(t, "550", aliased.ExternalID)

	_, err = f.repo.Movies.GetByExternalID(ctx, "tt0137523")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestEnsureMovieAliasBeforeCanonical(t *testing.T) {
	f := newFixture(t, "550")
	f.catalog.aliases["tt0137523"] = "550"
	ctx := context.Background()
	user := f.register(t, "aliaser")

	_, err := f.svc.AddFavorite(ctx, user.ID, "tt0137523")
	require.NoError(t, err)
	favs, err := f.svc.AddFavorite(ctx, user.ID, "550-fight-club")
	require.NoError(t, err)
	require.Len(t, favs, 1)
	require.Equal(t, "550", favs[0].ExternalID)
	require.EqualValues(t, 1, favs[0].FavoriteCount)

	favs, err = f.svc.RemoveFavorite(ctx, user.ID, "0550")
	require.NoError(t, err)
	require.Empty(t, favs)

	stored, err := f.repo.Movies.GetByExternalID(ctx, "550")
	require.NoError(t, err)
	require.Zero(t, stored.FavoriteCount)
}

func TestDiscoverAndRelatedMovies(t *testing.T) {
	f := newFixture(t, "550")
	ctx := context.Background()

	minRating := 7.5
	filter := catalog.DiscoverFilter{Genres: []int{18}, Year: 1999, MinRating: &minRating}
	page, err := f.svc.DiscoverMovies(ctx, filter, 2)
	require.NoError(t, err)
	require.Equal(t, 2, page.Page)
	require.Equal(t, []int{18}, f.catalog.discover.Genres)

	_, err = f.svc.DiscoverMovies(ctx, catalog.DiscoverFilter{SortBy: "rating"}, 1)
	requireKind(t, err, domain.ErrInvalidInput)

	genres, err := f.svc.MovieGenres(ctx)
	require.NoError(t, err)
	require.Len(t, genres, 2)

	recs, err := f.svc.RecommendedMovies(ctx, "0550", 1)
	require.NoError(t, err)
	require.EqualValues(t, 603, recs.Results[0].ID)

	similar, err := f.svc.SimilarMovies(ctx, "550", 1)
	require.NoError(t, err)
	require.EqualValues(t, 680, similar.Results[0].ID)

	_, err = f.svc.SimilarMovies(ctx, "404", 1)
	requireKind(t, err, domain.ErrNotFound)

	f.catalog.err = catalog.ErrUnavailable
	_, err = f.svc.MovieGenres(ctx)
	requireKind(t, err, domain.ErrDependencyUnavailable)
	_, err = f.svc.DiscoverMovies(ctx, filter, 1)
	requireKind(t, err, domain.ErrDependencyUnavailable)
}

func TestMovieTrailers(t *testing.T) {
	f := newFixture(t, "550")
	ctx := context.Background()

	trailers, err := f.svc.MovieTrailers(ctx, "550")
	require.NoError(t, err)
	require.Len(t, trailers, 1)
	require.Equal(t, "tr1", trailers[0].Key)
	require.True(t, trailers[0].Official)

	_, err = f.svc.MovieTrailers(ctx, "404")
	requireKind(t, err, domain.ErrNotFound)
}
