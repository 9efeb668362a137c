package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
	"github.com/Clark-Hu/movplay/internal/repository/memory"
	"github.com/Clark-Hu/movplay/internal/service"
)

var (
	_ service.MovieStore     = (*memory.MoviesRepository)(nil)
	_ service.ReviewStore    = (*memory.ReviewsRepository)(nil)
	_ service.UserStore      = (*memory.UsersRepository)(nil)
	_ service.WatchlistStore = (*memory.WatchlistsRepository)(nil)

	_ service.MovieStore     = (*repository.MoviesRepository)(nil)
	_ service.ReviewStore    = (*repository.ReviewsRepository)(nil)
	_ service.UserStore      = (*repository.UsersRepository)(nil)
	_ service.WatchlistStore = (*repository.WatchlistsRepository)(nil)
)

func seed(t *testing.T) (*memory.Repository, domain.User, domain.Movie) {
	t.Helper()
	ctx := context.Background()
	repo := memory.New()
	user, err := repo.Users.Create(ctx, domain.User{ID: "u1", Username: "Alice", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	movie, err := repo.Movies.Insert(ctx, domain.NewMovie("m1", domain.MovieSnapshot{ExternalID: "550", Title: "Fight Club"}, time.Now()))
	if err != nil {
		t.Fatalf("insert movie: %v", err)
	}
	return repo, user, movie
}

func TestUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	repo, user, movie := seed(t)

	tests := []struct {
		name string
		run  func() error
	}{
		{"username ignores case", func() error {
			_, err := repo.Users.Create(ctx, domain.User{ID: "u2", Username: "ALICE", Email: "other@example.com"})
			return err
		}},
		{"email", func() error {
			_, err := repo.Users.Create(ctx, domain.User{ID: "u3", Username: "bob", Email: "alice@example.com"})
			return err
		}},
		{"movie external id", func() error {
			_, err := repo.Movies.Insert(ctx, domain.NewMovie("m2", domain.MovieSnapshot{ExternalID: "550"}, time.Now()))
			return err
		}},
		{"review per user and movie", func() error {
			review := domain.Review{UserID: user.ID, MovieID: movie.ID, ExternalID: "550", Rating: 7, Visible: true}
			review.ID = "r1"
			if _, err := repo.Reviews.Insert(ctx, review); err != nil {
				return err
			}
			review.ID = "r2"
			_, err := repo.Reviews.Insert(ctx, review)
			return err
		}},
		{"one default watchlist", func() error {
			if _, err := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w1", UserID: user.ID, Name: "a", IsDefault: true}); err != nil {
				return err
			}
			_, err := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w2", UserID: user.ID, Name: "b", IsDefault: true})
			return err
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, repository.ErrDuplicateKey) {
				t.Fatalf("got %v, want ErrDuplicateKey", err)
			}
		})
	}
}

func TestMissingReferencesAreNotFound(t *testing.T) {
	ctx := context.Background()
	repo, user, movie := seed(t)

	if err := repo.Users.Follow(ctx, user.ID, "ghost"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("follow ghost: got %v", err)
	}
	wl, err := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w1", UserID: user.ID, Name: "list"})
	if err != nil {
		t.Fatalf("create watchlist: %v", err)
	}
	if err := repo.Watchlists.AddEntry(ctx, wl.ID, domain.WatchlistEntry{MovieID: "ghost", ExternalID: "1"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("add unknown movie: got %v", err)
	}
	if err := repo.Watchlists.MarkWatched(ctx, wl.ID, movie.ExternalID, time.Now(), nil, nil); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("mark absent entry: got %v", err)
	}
	if _, err := repo.Movies.SetLocalRating(ctx, "ghost", domain.RatingSummary{}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("rating for ghost: got %v", err)
	}
}

func TestCountersFollowTransitions(t *testing.T) {
	ctx := context.Background()
	repo, user, movie := seed(t)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Users.AddFavorite(ctx, user.ID, movie.ID); err != nil {
				t.Errorf("add favorite: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := repo.Movies.GetByID(ctx, movie.ID)
	if got.FavoriteCount != 1 {
		t.Fatalf("favorite count = %d, want 1", got.FavoriteCount)
	}

	wl, _ := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w1", UserID: user.ID, Name: "list"})
	if err := repo.Watchlists.AddEntry(ctx, wl.ID, domain.WatchlistEntry{MovieID: movie.ID, ExternalID: movie.ExternalID}); err != nil {
		t.Fatalf("add entry: %v", err)
	}
	got, _ = repo.Movies.GetByID(ctx, movie.ID)
	if got.WatchlistCount != 1 {
		t.Fatalf("watchlist count = %d, want 1", got.WatchlistCount)
	}
	if err := repo.Watchlists.Delete(ctx, wl.ID); err != nil {
		t.Fatalf("delete watchlist: %v", err)
	}
	got, _ = repo.Movies.GetByID(ctx, movie.ID)
	if got.WatchlistCount != 0 {
		t.Fatalf("watchlist count after delete = %d, want 0", got.WatchlistCount)
	}
}

func TestDeleteUserReleasesEverything(t *testing.T) {
	ctx := context.Background()
	repo, user, movie := seed(t)

	other, err := repo.Users.Create(ctx, domain.User{ID: "u2", Username: "Bob", Email: "bob@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := repo.Users.AddFavorite(ctx, user.ID, movie.ID); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if err := repo.Users.Follow(ctx, other.ID, user.ID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	wl, _ := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w1", UserID: user.ID, Name: "list", IsDefault: true})
	if err := repo.Watchlists.AddEntry(ctx, wl.ID, domain.WatchlistEntry{MovieID: movie.ID, ExternalID: movie.ExternalID}); err != nil {
		t.Fatalf("add entry: %v", err)
	}

	if err := repo.Users.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := repo.Users.Delete(ctx, user.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	got, _ := repo.Movies.GetByID(ctx, movie.ID)
	if got.FavoriteCount != 0 || got.WatchlistCount != 0 {
		t.Fatalf("counters not released: favorites=%d watchlists=%d", got.FavoriteCount, got.WatchlistCount)
	}
	if _, err := repo.Watchlists.GetByID(ctx, wl.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("watchlist survived its owner: %v", err)
	}
	following, _ := repo.Users.ListFollowing(ctx, other.ID)
	if len(following) != 0 {
		t.Fatalf("follow edge survived: %v", following)
	}
	if _, err := repo.Users.Create(ctx, domain.User{ID: "u3", Username: "alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("username and email should be free again: %v", err)
	}
}

func TestReturnedWatchlistsAreCopies(t *testing.T) {
	ctx := context.Background()
	repo, user, _ := seed(t)

	wl, err := repo.Watchlists.Create(ctx, domain.Watchlist{ID: "w1", UserID: user.ID, Name: "list", Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	wl.Tags[0] = "mutated"

	again, _ := repo.Watchlists.GetByID(ctx, wl.ID)
	if again.Tags[0] != "a" {
		t.Fatalf("stored tags changed through returned value: %v", again.Tags)
	}
}
