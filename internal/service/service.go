// Package service holds the movie upsert gateway, rating aggregation,
// review lifecycle, membership management and account operations.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// MovieStore persists local movie records.
type MovieStore interface {
	Insert(ctx context.Context, movie domain.Movie) (domain.Movie, error)
	GetByID(ctx context.Context, id string) (domain.Movie, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.Movie, error)
	SetLocalRating(ctx context.Context, id string, rating domain.RatingSummary) (domain.Movie, error)
	IncrementViews(ctx context.Context, id string) error
}

// ReviewStore persists reviews, votes and reports.
type ReviewStore interface {
	Insert(ctx context.Context, review domain.Review) (domain.Review, error)
	GetByID(ctx context.Context, id string) (domain.Review, error)
	GetByUserAndMovie(ctx context.Context, userID, movieID string) (domain.Review, error)
	Update(ctx context.Context, review domain.Review) (domain.Review, error)
	Delete(ctx context.Context, id string) error
	VisibleRatings(ctx context.Context, movieID string) ([]float64, error)
	List(ctx context.Context, q repository.ReviewQuery) ([]domain.Review, int, error)
	SetVote(ctx context.Context, reviewID, userID string, helpful bool) (domain.Review, error)
	RemoveVote(ctx context.Context, reviewID, userID string) (domain.Review, error)
	AddReport(ctx context.Context, reviewID, userID string, reason domain.ReportReason) (bool, error)
}

// UserStore persists accounts, favorites and follow edges.
type UserStore interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	Delete(ctx context.Context, id string) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Profile(ctx context.Context, id string) (domain.UserProfile, error)
	AddFavorite(ctx context.Context, userID, movieID string) (bool, error)
	RemoveFavorite(ctx context.Context, userID, movieID string) (bool, error)
	IsFavorite(ctx context.Context, userID, movieID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]domain.Movie, error)
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
	ListFollowers(ctx context.Context, userID string) ([]domain.User, error)
	ListFollowing(ctx context.Context, userID string) ([]domain.User, error)
}

// WatchlistStore persists watchlists and their entries.
type WatchlistStore interface {
	Create(ctx context.Context, wl domain.Watchlist) (domain.Watchlist, error)
	GetByID(ctx context.Context, id string) (domain.Watchlist, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Watchlist, error)
	Update(ctx context.Context, id string, in domain.WatchlistInput) (domain.Watchlist, error)
	SetDefault(ctx context.Context, id string, isDefault bool) (domain.Watchlist, error)
	Delete(ctx context.Context, id string) error
	AddEntry(ctx context.Context, watchlistID string, entry domain.WatchlistEntry) error
	RemoveEntry(ctx context.Context, watchlistID, externalID string) (bool, error)
	MarkWatched(ctx context.Context, watchlistID, externalID string, at time.Time, rating *float64, notes *string) error
	UpsertCollaborator(ctx context.Context, watchlistID string, c domain.Collaborator) error
	RemoveCollaborator(ctx context.Context, watchlistID, userID string) error
	ToggleLike(ctx context.Context, watchlistID, userID string) (bool, int, error)
	IncrementViews(ctx context.Context, id string) error
}

// Catalog resolves external ids into movie snapshots and serves the
// catalog's own listings.
type Catalog interface {
	MovieDetails(ctx context.Context, externalID string) (*domain.MovieSnapshot, error)
	Search(ctx context.Context, query string, page int) (*catalog.Page, error)
	List(ctx context.Context, category catalog.Category, page int) (*catalog.Page, error)
	Discover(ctx context.Context, filter catalog.DiscoverFilter, page int) (*catalog.Page, error)
	Genres(ctx context.Context) ([]domain.Genre, error)
	Recommendations(ctx context.Context, externalID string, page int) (*catalog.Page, error)
	Similar(ctx context.Context, externalID string, page int) (*catalog.Page, error)
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	Movies     MovieStore
	Reviews    ReviewStore
	Users      UserStore
	Watchlists WatchlistStore
	Catalog    Catalog
	Logger     *zap.Logger

	// BootstrapAdmin, when set, is the username that registers as admin.
	BootstrapAdmin string
}

// Service implements the caller-facing operations over the stores.
type Service struct {
	movies     MovieStore
	reviews    ReviewStore
	users      UserStore
	watchlists WatchlistStore
	catalog    Catalog
	logger     *zap.Logger

	bootstrapAdmin string
	now            func() time.Time
	newID          func() string
}

// New constructs a Service.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		movies:         deps.Movies,
		reviews:        deps.Reviews,
		users:          deps.Users,
		watchlists:     deps.Watchlists,
		catalog:        deps.Catalog,
		logger:         logger.Named("service"),
		bootstrapAdmin: deps.BootstrapAdmin,
		now:            func() time.Time { return time.Now().UTC() },
		newID:          uuid.NewString,
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, repository.ErrDuplicateKey)
}
