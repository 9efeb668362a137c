// Package memory is an in-process implementation of the repository
// contracts. It enforces the same unique constraints as the PostgreSQL
// schema and reports violations with the same sentinel errors.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// Repository aggregates the in-memory collections.
type Repository struct {
	Movies     *MoviesRepository
	Reviews    *ReviewsRepository
	Users      *UsersRepository
	Watchlists *WatchlistsRepository
}

type state struct {
	mu sync.RWMutex

	movies           map[string]domain.Movie
	movieByExternal  map[string]string
	users            map[string]domain.User
	userByEmail      map[string]string
	userByName       map[string]string
	favorites        map[string]map[string]time.Time
	follows          map[string]map[string]time.Time
	reviews          map[string]domain.Review
	reviewByUserFilm map[string]string
	votes            map[string]map[string]bool
	reports          map[string]map[string]domain.ReportReason
	watchlists       map[string]*watchlistRecord
}

type watchlistRecord struct {
	list          domain.Watchlist
	entries       []domain.WatchlistEntry
	collaborators map[string]domain.Collaborator
	likes         map[string]struct{}
}

// New returns an empty in-memory repository.
func New() *Repository {
	st := &state{
		movies:           make(map[string]domain.Movie),
		movieByExternal:  make(map[string]string),
		users:            make(map[string]domain.User),
		userByEmail:      make(map[string]string),
		userByName:       make(map[string]string),
		favorites:        make(map[string]map[string]time.Time),
		follows:          make(map[string]map[string]time.Time),
		reviews:          make(map[string]domain.Review),
		reviewByUserFilm: make(map[string]string),
		votes:            make(map[string]map[string]bool),
		reports:          make(map[string]map[string]domain.ReportReason),
		watchlists:       make(map[string]*watchlistRecord),
	}
	return &Repository{
		Movies:     &MoviesRepository{st: st},
		Reviews:    &ReviewsRepository{st: st},
		Users:      &UsersRepository{st: st},
		Watchlists: &WatchlistsRepository{st: st},
	}
}

// HealthCheck always succeeds.
func (r *Repository) HealthCheck(context.Context) error {
	return nil
}

func duplicate(constraint string) error {
	return fmt.Errorf("%w: %s", repository.ErrDuplicateKey, constraint)
}

func pairKey(a, b string) string {
	return a + "\x00" + b
}

func lower(s string) string {
	return strings.ToLower(s)
}

func now(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
