package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movplay/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateKey indicates a unique constraint rejected the write.
	ErrDuplicateKey = errors.New("repository: duplicate key")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Repository aggregates all collection repositories.
type Repository struct {
	Movies     *MoviesRepository
	Reviews    *ReviewsRepository
	Users      *UsersRepository
	Watchlists *WatchlistsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{
		Movies:     &MoviesRepository{pool: pool},
		Reviews:    &ReviewsRepository{pool: pool},
		Users:      &UsersRepository{pool: pool},
		Watchlists: &WatchlistsRepository{pool: pool},
	}
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %s", ErrNotFound, pgErr.ConstraintName)
		}
	}
	return err
}
