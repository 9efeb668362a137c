package memory

import (
	"context"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// MoviesRepository keeps movie records keyed by id and external id.
type MoviesRepository struct {
	st *state
}

// Insert stores a new movie; a taken external id fails with ErrDuplicateKey.
func (r *MoviesRepository) Insert(_ context.Context, movie domain.Movie) (domain.Movie, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.movieByExternal[movie.ExternalID]; ok {
		return domain.Movie{}, duplicate("movies_external_id_key")
	}
	if _, ok := r.st.movies[movie.ID]; ok {
		return domain.Movie{}, duplicate("movies_pkey")
	}
	movie.CreatedAt = now(movie.CreatedAt)
	movie.UpdatedAt = movie.CreatedAt
	movie.LocalRating = domain.RatingSummary{}
	movie.ViewCount, movie.FavoriteCount, movie.WatchlistCount = 0, 0, 0
	r.st.movies[movie.ID] = movie
	r.st.movieByExternal[movie.ExternalID] = movie.ID
	return movie, nil
}

// GetByID returns the movie with the given local id.
func (r *MoviesRepository) GetByID(_ context.Context, id string) (domain.Movie, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	movie, ok := r.st.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return movie, nil
}

// GetByExternalID returns the movie cached for a catalog id.
func (r *MoviesRepository) GetByExternalID(_ context.Context, externalID string) (domain.Movie, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	id, ok := r.st.movieByExternal[externalID]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return r.st.movies[id], nil
}

// SetLocalRating replaces the movie's local aggregate.
func (r *MoviesRepository) SetLocalRating(_ context.Context, id string, rating domain.RatingSummary) (domain.Movie, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	movie, ok := r.st.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	movie.LocalRating = rating
	movie.UpdatedAt = time.Now().UTC()
	r.st.movies[id] = movie
	return movie, nil
}

// IncrementViews counts one view of the movie.
func (r *MoviesRepository) IncrementViews(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	movie, ok := r.st.movies[id]
	if !ok {
		return repository.ErrNotFound
	}
	movie.ViewCount++
	r.st.movies[id] = movie
	return nil
}

// adjust applies delta to a counter, never going below zero. Callers hold
// the write lock.
func (st *state) adjust(movieID string, field func(*domain.Movie) *int64, delta int64) {
	movie, ok := st.movies[movieID]
	if !ok {
		return
	}
	counter := field(&movie)
	*counter += delta
	if *counter < 0 {
		*counter = 0
	}
	st.movies[movieID] = movie
}

func favoriteCount(m *domain.Movie) *int64  { return &m.FavoriteCount }
func watchlistCount(m *domain.Movie) *int64 { return &m.WatchlistCount }
