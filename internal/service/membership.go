package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Clark-Hu/movplay/internal/domain"
)

// AddFavorite puts externalID in userID's favorites. Adding a movie that is
// already a favorite changes nothing.
func (s *Service) AddFavorite(ctx context.Context, userID, externalID string) ([]domain.Movie, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	movie, err := s.EnsureMovie(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.AddFavorite(ctx, userID, movie.ID); err != nil {
		return nil, fmt.Errorf("add favorite: %w", err)
	}
	return s.ListFavorites(ctx, userID)
}

// RemoveFavorite drops externalID from userID's favorites if present.
func (s *Service) RemoveFavorite(ctx context.Context, userID, externalID string) ([]domain.Movie, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	movie, err := s.movies.GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		if _, err := s.users.RemoveFavorite(ctx, userID, movie.ID); err != nil {
			return nil, fmt.Errorf("remove favorite: %w", err)
		}
	case !isNotFound(err):
		return nil, fmt.Errorf("lookup movie: %w", err)
	}
	return s.ListFavorites(ctx, userID)
}

// ListFavorites returns userID's favorite movies, most recently added first.
func (s *Service) ListFavorites(ctx context.Context, userID string) ([]domain.Movie, error) {
	movies, err := s.users.ListFavorites(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return movies, nil
}

// AddToWatchlist appends externalID to a watchlist userID may edit. A movie
// already on the list is rejected with a conflict.
func (s *Service) AddToWatchlist(ctx context.Context, userID, watchlistID, externalID string) (domain.Watchlist, error) {
	wl, err := s.editableWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	canonical, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if _, ok := wl.Entry(canonical); ok {
		return domain.Watchlist{}, domain.Errorf(domain.ErrConflict, "movie already in watchlist")
	}

	movie, err := s.EnsureMovie(ctx, canonical)
	if err != nil {
		return domain.Watchlist{}, err
	}
	err = s.watchlists.AddEntry(ctx, wl.ID, domain.WatchlistEntry{
		MovieID:    movie.ID,
		ExternalID: movie.ExternalID,
		AddedAt:    s.now(),
	})
	switch {
	case err == nil:
	case isDuplicate(err):
		return domain.Watchlist{}, domain.Errorf(domain.ErrConflict, "movie already in watchlist")
	case isNotFound(err):
		return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "watchlist not found")
	default:
		return domain.Watchlist{}, fmt.Errorf("add watchlist entry: %w", err)
	}
	return s.loadWatchlist(ctx, wl.ID)
}

// RemoveFromWatchlist drops externalID from a watchlist; absent entries are
// ignored.
func (s *Service) RemoveFromWatchlist(ctx context.Context, userID, watchlistID, externalID string) (domain.Watchlist, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	wl, err := s.editableWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if _, err := s.watchlists.RemoveEntry(ctx, wl.ID, externalID); err != nil {
		return domain.Watchlist{}, fmt.Errorf("remove watchlist entry: %w", err)
	}
	return s.loadWatchlist(ctx, wl.ID)
}

// WatchedInput is the optional personal data recorded with a watch.
type WatchedInput struct {
	Rating *float64
	Notes  *string
}

// MarkWatched flags an existing entry as watched now.
func (s *Service) MarkWatched(ctx context.Context, userID, watchlistID, externalID string, in WatchedInput) (domain.Watchlist, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if in.Rating != nil {
		if err := domain.ValidateRating(*in.Rating); err != nil {
			return domain.Watchlist{}, err
		}
	}
	if in.Notes != nil {
		notes := strings.TrimSpace(*in.Notes)
		if utf8.RuneCountInString(notes) > domain.MaxPersonalNotesLength {
			return domain.Watchlist{}, domain.Errorf(domain.ErrInvalidInput, "notes cannot exceed %d characters", domain.MaxPersonalNotesLength)
		}
		in.Notes = &notes
	}

	wl, err := s.editableWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	err = s.watchlists.MarkWatched(ctx, wl.ID, externalID, s.now(), in.Rating, in.Notes)
	if err != nil {
		if isNotFound(err) {
			return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "movie not in watchlist")
		}
		return domain.Watchlist{}, fmt.Errorf("mark watched: %w", err)
	}
	return s.loadWatchlist(ctx, wl.ID)
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return domain.Errorf(domain.ErrNotFound, "user not found")
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	return nil
}
