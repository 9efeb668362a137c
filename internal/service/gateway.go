package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/domain"
)

// EnsureMovie returns the local record for externalID, creating it from the
// catalog on first reference. Concurrent first references converge on one
// record: the loser of the insert race re-reads the winner's row.
func (s *Service) EnsureMovie(ctx context.Context, externalID string) (domain.Movie, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return domain.Movie{}, err
	}

	movie, err := s.movies.GetByExternalID(ctx, externalID)
	if err == nil {
		return movie, nil
	}
	if !isNotFound(err) {
		return domain.Movie{}, fmt.Errorf("lookup movie %s: %w", externalID, err)
	}

	snap, err := s.catalog.MovieDetails(ctx, externalID)
	if err != nil {
		return domain.Movie{}, catalogError(externalID, err)
	}
	// The catalog may answer an alias with a movie already cached under
	// its own id; key the record on the catalog's id.
	if snap.ExternalID == "" {
		snap.ExternalID = externalID
	}
	if snap.ExternalID != externalID {
		movie, err = s.movies.GetByExternalID(ctx, snap.ExternalID)
		if err == nil {
			return movie, nil
		}
		if !isNotFound(err) {
			return domain.Movie{}, fmt.Errorf("lookup movie %s: %w", snap.ExternalID, err)
		}
	}

	movie, err = s.movies.Insert(ctx, domain.NewMovie(s.newID(), *snap, s.now()))
	switch {
	case err == nil:
		s.logger.Info("movie cached", zap.String("external_id", movie.ExternalID), zap.String("movie_id", movie.ID))
		return movie, nil
	case isDuplicate(err):
		movie, err = s.movies.GetByExternalID(ctx, snap.ExternalID)
		if err != nil {
			return domain.Movie{}, fmt.Errorf("re-read movie %s after insert race: %w", snap.ExternalID, err)
		}
		return movie, nil
	default:
		return domain.Movie{}, fmt.Errorf("insert movie %s: %w", snap.ExternalID, err)
	}
}

// MovieView is a movie as seen by one (possibly anonymous) caller.
type MovieView struct {
	domain.Movie
	IsFavorited bool
}

// GetMovie resolves the movie, counts the view and reports whether viewerID
// has it in favorites.
func (s *Service) GetMovie(ctx context.Context, viewerID, externalID string) (MovieView, error) {
	movie, err := s.EnsureMovie(ctx, externalID)
	if err != nil {
		return MovieView{}, err
	}
	if err := s.movies.IncrementViews(ctx, movie.ID); err != nil {
		return MovieView{}, fmt.Errorf("count view: %w", err)
	}
	movie.ViewCount++

	view := MovieView{Movie: movie}
	if viewerID != "" {
		fav, err := s.users.IsFavorite(ctx, viewerID, movie.ID)
		if err != nil {
			return MovieView{}, fmt.Errorf("favorite lookup: %w", err)
		}
		view.IsFavorited = fav
	}
	return view, nil
}

// MovieRating returns the local aggregate for externalID.
func (s *Service) MovieRating(ctx context.Context, externalID string) (domain.RatingSummary, error) {
	movie, err := s.EnsureMovie(ctx, externalID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	return movie.LocalRating, nil
}

func catalogError(externalID string, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return domain.Errorf(domain.ErrNotFound, "movie %s not found", externalID)
	case errors.Is(err, catalog.ErrUnavailable):
		return &domain.Error{Kind: domain.ErrDependencyUnavailable, Message: "movie catalog is unavailable, try again later"}
	default:
		return fmt.Errorf("catalog details %s: %w", externalID, err)
	}
}
