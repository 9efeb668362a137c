package service

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/movplay/internal/domain"
)

// RecomputeLocalRating replaces the movie's local rating with the mean of
// its visible reviews. Helpfulness votes are not consulted.
func (s *Service) RecomputeLocalRating(ctx context.Context, movieID string) (domain.RatingSummary, error) {
	ratings, err := s.reviews.VisibleRatings(ctx, movieID)
	if err != nil {
		return domain.RatingSummary{}, fmt.Errorf("load ratings for %s: %w", movieID, err)
	}
	summary := domain.Aggregate(ratings)

	if _, err := s.movies.SetLocalRating(ctx, movieID, summary); err != nil {
		if isNotFound(err) {
			return domain.RatingSummary{}, domain.Errorf(domain.ErrNotFound, "movie %s not found", movieID)
		}
		return domain.RatingSummary{}, fmt.Errorf("store rating for %s: %w", movieID, err)
	}
	return summary, nil
}
