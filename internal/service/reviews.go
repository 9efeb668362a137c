package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// ReviewInput is the author-supplied content of a review.
type ReviewInput struct {
	Rating         float64
	Title          string
	Comment        string
	SpoilerWarning bool
}

// ReviewPatch carries the fields an owner may change; nil means unchanged.
type ReviewPatch struct {
	Rating         *float64
	Title          *string
	Comment        *string
	SpoilerWarning *bool
}

// ReviewResult is a review mutation together with the recomputed aggregate
// of its movie.
type ReviewResult struct {
	Review      domain.Review
	MovieRating domain.RatingSummary
}

// ReviewPage is one page of a review listing.
type ReviewPage struct {
	Reviews    []domain.Review
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// CreateReview records userID's review of externalID and refreshes the
// movie's local rating.
func (s *Service) CreateReview(ctx context.Context, userID, externalID string, in ReviewInput) (ReviewResult, error) {
	if err := domain.ValidateRating(in.Rating); err != nil {
		return ReviewResult{}, err
	}
	title, comment, err := domain.ValidateReviewText(in.Title, in.Comment)
	if err != nil {
		return ReviewResult{}, err
	}

	movie, err := s.EnsureMovie(ctx, externalID)
	if err != nil {
		return ReviewResult{}, err
	}

	if _, err := s.reviews.GetByUserAndMovie(ctx, userID, movie.ID); err == nil {
		return ReviewResult{}, domain.Errorf(domain.ErrConflict, "you have already reviewed this movie")
	} else if !isNotFound(err) {
		return ReviewResult{}, fmt.Errorf("check existing review: %w", err)
	}

	review, err := s.reviews.Insert(ctx, domain.Review{
		ID:             s.newID(),
		UserID:         userID,
		MovieID:        movie.ID,
		ExternalID:     movie.ExternalID,
		Rating:         in.Rating,
		Title:          title,
		Comment:        comment,
		SpoilerWarning: in.SpoilerWarning,
		Visible:        true,
		CreatedAt:      s.now(),
	})
	if err != nil {
		if isDuplicate(err) {
			return ReviewResult{}, domain.Errorf(domain.ErrConflict, "you have already reviewed this movie")
		}
		return ReviewResult{}, fmt.Errorf("insert review: %w", err)
	}

	return s.finishReview(ctx, review)
}

// UpdateReview applies patch to a review owned by userID. Reviews owned by
// someone else are reported as missing.
func (s *Service) UpdateReview(ctx context.Context, userID, reviewID string, patch ReviewPatch) (ReviewResult, error) {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return ReviewResult{}, err
	}

	if patch.Rating != nil {
		if err := domain.ValidateRating(*patch.Rating); err != nil {
			return ReviewResult{}, err
		}
		review.Rating = *patch.Rating
	}
	title, comment := review.Title, review.Comment
	if patch.Title != nil {
		title = *patch.Title
	}
	if patch.Comment != nil {
		comment = *patch.Comment
	}
	if review.Title, review.Comment, err = domain.ValidateReviewText(title, comment); err != nil {
		return ReviewResult{}, err
	}
	if patch.SpoilerWarning != nil {
		review.SpoilerWarning = *patch.SpoilerWarning
	}
	edited := s.now()
	review.EditedAt = &edited

	review, err = s.reviews.Update(ctx, review)
	if err != nil {
		if isNotFound(err) {
			return ReviewResult{}, domain.Errorf(domain.ErrNotFound, "review not found")
		}
		return ReviewResult{}, fmt.Errorf("update review: %w", err)
	}
	return s.finishReview(ctx, review)
}

// DeleteReview removes a review owned by userID.
func (s *Service) DeleteReview(ctx context.Context, userID, reviewID string) (domain.RatingSummary, error) {
	review, err := s.ownedReview(ctx, userID, reviewID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	if err := s.reviews.Delete(ctx, review.ID); err != nil {
		if isNotFound(err) {
			return domain.RatingSummary{}, domain.Errorf(domain.ErrNotFound, "review not found")
		}
		return domain.RatingSummary{}, fmt.Errorf("delete review: %w", err)
	}
	return s.RecomputeLocalRating(ctx, review.MovieID)
}

// SetReviewVisibility hides or restores a review. Moderators only; the
// caller's role is checked at the boundary.
func (s *Service) SetReviewVisibility(ctx context.Context, reviewID string, visible bool) (ReviewResult, error) {
	review, err := s.review(ctx, reviewID)
	if err != nil {
		return ReviewResult{}, err
	}
	if review.Visible == visible {
		summary, err := s.RecomputeLocalRating(ctx, review.MovieID)
		return ReviewResult{Review: review, MovieRating: summary}, err
	}
	review.Visible = visible
	review, err = s.reviews.Update(ctx, review)
	if err != nil {
		return ReviewResult{}, reviewError(err)
	}
	s.logger.Info("review visibility changed", zap.String("review_id", reviewID), zap.Bool("visible", visible))
	return s.finishReview(ctx, review)
}

// VoteReview records userID's helpfulness vote, replacing any earlier one.
func (s *Service) VoteReview(ctx context.Context, userID, reviewID string, helpful bool) (domain.Review, error) {
	review, err := s.reviews.SetVote(ctx, reviewID, userID, helpful)
	if err != nil {
		return domain.Review{}, reviewError(err)
	}
	return review, nil
}

// RemoveVote withdraws userID's vote, if any.
func (s *Service) RemoveVote(ctx context.Context, userID, reviewID string) (domain.Review, error) {
	review, err := s.reviews.RemoveVote(ctx, reviewID, userID)
	if err != nil {
		return domain.Review{}, reviewError(err)
	}
	return review, nil
}

// ReportReview flags a review. A repeat report by the same user is a no-op.
func (s *Service) ReportReview(ctx context.Context, userID, reviewID, reason string) error {
	parsed, err := domain.ParseReportReason(reason)
	if err != nil {
		return err
	}
	if _, err := s.review(ctx, reviewID); err != nil {
		return err
	}
	added, err := s.reviews.AddReport(ctx, reviewID, userID, parsed)
	if err != nil {
		return fmt.Errorf("report review: %w", err)
	}
	if added {
		s.logger.Info("review reported", zap.String("review_id", reviewID), zap.String("reason", string(parsed)))
	}
	return nil
}

// ListMovieReviews pages through the visible reviews of externalID. A movie
// that was never cached locally has no reviews.
func (s *Service) ListMovieReviews(ctx context.Context, externalID string, sort domain.ReviewSort, page domain.PageRequest) (ReviewPage, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return ReviewPage{}, err
	}
	page = page.Normalize()
	movie, err := s.movies.GetByExternalID(ctx, externalID)
	if err != nil {
		if isNotFound(err) {
			return ReviewPage{Reviews: []domain.Review{}, Page: page.Page, Limit: page.Limit}, nil
		}
		return ReviewPage{}, fmt.Errorf("lookup movie: %w", err)
	}
	return s.listReviews(ctx, repository.ReviewQuery{
		MovieID:     movie.ID,
		VisibleOnly: true,
		Sort:        sort,
		Page:        page,
	})
}

// ListUserReviews pages through reviews written by userID, newest first.
// Hidden reviews are only listed for their author.
func (s *Service) ListUserReviews(ctx context.Context, viewerID, userID string, page domain.PageRequest) (ReviewPage, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return ReviewPage{}, domain.Errorf(domain.ErrNotFound, "user not found")
		}
		return ReviewPage{}, fmt.Errorf("lookup user: %w", err)
	}
	return s.listReviews(ctx, repository.ReviewQuery{
		UserID:      userID,
		VisibleOnly: viewerID != userID,
		Sort:        domain.SortNewest,
		Page:        page.Normalize(),
	})
}

func (s *Service) listReviews(ctx context.Context, q repository.ReviewQuery) (ReviewPage, error) {
	reviews, total, err := s.reviews.List(ctx, q)
	if err != nil {
		return ReviewPage{}, fmt.Errorf("list reviews: %w", err)
	}
	return ReviewPage{
		Reviews:    reviews,
		Page:       q.Page.Page,
		Limit:      q.Page.Limit,
		Total:      total,
		TotalPages: q.Page.TotalPages(total),
	}, nil
}

func (s *Service) finishReview(ctx context.Context, review domain.Review) (ReviewResult, error) {
	summary, err := s.RecomputeLocalRating(ctx, review.MovieID)
	if err != nil {
		return ReviewResult{Review: review}, err
	}
	return ReviewResult{Review: review, MovieRating: summary}, nil
}

func (s *Service) review(ctx context.Context, reviewID string) (domain.Review, error) {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return domain.Review{}, reviewError(err)
	}
	return review, nil
}

func (s *Service) ownedReview(ctx context.Context, userID, reviewID string) (domain.Review, error) {
	review, err := s.review(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	if review.UserID != userID {
		return domain.Review{}, domain.Errorf(domain.ErrNotFound, "review not found")
	}
	return review, nil
}

func reviewError(err error) error {
	if isNotFound(err) {
		return domain.Errorf(domain.ErrNotFound, "review not found")
	}
	return fmt.Errorf("review lookup: %w", err)
}
