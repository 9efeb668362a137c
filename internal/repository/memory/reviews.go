package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// ReviewsRepository keeps reviews with their votes and reports.
type ReviewsRepository struct {
	st *state
}

// Insert stores a review; a second review of the same movie by the same user fails with ErrDuplicateKey.
func (r *ReviewsRepository) Insert(_ context.Context, review domain.Review) (domain.Review, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	key := pairKey(review.UserID, review.MovieID)
	if _, ok := r.st.reviewByUserFilm[key]; ok {
		return domain.Review{}, duplicate("reviews_user_movie_key")
	}
	if _, ok := r.st.reviews[review.ID]; ok {
		return domain.Review{}, duplicate("reviews_pkey")
	}
	review.CreatedAt = now(review.CreatedAt)
	review.UpdatedAt = review.CreatedAt
	review.HelpfulCount, review.UnhelpfulCount, review.ReportCount = 0, 0, 0
	r.st.reviews[review.ID] = review
	r.st.reviewByUserFilm[key] = review.ID
	return r.st.hydrateReview(review), nil
}

// GetByID returns a review with its vote counters.
func (r *ReviewsRepository) GetByID(_ context.Context, id string) (domain.Review, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	review, ok := r.st.reviews[id]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	return r.st.hydrateReview(review), nil
}

// GetByUserAndMovie returns userID's review of movieID.
func (r *ReviewsRepository) GetByUserAndMovie(_ context.Context, userID, movieID string) (domain.Review, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	id, ok := r.st.reviewByUserFilm[pairKey(userID, movieID)]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	return r.st.hydrateReview(r.st.reviews[id]), nil
}

// Update overwrites the editable fields of a review.
func (r *ReviewsRepository) Update(_ context.Context, review domain.Review) (domain.Review, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	stored, ok := r.st.reviews[review.ID]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	stored.Rating = review.Rating
	stored.Title = review.Title
	stored.Comment = review.Comment
	stored.SpoilerWarning = review.SpoilerWarning
	stored.Visible = review.Visible
	stored.EditedAt = review.EditedAt
	stored.UpdatedAt = time.Now().UTC()
	r.st.reviews[review.ID] = stored
	return r.st.hydrateReview(stored), nil
}

// Delete removes a review with its votes and reports.
func (r *ReviewsRepository) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	review, ok := r.st.reviews[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.st.reviews, id)
	delete(r.st.reviewByUserFilm, pairKey(review.UserID, review.MovieID))
	delete(r.st.votes, id)
	delete(r.st.reports, id)
	return nil
}

// VisibleRatings returns the ratings of the movie's visible reviews.
func (r *ReviewsRepository) VisibleRatings(_ context.Context, movieID string) ([]float64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	ratings := make([]float64, 0)
	for _, review := range r.st.reviews {
		if review.MovieID == movieID && review.Visible {
			ratings = append(ratings, review.Rating)
		}
	}
	return ratings, nil
}

// List returns one page of reviews matching q and the total match count.
func (r *ReviewsRepository) List(_ context.Context, q repository.ReviewQuery) ([]domain.Review, int, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	page := q.Page.Normalize()
	matches := make([]domain.Review, 0)
	for _, review := range r.st.reviews {
		if q.MovieID != "" && review.MovieID != q.MovieID {
			continue
		}
		if q.UserID != "" && review.UserID != q.UserID {
			continue
		}
		if q.VisibleOnly && !review.Visible {
			continue
		}
		matches = append(matches, r.st.hydrateReview(review))
	}

	sort.SliceStable(matches, reviewLess(matches, q.Sort))

	total := len(matches)
	start := page.Offset()
	if start >= total {
		return []domain.Review{}, total, nil
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func reviewLess(items []domain.Review, sortBy domain.ReviewSort) func(i, j int) bool {
	newer := func(a, b domain.Review) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	}
	return func(i, j int) bool {
		a, b := items[i], items[j]
		switch sortBy {
		case domain.SortOldest:
			return newer(b, a)
		case domain.SortHighest:
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
		case domain.SortLowest:
			if a.Rating != b.Rating {
				return a.Rating < b.Rating
			}
		case domain.SortHelpful:
			if a.HelpfulScore() != b.HelpfulScore() {
				return a.HelpfulScore() > b.HelpfulScore()
			}
		}
		return newer(a, b)
	}
}

// SetVote records or replaces userID's vote on a review.
func (r *ReviewsRepository) SetVote(_ context.Context, reviewID, userID string, helpful bool) (domain.Review, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	review, ok := r.st.reviews[reviewID]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	if r.st.votes[reviewID] == nil {
		r.st.votes[reviewID] = make(map[string]bool)
	}
	r.st.votes[reviewID][userID] = helpful
	return r.st.hydrateReview(review), nil
}

// RemoveVote drops userID's vote on a review if present.
func (r *ReviewsRepository) RemoveVote(_ context.Context, reviewID, userID string) (domain.Review, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	review, ok := r.st.reviews[reviewID]
	if !ok {
		return domain.Review{}, repository.ErrNotFound
	}
	delete(r.st.votes[reviewID], userID)
	return r.st.hydrateReview(review), nil
}

// AddReport records a report and reports whether it was new.
func (r *ReviewsRepository) AddReport(_ context.Context, reviewID, userID string, reason domain.ReportReason) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.reviews[reviewID]; !ok {
		return false, nil
	}
	if r.st.reports[reviewID] == nil {
		r.st.reports[reviewID] = make(map[string]domain.ReportReason)
	}
	if _, ok := r.st.reports[reviewID][userID]; ok {
		return false, nil
	}
	r.st.reports[reviewID][userID] = reason
	return true, nil
}

// hydrateReview fills the derived tallies and author name. Callers hold
// at least the read lock.
func (st *state) hydrateReview(review domain.Review) domain.Review {
	review.HelpfulCount, review.UnhelpfulCount = 0, 0
	for _, helpful := range st.votes[review.ID] {
		if helpful {
			review.HelpfulCount++
		} else {
			review.UnhelpfulCount++
		}
	}
	review.ReportCount = len(st.reports[review.ID])
	if user, ok := st.users[review.UserID]; ok {
		review.Username = user.Username
	}
	return review
}
