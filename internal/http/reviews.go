package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/service"
)

type reviewCreateRequest struct {
	Rating         *float64 `json:"rating"`
	Title          string   `json:"title"`
	Comment        string   `json:"comment"`
	SpoilerWarning bool     `json:"spoilerWarning"`
}

type reviewUpdateRequest struct {
	Rating         *float64 `json:"rating"`
	Title          *string  `json:"title"`
	Comment        *string  `json:"comment"`
	SpoilerWarning *bool    `json:"spoilerWarning"`
}

type voteRequest struct {
	IsHelpful *bool `json:"isHelpful"`
}

type reportRequest struct {
	Reason string `json:"reason"`
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

type reviewResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	Username       string     `json:"username"`
	MovieID        string     `json:"movieId"`
	ExternalID     string     `json:"externalId"`
	Rating         float64    `json:"rating"`
	Title          string     `json:"title,omitempty"`
	Comment        string     `json:"comment,omitempty"`
	SpoilerWarning bool       `json:"spoilerWarning"`
	Visible        bool       `json:"visible"`
	HelpfulScore   int        `json:"helpfulScore"`
	TotalVotes     int        `json:"totalVotes"`
	EditedAt       *time.Time `json:"editedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type reviewMutationResponse struct {
	Review      reviewResponse        `json:"review"`
	MovieRating ratingSummaryResponse `json:"movieRating"`
}

type reviewListResponse struct {
	Reviews    []reviewResponse `json:"reviews"`
	Pagination pageMeta         `json:"pagination"`
}

func (s *Server) handleListMovieReviews(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	sortBy, err := domain.ParseReviewSort(r.URL.Query().Get("sort"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.svc.ListMovieReviews(r.Context(), chi.URLParam(r, "externalID"), sortBy, page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewList(result))
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating is required")
		return
	}

	result, err := s.svc.CreateReview(r.Context(), currentUser(r), chi.URLParam(r, "externalID"), service.ReviewInput{
		Rating:         *req.Rating,
		Title:          req.Title,
		Comment:        req.Comment,
		SpoilerWarning: req.SpoilerWarning,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, toReviewMutation(result))
}

func (s *Server) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	var req reviewUpdateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	result, err := s.svc.UpdateReview(r.Context(), currentUser(r), chi.URLParam(r, "reviewID"), service.ReviewPatch{
		Rating:         req.Rating,
		Title:          req.Title,
		Comment:        req.Comment,
		SpoilerWarning: req.SpoilerWarning,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewMutation(result))
}

func (s *Server) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.DeleteReview(r.Context(), currentUser(r), chi.URLParam(r, "reviewID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]ratingSummaryResponse{"movieRating": toRatingSummary(summary)})
}

func (s *Server) handleVoteReview(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.IsHelpful == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "isHelpful is required")
		return
	}
	review, err := s.svc.VoteReview(r.Context(), currentUser(r), chi.URLParam(r, "reviewID"), *req.IsHelpful)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleRemoveVote(w http.ResponseWriter, r *http.Request) {
	review, err := s.svc.RemoveVote(r.Context(), currentUser(r), chi.URLParam(r, "reviewID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewResponse(review))
}

func (s *Server) handleReportReview(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if err := s.svc.ReportReview(r.Context(), currentUser(r), chi.URLParam(r, "reviewID"), req.Reason); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetReviewVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Visible == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "visible is required")
		return
	}
	result, err := s.svc.SetReviewVisibility(r.Context(), chi.URLParam(r, "reviewID"), *req.Visible)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewMutation(result))
}

func (s *Server) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	result, err := s.svc.ListUserReviews(r.Context(), currentUser(r), chi.URLParam(r, "userID"), page)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toReviewList(result))
}

func toReviewResponse(review domain.Review) reviewResponse {
	return reviewResponse{
		ID:             review.ID,
		UserID:         review.UserID,
		Username:       review.Username,
		MovieID:        review.MovieID,
		ExternalID:     review.ExternalID,
		Rating:         review.Rating,
		Title:          review.Title,
		Comment:        review.Comment,
		SpoilerWarning: review.SpoilerWarning,
		Visible:        review.Visible,
		HelpfulScore:   review.HelpfulScore(),
		TotalVotes:     review.TotalVotes(),
		EditedAt:       review.EditedAt,
		CreatedAt:      review.CreatedAt,
		UpdatedAt:      review.UpdatedAt,
	}
}

func toReviewMutation(result service.ReviewResult) reviewMutationResponse {
	return reviewMutationResponse{
		Review:      toReviewResponse(result.Review),
		MovieRating: toRatingSummary(result.MovieRating),
	}
}

func toReviewList(page service.ReviewPage) reviewListResponse {
	items := make([]reviewResponse, 0, len(page.Reviews))
	for _, review := range page.Reviews {
		items = append(items, toReviewResponse(review))
	}
	return reviewListResponse{
		Reviews: items,
		Pagination: pageMeta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      page.Total,
			TotalPages: page.TotalPages,
		},
	}
}
