package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/service"
)

type watchlistRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsPublic    bool     `json:"isPublic"`
	Tags        []string `json:"tags"`
}

type defaultRequest struct {
	IsDefault *bool `json:"isDefault"`
}

type addMovieRequest struct {
	MovieID string `json:"movieId"`
}

type watchedRequest struct {
	Rating *float64 `json:"rating"`
	Notes  *string  `json:"notes"`
}

type collaboratorRequest struct {
	UserID     string `json:"userId"`
	Permission string `json:"permission"`
}

type watchlistEntryResponse struct {
	MovieID        string     `json:"movieId"`
	ExternalID     string     `json:"externalId"`
	Title          string     `json:"title"`
	PosterURL      *string    `json:"posterUrl"`
	AddedAt        time.Time  `json:"addedAt"`
	Watched        bool       `json:"watched"`
	WatchedAt      *time.Time `json:"watchedAt,omitempty"`
	PersonalRating *float64   `json:"personalRating,omitempty"`
	PersonalNotes  string     `json:"personalNotes,omitempty"`
}

type collaboratorResponse struct {
	UserID     string    `json:"userId"`
	Permission string    `json:"permission"`
	AddedAt    time.Time `json:"addedAt"`
}

type watchlistResponse struct {
	ID                   string                   `json:"id"`
	UserID               string                   `json:"userId"`
	Name                 string                   `json:"name"`
	Description          string                   `json:"description"`
	IsPublic             bool                     `json:"isPublic"`
	IsDefault            bool                     `json:"isDefault"`
	Tags                 []string                 `json:"tags"`
	Views                int64                    `json:"views"`
	LikeCount            int                      `json:"likeCount"`
	MovieCount           int                      `json:"movieCount"`
	WatchedCount         int                      `json:"watchedCount"`
	CompletionPercentage int                      `json:"completionPercentage"`
	Movies               []watchlistEntryResponse `json:"movies"`
	Collaborators        []collaboratorResponse   `json:"collaborators"`
	CreatedAt            time.Time                `json:"createdAt"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

type likeResponse struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"likeCount"`
}

func (req watchlistRequest) input() domain.WatchlistInput {
	return domain.WatchlistInput{
		Name:        req.Name,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		Tags:        req.Tags,
	}
}

func (s *Server) handleListWatchlists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.svc.ListWatchlists(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	out := make([]watchlistResponse, 0, len(lists))
	for _, wl := range lists {
		out = append(out, s.toWatchlistResponse(wl))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	wl, err := s.svc.CreateWatchlist(r.Context(), currentUser(r), req.input())
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/watchlists/"+wl.ID)
	s.respondJSON(w, http.StatusCreated, s.toWatchlistResponse(wl))
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.GetWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"))
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleUpdateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req watchlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	wl, err := s.svc.UpdateWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), req.input())
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleDeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetDefaultWatchlist(w http.ResponseWriter, r *http.Request) {
	var req defaultRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.IsDefault == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "isDefault is required")
		return
	}
	wl, err := s.svc.SetDefaultWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), *req.IsDefault)
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ToggleLike(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, likeResponse{Liked: res.Liked, LikeCount: res.LikeCount})
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var req addMovieRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	wl, err := s.svc.AddToWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), req.MovieID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, s.toWatchlistResponse(wl))
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.RemoveFromWatchlist(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), chi.URLParam(r, "externalID"))
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleMarkWatched(w http.ResponseWriter, r *http.Request) {
	var req watchedRequest
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, &req); err != nil {
			s.respondDecodeError(w, err)
			return
		}
	}
	wl, err := s.svc.MarkWatched(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), chi.URLParam(r, "externalID"), service.WatchedInput{
		Rating: req.Rating,
		Notes:  req.Notes,
	})
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleSetCollaborator(w http.ResponseWriter, r *http.Request) {
	var req collaboratorRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.UserID == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required")
		return
	}
	wl, err := s.svc.SetCollaborator(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), req.UserID, req.Permission)
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.RemoveCollaborator(r.Context(), currentUser(r), chi.URLParam(r, "watchlistID"), chi.URLParam(r, "userID"))
	s.respondWatchlist(w, r, wl, err)
}

func (s *Server) respondWatchlist(w http.ResponseWriter, r *http.Request, wl domain.Watchlist, err error) {
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toWatchlistResponse(wl))
}

func (s *Server) toWatchlistResponse(wl domain.Watchlist) watchlistResponse {
	resp := watchlistResponse{
		ID:                   wl.ID,
		UserID:               wl.UserID,
		Name:                 wl.Name,
		Description:          wl.Description,
		IsPublic:             wl.IsPublic,
		IsDefault:            wl.IsDefault,
		Tags:                 wl.Tags,
		Views:                wl.Views,
		LikeCount:            wl.LikeCount,
		MovieCount:           len(wl.Entries),
		WatchedCount:         wl.WatchedCount(),
		CompletionPercentage: wl.CompletionPercentage(),
		Movies:               make([]watchlistEntryResponse, 0, len(wl.Entries)),
		Collaborators:        make([]collaboratorResponse, 0, len(wl.Collaborators)),
		CreatedAt:            wl.CreatedAt,
		UpdatedAt:            wl.UpdatedAt,
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	for _, e := range wl.Entries {
		resp.Movies = append(resp.Movies, watchlistEntryResponse{
			MovieID:        e.MovieID,
			ExternalID:     e.ExternalID,
			Title:          e.Title,
			PosterURL:      s.images.Poster(e.PosterPath),
			AddedAt:        e.AddedAt,
			Watched:        e.Watched,
			WatchedAt:      e.WatchedAt,
			PersonalRating: e.PersonalRating,
			PersonalNotes:  e.PersonalNotes,
		})
	}
	for _, c := range wl.Collaborators {
		resp.Collaborators = append(resp.Collaborators, collaboratorResponse{
			UserID:     c.UserID,
			Permission: string(c.Permission),
			AddedAt:    c.AddedAt,
		})
	}
	return resp
}
