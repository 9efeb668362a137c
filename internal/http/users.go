package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/service"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type profileResponse struct {
	userResponse
	Email          string `json:"email,omitempty"`
	FavoritesCount int    `json:"favoritesCount"`
	FollowersCount int    `json:"followersCount"`
	FollowingCount int    `json:"followingCount"`
	ReviewsCount   int    `json:"reviewsCount"`
	WatchlistCount int    `json:"watchlistCount"`
}

type authResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.svc.Register(r.Context(), service.Registration{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondToken(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email and password are required")
		return
	}
	user, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondToken(w, r, http.StatusOK, user)
}

func (s *Server) respondToken(w http.ResponseWriter, r *http.Request, status int, user domain.User) {
	token, expires, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		s.logger.Error("issue token", zap.String("user_id", user.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
		return
	}
	s.respondJSON(w, status, authResponse{
		Token:     token,
		ExpiresAt: expires,
		User:      toUserResponse(user),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Profile(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	resp := toProfileResponse(profile)
	resp.Email = profile.Email
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.svc.Profile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (s *Server) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Followers(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserList(users))
}

func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Following(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserList(users))
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Follow(r.Context(), currentUser(r), chi.URLParam(r, "userID")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Unfollow(r.Context(), currentUser(r), chi.URLParam(r, "userID")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	movies, err := s.svc.ListFavorites(r.Context(), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMovieList(movies))
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	movies, err := s.svc.AddFavorite(r.Context(), currentUser(r), chi.URLParam(r, "externalID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMovieList(movies))
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	movies, err := s.svc.RemoveFavorite(r.Context(), currentUser(r), chi.URLParam(r, "externalID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.toMovieList(movies))
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Role:        user.Role,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

func toUserList(users []domain.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

func toProfileResponse(p domain.UserProfile) profileResponse {
	return profileResponse{
		userResponse:   toUserResponse(p.User),
		FavoritesCount: p.FavoritesCount,
		FollowersCount: p.FollowersCount,
		FollowingCount: p.FollowingCount,
		ReviewsCount:   p.ReviewsCount,
		WatchlistCount: p.WatchlistCount,
	}
}
