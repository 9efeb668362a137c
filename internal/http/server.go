package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/auth"
	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/config"
	"github.com/Clark-Hu/movplay/internal/service"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg     config.Config
	health  HealthChecker
	svc     *service.Service
	tokens  *auth.Tokens
	images  catalog.Images
	limiter *RateLimiter
	logger  *zap.Logger
	router  chi.Router
	httpSrv *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, health HealthChecker, svc *service.Service, tokens *auth.Tokens, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{
		cfg:     cfg,
		health:  health,
		svc:     svc,
		tokens:  tokens,
		images:  catalog.Images{BaseURL: cfg.CatalogImageURL},
		limiter: NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		logger:  logger,
		router:  r,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.tokens.RequireUser).Get("/me", s.handleMe)
		})

		r.Route("/movies", func(r chi.Router) {
			r.Get("/search", s.handleSearchMovies)
			r.Get("/discover", s.handleDiscoverMovies)
			r.Get("/genres", s.handleListGenres)
			for path, category := range movieCategories {
				r.Get("/"+path, s.handleBrowseMovies(category))
			}
			r.Route("/{externalID}", func(r chi.Router) {
				r.With(s.tokens.OptionalUser).Get("/", s.handleGetMovie)
				r.Get("/rating", s.handleGetRating)
				r.Get("/recommendations", s.handleRelatedMovies(s.svc.RecommendedMovies))
				r.Get("/similar", s.handleRelatedMovies(s.svc.SimilarMovies))
				r.Get("/trailers", s.handleListTrailers)
				r.Get("/reviews", s.handleListMovieReviews)
				r.With(s.tokens.RequireUser).Post("/reviews", s.handleCreateReview)
			})
		})

		r.Route("/reviews/{reviewID}", func(r chi.Router) {
			r.Use(s.tokens.RequireUser)
			r.Put("/", s.handleUpdateReview)
			r.Delete("/", s.handleDeleteReview)
			r.Post("/vote", s.handleVoteReview)
			r.Delete("/vote", s.handleRemoveVote)
			r.Post("/report", s.handleReportReview)
			r.With(auth.RequireAdmin).Patch("/visibility", s.handleSetReviewVisibility)
		})

		r.Route("/me/favorites", func(r chi.Router) {
			r.Use(s.tokens.RequireUser)
			r.Get("/", s.handleListFavorites)
			r.Post("/{externalID}", s.handleAddFavorite)
			r.Delete("/{externalID}", s.handleRemoveFavorite)
		})

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(s.tokens.OptionalUser)
			r.Get("/", s.handleGetProfile)
			r.Get("/reviews", s.handleListUserReviews)
			r.Get("/followers", s.handleListFollowers)
			r.Get("/following", s.handleListFollowing)
			r.With(s.requireUser).Post("/follow", s.handleFollow)
			r.With(s.requireUser).Delete("/follow", s.handleUnfollow)
		})

		r.Route("/watchlists", func(r chi.Router) {
			r.With(s.tokens.RequireUser).Get("/", s.handleListWatchlists)
			r.With(s.tokens.RequireUser).Post("/", s.handleCreateWatchlist)
			r.Route("/{watchlistID}", func(r chi.Router) {
				r.With(s.tokens.OptionalUser).Get("/", s.handleGetWatchlist)
				r.Group(func(r chi.Router) {
					r.Use(s.tokens.RequireUser)
					r.Put("/", s.handleUpdateWatchlist)
					r.Delete("/", s.handleDeleteWatchlist)
					r.Put("/default", s.handleSetDefaultWatchlist)
					r.Post("/like", s.handleToggleLike)
					r.Post("/movies", s.handleAddToWatchlist)
					r.Delete("/movies/{externalID}", s.handleRemoveFromWatchlist)
					r.Post("/movies/{externalID}/watched", s.handleMarkWatched)
					r.Post("/collaborators", s.handleSetCollaborator)
					r.Delete("/collaborators/{userID}", s.handleRemoveCollaborator)
				})
			})
		})
	})
}

// requireUser rejects requests that OptionalUser left anonymous.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFromContext(r.Context()); !ok {
			s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start boots the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown", zap.Error(err))
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.health.HealthCheck(ctx); err != nil {
		s.logger.Warn("health check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Store is unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
