package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/auth"
	"github.com/Clark-Hu/movplay/internal/domain"
)

// Registration is the input to Register.
type Registration struct {
	Username string
	Email    string
	Password string
}

// Register creates an account together with its default watchlist.
func (s *Service) Register(ctx context.Context, in Registration) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)
	if err := domain.ValidateUsername(username); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidateEmail(email); err != nil {
		return domain.User{}, err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleUser
	if s.bootstrapAdmin != "" && strings.EqualFold(username, s.bootstrapAdmin) {
		role = domain.RoleAdmin
	}

	user, err := s.users.Create(ctx, domain.User{
		ID:           s.newID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.now(),
	})
	if err != nil {
		if isDuplicate(err) {
			return domain.User{}, domain.Errorf(domain.ErrConflict, "username or email already exists")
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	_, err = s.watchlists.Create(ctx, domain.Watchlist{
		ID:          s.newID(),
		UserID:      user.ID,
		Name:        domain.DefaultWatchlistName,
		Description: domain.DefaultWatchlistDescription,
		IsDefault:   true,
		CreatedAt:   s.now(),
	})
	if err != nil {
		if delErr := s.users.Delete(context.WithoutCancel(ctx), user.ID); delErr != nil {
			s.logger.Error("roll back user after failed registration",
				zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return domain.User{}, fmt.Errorf("create default watchlist: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// Login checks credentials and records the login time. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	invalid := domain.Errorf(domain.ErrUnauthorized, "invalid credentials")

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return domain.User{}, invalid
		}
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		return domain.User{}, invalid
	}

	at := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, at); err != nil {
		return domain.User{}, fmt.Errorf("record login: %w", err)
	}
	user.LastLoginAt = &at
	return user, nil
}

// Profile returns a user with membership counters.
func (s *Service) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	profile, err := s.users.Profile(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return domain.UserProfile{}, domain.Errorf(domain.ErrNotFound, "user not found")
		}
		return domain.UserProfile{}, fmt.Errorf("load profile: %w", err)
	}
	return profile, nil
}

// Follow makes followerID follow followeeID.
func (s *Service) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return domain.Errorf(domain.ErrInvalidInput, "you cannot follow yourself")
	}
	if err := s.requireUser(ctx, followeeID); err != nil {
		return err
	}
	err := s.users.Follow(ctx, followerID, followeeID)
	switch {
	case err == nil:
		return nil
	case isDuplicate(err):
		return domain.Errorf(domain.ErrConflict, "already following this user")
	case isNotFound(err):
		return domain.Errorf(domain.ErrNotFound, "user not found")
	default:
		return fmt.Errorf("follow: %w", err)
	}
}

// Unfollow removes the follow edge if it exists.
func (s *Service) Unfollow(ctx context.Context, followerID, followeeID string) error {
	if _, err := s.users.Unfollow(ctx, followerID, followeeID); err != nil {
		return fmt.Errorf("unfollow: %w", err)
	}
	return nil
}

// Followers lists the users following userID.
func (s *Service) Followers(ctx context.Context, userID string) ([]domain.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.users.ListFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list followers: %w", err)
	}
	return users, nil
}

// Following lists the users userID follows.
func (s *Service) Following(ctx context.Context, userID string) ([]domain.User, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.users.ListFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	return users, nil
}
