package service

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/movplay/internal/domain"
)

// CreateWatchlist creates a non-default watchlist owned by userID.
func (s *Service) CreateWatchlist(ctx context.Context, userID string, in domain.WatchlistInput) (domain.Watchlist, error) {
	in, err := in.Normalize()
	if err != nil {
		return domain.Watchlist{}, err
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return domain.Watchlist{}, err
	}
	wl, err := s.watchlists.Create(ctx, domain.Watchlist{
		ID:          s.newID(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
		Tags:        in.Tags,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return domain.Watchlist{}, fmt.Errorf("create watchlist: %w", err)
	}
	return wl, nil
}

// GetWatchlist returns a watchlist visible to viewerID. Views by anyone but
// the owner are counted.
func (s *Service) GetWatchlist(ctx context.Context, viewerID, watchlistID string) (domain.Watchlist, error) {
	wl, err := s.loadWatchlist(ctx, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if !wl.CanView(viewerID) {
		return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "watchlist not found")
	}
	if wl.UserID != viewerID {
		if err := s.watchlists.IncrementViews(ctx, wl.ID); err != nil {
			return domain.Watchlist{}, fmt.Errorf("count watchlist view: %w", err)
		}
		wl.Views++
	}
	return wl, nil
}

// ListWatchlists returns the watchlists owned by userID, default first.
func (s *Service) ListWatchlists(ctx context.Context, userID string) ([]domain.Watchlist, error) {
	lists, err := s.watchlists.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlists: %w", err)
	}
	return lists, nil
}

// UpdateWatchlist replaces the editable metadata of an owned watchlist.
func (s *Service) UpdateWatchlist(ctx context.Context, userID, watchlistID string, in domain.WatchlistInput) (domain.Watchlist, error) {
	in, err := in.Normalize()
	if err != nil {
		return domain.Watchlist{}, err
	}
	if _, err := s.ownedWatchlist(ctx, userID, watchlistID); err != nil {
		return domain.Watchlist{}, err
	}
	wl, err := s.watchlists.Update(ctx, watchlistID, in)
	if err != nil {
		return domain.Watchlist{}, watchlistError(err)
	}
	return wl, nil
}

// SetDefaultWatchlist flags or unflags an owned watchlist as the user's
// default. A user holds at most one default; flagging a second one is a
// conflict.
func (s *Service) SetDefaultWatchlist(ctx context.Context, userID, watchlistID string, isDefault bool) (domain.Watchlist, error) {
	if _, err := s.ownedWatchlist(ctx, userID, watchlistID); err != nil {
		return domain.Watchlist{}, err
	}
	wl, err := s.watchlists.SetDefault(ctx, watchlistID, isDefault)
	if err != nil {
		if isDuplicate(err) {
			return domain.Watchlist{}, domain.Errorf(domain.ErrConflict, "a default watchlist already exists")
		}
		return domain.Watchlist{}, watchlistError(err)
	}
	return wl, nil
}

// DeleteWatchlist removes an owned, non-default watchlist.
func (s *Service) DeleteWatchlist(ctx context.Context, userID, watchlistID string) error {
	wl, err := s.ownedWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return err
	}
	if wl.IsDefault {
		return domain.Errorf(domain.ErrConflict, "cannot delete the default watchlist")
	}
	if err := s.watchlists.Delete(ctx, wl.ID); err != nil {
		return watchlistError(err)
	}
	return nil
}

// SetCollaborator grants collaboratorID access to an owned watchlist,
// replacing any earlier grant.
func (s *Service) SetCollaborator(ctx context.Context, userID, watchlistID, collaboratorID, permission string) (domain.Watchlist, error) {
	perm, err := domain.ParsePermission(permission)
	if err != nil {
		return domain.Watchlist{}, err
	}
	wl, err := s.ownedWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if collaboratorID == wl.UserID {
		return domain.Watchlist{}, domain.Errorf(domain.ErrInvalidInput, "the owner cannot be a collaborator")
	}
	err = s.watchlists.UpsertCollaborator(ctx, wl.ID, domain.Collaborator{
		UserID:     collaboratorID,
		Permission: perm,
		AddedAt:    s.now(),
	})
	if err != nil {
		if isNotFound(err) {
			return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "user not found")
		}
		return domain.Watchlist{}, fmt.Errorf("add collaborator: %w", err)
	}
	return s.loadWatchlist(ctx, wl.ID)
}

// RemoveCollaborator revokes a grant; unknown collaborators are ignored.
func (s *Service) RemoveCollaborator(ctx context.Context, userID, watchlistID, collaboratorID string) (domain.Watchlist, error) {
	wl, err := s.ownedWatchlist(ctx, userID, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if err := s.watchlists.RemoveCollaborator(ctx, wl.ID, collaboratorID); err != nil {
		return domain.Watchlist{}, fmt.Errorf("remove collaborator: %w", err)
	}
	return s.loadWatchlist(ctx, wl.ID)
}

// LikeResult is the state after toggling a like.
type LikeResult struct {
	Liked     bool
	LikeCount int
}

// ToggleLike likes or unlikes a watchlist visible to userID.
func (s *Service) ToggleLike(ctx context.Context, userID, watchlistID string) (LikeResult, error) {
	wl, err := s.loadWatchlist(ctx, watchlistID)
	if err != nil {
		return LikeResult{}, err
	}
	if !wl.CanView(userID) {
		return LikeResult{}, domain.Errorf(domain.ErrNotFound, "watchlist not found")
	}
	liked, count, err := s.watchlists.ToggleLike(ctx, wl.ID, userID)
	if err != nil {
		return LikeResult{}, watchlistError(err)
	}
	return LikeResult{Liked: liked, LikeCount: count}, nil
}

func (s *Service) loadWatchlist(ctx context.Context, watchlistID string) (domain.Watchlist, error) {
	wl, err := s.watchlists.GetByID(ctx, watchlistID)
	if err != nil {
		return domain.Watchlist{}, watchlistError(err)
	}
	return wl, nil
}

// ownedWatchlist hides watchlists the caller cannot see and forbids
// management by anyone but the owner.
func (s *Service) ownedWatchlist(ctx context.Context, userID, watchlistID string) (domain.Watchlist, error) {
	wl, err := s.loadWatchlist(ctx, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if wl.UserID == userID {
		return wl, nil
	}
	if !wl.CanView(userID) {
		return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "watchlist not found")
	}
	return domain.Watchlist{}, domain.Errorf(domain.ErrForbidden, "only the owner can manage this watchlist")
}

func (s *Service) editableWatchlist(ctx context.Context, userID, watchlistID string) (domain.Watchlist, error) {
	wl, err := s.loadWatchlist(ctx, watchlistID)
	if err != nil {
		return domain.Watchlist{}, err
	}
	if wl.CanEdit(userID) {
		return wl, nil
	}
	if !wl.CanView(userID) {
		return domain.Watchlist{}, domain.Errorf(domain.ErrNotFound, "watchlist not found")
	}
	return domain.Watchlist{}, domain.Errorf(domain.ErrForbidden, "you do not have permission to edit this watchlist")
}

func watchlistError(err error) error {
	if isNotFound(err) {
		return domain.Errorf(domain.ErrNotFound, "watchlist not found")
	}
	return fmt.Errorf("watchlist: %w", err)
}
