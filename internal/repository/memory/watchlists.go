package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// WatchlistsRepository keeps watchlists with their entries, collaborators and likes.
type WatchlistsRepository struct {
	st *state
}

// Create stores a new watchlist; a second default list for a user fails with ErrDuplicateKey.
func (r *WatchlistsRepository) Create(_ context.Context, wl domain.Watchlist) (domain.Watchlist, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.watchlists[wl.ID]; ok {
		return domain.Watchlist{}, duplicate("watchlists_pkey")
	}
	if wl.IsDefault && r.st.hasDefault(wl.UserID, "") {
		return domain.Watchlist{}, duplicate("watchlists_one_default_per_user")
	}
	wl.CreatedAt = now(wl.CreatedAt)
	wl.UpdatedAt = wl.CreatedAt
	wl.Tags = append([]string{}, wl.Tags...)
	wl.Entries, wl.Collaborators, wl.Views, wl.LikeCount = nil, nil, 0, 0
	r.st.watchlists[wl.ID] = &watchlistRecord{
		list:          wl,
		collaborators: make(map[string]domain.Collaborator),
		likes:         make(map[string]struct{}),
	}
	return r.st.snapshot(r.st.watchlists[wl.ID]), nil
}

// GetByID returns a watchlist with its entries and collaborators.
func (r *WatchlistsRepository) GetByID(_ context.Context, id string) (domain.Watchlist, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	rec, ok := r.st.watchlists[id]
	if !ok {
		return domain.Watchlist{}, repository.ErrNotFound
	}
	return r.st.snapshot(rec), nil
}

// ListByUser returns the watchlists owned by userID.
func (r *WatchlistsRepository) ListByUser(_ context.Context, userID string) ([]domain.Watchlist, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	lists := make([]domain.Watchlist, 0)
	for _, rec := range r.st.watchlists {
		if rec.list.UserID == userID {
			lists = append(lists, r.st.snapshot(rec))
		}
	}
	sort.Slice(lists, func(i, j int) bool {
		a, b := lists[i], lists[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ID < b.ID
	})
	return lists, nil
}

// Update applies the set fields of in.
func (r *WatchlistsRepository) Update(_ context.Context, id string, in domain.WatchlistInput) (domain.Watchlist, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[id]
	if !ok {
		return domain.Watchlist{}, repository.ErrNotFound
	}
	rec.list.Name = in.Name
	rec.list.Description = in.Description
	rec.list.IsPublic = in.IsPublic
	rec.list.Tags = append([]string{}, in.Tags...)
	rec.list.UpdatedAt = time.Now().UTC()
	return r.st.snapshot(rec), nil
}

// SetDefault flags or unflags a watchlist as its owner's default.
func (r *WatchlistsRepository) SetDefault(_ context.Context, id string, isDefault bool) (domain.Watchlist, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[id]
	if !ok {
		return domain.Watchlist{}, repository.ErrNotFound
	}
	if isDefault && r.st.hasDefault(rec.list.UserID, id) {
		return domain.Watchlist{}, duplicate("watchlists_one_default_per_user")
	}
	rec.list.IsDefault = isDefault
	rec.list.UpdatedAt = time.Now().UTC()
	return r.st.snapshot(rec), nil
}

// Delete removes a watchlist and releases its movie counters.
func (r *WatchlistsRepository) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, e := range rec.entries {
		r.st.adjust(e.MovieID, watchlistCount, -1)
	}
	delete(r.st.watchlists, id)
	return nil
}

// AddEntry appends a movie; an existing entry fails with ErrDuplicateKey.
func (r *WatchlistsRepository) AddEntry(_ context.Context, watchlistID string, entry domain.WatchlistEntry) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[watchlistID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.st.movies[entry.MovieID]; !ok {
		return repository.ErrNotFound
	}
	for _, e := range rec.entries {
		if e.ExternalID == entry.ExternalID {
			return duplicate("watchlist_entries_pkey")
		}
	}
	entry.AddedAt = now(entry.AddedAt)
	entry.Watched, entry.WatchedAt, entry.PersonalRating, entry.PersonalNotes = false, nil, nil, ""
	rec.entries = append(rec.entries, entry)
	rec.list.UpdatedAt = time.Now().UTC()
	r.st.adjust(entry.MovieID, watchlistCount, 1)
	return nil
}

// RemoveEntry drops an entry and reports whether it was present.
func (r *WatchlistsRepository) RemoveEntry(_ context.Context, watchlistID, externalID string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[watchlistID]
	if !ok {
		return false, nil
	}
	for i, e := range rec.entries {
		if e.ExternalID == externalID {
			rec.entries = append(rec.entries[:i:i], rec.entries[i+1:]...)
			r.st.adjust(e.MovieID, watchlistCount, -1)
			return true, nil
		}
	}
	return false, nil
}

// MarkWatched flags an entry as watched at the given time.
func (r *WatchlistsRepository) MarkWatched(_ context.Context, watchlistID, externalID string, at time.Time, rating *float64, notes *string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[watchlistID]
	if !ok {
		return repository.ErrNotFound
	}
	for i := range rec.entries {
		e := &rec.entries[i]
		if e.ExternalID != externalID {
			continue
		}
		e.Watched = true
		watchedAt := at
		e.WatchedAt = &watchedAt
		if rating != nil {
			v := *rating
			e.PersonalRating = &v
		}
		if notes != nil {
			e.PersonalNotes = *notes
		}
		return nil
	}
	return repository.ErrNotFound
}

// UpsertCollaborator adds a collaborator or changes its permission.
func (r *WatchlistsRepository) UpsertCollaborator(_ context.Context, watchlistID string, c domain.Collaborator) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[watchlistID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.st.users[c.UserID]; !ok {
		return repository.ErrNotFound
	}
	if existing, ok := rec.collaborators[c.UserID]; ok {
		c.AddedAt = existing.AddedAt
	} else {
		c.AddedAt = now(c.AddedAt)
	}
	rec.collaborators[c.UserID] = c
	return nil
}

// RemoveCollaborator drops a collaborator.
func (r *WatchlistsRepository) RemoveCollaborator(_ context.Context, watchlistID, userID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if rec, ok := r.st.watchlists[watchlistID]; ok {
		delete(rec.collaborators, userID)
	}
	return nil
}

// ToggleLike flips userID's like and returns the new state and like count.
func (r *WatchlistsRepository) ToggleLike(_ context.Context, watchlistID, userID string) (bool, int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[watchlistID]
	if !ok {
		return false, 0, repository.ErrNotFound
	}
	if _, liked := rec.likes[userID]; liked {
		delete(rec.likes, userID)
		return false, len(rec.likes), nil
	}
	rec.likes[userID] = struct{}{}
	return true, len(rec.likes), nil
}

// IncrementViews counts one view of the watchlist.
func (r *WatchlistsRepository) IncrementViews(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	rec, ok := r.st.watchlists[id]
	if !ok {
		return repository.ErrNotFound
	}
	rec.list.Views++
	return nil
}

// hasDefault reports whether userID owns a default watchlist other than
// exceptID. Callers hold the lock.
func (st *state) hasDefault(userID, exceptID string) bool {
	for id, rec := range st.watchlists {
		if id != exceptID && rec.list.UserID == userID && rec.list.IsDefault {
			return true
		}
	}
	return false
}

// snapshot copies a record into a detached Watchlist value. Callers hold
// at least the read lock.
func (st *state) snapshot(rec *watchlistRecord) domain.Watchlist {
	wl := rec.list
	wl.Tags = append([]string{}, rec.list.Tags...)
	wl.LikeCount = len(rec.likes)
	wl.Entries = make([]domain.WatchlistEntry, len(rec.entries))
	for i, e := range rec.entries {
		if movie, ok := st.movies[e.MovieID]; ok {
			e.Title = movie.Title
			e.PosterPath = movie.PosterPath
		}
		wl.Entries[i] = e
	}
	wl.Collaborators = make([]domain.Collaborator, 0, len(rec.collaborators))
	for _, c := range rec.collaborators {
		wl.Collaborators = append(wl.Collaborators, c)
	}
	sort.Slice(wl.Collaborators, func(i, j int) bool {
		a, b := wl.Collaborators[i], wl.Collaborators[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.UserID < b.UserID
	})
	return wl
}
