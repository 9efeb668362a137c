package memory

import (
	"context"
	"sort"
	"time"

	"github.com/Clark-Hu/movplay/internal/domain"
	"github.com/Clark-Hu/movplay/internal/repository"
)

// UsersRepository keeps accounts, favorites and follow edges.
type UsersRepository struct {
	st *state
}

// Create stores a new user; a taken username or email fails with ErrDuplicateKey.
func (r *UsersRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	if _, ok := r.st.userByName[lower(user.Username)]; ok {
		return domain.User{}, duplicate("users_username_key")
	}
	if _, ok := r.st.userByEmail[user.Email]; ok {
		return domain.User{}, duplicate("users_email_key")
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	user.CreatedAt = now(user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	r.st.users[user.ID] = user
	r.st.userByName[lower(user.Username)] = user.ID
	r.st.userByEmail[user.Email] = user.ID
	return user, nil
}

// GetByID returns the user with the given id.
func (r *UsersRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	user, ok := r.st.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return user, nil
}

// Delete removes a user and the favorites, follow edges, reviews and
// watchlists that reference it.
func (r *UsersRepository) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	user, ok := r.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	for movieID := range r.st.favorites[id] {
		r.st.adjust(movieID, favoriteCount, -1)
	}
	delete(r.st.favorites, id)
	delete(r.st.follows, id)
	for _, followees := range r.st.follows {
		delete(followees, id)
	}
	for reviewID, review := range r.st.reviews {
		if review.UserID == id {
			delete(r.st.reviews, reviewID)
			delete(r.st.reviewByUserFilm, pairKey(review.UserID, review.MovieID))
			delete(r.st.votes, reviewID)
			delete(r.st.reports, reviewID)
		}
	}
	for _, voters := range r.st.votes {
		delete(voters, id)
	}
	for _, reporters := range r.st.reports {
		delete(reporters, id)
	}
	for wlID, rec := range r.st.watchlists {
		if rec.list.UserID == id {
			for _, e := range rec.entries {
				r.st.adjust(e.MovieID, watchlistCount, -1)
			}
			delete(r.st.watchlists, wlID)
			continue
		}
		delete(rec.collaborators, id)
		delete(rec.likes, id)
	}
	delete(r.st.users, id)
	delete(r.st.userByName, lower(user.Username))
	delete(r.st.userByEmail, user.Email)
	return nil
}

// GetByEmail returns the user registered with email.
func (r *UsersRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	id, ok := r.st.userByEmail[email]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return r.st.users[id], nil
}

// TouchLastLogin records a successful login.
func (r *UsersRepository) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	user, ok := r.st.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.LastLoginAt = &at
	user.UpdatedAt = time.Now().UTC()
	r.st.users[id] = user
	return nil
}

// Profile returns a user with its membership counters.
func (r *UsersRepository) Profile(_ context.Context, id string) (domain.UserProfile, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	user, ok := r.st.users[id]
	if !ok {
		return domain.UserProfile{}, repository.ErrNotFound
	}
	p := domain.UserProfile{
		User:           user,
		FavoritesCount: len(r.st.favorites[id]),
		FollowingCount: len(r.st.follows[id]),
	}
	for _, followees := range r.st.follows {
		if _, ok := followees[id]; ok {
			p.FollowersCount++
		}
	}
	for _, review := range r.st.reviews {
		if review.UserID == id && review.Visible {
			p.ReviewsCount++
		}
	}
	for _, rec := range r.st.watchlists {
		if rec.list.UserID == id {
			p.WatchlistCount++
		}
	}
	return p, nil
}

// AddFavorite adds movieID to the user's favorites and reports whether it was new.
func (r *UsersRepository) AddFavorite(_ context.Context, userID, movieID string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.users[userID]; !ok {
		return false, repository.ErrNotFound
	}
	if _, ok := r.st.movies[movieID]; !ok {
		return false, repository.ErrNotFound
	}
	set := r.st.favorites[userID]
	if set == nil {
		set = make(map[string]time.Time)
		r.st.favorites[userID] = set
	}
	if _, ok := set[movieID]; ok {
		return false, nil
	}
	set[movieID] = time.Now().UTC()
	r.st.adjust(movieID, favoriteCount, 1)
	return true, nil
}

// RemoveFavorite drops movieID from the user's favorites and reports whether it was present.
func (r *UsersRepository) RemoveFavorite(_ context.Context, userID, movieID string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	set := r.st.favorites[userID]
	if _, ok := set[movieID]; !ok {
		return false, nil
	}
	delete(set, movieID)
	r.st.adjust(movieID, favoriteCount, -1)
	return true, nil
}

// IsFavorite reports whether movieID is among userID's favorites.
func (r *UsersRepository) IsFavorite(_ context.Context, userID, movieID string) (bool, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	_, ok := r.st.favorites[userID][movieID]
	return ok, nil
}

// ListFavorites returns the user's favorite movies, most recently added first.
func (r *UsersRepository) ListFavorites(_ context.Context, userID string) ([]domain.Movie, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	type fav struct {
		movie domain.Movie
		added time.Time
	}
	favs := make([]fav, 0, len(r.st.favorites[userID]))
	for movieID, added := range r.st.favorites[userID] {
		if movie, ok := r.st.movies[movieID]; ok {
			favs = append(favs, fav{movie: movie, added: added})
		}
	}
	sort.Slice(favs, func(i, j int) bool {
		if !favs[i].added.Equal(favs[j].added) {
			return favs[i].added.After(favs[j].added)
		}
		return favs[i].movie.ID < favs[j].movie.ID
	})
	movies := make([]domain.Movie, 0, len(favs))
	for _, f := range favs {
		movies = append(movies, f.movie)
	}
	return movies, nil
}

// Follow adds a follow edge; an existing edge fails with ErrDuplicateKey.
func (r *UsersRepository) Follow(_ context.Context, followerID, followeeID string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.users[followerID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := r.st.users[followeeID]; !ok {
		return repository.ErrNotFound
	}
	set := r.st.follows[followerID]
	if set == nil {
		set = make(map[string]time.Time)
		r.st.follows[followerID] = set
	}
	if _, ok := set[followeeID]; ok {
		return duplicate("user_follows_pkey")
	}
	set[followeeID] = time.Now().UTC()
	return nil
}

// Unfollow removes a follow edge and reports whether it existed.
func (r *UsersRepository) Unfollow(_ context.Context, followerID, followeeID string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	set := r.st.follows[followerID]
	if _, ok := set[followeeID]; !ok {
		return false, nil
	}
	delete(set, followeeID)
	return true, nil
}

// ListFollowers returns the users following userID, newest edge first.
func (r *UsersRepository) ListFollowers(_ context.Context, userID string) ([]domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	edges := make(map[string]time.Time)
	for follower, followees := range r.st.follows {
		if at, ok := followees[userID]; ok {
			edges[follower] = at
		}
	}
	return r.st.usersByEdgeTime(edges), nil
}

// ListFollowing returns the users userID follows, newest edge first.
func (r *UsersRepository) ListFollowing(_ context.Context, userID string) ([]domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	return r.st.usersByEdgeTime(r.st.follows[userID]), nil
}

func (st *state) usersByEdgeTime(edges map[string]time.Time) []domain.User {
	ids := make([]string, 0, len(edges))
	for id := range edges {
		if _, ok := st.users[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		if !edges[ids[i]].Equal(edges[ids[j]]) {
			return edges[ids[i]].After(edges[ids[j]])
		}
		return ids[i] < ids[j]
	})
	users := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, st.users[id])
	}
	return users
}
