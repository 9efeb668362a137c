package repository

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movplay/internal/domain"
)

// UsersRepository persists accounts, favorites and the follow graph.
type UsersRepository struct {
	pool *pgxpool.Pool
}

const userColumns = `id, username, email, password_hash, role, last_login_at, created_at, updated_at`

// Create inserts a new user. Duplicate usernames (case-insensitive) or
// emails fail with ErrDuplicateKey.
func (r *UsersRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.pool.QueryRow(ctx, `
        INSERT INTO users (id, username, email, password_hash, role, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
        RETURNING `+userColumns,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, createdAt(user.CreatedAt))
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, translate(err)
	}
	return created, nil
}

// GetByID returns the user with the given id.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// Delete removes a user together with everything that references it and
// releases the movie counters its favorites and watchlists held. Review
// aggregates are not recomputed.
func (r *UsersRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            UPDATE movies m
            SET favorite_count = GREATEST(m.favorite_count - 1, 0)
            FROM user_favorites f
            WHERE f.user_id = $1 AND m.id = f.movie_id
        `, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
            UPDATE movies m
            SET watchlist_count = GREATEST(m.watchlist_count - e.n, 0)
            FROM (
                SELECT e.movie_id, count(*) AS n
                FROM watchlist_entries e
                JOIN watchlists w ON w.id = e.watchlist_id
                WHERE w.user_id = $1
                GROUP BY e.movie_id
            ) e
            WHERE m.id = e.movie_id
        `, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// GetByEmail returns the user registered with email.
func (r *UsersRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return user, nil
}

// TouchLastLogin records a successful login.
func (r *UsersRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET last_login_at = $2, updated_at = now() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Profile loads a user together with its membership counters.
func (r *UsersRepository) Profile(ctx context.Context, id string) (domain.UserProfile, error) {
	const query = `
        SELECT ` + userColumns + `,
            (SELECT count(*) FROM user_favorites f WHERE f.user_id = users.id),
            (SELECT count(*) FROM user_follows f WHERE f.followee_id = users.id),
            (SELECT count(*) FROM user_follows f WHERE f.follower_id = users.id),
            (SELECT count(*) FROM reviews rv WHERE rv.user_id = users.id AND rv.is_visible),
            (SELECT count(*) FROM watchlists w WHERE w.user_id = users.id)
        FROM users
        WHERE id = $1
    `
	var p domain.UserProfile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.Role, &p.LastLoginAt, &p.CreatedAt, &p.UpdatedAt,
		&p.FavoritesCount, &p.FollowersCount, &p.FollowingCount, &p.ReviewsCount, &p.WatchlistCount,
	)
	if err != nil {
		return domain.UserProfile{}, translate(err)
	}
	return p, nil
}

// AddFavorite inserts the membership if absent and bumps the movie's
// favorite counter only when a row was actually inserted.
func (r *UsersRepository) AddFavorite(ctx context.Context, userID, movieID string) (bool, error) {
	const query = `
        WITH ins AS (
            INSERT INTO user_favorites (user_id, movie_id)
            VALUES ($1, $2)
            ON CONFLICT (user_id, movie_id) DO NOTHING
            RETURNING movie_id
        ), bump AS (
            UPDATE movies SET favorite_count = favorite_count + 1
            WHERE id IN (SELECT movie_id FROM ins)
            RETURNING id
        )
        SELECT count(*) FROM bump
    `
	var n int
	if err := r.pool.QueryRow(ctx, query, userID, movieID).Scan(&n); err != nil {
		return false, translate(err)
	}
	return n == 1, nil
}

// RemoveFavorite deletes the membership if present and decrements the
// counter, never below zero, only when a row was actually deleted.
func (r *UsersRepository) RemoveFavorite(ctx context.Context, userID, movieID string) (bool, error) {
	const query = `
        WITH del AS (
            DELETE FROM user_favorites
            WHERE user_id = $1 AND movie_id = $2
            RETURNING movie_id
        ), lowered AS (
            UPDATE movies SET favorite_count = GREATEST(favorite_count - 1, 0)
            WHERE id IN (SELECT movie_id FROM del)
            RETURNING id
        )
        SELECT count(*) FROM lowered
    `
	var n int
	if err := r.pool.QueryRow(ctx, query, userID, movieID).Scan(&n); err != nil {
		return false, translate(err)
	}
	return n == 1, nil
}

// IsFavorite reports whether movieID is among userID's favorites.
func (r *UsersRepository) IsFavorite(ctx context.Context, userID, movieID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM user_favorites WHERE user_id = $1 AND movie_id = $2)`, userID, movieID).Scan(&exists)
	return exists, err
}

// ListFavorites returns the user's favorite movies, most recently added first.
func (r *UsersRepository) ListFavorites(ctx context.Context, userID string) ([]domain.Movie, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("user_favorites").As("f")).
		Join(goqu.T("movies").As("m"), goqu.On(goqu.I("m.id").Eq(goqu.I("f.movie_id")))).
		Select(goqu.L(movieColumns)).
		Where(goqu.I("f.user_id").Eq(userID)).
		Order(goqu.I("f.created_at").Desc(), goqu.I("m.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movies := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, movie)
	}
	return movies, rows.Err()
}

// Follow records a follow edge; an existing edge fails with ErrDuplicateKey.
func (r *UsersRepository) Follow(ctx context.Context, followerID, followeeID string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_follows (follower_id, followee_id) VALUES ($1, $2)`, followerID, followeeID)
	return translate(err)
}

// Unfollow removes a follow edge and reports whether one existed.
func (r *UsersRepository) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListFollowers returns the users following userID.
func (r *UsersRepository) ListFollowers(ctx context.Context, userID string) ([]domain.User, error) {
	return r.listUsers(ctx, `
        SELECT u.id, u.username, u.email, u.password_hash, u.role, u.last_login_at, u.created_at, u.updated_at
        FROM user_follows f JOIN users u ON u.id = f.follower_id
        WHERE f.followee_id = $1
        ORDER BY f.created_at DESC`, userID)
}

// ListFollowing returns the users userID follows.
func (r *UsersRepository) ListFollowing(ctx context.Context, userID string) ([]domain.User, error) {
	return r.listUsers(ctx, `
        SELECT u.id, u.username, u.email, u.password_hash, u.role, u.last_login_at, u.created_at, u.updated_at
        FROM user_follows f JOIN users u ON u.id = f.followee_id
        WHERE f.follower_id = $1
        ORDER BY f.created_at DESC`, userID)
}

func (r *UsersRepository) listUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
