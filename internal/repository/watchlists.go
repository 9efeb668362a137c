package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movplay/internal/domain"
)

// WatchlistsRepository persists watchlists with their entries,
// collaborators and likes.
type WatchlistsRepository struct {
	pool *pgxpool.Pool
}

const watchlistColumns = `
    w.id,
    w.user_id,
    w.name,
    w.description,
    w.is_public,
    w.is_default,
    w.tags,
    w.views,
    (SELECT count(*) FROM watchlist_likes l WHERE l.watchlist_id = w.id) AS like_count,
    w.created_at,
    w.updated_at
`

// Create inserts a watchlist. A second default watchlist for the same
// user fails with ErrDuplicateKey.
func (r *WatchlistsRepository) Create(ctx context.Context, wl domain.Watchlist) (domain.Watchlist, error) {
	tags := wl.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := r.pool.Exec(ctx, `
        INSERT INTO watchlists (id, user_id, name, description, is_public, is_default, tags, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
    `, wl.ID, wl.UserID, wl.Name, wl.Description, wl.IsPublic, wl.IsDefault, tags, createdAt(wl.CreatedAt))
	if err != nil {
		return domain.Watchlist{}, translate(err)
	}
	return r.GetByID(ctx, wl.ID)
}

// GetByID loads a watchlist with entries ordered by insertion.
func (r *WatchlistsRepository) GetByID(ctx context.Context, id string) (domain.Watchlist, error) {
	wl, err := scanWatchlist(r.pool.QueryRow(ctx, `SELECT `+watchlistColumns+` FROM watchlists w WHERE w.id = $1`, id))
	if err != nil {
		return domain.Watchlist{}, translate(err)
	}
	if err := r.loadChildren(ctx, &wl); err != nil {
		return domain.Watchlist{}, err
	}
	return wl, nil
}

// ListByUser returns the watchlists a user owns, default first.
func (r *WatchlistsRepository) ListByUser(ctx context.Context, userID string) ([]domain.Watchlist, error) {
	rows, err := r.pool.Query(ctx, `
        SELECT `+watchlistColumns+`
        FROM watchlists w
        WHERE w.user_id = $1
        ORDER BY w.is_default DESC, w.updated_at DESC, w.id
    `, userID)
	if err != nil {
		return nil, err
	}
	lists, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Watchlist, error) {
		return scanWatchlist(row)
	})
	if err != nil {
		return nil, err
	}
	for i := range lists {
		if err := r.loadChildren(ctx, &lists[i]); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

// Update replaces the user-editable fields.
func (r *WatchlistsRepository) Update(ctx context.Context, id string, in domain.WatchlistInput) (domain.Watchlist, error) {
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	tag, err := r.pool.Exec(ctx, `
        UPDATE watchlists
        SET name = $2, description = $3, is_public = $4, tags = $5, updated_at = now()
        WHERE id = $1
    `, id, in.Name, in.Description, in.IsPublic, tags)
	if err != nil {
		return domain.Watchlist{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Watchlist{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// SetDefault flips the default flag. The partial unique index on
// (user_id) WHERE is_default rejects a second default.
func (r *WatchlistsRepository) SetDefault(ctx context.Context, id string, isDefault bool) (domain.Watchlist, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE watchlists SET is_default = $2, updated_at = now() WHERE id = $1`, id, isDefault)
	if err != nil {
		return domain.Watchlist{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Watchlist{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Delete removes a watchlist, releasing the watchlist counter of every
// movie it held.
func (r *WatchlistsRepository) Delete(ctx context.Context, id string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            UPDATE movies m
            SET watchlist_count = GREATEST(m.watchlist_count - e.n, 0)
            FROM (
                SELECT movie_id, count(*) AS n
                FROM watchlist_entries
                WHERE watchlist_id = $1
                GROUP BY movie_id
            ) e
            WHERE m.id = e.movie_id
        `, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM watchlists WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddEntry inserts a membership. An existing entry for the same external
// id fails with ErrDuplicateKey; otherwise the movie's watchlist counter
// is bumped in the same statement.
func (r *WatchlistsRepository) AddEntry(ctx context.Context, watchlistID string, entry domain.WatchlistEntry) error {
	const query = `
        WITH ins AS (
            INSERT INTO watchlist_entries (watchlist_id, external_id, movie_id, added_at)
            VALUES ($1, $2, $3, $4)
            RETURNING movie_id
        ), bump AS (
            UPDATE movies SET watchlist_count = watchlist_count + 1
            WHERE id IN (SELECT movie_id FROM ins)
            RETURNING id
        ), touch AS (
            UPDATE watchlists SET updated_at = now()
            WHERE id = $1 AND EXISTS (SELECT 1 FROM ins)
            RETURNING id
        )
        SELECT (SELECT count(*) FROM bump), (SELECT count(*) FROM touch)
    `
	var bumped, touched int
	err := r.pool.QueryRow(ctx, query, watchlistID, entry.ExternalID, entry.MovieID, createdAt(entry.AddedAt)).Scan(&bumped, &touched)
	return translate(err)
}

// RemoveEntry deletes the entry for externalID and reports whether one
// existed. The movie counter only moves on an actual delete.
func (r *WatchlistsRepository) RemoveEntry(ctx context.Context, watchlistID, externalID string) (bool, error) {
	const query = `
        WITH del AS (
            DELETE FROM watchlist_entries
            WHERE watchlist_id = $1 AND external_id = $2
            RETURNING movie_id
        ), lowered AS (
            UPDATE movies SET watchlist_count = GREATEST(watchlist_count - 1, 0)
            WHERE id IN (SELECT movie_id FROM del)
            RETURNING id
        )
        SELECT count(*) FROM del
    `
	var n int
	if err := r.pool.QueryRow(ctx, query, watchlistID, externalID).Scan(&n); err != nil {
		return false, translate(err)
	}
	return n == 1, nil
}

// MarkWatched flags an entry as watched. Nil rating/notes leave the
// stored values untouched.
func (r *WatchlistsRepository) MarkWatched(ctx context.Context, watchlistID, externalID string, at time.Time, rating *float64, notes *string) error {
	tag, err := r.pool.Exec(ctx, `
        UPDATE watchlist_entries
        SET watched = true,
            watched_at = $3,
            personal_rating = COALESCE($4, personal_rating),
            personal_notes = COALESCE($5, personal_notes)
        WHERE watchlist_id = $1 AND external_id = $2
    `, watchlistID, externalID, at, rating, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertCollaborator grants or changes a collaborator's permission.
func (r *WatchlistsRepository) UpsertCollaborator(ctx context.Context, watchlistID string, c domain.Collaborator) error {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO watchlist_collaborators (watchlist_id, user_id, permission, added_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (watchlist_id, user_id) DO UPDATE SET permission = EXCLUDED.permission
    `, watchlistID, c.UserID, string(c.Permission), createdAt(c.AddedAt))
	return translate(err)
}

// RemoveCollaborator revokes access; absent collaborators are ignored.
func (r *WatchlistsRepository) RemoveCollaborator(ctx context.Context, watchlistID, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM watchlist_collaborators WHERE watchlist_id = $1 AND user_id = $2`, watchlistID, userID)
	return err
}

// ToggleLike likes or unlikes a watchlist and returns the new state.
func (r *WatchlistsRepository) ToggleLike(ctx context.Context, watchlistID, userID string) (bool, int, error) {
	var (
		liked bool
		count int
	)
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM watchlist_likes WHERE watchlist_id = $1 AND user_id = $2`, watchlistID, userID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `
                INSERT INTO watchlist_likes (watchlist_id, user_id) VALUES ($1, $2)
                ON CONFLICT DO NOTHING
            `, watchlistID, userID); err != nil {
				return err
			}
			liked = true
		}
		return tx.QueryRow(ctx, `SELECT count(*) FROM watchlist_likes WHERE watchlist_id = $1`, watchlistID).Scan(&count)
	})
	if err != nil {
		return false, 0, translate(err)
	}
	return liked, count, nil
}

// IncrementViews bumps the view counter.
func (r *WatchlistsRepository) IncrementViews(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE watchlists SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WatchlistsRepository) loadChildren(ctx context.Context, wl *domain.Watchlist) error {
	rows, err := r.pool.Query(ctx, `
        SELECT e.movie_id, e.external_id, m.title, m.poster_path, e.added_at,
               e.watched, e.watched_at, e.personal_rating, e.personal_notes
        FROM watchlist_entries e
        JOIN movies m ON m.id = e.movie_id
        WHERE e.watchlist_id = $1
        ORDER BY e.added_at, e.seq
    `, wl.ID)
	if err != nil {
		return err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WatchlistEntry, error) {
		var e domain.WatchlistEntry
		err := row.Scan(&e.MovieID, &e.ExternalID, &e.Title, &e.PosterPath, &e.AddedAt,
			&e.Watched, &e.WatchedAt, &e.PersonalRating, &e.PersonalNotes)
		return e, err
	})
	if err != nil {
		return err
	}
	wl.Entries = entries

	rows, err = r.pool.Query(ctx, `
        SELECT user_id, permission, added_at
        FROM watchlist_collaborators
        WHERE watchlist_id = $1
        ORDER BY added_at, user_id
    `, wl.ID)
	if err != nil {
		return err
	}
	collaborators, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Collaborator, error) {
		var (
			c          domain.Collaborator
			permission string
		)
		err := row.Scan(&c.UserID, &permission, &c.AddedAt)
		c.Permission = domain.Permission(permission)
		return c, err
	})
	if err != nil {
		return err
	}
	wl.Collaborators = collaborators
	return nil
}

func scanWatchlist(row pgx.Row) (domain.Watchlist, error) {
	var wl domain.Watchlist
	err := row.Scan(
		&wl.ID,
		&wl.UserID,
		&wl.Name,
		&wl.Description,
		&wl.IsPublic,
		&wl.IsDefault,
		&wl.Tags,
		&wl.Views,
		&wl.LikeCount,
		&wl.CreatedAt,
		&wl.UpdatedAt,
	)
	return wl, err
}
