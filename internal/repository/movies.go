package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	jsoniter "github.com/json-iterator/go"

	"github.com/Clark-Hu/movplay/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MoviesRepository persists the local movie records.
type MoviesRepository struct {
	pool *pgxpool.Pool
}

const movieColumns = `
    m.id,
    m.external_id,
    m.title,
    m.original_title,
    m.genres,
    m.release_date,
    m.runtime,
    m.external_rating_average,
    m.external_rating_count,
    m.local_rating_average,
    m.local_rating_count,
    m.poster_path,
    m.backdrop_path,
    m.overview,
    m.tagline,
    m.status,
    m.budget,
    m.revenue,
    m.popularity,
    m.details,
    m.view_count,
    m.favorite_count,
    m.watchlist_count,
    m.created_at,
    m.updated_at
`

// Insert stores a new movie. A second insert for the same external id
// fails with ErrDuplicateKey.
func (r *MoviesRepository) Insert(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	genres, err := json.Marshal(nonNilGenres(movie.Genres))
	if err != nil {
		return domain.Movie{}, err
	}
	details := "{}"
	if len(movie.Details) > 0 {
		details = string(movie.Details)
	}

	const query = `
        WITH m AS (
            INSERT INTO movies (
                id, external_id, title, original_title, genres, release_date, runtime,
                external_rating_average, external_rating_count,
                poster_path, backdrop_path, overview, tagline, status,
                budget, revenue, popularity, details, created_at, updated_at
            )
            VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18::jsonb,$19,$19)
            RETURNING *
        )
        SELECT ` + movieColumns + ` FROM m`

	row := r.pool.QueryRow(ctx, query,
		movie.ID, movie.ExternalID, movie.Title, movie.OriginalTitle, string(genres),
		movie.ReleaseDate, movie.Runtime,
		movie.ExternalRating.Average, movie.ExternalRating.Count,
		movie.PosterPath, movie.BackdropPath, movie.Overview, movie.Tagline, movie.Status,
		movie.Budget, movie.Revenue, movie.Popularity, details, createdAt(movie.CreatedAt),
	)
	stored, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return stored, nil
}

// GetByID fetches a movie by its local identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies m WHERE m.id = $1`, id)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// GetByExternalID fetches a movie by its catalog identifier.
func (r *MoviesRepository) GetByExternalID(ctx context.Context, externalID string) (domain.Movie, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+movieColumns+` FROM movies m WHERE m.external_id = $1`, externalID)
	movie, err := scanMovie(row)
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// SetLocalRating overwrites the derived rating of a movie.
func (r *MoviesRepository) SetLocalRating(ctx context.Context, id string, rating domain.RatingSummary) (domain.Movie, error) {
	const query = `
        WITH m AS (
            UPDATE movies
            SET local_rating_average = $2,
                local_rating_count = $3,
                updated_at = now()
            WHERE id = $1
            RETURNING *
        )
        SELECT ` + movieColumns + ` FROM m`

	movie, err := scanMovie(r.pool.QueryRow(ctx, query, id, rating.Average, rating.Count))
	if err != nil {
		return domain.Movie{}, translate(err)
	}
	return movie, nil
}

// IncrementViews bumps the view counter in place.
func (r *MoviesRepository) IncrementViews(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE movies SET view_count = view_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var (
		movie      domain.Movie
		genresJSON []byte
		details    []byte
		runtime    *int32
	)

	err := row.Scan(
		&movie.ID,
		&movie.ExternalID,
		&movie.Title,
		&movie.OriginalTitle,
		&genresJSON,
		&movie.ReleaseDate,
		&runtime,
		&movie.ExternalRating.Average,
		&movie.ExternalRating.Count,
		&movie.LocalRating.Average,
		&movie.LocalRating.Count,
		&movie.PosterPath,
		&movie.BackdropPath,
		&movie.Overview,
		&movie.Tagline,
		&movie.Status,
		&movie.Budget,
		&movie.Revenue,
		&movie.Popularity,
		&details,
		&movie.ViewCount,
		&movie.FavoriteCount,
		&movie.WatchlistCount,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}

	if runtime != nil {
		v := int(*runtime)
		movie.Runtime = &v
	}
	if len(genresJSON) > 0 {
		if err := json.Unmarshal(genresJSON, &movie.Genres); err != nil {
			return domain.Movie{}, err
		}
	}
	if len(details) > 0 {
		movie.Details = append([]byte(nil), details...)
	}
	return movie, nil
}

func nonNilGenres(genres []domain.Genre) []domain.Genre {
	if genres == nil {
		return []domain.Genre{}
	}
	return genres
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
