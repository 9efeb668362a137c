package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movplay/internal/domain"
)

const dialectPostgres = "postgres"

// ReviewsRepository persists reviews together with their votes and reports.
type ReviewsRepository struct {
	pool *pgxpool.Pool
}

const reviewColumns = `
    r.id,
    r.user_id,
    u.username,
    r.movie_id,
    r.external_id,
    r.rating,
    r.title,
    r.comment,
    r.spoiler_warning,
    r.is_visible,
    (SELECT count(*) FROM review_votes rv WHERE rv.review_id = r.id AND rv.is_helpful) AS helpful_count,
    (SELECT count(*) FROM review_votes rv WHERE rv.review_id = r.id AND NOT rv.is_helpful) AS unhelpful_count,
    (SELECT count(*) FROM review_reports rr WHERE rr.review_id = r.id) AS report_count,
    r.edited_at,
    r.created_at,
    r.updated_at
`

const reviewFrom = ` FROM reviews r JOIN users u ON u.id = r.user_id`

// ReviewQuery selects a page of reviews. Empty MovieID/UserID do not filter.
type ReviewQuery struct {
	MovieID     string
	UserID      string
	VisibleOnly bool
	Sort        domain.ReviewSort
	Page        domain.PageRequest
}

// Insert stores a new review; a second review by the same user for the
// same movie fails with ErrDuplicateKey.
func (r *ReviewsRepository) Insert(ctx context.Context, review domain.Review) (domain.Review, error) {
	now := createdAt(review.CreatedAt)
	_, err := r.pool.Exec(ctx, `
        INSERT INTO reviews (id, user_id, movie_id, external_id, rating, title, comment, spoiler_warning, is_visible, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
    `, review.ID, review.UserID, review.MovieID, review.ExternalID, review.Rating,
		review.Title, review.Comment, review.SpoilerWarning, review.Visible, now)
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return r.GetByID(ctx, review.ID)
}

// GetByID fetches a review with its vote and report tallies.
func (r *ReviewsRepository) GetByID(ctx context.Context, id string) (domain.Review, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reviewColumns+reviewFrom+` WHERE r.id = $1`, id)
	review, err := scanReview(row)
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// GetByUserAndMovie fetches the single review a user holds for a movie.
func (r *ReviewsRepository) GetByUserAndMovie(ctx context.Context, userID, movieID string) (domain.Review, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reviewColumns+reviewFrom+` WHERE r.user_id = $1 AND r.movie_id = $2`, userID, movieID)
	review, err := scanReview(row)
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return review, nil
}

// Update writes the owner- and moderator-editable fields of a review.
func (r *ReviewsRepository) Update(ctx context.Context, review domain.Review) (domain.Review, error) {
	tag, err := r.pool.Exec(ctx, `
        UPDATE reviews
        SET rating = $2,
            title = $3,
            comment = $4,
            spoiler_warning = $5,
            is_visible = $6,
            edited_at = $7,
            updated_at = now()
        WHERE id = $1
    `, review.ID, review.Rating, review.Title, review.Comment, review.SpoilerWarning, review.Visible, review.EditedAt)
	if err != nil {
		return domain.Review{}, translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Review{}, ErrNotFound
	}
	return r.GetByID(ctx, review.ID)
}

// Delete removes a review with its votes and reports.
func (r *ReviewsRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// VisibleRatings returns the rating of every visible review of a movie.
func (r *ReviewsRepository) VisibleRatings(ctx context.Context, movieID string) ([]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT rating FROM reviews WHERE movie_id = $1 AND is_visible`, movieID)
	if err != nil {
		return nil, err
	}
	ratings, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("collect ratings: %w", err)
	}
	return ratings, nil
}

// List returns one page of reviews matching q and the total match count.
func (r *ReviewsRepository) List(ctx context.Context, q ReviewQuery) ([]domain.Review, int, error) {
	page := q.Page.Normalize()
	where := reviewFilter(q)

	countSQL, countArgs, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("reviews").As("r")).
		Select(goqu.COUNT(goqu.Star())).
		Where(where...).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build review count: %w", err)
	}
	var total int
	if err := r.pool.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, listArgs, err := goqu.Dialect(dialectPostgres).
		From(goqu.T("reviews").As("r")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("r.user_id")))).
		Select(goqu.L(reviewColumns)).
		Where(where...).
		Order(reviewOrder(q.Sort)...).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build review list: %w", err)
	}

	rows, err := r.pool.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]domain.Review, 0, page.Limit)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, review)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func reviewFilter(q ReviewQuery) []exp.Expression {
	where := make([]exp.Expression, 0, 3)
	if q.MovieID != "" {
		where = append(where, goqu.I("r.movie_id").Eq(q.MovieID))
	}
	if q.UserID != "" {
		where = append(where, goqu.I("r.user_id").Eq(q.UserID))
	}
	if q.VisibleOnly {
		where = append(where, goqu.I("r.is_visible").IsTrue())
	}
	return where
}

func reviewOrder(sort domain.ReviewSort) []exp.OrderedExpression {
	switch sort {
	case domain.SortOldest:
		return []exp.OrderedExpression{goqu.I("r.created_at").Asc(), goqu.I("r.id").Asc()}
	case domain.SortHighest:
		return []exp.OrderedExpression{goqu.I("r.rating").Desc(), goqu.I("r.created_at").Desc()}
	case domain.SortLowest:
		return []exp.OrderedExpression{goqu.I("r.rating").Asc(), goqu.I("r.created_at").Desc()}
	case domain.SortHelpful:
		score := goqu.L(`(SELECT COALESCE(sum(CASE WHEN rv.is_helpful THEN 1 ELSE -1 END), 0) FROM review_votes rv WHERE rv.review_id = r.id)`)
		return []exp.OrderedExpression{score.Desc(), goqu.I("r.created_at").Desc()}
	default:
		return []exp.OrderedExpression{goqu.I("r.created_at").Desc(), goqu.I("r.id").Desc()}
	}
}

// SetVote records a helpfulness vote; a later vote by the same user
// replaces the earlier one.
func (r *ReviewsRepository) SetVote(ctx context.Context, reviewID, userID string, helpful bool) (domain.Review, error) {
	_, err := r.pool.Exec(ctx, `
        INSERT INTO review_votes (review_id, user_id, is_helpful)
        SELECT id, $2, $3 FROM reviews WHERE id = $1
        ON CONFLICT (review_id, user_id)
        DO UPDATE SET is_helpful = EXCLUDED.is_helpful, voted_at = now()
    `, reviewID, userID, helpful)
	if err != nil {
		return domain.Review{}, translate(err)
	}
	return r.GetByID(ctx, reviewID)
}

// RemoveVote drops a user's vote; absent votes are ignored.
func (r *ReviewsRepository) RemoveVote(ctx context.Context, reviewID, userID string) (domain.Review, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM review_votes WHERE review_id = $1 AND user_id = $2`, reviewID, userID); err != nil {
		return domain.Review{}, err
	}
	return r.GetByID(ctx, reviewID)
}

// AddReport records a report and reports whether it was new.
func (r *ReviewsRepository) AddReport(ctx context.Context, reviewID, userID string, reason domain.ReportReason) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
        INSERT INTO review_reports (review_id, user_id, reason)
        SELECT id, $2, $3 FROM reviews WHERE id = $1
        ON CONFLICT (review_id, user_id) DO NOTHING
    `, reviewID, userID, string(reason))
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanReview(row pgx.Row) (domain.Review, error) {
	var (
		review   domain.Review
		editedAt *time.Time
	)
	err := row.Scan(
		&review.ID,
		&review.UserID,
		&review.Username,
		&review.MovieID,
		&review.ExternalID,
		&review.Rating,
		&review.Title,
		&review.Comment,
		&review.SpoilerWarning,
		&review.Visible,
		&review.HelpfulCount,
		&review.UnhelpfulCount,
		&review.ReportCount,
		&editedAt,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		return domain.Review{}, err
	}
	review.EditedAt = editedAt
	return review, nil
}
