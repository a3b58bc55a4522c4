package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgCommentsRepository struct {
	pool *pgxpool.Pool
}

// NewCommentsRepository creates a CommentsRepository backed by the given pool.
func NewCommentsRepository(pool *pgxpool.Pool) CommentsRepository {
	return &pgCommentsRepository{pool: pool}
}

const commentSelect = `
	SELECT c.id, c.segment_id, c.user_id, u.username, c.content, c.created_at
	FROM comments c
	JOIN users u ON u.id = c.user_id`

func (r *pgCommentsRepository) ListCommentsBySegment(ctx context.Context, segmentID int32) ([]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, commentSelect+`
		WHERE c.segment_id = $1
		ORDER BY c.created_at DESC, c.id DESC`, segmentID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListCommentsBySegment: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.SegmentID, &c.UserID, &c.Username, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: ListCommentsBySegment: scan: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *pgCommentsRepository) GetComment(ctx context.Context, id int32) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Comment
	err := r.pool.QueryRow(ctx, commentSelect+` WHERE c.id = $1`, id).
		Scan(&c.ID, &c.SegmentID, &c.UserID, &c.Username, &c.Content, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetComment: %w", err)
	}
	return &c, nil
}

func (r *pgCommentsRepository) CreateComment(ctx context.Context, c *Comment) (*Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO comments (segment_id, user_id, content)
			VALUES ($1, $2, $3)
			RETURNING id, user_id, created_at
		)
		SELECT i.id, u.username, i.created_at
		FROM inserted i
		JOIN users u ON u.id = i.user_id`,
		c.SegmentID, c.UserID, c.Content,
	).Scan(&c.ID, &c.Username, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: CreateComment: %w", err)
	}
	return c, nil
}

func (r *pgCommentsRepository) DeleteComment(ctx context.Context, id int32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: DeleteComment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
