package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgSuggestionsRepository struct {
	pool *pgxpool.Pool
}

// NewSuggestionsRepository creates a SuggestionsRepository backed by the given pool.
func NewSuggestionsRepository(pool *pgxpool.Pool) SuggestionsRepository {
	return &pgSuggestionsRepository{pool: pool}
}

const suggestionSelect = `
	SELECT s.id, s.user_id, u.username, s.trip_id, t.title, t.user_id,
	       s.title, s.content, s.status, s.created_at
	FROM trip_suggestions s
	JOIN users u ON u.id = s.user_id
	JOIN trips t ON t.id = s.trip_id`

func (r *pgSuggestionsRepository) ListSuggestionsByTripOwner(ctx context.Context, ownerID int32) ([]Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, suggestionSelect+`
		WHERE t.user_id = $1
		ORDER BY s.created_at DESC, s.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListSuggestionsByTripOwner: %w", err)
	}
	return collectSuggestions(rows, "ListSuggestionsByTripOwner")
}

func (r *pgSuggestionsRepository) ListSuggestionsByUser(ctx context.Context, userID int32) ([]Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, suggestionSelect+`
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC, s.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListSuggestionsByUser: %w", err)
	}
	return collectSuggestions(rows, "ListSuggestionsByUser")
}

func (r *pgSuggestionsRepository) GetSuggestion(ctx context.Context, id int32) (*Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	s, err := scanSuggestion(r.pool.QueryRow(ctx, suggestionSelect+` WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetSuggestion: %w", err)
	}
	return s, nil
}

func (r *pgSuggestionsRepository) CreateSuggestion(ctx context.Context, s *Suggestion) (*Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO trip_suggestions (user_id, trip_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, status, created_at`,
		s.UserID, s.TripID, s.Title, s.Content,
	).Scan(&s.ID, &s.Status, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: CreateSuggestion: %w", err)
	}
	return s, nil
}

func (r *pgSuggestionsRepository) UpdateSuggestionStatus(ctx context.Context, id int32, status string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `UPDATE trip_suggestions SET status = $1 WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("storage: UpdateSuggestionStatus: %w", err)
	}
	return nil
}

func (r *pgSuggestionsRepository) DeleteSuggestion(ctx context.Context, id int32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM trip_suggestions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: DeleteSuggestion: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectSuggestions(rows pgx.Rows, op string) ([]Suggestion, error) {
	defer rows.Close()

	out := []Suggestion{}
	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: scan: %w", op, err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", op, err)
	}
	return out, nil
}

func scanSuggestion(row rowScanner) (*Suggestion, error) {
	var s Suggestion
	if err := row.Scan(&s.ID, &s.UserID, &s.Username, &s.TripID, &s.TripTitle, &s.TripOwnerID,
		&s.Title, &s.Content, &s.Status, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
