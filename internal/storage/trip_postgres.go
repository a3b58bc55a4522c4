package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgTripsRepository struct {
	pool *pgxpool.Pool
}

// NewTripsRepository creates a TripsRepository backed by the given pool.
func NewTripsRepository(pool *pgxpool.Pool) TripsRepository {
	return &pgTripsRepository{pool: pool}
}

const tripSelect = `
	SELECT t.id, t.user_id, u.username, t.title, t.description,
	       t.start_date, t.end_date, t.status, t.created_at
	FROM trips t
	JOIN users u ON u.id = t.user_id`

func (r *pgTripsRepository) ListTrips(ctx context.Context, publishedOnly bool) ([]Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// NULL start dates sort last so undated drafts don't crowd the top.
	rows, err := r.pool.Query(ctx, tripSelect+`
		WHERE NOT $1 OR t.status = 'published'
		ORDER BY t.start_date DESC NULLS LAST, t.id DESC`, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("storage: ListTrips: %w", err)
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: ListTrips: scan: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

func (r *pgTripsRepository) GetTrip(ctx context.Context, id int32) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t, err := scanTrip(r.pool.QueryRow(ctx, tripSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetTrip: %w", err)
	}
	return t, nil
}

func (r *pgTripsRepository) CreateTrip(ctx context.Context, t *Trip) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status := t.Status
	if status == "" {
		status = TripDraft
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO trips (user_id, title, description, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, status, created_at`,
		t.UserID, t.Title, pgtext(t.Description), pgdate(t.StartDate), pgdate(t.EndDate), status,
	).Scan(&t.ID, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: CreateTrip: %w", err)
	}
	return t, nil
}

func (r *pgTripsRepository) UpdateTrip(ctx context.Context, t *Trip) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET title = $1, description = $2, start_date = $3, end_date = $4, status = $5
		WHERE id = $6`,
		t.Title, pgtext(t.Description), pgdate(t.StartDate), pgdate(t.EndDate), t.Status, t.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: UpdateTrip: %w", err)
	}
	return nil
}

func (r *pgTripsRepository) DeleteTrip(ctx context.Context, id int32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: DeleteTrip: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanTrip(row rowScanner) (*Trip, error) {
	var (
		t          Trip
		desc       pgtype.Text
		start, end pgtype.Date
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.Username, &t.Title, &desc,
		&start, &end, &t.Status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Description = desc.String
	t.StartDate = datePtr(start)
	t.EndDate = datePtr(end)
	return &t, nil
}
