package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgSegmentsRepository struct {
	pool *pgxpool.Pool
}

// NewSegmentsRepository creates a SegmentsRepository backed by the given pool.
func NewSegmentsRepository(pool *pgxpool.Pool) SegmentsRepository {
	return &pgSegmentsRepository{pool: pool}
}

const segmentColumns = `
	s.id, s.trip_id, s.start_lat, s.start_lng, s.end_lat, s.end_lng,
	s.start_name, s.end_name, s.route_geometry, s.distance, s.transport_type,
	s.start_time, s.end_time, s.description, s.photo_url, s.segment_order,
	s.start_geohash, s.created_at`

func (r *pgSegmentsRepository) ListSegmentsByTrip(ctx context.Context, tripID int32) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+segmentColumns+`
		FROM segments s
		WHERE s.trip_id = $1
		ORDER BY s.segment_order ASC, s.start_time ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListSegmentsByTrip: %w", err)
	}
	return collectSegments(rows, "ListSegmentsByTrip")
}

func (r *pgSegmentsRepository) GetSegment(ctx context.Context, id int32) (*Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	s, err := scanSegment(r.pool.QueryRow(ctx, `SELECT `+segmentColumns+` FROM segments s WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetSegment: %w", err)
	}
	return s, nil
}

func (r *pgSegmentsRepository) CreateSegment(ctx context.Context, s *Segment) (*Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx, `
		INSERT INTO segments (
			trip_id, start_lat, start_lng, end_lat, end_lng,
			start_name, end_name, route_geometry, distance, transport_type,
			start_time, end_time, description, photo_url, segment_order, start_geohash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`,
		s.TripID, s.StartLat, s.StartLng, s.EndLat, s.EndLng,
		pgtext(s.StartName), pgtext(s.EndName), s.RouteGeometry, s.Distance, s.TransportType,
		pgtimestamptz(s.StartTime), pgtimestamptz(s.EndTime), pgtext(s.Description), pgtext(s.PhotoURL),
		s.SegmentOrder, pgtext(s.StartGeohash),
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: CreateSegment: %w", err)
	}
	return s, nil
}

func (r *pgSegmentsRepository) UpdateSegment(ctx context.Context, s *Segment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE segments SET
			start_lat = $1, start_lng = $2, end_lat = $3, end_lng = $4,
			start_name = $5, end_name = $6, route_geometry = $7, distance = $8,
			transport_type = $9, start_time = $10, end_time = $11,
			description = $12, photo_url = $13, segment_order = $14, start_geohash = $15
		WHERE id = $16`,
		s.StartLat, s.StartLng, s.EndLat, s.EndLng,
		pgtext(s.StartName), pgtext(s.EndName), s.RouteGeometry, s.Distance,
		s.TransportType, pgtimestamptz(s.StartTime), pgtimestamptz(s.EndTime),
		pgtext(s.Description), pgtext(s.PhotoURL), s.SegmentOrder, pgtext(s.StartGeohash), s.ID,
	)
	if err != nil {
		return fmt.Errorf("storage: UpdateSegment: %w", err)
	}
	return nil
}

func (r *pgSegmentsRepository) DeleteSegment(ctx context.Context, id int32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: DeleteSegment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *pgSegmentsRepository) SetSegmentPhoto(ctx context.Context, id int32, photoURL string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `UPDATE segments SET photo_url = $1 WHERE id = $2`, pgtext(photoURL), id); err != nil {
		return fmt.Errorf("storage: SetSegmentPhoto: %w", err)
	}
	return nil
}

func (r *pgSegmentsRepository) FindSegmentsByGeohash(ctx context.Context, cells []string) ([]Segment, error) {
	if len(cells) == 0 {
		return []Segment{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	patterns := make([]string, len(cells))
	for i, c := range cells {
		patterns[i] = c + "%"
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+segmentColumns+`
		FROM segments s
		JOIN trips t ON t.id = s.trip_id
		WHERE t.status = 'published'
		  AND s.start_geohash LIKE ANY($1)
		ORDER BY s.id`, patterns)
	if err != nil {
		return nil, fmt.Errorf("storage: FindSegmentsByGeohash: %w", err)
	}
	return collectSegments(rows, "FindSegmentsByGeohash")
}

func collectSegments(rows pgx.Rows, op string) ([]Segment, error) {
	defer rows.Close()

	segments := []Segment{}
	for rows.Next() {
		s, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: %s: scan: %w", op, err)
		}
		segments = append(segments, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: %s: %w", op, err)
	}
	return segments, nil
}

func scanSegment(row rowScanner) (*Segment, error) {
	var (
		s                                    Segment
		startName, endName, desc, photo, geo pgtype.Text
		startTime, endTime                   pgtype.Timestamptz
	)
	if err := row.Scan(
		&s.ID, &s.TripID, &s.StartLat, &s.StartLng, &s.EndLat, &s.EndLng,
		&startName, &endName, &s.RouteGeometry, &s.Distance, &s.TransportType,
		&startTime, &endTime, &desc, &photo, &s.SegmentOrder,
		&geo, &s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.StartName = startName.String
	s.EndName = endName.String
	s.Description = desc.String
	s.PhotoURL = photo.String
	s.StartGeohash = geo.String
	s.StartTime = timestamptzPtr(startTime)
	s.EndTime = timestamptzPtr(endTime)
	return &s, nil
}
