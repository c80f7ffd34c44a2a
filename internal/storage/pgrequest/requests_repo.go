package pgrequest

import (
	"context"
	"time"

	"github.com/ambunow/ambugo-app/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ErrNotFound возвращается, когда запись не найдена (по id или токену).
var ErrNotFound = errors.New("request not found")

const requestColumns = `
  id, pickup_text, dest_text,
  pickup_lat, pickup_lng, dest_lat, dest_lng,
  transport_date, time_from, time_to,
  ambulance_type, is_emergency,
  email, full_name, phone, comments,
  status, source, public_token, created_at
`

// CreateRequest inserts one request. id and created_at come back from the
// store: created_at is now() on the database side so ordering does not
// depend on client clocks.
func (s *Storage) CreateRequest(ctx context.Context, in models.RequestCreateInput) (*models.Request, error) {
	r := &models.Request{
		PickupText:    in.PickupText,
		DestText:      in.DestText,
		PickupLat:     in.PickupLat,
		PickupLng:     in.PickupLng,
		DestLat:       in.DestLat,
		DestLng:       in.DestLng,
		Date:          in.Date,
		TimeFrom:      in.TimeFrom,
		TimeTo:        in.TimeTo,
		AmbulanceType: in.AmbulanceType,
		IsEmergency:   in.IsEmergency,
		Email:         in.Email,
		FullName:      in.FullName,
		Phone:         in.Phone,
		Comments:      in.Comments,
		Status:        models.RequestStatusPending,
		Source:        in.Source,
		PublicToken:   in.PublicToken,
	}

	err := s.db.QueryRow(ctx, `
INSERT INTO requests (
  pickup_text, dest_text,
  pickup_lat, pickup_lng, dest_lat, dest_lng,
  transport_date, time_from, time_to,
  ambulance_type, is_emergency,
  email, full_name, phone, comments,
  status, source, public_token, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18, now())
RETURNING id, created_at
`,
		in.PickupText, in.DestText,
		in.PickupLat, in.PickupLng, in.DestLat, in.DestLng,
		in.Date, in.TimeFrom, in.TimeTo,
		in.AmbulanceType, in.IsEmergency,
		in.Email, in.FullName, in.Phone, in.Comments,
		models.RequestStatusPending, in.Source, in.PublicToken,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert request")
	}

	return r, nil
}

// ListRequests returns all requests ordered by creation time descending,
// the base order the admin view expects.
func (s *Storage) ListRequests(ctx context.Context) ([]*models.Request, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+requestColumns+`
FROM requests
ORDER BY created_at DESC, id DESC
`)
	if err != nil {
		return nil, errors.Wrap(err, "select requests")
	}
	defer rows.Close()

	return scanRequests(rows)
}

// GetByToken resolves a public token to at most one request. Uniqueness is
// enforced by the index, but even without it the first row would win.
func (s *Storage) GetByToken(ctx context.Context, publicToken string) (*models.Request, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+requestColumns+`
FROM requests
WHERE public_token = $1
LIMIT 1
`, publicToken)
	if err != nil {
		return nil, errors.Wrap(err, "select request by token")
	}
	defer rows.Close()

	out, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

// UpdateStatus sets only the status field of one request and returns the
// updated row, so callers can refresh caches without a second query.
func (s *Storage) UpdateStatus(ctx context.Context, id uint64, status string) (*models.Request, error) {
	rows, err := s.db.Query(ctx, `
UPDATE requests SET status = $2 WHERE id = $1
RETURNING `+requestColumns,
		id, status)
	if err != nil {
		return nil, errors.Wrap(err, "update request status")
	}
	defer rows.Close()

	out, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func scanRequests(rows pgx.Rows) ([]*models.Request, error) {
	var out []*models.Request
	for rows.Next() {
		var r models.Request
		var pickupLat, pickupLng, destLat, destLng *float64
		var timeFrom, timeTo, email, fullName, phone, comments *string
		var createdAt time.Time
		if err := rows.Scan(
			&r.ID, &r.PickupText, &r.DestText,
			&pickupLat, &pickupLng, &destLat, &destLng,
			&r.Date, &timeFrom, &timeTo,
			&r.AmbulanceType, &r.IsEmergency,
			&email, &fullName, &phone, &comments,
			&r.Status, &r.Source, &r.PublicToken, &createdAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan request")
		}
		r.PickupLat = pickupLat
		r.PickupLng = pickupLng
		r.DestLat = destLat
		r.DestLng = destLng
		r.TimeFrom = timeFrom
		r.TimeTo = timeTo
		r.Email = email
		r.FullName = fullName
		r.Phone = phone
		r.Comments = comments
		r.CreatedAt = createdAt
		out = append(out, &r)
	}

	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
