package pgrequest

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS requests (
  id BIGSERIAL PRIMARY KEY,
  pickup_text TEXT NOT NULL,
  dest_text TEXT NOT NULL,
  pickup_lat DOUBLE PRECISION NULL,
  pickup_lng DOUBLE PRECISION NULL,
  dest_lat DOUBLE PRECISION NULL,
  dest_lng DOUBLE PRECISION NULL,
  transport_date TEXT NOT NULL,
  time_from TEXT NULL,
  time_to TEXT NULL,
  ambulance_type TEXT NOT NULL,
  is_emergency BOOLEAN NOT NULL DEFAULT FALSE,
  email TEXT NULL,
  full_name TEXT NULL,
  phone TEXT NULL,
  comments TEXT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  source TEXT NOT NULL DEFAULT '',
  public_token TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_requests_public_token ON requests(public_token)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_transport_date ON requests(transport_date)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
