package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BusinessStore struct {
	db *pgxpool.Pool
}

func (s *BusinessStore) Exists(ctx context.Context, businessID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM businesses WHERE id = $1)`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := s.db.QueryRow(ctx, query, businessID).Scan(&exists)
	return exists, err
}
