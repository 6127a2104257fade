package identity

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"social-backend/internal/models"
)

// PostgresDirectory reads the users table owned by the account service.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) DisplayInfo(ctx context.Context, userID string) (*models.DisplayInfo, error) {
	var info models.DisplayInfo
	query := `SELECT id, name, avatar_url FROM users WHERE id = $1`
	err := d.pool.QueryRow(ctx, query, userID).Scan(&info.ID, &info.Name, &info.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup display info")
	}
	return &info, nil
}
