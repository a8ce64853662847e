package repository

import (
	"errors"

	"snapfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

const pgForeignKeyViolation = "23503"

// mapError converts store-specific "missing row" errors into NOT_FOUND.
func mapError(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return models.NewNotFoundError(resource, id)
	}
	if status.Code(err) == codes.NotFound {
		return models.NewNotFoundError(resource, id)
	}
	return err
}
