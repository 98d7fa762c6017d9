package repositories

import (
	"context"

	"github.com/videshare/backend/internal/models"
)

// UserRepository defines the data access contract for accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}
