package repositories

import (
	"context"

	"github.com/videshare/backend/internal/models"
)

// VideoRepository exposes whole-document access to stored video metadata.
// Replace is conditional on the version observed at read time and fails with
// ErrVersionConflict when a concurrent writer got there first.
type VideoRepository interface {
	Insert(ctx context.Context, video models.Video) error
	Get(ctx context.Context, id string) (models.Video, int64, error)
	Replace(ctx context.Context, video models.Video, version int64) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.Video, error)
}
