package handlers

import (
	"context"

	"github.com/videshare/backend/internal/auth"
	"github.com/videshare/backend/internal/engagement"
	"github.com/videshare/backend/internal/models"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(userID, username string) (string, error)
	Verify(token string) (auth.Claims, error)
}

// FeedService assembles the video feed with playable URLs attached.
type FeedService interface {
	Assemble(ctx context.Context) ([]models.Video, error)
}

// EngagementService applies like, comment, view, edit, and delete mutations.
type EngagementService interface {
	ToggleLike(ctx context.Context, videoID, userID string) (engagement.LikeResult, error)
	AddComment(ctx context.Context, videoID, userID, username, text string) (models.Comment, error)
	IncrementView(ctx context.Context, videoID string) (int64, error)
	Edit(ctx context.Context, videoID, actingUsername, title, description string) (models.Video, error)
	Delete(ctx context.Context, videoID, actingUsername string) error
}

// VideoCreator persists freshly announced video metadata documents.
type VideoCreator interface {
	Insert(ctx context.Context, video models.Video) error
}

// UploadSigner derives write capability URLs for blobs about to be uploaded.
type UploadSigner interface {
	PresignUpload(ctx context.Context, filename string) (string, error)
	BlobURL(filename string) string
}
