// Package engagement applies like, comment, view, edit, and delete mutations
// to stored video documents. Every mutation is a read-modify-replace where the
// replace is conditional on the version observed at read time; lost races are
// retried against a fresh read rather than clobbering concurrent writes.
package engagement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/videshare/backend/internal/logging"
	"github.com/videshare/backend/internal/models"
	"github.com/videshare/backend/internal/repositories"
)

// VideoStore captures the document operations the coordinator needs.
type VideoStore interface {
	Get(ctx context.Context, id string) (models.Video, int64, error)
	Replace(ctx context.Context, video models.Video, version int64) error
	Delete(ctx context.Context, id string) error
}

// LikeResult reports the like set size and the acting user's membership after
// a toggle.
type LikeResult struct {
	Likes int64 `json:"likes"`
	Liked bool  `json:"liked"`
}

const defaultReplaceAttempts = 3

// Coordinator serialises engagement mutations against the video store.
type Coordinator struct {
	store       VideoStore
	maxAttempts int

	NowFunc func() time.Time
}

// NewCoordinator constructs a Coordinator over the provided store.
func NewCoordinator(store VideoStore) *Coordinator {
	return &Coordinator{store: store, maxAttempts: defaultReplaceAttempts}
}

// ToggleLike adds the user to the like set when absent and removes them when
// present. The set never holds duplicates.
func (c *Coordinator) ToggleLike(ctx context.Context, videoID, userID string) (LikeResult, error) {
	var result LikeResult
	err := c.mutate(ctx, "toggle like", videoID, func(video *models.Video) error {
		if video.Liked(userID) {
			kept := make([]string, 0, len(video.Likes)-1)
			for _, id := range video.Likes {
				if id != userID {
					kept = append(kept, id)
				}
			}
			video.Likes = kept
			result = LikeResult{Likes: int64(len(video.Likes)), Liked: false}
			return nil
		}

		video.Likes = append(video.Likes, userID)
		result = LikeResult{Likes: int64(len(video.Likes)), Liked: true}
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}
	return result, nil
}

// AddComment appends a comment with a time-derived id to the video's thread.
// Empty text fails with ErrEmptyComment.
func (c *Coordinator) AddComment(ctx context.Context, videoID, userID, username, text string) (models.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, ErrEmptyComment
	}

	now := c.now()
	comment := models.Comment{
		ID:       strconv.FormatInt(now.UnixMilli(), 10),
		UserID:   userID,
		Username: username,
		Text:     text,
		Date:     now,
	}

	err := c.mutate(ctx, "add comment", videoID, func(video *models.Video) error {
		video.Comments = append(video.Comments, comment)
		return nil
	})
	if err != nil {
		return models.Comment{}, err
	}

	return comment, nil
}

// IncrementView bumps the view counter and returns the new total. Callers are
// trusted to dedupe; the server records every report.
func (c *Coordinator) IncrementView(ctx context.Context, videoID string) (int64, error) {
	var views int64
	err := c.mutate(ctx, "increment view", videoID, func(video *models.Video) error {
		video.Views++
		views = video.Views
		return nil
	})
	if err != nil {
		return 0, err
	}
	return views, nil
}

// Edit replaces title and description with the non-empty fields of the
// request. Ownership is username string equality with createdBy.
func (c *Coordinator) Edit(ctx context.Context, videoID, actingUsername, title, description string) (models.Video, error) {
	var updated models.Video
	err := c.mutate(ctx, "edit video", videoID, func(video *models.Video) error {
		if video.CreatedBy != actingUsername {
			return ErrNotOwner
		}
		if strings.TrimSpace(title) != "" {
			video.Title = title
		}
		if strings.TrimSpace(description) != "" {
			video.Description = description
		}
		updated = *video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return updated, nil
}

// Delete removes the video document after the same ownership check as Edit.
// The backing blob is left in place.
func (c *Coordinator) Delete(ctx context.Context, videoID, actingUsername string) error {
	if c.store == nil {
		return ErrStoreUnavailable
	}

	video, _, err := c.store.Get(ctx, videoID)
	if err != nil {
		return fmt.Errorf("load video %s: %w", videoID, err)
	}

	if video.CreatedBy != actingUsername {
		return ErrNotOwner
	}

	if err := c.store.Delete(ctx, videoID); err != nil {
		return fmt.Errorf("delete video %s: %w", videoID, err)
	}

	return nil
}

// mutate runs the read-modify-replace loop, re-reading the document after a
// version conflict until the replace sticks or attempts run out.
func (c *Coordinator) mutate(ctx context.Context, name, videoID string, apply func(*models.Video) error) error {
	if c.store == nil {
		return ErrStoreUnavailable
	}

	ctx, span := logging.StartSpan(ctx, name)
	defer span.End()

	attempts := c.maxAttempts
	if attempts <= 0 {
		attempts = defaultReplaceAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		video, version, err := c.store.Get(ctx, videoID)
		if err != nil {
			return fmt.Errorf("load video %s: %w", videoID, err)
		}

		if err := apply(&video); err != nil {
			return err
		}

		err = c.store.Replace(ctx, video, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return fmt.Errorf("%s %s: %w", name, videoID, err)
		}

		lastErr = err
		logging.FromContext(ctx).Warn("replace lost to concurrent writer, retrying",
			"videoId", videoID, "attempt", attempt+1)
	}

	return fmt.Errorf("%s %s: exceeded replace attempts: %w", name, videoID, lastErr)
}

func (c *Coordinator) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}
