// Package feed assembles the public video feed: every stored document, newest
// first, with a time-scoped playable URL attached where signing is possible.
package feed

import (
	"context"
	"fmt"
	"sort"

	"github.com/videshare/backend/internal/logging"
	"github.com/videshare/backend/internal/models"
)

// VideoLister scans all stored video documents in stable natural order.
type VideoLister interface {
	List(ctx context.Context) ([]models.Video, error)
}

// PlaybackSigner derives time-scoped read URLs for blobs inside the managed
// storage account.
type PlaybackSigner interface {
	Manages(blobURL string) bool
	PresignPlayback(ctx context.Context, filename string) (string, error)
}

// Assembler builds feed responses. It is read-only: capability tokens are
// generated fresh per request and never persisted.
type Assembler struct {
	store  VideoLister
	signer PlaybackSigner
}

// NewAssembler constructs an Assembler over the provided store and signer.
func NewAssembler(store VideoLister, signer PlaybackSigner) *Assembler {
	return &Assembler{store: store, signer: signer}
}

// Assemble returns all videos sorted by upload date descending. Ties keep the
// store's natural order. Videos in the managed storage account get their
// blobUrl swapped for a signed read URL; when signing fails the canonical URL
// is served instead so a video is never dropped from the feed.
func (a *Assembler) Assemble(ctx context.Context) ([]models.Video, error) {
	if a.store == nil {
		return nil, fmt.Errorf("feed assembler: no video store configured")
	}

	ctx, span := logging.StartSpan(ctx, "assemble feed")
	defer span.End()

	videos, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}

	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].UploadDate.After(videos[j].UploadDate)
	})

	if a.signer == nil {
		return videos, nil
	}

	logger := logging.FromContext(ctx)
	for i := range videos {
		if !a.signer.Manages(videos[i].BlobURL) {
			continue
		}

		signed, err := a.signer.PresignPlayback(ctx, videos[i].Filename)
		if err != nil {
			logger.Warn("serving unsigned blob url after presign failure",
				"videoId", videos[i].ID, "error", err)
			continue
		}
		videos[i].BlobURL = signed
	}

	return videos, nil
}
