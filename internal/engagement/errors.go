package engagement

import "errors"

var (
	// ErrEmptyComment indicates a comment submission with no text.
	ErrEmptyComment = errors.New("comment text is required")
	// ErrNotOwner indicates the acting user does not own the video.
	ErrNotOwner = errors.New("acting user is not the video owner")
	// ErrStoreUnavailable indicates the metadata store is not configured yet.
	ErrStoreUnavailable = errors.New("video store unavailable")
)
