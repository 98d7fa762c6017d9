package models

import "time"

// User represents an account on the VideShare platform. The username doubles
// as the public handle and as the ownership key on videos.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a single entry in a video's comment thread. Comments are
// immutable once created and keep their insertion order.
type Comment struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	Date     time.Time `json:"date"`
}

// Video is the full metadata document stored for an uploaded clip. The likes
// slice holds user ids and never contains duplicates; comments are append-only
// and keep insertion order.
type Video struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	BlobURL     string    `json:"blobUrl"`
	Filename    string    `json:"filename"`
	CreatedBy   string    `json:"createdBy"`
	UploadDate  time.Time `json:"uploadDate"`
	Likes       []string  `json:"likes"`
	Comments    []Comment `json:"comments"`
	Views       int64     `json:"views"`
}

// Liked reports whether the provided user id is in the like set.
func (v Video) Liked(userID string) bool {
	for _, id := range v.Likes {
		if id == userID {
			return true
		}
	}
	return false
}
