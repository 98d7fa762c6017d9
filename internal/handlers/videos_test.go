package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/videshare/backend/internal/auth"
	"github.com/videshare/backend/internal/engagement"
	"github.com/videshare/backend/internal/models"
	"github.com/videshare/backend/internal/repositories"
)

type feedStub struct {
	videos []models.Video
	err    error
}

func (s feedStub) Assemble(context.Context) ([]models.Video, error) {
	return s.videos, s.err
}

type engagementStub struct {
	likeResult engagement.LikeResult
	likeErr    error
	comment    models.Comment
	commentErr error
	views      int64
	viewErr    error
	video      models.Video
	editErr    error
	deleteErr  error

	lastVideoID  string
	lastUserID   string
	lastUsername string
	lastText     string
}

func (s *engagementStub) ToggleLike(_ context.Context, videoID, userID string) (engagement.LikeResult, error) {
	s.lastVideoID, s.lastUserID = videoID, userID
	return s.likeResult, s.likeErr
}

func (s *engagementStub) AddComment(_ context.Context, videoID, userID, username, text string) (models.Comment, error) {
	s.lastVideoID, s.lastUserID, s.lastUsername, s.lastText = videoID, userID, username, text
	if s.commentErr != nil {
		return models.Comment{}, s.commentErr
	}
	if strings.TrimSpace(text) == "" {
		return models.Comment{}, engagement.ErrEmptyComment
	}
	return s.comment, nil
}

func (s *engagementStub) IncrementView(_ context.Context, videoID string) (int64, error) {
	s.lastVideoID = videoID
	return s.views, s.viewErr
}

func (s *engagementStub) Edit(_ context.Context, videoID, actingUsername, title, description string) (models.Video, error) {
	s.lastVideoID, s.lastUsername = videoID, actingUsername
	return s.video, s.editErr
}

func (s *engagementStub) Delete(_ context.Context, videoID, actingUsername string) error {
	s.lastVideoID, s.lastUsername = videoID, actingUsername
	return s.deleteErr
}

type creatorStub struct {
	inserted []models.Video
	err      error
}

func (s *creatorStub) Insert(_ context.Context, video models.Video) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, video)
	return nil
}

type uploadSignerStub struct {
	err error
}

func (s uploadSignerStub) PresignUpload(_ context.Context, filename string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://blobs.example/videos/" + filename + "?sig=upload", nil
}

func (s uploadSignerStub) BlobURL(filename string) string {
	return "https://blobs.example/videos/" + filename
}

var testIssuer = auth.NewIssuer("handler-test-secret", 0)

func newVideoRouter(deps Dependencies) *mux.Router {
	if deps.Tokens == nil {
		deps.Tokens = testIssuer
	}
	r := mux.NewRouter()
	RegisterRoutes(r, deps)
	return r
}

func issueToken(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := testIssuer.Issue(userID, username)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func doRequest(router *mux.Router, method, path, token string, payload any) *httptest.ResponseRecorder {
	var body *bytes.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "http://example.test"+path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListReturnsFeed(t *testing.T) {
	feed := feedStub{videos: []models.Video{
		{ID: "v2", Title: "newer"},
		{ID: "v1", Title: "older"},
	}}
	router := newVideoRouter(Dependencies{Feed: feed})

	rec := doRequest(router, http.MethodGet, "/api/videos", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var videos []models.Video
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if len(videos) != 2 || videos[0].ID != "v2" {
		t.Fatalf("unexpected feed payload: %+v", videos)
	}
}

func TestListEmptyFeedIsJSONArray(t *testing.T) {
	router := newVideoRouter(Dependencies{Feed: feedStub{}})

	rec := doRequest(router, http.MethodGet, "/api/videos", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty JSON array, got %s", got)
	}
}

func TestLikeRequiresAuthentication(t *testing.T) {
	eng := &engagementStub{}
	router := newVideoRouter(Dependencies{Engagement: eng})

	rec := doRequest(router, http.MethodPost, "/api/videos/v1/like", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401 got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/videos/v1/like", "not-a-real-token", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("invalid token: expected 403 got %d", rec.Code)
	}

	if eng.lastVideoID != "" {
		t.Fatal("engagement service reached without valid credentials")
	}
}

func TestLikeTogglesForAuthenticatedUser(t *testing.T) {
	eng := &engagementStub{likeResult: engagement.LikeResult{Likes: 4, Liked: true}}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodPost, "/api/videos/v1/like", token, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.lastVideoID != "v1" || eng.lastUserID != "u-1" {
		t.Fatalf("unexpected call: videoID=%s userID=%s", eng.lastVideoID, eng.lastUserID)
	}

	var result engagement.LikeResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Likes != 4 || !result.Liked {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCommentCreated(t *testing.T) {
	eng := &engagementStub{comment: models.Comment{
		ID:       "1717243800000",
		UserID:   "u-1",
		Username: "alice",
		Text:     "great video",
		Date:     time.Date(2024, time.June, 1, 12, 10, 0, 0, time.UTC),
	}}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodPost, "/api/videos/v1/comments", token, map[string]string{"text": "great video"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.lastUsername != "alice" || eng.lastText != "great video" {
		t.Fatalf("unexpected call: username=%s text=%q", eng.lastUsername, eng.lastText)
	}
}

func TestCommentEmptyTextRejected(t *testing.T) {
	eng := &engagementStub{}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodPost, "/api/videos/v1/comments", token, map[string]string{"text": "   "})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestViewNeedsNoAuthentication(t *testing.T) {
	eng := &engagementStub{views: 42}
	router := newVideoRouter(Dependencies{Engagement: eng})

	rec := doRequest(router, http.MethodPost, "/api/videos/v1/view", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["views"] != 42 {
		t.Fatalf("expected 42 views got %d", resp["views"])
	}
}

func TestViewUnknownVideo(t *testing.T) {
	eng := &engagementStub{viewErr: repositories.ErrNotFound}
	router := newVideoRouter(Dependencies{Engagement: eng})

	rec := doRequest(router, http.MethodPost, "/api/videos/ghost/view", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestEditByNonOwnerForbidden(t *testing.T) {
	eng := &engagementStub{editErr: engagement.ErrNotOwner}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-2", "mallory")
	rec := doRequest(router, http.MethodPut, "/api/videos/v1", token, map[string]string{"title": "mine now"})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.lastUsername != "mallory" {
		t.Fatalf("expected acting username from token, got %q", eng.lastUsername)
	}
}

func TestEditReturnsUpdatedVideo(t *testing.T) {
	eng := &engagementStub{video: models.Video{ID: "v1", Title: "updated", CreatedBy: "alice"}}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodPut, "/api/videos/v1", token, map[string]string{"title": "updated"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var video models.Video
	if err := json.NewDecoder(rec.Body).Decode(&video); err != nil {
		t.Fatalf("decode video: %v", err)
	}
	if video.Title != "updated" {
		t.Fatalf("unexpected video: %+v", video)
	}
}

func TestDeleteByOwner(t *testing.T) {
	eng := &engagementStub{}
	router := newVideoRouter(Dependencies{Engagement: eng})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodDelete, "/api/videos/v1", token, nil)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d: %s", rec.Code, rec.Body.String())
	}
	if eng.lastVideoID != "v1" || eng.lastUsername != "alice" {
		t.Fatalf("unexpected call: videoID=%s username=%s", eng.lastVideoID, eng.lastUsername)
	}
}

func TestUploadTokenRequiresFilename(t *testing.T) {
	router := newVideoRouter(Dependencies{Signer: uploadSignerStub{}})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodGet, "/api/sas-token", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodGet, "/api/sas-token?filename=..%2Fescape.mp4", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("path separator: expected 400 got %d", rec.Code)
	}
}

func TestUploadTokenReturnsCapabilityURL(t *testing.T) {
	router := newVideoRouter(Dependencies{Signer: uploadSignerStub{}})

	token := issueToken(t, "u-1", "alice")
	rec := doRequest(router, http.MethodGet, "/api/sas-token?filename=1717-clip.mp4", token, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SASURL    string `json:"sasUrl"`
		UploadURL string `json:"uploadUrl"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.SASURL, "sig=upload") {
		t.Fatalf("expected signed upload url, got %s", resp.SASURL)
	}
	if resp.UploadURL != "https://blobs.example/videos/1717-clip.mp4" {
		t.Fatalf("unexpected canonical url %s", resp.UploadURL)
	}
}

func TestCreateMetadataStoresDocument(t *testing.T) {
	creator := &creatorStub{}
	now := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

	h := VideoHandler{
		Videos:  creator,
		Signer:  uploadSignerStub{},
		Tokens:  testIssuer,
		NowFunc: func() time.Time { return now },
	}

	payload, _ := json.Marshal(map[string]string{
		"title":       "my clip",
		"description": "first upload",
		"filename":    "1717-clip.mp4",
	})
	req := httptest.NewRequest(http.MethodPost, "http://example.test/api/video-metadata", bytes.NewReader(payload))
	req.Header.Set("Authorization", "Bearer "+issueToken(t, "u-1", "alice"))
	rec := httptest.NewRecorder()
	h.CreateMetadata(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(creator.inserted) != 1 {
		t.Fatalf("expected 1 stored video got %d", len(creator.inserted))
	}

	video := creator.inserted[0]
	if !strings.HasPrefix(video.ID, "1717-clip.mp4-") {
		t.Fatalf("unexpected id %s", video.ID)
	}
	if video.CreatedBy != "alice" {
		t.Fatalf("expected createdBy from token, got %s", video.CreatedBy)
	}
	if video.BlobURL != "https://blobs.example/videos/1717-clip.mp4" {
		t.Fatalf("unexpected blob url %s", video.BlobURL)
	}
	if video.Likes == nil || video.Comments == nil {
		t.Fatal("likes and comments must be initialized, not null")
	}
	if !video.UploadDate.Equal(now) {
		t.Fatalf("unexpected upload date %s", video.UploadDate)
	}
}

func TestCreateMetadataValidation(t *testing.T) {
	router := newVideoRouter(Dependencies{Videos: &creatorStub{}, Signer: uploadSignerStub{}})
	token := issueToken(t, "u-1", "alice")

	rec := doRequest(router, http.MethodPost, "/api/video-metadata", token, map[string]string{"title": "no filename"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing filename: expected 400 got %d", rec.Code)
	}

	rec = doRequest(router, http.MethodPost, "/api/video-metadata", token, map[string]string{"title": "x", "filename": "a/b.mp4"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("path separator: expected 400 got %d", rec.Code)
	}
}

func TestEngagementUnavailable(t *testing.T) {
	router := newVideoRouter(Dependencies{})

	rec := doRequest(router, http.MethodPost, "/api/videos/v1/view", "", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestFeedAssemblyFailure(t *testing.T) {
	router := newVideoRouter(Dependencies{Feed: feedStub{err: errors.New("store down")}})

	rec := doRequest(router, http.MethodGet, "/api/videos", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
