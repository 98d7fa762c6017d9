package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires HTTP handlers into the provided router.
func RegisterRoutes(r *mux.Router, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Limiter: deps.Limiter}
	videos := VideoHandler{
		Feed:       deps.Feed,
		Engagement: deps.Engagement,
		Videos:     deps.Videos,
		Signer:     deps.Signer,
		Tokens:     deps.Tokens,
	}

	r.HandleFunc("/healthz", health.Handle).Methods(http.MethodGet)

	r.HandleFunc("/api/auth/signup", auth.SignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", auth.Login).Methods(http.MethodPost)

	r.HandleFunc("/api/videos", videos.List).Methods(http.MethodGet)
	r.HandleFunc("/api/videos/{id}/like", videos.Like).Methods(http.MethodPost)
	r.HandleFunc("/api/videos/{id}/comments", videos.Comment).Methods(http.MethodPost)
	r.HandleFunc("/api/videos/{id}/view", videos.View).Methods(http.MethodPost)
	r.HandleFunc("/api/videos/{id}", videos.Edit).Methods(http.MethodPut)
	r.HandleFunc("/api/videos/{id}", videos.Delete).Methods(http.MethodDelete)

	r.HandleFunc("/api/sas-token", videos.UploadToken).Methods(http.MethodGet)
	r.HandleFunc("/api/video-metadata", videos.CreateMetadata).Methods(http.MethodPost)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users      UserStore
	Tokens     TokenService
	Feed       FeedService
	Engagement EngagementService
	Videos     VideoCreator
	Signer     UploadSigner
	Limiter    RateLimiter
}
