package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/videshare/backend/internal/auth"
	"github.com/videshare/backend/internal/logging"
	"github.com/videshare/backend/internal/models"
	"github.com/videshare/backend/internal/repositories"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenService
	Limiter RateLimiter
	NowFunc func() time.Time
}

// Login handles POST /api/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "login") {
		logger.Warn("login rate limited", "remoteAddr", r.RemoteAddr)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts, try again later"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		logger.Warn("login user lookup failed", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		logger.Error("failed to issue session token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{AccessToken: token})
}

// SignUp handles POST /api/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Tokens == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasTokens", h.Tokens != nil)
		respondJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"error": "authentication services unavailable"})
		return
	}

	if !allowRequest(h.Limiter, r, "signup") {
		logger.Warn("signup rate limited", "remoteAddr", r.RemoteAddr)
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many attempts, try again later"})
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Username == "" || req.Email == "" || req.Password == "" {
		logger.Warn("signup missing fields", "username", req.Username, "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "username, email and password are required"})
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		logger.Warn("signup invalid email", "email", req.Email, "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid email address"})
		return
	}

	if len(req.Password) < 8 {
		logger.Warn("signup password too short", "email", req.Email)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		logger.Warn("signup existing account", "email", req.Email)
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "account already exists"})
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("signup user lookup failed", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify existing accounts"})
		return
	}

	if _, err := h.Users.FindByUsername(ctx, req.Username); err == nil {
		logger.Warn("signup username taken", "username", req.Username)
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "username already taken"})
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("signup username lookup failed", "error", err, "username", req.Username)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify existing accounts"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("signup failed to hash password", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	user := models.User{
		ID:        uuid.NewString(),
		Username:  req.Username,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: h.now(),
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			logger.Warn("signup conflict", "email", req.Email)
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "account already exists"})
			return
		}
		logger.Error("signup failed to create user", "error", err, "email", req.Email)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		logger.Error("signup failed to issue session token", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, authResponse{AccessToken: token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	AccessToken string `json:"accessToken"`
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// bearerClaims extracts and verifies the session token from the Authorization
// header. A bare token without the Bearer prefix is accepted for backwards
// compatibility with older clients. The returned status is 401 when the header
// is absent and 403 when the token does not verify.
func bearerClaims(r *http.Request, tokens TokenService) (auth.Claims, int, error) {
	if tokens == nil {
		return auth.Claims{}, http.StatusServiceUnavailable, errors.New("token service unavailable")
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return auth.Claims{}, http.StatusUnauthorized, errors.New("authorization header required")
	}

	raw := header
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		raw = strings.TrimSpace(header[7:])
	}

	claims, err := tokens.Verify(raw)
	if err != nil {
		return auth.Claims{}, http.StatusForbidden, err
	}
	return claims, 0, nil
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}
