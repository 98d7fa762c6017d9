package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the presented credential failed signature or
	// claim validation (including expiry).
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims is the payload carried by issued session tokens. The username is the
// acting user's public handle and ownership key; UserID is the stable account id.
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"id"`
	jwt.RegisteredClaims
}

// Issuer creates and verifies signed session tokens. Tokens are stateless:
// there is no server-side revocation list.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	NowFunc func() time.Time
}

// NewIssuer constructs an Issuer signing with the provided secret. A ttl of
// zero issues non-expiring tokens.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if secret == "" {
		panic("auth: session secret must not be empty")
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a session token for the provided account.
func (i *Issuer) Issue(userID, username string) (string, error) {
	if userID == "" || username == "" {
		return "", errors.New("user id and username must be provided")
	}

	now := i.now()
	claims := Claims{
		Username: username,
		UserID:   userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return signed, nil
}

// Verify parses and validates a presented token, returning its claims.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if claims.Username == "" || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}

	return claims, nil
}

func (i *Issuer) now() time.Time {
	if i.NowFunc != nil {
		return i.NowFunc()
	}
	return time.Now().UTC()
}
