package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"roomrelay/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "roomrelay"

	// IdentityKey is where Middleware stores the caller's identity in gin.Context.
	IdentityKey = "identity"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrNoSubject    = errors.New("token has no subject")
)

// JWT issues and verifies HS256 bearer tokens whose subject is the username.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

var _ relay.Authenticator = (*JWT)(nil)

func New(secret string, ttl time.Duration) *JWT {
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// Sign creates a token for username.
func (j *JWT) Sign(username string) (string, error) {
	if username == "" {
		return "", ErrNoSubject
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Verify checks signature, expiry and issuer and returns the subject.
func (j *JWT) Verify(tok string) (string, error) {
	if tok == "" {
		return "", ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}

// Authenticate verifies the token presented with a websocket handshake.
func (j *JWT) Authenticate(_ context.Context, hs relay.Handshake) (string, error) {
	return j.Verify(hs.Token)
}

// BearerToken extracts the token from "Authorization: Bearer <tok>", falling
// back to the "token" query parameter browsers use for websockets.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid bearer token.
func (j *JWT) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := j.Verify(BearerToken(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}
