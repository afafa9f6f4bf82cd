package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SupabaseClaims is the subset of the supabase access token we read.
type SupabaseClaims struct {
	jwt.RegisteredClaims

	// role is the user's role (e.g., "authenticated", "anon")
	Role string `json:"role,omitempty"`

	// session_id is the unique session identifier
	SessionID string `json:"session_id,omitempty"`

	Email string `json:"email,omitempty"`

	// is_anonymous indicates if the user is anonymous
	IsAnonymous bool `json:"is_anonymous,omitempty"`
}

// UserID returns the subject claim (user's UUID in supabase)
func (c *SupabaseClaims) UserID() string {
	return c.Subject
}

// IsAuthenticated returns true if the user has a valid authenticated role
func (c *SupabaseClaims) IsAuthenticated() bool {
	return c.Role == "authenticated"
}

// ValidatorOption customises a JWTValidator.
type ValidatorOption func(*JWTValidator)

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) ValidatorOption {
	return func(v *JWTValidator) { v.audience = audience }
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *JWTValidator) { v.leeway = d }
}

// withClock fixes the validation time. tests only.
func withClock(now func() time.Time) ValidatorOption {
	return func(v *JWTValidator) { v.now = now }
}

// JWTValidator validates supabase auth tokens
type JWTValidator struct {
	secret   []byte
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewJWTValidator creates a new validator with the supabase jwt secret.
// tokens are expected for the "authenticated" audience unless overridden.
func NewJWTValidator(secret string, opts ...ValidatorOption) *JWTValidator {
	v := &JWTValidator{
		secret:   []byte(secret),
		audience: "authenticated",
		leeway:   30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// common jwt validation errors
var (
	ErrMissingToken     = errors.New("missing authorization token")
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidClaims    = errors.New("invalid token claims")
)

// ValidateToken parses and validates a supabase jwt token
// returns the claims if valid, or an error if validation fails
func (v *JWTValidator) ValidateToken(tokenString string) (*SupabaseClaims, error) {
	tokenString = strings.TrimSpace(ExtractBearerToken(tokenString))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.audience))
	}

	claims := &SupabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		// check for specific jwt errors
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrSignatureInvalid), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// scores are keyed by the supabase user uuid
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", ErrInvalidClaims)
	}

	return claims, nil
}

// ExtractBearerToken extracts the token from an Authorization header value
func ExtractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	// handle "Bearer <token>" format
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return authHeader[7:]
	}
	return authHeader
}
