package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims SupabaseClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims() SupabaseClaims {
	return SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "9b2f1c1e-8d4a-4c1b-9f0e-3b7a2d5c6e71",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
		},
		Role: "authenticated",
	}
}

func TestValidateToken(t *testing.T) {
	validator := NewJWTValidator(testSecret, withClock(func() time.Time { return testNow }))

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Hour))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	badSubject := validClaims()
	badSubject.Subject = "user-42"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid with bearer prefix", "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims()), nil},
		{"valid lowercase bearer", "bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims()), nil},
		{"missing", "", ErrMissingToken},
		{"only prefix", "Bearer   ", ErrMissingToken},
		{"malformed", "not.a.jwt", ErrInvalidToken},
		{"wrong secret", signToken(t, "another-secret-another-secret-12345", jwt.SigningMethodHS256, validClaims()), ErrInvalidSignature},
		{"expired", signToken(t, testSecret, jwt.SigningMethodHS256, expired), ErrTokenExpired},
		{"no expiry", signToken(t, testSecret, jwt.SigningMethodHS256, noExpiry), ErrInvalidClaims},
		{"wrong audience", signToken(t, testSecret, jwt.SigningMethodHS256, wrongAudience), ErrInvalidClaims},
		{"subject not uuid", signToken(t, testSecret, jwt.SigningMethodHS256, badSubject), ErrInvalidClaims},
		{"hs512 rejected", signToken(t, testSecret, jwt.SigningMethodHS512, validClaims()), ErrInvalidSignature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := validator.ValidateToken(tt.token)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "9b2f1c1e-8d4a-4c1b-9f0e-3b7a2d5c6e71", claims.UserID())
				assert.True(t, claims.IsAuthenticated())
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestValidateToken_LeewayAllowsSkew(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(-10 * time.Second))
	token := signToken(t, testSecret, jwt.SigningMethodHS256, claims)

	strict := NewJWTValidator(testSecret, WithLeeway(0), withClock(func() time.Time { return testNow }))
	_, err := strict.ValidateToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	lenient := NewJWTValidator(testSecret, withClock(func() time.Time { return testNow }))
	_, err = lenient.ValidateToken(token)
	assert.NoError(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "", ExtractBearerToken(""))
	assert.Equal(t, "abc", ExtractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", ExtractBearerToken("BEARER abc"))
	assert.Equal(t, "abc", ExtractBearerToken("abc"))
}
