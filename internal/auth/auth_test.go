package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, cfg Config, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}

func TestParseValidToken(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "workout.test"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub":    "user-1",
		"email":  "ana@example.com",
		"iss":    cfg.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": "workouts:read workouts:write",
	})

	claims, err := Parse(signed, cfg)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "ana@example.com", claims.Email)
	require.True(t, claims.HasScope(ScopeWorkoutsWrite))
	require.True(t, CanRead(claims))
	require.False(t, claims.Guest)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "workout.test"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"sub": "user-1",
		"iss": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingSubject(t *testing.T) {
	cfg := Config{Secret: "test-secret", Issuer: "workout.test"}
	signed := signToken(t, cfg, jwt.MapClaims{
		"iss": cfg.Issuer,
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := Parse(signed, cfg)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseEmptyToken(t *testing.T) {
	_, err := Parse("  ", Config{Secret: "s", Issuer: "i"})
	require.ErrorIs(t, err, ErrMissingToken)
}
