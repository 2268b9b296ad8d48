package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skill-training-api/internal/models"
	appErrors "github.com/noah-isme/skill-training-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() models.JWTClaims {
	return models.JWTClaims{
		UserID: competitorC,
		Role:   models.RoleCompetitor,
		Email:  "c@example.org",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret", "identity")

	claims, err := svc.ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), validClaims()))
	require.NoError(t, err)
	assert.Equal(t, competitorC, claims.UserID)
	assert.Equal(t, models.RoleCompetitor, claims.Role)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService("secret", "identity")

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims()
	wrongIssuer.Issuer = "elsewhere"
	noRole := validClaims()
	noRole.Role = ""
	unknownRole := validClaims()
	unknownRole.Role = "JUDGE"

	tests := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"hs512":        signToken(t, jwt.SigningMethodHS512, []byte("secret"), validClaims()),
		"expired":      signToken(t, jwt.SigningMethodHS256, []byte("secret"), expired),
		"issuer":       signToken(t, jwt.SigningMethodHS256, []byte("secret"), wrongIssuer),
		"no role":      signToken(t, jwt.SigningMethodHS256, []byte("secret"), noRole),
		"unknown role": signToken(t, jwt.SigningMethodHS256, []byte("secret"), unknownRole),
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))
		})
	}
}

func TestTokenServiceWithoutIssuer(t *testing.T) {
	claims := validClaims()
	claims.Issuer = ""
	_, err := NewTokenService("secret", "").ValidateToken(signToken(t, jwt.SigningMethodHS256, []byte("secret"), claims))
	assert.NoError(t, err)
}
