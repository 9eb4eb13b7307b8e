package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-testing-purposes"

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	service, err := NewJWTService(testSecret, "itservices", 15*time.Minute)
	require.NoError(t, err)
	return service
}

func sign(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestNewJWTService(t *testing.T) {
	service := newTestJWTService(t)
	assert.Equal(t, 15*time.Minute, service.GetAccessTokenExpiry())
}

func TestNewJWTService_WeakSecret(t *testing.T) {
	service, err := NewJWTService("short", "", time.Minute)

	assert.ErrorIs(t, err, ErrWeakSecret)
	assert.Nil(t, service)
}

func TestJWTService_GenerateAccessToken_Success(t *testing.T) {
	service := newTestJWTService(t)

	token, expiresAt, err := service.GenerateAccessToken("user-123", "test@example.com", RoleCustomer)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
}

func TestJWTService_ValidateAccessToken_Valid(t *testing.T) {
	service := newTestJWTService(t)

	token, _, err := service.GenerateAccessToken("user-456", "staff@example.com", RoleStaff)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)
	assert.Equal(t, "staff@example.com", claims.Email)
	assert.Equal(t, RoleStaff, claims.Role)
	assert.Equal(t, "user-456", claims.Subject)
	assert.Equal(t, "itservices", claims.Issuer)
}

func TestJWTService_ValidateAccessToken_Expired(t *testing.T) {
	service := newTestJWTService(t)
	token := sign(t, testSecret, Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "itservices",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	claims, err := service.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_Invalid(t *testing.T) {
	service := newTestJWTService(t)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
		{"wrong issuer", sign(t, testSecret, Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "other", ExpiresAt: future}})},
		{"no expiry", sign(t, testSecret, Claims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "itservices"}})},
		{"no user id", sign(t, testSecret, Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "itservices", ExpiresAt: future}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestJWTService_ValidateAccessToken_WrongSignature(t *testing.T) {
	service1, err := NewJWTService("secret-key-1-xxxxxxxxxxxxxxxxxxxxxxxx", "", 15*time.Minute)
	require.NoError(t, err)
	service2, err := NewJWTService("secret-key-2-xxxxxxxxxxxxxxxxxxxxxxxx", "", 15*time.Minute)
	require.NoError(t, err)

	token, _, err := service1.GenerateAccessToken("user-123", "test@example.com", RoleCustomer)
	require.NoError(t, err)

	claims, err := service2.ValidateAccessToken(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_ValidateAccessToken_WrongAlgorithm(t *testing.T) {
	service := newTestJWTService(t)

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "user-123",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "itservices",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestJWTService_NoIssuerCheckWhenUnset(t *testing.T) {
	service, err := NewJWTService(testSecret, "", time.Minute)
	require.NoError(t, err)
	token := sign(t, testSecret, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "anyone",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := service.ValidateAccessToken(token)

	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}
