package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mini-event-api/internal/models"
	appErrors "github.com/noah-isme/mini-event-api/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "mini-event-api", Expiration: time.Hour}, nil)

	token, expiresAt, err := svc.IssueToken("cli", "Event CLI", 0)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "cli", claims.Subject)
	assert.Equal(t, "Event CLI", claims.Name)
	assert.Equal(t, "mini-event-api", claims.Issuer)
}

func TestAuthServiceRejectsExpiredToken(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.IssueToken("cli", "", time.Hour)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceRejectsForeignTokens(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret", Issuer: "mini-event-api"}, nil)

	other := NewAuthService(AuthConfig{Secret: "other", Issuer: "mini-event-api"}, nil)
	token, _, err := other.IssueToken("cli", "", 0)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	wrongIssuer := NewAuthService(AuthConfig{Secret: "secret", Issuer: "someone-else"}, nil)
	token, _, err = wrongIssuer.IssueToken("cli", "", 0)
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestAuthServiceIssueRequiresSubject(t *testing.T) {
	svc := NewAuthService(AuthConfig{Secret: "secret"}, nil)
	_, _, err := svc.IssueToken(" ", "", 0)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
