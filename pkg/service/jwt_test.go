package service

import (
	"testing"
	"time"

	apperrors "reservation-system/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, zap.NewNop())

	token, err := svc.GenerateAccessToken(42, "SUPERVISOR")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "SUPERVISOR", claims.Role)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour, zap.NewNop())
	other := NewJWTService("other-secret", time.Hour, zap.NewNop())

	foreign, err := other.GenerateAccessToken(1, "ADVISOR")
	require.NoError(t, err)
	_, err = svc.ValidateToken(foreign)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	expired := NewJWTService("secret", -time.Minute, zap.NewNop())
	old, err := expired.GenerateAccessToken(1, "ADVISOR")
	require.NoError(t, err)
	_, err = svc.ValidateToken(old)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)

	_, err = svc.ValidateToken("garbage")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}
