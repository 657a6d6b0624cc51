package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procura/internal/core/id"
)

func TestJWT_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("k"))
	user := &User{ID: id.New(), Email: "a@b.c", IsAdmin: true, DepartmentIDs: []string{"d1"}}

	token, exp, err := svc.GenerateAccessToken(user, "bu-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 5*time.Second)

	uc, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), uc.UserID)
	assert.True(t, uc.IsAdmin)
	assert.Equal(t, []string{"d1"}, uc.DepartmentIDs)
	assert.NotEmpty(t, uc.SessionID)
}

func TestJWT_Rejects(t *testing.T) {
	signer := NewJWTService(DefaultJWTConfig("k"))
	token, _, err := signer.GenerateAccessToken(&User{ID: id.New()}, "bu-1")
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("other")).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := DefaultJWTConfig("k")
	other.Issuer = "someone-else"
	_, err = NewJWTService(other).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	late := NewJWTService(DefaultJWTConfig("k"))
	late.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = late.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = signer.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
