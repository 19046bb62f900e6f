package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kayprogrammer/socialnet-v2/pkg/errs"
)

type users map[string]bool

func (u users) Exists(_ context.Context, id string) (bool, error) { return u[id], nil }

func TestIssueAndAuthenticate(t *testing.T) {
	v := NewTokenVerifier("secret", time.Hour, users{"u1": true})
	tok, err := v.Issue("u1")
	require.NoError(t, err)

	id, err := v.Authenticate(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestAuthenticateRejects(t *testing.T) {
	ctx := context.Background()
	v := NewTokenVerifier("secret", time.Hour, users{"u1": true})

	gone, err := v.Issue("u2")
	require.NoError(t, err)
	_, err = v.Authenticate(ctx, gone)
	assert.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))

	expired, err := NewTokenVerifier("secret", -time.Minute, nil).Issue("u1")
	require.NoError(t, err)
	_, err = v.Authenticate(ctx, expired)
	assert.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))

	forged, err := NewTokenVerifier("other", time.Hour, nil).Issue("u1")
	require.NoError(t, err)
	_, err = v.Authenticate(ctx, forged)
	assert.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = v.Authenticate(ctx, none)
	assert.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))

	_, err = v.Authenticate(ctx, "garbage")
	assert.Equal(t, errs.CodeInvalidToken, errs.CodeOf(err))
}
