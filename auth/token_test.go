package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/errors"
	"github.com/stretchr/testify/require"
)

func TestSigner_Generate_Then_Validate(t *testing.T) {
	req := require.New(t)
	signer := NewSigner("test-secret")

	token, err := signer.GenerateToken(42, "kim", time.Minute)
	req.NoError(err)

	claims, err := signer.ValidateToken(token)
	req.NoError(err)
	req.Equal(int64(42), claims.UserID)
	req.Equal("kim", claims.Name)
	req.Equal("42", claims.Subject)
}

func TestSigner_Rejects_Expired_Token(t *testing.T) {
	req := require.New(t)
	signer := NewSigner("test-secret")

	token, err := signer.GenerateToken(42, "kim", -time.Minute)
	req.NoError(err)

	_, err = signer.ValidateToken(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestSigner_Rejects_Foreign_Signature(t *testing.T) {
	req := require.New(t)
	token, err := NewSigner("other-secret").GenerateToken(42, "kim", time.Minute)
	req.NoError(err)

	_, err = NewSigner("test-secret").ValidateToken(token)
	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestSigner_Refuses_Invalid_User(t *testing.T) {
	req := require.New(t)

	_, err := NewSigner("test-secret").GenerateToken(0, "", time.Minute)

	req.ErrorIs(err, errors.ErrInvalidToken)
}

func TestResolver_Resolve(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	signer := NewSigner("test-secret")
	resolver := NewResolver(log, signer)
	valid, err := signer.GenerateToken(7, "expert", time.Minute)
	require.NoError(t, err)
	expired, err := signer.GenerateToken(7, "expert", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name          string
		token         string
		authenticated bool
		userID        domain.UserID
	}{
		{"valid token", valid, true, 7},
		{"bearer prefix", "Bearer " + valid, true, 7},
		{"no token", "", false, 0},
		{"expired token", expired, false, 0},
		{"garbage", "not-a-jwt", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			identity, err := resolver.Resolve(context.Background(), tt.token)

			req.NoError(err)
			req.Equal(tt.authenticated, identity.IsAuthenticated())
			req.Equal(tt.userID, identity.UserID)
		})
	}
}

func TestResolver_Resolve_Canceled(t *testing.T) {
	req := require.New(t)
	resolver := NewResolver(logs.GetLoggerFromLevel(slog.LevelDebug), NewSigner("s"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	identity, err := resolver.Resolve(ctx, "whatever")

	req.ErrorIs(err, context.Canceled)
	req.False(identity.IsAuthenticated())
}

func TestTokenFromSubprotocols(t *testing.T) {
	req := require.New(t)

	req.Equal("", TokenFromSubprotocols(""))
	req.Equal("abc", TokenFromSubprotocols("abc"))
	req.Equal("abc", TokenFromSubprotocols("abc, chat"))
	req.Equal("abc", TokenFromSubprotocols("  abc ,chat"))
}
