package forum

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccounts_RegisterAndLogin(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()

	res, err := fx.forum.Accounts.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "Bearer", res.Type)
	assert.Equal(t, RoleUser, res.Role)
	assert.Equal(t, "alice@example.com", res.Email)

	login, err := fx.forum.Accounts.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, res.UserID, login.UserID)
	assert.NotEqual(t, res.Token, login.Token)

	id, err := fx.forum.Accounts.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, res.Identity, id)
}

func TestAccounts_Failures(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	fx.register(t, "Alice", "alice@example.com")

	_, err := fx.forum.Accounts.Register(ctx, "Other Alice", "alice@example.com", "another1")
	assert.ErrorIs(t, err, ErrConflict)

	// A display-name form of a taken mailbox cannot become a second account.
	_, err = fx.forum.Accounts.Register(ctx, "Alias", "Alice <alice@example.com>", "another1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = fx.forum.Accounts.Login(ctx, "Alice <alice@example.com>", "another1")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = fx.forum.Accounts.Register(ctx, "Short", "short@example.com", "123")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = fx.forum.Accounts.Login(ctx, "alice@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = fx.forum.Accounts.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = fx.forum.Accounts.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = fx.forum.Accounts.Authenticate(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAccounts_TokenLifecycle(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()

	res, err := fx.forum.Accounts.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, fx.forum.Accounts.Logout(ctx, res.Token))
	_, err = fx.forum.Accounts.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NoError(t, fx.forum.Accounts.Logout(ctx, res.Token))

	login, err := fx.forum.Accounts.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	fx.clock.Advance(2 * time.Hour)
	_, err = fx.forum.Accounts.Authenticate(ctx, login.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAccounts_SetRole(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()

	res, err := fx.forum.Accounts.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, fx.forum.Accounts.SetRole(ctx, "alice@example.com", RoleAdmin))
	id, err := fx.forum.Accounts.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	assert.ErrorIs(t, fx.forum.Accounts.SetRole(ctx, "alice@example.com", "ROOT"), ErrValidation)
	assert.ErrorIs(t, fx.forum.Accounts.SetRole(ctx, "nobody@example.com", RoleAdmin), ErrNotFound)
}

func TestToken_StoredHashed(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := newToken("u1", now, time.Minute)
	assert.Equal(t, hashToken(tok.Value), tok.Hash)
	assert.NotContains(t, string(tok.Hash), tok.Value)
	assert.False(t, tok.Expired(now.Add(59*time.Second)))
	assert.True(t, tok.Expired(now.Add(time.Minute)))
}
