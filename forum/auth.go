package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Accounts registers users, checks credentials and issues the bearer tokens
// that identify callers on later requests.
type Accounts struct {
	store      Store
	now        func() time.Time
	tokenTTL   time.Duration
	bcryptCost int
}

type AuthResult struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	Identity
}

// Register creates a USER account and signs it in. A taken email fails with
// ErrConflict.
func (a *Accounts) Register(ctx context.Context, name, email, password string) (AuthResult, error) {
	if err := validateRegistration(name, email, password); err != nil {
		return AuthResult{}, err
	}
	u := NewUser(name, email, RoleUser, a.now())
	if err := u.SetPassword(password, a.bcryptCost); err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	var tok *Token
	err := a.store.WithTx(ctx, func(st Store) error {
		exists, err := st.UserExistsByEmail(ctx, u.Email)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("email %q: %w", u.Email, ErrConflict)
		}
		if err := st.CreateUser(ctx, u); err != nil {
			return err
		}
		tok, err = a.issue(ctx, st, u)
		return err
	})
	if err != nil {
		return AuthResult{}, err
	}
	Logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("user registered")
	return newAuthResult(tok, u), nil
}

// Login checks the credential pair. An unknown email and a wrong password
// both fail with ErrUnauthorized.
func (a *Accounts) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var (
		u   *User
		tok *Token
	)
	err := a.store.WithTx(ctx, func(st Store) error {
		var err error
		u, err = st.GetUserByEmail(ctx, strings.TrimSpace(email))
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("bad credentials: %w", ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		ok, err := u.PasswordMatches(password)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bad credentials: %w", ErrUnauthorized)
		}
		tok, err = a.issue(ctx, st, u)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			Logger.Warn().Str("email", email).Msg("failed login")
		}
		return AuthResult{}, err
	}
	return newAuthResult(tok, u), nil
}

func (a *Accounts) issue(ctx context.Context, st Store, u *User) (*Token, error) {
	tok := newToken(u.ID, a.now(), a.tokenTTL)
	if err := st.SaveToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return tok, nil
}

func newAuthResult(tok *Token, u *User) AuthResult {
	return AuthResult{
		Token:     tok.Value,
		Type:      "Bearer",
		ExpiresAt: tok.ExpiresAt,
		Identity:  u.Identity(),
	}
}

// Authenticate resolves a bearer token to the caller's identity. The role is
// read from the stored user, so role changes apply to live tokens.
func (a *Accounts) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("missing token: %w", ErrUnauthorized)
	}
	var id Identity
	err := a.store.WithTx(ctx, func(st Store) error {
		tok, err := st.GetTokenByHash(ctx, hashToken(token))
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("unknown token: %w", ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		if tok.Expired(a.now()) {
			return fmt.Errorf("token expired: %w", ErrUnauthorized)
		}
		u, err := st.GetUserByID(ctx, tok.UserID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("token owner gone: %w", ErrUnauthorized)
		}
		if err != nil {
			return err
		}
		id = u.Identity()
		return nil
	})
	return id, err
}

// Logout revokes a token. Revoking an unknown token is not an error.
func (a *Accounts) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := a.store.DeleteTokenByHash(ctx, hashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// SetRole changes the role of the user with the given email.
func (a *Accounts) SetRole(ctx context.Context, email string, role Role) error {
	if !role.Valid() {
		var v ValidationError
		v.add("role", "role must be %s or %s", RoleUser, RoleAdmin)
		return &v
	}
	err := a.store.WithTx(ctx, func(st Store) error {
		u, err := st.GetUserByEmail(ctx, email)
		if err != nil {
			return err
		}
		return st.UpdateUserRole(ctx, u.ID, role)
	})
	if err != nil {
		return err
	}
	Logger.Info().Str("email", email).Str("role", string(role)).Msg("role changed")
	return nil
}
