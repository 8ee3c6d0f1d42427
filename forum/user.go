package forum

import (
	"crypto/sha256"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Token is an issued bearer token. Only the SHA-256 hash of the value is
// persisted; Value is set on the freshly issued token and nowhere else.
type Token struct {
	ID        string
	UserID    string
	Hash      []byte
	CreatedAt time.Time
	ExpiresAt time.Time

	Value string
}

func (t *Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

func newToken(userID string, now time.Time, ttl time.Duration) *Token {
	value := uuid.NewString()
	return &Token{
		ID:        newID(),
		UserID:    userID,
		Hash:      hashToken(value),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Value:     value,
	}
}

func hashToken(value string) []byte {
	hash := sha256.Sum256([]byte(value))
	return hash[:]
}

func NewUser(name, email string, role Role, now time.Time) *User {
	return &User{
		ID:        newID(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Role:      role,
		CreatedAt: now,
	}
}

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Hash      []byte    `json:"-"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (u *User) SetPassword(password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.Hash = hash
	return nil
}

func (u *User) PasswordMatches(input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(u.Hash, []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

func (u *User) Identity() Identity {
	return Identity{UserID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// newID returns a time-ordered UUIDv7, so ids sort in creation order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}
