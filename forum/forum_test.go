package forum

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	SetLogger(zerolog.Nop())
}

// stepClock advances by one millisecond on every reading so that records
// created one after another never share a timestamp.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestStore opens a private in-memory SQLite database for t.
func newTestStore(t *testing.T) *BunStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"
	st, err := NewBunStore("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

type fixture struct {
	forum *Forum
	store *BunStore
	clock *stepClock
}

// newFileStore opens a SQLite database file with a full connection pool, for
// tests that need real concurrent connections.
func newFileStore(t *testing.T) *BunStore {
	t.Helper()
	st, err := NewBunStore("sqlite", "file:"+filepath.Join(t.TempDir(), "forum.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestForum(t *testing.T) *fixture {
	t.Helper()
	return newForumOn(newTestStore(t))
}

func newForumOn(st *BunStore) *fixture {
	clock := newStepClock()
	f := New(st, WithClock(clock.Now), WithBcryptCost(bcrypt.MinCost), WithTokenTTL(time.Hour))
	return &fixture{forum: f, store: st, clock: clock}
}

func (fx *fixture) register(t *testing.T, name, email string) Identity {
	t.Helper()
	res, err := fx.forum.Accounts.Register(context.Background(), name, email, "secret123")
	require.NoError(t, err)
	return res.Identity
}

func (fx *fixture) admin(t *testing.T, name, email string) Identity {
	t.Helper()
	id := fx.register(t, name, email)
	require.NoError(t, fx.forum.Accounts.SetRole(context.Background(), email, RoleAdmin))
	id.Role = RoleAdmin
	return id
}

func (fx *fixture) page(t *testing.T, name string) PageView {
	t.Helper()
	p, err := fx.forum.Pages.Create(context.Background(), name, name+" topics")
	require.NoError(t, err)
	return p
}

func (fx *fixture) question(t *testing.T, caller Identity, pageID, title string) QuestionView {
	t.Helper()
	q, err := fx.forum.Questions.Create(context.Background(), caller, pageID, title, "a description long enough")
	require.NoError(t, err)
	return q
}

func (fx *fixture) reply(t *testing.T, caller Identity, questionID, content string) ReplyView {
	t.Helper()
	r, err := fx.forum.Replies.Create(context.Background(), caller, questionID, content)
	require.NoError(t, err)
	return r
}
