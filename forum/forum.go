// Package forum implements a Q&A forum: topic pages, questions posted under
// them and replies to those questions, together with the account and token
// handling that identifies callers.
//
// Every operation runs inside one Store transaction. Ownership checks go
// through CanMutate and CanDelete; errors wrap the sentinels in errors.go so
// the HTTP layer can map them to status codes.
package forum

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL   = 24 * time.Hour
	DefaultBcryptCost = bcrypt.DefaultCost
)

type Forum struct {
	Pages     *PageDirectory
	Questions *QuestionCatalog
	Replies   *ReplyThread
	Accounts  *Accounts
}

type options struct {
	now        func() time.Time
	tokenTTL   time.Duration
	bcryptCost int
}

type Option func(*options)

// WithClock overrides time.Now for timestamps and token expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.tokenTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) Option {
	return func(o *options) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			o.bcryptCost = cost
		}
	}
}

func New(store Store, opts ...Option) *Forum {
	o := options{
		now:        time.Now,
		tokenTTL:   DefaultTokenTTL,
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(&o)
	}
	// Truncating to what the store keeps makes returned timestamps equal to
	// the ones a later read returns.
	precision := time.Microsecond
	if p, ok := store.(interface{ timePrecision() time.Duration }); ok {
		precision = p.timePrecision()
	}
	clock := func() time.Time {
		return o.now().UTC().Truncate(precision)
	}
	return &Forum{
		Pages:     &PageDirectory{store: store, now: clock},
		Questions: &QuestionCatalog{store: store, now: clock},
		Replies:   &ReplyThread{store: store, now: clock},
		Accounts: &Accounts{
			store:      store,
			now:        clock,
			tokenTTL:   o.tokenTTL,
			bcryptCost: o.bcryptCost,
		},
	}
}

// resolveCaller loads the stored user behind an identity, by id when the
// identity carries one and by email otherwise.
func resolveCaller(ctx context.Context, st Store, caller Identity) (*User, error) {
	if caller.UserID != "" {
		return st.GetUserByID(ctx, caller.UserID)
	}
	return st.GetUserByEmail(ctx, caller.Email)
}
