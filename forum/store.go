package forum

import (
	"context"
)

// Store is the persistence layer behind the forum. Lookups of absent rows
// return an error wrapping ErrNotFound; unique violations wrap ErrConflict.
// Implementations: PostgresStore (pgx) and BunStore (SQLite, MySQL).
type Store interface {
	// WithTx runs fn against a Store bound to one transaction. The transaction
	// commits when fn returns nil and rolls back otherwise. Nested calls reuse
	// the outer transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	Migrate(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, u *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	UserExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdateUserRole(ctx context.Context, id string, role Role) error

	SaveToken(ctx context.Context, t *Token) error
	GetTokenByHash(ctx context.Context, hash []byte) (*Token, error)
	DeleteTokenByHash(ctx context.Context, hash []byte) error

	ListPages(ctx context.Context) ([]Page, error)
	GetPage(ctx context.Context, id string) (*Page, error)
	GetPageByName(ctx context.Context, name string) (*Page, error)
	PageExistsByName(ctx context.Context, name string) (bool, error)
	CreatePage(ctx context.Context, p *Page) error
	// DeletePage removes the page with its questions and their replies.
	DeletePage(ctx context.Context, id string) error
	// CountQuestions returns the live question count of each given page.
	CountQuestions(ctx context.Context, pageIDs ...string) (map[string]int, error)

	// ListQuestionsByPage returns the page's questions newest first.
	ListQuestionsByPage(ctx context.Context, pageID string, offset, limit int) ([]Question, error)
	GetQuestion(ctx context.Context, id string) (*Question, error)
	CreateQuestion(ctx context.Context, q *Question) error
	UpdateQuestion(ctx context.Context, q *Question) error
	// DeleteQuestion removes the question with its replies.
	DeleteQuestion(ctx context.Context, id string) error
	// CountReplies returns the live reply count of each given question.
	CountReplies(ctx context.Context, questionIDs ...string) (map[string]int, error)

	// ListRepliesByQuestion returns the question's replies oldest first.
	ListRepliesByQuestion(ctx context.Context, questionID string) ([]Reply, error)
	GetReply(ctx context.Context, id string) (*Reply, error)
	CreateReply(ctx context.Context, r *Reply) error
	UpdateReply(ctx context.Context, r *Reply) error
	DeleteReply(ctx context.Context, id string) error
}
