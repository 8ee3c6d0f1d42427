// forum/db.go
package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL UNIQUE,
    hash BYTEA NOT NULL,
    role TEXT NOT NULL DEFAULT 'USER',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS tokens (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    hash BYTEA NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS pages (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    page_id UUID NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS replies (
    id UUID PRIMARY KEY,
    question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    author_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_questions_on_page_id ON questions(page_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_replies_on_question_id ON replies(question_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tokens_on_user_id ON tokens(user_id);
`

const (
	questionColumns = `q.id, q.title, q.description, q.author_id, q.page_id, q.created_at, q.updated_at,
        u.name, u.email, p.name`
	questionFrom = `FROM questions q
        JOIN users u ON u.id = q.author_id
        JOIN pages p ON p.id = q.page_id`
	replyColumns = `r.id, r.question_id, r.content, r.author_id, r.created_at, r.updated_at, u.name, u.email`
	replyFrom    = `FROM replies r
        JOIN users u ON u.id = r.author_id`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool, q: pool}, nil
}

func (d *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := d.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (d *PostgresStore) Close() error {
	d.pool.Close()
	return nil
}

func (d *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if d.inTx {
		return fn(d)
	}
	return pgx.BeginFunc(ctx, d.pool, func(tx pgx.Tx) error {
		return fn(&PostgresStore{pool: d.pool, q: tx, inTx: true})
	})
}

// mapPgError turns driver errors into the package sentinels.
func mapPgError(err error, kind, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(kind, key)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s %q: %w", kind, key, ErrConflict)
		case "23503":
			return fmt.Errorf("%s %q references a missing row: %w", kind, key, ErrNotFound)
		}
	}
	return err
}

// parseIDs drops ids that are not UUIDs; no row can carry them.
func parseIDs(ids []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if u, err := uuid.Parse(id); err == nil {
			out = append(out, u)
		}
	}
	return out
}

// --- User and Token Functions ---

func (d *PostgresStore) CreateUser(ctx context.Context, u *User) error {
	query := `INSERT INTO users (id, name, email, hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := d.q.Exec(ctx, query, u.ID, u.Name, u.Email, u.Hash, string(u.Role), u.CreatedAt)
	return mapPgError(err, "user", u.Email)
}

func (d *PostgresStore) getUser(ctx context.Context, where, key string) (*User, error) {
	var u User
	var role string
	query := `SELECT id, name, email, hash, role, created_at FROM users WHERE ` + where + ` = $1`
	err := d.q.QueryRow(ctx, query, key).Scan(&u.ID, &u.Name, &u.Email, &u.Hash, &role, &u.CreatedAt)
	if err != nil {
		return nil, mapPgError(err, "user", key)
	}
	u.Role = Role(role)
	return &u, nil
}

func (d *PostgresStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	if uuid.Validate(id) != nil {
		return nil, notFound("user", id)
	}
	return d.getUser(ctx, "id", id)
}

func (d *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return d.getUser(ctx, "email", email)
}

func (d *PostgresStore) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := d.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (d *PostgresStore) UpdateUserRole(ctx context.Context, id string, role Role) error {
	tag, err := d.q.Exec(ctx, `UPDATE users SET role = $1 WHERE id = $2`, string(role), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("user", id)
	}
	return nil
}

func (d *PostgresStore) SaveToken(ctx context.Context, t *Token) error {
	query := `INSERT INTO tokens (id, user_id, hash, created_at, expires_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := d.q.Exec(ctx, query, t.ID, t.UserID, t.Hash, t.CreatedAt, t.ExpiresAt)
	return mapPgError(err, "token", t.ID)
}

func (d *PostgresStore) GetTokenByHash(ctx context.Context, hash []byte) (*Token, error) {
	var t Token
	query := `SELECT id, user_id, hash, created_at, expires_at FROM tokens WHERE hash = $1`
	err := d.q.QueryRow(ctx, query, hash).Scan(&t.ID, &t.UserID, &t.Hash, &t.CreatedAt, &t.ExpiresAt)
	if err != nil {
		return nil, mapPgError(err, "token", "")
	}
	return &t, nil
}

func (d *PostgresStore) DeleteTokenByHash(ctx context.Context, hash []byte) error {
	tag, err := d.q.Exec(ctx, `DELETE FROM tokens WHERE hash = $1`, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("token", "")
	}
	return nil
}

// --- Page Functions ---

func (d *PostgresStore) ListPages(ctx context.Context) ([]Page, error) {
	rows, err := d.q.Query(ctx, `SELECT id, name, description, created_at FROM pages ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	pages := make([]Page, 0)
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (d *PostgresStore) getPage(ctx context.Context, where, key string) (*Page, error) {
	var p Page
	query := `SELECT id, name, description, created_at FROM pages WHERE ` + where + ` = $1`
	err := d.q.QueryRow(ctx, query, key).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt)
	if err != nil {
		return nil, mapPgError(err, "page", key)
	}
	return &p, nil
}

func (d *PostgresStore) GetPage(ctx context.Context, id string) (*Page, error) {
	if uuid.Validate(id) != nil {
		return nil, notFound("page", id)
	}
	return d.getPage(ctx, "id", id)
}

func (d *PostgresStore) GetPageByName(ctx context.Context, name string) (*Page, error) {
	return d.getPage(ctx, "name", name)
}

func (d *PostgresStore) PageExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := d.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pages WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (d *PostgresStore) CreatePage(ctx context.Context, p *Page) error {
	query := `INSERT INTO pages (id, name, description, created_at) VALUES ($1, $2, $3, $4)`
	_, err := d.q.Exec(ctx, query, p.ID, p.Name, p.Description, p.CreatedAt)
	return mapPgError(err, "page", p.Name)
}

func (d *PostgresStore) DeletePage(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return notFound("page", id)
	}
	return d.WithTx(ctx, func(st Store) error {
		tx := st.(*PostgresStore)
		_, err := tx.q.Exec(ctx, `DELETE FROM replies WHERE question_id IN (SELECT id FROM questions WHERE page_id = $1)`, id)
		if err != nil {
			return err
		}
		if _, err := tx.q.Exec(ctx, `DELETE FROM questions WHERE page_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.q.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound("page", id)
		}
		return nil
	})
}

func (d *PostgresStore) countBy(ctx context.Context, table, column string, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	parsed := parseIDs(ids)
	if len(parsed) == 0 {
		return counts, nil
	}
	query := fmt.Sprintf(`SELECT %[2]s, COUNT(*) FROM %[1]s WHERE %[2]s = ANY($1) GROUP BY %[2]s`, table, column)
	rows, err := d.q.Query(ctx, query, parsed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (d *PostgresStore) CountQuestions(ctx context.Context, pageIDs ...string) (map[string]int, error) {
	return d.countBy(ctx, "questions", "page_id", pageIDs)
}

// --- Question Functions ---

func scanQuestion(row pgx.Row, q *Question) error {
	return row.Scan(&q.ID, &q.Title, &q.Description, &q.AuthorID, &q.PageID, &q.CreatedAt, &q.UpdatedAt,
		&q.AuthorName, &q.AuthorEmail, &q.PageName)
}

func (d *PostgresStore) ListQuestionsByPage(ctx context.Context, pageID string, offset, limit int) ([]Question, error) {
	questions := make([]Question, 0)
	if uuid.Validate(pageID) != nil {
		return questions, nil
	}
	query := `SELECT ` + questionColumns + ` ` + questionFrom + `
        WHERE q.page_id = $1
        ORDER BY q.created_at DESC, q.id DESC
        LIMIT $2 OFFSET $3`
	rows, err := d.q.Query(ctx, query, pageID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var q Question
		if err := scanQuestion(rows, &q); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (d *PostgresStore) GetQuestion(ctx context.Context, id string) (*Question, error) {
	if uuid.Validate(id) != nil {
		return nil, notFound("question", id)
	}
	var q Question
	query := `SELECT ` + questionColumns + ` ` + questionFrom + ` WHERE q.id = $1`
	if err := scanQuestion(d.q.QueryRow(ctx, query, id), &q); err != nil {
		return nil, mapPgError(err, "question", id)
	}
	return &q, nil
}

func (d *PostgresStore) CreateQuestion(ctx context.Context, q *Question) error {
	query := `INSERT INTO questions (id, title, description, author_id, page_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.q.Exec(ctx, query, q.ID, q.Title, q.Description, q.AuthorID, q.PageID, q.CreatedAt, q.UpdatedAt)
	return mapPgError(err, "question", q.ID)
}

func (d *PostgresStore) UpdateQuestion(ctx context.Context, q *Question) error {
	query := `UPDATE questions SET title = $1, description = $2, updated_at = $3 WHERE id = $4`
	tag, err := d.q.Exec(ctx, query, q.Title, q.Description, q.UpdatedAt, q.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("question", q.ID)
	}
	return nil
}

func (d *PostgresStore) DeleteQuestion(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return notFound("question", id)
	}
	return d.WithTx(ctx, func(st Store) error {
		tx := st.(*PostgresStore)
		if _, err := tx.q.Exec(ctx, `DELETE FROM replies WHERE question_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.q.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return notFound("question", id)
		}
		return nil
	})
}

func (d *PostgresStore) CountReplies(ctx context.Context, questionIDs ...string) (map[string]int, error) {
	return d.countBy(ctx, "replies", "question_id", questionIDs)
}

// --- Reply Functions ---

func scanReply(row pgx.Row, r *Reply) error {
	return row.Scan(&r.ID, &r.QuestionID, &r.Content, &r.AuthorID, &r.CreatedAt, &r.UpdatedAt,
		&r.AuthorName, &r.AuthorEmail)
}

func (d *PostgresStore) ListRepliesByQuestion(ctx context.Context, questionID string) ([]Reply, error) {
	replies := make([]Reply, 0)
	if uuid.Validate(questionID) != nil {
		return replies, nil
	}
	query := `SELECT ` + replyColumns + ` ` + replyFrom + `
        WHERE r.question_id = $1
        ORDER BY r.created_at ASC, r.id ASC`
	rows, err := d.q.Query(ctx, query, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r Reply
		if err := scanReply(rows, &r); err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

func (d *PostgresStore) GetReply(ctx context.Context, id string) (*Reply, error) {
	if uuid.Validate(id) != nil {
		return nil, notFound("reply", id)
	}
	var r Reply
	query := `SELECT ` + replyColumns + ` ` + replyFrom + ` WHERE r.id = $1`
	if err := scanReply(d.q.QueryRow(ctx, query, id), &r); err != nil {
		return nil, mapPgError(err, "reply", id)
	}
	return &r, nil
}

func (d *PostgresStore) CreateReply(ctx context.Context, r *Reply) error {
	query := `INSERT INTO replies (id, question_id, content, author_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := d.q.Exec(ctx, query, r.ID, r.QuestionID, r.Content, r.AuthorID, r.CreatedAt, r.UpdatedAt)
	return mapPgError(err, "reply", r.ID)
}

func (d *PostgresStore) UpdateReply(ctx context.Context, r *Reply) error {
	tag, err := d.q.Exec(ctx, `UPDATE replies SET content = $1, updated_at = $2 WHERE id = $3`, r.Content, r.UpdatedAt, r.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("reply", r.ID)
	}
	return nil
}

func (d *PostgresStore) DeleteReply(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return notFound("reply", id)
	}
	tag, err := d.q.Exec(ctx, `DELETE FROM replies WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound("reply", id)
	}
	return nil
}
