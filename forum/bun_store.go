package forum

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
)

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	Name          string    `bun:"name,notnull,type:varchar(255)"`
	Email         string    `bun:"email,unique,notnull,type:varchar(255)"`
	Hash          []byte    `bun:"hash,notnull,type:blob"`
	Role          string    `bun:"role,notnull,type:varchar(16)"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// tokenModel stores the hash hex encoded; MySQL cannot index a BLOB without
// a prefix length.
type tokenModel struct {
	bun.BaseModel `bun:"table:tokens,alias:t"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	UserID        string    `bun:"user_id,notnull,type:varchar(36)"`
	Hash          string    `bun:"hash,unique,notnull,type:varchar(64)"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	ExpiresAt     time.Time `bun:"expires_at,notnull"`
}

type pageModel struct {
	bun.BaseModel `bun:"table:pages,alias:p"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	Name          string    `bun:"name,unique,notnull,type:varchar(255)"`
	Description   string    `bun:"description,notnull,type:text"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	Title         string    `bun:"title,notnull,type:varchar(255)"`
	Description   string    `bun:"description,notnull,type:text"`
	AuthorID      string    `bun:"author_id,notnull,type:varchar(36)"`
	PageID        string    `bun:"page_id,notnull,type:varchar(36)"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type replyModel struct {
	bun.BaseModel `bun:"table:replies,alias:r"`
	ID            string    `bun:"id,pk,type:varchar(36)"`
	QuestionID    string    `bun:"question_id,notnull,type:varchar(36)"`
	Content       string    `bun:"content,notnull,type:text"`
	AuthorID      string    `bun:"author_id,notnull,type:varchar(36)"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

type questionRow struct {
	questionModel `bun:",extend"`
	AuthorName    string `bun:"author_name"`
	AuthorEmail   string `bun:"author_email"`
	PageName      string `bun:"page_name"`
}

type replyRow struct {
	replyModel  `bun:",extend"`
	AuthorName  string `bun:"author_name"`
	AuthorEmail string `bun:"author_email"`
}

// --- Mapping helpers ---

func userToModel(u *User) *userModel {
	return &userModel{ID: u.ID, Name: u.Name, Email: u.Email, Hash: u.Hash, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

func userModelToUser(m *userModel) *User {
	return &User{ID: m.ID, Name: m.Name, Email: m.Email, Hash: m.Hash, Role: Role(m.Role), CreatedAt: m.CreatedAt}
}

func pageModelToPage(m *pageModel) Page {
	return Page{ID: m.ID, Name: m.Name, Description: m.Description, CreatedAt: m.CreatedAt}
}

func questionRowToQuestion(r *questionRow) Question {
	return Question{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		AuthorID:    r.AuthorID,
		PageID:      r.PageID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		AuthorName:  r.AuthorName,
		AuthorEmail: r.AuthorEmail,
		PageName:    r.PageName,
	}
}

func replyRowToReply(r *replyRow) Reply {
	return Reply{
		ID:          r.ID,
		QuestionID:  r.QuestionID,
		Content:     r.Content,
		AuthorID:    r.AuthorID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		AuthorName:  r.AuthorName,
		AuthorEmail: r.AuthorEmail,
	}
}

// BunStore is the Store for SQLite and MySQL, built on bun.
type BunStore struct {
	root   *bun.DB
	db     bun.IDB
	inTx   bool
	dbType string
}

func newBunStore(db *bun.DB, dbType string) *BunStore {
	return &BunStore{root: db, db: db, dbType: dbType}
}

// timePrecision is the resolution of stored timestamps. mysqldialect
// creates plain DATETIME columns, which keep whole seconds.
func (s *BunStore) timePrecision() time.Duration {
	if s.dbType == "mysql" {
		return time.Second
	}
	return time.Microsecond
}

func (s *BunStore) Close() error {
	return s.root.Close()
}

func (s *BunStore) WithTx(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.root.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(&BunStore{root: s.root, db: tx, inTx: true, dbType: s.dbType})
	})
}

func (s *BunStore) Migrate(ctx context.Context) error {
	tables := []struct {
		model any
		fks   []string
	}{
		{(*userModel)(nil), nil},
		{(*tokenModel)(nil), []string{`(user_id) REFERENCES users (id) ON DELETE CASCADE`}},
		{(*pageModel)(nil), nil},
		{(*questionModel)(nil), []string{
			`(author_id) REFERENCES users (id) ON DELETE CASCADE`,
			`(page_id) REFERENCES pages (id) ON DELETE CASCADE`,
		}},
		{(*replyModel)(nil), []string{
			`(question_id) REFERENCES questions (id) ON DELETE CASCADE`,
			`(author_id) REFERENCES users (id) ON DELETE CASCADE`,
		}},
	}
	for _, t := range tables {
		q := s.db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	indexes := []struct {
		model   any
		name    string
		columns []string
	}{
		{(*questionModel)(nil), "idx_questions_on_page_id", []string{"page_id", "created_at"}},
		{(*replyModel)(nil), "idx_replies_on_question_id", []string{"question_id", "created_at"}},
		{(*tokenModel)(nil), "idx_tokens_on_user_id", []string{"user_id"}},
	}
	for _, ix := range indexes {
		q := s.db.NewCreateIndex().Model(ix.model).Index(ix.name).Column(ix.columns...)
		// MySQL has no CREATE INDEX IF NOT EXISTS.
		if s.dbType != "mysql" {
			q = q.IfNotExists()
		}
		if _, err := q.Exec(ctx); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("migration failed: create index %s: %w", ix.name, err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}

// mapBunError turns driver errors into the package sentinels. SQLite errors
// are matched on their message.
func mapBunError(err error, kind, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind, key)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return fmt.Errorf("%s %q: %w", kind, key, ErrConflict)
		case 1452:
			return fmt.Errorf("%s %q references a missing row: %w", kind, key, ErrNotFound)
		}
		return err
	}
	le := strings.ToLower(err.Error())
	switch {
	case strings.Contains(le, "unique constraint"):
		return fmt.Errorf("%s %q: %w", kind, key, ErrConflict)
	case strings.Contains(le, "foreign key constraint"):
		return fmt.Errorf("%s %q references a missing row: %w", kind, key, ErrNotFound)
	}
	return err
}

func affected(res sql.Result, kind, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(kind, key)
	}
	return nil
}

// --- Users and tokens ---

func (s *BunStore) CreateUser(ctx context.Context, u *User) error {
	_, err := s.db.NewInsert().Model(userToModel(u)).Exec(ctx)
	return mapBunError(err, "user", u.Email)
}

func (s *BunStore) getUser(ctx context.Context, column, key string) (*User, error) {
	var m userModel
	err := s.db.NewSelect().Model(&m).Where("? = ?", bun.Ident(column), key).Limit(1).Scan(ctx)
	if err != nil {
		return nil, mapBunError(err, "user", key)
	}
	return userModelToUser(&m), nil
}

func (s *BunStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *BunStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *BunStore) UserExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.db.NewSelect().Model((*userModel)(nil)).Where("email = ?", email).Exists(ctx)
}

func (s *BunStore) UpdateUserRole(ctx context.Context, id string, role Role) error {
	res, err := s.db.NewUpdate().Model((*userModel)(nil)).Set("role = ?", string(role)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	// MySQL reports zero affected rows when the role is unchanged.
	if n, _ := res.RowsAffected(); n == 0 {
		exists, err := s.db.NewSelect().Model((*userModel)(nil)).Where("id = ?", id).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return notFound("user", id)
		}
	}
	return nil
}

func (s *BunStore) SaveToken(ctx context.Context, t *Token) error {
	m := &tokenModel{
		ID:        t.ID,
		UserID:    t.UserID,
		Hash:      hex.EncodeToString(t.Hash),
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return mapBunError(err, "token", t.ID)
}

func (s *BunStore) GetTokenByHash(ctx context.Context, hash []byte) (*Token, error) {
	var m tokenModel
	err := s.db.NewSelect().Model(&m).Where("hash = ?", hex.EncodeToString(hash)).Limit(1).Scan(ctx)
	if err != nil {
		return nil, mapBunError(err, "token", "")
	}
	raw, err := hex.DecodeString(m.Hash)
	if err != nil {
		return nil, fmt.Errorf("token %s: corrupt hash: %w", m.ID, err)
	}
	return &Token{ID: m.ID, UserID: m.UserID, Hash: raw, CreatedAt: m.CreatedAt, ExpiresAt: m.ExpiresAt}, nil
}

func (s *BunStore) DeleteTokenByHash(ctx context.Context, hash []byte) error {
	res, err := s.db.NewDelete().Model((*tokenModel)(nil)).Where("hash = ?", hex.EncodeToString(hash)).Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res, "token", "")
}

// --- Pages ---

func (s *BunStore) ListPages(ctx context.Context) ([]Page, error) {
	var ms []pageModel
	if err := s.db.NewSelect().Model(&ms).OrderExpr("p.created_at ASC, p.id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(ms))
	for i := range ms {
		pages = append(pages, pageModelToPage(&ms[i]))
	}
	return pages, nil
}

func (s *BunStore) getPage(ctx context.Context, column, key string) (*Page, error) {
	var m pageModel
	err := s.db.NewSelect().Model(&m).Where("? = ?", bun.Ident(column), key).Limit(1).Scan(ctx)
	if err != nil {
		return nil, mapBunError(err, "page", key)
	}
	p := pageModelToPage(&m)
	return &p, nil
}

func (s *BunStore) GetPage(ctx context.Context, id string) (*Page, error) {
	return s.getPage(ctx, "id", id)
}

func (s *BunStore) GetPageByName(ctx context.Context, name string) (*Page, error) {
	return s.getPage(ctx, "name", name)
}

func (s *BunStore) PageExistsByName(ctx context.Context, name string) (bool, error) {
	return s.db.NewSelect().Model((*pageModel)(nil)).Where("name = ?", name).Exists(ctx)
}

func (s *BunStore) CreatePage(ctx context.Context, p *Page) error {
	m := &pageModel{ID: p.ID, Name: p.Name, Description: p.Description, CreatedAt: p.CreatedAt}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return mapBunError(err, "page", p.Name)
}

func (s *BunStore) DeletePage(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(st Store) error {
		tx := st.(*BunStore)
		questions := tx.db.NewSelect().Model((*questionModel)(nil)).Column("id").Where("page_id = ?", id)
		if _, err := tx.db.NewDelete().Model((*replyModel)(nil)).Where("question_id IN (?)", questions).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.db.NewDelete().Model((*questionModel)(nil)).Where("page_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.db.NewDelete().Model((*pageModel)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		return affected(res, "page", id)
	})
}

type groupCount struct {
	ID string `bun:"id"`
	N  int    `bun:"n"`
}

func (s *BunStore) countBy(ctx context.Context, model any, column string, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	var rows []groupCount
	err := s.db.NewSelect().Model(model).
		ColumnExpr("? AS id", bun.Ident(column)).
		ColumnExpr("COUNT(*) AS n").
		Where("? IN (?)", bun.Ident(column), bun.In(ids)).
		GroupExpr("?", bun.Ident(column)).
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.ID] = r.N
	}
	return counts, nil
}

func (s *BunStore) CountQuestions(ctx context.Context, pageIDs ...string) (map[string]int, error) {
	return s.countBy(ctx, (*questionModel)(nil), "page_id", pageIDs)
}

// --- Questions ---

func (s *BunStore) selectQuestions(model any) *bun.SelectQuery {
	return s.db.NewSelect().Model(model).
		ColumnExpr("q.*").
		ColumnExpr("u.name AS author_name").
		ColumnExpr("u.email AS author_email").
		ColumnExpr("p.name AS page_name").
		Join("JOIN users AS u ON u.id = q.author_id").
		Join("JOIN pages AS p ON p.id = q.page_id")
}

func (s *BunStore) ListQuestionsByPage(ctx context.Context, pageID string, offset, limit int) ([]Question, error) {
	var rows []questionRow
	err := s.selectQuestions(&rows).
		Where("q.page_id = ?", pageID).
		OrderExpr("q.created_at DESC, q.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	questions := make([]Question, 0, len(rows))
	for i := range rows {
		questions = append(questions, questionRowToQuestion(&rows[i]))
	}
	return questions, nil
}

func (s *BunStore) GetQuestion(ctx context.Context, id string) (*Question, error) {
	var row questionRow
	if err := s.selectQuestions(&row).Where("q.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapBunError(err, "question", id)
	}
	q := questionRowToQuestion(&row)
	return &q, nil
}

func (s *BunStore) CreateQuestion(ctx context.Context, q *Question) error {
	m := &questionModel{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		AuthorID:    q.AuthorID,
		PageID:      q.PageID,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return mapBunError(err, "question", q.ID)
}

func (s *BunStore) UpdateQuestion(ctx context.Context, q *Question) error {
	_, err := s.db.NewUpdate().Model((*questionModel)(nil)).
		Set("title = ?", q.Title).
		Set("description = ?", q.Description).
		Set("updated_at = ?", q.UpdatedAt).
		Where("id = ?", q.ID).
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteQuestion(ctx context.Context, id string) error {
	return s.WithTx(ctx, func(st Store) error {
		tx := st.(*BunStore)
		if _, err := tx.db.NewDelete().Model((*replyModel)(nil)).Where("question_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.db.NewDelete().Model((*questionModel)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		return affected(res, "question", id)
	})
}

func (s *BunStore) CountReplies(ctx context.Context, questionIDs ...string) (map[string]int, error) {
	return s.countBy(ctx, (*replyModel)(nil), "question_id", questionIDs)
}

// --- Replies ---

func (s *BunStore) selectReplies(model any) *bun.SelectQuery {
	return s.db.NewSelect().Model(model).
		ColumnExpr("r.*").
		ColumnExpr("u.name AS author_name").
		ColumnExpr("u.email AS author_email").
		Join("JOIN users AS u ON u.id = r.author_id")
}

func (s *BunStore) ListRepliesByQuestion(ctx context.Context, questionID string) ([]Reply, error) {
	var rows []replyRow
	err := s.selectReplies(&rows).
		Where("r.question_id = ?", questionID).
		OrderExpr("r.created_at ASC, r.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	replies := make([]Reply, 0, len(rows))
	for i := range rows {
		replies = append(replies, replyRowToReply(&rows[i]))
	}
	return replies, nil
}

func (s *BunStore) GetReply(ctx context.Context, id string) (*Reply, error) {
	var row replyRow
	if err := s.selectReplies(&row).Where("r.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, mapBunError(err, "reply", id)
	}
	r := replyRowToReply(&row)
	return &r, nil
}

func (s *BunStore) CreateReply(ctx context.Context, r *Reply) error {
	m := &replyModel{
		ID:         r.ID,
		QuestionID: r.QuestionID,
		Content:    r.Content,
		AuthorID:   r.AuthorID,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return mapBunError(err, "reply", r.ID)
}

func (s *BunStore) UpdateReply(ctx context.Context, r *Reply) error {
	_, err := s.db.NewUpdate().Model((*replyModel)(nil)).
		Set("content = ?", r.Content).
		Set("updated_at = ?", r.UpdatedAt).
		Where("id = ?", r.ID).
		Exec(ctx)
	return err
}

func (s *BunStore) DeleteReply(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*replyModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return affected(res, "reply", id)
}
