// forum/models.go
package forum

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated caller as resolved by Accounts.Authenticate.
type Identity struct {
	UserID string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Page is a topic category. Name is unique across all pages.
type Page struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Question belongs to one page and one author. AuthorName, AuthorEmail and
// PageName are filled in by store reads and ignored on writes.
type Question struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	AuthorID    string    `json:"author_id" db:"author_id"`
	PageID      string    `json:"page_id" db:"page_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	AuthorName  string `json:"-" db:"author_name"`
	AuthorEmail string `json:"-" db:"author_email"`
	PageName    string `json:"-" db:"page_name"`
}

func (q *Question) owner() Owner {
	return Owner{ID: q.AuthorID, Email: q.AuthorEmail}
}

// Reply belongs to one question and one author.
type Reply struct {
	ID         string    `json:"id" db:"id"`
	QuestionID string    `json:"question_id" db:"question_id"`
	Content    string    `json:"content" db:"content"`
	AuthorID   string    `json:"author_id" db:"author_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	AuthorName  string `json:"-" db:"author_name"`
	AuthorEmail string `json:"-" db:"author_email"`
}

func (r *Reply) owner() Owner {
	return Owner{ID: r.AuthorID, Email: r.AuthorEmail}
}

type PageView struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type QuestionView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name"`
	PageID      string    `json:"page_id"`
	PageName    string    `json:"page_name"`
	ReplyCount  int       `json:"reply_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ReplyView struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	QuestionID string    `json:"question_id"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newPageView(p *Page, questions int) PageView {
	return PageView{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		QuestionCount: questions,
		CreatedAt:     p.CreatedAt,
	}
}

func newQuestionView(q *Question, replies int) QuestionView {
	return QuestionView{
		ID:          q.ID,
		Title:       q.Title,
		Description: q.Description,
		UserID:      q.AuthorID,
		UserName:    q.AuthorName,
		PageID:      q.PageID,
		PageName:    q.PageName,
		ReplyCount:  replies,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func newReplyView(r *Reply) ReplyView {
	return ReplyView{
		ID:         r.ID,
		Content:    r.Content,
		QuestionID: r.QuestionID,
		UserID:     r.AuthorID,
		UserName:   r.AuthorName,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
