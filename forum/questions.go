package forum

import (
	"context"
	"errors"
	"math"
	"time"
)

// QuestionCatalog manages questions posted under pages.
type QuestionCatalog struct {
	store Store
	now   func() time.Time
}

// ListByPage returns one page of the page's questions, newest first. page is
// zero-based; past the end the result is empty. An unknown page id also
// yields an empty result.
func (c *QuestionCatalog) ListByPage(ctx context.Context, pageID string, page, size int) ([]QuestionView, error) {
	if err := validatePaging(page, size); err != nil {
		return nil, err
	}
	var views []QuestionView
	err := c.store.WithTx(ctx, func(st Store) error {
		var err error
		views, err = c.list(ctx, st, pageID, page, size)
		return err
	})
	return views, err
}

// ListByPageName is ListByPage addressed by the page's name.
func (c *QuestionCatalog) ListByPageName(ctx context.Context, pageName string, page, size int) ([]QuestionView, error) {
	if err := validatePaging(page, size); err != nil {
		return nil, err
	}
	var views []QuestionView
	err := c.store.WithTx(ctx, func(st Store) error {
		p, err := st.GetPageByName(ctx, pageName)
		if errors.Is(err, ErrNotFound) {
			views = []QuestionView{}
			return nil
		}
		if err != nil {
			return err
		}
		views, err = c.list(ctx, st, p.ID, page, size)
		return err
	})
	return views, err
}

func (c *QuestionCatalog) list(ctx context.Context, st Store, pageID string, page, size int) ([]QuestionView, error) {
	if page > math.MaxInt/size {
		return []QuestionView{}, nil
	}
	qs, err := st.ListQuestionsByPage(ctx, pageID, page*size, size)
	if err != nil {
		return nil, err
	}
	return c.views(ctx, st, qs)
}

func (c *QuestionCatalog) views(ctx context.Context, st Store, qs []Question) ([]QuestionView, error) {
	ids := make([]string, len(qs))
	for i := range qs {
		ids[i] = qs[i].ID
	}
	counts, err := st.CountReplies(ctx, ids...)
	if err != nil {
		return nil, err
	}
	views := make([]QuestionView, 0, len(qs))
	for i := range qs {
		views = append(views, newQuestionView(&qs[i], counts[qs[i].ID]))
	}
	return views, nil
}

func (c *QuestionCatalog) Get(ctx context.Context, id string) (QuestionView, error) {
	var view QuestionView
	err := c.store.WithTx(ctx, func(st Store) error {
		q, err := st.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		view, err = c.view(ctx, st, q)
		return err
	})
	return view, err
}

func (c *QuestionCatalog) view(ctx context.Context, st Store, q *Question) (QuestionView, error) {
	counts, err := st.CountReplies(ctx, q.ID)
	if err != nil {
		return QuestionView{}, err
	}
	return newQuestionView(q, counts[q.ID]), nil
}

// Create posts a question by caller under the page pageID.
func (c *QuestionCatalog) Create(ctx context.Context, caller Identity, pageID, title, description string) (QuestionView, error) {
	if err := validateQuestion(title, description); err != nil {
		return QuestionView{}, err
	}
	var q *Question
	err := c.store.WithTx(ctx, func(st Store) error {
		author, err := resolveCaller(ctx, st, caller)
		if err != nil {
			return err
		}
		page, err := st.GetPage(ctx, pageID)
		if err != nil {
			return err
		}
		now := c.now()
		q = &Question{
			ID:          newID(),
			Title:       title,
			Description: description,
			AuthorID:    author.ID,
			PageID:      page.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
			AuthorName:  author.Name,
			AuthorEmail: author.Email,
			PageName:    page.Name,
		}
		return st.CreateQuestion(ctx, q)
	})
	if err != nil {
		return QuestionView{}, err
	}
	Logger.Info().Str("question_id", q.ID).Str("page_id", q.PageID).Str("author_id", q.AuthorID).Msg("question created")
	return newQuestionView(q, 0), nil
}

// Update changes title and description. Only the author may do so.
func (c *QuestionCatalog) Update(ctx context.Context, caller Identity, id, title, description string) (QuestionView, error) {
	if err := validateQuestion(title, description); err != nil {
		return QuestionView{}, err
	}
	var view QuestionView
	err := c.store.WithTx(ctx, func(st Store) error {
		q, err := st.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		if !CanMutate(caller, q.owner()) {
			return forbidden("update", "question")
		}
		q.Title = title
		q.Description = description
		q.UpdatedAt = c.now()
		if err := st.UpdateQuestion(ctx, q); err != nil {
			return err
		}
		view, err = c.view(ctx, st, q)
		return err
	})
	if err != nil {
		return QuestionView{}, err
	}
	Logger.Info().Str("question_id", id).Msg("question updated")
	return view, nil
}

// Delete removes a question and its replies. The author and admins may do so;
// the caller's role is read from the store, not from the identity.
func (c *QuestionCatalog) Delete(ctx context.Context, caller Identity, id string) error {
	err := c.store.WithTx(ctx, func(st Store) error {
		q, err := st.GetQuestion(ctx, id)
		if err != nil {
			return err
		}
		u, err := resolveCaller(ctx, st, caller)
		if err != nil {
			return err
		}
		if !CanDelete(u.Identity(), q.owner()) {
			return forbidden("delete", "question")
		}
		return st.DeleteQuestion(ctx, id)
	})
	if err != nil {
		return err
	}
	Logger.Info().Str("question_id", id).Str("by", caller.Email).Msg("question deleted")
	return nil
}
