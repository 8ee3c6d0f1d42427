package forum

import (
	"context"
	"time"
)

// ReplyThread manages replies to questions.
type ReplyThread struct {
	store Store
	now   func() time.Time
}

// ListByQuestion returns every reply to the question, oldest first.
func (t *ReplyThread) ListByQuestion(ctx context.Context, questionID string) ([]ReplyView, error) {
	var views []ReplyView
	err := t.store.WithTx(ctx, func(st Store) error {
		rs, err := st.ListRepliesByQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		views = make([]ReplyView, 0, len(rs))
		for i := range rs {
			views = append(views, newReplyView(&rs[i]))
		}
		return nil
	})
	return views, err
}

func (t *ReplyThread) Create(ctx context.Context, caller Identity, questionID, content string) (ReplyView, error) {
	if err := validateReply(content); err != nil {
		return ReplyView{}, err
	}
	var r *Reply
	err := t.store.WithTx(ctx, func(st Store) error {
		author, err := resolveCaller(ctx, st, caller)
		if err != nil {
			return err
		}
		q, err := st.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		now := t.now()
		r = &Reply{
			ID:          newID(),
			QuestionID:  q.ID,
			Content:     content,
			AuthorID:    author.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
			AuthorName:  author.Name,
			AuthorEmail: author.Email,
		}
		return st.CreateReply(ctx, r)
	})
	if err != nil {
		return ReplyView{}, err
	}
	Logger.Info().Str("reply_id", r.ID).Str("question_id", r.QuestionID).Msg("reply created")
	return newReplyView(r), nil
}

// Update replaces the content. Only the author may do so.
func (t *ReplyThread) Update(ctx context.Context, caller Identity, id, content string) (ReplyView, error) {
	if err := validateReply(content); err != nil {
		return ReplyView{}, err
	}
	var r *Reply
	err := t.store.WithTx(ctx, func(st Store) error {
		var err error
		r, err = st.GetReply(ctx, id)
		if err != nil {
			return err
		}
		if !CanMutate(caller, r.owner()) {
			return forbidden("update", "reply")
		}
		r.Content = content
		r.UpdatedAt = t.now()
		return st.UpdateReply(ctx, r)
	})
	if err != nil {
		return ReplyView{}, err
	}
	Logger.Info().Str("reply_id", id).Msg("reply updated")
	return newReplyView(r), nil
}

// Delete removes a reply. The author and admins may do so.
func (t *ReplyThread) Delete(ctx context.Context, caller Identity, id string) error {
	err := t.store.WithTx(ctx, func(st Store) error {
		r, err := st.GetReply(ctx, id)
		if err != nil {
			return err
		}
		u, err := resolveCaller(ctx, st, caller)
		if err != nil {
			return err
		}
		if !CanDelete(u.Identity(), r.owner()) {
			return forbidden("delete", "reply")
		}
		return st.DeleteReply(ctx, id)
	})
	if err != nil {
		return err
	}
	Logger.Info().Str("reply_id", id).Str("by", caller.Email).Msg("reply deleted")
	return nil
}
