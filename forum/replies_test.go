package forum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplies_ThreadOrderAndCount(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	bob := fx.register(t, "Bob", "bob@example.com")
	cse := fx.page(t, "CSE")
	q := fx.question(t, alice, cse.ID, "Threaded question")

	r1 := fx.reply(t, bob, q.ID, "first")
	r2 := fx.reply(t, alice, q.ID, "second")
	r3 := fx.reply(t, bob, q.ID, "third")

	assert.Equal(t, "Bob", r1.UserName)
	assert.Equal(t, q.ID, r1.QuestionID)

	thread, err := fx.forum.Replies.ListByQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.Len(t, thread, 3)
	assert.Equal(t, []string{r1.ID, r2.ID, r3.ID}, []string{thread[0].ID, thread[1].ID, thread[2].ID})
	assert.Equal(t, "Alice", thread[1].UserName)

	got, err := fx.forum.Questions.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ReplyCount)

	listed, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 0, 20)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 3, listed[0].ReplyCount)
}

func TestReplies_Errors(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")
	q := fx.question(t, alice, cse.ID, "Some question")

	_, err := fx.forum.Replies.Create(ctx, alice, "missing", "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.forum.Replies.Create(ctx, alice, q.ID, "   ")
	assert.ErrorIs(t, err, ErrValidation)

	empty, err := fx.forum.Replies.ListByQuestion(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = fx.forum.Replies.Update(ctx, alice, "missing", "hello")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fx.forum.Replies.Delete(ctx, alice, "missing"), ErrNotFound)
}

func TestReplies_UpdateAndDelete(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	bob := fx.register(t, "Bob", "bob@example.com")
	root := fx.admin(t, "Root", "root@example.com")
	cse := fx.page(t, "CSE")
	q := fx.question(t, alice, cse.ID, "Some question")
	r := fx.reply(t, bob, q.ID, "original")

	_, err := fx.forum.Replies.Update(ctx, alice, r.ID, "edited by alice")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = fx.forum.Replies.Update(ctx, root, r.ID, "edited by root")
	assert.ErrorIs(t, err, ErrForbidden)

	edited, err := fx.forum.Replies.Update(ctx, bob, r.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Content)
	assert.True(t, edited.UpdatedAt.After(edited.CreatedAt))

	// The question's author has no say over replies.
	assert.ErrorIs(t, fx.forum.Replies.Delete(ctx, alice, r.ID), ErrForbidden)

	require.NoError(t, fx.forum.Replies.Delete(ctx, root, r.ID))
	thread, err := fx.forum.Replies.ListByQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, thread)

	mine := fx.reply(t, bob, q.ID, "another")
	require.NoError(t, fx.forum.Replies.Delete(ctx, bob, mine.ID))

	got, err := fx.forum.Questions.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ReplyCount)
}
