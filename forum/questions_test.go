package forum

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestions_CreateView(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")

	q, err := fx.forum.Questions.Create(ctx, alice, cse.ID, "What is a monad?", "Please explain it simply.")
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, q.UserID)
	assert.Equal(t, "Alice", q.UserName)
	assert.Equal(t, cse.ID, q.PageID)
	assert.Equal(t, "CSE", q.PageName)
	assert.Equal(t, 0, q.ReplyCount)
	assert.True(t, q.CreatedAt.Equal(q.UpdatedAt))

	got, err := fx.forum.Questions.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.Title, got.Title)
	assert.Equal(t, "Alice", got.UserName)
	assert.Equal(t, "CSE", got.PageName)
}

func TestQuestions_CreateErrors(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")

	_, err := fx.forum.Questions.Create(ctx, alice, "no-such-page", "Valid title", "valid description")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.forum.Questions.Create(ctx, alice, cse.ID, "Hey", "valid description")
	assert.ErrorIs(t, err, ErrValidation)

	ghost := Identity{UserID: "ghost", Email: "ghost@example.com", Role: RoleUser}
	_, err = fx.forum.Questions.Create(ctx, ghost, cse.ID, "Valid title", "valid description")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = fx.forum.Questions.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestions_Pagination(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")

	var created []string
	for i := 0; i < 5; i++ {
		q := fx.question(t, alice, cse.ID, fmt.Sprintf("Question %d", i))
		created = append(created, q.ID)
	}

	first, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 0, 2)
	require.NoError(t, err)
	second, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 1, 2)
	require.NoError(t, err)
	third, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 2, 2)
	require.NoError(t, err)
	past, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 3, 2)
	require.NoError(t, err)

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	require.Len(t, third, 1)
	assert.Empty(t, past)

	var seen []string
	for _, batch := range [][]QuestionView{first, second, third} {
		for _, q := range batch {
			seen = append(seen, q.ID)
		}
	}
	// Newest first, no overlaps, nothing missing.
	want := []string{created[4], created[3], created[2], created[1], created[0]}
	assert.Equal(t, want, seen)
}

func TestQuestions_ListEdgeCases(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")
	fx.question(t, alice, cse.ID, "Only question")

	byName, err := fx.forum.Questions.ListByPageName(ctx, "CSE", 0, 20)
	require.NoError(t, err)
	assert.Len(t, byName, 1)

	unknown, err := fx.forum.Questions.ListByPage(ctx, "no-such-page", 0, 20)
	require.NoError(t, err)
	assert.Empty(t, unknown)

	unknownName, err := fx.forum.Questions.ListByPageName(ctx, "Nope", 0, 20)
	require.NoError(t, err)
	assert.NotNil(t, unknownName)
	assert.Empty(t, unknownName)

	huge, err := fx.forum.Questions.ListByPage(ctx, cse.ID, math.MaxInt, 20)
	require.NoError(t, err)
	assert.Empty(t, huge)

	_, err = fx.forum.Questions.ListByPage(ctx, cse.ID, -1, 20)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = fx.forum.Questions.ListByPage(ctx, cse.ID, 0, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuestions_Update(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	bob := fx.register(t, "Bob", "bob@example.com")
	root := fx.admin(t, "Root", "root@example.com")
	cse := fx.page(t, "CSE")
	q := fx.question(t, alice, cse.ID, "Original title")

	_, err := fx.forum.Questions.Update(ctx, bob, q.ID, "Hijacked title", "bob was here, sorry")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = fx.forum.Questions.Update(ctx, root, q.ID, "Admin title", "admins cannot edit either")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := fx.forum.Questions.Update(ctx, alice, q.ID, "Better title", "a better description")
	require.NoError(t, err)
	assert.Equal(t, "Better title", updated.Title)
	assert.Equal(t, "a better description", updated.Description)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.True(t, q.CreatedAt.Equal(updated.CreatedAt))

	got, err := fx.forum.Questions.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Better title", got.Title)

	_, err = fx.forum.Questions.Update(ctx, alice, "missing", "Better title", "a better description")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuestions_Delete(t *testing.T) {
	fx := newTestForum(t)
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	bob := fx.register(t, "Bob", "bob@example.com")
	root := fx.admin(t, "Root", "root@example.com")
	cse := fx.page(t, "CSE")

	q := fx.question(t, alice, cse.ID, "Question one")
	fx.reply(t, bob, q.ID, "first")
	fx.reply(t, bob, q.ID, "second")

	assert.ErrorIs(t, fx.forum.Questions.Delete(ctx, bob, q.ID), ErrForbidden)

	// A stale ADMIN claim does not help: the stored role decides.
	forged := bob
	forged.Role = RoleAdmin
	assert.ErrorIs(t, fx.forum.Questions.Delete(ctx, forged, q.ID), ErrForbidden)

	require.NoError(t, fx.forum.Questions.Delete(ctx, root, q.ID))
	_, err := fx.forum.Questions.Get(ctx, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	replies, err := fx.forum.Replies.ListByQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, replies)

	own := fx.question(t, alice, cse.ID, "Question two")
	require.NoError(t, fx.forum.Questions.Delete(ctx, alice, own.ID))
	assert.ErrorIs(t, fx.forum.Questions.Delete(ctx, alice, own.ID), ErrNotFound)

	page, err := fx.forum.Pages.Get(ctx, cse.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, page.QuestionCount)
}

func TestQuestions_ConcurrentDeletes(t *testing.T) {
	fx := newForumOn(newFileStore(t))
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	root := fx.admin(t, "Root", "root@example.com")
	cse := fx.page(t, "CSE")

	const rounds, deleters = 20, 8
	for round := 0; round < rounds; round++ {
		q := fx.question(t, alice, cse.ID, fmt.Sprintf("Contested question %d", round))
		fx.reply(t, root, q.ID, "a reply that goes with it")

		errs := make([]error, deleters)
		var wg sync.WaitGroup
		for i := 0; i < deleters; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				caller := alice
				if i%2 == 1 {
					caller = root
				}
				errs[i] = fx.forum.Questions.Delete(ctx, caller, q.ID)
			}(i)
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, ErrNotFound, "round %d", round)
		}
		assert.Equal(t, 1, won, "round %d", round)

		replies, err := fx.forum.Replies.ListByQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Empty(t, replies)
	}

	page, err := fx.forum.Pages.Get(ctx, cse.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, page.QuestionCount)
}

func TestQuestions_ConcurrentCreates(t *testing.T) {
	fx := newForumOn(newFileStore(t))
	ctx := context.Background()
	alice := fx.register(t, "Alice", "alice@example.com")
	cse := fx.page(t, "CSE")

	const writers = 16
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = fx.forum.Questions.Create(ctx, alice, cse.ID, fmt.Sprintf("Parallel question %d", i), "written at the same time")
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "writer %d", i)
	}

	listed, err := fx.forum.Questions.ListByPage(ctx, cse.ID, 0, writers*2)
	require.NoError(t, err)
	assert.Len(t, listed, writers)
}
