package forum

import (
	"context"
	"fmt"
	"time"
)

// PageDirectory manages the topic pages. Creating and deleting pages is an
// admin action; the HTTP layer checks the role before calling in.
type PageDirectory struct {
	store Store
	now   func() time.Time
}

func (d *PageDirectory) List(ctx context.Context) ([]PageView, error) {
	var views []PageView
	err := d.store.WithTx(ctx, func(st Store) error {
		pages, err := st.ListPages(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, len(pages))
		for i := range pages {
			ids[i] = pages[i].ID
		}
		counts, err := st.CountQuestions(ctx, ids...)
		if err != nil {
			return err
		}
		views = make([]PageView, 0, len(pages))
		for i := range pages {
			views = append(views, newPageView(&pages[i], counts[pages[i].ID]))
		}
		return nil
	})
	return views, err
}

func (d *PageDirectory) Get(ctx context.Context, id string) (PageView, error) {
	return d.view(ctx, func(st Store) (*Page, error) { return st.GetPage(ctx, id) })
}

func (d *PageDirectory) GetByName(ctx context.Context, name string) (PageView, error) {
	return d.view(ctx, func(st Store) (*Page, error) { return st.GetPageByName(ctx, name) })
}

func (d *PageDirectory) view(ctx context.Context, get func(Store) (*Page, error)) (PageView, error) {
	var view PageView
	err := d.store.WithTx(ctx, func(st Store) error {
		p, err := get(st)
		if err != nil {
			return err
		}
		counts, err := st.CountQuestions(ctx, p.ID)
		if err != nil {
			return err
		}
		view = newPageView(p, counts[p.ID])
		return nil
	})
	return view, err
}

// Create adds a page. Names are compared case-sensitively; a duplicate name
// fails with ErrConflict.
func (d *PageDirectory) Create(ctx context.Context, name, description string) (PageView, error) {
	if err := validatePage(name); err != nil {
		return PageView{}, err
	}
	p := &Page{
		ID:          newID(),
		Name:        name,
		Description: description,
		CreatedAt:   d.now(),
	}
	err := d.store.WithTx(ctx, func(st Store) error {
		exists, err := st.PageExistsByName(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("page %q: %w", name, ErrConflict)
		}
		return st.CreatePage(ctx, p)
	})
	if err != nil {
		return PageView{}, err
	}
	Logger.Info().Str("page_id", p.ID).Str("name", p.Name).Msg("page created")
	return newPageView(p, 0), nil
}

// Delete removes a page together with its questions and their replies.
func (d *PageDirectory) Delete(ctx context.Context, id string) error {
	err := d.store.WithTx(ctx, func(st Store) error {
		if _, err := st.GetPage(ctx, id); err != nil {
			return err
		}
		return st.DeletePage(ctx, id)
	})
	if err != nil {
		return err
	}
	Logger.Info().Str("page_id", id).Msg("page deleted")
	return nil
}
