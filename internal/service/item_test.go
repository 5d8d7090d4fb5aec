package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/search"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestItemService_CreateAndGet(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "u1", CreateItemRequest{
		Title:       "  Lamp ",
		Description: ptr("   "),
		ImageURL:    ptr("https://example.com/lamp.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lamp", created.Title)
	assert.Nil(t, created.Description)
	assert.Empty(t, created.TagRefs)

	got, err := env.items.Get(ctx, "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/lamp.png", *got.ImageURL)

	_, err = env.items.Get(ctx, "u2", created.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestItemService_CreateValidation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  CreateItemRequest
	}{
		{"blank title", CreateItemRequest{Title: "  "}},
		{"long title", CreateItemRequest{Title: strings.Repeat("x", 51)}},
		{"bad url", CreateItemRequest{Title: "ok", ImageURL: ptr("not a url")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.items.Create(ctx, "u1", tt.req)
			assert.ErrorIs(t, err, domainerrors.ErrValidation)
		})
	}
}

func TestItemService_Update(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	created, err := env.items.Create(ctx, "u1", CreateItemRequest{Title: "Lamp", Description: ptr("brass")})
	require.NoError(t, err)
	_, err = env.tagging.TagItem(ctx, "u1", created.ID, "home")
	require.NoError(t, err)

	updated, err := env.items.Update(ctx, "u1", created.ID, UpdateItemRequest{Title: ptr("Desk lamp")})
	require.NoError(t, err)
	assert.Equal(t, "Desk lamp", updated.Title)
	assert.Equal(t, "brass", *updated.Description)
	require.Len(t, updated.TagRefs, 1)
	assert.Equal(t, "home", updated.TagRefs[0].Name)

	updated, err = env.items.Update(ctx, "u1", created.ID, UpdateItemRequest{Description: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)

	_, err = env.items.Update(ctx, "u1", created.ID, UpdateItemRequest{Title: ptr(" ")})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = env.items.Update(ctx, "u2", created.ID, UpdateItemRequest{Title: ptr("mine now")})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestItemService_ListPagination(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	page, err := env.items.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
	assert.Equal(t, 1, page.Page)

	for _, p := range []int{2, 3, math.MaxInt} {
		_, err = env.items.List(ctx, "u1", p, 10)
		assert.ErrorIs(t, err, domainerrors.ErrNotFound, "page %d", p)
	}

	for i := range 12 {
		env.createItem(t, "u1", fmt.Sprintf("item %d", i))
	}
	env.createItem(t, "u2", "someone else's")

	page, err = env.items.List(ctx, "u1", 1, 5)
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	last, err := env.items.List(ctx, "u1", 3, 5)
	require.NoError(t, err)
	assert.Len(t, last.Items, 2)

	for i := 1; i < len(page.Items); i++ {
		assert.False(t, page.Items[i].CreatedAt.After(page.Items[i-1].CreatedAt), "newest first")
	}

	_, err = env.items.List(ctx, "u1", 4, 5)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = env.items.List(ctx, "u1", math.MaxInt, 5)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	clamped, err := env.items.List(ctx, "u1", 1, 100)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, clamped.Limit)
	assert.Len(t, clamped.Items, 12)
}

func TestItemService_DeleteSweepsTags(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createItem(t, "u1", "A")
	b := env.createItem(t, "u1", "B")

	shared, err := env.tagging.TagItem(ctx, "u1", a.ID, "shared")
	require.NoError(t, err)
	_, err = env.tagging.TagItem(ctx, "u1", b.ID, "shared")
	require.NoError(t, err)
	only, err := env.tagging.TagItem(ctx, "u1", a.ID, "only-a")
	require.NoError(t, err)

	require.NoError(t, env.items.Delete(ctx, "u1", a.ID))

	_, err = env.items.Get(ctx, "u1", a.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	tag, err := env.getTag(t, shared.TagRefs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IDSet{b.ID}, tag.Items)

	_, err = env.getTag(t, only.TagRefs[1].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, env.items.Delete(ctx, "u1", a.ID), domainerrors.ErrNotFound)
}

func TestTagService_ListAndGet(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createItem(t, "u1", "A")
	b := env.createItem(t, "u1", "B")

	for _, name := range []string{"beta", "Alpha", "gamma"} {
		_, err := env.tagging.TagItem(ctx, "u1", a.ID, name)
		require.NoError(t, err)
	}
	res, err := env.tagging.TagItem(ctx, "u1", b.ID, "beta")
	require.NoError(t, err)

	tags, err := env.tags.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tags, 3)
	assert.Equal(t, "Alpha", tags[0].Name)
	assert.Equal(t, "beta", tags[1].Name)
	assert.Equal(t, 2, tags[1].ItemCount)
	assert.Equal(t, "gamma", tags[2].Name)

	got, err := env.tags.Get(ctx, "u1", res.TagRefs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "beta", got.Name)

	_, err = env.tags.Get(ctx, "u2", res.TagRefs[0].ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	none, err := env.tags.List(ctx, "u2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestItemService_SearchFollowsChanges(t *testing.T) {
	st, err := store.New(t.TempDir()+"/db", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	index, err := search.NewSearchIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	logger := slog.New(slog.DiscardHandler)
	searchSvc := NewSearchService(index, st, logger)
	tagging := NewTaggingService(st, searchSvc, logger)
	items := NewItemService(st, tagging, searchSvc, logger)
	ctx := context.Background()

	lamp, err := items.Create(ctx, "u1", CreateItemRequest{Title: "Brass lamp"})
	require.NoError(t, err)
	_, err = items.Create(ctx, "u2", CreateItemRequest{Title: "Brass bell"})
	require.NoError(t, err)

	res, err := items.Search(ctx, "u1", "brass", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, lamp.ID, res.Hits[0].Item.ID)

	_, err = tagging.TagItem(ctx, "u1", lamp.ID, "livingroom")
	require.NoError(t, err)
	res, err = items.Search(ctx, "u1", "livingroom", 0)
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, []domain.TagRef{{ID: res.Hits[0].Item.TagRefs[0].ID, Name: "livingroom"}}, res.Hits[0].Item.TagRefs)

	require.NoError(t, items.Delete(ctx, "u1", lamp.ID))
	res, err = items.Search(ctx, "u1", "brass", 0)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)

	_, err = items.Search(ctx, "u1", "  ", 0)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
