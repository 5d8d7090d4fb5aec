package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagboxapp/tagbox-server/internal/domain"
	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/id"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

type testEnv struct {
	store   *store.Store
	tagging *TaggingService
	items   *ItemService
	tags    *TagService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.DiscardHandler)
	tagging := NewTaggingService(st, nil, logger)

	return &testEnv{
		store:   st,
		tagging: tagging,
		items:   NewItemService(st, tagging, nil, logger),
		tags:    NewTagService(st, logger),
	}
}

func (e *testEnv) createItem(t *testing.T, ownerID, title string) *domain.Item {
	t.Helper()
	item, err := e.items.Create(context.Background(), ownerID, CreateItemRequest{Title: title})
	require.NoError(t, err)
	return item.Item
}

func (e *testEnv) getItem(t *testing.T, itemID string) *domain.Item {
	t.Helper()
	var item *domain.Item
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		item, err = e.store.Items.Get(tx, itemID)
		return err
	}))
	return item
}

func (e *testEnv) getTag(t *testing.T, tagID string) (*domain.Tag, error) {
	t.Helper()
	var tag *domain.Tag
	err := e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		tag, err = e.store.Tags.Get(tx, tagID)
		return err
	})
	return tag, err
}

func (e *testEnv) ownerTags(t *testing.T, ownerID string) []*domain.Tag {
	t.Helper()
	var tags []*domain.Tag
	require.NoError(t, e.store.View(context.Background(), func(tx *store.Tx) error {
		var err error
		tags, err = e.store.TagsByOwner(tx, ownerID)
		return err
	}))
	return tags
}

func TestTagItem_Idempotent(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	item := env.createItem(t, "u1", "Notebook")

	first, err := env.tagging.TagItem(ctx, "u1", item.ID, "work")
	require.NoError(t, err)
	second, err := env.tagging.TagItem(ctx, "u1", item.ID, "work")
	require.NoError(t, err)

	assert.Equal(t, first.TagRefs, second.TagRefs)
	require.Len(t, second.TagRefs, 1)

	stored := env.getItem(t, item.ID)
	assert.Equal(t, domain.IDSet{first.TagRefs[0].ID}, stored.Tags)

	tags := env.ownerTags(t, "u1")
	require.Len(t, tags, 1)
	assert.Equal(t, domain.IDSet{item.ID}, tags[0].Items)
}

func TestTagItem_ReusesTagByName(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createItem(t, "u1", "A")
	b := env.createItem(t, "u1", "B")

	ra, err := env.tagging.TagItem(ctx, "u1", a.ID, "work")
	require.NoError(t, err)
	rb, err := env.tagging.TagItem(ctx, "u1", b.ID, "  work ")
	require.NoError(t, err)

	assert.Equal(t, ra.TagRefs[0].ID, rb.TagRefs[0].ID)

	tags := env.ownerTags(t, "u1")
	require.Len(t, tags, 1)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, tags[0].Items)
}

func TestTagItem_NamesAreCaseSensitive(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	item := env.createItem(t, "u1", "A")

	_, err := env.tagging.TagItem(ctx, "u1", item.ID, "Work")
	require.NoError(t, err)
	res, err := env.tagging.TagItem(ctx, "u1", item.ID, "work")
	require.NoError(t, err)

	assert.Len(t, res.TagRefs, 2)
	assert.Len(t, env.ownerTags(t, "u1"), 2)
}

func TestTagItem_CrossOwnerIsolation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	mine := env.createItem(t, "u1", "Mine")
	theirs := env.createItem(t, "u2", "Theirs")

	r1, err := env.tagging.TagItem(ctx, "u1", mine.ID, "work")
	require.NoError(t, err)
	r2, err := env.tagging.TagItem(ctx, "u2", theirs.ID, "work")
	require.NoError(t, err)
	assert.NotEqual(t, r1.TagRefs[0].ID, r2.TagRefs[0].ID)

	// u1 cannot reach u2's item or tag.
	_, err = env.tagging.TagItem(ctx, "u1", theirs.ID, "work")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = env.tagging.UntagItem(ctx, "u1", theirs.ID, r2.TagRefs[0].ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = env.tagging.DeleteTag(ctx, "u1", r2.TagRefs[0].ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	// The failed attempt left u1's existing tag unchanged.
	tags := env.ownerTags(t, "u1")
	require.Len(t, tags, 1)
	assert.Equal(t, domain.IDSet{mine.ID}, tags[0].Items)

	tag, err := env.getTag(t, r2.TagRefs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IDSet{theirs.ID}, tag.Items)
}

func TestTagItem_MissingItemCreatesNothing(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.tagging.TagItem(context.Background(), "u1", id.MustGenerate(id.PrefixItem), "work")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Empty(t, env.ownerTags(t, "u1"))

	_, err = env.tagging.TagItem(context.Background(), "u1", "not-an-id", "work")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestTagItem_ValidatesName(t *testing.T) {
	env := setupTestEnv(t)
	item := env.createItem(t, "u1", "A")

	for _, name := range []string{"", "   ", "abcdefghijklmnopqrstu"} {
		_, err := env.tagging.TagItem(context.Background(), "u1", item.ID, name)
		assert.ErrorIs(t, err, domainerrors.ErrValidation, "name %q", name)
	}

	// Length is counted in characters, not bytes.
	_, err := env.tagging.TagItem(context.Background(), "u1", item.ID, strings.Repeat("\u00e9", 20))
	assert.NoError(t, err)
}

func TestTagItem_AtomicOnFailure(t *testing.T) {
	env := setupTestEnv(t)
	item := env.createItem(t, "u1", "A")

	env.tagging.afterUpsert = func() error { return errors.New("injected") }
	_, err := env.tagging.TagItem(context.Background(), "u1", item.ID, "work")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrInternal)

	assert.Empty(t, env.ownerTags(t, "u1"))
	assert.Empty(t, env.getItem(t, item.ID).Tags)
}

func TestTagItem_ConcurrentCreateConverges(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	const n = 4
	items := make([]*domain.Item, n)
	for i := range items {
		items[i] = env.createItem(t, "u1", "item")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.tagging.TagItem(ctx, "u1", items[i].ID, "work")
		}()
	}
	wg.Wait()

	var tagged []string
	for i, err := range errs {
		if err != nil {
			// Out of retries under heavy contention is reported as retryable.
			assert.ErrorIs(t, err, domainerrors.ErrTransient)
			continue
		}
		tagged = append(tagged, items[i].ID)
	}

	tags := env.ownerTags(t, "u1")
	require.Len(t, tags, 1)
	assert.ElementsMatch(t, tagged, tags[0].Items)
}

func TestUntagItem_LastItemDeletesTag(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createItem(t, "u1", "A")
	b := env.createItem(t, "u1", "B")

	res, err := env.tagging.TagItem(ctx, "u1", a.ID, "work")
	require.NoError(t, err)
	_, err = env.tagging.TagItem(ctx, "u1", b.ID, "work")
	require.NoError(t, err)
	tagID := res.TagRefs[0].ID

	require.NoError(t, env.tagging.UntagItem(ctx, "u1", a.ID, tagID))
	tag, err := env.getTag(t, tagID)
	require.NoError(t, err)
	assert.Equal(t, domain.IDSet{b.ID}, tag.Items)

	require.NoError(t, env.tagging.UntagItem(ctx, "u1", b.ID, tagID))
	_, err = env.getTag(t, tagID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, env.getItem(t, b.ID).Tags)
}

func TestUntagItem_MissingTagRollsBack(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	item := env.createItem(t, "u1", "A")

	res, err := env.tagging.TagItem(ctx, "u1", item.ID, "work")
	require.NoError(t, err)

	err = env.tagging.UntagItem(ctx, "u1", item.ID, "tag-bad")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	err = env.tagging.UntagItem(ctx, "u1", item.ID, id.MustGenerate(id.PrefixTag))
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "tag not found", err.Error())

	assert.Equal(t, domain.IDSet{res.TagRefs[0].ID}, env.getItem(t, item.ID).Tags)
}

func TestUntagItem_MalformedIDsReportItemFirst(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	err := env.tagging.UntagItem(ctx, "u1", "not-an-id", "also-not-an-id")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "item not found", err.Error())

	item := env.createItem(t, "u1", "A")
	err = env.tagging.UntagItem(ctx, "u1", item.ID, "also-not-an-id")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	assert.Equal(t, "tag not found", err.Error())
}

func TestDeleteTag_CascadesToOwnerItemsOnly(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	a := env.createItem(t, "u1", "A")
	b := env.createItem(t, "u1", "B")
	other := env.createItem(t, "u2", "C")

	res, err := env.tagging.TagItem(ctx, "u1", a.ID, "work")
	require.NoError(t, err)
	_, err = env.tagging.TagItem(ctx, "u1", b.ID, "work")
	require.NoError(t, err)
	_, err = env.tagging.TagItem(ctx, "u1", b.ID, "home")
	require.NoError(t, err)
	theirs, err := env.tagging.TagItem(ctx, "u2", other.ID, "work")
	require.NoError(t, err)

	tagID := res.TagRefs[0].ID
	require.NoError(t, env.tagging.DeleteTag(ctx, "u1", tagID))

	_, err = env.getTag(t, tagID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, env.getItem(t, a.ID).Tags)
	assert.Len(t, env.getItem(t, b.ID).Tags, 1)
	assert.Equal(t, domain.IDSet{theirs.TagRefs[0].ID}, env.getItem(t, other.ID).Tags)

	err = env.tagging.DeleteTag(ctx, "u1", tagID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestTagging_WorkScenario(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	i1 := env.createItem(t, "u1", "i1")
	i2 := env.createItem(t, "u1", "i2")

	r1, err := env.tagging.TagItem(ctx, "u1", i1.ID, "work")
	require.NoError(t, err)
	r2, err := env.tagging.TagItem(ctx, "u1", i2.ID, "work")
	require.NoError(t, err)

	tagID := r1.TagRefs[0].ID
	assert.Equal(t, []domain.TagRef{{ID: tagID, Name: "work"}}, r1.TagRefs)
	assert.Equal(t, tagID, r2.TagRefs[0].ID)

	require.NoError(t, env.tagging.UntagItem(ctx, "u1", i1.ID, tagID))
	tag, err := env.getTag(t, tagID)
	require.NoError(t, err)
	assert.Equal(t, domain.IDSet{i2.ID}, tag.Items)

	require.NoError(t, env.tagging.UntagItem(ctx, "u1", i2.ID, tagID))
	_, err = env.getTag(t, tagID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, env.ownerTags(t, "u1"))
}

func TestTagging_ClosedStoreIsTransient(t *testing.T) {
	env := setupTestEnv(t)
	item := env.createItem(t, "u1", "A")
	require.NoError(t, env.store.Close())

	_, err := env.tagging.TagItem(context.Background(), "u1", item.ID, "work")
	assert.ErrorIs(t, err, domainerrors.ErrTransient)
}
