package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagboxapp/tagbox-server/internal/store"
)

type testDoc struct {
	ID     string   `json:"id"`
	Owner  string   `json:"owner"`
	Email  string   `json:"email"`
	Labels []string `json:"labels"`
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func testDocs() *store.Entity[testDoc] {
	return store.NewEntity[testDoc]("doc:").
		WithOwner(func(d *testDoc) string { return d.Owner }).
		WithIndex("email", func(d *testDoc) []string { return []string{d.Email} }).
		WithMultiIndex("label", func(d *testDoc) []string { return d.Labels })
}

func TestEntity_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	doc := &testDoc{ID: "1", Owner: "u1", Email: "a@example.com"}
	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", doc)
	}))

	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		got, err := docs.Get(tx, "1")
		require.NoError(t, err)
		assert.Equal(t, doc, got)
		return nil
	}))
}

func TestEntity_Create_DuplicateID(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Email: "a@example.com"})
	}))

	err := s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Email: "b@example.com"})
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_UniqueIndexConflict(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Email: "same@example.com"})
	}))

	err := s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "2", &testDoc{ID: "2", Email: "same@example.com"})
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// The failed unit of work left nothing behind.
	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		_, err := docs.Get(tx, "2")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func TestEntity_Put_MovesIndexes(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Email: "old@example.com", Labels: []string{"a", "b"}})
	}))

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Put(tx, "1", &testDoc{ID: "1", Email: "new@example.com", Labels: []string{"b", "c"}})
	}))

	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		_, err := docs.GetByIndex(tx, "email", "old@example.com")
		assert.ErrorIs(t, err, store.ErrNotFound)

		got, err := docs.GetByIndex(tx, "email", "new@example.com")
		require.NoError(t, err)
		assert.Equal(t, "1", got.ID)

		for label, want := range map[string][]string{"a": {}, "b": {"1"}, "c": {"1"}} {
			ids, err := docs.IDsByIndex(tx, "label", label)
			require.NoError(t, err)
			assert.ElementsMatch(t, want, ids, "label %s", label)
		}
		return nil
	}))
}

func TestEntity_Put_Missing(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()

	err := s.Update(context.Background(), func(tx *store.Tx) error {
		return docs.Put(tx, "nope", &testDoc{ID: "nope"})
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_Put_UniqueIndexConflict(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		if err := docs.Create(tx, "1", &testDoc{ID: "1", Email: "one@example.com"}); err != nil {
			return err
		}
		return docs.Create(tx, "2", &testDoc{ID: "2", Email: "two@example.com"})
	}))

	err := s.Update(ctx, func(tx *store.Tx) error {
		return docs.Put(tx, "2", &testDoc{ID: "2", Email: "one@example.com"})
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestEntity_MultiIndex_SeesPendingWrites(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()

	require.NoError(t, s.Update(context.Background(), func(tx *store.Tx) error {
		require.NoError(t, docs.Create(tx, "1", &testDoc{ID: "1", Email: "1@x", Labels: []string{"red"}}))
		require.NoError(t, docs.Create(tx, "2", &testDoc{ID: "2", Email: "2@x", Labels: []string{"red", "blue"}}))

		red, err := docs.ListByIndex(tx, "label", "red")
		require.NoError(t, err)
		assert.Len(t, red, 2)

		blue, err := docs.IDsByIndex(tx, "label", "blue")
		require.NoError(t, err)
		assert.Equal(t, []string{"2"}, blue)
		return nil
	}))
}

func TestEntity_GetOwned(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Owner: "u1", Email: "a@x"})
	}))

	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		got, err := docs.GetOwned(tx, "u1", "1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.Owner)

		_, err = docs.GetOwned(tx, "u2", "1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = docs.GetOwned(tx, "u1", "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func TestEntity_Delete(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "1", &testDoc{ID: "1", Email: "a@x", Labels: []string{"red"}})
	}))

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Delete(tx, "1")
	}))

	// Idempotent.
	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Delete(tx, "1")
	}))

	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		_, err := docs.Get(tx, "1")
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = docs.GetByIndex(tx, "email", "a@x")
		assert.ErrorIs(t, err, store.ErrNotFound)

		ids, err := docs.IDsByIndex(tx, "label", "red")
		require.NoError(t, err)
		assert.Empty(t, ids)
		return nil
	}))

	// The unique value is free again.
	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		return docs.Create(tx, "2", &testDoc{ID: "2", Email: "a@x"})
	}))
}

func TestEntity_List_SkipsIndexKeys(t *testing.T) {
	s := setupTestStore(t)
	docs := testDocs()
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(tx *store.Tx) error {
		for _, id := range []string{"a", "b", "c"} {
			if err := docs.Create(tx, id, &testDoc{ID: id, Email: id + "@x", Labels: []string{"l"}}); err != nil {
				return err
			}
		}
		return nil
	}))

	var ids []string
	require.NoError(t, s.View(ctx, func(tx *store.Tx) error {
		for d, err := range docs.List(tx) {
			require.NoError(t, err)
			ids = append(ids, d.ID)
		}
		return nil
	}))
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
