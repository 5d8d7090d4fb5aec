package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Entity provides generic transactional CRUD for any domain type stored as JSON.
//
// Keys:
//
//	<prefix><id>                          document
//	<prefix>idx:<name>:<value>            unique index → id
//	<prefix>idx:<name>:<value>:<id>       multi index → empty
//
// Multi-index values must not contain ':'.
type Entity[T any] struct {
	prefix  string
	indexes []Index[T]
	ownerOf func(*T) string
}

// Index defines a secondary index on an entity.
type Index[T any] struct {
	name            string
	unique          bool
	keyGen          func(*T) []string
	lookupTransform func(string) string // Optional transformation for lookups
}

// NewEntity creates a new Entity instance for type T.
func NewEntity[T any](prefix string) *Entity[T] {
	return &Entity[T]{
		prefix:  prefix,
		indexes: make([]Index[T], 0),
	}
}

// WithIndex adds a unique secondary index. Writing a value that another
// document already holds fails with ErrAlreadyExists.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		unique: true,
		keyGen: keyGen,
	})
	return e
}

// WithIndexTransform adds a unique secondary index with lookup transformation.
// The lookupTransform function is applied to search values before index lookup,
// enabling case-insensitive searches, normalization, etc.
func (e *Entity[T]) WithIndexTransform(name string, keyGen func(*T) []string, lookupTransform func(string) string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:            name,
		unique:          true,
		keyGen:          keyGen,
		lookupTransform: lookupTransform,
	})
	return e
}

// WithMultiIndex adds a non-unique secondary index, scanned with IDsByIndex.
func (e *Entity[T]) WithMultiIndex(name string, keyGen func(*T) []string) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{
		name:   name,
		keyGen: keyGen,
	})
	return e
}

// WithOwner declares how to read a document's owner, enabling GetOwned.
func (e *Entity[T]) WithOwner(ownerOf func(*T) string) *Entity[T] {
	e.ownerOf = ownerOf
	return e
}

func (e *Entity[T]) key(id string) []byte {
	return []byte(e.prefix + id)
}

func (e *Entity[T]) indexKey(idx Index[T], value, id string) []byte {
	if idx.unique {
		return []byte(e.prefix + "idx:" + idx.name + ":" + value)
	}
	return []byte(e.prefix + "idx:" + idx.name + ":" + value + ":" + id)
}

func (e *Entity[T]) index(name string) (Index[T], bool) {
	for _, idx := range e.indexes {
		if idx.name == name {
			return idx, true
		}
	}
	return Index[T]{}, false
}

// Create inserts a new entity with the given ID.
// Returns ErrAlreadyExists if the ID or any unique index value is taken.
func (e *Entity[T]) Create(tx *Tx, id string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	exists, err := tx.exists(e.key(id))
	if err != nil {
		return fmt.Errorf("failed to check existing key: %w", err)
	}
	if exists {
		return ErrAlreadyExists
	}

	if err := e.checkUnique(tx, entity, nil); err != nil {
		return err
	}

	if err := tx.set(e.key(id), data); err != nil {
		return err
	}
	return e.writeIndexes(tx, id, entity, nil)
}

// Get retrieves an entity by ID.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Get(tx *Tx, id string) (*T, error) {
	item, err := tx.get(e.key(id))
	if err != nil {
		return nil, err
	}

	var entity T
	err = item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, &entity); err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

// GetOwned retrieves an entity by ID only if ownerID owns it.
// A document owned by someone else is reported exactly like a missing one.
func (e *Entity[T]) GetOwned(tx *Tx, ownerID, id string) (*T, error) {
	if e.ownerOf == nil {
		return nil, fmt.Errorf("entity %q has no owner field", e.prefix)
	}
	entity, err := e.Get(tx, id)
	if err != nil {
		return nil, err
	}
	if e.ownerOf(entity) != ownerID {
		return nil, ErrNotFound
	}
	return entity, nil
}

// GetByIndex retrieves an entity by unique secondary index.
// If the index has a lookup transform, it will be applied to the value before lookup.
func (e *Entity[T]) GetByIndex(tx *Tx, indexName, value string) (*T, error) {
	idx, ok := e.index(indexName)
	if !ok || !idx.unique {
		return nil, fmt.Errorf("no unique index %q on %q", indexName, e.prefix)
	}
	if idx.lookupTransform != nil {
		value = idx.lookupTransform(value)
	}

	item, err := tx.get(e.indexKey(idx, value, ""))
	if err != nil {
		return nil, err
	}

	var id string
	err = item.Value(func(val []byte) error {
		id = string(val)
		return nil
	})
	if err != nil {
		return nil, err
	}

	entity, err := e.Get(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("index %s:%s points at missing %s%s", indexName, value, e.prefix, id)
	}
	return entity, err
}

// IDsByIndex returns the IDs of all entities whose multi index holds value.
func (e *Entity[T]) IDsByIndex(tx *Tx, indexName, value string) ([]string, error) {
	idx, ok := e.index(indexName)
	if !ok || idx.unique {
		return nil, fmt.Errorf("no multi index %q on %q", indexName, e.prefix)
	}

	prefix := e.prefix + "idx:" + idx.name + ":" + value + ":"
	keys, err := tx.keysWithPrefix([]byte(prefix))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	return ids, nil
}

// ListByIndex loads every entity whose multi index holds value.
func (e *Entity[T]) ListByIndex(tx *Tx, indexName, value string) ([]*T, error) {
	ids, err := e.IDsByIndex(tx, indexName, value)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		entity, err := e.Get(tx, id)
		if err != nil {
			return nil, fmt.Errorf("load %s%s from index %s: %w", e.prefix, id, indexName, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

// Put replaces an existing entity and moves its index keys.
// Returns ErrNotFound if the entity does not exist.
func (e *Entity[T]) Put(tx *Tx, id string, entity *T) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	old, err := e.Get(tx, id)
	if err != nil {
		return err
	}

	if err := e.checkUnique(tx, entity, old); err != nil {
		return err
	}

	// Delete index keys the new version no longer has.
	for _, idx := range e.indexes {
		newValues := idx.keyGen(entity)
		for _, v := range idx.keyGen(old) {
			if slices.Contains(newValues, v) {
				continue
			}
			if err := tx.delete(e.indexKey(idx, v, id)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
	}

	if err := tx.set(e.key(id), data); err != nil {
		return err
	}
	return e.writeIndexes(tx, id, entity, old)
}

// Delete deletes an entity by ID along with its index keys.
// This operation is idempotent - it does not return an error if the entity does not exist.
func (e *Entity[T]) Delete(tx *Tx, id string) error {
	entity, err := e.Get(tx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			if err := tx.delete(e.indexKey(idx, v, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}

	return tx.delete(e.key(id))
}

// List returns an iterator over all entities.
func (e *Entity[T]) List(tx *Tx) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		keys, err := tx.keysWithPrefix([]byte(e.prefix))
		if err != nil {
			yield(nil, err)
			return
		}

		for _, k := range keys {
			id := strings.TrimPrefix(k, e.prefix)
			// Skip index keys
			if strings.HasPrefix(id, "idx:") {
				continue
			}

			entity, err := e.Get(tx, id)
			if !yield(entity, err) || err != nil {
				return
			}
		}
	}
}

// checkUnique fails with ErrAlreadyExists if entity claims a unique index
// value some other document holds. Values old already holds are skipped.
func (e *Entity[T]) checkUnique(tx *Tx, entity, old *T) error {
	for _, idx := range e.indexes {
		if !idx.unique {
			continue
		}
		var held []string
		if old != nil {
			held = idx.keyGen(old)
		}
		for _, v := range idx.keyGen(entity) {
			if slices.Contains(held, v) {
				continue
			}
			taken, err := tx.exists(e.indexKey(idx, v, ""))
			if err != nil {
				return fmt.Errorf("failed to check index key: %w", err)
			}
			if taken {
				return fmt.Errorf("index %s conflict on key %s: %w", idx.name, v, ErrAlreadyExists)
			}
		}
	}
	return nil
}

// writeIndexes sets the index keys entity has and old lacked.
func (e *Entity[T]) writeIndexes(tx *Tx, id string, entity, old *T) error {
	for _, idx := range e.indexes {
		var held []string
		if old != nil {
			held = idx.keyGen(old)
		}
		for _, v := range idx.keyGen(entity) {
			if slices.Contains(held, v) {
				continue
			}
			var val []byte
			if idx.unique {
				val = []byte(id)
			}
			if err := tx.set(e.indexKey(idx, v, id), val); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}
