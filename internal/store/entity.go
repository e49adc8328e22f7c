package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Entity stores JSON values of type T under "<prefix><key>" and maintains
// unique secondary indexes "<prefix>idx:<name>:<value>" -> key in the same
// transaction as the primary write.
type Entity[T any] struct {
	store    *Store
	prefix   string
	conflict error
	indexes  []Index[T]
}

// Index defines a unique secondary index on an entity.
type Index[T any] struct {
	name     string
	keyGen   func(*T) []string
	conflict error
}

// NewEntity creates a new Entity for type T. Primary key collisions are
// reported as ErrAlreadyExists unless WithConflict overrides it.
func NewEntity[T any](s *Store, prefix string) *Entity[T] {
	return &Entity[T]{
		store:    s,
		prefix:   prefix,
		conflict: ErrAlreadyExists,
	}
}

// WithConflict sets the error returned when a primary key is already taken.
func (e *Entity[T]) WithConflict(err error) *Entity[T] {
	e.conflict = err
	return e
}

// WithIndex adds a unique secondary index. conflict is returned when another
// entity already holds one of the generated index values.
func (e *Entity[T]) WithIndex(name string, keyGen func(*T) []string, conflict error) *Entity[T] {
	e.indexes = append(e.indexes, Index[T]{name: name, keyGen: keyGen, conflict: conflict})
	return e
}

// Create writes a new entity. The primary key and all index values must be free.
// A concurrent writer racing on the same keys loses with the same error as a
// plain collision.
func (e *Entity[T]) Create(ctx context.Context, key string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	err = e.store.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(e.prefix + key))
		if err == nil {
			return e.conflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check existing key: %w", err)
		}

		if err := e.checkIndexes(txn, entity, nil); err != nil {
			return err
		}

		if err := txn.Set([]byte(e.prefix+key), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.setIndexes(txn, key, entity)
	})

	if errors.Is(err, badger.ErrConflict) {
		return e.conflict
	}
	return translate(err)
}

// Get retrieves an entity by primary key.
func (e *Entity[T]) Get(ctx context.Context, key string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entity T
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(e.prefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entity)
		})
	})
	if err != nil {
		return nil, translate(err)
	}
	return &entity, nil
}

// GetByIndex retrieves an entity through a secondary index.
func (e *Entity[T]) GetByIndex(ctx context.Context, indexName, value string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	indexKey := buildIndexKey(e.prefix, indexName, value)
	defer releaseKey(indexKey)

	var key string
	err := e.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			key = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	return e.Get(ctx, key)
}

// Update overwrites an existing entity and moves its index entries.
func (e *Entity[T]) Update(ctx context.Context, key string, entity *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshal entity: %w", err)
	}

	err = e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.read(txn, key)
		if err != nil {
			return err
		}

		if err := e.checkIndexes(txn, entity, old); err != nil {
			return err
		}
		if err := e.deleteIndexes(txn, old); err != nil {
			return err
		}

		if err := txn.Set([]byte(e.prefix+key), data); err != nil {
			return fmt.Errorf("set key: %w", err)
		}
		return e.setIndexes(txn, key, entity)
	})

	if errors.Is(err, badger.ErrConflict) {
		return ErrAlreadyExists.WithCause(err)
	}
	return translate(err)
}

// Delete removes an entity and its index entries.
// Returns ErrNotFound if the key does not exist.
func (e *Entity[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := e.store.db.Update(func(txn *badger.Txn) error {
		old, err := e.read(txn, key)
		if err != nil {
			return err
		}
		if err := e.deleteIndexes(txn, old); err != nil {
			return err
		}
		return txn.Delete([]byte(e.prefix + key))
	})
	return translate(err)
}

// Scan yields every entity whose key starts with sub, in key order.
func (e *Entity[T]) Scan(ctx context.Context, sub string) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		prefix := []byte(e.prefix + sub)

		err := e.store.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if e.isIndexKey(it.Item().Key()) {
					continue
				}

				var entity T
				if err := it.Item().Value(func(val []byte) error {
					return json.Unmarshal(val, &entity)
				}); err != nil {
					return fmt.Errorf("unmarshal entity: %w", err)
				}

				if !yield(&entity, nil) {
					return errStopped
				}
			}
			return nil
		})

		if err != nil && !errors.Is(err, errStopped) {
			yield(nil, translate(err))
		}
	}
}

// Last returns the entity with the greatest key starting with sub.
// Returns ErrNotFound when no key matches.
func (e *Entity[T]) Last(ctx context.Context, sub string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(e.prefix + sub)
	var entity *T

	err := e.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key, so seek
		// just past the end of the prefix range.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if e.isIndexKey(it.Item().Key()) {
				continue
			}
			var v T
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("unmarshal entity: %w", err)
			}
			entity = &v
			return nil
		}
		return badger.ErrKeyNotFound
	})
	if err != nil {
		return nil, translate(err)
	}
	return entity, nil
}

// errStopped ends an iteration early when the consumer stops pulling.
var errStopped = errors.New("iteration stopped")

func (e *Entity[T]) read(txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(e.prefix + key))
	if err != nil {
		return nil, err
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal entity: %w", err)
	}
	return &v, nil
}

// checkIndexes fails with the index's conflict error if a value generated
// for entity is held by someone else. Values that old already holds are skipped.
func (e *Entity[T]) checkIndexes(txn *badger.Txn, entity, old *T) error {
	for _, idx := range e.indexes {
		held := make(map[string]bool)
		if old != nil {
			for _, v := range idx.keyGen(old) {
				held[v] = true
			}
		}

		for _, v := range idx.keyGen(entity) {
			if held[v] {
				continue
			}
			k := buildIndexKey(e.prefix, idx.name, v)
			_, err := txn.Get(k)
			releaseKey(k)
			if err == nil {
				return idx.conflict
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("check index %s: %w", idx.name, err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) setIndexes(txn *badger.Txn, key string, entity *T) error {
	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			// Badger keeps the key slice until commit, so it cannot come from the pool.
			k := []byte(e.prefix + "idx:" + idx.name + ":" + v)
			if err := txn.Set(k, []byte(key)); err != nil {
				return fmt.Errorf("set index %s: %w", idx.name, err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) deleteIndexes(txn *badger.Txn, entity *T) error {
	for _, idx := range e.indexes {
		for _, v := range idx.keyGen(entity) {
			k := []byte(e.prefix + "idx:" + idx.name + ":" + v)
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete index %s: %w", idx.name, err)
			}
		}
	}
	return nil
}

func (e *Entity[T]) isIndexKey(key []byte) bool {
	return strings.HasPrefix(string(key[len(e.prefix):]), "idx:")
}
