// Package badgerstore implements registry.Store on an embedded BadgerDB.
//
// Records are stored as JSON under "<kind>/<id>" with a "<kind>-name/<name>"
// index entry pointing back at the id. Lists walk the id keys in order, so
// the page cursor is simply the last id returned.
package badgerstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"

	"github.com/nbcuni/pokey/registry"
)

const (
	kindSchema = "schema"
	kindConfig = "config"
)

// Options configures the store.
type Options struct {
	// Path to the database directory. If empty, uses in-memory mode.
	Path string
	// InMemory forces in-memory mode even if Path is set.
	InMemory bool
	// Logger for BadgerDB. If nil, logging is disabled.
	Logger badger.Logger
}

// Store is a registry.Store backed by BadgerDB.
type Store struct {
	db *badger.DB
}

var _ registry.Store = (*Store)(nil)

// New opens a BadgerDB-backed store.
func New(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.Path == "" || opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the BadgerDB database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetSchema(ctx context.Context, id string) (*registry.Schema, error) {
	var out registry.Schema
	if err := s.get(recordKey(kindSchema, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutSchema(ctx context.Context, schema *registry.Schema) error {
	return s.put(kindSchema, schema.ID, schema.Name, schema)
}

func (s *Store) FindSchemaByName(ctx context.Context, name string) (*registry.Schema, error) {
	id, err := s.lookupName(kindSchema, name)
	if err != nil {
		return nil, err
	}
	return s.GetSchema(ctx, id)
}

func (s *Store) ListSchemas(ctx context.Context, q registry.ListQuery) (registry.Page[registry.SchemaListItem], error) {
	return list(s, kindSchema, q, func(r *registry.Schema) (registry.SchemaListItem, bool) {
		item := r.ListItem()
		return item, registry.MatchSchema(q, item)
	})
}

func (s *Store) GetConfig(ctx context.Context, id string) (*registry.Config, error) {
	var out registry.Config
	if err := s.get(recordKey(kindConfig, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg *registry.Config) error {
	return s.put(kindConfig, cfg.ID, cfg.Name, cfg)
}

func (s *Store) FindConfigByName(ctx context.Context, name string) (*registry.Config, error) {
	id, err := s.lookupName(kindConfig, name)
	if err != nil {
		return nil, err
	}
	return s.GetConfig(ctx, id)
}

func (s *Store) ListConfigs(ctx context.Context, q registry.ListQuery) (registry.Page[registry.ConfigListItem], error) {
	return list(s, kindConfig, q, func(r *registry.Config) (registry.ConfigListItem, bool) {
		item := r.ListItem()
		return item, registry.MatchConfig(q, item)
	})
}

func (s *Store) get(key []byte, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return registry.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func (s *Store) lookupName(kind, name string) (string, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(kind, name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return registry.ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		id = string(val)
		return err
	})
	return id, err
}

// put writes the record and moves its name index entry if the name changed.
func (s *Store) put(kind, id, name string, record any) error {
	val, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", kind, id, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := recordKey(kind, id)

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			var prev struct {
				Name string `json:"name"`
			}
			if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &prev) }); err != nil {
				return fmt.Errorf("decode previous %s %s: %w", kind, id, err)
			}
			if prev.Name != name {
				if err := txn.Delete(nameKey(kind, prev.Name)); err != nil {
					return err
				}
			}
		}

		if err := txn.Set(nameKey(kind, name), []byte(id)); err != nil {
			return err
		}
		return txn.Set(key, val)
	})
}

// list returns up to q.Limit matching records after the cursor. A cursor is
// only returned when another match exists beyond the page.
func list[R any, I any](s *Store, kind string, q registry.ListQuery, project func(*R) (I, bool)) (registry.Page[I], error) {
	page := registry.Page[I]{Items: []I{}}

	start := decodeCursor(q.NextToken)
	prefix := []byte(kind + "/")
	var lastID string
	more := false

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		if start != "" {
			startKey := recordKey(kind, start)
			it.Seek(startKey)
			if it.Valid() && bytes.Equal(it.Item().Key(), startKey) {
				it.Next()
			}
		} else {
			it.Seek(prefix)
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			var rec R
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}

			item, ok := project(&rec)
			if !ok {
				continue
			}
			if q.Limit > 0 && len(page.Items) >= q.Limit {
				more = true
				return nil
			}
			page.Items = append(page.Items, item)
			lastID = string(bytes.TrimPrefix(it.Item().Key(), prefix))
		}
		return nil
	})
	if err != nil {
		return registry.Page[I]{}, err
	}

	if more {
		page.NextToken = encodeCursor(lastID)
	}
	return page, nil
}

func recordKey(kind, id string) []byte {
	return []byte(kind + "/" + id)
}

func nameKey(kind, name string) []byte {
	return []byte(kind + "-name/" + name)
}

func encodeCursor(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// decodeCursor treats a malformed token as the start of the listing.
func decodeCursor(token string) string {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ""
	}
	return string(b)
}
