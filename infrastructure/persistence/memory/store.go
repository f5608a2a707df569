// Package memory implements the embedded item store: an in-process table
// registry with an optional JSON snapshot file. It targets development and
// single-process use; every mutation is persisted synchronously, so the
// snapshot is never more than one operation stale.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"libreria/infrastructure/persistence/store"

	"go.uber.org/zap"
)

const keySeparator = "||"

// compositeKey builds the registry key for a composite primary key.
func compositeKey(pk, sk string) string {
	if sk == "" {
		sk = store.NoSortKey
	}
	return pk + keySeparator + sk
}

// Store is the embedded ItemStore implementation.
type Store struct {
	mu          sync.Mutex
	tables      map[string]map[string]store.Item
	persistFile string
	logger      *zap.Logger
}

// Option configures the embedded store.
type Option func(*Store)

// WithPersistFile enables durable snapshots: every mutation rewrites the
// whole registry to path, and New rehydrates from it when it exists.
func WithPersistFile(path string) Option {
	return func(s *Store) { s.persistFile = path }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an embedded store. If a persist file is configured and present
// on disk, every table and item is rehydrated before the first operation.
func New(opts ...Option) (*Store, error) {
	s := &Store{
		tables: make(map[string]map[string]store.Item),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.persistFile != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// snapshotEntry is one [compositeKey, attributeBag] pair in the persisted
// document.
type snapshotEntry [2]json.RawMessage

func (s *Store) load() error {
	raw, err := os.ReadFile(s.persistFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read snapshot %s: %w", s.persistFile, err)
	}

	var doc map[string][]snapshotEntry
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode snapshot %s: %w", s.persistFile, err)
	}

	for name, entries := range doc {
		table := make(map[string]store.Item, len(entries))
		for _, entry := range entries {
			var key string
			if err := json.Unmarshal(entry[0], &key); err != nil {
				return fmt.Errorf("decode snapshot key in table %s: %w", name, err)
			}
			var item store.Item
			if err := json.Unmarshal(entry[1], &item); err != nil {
				return fmt.Errorf("decode snapshot item %s in table %s: %w", key, name, err)
			}
			table[key] = item
		}
		s.tables[name] = table
	}

	s.logger.Info("rehydrated embedded store from snapshot",
		zap.String("file", s.persistFile),
		zap.Int("tables", len(s.tables)),
	)
	return nil
}

// save serializes the whole registry. Callers hold the mutex.
func (s *Store) save() error {
	if s.persistFile == "" {
		return nil
	}

	doc := make(map[string][]snapshotEntry, len(s.tables))
	for name, table := range s.tables {
		keys := make([]string, 0, len(table))
		for k := range table {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		entries := make([]snapshotEntry, 0, len(keys))
		for _, k := range keys {
			rawKey, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("encode snapshot key %s: %w", k, err)
			}
			rawItem, err := json.Marshal(table[k])
			if err != nil {
				return fmt.Errorf("encode snapshot item %s: %w", k, err)
			}
			entries = append(entries, snapshotEntry{rawKey, rawItem})
		}
		doc[name] = entries
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(s.persistFile, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", s.persistFile, err)
	}
	return nil
}

// table returns the named table or ErrTableNotFound. No auto-create: an
// operation against an unknown table is a caller bug, not schema drift.
func (s *Store) table(name string) (map[string]store.Item, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q: %w", name, store.ErrTableNotFound)
	}
	return t, nil
}

// CreateTable registers a table. Idempotent.
func (s *Store) CreateTable(_ context.Context, table string) error {
	if table == "" {
		return fmt.Errorf("create table: name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[table]; ok {
		return nil
	}
	s.tables[table] = make(map[string]store.Item)
	return s.save()
}

// Put inserts or overwrites the item at its composite key.
func (s *Store) Put(_ context.Context, table string, item store.Item, opts *store.PutOptions) error {
	if item.PartitionKey() == "" {
		return fmt.Errorf("put: item requires a %s attribute", store.AttrPartitionKey)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return err
	}

	composite := compositeKey(item.PartitionKey(), item.SortKey())
	if existing, occupied := t[composite]; occupied && opts.Conditional() {
		if len(opts.UniqueAttributes) == 0 {
			return fmt.Errorf("put %s: %w", composite, store.ErrConditionFailed)
		}
		for _, attr := range opts.UniqueAttributes {
			if _, present := existing[attr]; present {
				return fmt.Errorf("put %s attribute %s: %w", composite, attr, store.ErrConditionFailed)
			}
		}
	}

	t[composite] = item.Clone()
	return s.save()
}

// Get returns the item at the composite key, or absence.
func (s *Store) Get(_ context.Context, table string, key store.Key) (store.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return nil, false, err
	}

	item, ok := t[compositeKey(key.PK, key.SortOrDefault())]
	if !ok {
		return nil, false, nil
	}
	return item.Clone(), true, nil
}

// Delete removes the item at the key. Idempotent.
func (s *Store) Delete(_ context.Context, table string, key store.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return err
	}

	delete(t, compositeKey(key.PK, key.SortOrDefault()))
	return s.save()
}

// Scan returns every item in the table, unordered.
func (s *Store) Scan(_ context.Context, table string, limit int32) ([]store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	items := make([]store.Item, 0, len(t))
	for _, item := range t {
		items = append(items, item.Clone())
		if limit > 0 && int32(len(items)) >= limit {
			break
		}
	}
	return items, nil
}

// Query returns all items sharing the partition key, optionally narrowed by
// sort key match.
func (s *Store) Query(_ context.Context, table string, q store.Query) ([]store.Item, error) {
	if q.PartitionKey == "" {
		return nil, store.ErrMissingPartitionKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return nil, err
	}

	var items []store.Item
	for _, item := range t {
		if item.PartitionKey() != q.PartitionKey {
			continue
		}
		sk := item.SortKey()
		if q.SortKeyEquals != "" && sk != q.SortKeyEquals {
			continue
		}
		if q.SortKeyPrefix != "" && !strings.HasPrefix(sk, q.SortKeyPrefix) {
			continue
		}
		items = append(items, item.Clone())
		if q.Limit > 0 && int32(len(items)) >= q.Limit {
			break
		}
	}
	return items, nil
}

// Update merges patch into the existing item, dropping key attributes from
// the patch. Absence of the key is not an error.
func (s *Store) Update(_ context.Context, table string, key store.Key, patch store.Item) (store.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.table(table)
	if err != nil {
		return nil, false, err
	}

	composite := compositeKey(key.PK, key.SortOrDefault())
	current, ok := t[composite]
	if !ok {
		return nil, false, nil
	}

	updated := current.Clone()
	for k, v := range patch {
		if k == store.AttrPartitionKey || k == store.AttrSortKey {
			continue
		}
		updated[k] = store.CloneValue(v)
	}

	t[composite] = updated
	if err := s.save(); err != nil {
		return nil, false, err
	}
	return updated.Clone(), true, nil
}
