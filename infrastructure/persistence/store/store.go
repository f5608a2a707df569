// Package store defines the operation contract shared by every persistence
// backend. Domain services program against ItemStore and never see which
// backend is active.
package store

import (
	"context"
	"errors"
)

// Key attribute names shared by all tables. Every item carries a partition
// key and a sort key; tables that model flat entities use NoSortKey as a
// sentinel sort key value.
const (
	AttrPartitionKey = "pk"
	AttrSortKey      = "sk"

	// NoSortKey is the sentinel sort key for items without a natural one.
	NoSortKey = "__nosk__"
)

// Sentinel errors surfaced by store implementations. Callers distinguish a
// failed uniqueness precondition from any other backend failure through
// errors.Is(err, ErrConditionFailed).
var (
	ErrTableNotFound       = errors.New("store: table does not exist")
	ErrConditionFailed     = errors.New("store: conditional check failed")
	ErrMissingPartitionKey = errors.New("store: query requires a partition key")
)

// Item is an attribute bag. The partition and sort key live in the bag under
// AttrPartitionKey / AttrSortKey; everything else is domain attributes.
// Services keep typed records and convert at the boundary.
type Item map[string]interface{}

// PartitionKey returns the item's partition key attribute, or "".
func (i Item) PartitionKey() string {
	s, _ := i[AttrPartitionKey].(string)
	return s
}

// SortKey returns the item's sort key attribute, defaulting to NoSortKey.
func (i Item) SortKey() string {
	if s, ok := i[AttrSortKey].(string); ok && s != "" {
		return s
	}
	return NoSortKey
}

// Clone returns a deep copy of the item. Mutating the copy never touches
// stored state.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies a single attribute value.
func CloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = CloneValue(e)
		}
		return m
	case Item:
		return map[string]interface{}(t.Clone())
	case []interface{}:
		s := make([]interface{}, len(t))
		for n, e := range t {
			s[n] = CloneValue(e)
		}
		return s
	default:
		return v
	}
}

// Key identifies an item by its composite primary key. SK defaults to
// NoSortKey when empty.
type Key struct {
	PK string
	SK string
}

// SortOrDefault returns the sort key, or the sentinel when unset.
func (k Key) SortOrDefault() string {
	if k.SK == "" {
		return NoSortKey
	}
	return k.SK
}

// PutOptions controls conditional writes. With IfNotExists set, the put fails
// with ErrConditionFailed when an item already occupies the composite key.
// UniqueAttributes instead asserts that none of the named attributes already
// exist on the item at that key; it implies a conditional write.
type PutOptions struct {
	IfNotExists      bool
	UniqueAttributes []string
}

// Conditional reports whether the options demand a conditional write.
func (o *PutOptions) Conditional() bool {
	return o != nil && (o.IfNotExists || len(o.UniqueAttributes) > 0)
}

// Query selects all items sharing PartitionKey, optionally narrowed by an
// exact or prefix match on the sort key. Limit > 0 caps the result count.
type Query struct {
	PartitionKey  string
	SortKeyEquals string
	SortKeyPrefix string
	Limit         int32
}

// ItemStore is the uniform operation contract implemented by the embedded
// engine and the DynamoDB adapter.
type ItemStore interface {
	// CreateTable registers a table. Idempotent; a no-op if it exists.
	CreateTable(ctx context.Context, table string) error

	// Put inserts or overwrites the item at its composite key. A conditional
	// put fails with ErrConditionFailed when the precondition does not hold.
	Put(ctx context.Context, table string, item Item, opts *PutOptions) error

	// Get returns the item at the key. Absence is (nil, false, nil), never an
	// error.
	Get(ctx context.Context, table string, key Key) (Item, bool, error)

	// Delete removes the item at the key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, table string, key Key) error

	// Scan returns every item in the table, unordered. limit > 0 caps the
	// result; callers must budget for O(table size).
	Scan(ctx context.Context, table string, limit int32) ([]Item, error)

	// Query returns all items matching q. The only indexed read path.
	Query(ctx context.Context, table string, q Query) ([]Item, error)

	// Update merges patch into the existing item. Patch entries for the key
	// attributes are dropped: the composite key is immutable. Absence of the
	// key is (nil, false, nil).
	Update(ctx context.Context, table string, key Key, patch Item) (Item, bool, error)
}
