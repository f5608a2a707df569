package store

import (
	"context"
	"time"

	"libreria/pkg/observability"
)

// InstrumentedStore decorates an ItemStore with latency and error metrics.
type InstrumentedStore struct {
	inner   ItemStore
	metrics *observability.Metrics
}

// Instrument wraps a store with metrics. A nil metrics publisher returns
// the store unchanged.
func Instrument(inner ItemStore, metrics *observability.Metrics) ItemStore {
	if metrics == nil {
		return inner
	}
	return &InstrumentedStore{inner: inner, metrics: metrics}
}

func (s *InstrumentedStore) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.RecordLatency(ctx, op, time.Since(start))
	if err != nil {
		s.metrics.RecordError(ctx, op)
	}
}

func (s *InstrumentedStore) CreateTable(ctx context.Context, table string) error {
	start := time.Now()
	err := s.inner.CreateTable(ctx, table)
	s.observe(ctx, "CreateTable", start, err)
	return err
}

func (s *InstrumentedStore) Put(ctx context.Context, table string, item Item, opts *PutOptions) error {
	start := time.Now()
	err := s.inner.Put(ctx, table, item, opts)
	s.observe(ctx, "Put", start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, table string, key Key) (Item, bool, error) {
	start := time.Now()
	item, found, err := s.inner.Get(ctx, table, key)
	s.observe(ctx, "Get", start, err)
	return item, found, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, table string, key Key) error {
	start := time.Now()
	err := s.inner.Delete(ctx, table, key)
	s.observe(ctx, "Delete", start, err)
	return err
}

func (s *InstrumentedStore) Scan(ctx context.Context, table string, limit int32) ([]Item, error) {
	start := time.Now()
	items, err := s.inner.Scan(ctx, table, limit)
	s.observe(ctx, "Scan", start, err)
	return items, err
}

func (s *InstrumentedStore) Query(ctx context.Context, table string, q Query) ([]Item, error) {
	start := time.Now()
	items, err := s.inner.Query(ctx, table, q)
	s.observe(ctx, "Query", start, err)
	return items, err
}

func (s *InstrumentedStore) Update(ctx context.Context, table string, key Key, patch Item) (Item, bool, error) {
	start := time.Now()
	item, found, err := s.inner.Update(ctx, table, key, patch)
	s.observe(ctx, "Update", start, err)
	return item, found, err
}
