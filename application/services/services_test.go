package services

import (
	"context"
	"testing"

	"libreria/infrastructure/persistence/memory"
	"libreria/infrastructure/persistence/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) store.ItemStore {
	t.Helper()
	s, err := memory.New()
	require.NoError(t, err)
	require.NoError(t, EnsureTables(context.Background(), s))
	return s
}

// flakyStore wraps a real store and fails selected writes, for exercising
// rollback paths.
type flakyStore struct {
	store.ItemStore
	failPut    func(table string, item store.Item) error
	failDelete func(table string, key store.Key) error
}

func (f *flakyStore) Put(ctx context.Context, table string, item store.Item, opts *store.PutOptions) error {
	if f.failPut != nil {
		if err := f.failPut(table, item); err != nil {
			return err
		}
	}
	return f.ItemStore.Put(ctx, table, item, opts)
}

func (f *flakyStore) Delete(ctx context.Context, table string, key store.Key) error {
	if f.failDelete != nil {
		if err := f.failDelete(table, key); err != nil {
			return err
		}
	}
	return f.ItemStore.Delete(ctx, table, key)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	detailTypes []string
	details     []interface{}
	err         error
}

func (p *recordingPublisher) Publish(_ context.Context, detailType string, detail interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.detailTypes = append(p.detailTypes, detailType)
	p.details = append(p.details, detail)
	return nil
}

func nopLogger() *zap.Logger {
	return zap.NewNop()
}
