// Package modelsync keeps objects, attributes and relationships consistent
// across the conceptual, logical and physical models of one family.
//
// Every operation takes a *Cache scoped to a single request. The cache
// holds what the request has read or written so that replicating into two
// layers, or synchronizing across three models, reads each record once.
// Nothing is shared between requests.
package modelsync

import (
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// Engine runs family-wide replication and relationship synchronization
// against a Store.
type Engine struct {
	store  types.Store
	logger *slog.Logger
}

// New returns an Engine backed by store. A nil logger discards output.
func New(store types.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, logger: logger}
}

// Store returns the store the engine writes to.
func (e *Engine) Store() types.Store {
	return e.store
}

func (e *Engine) table(name string) (types.Table, error) {
	t, err := e.store.GetTable(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", name, err)
	}
	return t, nil
}

// fetchAll runs a filtered Fetch and asserts every entity to T.
func fetchAll[T any](store types.Store, table string, filter types.Filter) ([]T, error) {
	t, err := store.GetTable(table)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", table, err)
	}
	rows, err := t.Fetch(filter)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", table, err)
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("fetching %s: unexpected entity %T", table, r)
		}
		out = append(out, v)
	}
	return out, nil
}

// getAs loads one entity by id and asserts it to T.
func getAs[T any](store types.Store, table, id string) (T, error) {
	var zero T
	t, err := store.GetTable(table)
	if err != nil {
		return zero, fmt.Errorf("opening %s table: %w", table, err)
	}
	entity, err := t.Get(id)
	if err != nil {
		return zero, fmt.Errorf("getting %s %s: %w", table, id, err)
	}
	v, ok := entity.(T)
	if !ok {
		return zero, fmt.Errorf("getting %s %s: unexpected entity %T", table, id, entity)
	}
	return v, nil
}

// put persists data into table and returns the id it was stored under.
func (e *Engine) put(table, id string, data any) (string, error) {
	t, err := e.table(table)
	if err != nil {
		return "", err
	}
	return t.Set(id, data)
}
