// Package modeling is the write path for models, objects and
// relationships. It keeps the canonical records and hands the family-wide
// work to modelsync: objects created in a conceptual model are replicated
// into the logical and physical siblings, and relationship changes are
// projected into every model of the family.
package modeling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mesh-intelligence/strata/internal/modelsync"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Service runs write operations against a Store. Every call is one
// request with its own modelsync cache.
type Service struct {
	store  types.Store
	engine *modelsync.Engine
	logger *slog.Logger
}

// NewService returns a Service backed by store. A nil logger discards
// output.
func NewService(store types.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  store,
		engine: modelsync.New(store, logger.With("component", "modelsync")),
		logger: logger,
	}
}

// Engine returns the synchronization engine the service drives.
func (s *Service) Engine() *modelsync.Engine {
	return s.engine
}

// FieldError reports which input field was rejected. It unwraps to the
// sentinel describing the problem.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func fieldErr(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// IsUserError reports whether err was caused by the caller's input rather
// than by the store.
func IsUserError(err error) bool {
	var fe *FieldError
	if errors.As(err, &fe) {
		return true
	}
	for _, sentinel := range []error{
		types.ErrNotFound, types.ErrInvalidID, types.ErrInvalidData, types.ErrInvalidName,
		types.ErrInvalidLayer, types.ErrInvalidParent, types.ErrInvalidRelationshipType,
		types.ErrInvalidLevel, types.ErrInvalidDirection, types.ErrDuplicate,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// table opens a store table.
func (s *Service) table(name string) (types.Table, error) {
	t, err := s.store.GetTable(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s table: %w", name, err)
	}
	return t, nil
}

// lookup loads an entity for a request field, reporting a missing id as a
// FieldError.
func lookup[T any](s *Service, table, field, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, fieldErr(field, types.ErrInvalidID)
	}
	t, err := s.table(table)
	if err != nil {
		return zero, err
	}
	entity, err := t.Get(id)
	if errors.Is(err, types.ErrNotFound) {
		return zero, fieldErr(field, types.ErrNotFound)
	}
	if err != nil {
		return zero, fmt.Errorf("loading %s %s: %w", field, id, err)
	}
	v, ok := entity.(T)
	if !ok {
		return zero, fmt.Errorf("loading %s %s: unexpected entity %T", field, id, entity)
	}
	return v, nil
}

// Family resolves the model family of modelID.
func (s *Service) Family(ctx context.Context, modelID string) (*modelsync.Family, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := lookup[*types.Model](s, types.ModelsTable, "model_id", modelID); err != nil {
		return nil, err
	}
	return s.engine.ResolveFamily(modelsync.NewCache(), modelID)
}
