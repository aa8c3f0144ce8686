package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/strata/internal/sqlite"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// NewStore attaches a SQLite store in a temp dir and detaches it when the
// test ends.
func NewStore(t testing.TB) *sqlite.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{
		Backend: types.BackendSQLite,
		DataDir: t.TempDir(),
	}))
	t.Cleanup(func() { b.Detach() })
	return b
}

// Set stores data in table and fails the test on error.
func Set(t testing.TB, store types.Store, table string, data any) string {
	t.Helper()
	tbl, err := store.GetTable(table)
	require.NoError(t, err)
	id, err := tbl.Set("", data)
	require.NoError(t, err)
	return id
}

// Fetch returns the entities of table matching filter as T.
func Fetch[T any](t testing.TB, store types.Store, table string, filter types.Filter) []T {
	t.Helper()
	tbl, err := store.GetTable(table)
	require.NoError(t, err)
	rows, err := tbl.Fetch(filter)
	require.NoError(t, err)
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, ok := r.(T)
		require.True(t, ok, "unexpected entity %T", r)
		out = append(out, v)
	}
	return out
}
