package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/strata/pkg/types"
)

// timeFormat is the layout used for every timestamp column. The fixed
// width keeps lexical order equal to chronological order.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// readLocked acquires the backend read lock and returns the database handle.
// The caller must call the returned release function.
func (b *Backend) readLocked() (*sql.DB, func(), error) {
	b.mu.RLock()
	if !b.attached {
		b.mu.RUnlock()
		return nil, nil, types.ErrStoreDetached
	}
	return b.db, b.mu.RUnlock, nil
}

// writeLocked acquires the backend write lock and returns the database
// handle. The caller must call the returned release function.
func (b *Backend) writeLocked() (*sql.DB, func(), error) {
	b.mu.Lock()
	if !b.attached {
		b.mu.Unlock()
		return nil, nil, types.ErrStoreDetached
	}
	return b.db, b.mu.Unlock, nil
}

// buildSelect appends a WHERE clause derived from filter, the ORDER BY
// clause and pagination to base. Only keys listed in columns are accepted;
// string values compare with =, []string values with IN. The limit and
// offset keys take int values.
func buildSelect(base string, filter types.Filter, columns map[string]bool, orderBy string) (string, []any, error) {
	var conditions []string
	var args []any
	limit, offset := 0, 0

	for _, key := range slices.Sorted(maps.Keys(filter)) {
		v := filter[key]
		switch key {
		case "limit", "offset":
			n, ok := v.(int)
			if !ok {
				return "", nil, types.ErrInvalidFilter
			}
			if key == "limit" {
				limit = n
			} else {
				offset = n
			}
			continue
		}
		if !columns[key] {
			return "", nil, fmt.Errorf("%w: unknown key %q", types.ErrInvalidFilter, key)
		}
		switch val := v.(type) {
		case string:
			conditions = append(conditions, key+" = ?")
			args = append(args, val)
		case []string:
			if len(val) == 0 {
				conditions = append(conditions, "1 = 0")
				continue
			}
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(val)), ", ")
			conditions = append(conditions, key+" IN ("+placeholders+")")
			for _, s := range val {
				args = append(args, s)
			}
		default:
			return "", nil, types.ErrInvalidFilter
		}
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}
	return query + limitClause(limit, offset), args, nil
}

// limitClause renders LIMIT and OFFSET; SQLite needs a LIMIT before OFFSET.
func limitClause(limit, offset int) string {
	if limit <= 0 && offset <= 0 {
		return ""
	}
	if limit <= 0 {
		limit = -1
	}
	out := fmt.Sprintf(" LIMIT %d", limit)
	if offset > 0 {
		out += fmt.Sprintf(" OFFSET %d", offset)
	}
	return out
}

// existingCreatedAt looks up the created_at of the row with the given
// primary key. found is false when no such row exists.
func existingCreatedAt(db *sql.DB, table, idColumn, id string) (created time.Time, found bool, err error) {
	var raw string
	err = db.QueryRow("SELECT created_at FROM "+table+" WHERE "+idColumn+" = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("checking %s existence: %w", table, err)
	}
	created, err = parseTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing %s created_at: %w", table, err)
	}
	return created, true, nil
}

// deleteByID removes a row by primary key, returning ErrNotFound when no row
// matched.
func deleteByID(db *sql.DB, table, idColumn, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	res, err := db.Exec("DELETE FROM "+table+" WHERE "+idColumn+" = ?", id)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// translateError maps SQLite constraint failures onto store sentinels.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w", op, types.ErrDuplicate)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, types.ErrNotFound)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL:
			return fmt.Errorf("%s: %w", op, types.ErrInvalidData)
		case sqlite3.SQLITE_CONSTRAINT:
			// Connections without extended result codes report only the
			// primary code; the message names the constraint kind.
			msg := se.Error()
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return fmt.Errorf("%s: %w", op, types.ErrDuplicate)
			case strings.Contains(msg, "FOREIGN KEY"):
				return fmt.Errorf("%s: %w", op, types.ErrNotFound)
			}
			return fmt.Errorf("%s: %w", op, types.ErrInvalidData)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Rows restored from older snapshots may carry plain RFC 3339.
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// stamp sets created/updated timestamps for a write. created is left
// untouched on updates unless it is zero.
func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
