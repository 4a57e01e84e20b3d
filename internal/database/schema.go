package database

import (
	"fmt"
	"regexp"
	"strings"
)

// identRe is the allow-list pattern for a single SQL identifier segment.
// Every identifier interpolated into dynamic query text must pass it first;
// anything else is rejected before query construction.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateColumn rejects unsafe column identifiers.
func ValidateColumn(col string) error {
	if !identRe.MatchString(col) {
		return fmt.Errorf("unsafe column identifier %q", col)
	}
	return nil
}

// ValidateTable rejects unsafe table identifiers. A single schema
// qualification ("schema.table") is allowed; each segment is checked.
func ValidateTable(table string) error {
	parts := strings.Split(table, ".")
	if len(parts) > 2 {
		return fmt.Errorf("unsafe table identifier %q", table)
	}
	for _, p := range parts {
		if !identRe.MatchString(p) {
			return fmt.Errorf("unsafe table identifier %q", table)
		}
	}
	return nil
}

// ColumnResolver probes tables for the first queryable candidate column so
// the pipeline tolerates heterogeneous warehouse naming (news_id vs id vs
// doc_id, and so on). Probe results are cached for the resolver's lifetime,
// which is one run.
type ColumnResolver struct {
	db    *DB
	cache map[string]bool // "table\x00column" -> queryable
}

// NewColumnResolver creates a resolver bound to one store handle.
func NewColumnResolver(db *DB) *ColumnResolver {
	return &ColumnResolver{db: db, cache: make(map[string]bool)}
}

// TableExists reports whether the table can be queried at all.
func (r *ColumnResolver) TableExists(table string) bool {
	if err := ValidateTable(table); err != nil {
		return false
	}
	key := table + "\x00"
	if v, ok := r.cache[key]; ok {
		return v
	}
	_, err := r.db.conn.Exec(fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table))
	r.cache[key] = err == nil
	return err == nil
}

// Resolve returns the first candidate column that is queryable on the table,
// or "" when none match. Table and candidate names are validated against the
// identifier allow-list; invalid names are skipped, an invalid table errors.
func (r *ColumnResolver) Resolve(table string, candidates []string) (string, error) {
	if err := ValidateTable(table); err != nil {
		return "", err
	}
	for _, col := range candidates {
		if ValidateColumn(col) != nil {
			continue
		}
		if r.columnQueryable(table, col) {
			return col, nil
		}
	}
	return "", nil
}

// ResolveRequired returns the first matching candidate or an actionable error
// naming the table and everything that was tried.
func (r *ColumnResolver) ResolveRequired(table string, candidates []string) (string, error) {
	col, err := r.Resolve(table, candidates)
	if err != nil {
		return "", err
	}
	if col == "" {
		return "", fmt.Errorf("table %s: none of the candidate columns %v are queryable; override the column name in configuration", table, candidates)
	}
	return col, nil
}

func (r *ColumnResolver) columnQueryable(table, col string) bool {
	key := table + "\x00" + col
	if v, ok := r.cache[key]; ok {
		return v
	}
	// Identifiers are validated above; interpolation is safe here.
	_, err := r.db.conn.Exec(fmt.Sprintf("SELECT %s FROM %s LIMIT 1", col, table))
	r.cache[key] = err == nil
	return err == nil
}
