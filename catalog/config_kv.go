package catalog

import (
	"database/sql"
	"fmt"
	"time"
)

// GetConfig reads a single config(name,value) row (§3.1). ok is false if no
// such row exists.
func (r *RepoDB) GetConfig(name string) (value string, ok bool, err error) {
	row := r.QueryRow(`SELECT value FROM config WHERE name = ?`, name)
	err = row.Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("catalog: get config %s: %w", name, err)
	}
	return value, true, nil
}

// SetConfig writes (or replaces) a config(name,value) row, stamping mtime
// with the current wall clock, the same REPLACE-whole-row semantics
// backofficeWriteLease uses (SPEC_FULL.md supplemented feature 2).
func (r *RepoDB) SetConfig(name, value string) error {
	_, err := r.Exec(`REPLACE INTO config(name, value, mtime) VALUES(?, ?, ?)`,
		name, value, float64(time.Now().Unix()))
	if err != nil {
		return fmt.Errorf("catalog: set config %s: %w", name, err)
	}
	return nil
}
