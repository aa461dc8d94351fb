package catalog

import (
	"database/sql"
	"fmt"
)

// UserExists implements the §4.4.5 "user-exists guard": the committing
// user name must exist in the user table.
func (r *RepoDB) UserExists(login string) (bool, error) {
	var uid int64
	err := r.QueryRow(`SELECT uid FROM user WHERE login = ?`, login).Scan(&uid)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("catalog: user-exists %s: %w", login, err)
	}
	return true, nil
}

// AddUser inserts a user row, used by tests and by repository bootstrap.
func (r *RepoDB) AddUser(login, info string) error {
	_, err := r.Exec(`INSERT OR IGNORE INTO user(login, info) VALUES(?, ?)`, login, info)
	if err != nil {
		return fmt.Errorf("catalog: add user %s: %w", login, err)
	}
	return nil
}
