package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/deepnoodle-ai/sqlchat"
)

// Users resolves caller identity hints against the user table. Lookups are
// parameterized; identity hints are caller-controlled text and never spliced
// into SQL.
type Users struct {
	db *sql.DB
}

func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// Find returns the active user with the given username, or (nil, nil) when
// no such user exists.
func (u *Users) Find(ctx context.Context, username string) (*sqlchat.User, error) {
	const query = `
SELECT id, username, is_active
FROM users
WHERE username = $1 AND is_active = true`

	var user sqlchat.User
	err := u.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
