package sqlchat

import (
	"fmt"

	"go.jetify.com/typeid"
)

// NewSessionID returns a fresh session identifier for an anonymous
// conversation.
func NewSessionID() string {
	id, err := typeid.WithPrefix("session")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// UserSessionID returns the stable session identifier for a known user, so
// consecutive questions from the same caller checkpoint into one session.
func UserSessionID(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}
