// Package model defines domain entities for the application.
package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// User represents an authenticated Twitch account known to the service.
// A record is created on first successful login and never updated afterwards.
type User struct {
	ID          string    `json:"id"`
	TwitchID    string    `json:"twitch_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewUserID generates a lexicographically sortable unique user identifier.
func NewUserID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
