// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a reddit account that has logged in at least once.
//
// RedditUsername is the natural key handed to us by reddit's /api/v1/me
// endpoint. The UNIQUE constraint on reddit_username means one reddit
// account maps to exactly one row, and lookups are exact-match.
//
// The ape key is a secret, so it is never serialized to JSON. HasApeKey is
// what the frontend sees instead.
type User struct {
	ID              string    `json:"id"`
	RedditUsername  string    `json:"redditUsername"`
	RedditSnoovatar string    `json:"redditSnoovatar"` // may be empty
	ApeKey          *string   `json:"-"`               // sealed at rest; nil when the user removed it
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// HasApeKey reports whether the user has stored a MonkeyType Ape Key.
func (u *User) HasApeKey() bool {
	return u.ApeKey != nil && *u.ApeKey != ""
}
