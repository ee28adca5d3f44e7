// Package auth manages login sessions, session middleware, and the
// secrets we keep on behalf of users.
package auth

import (
	"crypto/rand"
	"encoding/base32"
	"strings"
)

// tokenEntropy is the number of random bytes behind every session id and
// OAuth state value (200 bits).
const tokenEntropy = 25

var tokenEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewRandomToken returns a cryptographically random, URL- and cookie-safe
// token: 25 random bytes encoded as 40 lower-case base32 characters.
//
// crypto/rand.Read never returns an error on supported platforms; if it
// ever does, there is no safe fallback, so we panic.
func NewRandomToken() string {
	b := make([]byte, tokenEntropy)
	if _, err := rand.Read(b); err != nil {
		panic("auth: reading random bytes: " + err.Error())
	}
	return strings.ToLower(tokenEncoding.EncodeToString(b))
}
