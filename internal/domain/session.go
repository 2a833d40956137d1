package domain

import "time"

// Session is an indexer authentication token for one network.
// Sessions are replaced wholesale on renewal and never mutated in place.
type Session struct {
	Token             string    // bearer token
	ExpiresImplicitly bool      // expiry is only discovered by a failed call
	IssuedAt          time.Time // when the token was obtained
}
