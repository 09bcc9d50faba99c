package model

import "github.com/oklog/ulid/v2"

// NewID returns a ULID. Sample rows and load runs use it so that their IDs
// sort by creation time.
func NewID() string {
	return ulid.Make().String()
}
