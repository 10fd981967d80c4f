package util

import "github.com/google/uuid"

// NewID returns a random UUIDv4 string used for song job identifiers.
func NewID() string {
	return uuid.NewString()
}

// IsID reports whether s is a canonical UUID string as produced by NewID.
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
