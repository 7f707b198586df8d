package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID returns a prefixed unique id, e.g. "hist-1a2b3c4d".
func GenerateID(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s-%s", prefix, id[:8])
}

// Now returns the current time in UTC; all timestamps in this service are
// stored in UTC.
func Now() time.Time {
	return time.Now().UTC()
}
