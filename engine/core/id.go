package core

import "github.com/google/uuid"

// ID identifies a single task execution (all of its retry attempts share
// it), used to correlate log lines and run-summary entries. Grounded on compozy-compozy/engine/core/id.go,
// adapted to google/uuid (already a teacher dependency) in place of the
// teacher's ksuid, which this pack never demonstrates being used outside
// that one file.
type ID string

func (id ID) String() string { return string(id) }

// NewID generates a fresh random ID.
func NewID() ID {
	return ID(uuid.NewString())
}
