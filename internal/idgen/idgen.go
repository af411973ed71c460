package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier as string. Tests may
// replace it to get deterministic identifiers.
var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// Short returns the first block of a new identifier, suitable for file names.
func Short() string {
	id := NewFunc()
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
