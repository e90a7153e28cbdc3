package archive

import (
	"github.com/alchemgo/alchemgo/errors"
)

// ErrRunNotFound is returned when a run id has no row in the archive.
var ErrRunNotFound = errors.New("run not found")

// IsRunNotFound checks if an error indicates a missing archive row.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
