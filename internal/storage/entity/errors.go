package entity

import (
	"fmt"
)

// MappingError is returned when a remote record can't be turned into an entity.
type MappingError struct {
	Kind  string
	ID    string
	Field string
	Err   error
}

func (e *MappingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("could not map %s %q: missing %s", e.Kind, e.ID, e.Field)
	}
	return fmt.Sprintf("could not map %s %q: invalid %s: %s", e.Kind, e.ID, e.Field, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}
