package pagination

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// ErrCursorRegression is returned when a cursor would move backward.
var ErrCursorRegression = errors.New("cursor cannot move backward")

// Cursor is an opaque resume token: the last user ID seen. The zero value
// requests the first page.
type Cursor struct {
	after snowflake.ID
	set   bool
}

// After returns the last seen user ID and whether the cursor is set.
func (c Cursor) After() (snowflake.ID, bool) {
	return c.after, c.set
}

// IsZero reports whether the cursor points at the start of the list.
func (c Cursor) IsZero() bool {
	return !c.set
}

// Advance returns a cursor positioned after id. id must be strictly greater
// than the current position.
func (c Cursor) Advance(id snowflake.ID) (Cursor, error) {
	if c.set && id <= c.after {
		return c, fmt.Errorf("%w: %s -> %s", ErrCursorRegression, c.after, id)
	}
	return Cursor{after: id, set: true}, nil
}

// String implements fmt.Stringer.
func (c Cursor) String() string {
	if !c.set {
		return "start"
	}
	return c.after.String()
}

// includes reports whether a record with id lies strictly after the cursor.
func (c Cursor) includes(id snowflake.ID) bool {
	return !c.set || id > c.after
}
