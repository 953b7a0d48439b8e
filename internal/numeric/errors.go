package numeric

import "errors"

var (
	// ErrCoincident indicates two points share the same x, so no line runs through them.
	ErrCoincident = errors.New("numeric: coincident points (x1 == x2)")

	// ErrDegenerateBracket indicates an empty or malformed observation set.
	ErrDegenerateBracket = errors.New("numeric: degenerate bracket")
)
