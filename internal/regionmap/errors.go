package regionmap

import (
	"errors"
	"fmt"
)

// Sentinel errors for region map parsing.
var (
	ErrInvalidPoint  = errors.New("invalid point")
	ErrNoRegionData  = errors.New("region map doesn't contain any region data")
	ErrUnknownRegion = errors.New("region has no area data")
	ErrDuplicateCell = errors.New("cell coordinate already mapped")
)

// FormatError is a fatal parse failure tied to a position in the map file.
// Err is one of the sentinel errors above.
type FormatError struct {
	Section SectionName
	Line    int    // 1-based line in the source document
	Key     string // editor ID, region name or raw coordinate, if any
	Text    string // offending text, if any
	Err     error
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("[%s] line %d: %v", e.Section, e.Line, e.Err)
	if e.Text != "" {
		msg += fmt.Sprintf(" %q", e.Text)
	}
	if e.Key != "" {
		msg += fmt.Sprintf(" (key %q)", e.Key)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }
