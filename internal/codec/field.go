// Package codec encodes reporting records into the bureau's fixed-width
// flat-file layout, plus the CSV and JSON convenience formats.
//
// Every field encode either fits its declared width or returns a FieldError;
// nothing is silently truncated or wrapped. Every emitted line is asserted
// against its declared record length and a mismatch is an InvariantError,
// which callers must treat as a programming error rather than data to ship.
package codec

import (
	"fmt"
	"strings"
	"time"
)

// Record lengths and terminator agreed with the bureau.
const (
	HeaderLength  = 80
	DetailLength  = 300
	TrailerLength = 80

	// LineEnding terminates every record, including the trailer, and is
	// part of the checksummed content.
	LineEnding = "\r\n"
)

const (
	dateLayout = "20060102"
	timeLayout = "150405"
	dateWidth  = 8
)

// FieldError reports a value that cannot be represented in its field width.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// InvariantError reports an encoded record whose length does not match the
// declared layout. It indicates a codec bug, never bad input.
type InvariantError struct {
	Record string
	Got    int
	Want   int
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s record is %d bytes, layout requires %d", e.Record, e.Got, e.Want)
}

// textField left-justifies value in a space-padded field of the given width.
func textField(name, value string, width int) (string, error) {
	if len(value) > width {
		return "", &FieldError{
			Field:  name,
			Reason: fmt.Sprintf("value %d bytes exceeds width %d", len(value), width),
		}
	}
	return value + strings.Repeat(" ", width-len(value)), nil
}

// numberField right-justifies value in a zero-padded field of the given width.
func numberField(name string, value int64, width int) (string, error) {
	if value < 0 {
		return "", &FieldError{Field: name, Reason: "negative value"}
	}
	s := fmt.Sprintf("%0*d", width, value)
	if len(s) > width {
		return "", &FieldError{
			Field:  name,
			Reason: fmt.Sprintf("value %d overflows width %d", value, width),
		}
	}
	return s, nil
}

// dateField renders a date as YYYYMMDD, or literal spaces when absent.
func dateField(t *time.Time) string {
	if t == nil {
		return strings.Repeat(" ", dateWidth)
	}
	return t.Format(dateLayout)
}

func filler(width int) string {
	return strings.Repeat(" ", width)
}

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// assertLength enforces the fixed record length invariant.
func assertLength(recordName, line string, want int) (string, error) {
	if len(line) != want {
		return "", &InvariantError{Record: recordName, Got: len(line), Want: want}
	}
	return line, nil
}
