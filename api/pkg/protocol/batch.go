package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedBatch is returned when a batch string cannot be decoded.
var ErrMalformedBatch = errors.New("malformed event batch")

// Wire layout:
//
//	count|rec1|rec2|...
//
// mouse record:    1|kind|x|y|button|modifiers|
// keyboard record: 2|kind|code|modifiers|
const (
	mouseRecordFields    = 6
	keyboardRecordFields = 4
)

// EncodeBatch serializes events into the pipe-delimited batch format. Events
// are written in slice order.
func EncodeBatch(events []Event) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(len(events)))
	sb.WriteByte('|')

	for _, e := range events {
		switch e.Type {
		case EventTypeMouse:
			writeFields(&sb, int(e.Type), int(e.Kind), e.X, e.Y, e.Button, int(e.Modifiers))
		default:
			writeFields(&sb, int(EventTypeKeyboard), int(e.Kind), e.Code, int(e.Modifiers))
		}
	}

	return sb.String()
}

func writeFields(sb *strings.Builder, fields ...int) {
	for _, f := range fields {
		sb.WriteString(strconv.Itoa(f))
		sb.WriteByte('|')
	}
}

// ParseBatchCount returns the record count announced at the head of a batch.
func ParseBatchCount(batch string) (int, error) {
	head, _, ok := strings.Cut(batch, "|")
	if !ok {
		return 0, fmt.Errorf("%w: missing count separator", ErrMalformedBatch)
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid count %q", ErrMalformedBatch, head)
	}
	return n, nil
}

// DecodeBatch parses a batch produced by EncodeBatch.
func DecodeBatch(batch string) ([]Event, error) {
	n, err := ParseBatchCount(batch)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(batch, "|")
	// drop count and the empty tail after the final separator
	fields = fields[1:]
	if len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}

	// every record takes at least keyboardRecordFields fields
	if n > len(fields)/keyboardRecordFields {
		return nil, fmt.Errorf("%w: count %d exceeds %d fields", ErrMalformedBatch, n, len(fields))
	}

	events := make([]Event, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		if pos >= len(fields) {
			return nil, fmt.Errorf("%w: expected %d records, got %d", ErrMalformedBatch, n, i)
		}
		t, err := strconv.Atoi(fields[pos])
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: invalid type %q", ErrMalformedBatch, i, fields[pos])
		}

		var width int
		switch EventType(t) {
		case EventTypeMouse:
			width = mouseRecordFields
		case EventTypeKeyboard:
			width = keyboardRecordFields
		default:
			return nil, fmt.Errorf("%w: record %d: unknown type %d", ErrMalformedBatch, i, t)
		}
		if pos+width > len(fields) {
			return nil, fmt.Errorf("%w: record %d truncated", ErrMalformedBatch, i)
		}

		vals := make([]int, width)
		for j := 0; j < width; j++ {
			v, err := strconv.Atoi(fields[pos+j])
			if err != nil {
				return nil, fmt.Errorf("%w: record %d field %d: %q", ErrMalformedBatch, i, j, fields[pos+j])
			}
			vals[j] = v
		}
		pos += width

		if EventType(t) == EventTypeMouse {
			events = append(events, NewMouseEvent(Kind(vals[1]), vals[2], vals[3], vals[4], Modifiers(vals[5])))
		} else {
			events = append(events, NewKeyboardEvent(Kind(vals[1]), vals[2], Modifiers(vals[3])))
		}
	}

	if pos != len(fields) {
		return nil, fmt.Errorf("%w: %d trailing fields", ErrMalformedBatch, len(fields)-pos)
	}

	return events, nil
}
