// Package sse reads server-sent events from a response body.
package sse

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// Event represents a single server-sent event.
type Event struct {
	// Event is the SSE event type (from "event:" line). Empty for data-only events.
	Event string
	// Data is the event payload (from "data:" line(s)). Multi-line data is joined with newlines.
	Data string
	// ID is the event ID (from "id:" line).
	ID string
	// Retry is the reconnection delay the server asked for, if any.
	Retry time.Duration
}

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next SSE event. Returns io.EOF when the stream ends.
	Next() (*Event, error)
}

type reader struct {
	scanner *bufio.Scanner
}

// maxLine bounds a single SSE line.
const maxLine = 1 << 20

// NewReader creates an SSE reader over r.
func NewReader(r io.Reader) Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLine)
	return &reader{scanner: s}
}

// Next returns the next SSE event. Returns io.EOF when the stream ends.
func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line signals end of event
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}

		// Skip comments
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				event.Retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended; return the last event if present
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// parseLine parses a single SSE line into field and value.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	// A single space after the colon is not part of the value.
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
