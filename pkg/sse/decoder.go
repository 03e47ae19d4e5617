// Package sse decodes a server-sent-event text stream into discrete frames.
//
// The decoder is chunk-oriented: callers feed it pieces of the response body
// as they arrive off the wire, with no guarantee that a piece ends on a frame
// boundary. Complete frames are returned as they become available; partial
// data stays buffered until the next chunk.
package sse

import "strings"

// Frame is one complete event block from the stream: a type label and a raw
// payload. The payload is not parsed here.
type Frame struct {
	Event string
	Data  string
}

// Decoder accumulates stream chunks and splits them into frames. Frames are
// delimited by a blank line. Within a frame, "event:" and "data:" lines carry
// the label and payload; every other line (comments, keep-alives) is ignored.
//
// A frame missing either the label or the payload is dropped silently. The
// transport carries keep-alive comment traffic, so incomplete blocks are
// expected and are not errors.
type Decoder struct {
	buf strings.Builder
}

// NewDecoder creates a new Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk to the internal buffer and returns all frames that are
// now complete, in stream order. A frame split across chunk boundaries is
// emitted exactly once, when its terminating blank line arrives.
func (d *Decoder) Feed(chunk string) []Frame {
	d.buf.WriteString(chunk)
	s := d.buf.String()

	// A trailing CR may be the first half of a CRLF pair split across
	// chunks. Hold it back until the next chunk resolves it.
	hold := ""
	if strings.HasSuffix(s, "\r") {
		hold = "\r"
		s = s[:len(s)-1]
	}
	s = normalizeNewlines(s)

	var frames []Frame
	for {
		i := strings.Index(s, "\n\n")
		if i < 0 {
			break
		}
		if f, ok := parseBlock(s[:i]); ok {
			frames = append(frames, f)
		}
		s = s[i+2:]
	}

	d.buf.Reset()
	d.buf.WriteString(s)
	d.buf.WriteString(hold)
	return frames
}

// Flush parses whatever remains in the buffer as a final frame. Streams are
// not required to terminate the last frame with a blank line, so callers
// should Flush once at end of stream.
func (d *Decoder) Flush() (Frame, bool) {
	s := normalizeNewlines(d.buf.String())
	d.buf.Reset()
	return parseBlock(s)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// parseBlock scans one blank-line-delimited block for its label and payload.
// Multiple data lines are joined with a newline, per the SSE wire format.
func parseBlock(block string) (Frame, bool) {
	var (
		event    string
		data     []string
		hasEvent bool
		hasData  bool
	)

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			event = trimFieldValue(line[len("event:"):])
			hasEvent = true
		case strings.HasPrefix(line, "data:"):
			data = append(data, trimFieldValue(line[len("data:"):]))
			hasData = true
		}
	}

	if !hasEvent || !hasData {
		return Frame{}, false
	}
	return Frame{Event: event, Data: strings.Join(data, "\n")}, true
}

// trimFieldValue removes the single optional space after the field colon.
func trimFieldValue(v string) string {
	return strings.TrimPrefix(v, " ")
}
