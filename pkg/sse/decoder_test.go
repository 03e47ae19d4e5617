package sse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validStream = "event: token\ndata: {\"content\":\"Hello\"}\n\n" +
	"event: tool_start\ndata: {\"id\":\"t1\",\"name\":\"grep\"}\n\n" +
	"event: tool_end\ndata: {\"id\":\"t1\",\"duration\":120}\n\n" +
	"event: done\ndata: {}\n\n"

var validFrames = []Frame{
	{Event: "token", Data: `{"content":"Hello"}`},
	{Event: "tool_start", Data: `{"id":"t1","name":"grep"}`},
	{Event: "tool_end", Data: `{"id":"t1","duration":120}`},
	{Event: "done", Data: `{}`},
}

func decodeAll(d *Decoder, chunks []string) []Frame {
	var frames []Frame
	for _, c := range chunks {
		frames = append(frames, d.Feed(c)...)
	}
	if f, ok := d.Flush(); ok {
		frames = append(frames, f)
	}
	return frames
}

func TestDecoder_WholeStream(t *testing.T) {
	d := NewDecoder()
	frames := decodeAll(d, []string{validStream})
	assert.Equal(t, validFrames, frames)
}

func TestDecoder_AnyChunking(t *testing.T) {
	// Splitting the stream at every possible single boundary must yield the
	// same frame sequence as decoding it whole.
	for i := 1; i < len(validStream); i++ {
		d := NewDecoder()
		frames := decodeAll(d, []string{validStream[:i], validStream[i:]})
		require.Equal(t, validFrames, frames, "split at byte %d", i)
	}
}

func TestDecoder_ByteAtATime(t *testing.T) {
	d := NewDecoder()
	var chunks []string
	for _, b := range []byte(validStream) {
		chunks = append(chunks, string(b))
	}
	assert.Equal(t, validFrames, decodeAll(d, chunks))
}

func TestDecoder_CRLFNormalization(t *testing.T) {
	crlf := strings.ReplaceAll(validStream, "\n", "\r\n")
	d := NewDecoder()
	assert.Equal(t, validFrames, decodeAll(d, []string{crlf}))
}

func TestDecoder_CRLFSplitAcrossChunks(t *testing.T) {
	crlf := strings.ReplaceAll(validStream, "\n", "\r\n")
	for i := 1; i < len(crlf); i++ {
		d := NewDecoder()
		frames := decodeAll(d, []string{crlf[:i], crlf[i:]})
		require.Equal(t, validFrames, frames, "split at byte %d", i)
	}
}

func TestDecoder_BareCRNewlines(t *testing.T) {
	cr := strings.ReplaceAll(validStream, "\n", "\r")
	d := NewDecoder()
	assert.Equal(t, validFrames, decodeAll(d, []string{cr}))
}

func TestDecoder_CommentLinesIgnored(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"event: token\n: mid-frame comment\ndata: {\"content\":\"hi\"}\n\n" +
		": another keep-alive\n\n"
	d := NewDecoder()
	frames := decodeAll(d, []string{stream})
	assert.Equal(t, []Frame{{Event: "token", Data: `{"content":"hi"}`}}, frames)
}

func TestDecoder_MissingLabelDropped(t *testing.T) {
	stream := "data: {\"content\":\"orphan\"}\n\n" + // no event label
		"event: token\n\n" + // no data
		"event: token\ndata: {\"content\":\"kept\"}\n\n"
	d := NewDecoder()
	frames := decodeAll(d, []string{stream})
	assert.Equal(t, []Frame{{Event: "token", Data: `{"content":"kept"}`}}, frames)
}

func TestDecoder_MultipleDataLinesJoined(t *testing.T) {
	stream := "event: token\ndata: line1\ndata: line2\n\n"
	d := NewDecoder()
	frames := decodeAll(d, []string{stream})
	require.Len(t, frames, 1)
	assert.Equal(t, "line1\nline2", frames[0].Data)
}

func TestDecoder_UnterminatedFinalFrameFlushed(t *testing.T) {
	// Last frame has no trailing blank line; Flush must recover it.
	stream := "event: token\ndata: {\"content\":\"a\"}\n\nevent: done\ndata: {}"
	d := NewDecoder()
	frames := decodeAll(d, []string{stream})
	assert.Equal(t, []Frame{
		{Event: "token", Data: `{"content":"a"}`},
		{Event: "done", Data: `{}`},
	}, frames)
}

func TestDecoder_FlushEmptyBuffer(t *testing.T) {
	d := NewDecoder()
	_, ok := d.Flush()
	assert.False(t, ok)
}

func TestDecoder_NoSpaceAfterColon(t *testing.T) {
	stream := "event:token\ndata:{\"content\":\"x\"}\n\n"
	d := NewDecoder()
	frames := decodeAll(d, []string{stream})
	assert.Equal(t, []Frame{{Event: "token", Data: `{"content":"x"}`}}, frames)
}

func TestDecoder_NoDuplicateAcrossBoundary(t *testing.T) {
	// The blank-line delimiter itself straddles the chunk boundary.
	a := "event: token\ndata: {\"content\":\"once\"}\n"
	b := "\nevent: done\ndata: {}\n\n"
	d := NewDecoder()
	frames := decodeAll(d, []string{a, b})
	assert.Equal(t, []Frame{
		{Event: "token", Data: `{"content":"once"}`},
		{Event: "done", Data: `{}`},
	}, frames)
}
