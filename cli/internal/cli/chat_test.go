package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/briandowns/spinner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge-dev/agentforge/internal/server"
	"github.com/agentforge-dev/agentforge/pkg/catalog"
	"github.com/agentforge-dev/agentforge/pkg/client"
	"github.com/agentforge-dev/agentforge/pkg/conversation"
	"github.com/agentforge-dev/agentforge/pkg/events"
)

func newTestChatSession(out io.Writer) *chatSession {
	return &chatSession{
		conv: conversation.New(conversation.WithCatalog(catalog.Static{})),
		out:  out,
		spin: spinner.New(spinner.CharSets[14], 10*time.Millisecond, spinner.WithWriter(io.Discard)),
	}
}

func TestAllowed(t *testing.T) {
	decisions := []string{"approve", "reject", "edit"}

	assert.True(t, allowed(decisions, "approve"))
	assert.True(t, allowed(decisions, "edit"))
	assert.False(t, allowed(decisions, "maybe"))
	assert.False(t, allowed(nil, "approve"))
}

func TestTracePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := &tracePrinter{out: &buf}

	p.InvocationStarted(conversation.InvocationRecord{Name: "Web Search", Icon: "🌐"})
	p.InvocationFinished(conversation.InvocationRecord{Name: "Web Search", Icon: "🌐", DurationMS: 120})

	out := buf.String()
	assert.Contains(t, out, "Web Search running")
	assert.Contains(t, out, "done (120ms)")
}

func TestPrintReply_FallbackWhenNothingStreamed(t *testing.T) {
	var buf bytes.Buffer
	cs := &chatSession{
		conv: conversation.New(),
		out:  &buf,
	}

	require.NoError(t, cs.conv.BeginTurn())
	cs.conv.Apply(events.Done{})
	cs.printReply()

	assert.Contains(t, buf.String(), conversation.FallbackEmptyReply)
}

func TestOnEvent_SplitThinkDelimiterNeverLeaks(t *testing.T) {
	var buf bytes.Buffer
	cs := newTestChatSession(&buf)

	require.NoError(t, cs.conv.BeginTurn())
	for _, tok := range []string{"A<th", "ink>hidden</think>", "C"} {
		cs.onEvent(events.Token{Content: tok})
	}
	cs.onEvent(events.Done{})
	cs.printReply()

	msgs := cs.conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "AC", msgs[0].Content)

	out := buf.String()
	assert.NotContains(t, out, "<th", "delimiter fragment must be held back")
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "AC", "visible text after the span must still be mirrored")
}

func TestHoldPartialDelimiter(t *testing.T) {
	assert.Equal(t, "A", holdPartialDelimiter("A<th"))
	assert.Equal(t, "A", holdPartialDelimiter("A<"))
	assert.Equal(t, "AB", holdPartialDelimiter("AB"))
	assert.Equal(t, "", holdPartialDelimiter(""))
	// A complete delimiter is the reducer's to strip, not ours to hold.
	assert.Equal(t, "A<think>", holdPartialDelimiter("A<think>"))
}

// slowReader delays its first read, standing in for a user who takes a while
// to answer an approval prompt.
type slowReader struct {
	delay time.Duration
	r     io.Reader
	once  sync.Once
}

func (s *slowReader) Read(p []byte) (int, error) {
	s.once.Do(func() { time.Sleep(s.delay) })
	return s.r.Read(p)
}

func TestRunTurn_SlowApprovalDecisionDoesNotExpireTurn(t *testing.T) {
	srv := server.New(&server.Config{KeepAliveInterval: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	c := client.New(ts.URL)
	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{
		ModelID:     "llama",
		SkillIDs:    []string{"websearch"},
		HITLEnabled: true,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	cs := newTestChatSession(&buf)
	cs.client = c
	cs.sessionID = id
	cs.opts = &chatOptions{timeout: 150 * time.Millisecond}
	// Deciding takes longer than the whole per-send deadline.
	cs.in = bufio.NewScanner(&slowReader{
		delay: 400 * time.Millisecond,
		r:     strings.NewReader("approve\n"),
	})

	cs.runTurn(context.Background(), "use websearch for this")

	msgs := cs.conv.Messages()
	require.Len(t, msgs, 2)
	last := msgs[1]
	assert.Equal(t, conversation.RoleAgent, last.Role)
	assert.NotEqual(t, conversation.FallbackTimeout, last.Content)
	require.Len(t, last.Trace, 1, "approved action ran after the slow decision")
	assert.False(t, cs.conv.Responding())
}

func TestPrintUsage_RendersCounters(t *testing.T) {
	var buf bytes.Buffer
	cs := &chatSession{
		conv: conversation.New(),
		out:  &buf,
	}

	require.NoError(t, cs.conv.BeginTurn())
	cs.conv.Apply(events.Usage{InputTokens: 10, OutputTokens: 20, TotalTokens: 30, ReasoningTokens: 5})
	cs.conv.Apply(events.Done{})
	cs.printUsage()

	out := buf.String()
	assert.Contains(t, out, "30")
	assert.Contains(t, out, "reasoning")
}
