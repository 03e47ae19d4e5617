package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentforge-dev/agentforge/pkg/client"
	"github.com/agentforge-dev/agentforge/pkg/conversation"
	"github.com/agentforge-dev/agentforge/pkg/events"
)

func newTestServer(t *testing.T) (*httptest.Server, *client.Client) {
	t.Helper()
	srv := New(&Config{
		KeepAliveInterval: time.Minute,
		TokenDelay:        0,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, client.New(ts.URL)
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"ok"`)
}

func TestCreateSession_ValidatesAgainstCatalog(t *testing.T) {
	_, c := newTestServer(t)

	_, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{
		ModelID:  "gpt-17",
		SkillIDs: []string{"websearch", "teleport"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpt-17")
	assert.Contains(t, err.Error(), "teleport")
}

func TestChatTurn_EndToEnd(t *testing.T) {
	_, c := newTestServer(t)

	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{
		ModelID:  "llama",
		SkillIDs: []string{"websearch"},
	})
	require.NoError(t, err)

	conv := conversation.New()
	conv.AddUserMessage("try a websearch for me")
	require.NoError(t, conv.BeginTurn())

	err = c.SendMessage(context.Background(), id, "try a websearch for me", conv.Apply)
	require.NoError(t, err)
	conv.EndTurn(nil)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleAgent, msgs[1].Role)
	assert.NotEmpty(t, msgs[1].Content)
	assert.NotContains(t, msgs[1].Content, "<think>", "thinking spans must never be displayed")

	// The websearch skill was mentioned, so exactly one invocation ran.
	require.Len(t, msgs[1].Trace, 1)
	assert.Equal(t, conversation.TraceDone, msgs[1].Trace[0].Status)

	u := conv.Usage()
	assert.Positive(t, u.InputTokens)
	assert.Positive(t, u.OutputTokens)
	assert.Positive(t, u.ReasoningTokens)
	assert.Equal(t, u.InputTokens+u.OutputTokens, u.TotalTokens)
	assert.False(t, conv.Responding())
}

func TestChat_UnknownSessionSynthesizesErrorEvent(t *testing.T) {
	_, c := newTestServer(t)

	var got []events.Event
	err := c.SendMessage(context.Background(), "nope", "hi", func(ev events.Event) {
		got = append(got, ev)
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	se, ok := got[0].(events.StreamError)
	require.True(t, ok)
	assert.Contains(t, se.Message, "session not found")
}

func TestInterruptFlow_Approve(t *testing.T) {
	_, c := newTestServer(t)

	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{
		ModelID:     "nemotron",
		SkillIDs:    []string{"codeinterpreter"},
		HITLEnabled: true,
		SandboxMap:  map[string]bool{"codeinterpreter": false},
	})
	require.NoError(t, err)

	conv := conversation.New()
	require.NoError(t, conv.BeginTurn())

	err = c.SendMessage(context.Background(), id, "run this with codeinterpreter", conv.Apply)
	require.NoError(t, err)
	conv.EndTurn(nil)

	// Turn paused: no message, input still blocked.
	assert.Empty(t, conv.Messages())
	assert.True(t, conv.Responding())

	pending, ok := conv.Resume()
	require.True(t, ok)
	require.Len(t, pending.Actions, 1)
	assert.Equal(t, []string{"approve", "reject", "edit"}, pending.AllowedDecisions)

	err = c.SendApproval(context.Background(), id, client.Decision{Decision: "approve"}, conv.Apply)
	require.NoError(t, err)
	conv.EndTurn(nil)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleAgent, msgs[0].Role)
	require.Len(t, msgs[0].Trace, 1, "approved action ran as a tool")
	assert.False(t, conv.Responding())
}

func TestInterruptFlow_Reject(t *testing.T) {
	_, c := newTestServer(t)

	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{
		ModelID:     "llama",
		SkillIDs:    []string{"database"},
		HITLEnabled: true,
		SandboxMap:  map[string]bool{},
	})
	require.NoError(t, err)

	conv := conversation.New()
	require.NoError(t, conv.BeginTurn())
	require.NoError(t, c.SendMessage(context.Background(), id, "drop the database", conv.Apply))
	conv.EndTurn(nil)

	_, ok := conv.Resume()
	require.True(t, ok)

	require.NoError(t, c.SendApproval(context.Background(), id, client.Decision{Decision: "reject"}, conv.Apply))
	conv.EndTurn(nil)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "won't run")
	assert.Empty(t, msgs[0].Trace)
}

func TestApprove_NoPendingApproval(t *testing.T) {
	ts, c := newTestServer(t)

	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{ModelID: "llama"})
	require.NoError(t, err)

	resp, err := http.Post(
		ts.URL+"/api/agent/"+id+"/approve",
		"application/json",
		strings.NewReader(`{"decision":"approve"}`),
	)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDeleteSession_ThenChatFails(t *testing.T) {
	_, c := newTestServer(t)

	id, err := c.CreateSession(context.Background(), &client.CreateSessionRequest{ModelID: "llama"})
	require.NoError(t, err)

	c.DeleteSession(context.Background(), id)

	var got []events.Event
	require.NoError(t, c.SendMessage(context.Background(), id, "hello?", func(ev events.Event) {
		got = append(got, ev)
	}))
	require.Len(t, got, 1)
	_, ok := got[0].(events.StreamError)
	assert.True(t, ok)
}

func TestScriptChat_NoSkillsMentioned(t *testing.T) {
	srv := New(&Config{KeepAliveInterval: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sess := srv.store.Create("llama", []string{"websearch"}, false, nil)

	evs := srv.scriptChat(sess, "just chatting")

	var names []string
	for _, ev := range evs {
		names = append(names, ev.name)
	}
	assert.NotContains(t, names, "tool_start")
	assert.NotContains(t, names, "interrupt")
	assert.Equal(t, "done", names[len(names)-1])
}

func TestScriptApproval_UnknownDecision(t *testing.T) {
	srv := New(&Config{KeepAliveInterval: time.Minute}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	sess := srv.store.Create("llama", nil, true, nil)

	evs := srv.scriptApproval(sess, []Action{{SkillID: "websearch"}}, "maybe", nil)

	require.NotEmpty(t, evs)
	assert.Equal(t, "error", evs[0].name)
	assert.Equal(t, "done", evs[len(evs)-1].name)
}
