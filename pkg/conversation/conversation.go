// Package conversation is the client-side state machine that consumes the
// typed agent event sequence and maintains the displayable conversation
// state: finalized messages, the in-progress streaming buffer, the live tool
// trace, accumulated usage counters, and the pending-interrupt slot.
//
// Events are applied strictly in arrival order on a single goroutine. The
// per-turn accumulators (buffer, trace) are owned by the Conversation and
// reset when a turn begins; only the message list and usage counters survive
// across turns.
package conversation

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentforge-dev/agentforge/pkg/catalog"
	apperrors "github.com/agentforge-dev/agentforge/pkg/errors"
	"github.com/agentforge-dev/agentforge/pkg/events"
)

// Thinking-span delimiters. Text between them is internal reasoning and is
// never shown; an unterminated open delimiter hides everything after it
// until the close arrives.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

// Fallback texts used when a turn finalizes with an empty buffer.
const (
	FallbackEmptyReply = "I wasn't able to come up with a response. Please try again."
	FallbackTimeout    = "Request timed out. Please try again."
)

// ErrorPrefix marks server-reported errors inside the displayed buffer.
const ErrorPrefix = "⚠️ "

// Conversation reduces agent events into ordered UI state.
type Conversation struct {
	messages   []Message
	usage      Usage
	pending    *PendingInterrupt
	responding bool

	// Turn-scoped accumulators, reset by BeginTurn.
	raw   string
	trace []TraceItem

	toolLog ToolLog
	lookup  catalog.Lookup
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithToolLog forwards invocation lifecycle records to an external log.
func WithToolLog(l ToolLog) Option {
	return func(c *Conversation) { c.toolLog = l }
}

// WithCatalog decorates tool events with display metadata looked up by
// skill id when the stream did not carry any.
func WithCatalog(l catalog.Lookup) Option {
	return func(c *Conversation) { c.lookup = l }
}

// New creates an empty Conversation.
func New(opts ...Option) *Conversation {
	c := &Conversation{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddUserMessage appends a user entry immediately and returns it.
func (c *Conversation) AddUserMessage(text string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	c.messages = append(c.messages, msg)
	return msg
}

// BeginTurn transitions Idle -> Streaming: clears the turn accumulators and
// marks the agent as responding. It fails if a turn is already in flight;
// callers must serialize turns on the responding flag.
func (c *Conversation) BeginTurn() error {
	if c.responding {
		return apperrors.New(apperrors.ErrCodeTurnActive, "a turn is already in flight", nil)
	}
	c.raw = ""
	c.trace = nil
	c.responding = true
	return nil
}

// Apply consumes one event. Events must arrive in stream order; Apply never
// reorders. Events outside a turn are ignored.
func (c *Conversation) Apply(ev events.Event) {
	if !c.responding {
		return
	}

	switch e := ev.(type) {
	case events.Token:
		c.raw += e.Content

	case events.ToolStart:
		item := TraceItem{
			ID:     e.ID,
			Name:   e.Name,
			Icon:   e.Icon,
			Status: TraceRunning,
		}
		c.decorate(&item, e.SkillID)
		c.trace = append(c.trace, item)
		if c.toolLog != nil {
			c.toolLog.InvocationStarted(InvocationRecord{
				ID:     item.ID,
				Name:   item.Name,
				Icon:   item.Icon,
				Status: TraceRunning,
			})
		}

	case events.ToolEnd:
		// An end without a matching start is a malformed stream; degrade
		// to a no-op rather than crash.
		for i := range c.trace {
			if c.trace[i].ID == e.ID && c.trace[i].Status == TraceRunning {
				c.trace[i].Status = TraceDone
				c.trace[i].DurationMS = e.DurationMS
				if c.toolLog != nil {
					c.toolLog.InvocationFinished(InvocationRecord{
						ID:         c.trace[i].ID,
						Name:       c.trace[i].Name,
						Icon:       c.trace[i].Icon,
						Status:     TraceDone,
						DurationMS: e.DurationMS,
					})
				}
				break
			}
		}

	case events.Usage:
		c.usage.InputTokens += e.InputTokens
		c.usage.OutputTokens += e.OutputTokens
		c.usage.TotalTokens += e.TotalTokens
		c.usage.ReasoningTokens += e.ReasoningTokens

	case events.Interrupt:
		// Streaming -> AwaitingApproval. The buffer and trace stay frozen
		// as pending turn state; responding remains true to block input.
		c.pending = &PendingInterrupt{
			Actions:          append([]events.ActionRequest(nil), e.Actions...),
			AllowedDecisions: append([]string(nil), e.AllowedDecisions...),
		}

	case events.StreamError:
		// Server errors must stay visible even if a thinking span is
		// currently open; close it before appending.
		if hasUnterminatedThink(c.raw) {
			c.raw += ThinkClose
		}
		if c.raw != "" {
			c.raw += "\n"
		}
		c.raw += ErrorPrefix + e.Message

	case events.Done:
		c.pending = nil
		c.finalizeTurn(FallbackEmptyReply)
	}
}

// EndTurn closes out a turn after its stream returns. A nil error with a
// pending interrupt leaves the machine in AwaitingApproval; anything else
// finalizes exactly one agent message. Calling it after Done already
// finalized is a no-op.
func (c *Conversation) EndTurn(err error) {
	if !c.responding {
		return
	}
	if err == nil && c.pending != nil {
		// Stream ended because the server paused for approval.
		return
	}

	fallback := FallbackEmptyReply
	if err != nil && apperrors.IsAborted(err) {
		fallback = FallbackTimeout
	}
	// A transport failure kills the turn even if an interrupt was pending;
	// leaving responding set would wedge the UI.
	c.pending = nil
	c.finalizeTurn(fallback)
}

// Resume transitions AwaitingApproval -> Streaming: it clears the pending
// interrupt and returns it so the caller can issue the approval request.
// The frozen buffer and trace carry into the resumed turn. Returns false if
// no interrupt is pending.
func (c *Conversation) Resume() (PendingInterrupt, bool) {
	if c.pending == nil {
		return PendingInterrupt{}, false
	}
	p := *c.pending
	c.pending = nil
	return p, true
}

// Messages returns the finalized message list in order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Usage returns the accumulated session token counters.
func (c *Conversation) Usage() Usage {
	return c.usage
}

// Pending returns the pending interrupt, if any.
func (c *Conversation) Pending() (PendingInterrupt, bool) {
	if c.pending == nil {
		return PendingInterrupt{}, false
	}
	return *c.pending, true
}

// Responding reports whether a turn is in flight (including awaiting an
// approval decision). The UI must not send while this is true.
func (c *Conversation) Responding() bool {
	return c.responding
}

// Displayed derives the visible streaming buffer: the raw buffer with
// thinking spans stripped. An unterminated span is provisionally stripped to
// the end of the buffer so partial reasoning is never shown.
func (c *Conversation) Displayed() string {
	return stripThinking(c.raw)
}

// Trace returns the live trace list for the current turn.
func (c *Conversation) Trace() []TraceItem {
	out := make([]TraceItem, len(c.trace))
	copy(out, c.trace)
	return out
}

func (c *Conversation) finalizeTurn(fallback string) {
	content := strings.TrimSpace(stripThinking(c.raw))
	if content == "" {
		content = fallback
	}

	var frozen []TraceItem
	if len(c.trace) > 0 {
		frozen = make([]TraceItem, len(c.trace))
		copy(frozen, c.trace)
	}

	c.messages = append(c.messages, Message{
		ID:        uuid.NewString(),
		Role:      RoleAgent,
		Content:   content,
		Timestamp: time.Now(),
		Trace:     frozen,
	})

	c.raw = ""
	c.trace = nil
	c.responding = false
}

func (c *Conversation) decorate(item *TraceItem, skillID string) {
	if c.lookup == nil || skillID == "" {
		return
	}
	s, ok := c.lookup.SkillByID(skillID)
	if !ok {
		return
	}
	if item.Name == "" || item.Name == events.FallbackToolName {
		item.Name = s.Name
	}
	if item.Icon == "" || item.Icon == events.FallbackToolIcon {
		item.Icon = s.Icon
	}
}

// stripThinking removes every delimited thinking span. When an open
// delimiter has no matching close yet, everything from it to the end of the
// buffer is stripped. The scan is greedy by design: a literal delimiter in
// ordinary content will be treated as a real span boundary.
func stripThinking(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, ThinkOpen)
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		rest := s[i+len(ThinkOpen):]
		j := strings.Index(rest, ThinkClose)
		if j < 0 {
			break
		}
		s = rest[j+len(ThinkClose):]
	}
	return b.String()
}

func hasUnterminatedThink(s string) bool {
	i := strings.LastIndex(s, ThinkOpen)
	if i < 0 {
		return false
	}
	return !strings.Contains(s[i:], ThinkClose)
}
