package conversation

import (
	"time"

	"github.com/agentforge-dev/agentforge/pkg/events"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// TraceStatus is the display status of one tool invocation.
type TraceStatus string

const (
	TraceRunning TraceStatus = "running"
	TraceDone    TraceStatus = "done"
)

// TraceItem is a compact per-turn projection of one tool invocation for
// inline display.
type TraceItem struct {
	ID         string
	Name       string
	Icon       string
	Status     TraceStatus
	DurationMS int
}

// Message is a finalized conversation entry. It is never mutated after
// creation; the trace list is attached at creation time and frozen.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Trace     []TraceItem
}

// Usage holds the monotonically accumulating token counters for the session.
// Reasoning tokens are a subset of output tokens.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	ReasoningTokens int
}

// PendingInterrupt records a server-initiated pause awaiting a decision.
// At most one exists per session.
type PendingInterrupt struct {
	Actions          []events.ActionRequest
	AllowedDecisions []string
}

// InvocationRecord is the shape forwarded to an external tool-call log for
// each invocation start and finish.
type InvocationRecord struct {
	ID         string
	Name       string
	Icon       string
	Status     TraceStatus
	DurationMS int
}

// ToolLog receives invocation lifecycle records, keyed by invocation id.
// Implementations render the tool-call panel; the reducer only emits.
type ToolLog interface {
	InvocationStarted(rec InvocationRecord)
	InvocationFinished(rec InvocationRecord)
}
