// Package events defines the typed agent event union and the mapper that
// translates raw stream frames into it.
package events

// Type identifies the kind of agent event.
type Type string

const (
	TypeToken     Type = "token"
	TypeToolStart Type = "tool_start"
	TypeToolEnd   Type = "tool_end"
	TypeUsage     Type = "usage"
	TypeInterrupt Type = "interrupt"
	TypeError     Type = "error"
	TypeDone      Type = "done"
)

// Event is the closed union of agent events. Each variant carries only the
// fields its type defines, so consumers can switch over the concrete types
// exhaustively.
type Event interface {
	Kind() Type
}

// Token is an incremental text fragment of the in-progress reply.
type Token struct {
	Content string
}

func (Token) Kind() Type { return TypeToken }

// ToolStart marks the beginning of a tool invocation. ID is unique within
// the session and pairs this event with a later ToolEnd.
type ToolStart struct {
	ID      string
	SkillID string
	Name    string
	Icon    string
	Action  string
	Input   string
}

func (ToolStart) Kind() Type { return TypeToolStart }

// ToolEnd completes a prior ToolStart with the same ID.
type ToolEnd struct {
	ID         string
	Name       string
	Output     string
	DurationMS int
	Status     string
}

func (ToolEnd) Kind() Type { return TypeToolEnd }

// Usage is a token-accounting increment for the current turn. Reasoning
// tokens are a subset of output tokens, reported separately for display.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	TotalTokens     int
	ReasoningTokens int
}

func (Usage) Kind() Type { return TypeUsage }

// ActionRequest is one side-effecting action the server wants approved.
type ActionRequest struct {
	Name string
	Args map[string]interface{}
}

// Interrupt signals that the server paused before executing side-effecting
// actions and is waiting for a decision.
type Interrupt struct {
	Actions          []ActionRequest
	AllowedDecisions []string
}

func (Interrupt) Kind() Type { return TypeInterrupt }

// StreamError is a server-reported failure. It does not terminate the stream.
type StreamError struct {
	Message string
}

func (StreamError) Kind() Type { return TypeError }

// Done is the explicit end-of-turn marker.
type Done struct{}

func (Done) Kind() Type { return TypeDone }
