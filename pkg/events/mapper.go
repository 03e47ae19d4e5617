package events

import "encoding/json"

// Fallback tool metadata substituted when a tool_start arrives without a
// display name or icon.
const (
	FallbackToolName = "tool"
	FallbackToolIcon = "🔧"
)

// Default decisions offered when an interrupt omits its review config.
var defaultDecisions = []string{"approve", "reject"}

// Map translates one frame (type label plus raw JSON payload) into a typed
// event. It is a pure function: no I/O, no state. Unknown labels and payloads
// that fail to parse are skipped by returning ok=false; the stream continues
// without them.
func Map(label, payload string) (Event, bool) {
	switch Type(label) {
	case TypeToken:
		var p struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		return Token{Content: p.Content}, true

	case TypeToolStart:
		var p struct {
			ID      string `json:"id"`
			SkillID string `json:"skillId"`
			Name    string `json:"name"`
			Icon    string `json:"icon"`
			Action  string `json:"action"`
			Input   string `json:"input"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		ev := ToolStart{
			ID:      p.ID,
			SkillID: p.SkillID,
			Name:    p.Name,
			Icon:    p.Icon,
			Action:  p.Action,
			Input:   p.Input,
		}
		if ev.Name == "" {
			ev.Name = FallbackToolName
		}
		if ev.Icon == "" {
			ev.Icon = FallbackToolIcon
		}
		return ev, true

	case TypeToolEnd:
		var p struct {
			ID       string  `json:"id"`
			Name     string  `json:"name"`
			Output   string  `json:"output"`
			Duration float64 `json:"duration"`
			Status   string  `json:"status"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		ev := ToolEnd{
			ID:         p.ID,
			Name:       p.Name,
			Output:     p.Output,
			DurationMS: int(p.Duration),
			Status:     p.Status,
		}
		if ev.Status == "" {
			ev.Status = "success"
		}
		return ev, true

	case TypeUsage:
		var p struct {
			InputTokens     float64 `json:"input_tokens"`
			OutputTokens    float64 `json:"output_tokens"`
			TotalTokens     float64 `json:"total_tokens"`
			ReasoningTokens float64 `json:"reasoning_tokens"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		return Usage{
			InputTokens:     int(p.InputTokens),
			OutputTokens:    int(p.OutputTokens),
			TotalTokens:     int(p.TotalTokens),
			ReasoningTokens: int(p.ReasoningTokens),
		}, true

	case TypeInterrupt:
		var p struct {
			ActionRequests []struct {
				Name string                 `json:"name"`
				Args map[string]interface{} `json:"args"`
			} `json:"action_requests"`
			ReviewConfigs []struct {
				AllowedDecisions []string `json:"allowed_decisions"`
			} `json:"review_configs"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		ev := Interrupt{}
		for _, ar := range p.ActionRequests {
			ev.Actions = append(ev.Actions, ActionRequest{Name: ar.Name, Args: ar.Args})
		}
		if len(p.ReviewConfigs) > 0 && len(p.ReviewConfigs[0].AllowedDecisions) > 0 {
			ev.AllowedDecisions = append(ev.AllowedDecisions, p.ReviewConfigs[0].AllowedDecisions...)
		} else {
			ev.AllowedDecisions = append(ev.AllowedDecisions, defaultDecisions...)
		}
		return ev, true

	case TypeError:
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		return StreamError{Message: p.Message}, true

	case TypeDone:
		var p map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, false
		}
		return Done{}, true
	}

	return nil, false
}
