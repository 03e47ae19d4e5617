package server

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/agentforge-dev/agentforge/pkg/catalog"
)

// Display truncation limits for tool input/output, matching what the chat
// panel can show inline.
const (
	maxInputDisplay  = 200
	maxOutputDisplay = 300
)

// scriptChat produces the event sequence for one chat turn. The demo agent
// is deterministic: it "thinks", invokes every enabled skill the message
// mentions, and echoes a reply. When human-in-the-loop review gates one of
// the invocations, the turn pauses with an interrupt instead.
func (s *Server) scriptChat(sess *Session, message string) []event {
	invoked := invokedSkills(sess, message)

	if gated := gatedSkills(sess, invoked); len(gated) > 0 {
		actions := make([]Action, 0, len(gated))
		requests := make([]map[string]interface{}, 0, len(gated))
		for _, sk := range gated {
			actions = append(actions, Action{
				SkillID: sk.ID,
				Args:    map[string]interface{}{"input": truncate(message, maxInputDisplay)},
			})
			requests = append(requests, map[string]interface{}{
				"name": sk.Name,
				"args": map[string]interface{}{"input": truncate(message, maxInputDisplay)},
			})
		}
		s.store.ParkActions(sess.ID, actions)

		return []event{{
			name: "interrupt",
			payload: map[string]interface{}{
				"action_requests": requests,
				"review_configs": []map[string]interface{}{
					{"allowed_decisions": []string{"approve", "reject", "edit"}},
				},
			},
		}}
	}

	var evs []event
	think := fmt.Sprintf("<think>The user asked %q; responding with %d skill(s) available.</think>",
		truncate(message, maxInputDisplay), len(invoked))
	evs = append(evs, tokenEvents(think)...)
	evs = append(evs, s.toolEvents(invoked, message)...)
	evs = append(evs, tokenEvents(s.reply(sess, message, len(invoked)))...)
	evs = append(evs, usageEvent(message, think), event{name: "done", payload: map[string]interface{}{}})
	return evs
}

// scriptApproval resumes an interrupted turn with the caller's decision.
func (s *Server) scriptApproval(sess *Session, actions []Action, decision string, editedArgs map[string]interface{}) []event {
	var evs []event

	switch decision {
	case "reject":
		evs = append(evs, tokenEvents("Understood, I won't run that.")...)

	case "approve", "edit":
		var invoked []catalog.Skill
		for _, a := range actions {
			sk, ok := catalog.SkillByID(a.SkillID)
			if !ok {
				continue
			}
			input := stringArg(a.Args, "input")
			if decision == "edit" {
				if v := stringArg(editedArgs, "input"); v != "" {
					input = v
				}
			}
			evs = append(evs, s.toolEvents([]catalog.Skill{sk}, input)...)
			invoked = append(invoked, sk)
		}
		evs = append(evs, tokenEvents(s.reply(sess, "the approved request", len(invoked)))...)

	default:
		evs = append(evs, event{
			name:    "error",
			payload: map[string]interface{}{"message": fmt.Sprintf("unknown decision %q", decision)},
		})
	}

	evs = append(evs, usageEvent(decision, ""), event{name: "done", payload: map[string]interface{}{}})
	return evs
}

func (s *Server) reply(sess *Session, message string, toolCount int) string {
	model, _ := catalog.ModelByID(sess.ModelID)
	reply := fmt.Sprintf("Here's what I've got on %q.", truncate(strings.TrimSpace(message), maxInputDisplay))
	if toolCount > 0 {
		reply += fmt.Sprintf(" I consulted %d tool(s) along the way.", toolCount)
	}
	if model.Name != "" {
		reply += fmt.Sprintf(" (%s)", model.Name)
	}
	return reply
}

func (s *Server) toolEvents(skills []catalog.Skill, input string) []event {
	var evs []event
	for i, sk := range skills {
		id := uuid.NewString()
		duration := 40 + 25*i // scripted, deterministic
		evs = append(evs,
			event{name: "tool_start", payload: map[string]interface{}{
				"id":      id,
				"name":    sk.Name,
				"skillId": sk.ID,
				"icon":    sk.Icon,
				"action":  sk.Action,
				"input":   truncate(input, maxInputDisplay),
			}},
			event{name: "tool_end", payload: map[string]interface{}{
				"id":       id,
				"name":     sk.Name,
				"output":   truncate(fmt.Sprintf("%s completed for: %s", sk.Name, input), maxOutputDisplay),
				"duration": duration,
			}},
		)
	}
	return evs
}

// invokedSkills returns the enabled skills the message mentions by id.
func invokedSkills(sess *Session, message string) []catalog.Skill {
	lower := strings.ToLower(message)
	var out []catalog.Skill
	for _, id := range sess.SkillIDs {
		sk, ok := catalog.SkillByID(id)
		if !ok {
			continue
		}
		if strings.Contains(lower, strings.ToLower(sk.ID)) {
			out = append(out, sk)
		}
	}
	return out
}

// gatedSkills returns the invoked skills that need approval: review is
// enabled and the skill's sandbox is off.
func gatedSkills(sess *Session, invoked []catalog.Skill) []catalog.Skill {
	if !sess.HITLEnabled {
		return nil
	}
	var out []catalog.Skill
	for _, sk := range invoked {
		if !sess.SandboxMap[sk.ID] {
			out = append(out, sk)
		}
	}
	return out
}

// tokenEvents splits text into word-sized token frames, preserving spacing.
func tokenEvents(text string) []event {
	var evs []event
	for len(text) > 0 {
		i := strings.IndexByte(text, ' ')
		var chunk string
		if i < 0 {
			chunk, text = text, ""
		} else {
			chunk, text = text[:i+1], text[i+1:]
		}
		evs = append(evs, event{name: "token", payload: map[string]interface{}{"content": chunk}})
	}
	return evs
}

func usageEvent(message, think string) event {
	input := len(strings.Fields(message)) + 12
	reasoning := len(strings.Fields(think))
	output := reasoning + 24
	return event{name: "usage", payload: map[string]interface{}{
		"input_tokens":     input,
		"output_tokens":    output,
		"total_tokens":     input + output,
		"reasoning_tokens": reasoning,
	}}
}

// truncate cuts s to at most max bytes, backing off to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func stringArg(args map[string]interface{}, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}
