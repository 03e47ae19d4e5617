package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentforge-dev/agentforge/pkg/catalog"
	"github.com/agentforge-dev/agentforge/pkg/client"
	"github.com/agentforge-dev/agentforge/pkg/conversation"
	apperrors "github.com/agentforge-dev/agentforge/pkg/errors"
	"github.com/agentforge-dev/agentforge/pkg/events"
)

const replyWidth = 80

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	traceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
)

type chatOptions struct {
	modelID    string
	skillIDs   []string
	hitl       bool
	sandboxRaw map[string]string
	timeout    time.Duration
}

// NewChatCmd creates the interactive chat command
func NewChatCmd() *cobra.Command {
	opts := &chatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Build an agent session and chat interactively",
		Long: `Builds an agent from the selected model and skills, then starts an
interactive chat loop. Replies stream in as they are generated; tool
invocations are shown inline as they start and finish.

Commands inside the loop:
  /usage     Show accumulated token usage
  /catalog   List available models and skills
  /reset     Tear down the session and build a fresh one
  /quit      Exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	registerChatFlags(cmd.Flags(), opts)

	return cmd
}

func registerChatFlags(fs *pflag.FlagSet, opts *chatOptions) {
	fs.StringVar(&opts.modelID, "model", "llama", "Model id (see /catalog)")
	fs.StringSliceVar(&opts.skillIDs, "skill", nil, "Skill id to enable (repeatable)")
	fs.BoolVar(&opts.hitl, "hitl", false, "Require approval before unsandboxed tools run")
	fs.StringToStringVar(&opts.sandboxRaw, "sandbox", nil, "Per-skill sandbox override, e.g. --sandbox websearch=true")
	fs.DurationVar(&opts.timeout, "timeout", 60*time.Second, "Per-turn deadline")
}

// chatSession owns the interactive loop state: one backend session, one
// conversation reducer, and the terminal plumbing around them.
type chatSession struct {
	client    *client.Client
	sessionID string
	conv      *conversation.Conversation
	opts      *chatOptions

	in   *bufio.Scanner
	out  io.Writer
	spin *spinner.Spinner

	// visible text already mirrored to the terminal for the current turn
	mirrored string
}

func runChat(ctx context.Context, opts *chatOptions) error {
	if _, ok := catalog.ModelByID(opts.modelID); !ok {
		return apperrors.New(apperrors.ErrCodeConfig, fmt.Sprintf("unknown model %q", opts.modelID), nil)
	}
	for _, id := range opts.skillIDs {
		if _, ok := catalog.SkillByID(id); !ok {
			return apperrors.New(apperrors.ErrCodeConfig, fmt.Sprintf("unknown skill %q", id), nil)
		}
	}

	sandbox := make(map[string]bool, len(opts.sandboxRaw))
	for id, raw := range opts.sandboxRaw {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return apperrors.New(apperrors.ErrCodeConfig, fmt.Sprintf("invalid sandbox value %q for skill %q", raw, id), err)
		}
		sandbox[id] = v
	}

	cs := &chatSession{
		client: client.New(viper.GetString("server_url")),
		opts:   opts,
		in:     bufio.NewScanner(os.Stdin),
		out:    os.Stdout,
		spin:   spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr)),
	}
	cs.spin.Suffix = " thinking"
	cs.conv = conversation.New(
		conversation.WithCatalog(catalog.Static{}),
		conversation.WithToolLog(&tracePrinter{out: cs.out}),
	)

	if err := cs.buildSession(ctx, sandbox); err != nil {
		return err
	}
	defer func() {
		if cs.sessionID != "" {
			cs.client.DeleteSession(context.Background(), cs.sessionID)
		}
	}()

	model, _ := catalog.ModelByID(opts.modelID)
	fmt.Fprintf(cs.out, "Agent ready: %s %s with %d skill(s). Type /quit to exit.\n",
		model.Icon, model.Name, len(opts.skillIDs))

	return cs.loop(ctx, sandbox)
}

func (cs *chatSession) buildSession(ctx context.Context, sandbox map[string]bool) error {
	id, err := cs.client.CreateSession(ctx, &client.CreateSessionRequest{
		ModelID:     cs.opts.modelID,
		SkillIDs:    cs.opts.skillIDs,
		HITLEnabled: cs.opts.hitl,
		SandboxMap:  sandbox,
	})
	if err != nil {
		return err
	}
	cs.sessionID = id
	return nil
}

func (cs *chatSession) loop(ctx context.Context, sandbox map[string]bool) error {
	for {
		fmt.Fprintf(cs.out, "%s ", promptStyle.Render("you>"))
		if !cs.in.Scan() {
			return cs.in.Err()
		}
		line := strings.TrimSpace(cs.in.Text())

		switch {
		case line == "":
			continue

		case line == "/quit" || line == "/exit":
			return nil

		case line == "/usage":
			cs.printUsage()
			continue

		case line == "/catalog":
			cs.printCatalog()
			continue

		case line == "/reset":
			if cs.sessionID != "" {
				cs.client.DeleteSession(ctx, cs.sessionID)
				cs.sessionID = ""
			}
			if err := cs.buildSession(ctx, sandbox); err != nil {
				color.New(color.FgRed).Fprintf(cs.out, "rebuild failed: %v\n", err)
				continue
			}
			fmt.Fprintln(cs.out, "Session rebuilt.")
			continue

		case strings.HasPrefix(line, "/"):
			color.New(color.FgRed).Fprintf(cs.out, "unknown command %s\n", line)
			continue
		}

		if cs.sessionID == "" {
			color.New(color.FgRed).Fprintln(cs.out, "No active agent session. Rebuild one with /reset.")
			continue
		}

		cs.runTurn(ctx, line)
	}
}

// runTurn drives one user message to completion: stream the reply, settle
// any interrupts, and finalize exactly one agent message.
func (cs *chatSession) runTurn(parent context.Context, message string) {
	cs.conv.AddUserMessage(message)
	if err := cs.conv.BeginTurn(); err != nil {
		color.New(color.FgRed).Fprintf(cs.out, "%v\n", err)
		return
	}
	cs.mirrored = ""

	err := cs.send(parent, func(ctx context.Context) error {
		return cs.client.SendMessage(ctx, cs.sessionID, message, cs.onEvent)
	})

	for {
		if err != nil {
			cs.conv.EndTurn(err)
			color.New(color.FgRed).Fprintf(cs.out, "\nturn failed: %v\n", err)
			break
		}
		pending, ok := cs.conv.Pending()
		if !ok {
			cs.conv.EndTurn(nil)
			break
		}

		decision, ok := cs.promptDecision(pending)
		if !ok {
			decision = client.Decision{Decision: "reject"}
		}
		cs.conv.Resume()

		err = cs.send(parent, func(ctx context.Context) error {
			return cs.client.SendApproval(ctx, cs.sessionID, decision, cs.onEvent)
		})
	}

	cs.printReply()
}

// send arms the per-turn deadline around one streaming request. The clock
// starts at send time, so time spent deciding on an interrupt never counts
// against the resumed stream.
func (cs *chatSession) send(parent context.Context, do func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, cs.opts.timeout)
	defer cancel()

	cs.spin.Start()
	err := do(ctx)
	cs.spin.Stop()
	return err
}

// onEvent feeds the reducer and mirrors newly visible text to the terminal.
// A trailing fragment of the thinking-span open delimiter is held back until
// the full tag arrives: the fragment is indistinguishable from content, and
// mirroring it too early would print text the buffer later hides.
func (cs *chatSession) onEvent(ev events.Event) {
	cs.conv.Apply(ev)

	visible := holdPartialDelimiter(cs.conv.Displayed())
	if strings.HasPrefix(visible, cs.mirrored) && len(visible) > len(cs.mirrored) {
		cs.spin.Stop()
		fmt.Fprint(cs.out, agentStyle.Render(visible[len(cs.mirrored):]))
		cs.mirrored = visible
	}
}

// holdPartialDelimiter trims a trailing proper prefix of the thinking-span
// open delimiter, mirroring how the frame decoder holds back a carriage
// return split across chunks.
func holdPartialDelimiter(s string) string {
	for n := len(conversation.ThinkOpen) - 1; n >= 1; n-- {
		if strings.HasSuffix(s, conversation.ThinkOpen[:n]) {
			return s[:len(s)-n]
		}
	}
	return s
}

func (cs *chatSession) promptDecision(p conversation.PendingInterrupt) (client.Decision, bool) {
	fmt.Fprintln(cs.out)
	color.New(color.FgYellow, color.Bold).Fprintln(cs.out, "The agent wants to run:")
	for _, a := range p.Actions {
		line := fmt.Sprintf("  %s %v", a.Name, a.Args)
		fmt.Fprintln(cs.out, traceStyle.Render(wordwrap.String(line, replyWidth)))
	}

	choices := strings.Join(p.AllowedDecisions, "/")
	for {
		fmt.Fprintf(cs.out, "%s ", promptStyle.Render(choices+">"))
		if !cs.in.Scan() {
			return client.Decision{}, false
		}
		d := strings.ToLower(strings.TrimSpace(cs.in.Text()))
		if !allowed(p.AllowedDecisions, d) {
			color.New(color.FgRed).Fprintf(cs.out, "choose one of: %s\n", choices)
			continue
		}

		if d == "edit" {
			fmt.Fprintf(cs.out, "%s ", promptStyle.Render("new input>"))
			if !cs.in.Scan() {
				return client.Decision{}, false
			}
			return client.Decision{
				Decision:   "edit",
				EditedArgs: map[string]interface{}{"input": strings.TrimSpace(cs.in.Text())},
			}, true
		}
		return client.Decision{Decision: d}, true
	}
}

// printReply closes out the turn on screen. Streamed text was already
// mirrored live; what remains is a reply that never streamed anything
// (fallback texts) or a held-back tail the finalized message still carries.
func (cs *chatSession) printReply() {
	msgs := cs.conv.Messages()
	if len(msgs) == 0 {
		return
	}
	last := msgs[len(msgs)-1]
	if last.Role != conversation.RoleAgent {
		return
	}

	switch {
	case cs.mirrored == "":
		fmt.Fprintln(cs.out, agentStyle.Render(wordwrap.String(last.Content, replyWidth)))
	case strings.HasPrefix(last.Content, cs.mirrored) && len(last.Content) > len(cs.mirrored):
		fmt.Fprintln(cs.out, agentStyle.Render(last.Content[len(cs.mirrored):]))
	default:
		fmt.Fprintln(cs.out)
	}
}

func (cs *chatSession) printUsage() {
	u := cs.conv.Usage()
	t := table.NewWriter()
	t.SetOutputMirror(cs.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Counter", "Tokens"})
	t.AppendRows([]table.Row{
		{"input", u.InputTokens},
		{"output", u.OutputTokens},
		{"reasoning", u.ReasoningTokens},
	})
	t.AppendFooter(table.Row{"total", u.TotalTokens})
	t.Render()
}

func (cs *chatSession) printCatalog() {
	mt := table.NewWriter()
	mt.SetOutputMirror(cs.out)
	mt.SetStyle(table.StyleLight)
	mt.SetTitle("Models")
	mt.AppendHeader(table.Row{"ID", "Name"})
	for _, m := range catalog.Models() {
		mt.AppendRow(table.Row{m.ID, fmt.Sprintf("%s %s", m.Icon, m.Name)})
	}
	mt.Render()

	st := table.NewWriter()
	st.SetOutputMirror(cs.out)
	st.SetStyle(table.StyleLight)
	st.SetTitle("Skills")
	st.AppendHeader(table.Row{"ID", "Name", "Action"})
	for _, s := range catalog.Skills() {
		st.AppendRow(table.Row{s.ID, fmt.Sprintf("%s %s", s.Icon, s.Name), s.Action})
	}
	st.Render()
}

func allowed(decisions []string, d string) bool {
	for _, a := range decisions {
		if a == d {
			return true
		}
	}
	return false
}

// tracePrinter renders tool invocation lifecycle lines inline with the
// streamed reply.
type tracePrinter struct {
	out io.Writer
}

func (p *tracePrinter) InvocationStarted(rec conversation.InvocationRecord) {
	fmt.Fprintf(p.out, "\n%s\n", traceStyle.Render(fmt.Sprintf("%s %s running...", rec.Icon, rec.Name)))
}

func (p *tracePrinter) InvocationFinished(rec conversation.InvocationRecord) {
	fmt.Fprintf(p.out, "%s\n", traceStyle.Render(fmt.Sprintf("%s %s done (%dms)", rec.Icon, rec.Name, rec.DurationMS)))
}
