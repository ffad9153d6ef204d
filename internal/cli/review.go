package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randalmurphal/genstage/apply"
)

// terminalReviewer asks about each conflicting file with a keyboard menu.
type terminalReviewer struct {
	in  io.Reader
	out io.Writer
}

func newTerminalReviewer(in io.Reader, out io.Writer) *terminalReviewer {
	return &terminalReviewer{in: in, out: out}
}

// Review implements apply.Reviewer. Leaving the menu without choosing aborts.
func (r *terminalReviewer) Review(ctx context.Context, req apply.ReviewRequest) (apply.Decision, error) {
	if req.Diff != "" {
		p := &printer{w: r.out}
		p.diff(req.Diff)
		p.println()
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(r.out)}
	if r.in != nil {
		opts = append(opts, tea.WithInput(r.in))
	}
	final, err := tea.NewProgram(newReviewMenuModel(req), opts...).Run()
	if err != nil {
		return apply.DecisionAbort, fmt.Errorf("show review menu: %w", err)
	}

	result := final.(reviewMenuModel)
	if result.selected == nil {
		return apply.DecisionAbort, nil
	}
	return *result.selected, nil
}

// reviewMenuModel is the BubbleTea model for one conflict decision.
type reviewMenuModel struct {
	req      apply.ReviewRequest
	choices  []reviewChoice
	cursor   int
	selected *apply.Decision
}

type reviewChoice struct {
	label    string
	decision apply.Decision
}

func newReviewMenuModel(req apply.ReviewRequest) reviewMenuModel {
	choices := []reviewChoice{
		{"Show diff and decide", apply.DecisionDiff},
		{"Skip (keep existing file)", apply.DecisionSkip},
		{"Overwrite (replace with generated code)", apply.DecisionOverwrite},
		{"Abort apply", apply.DecisionAbort},
	}
	if req.Diff != "" {
		// The diff is already on screen.
		choices = choices[1:]
	}
	return reviewMenuModel{req: req, choices: choices}
}

// Init initializes the menu model
func (m reviewMenuModel) Init() tea.Cmd {
	return nil
}

// Update handles keyboard input
func (m reviewMenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			}

		case "d":
			return m.choose(apply.DecisionDiff)
		case "s":
			return m.choose(apply.DecisionSkip)
		case "o":
			return m.choose(apply.DecisionOverwrite)

		case "enter":
			return m.choose(m.choices[m.cursor].decision)
		}
	}

	return m, nil
}

func (m reviewMenuModel) choose(d apply.Decision) (tea.Model, tea.Cmd) {
	m.selected = &d
	return m, tea.Quit
}

// View renders the menu
func (m reviewMenuModel) View() string {
	var b strings.Builder

	b.WriteString(warningStyle.Render(fmt.Sprintf("Conflict %d/%d: ", m.req.Index, m.req.Total)) +
		titleStyle.Render(m.req.Conflict.Path) + "\n")
	b.WriteString(mutedStyle.Render("    Feature: ") + m.req.Feature + "\n")
	b.WriteString(mutedStyle.Render("    Kind:    ") + string(m.req.Conflict.Kind) + "\n\n")

	b.WriteString(mutedStyle.Render("    [↑/↓] Navigate    [Enter] Select    [q] Abort") + "\n\n")

	for i, choice := range m.choices {
		if m.cursor == i {
			b.WriteString("    " + selectedStyle.Render("> "+choice.label) + "\n")
		} else {
			b.WriteString("      " + choice.label + "\n")
		}
	}

	return b.String()
}
