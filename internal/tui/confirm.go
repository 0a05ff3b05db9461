// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"bufio"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type (
	// ConfirmOptions configures the Confirm component.
	ConfirmOptions struct {
		// Title is the question/prompt to display.
		Title string
		// Description provides additional context below the title.
		Description string
		// Affirmative is the text for the affirmative option (default: "Yes").
		Affirmative string
		// Negative is the text for the negative option (default: "No").
		Negative string
		// Default is the default value (true for yes, false for no).
		Default bool
		// Config holds common TUI configuration.
		Config Config
	}

	// confirmModel is the Bubble Tea model behind Confirm.
	confirmModel struct {
		title       string
		description string
		affirmative string
		negative    string
		selection   bool
		done        bool
		cancelled   bool
		width       int
	}
)

var (
	confirmTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	confirmDescStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	confirmActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#7C3AED")).Bold(true).Padding(0, 1)
	confirmInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Padding(0, 1)
	confirmHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func newConfirmModel(opts ConfirmOptions) *confirmModel {
	m := &confirmModel{
		title:       opts.Title,
		description: opts.Description,
		affirmative: opts.Affirmative,
		negative:    opts.Negative,
		selection:   opts.Default,
	}
	if m.affirmative == "" {
		m.affirmative = "Yes"
	}
	if m.negative == "" {
		m.negative = "No"
	}
	return m
}

// Init implements tea.Model.
func (m *confirmModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case keyCtrlC, "esc", "q":
			m.done = true
			m.cancelled = true
			return m, tea.Quit
		case "y", "Y":
			m.selection = true
			m.done = true
			return m, tea.Quit
		case "n", "N":
			m.selection = false
			m.done = true
			return m, tea.Quit
		case "left", "h":
			m.selection = true
		case "right", "l":
			m.selection = false
		case "up", "down", "tab", "shift+tab":
			m.selection = !m.selection
		case "enter", " ":
			m.done = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	}

	return m, nil
}

// View implements tea.Model.
func (m *confirmModel) View() string {
	if m.done {
		return ""
	}

	yesView := confirmInactiveStyle.Render(m.affirmative)
	noView := confirmInactiveStyle.Render(m.negative)
	if m.selection {
		yesView = confirmActiveStyle.Render(m.affirmative)
	} else {
		noView = confirmActiveStyle.Render(m.negative)
	}

	lines := make([]string, 0, 4)
	if m.title != "" {
		lines = append(lines, confirmTitleStyle.Render(m.title))
	}
	if m.description != "" {
		lines = append(lines, confirmDescStyle.Render(m.description))
	}
	lines = append(lines,
		yesView+"  "+noView,
		confirmHelpStyle.Render("enter submit • y yes • n no • esc cancel"),
	)

	view := strings.Join(lines, "\n")
	if m.width > 0 {
		view = lipgloss.NewStyle().MaxWidth(m.width).Render(view)
	}
	return view + "\n"
}

// Confirm prompts the user to confirm an action (yes/no).
// Returns the answer, or ErrCancelled if the prompt was dismissed.
func Confirm(opts ConfirmOptions) (bool, error) {
	if opts.Config.Accessible {
		return confirmLine(opts)
	}

	p := tea.NewProgram(newConfirmModel(opts),
		tea.WithInput(opts.Config.input()),
		tea.WithOutput(opts.Config.output()),
	)
	final, err := p.Run()
	if err != nil {
		return false, err
	}

	m := final.(*confirmModel)
	if m.cancelled {
		return false, ErrCancelled
	}
	return m.selection, nil
}

// confirmLine asks the question on a single line and reads one answer. An
// empty answer selects the default; end of input cancels.
func confirmLine(opts ConfirmOptions) (bool, error) {
	m := newConfirmModel(opts)
	hint := "y/N"
	if opts.Default {
		hint = "Y/n"
	}

	out := opts.Config.output()
	if m.description != "" {
		fmt.Fprintln(out, m.description)
	}
	fmt.Fprintf(out, "%s [%s] ", m.title, hint)

	scanner := bufio.NewScanner(opts.Config.input())
	for scanner.Scan() {
		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			return opts.Default, nil
		case "y", "yes", strings.ToLower(m.affirmative):
			return true, nil
		case "n", "no", strings.ToLower(m.negative):
			return false, nil
		}
		fmt.Fprintf(out, "Please answer y or n. [%s] ", hint)
	}
	if err := scanner.Err(); err != nil {
		return false, err
	}
	return false, ErrCancelled
}
