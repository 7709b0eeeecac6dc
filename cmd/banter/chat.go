// Interactive chat interface using bubbletea. This is the loopback
// platform: the operator talks to the persona directly through the
// console adapter.
package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"banter/internal/bot"
	"banter/internal/platform"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the persona interactively (the default command)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd.Context())
	},
}

func runChat(ctx context.Context) error {
	rt, err := buildRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close(ctx)

	p := tea.NewProgram(newChatModel(ctx, rt), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}

var (
	youStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// replyMsg carries one finished response cycle back into the UI loop.
type replyMsg struct {
	sends []string
	err   error
}

type chatModel struct {
	ctx context.Context
	rt  *runtime

	console  *platform.Console
	identity string

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model
	renderer *glamour.TermRenderer

	lines   []string
	waiting bool
	ready   bool
	width   int
	height  int
}

func newChatModel(ctx context.Context, rt *runtime) *chatModel {
	input := textinput.New()
	input.Placeholder = "say something (or /help)"
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(76))

	console := platform.NewConsole(nil, nil)
	probe := &platform.Event{Sender: platform.UserInfo{ID: "operator"}, IsDM: true}

	return &chatModel{
		ctx:      ctx,
		rt:       rt,
		console:  console,
		identity: platform.IdentityFor(probe),
		input:    input,
		spin:     spin,
		renderer: renderer,
		lines: []string{
			statusStyle.Render(fmt.Sprintf("banter %s - talking to %s. /help for commands.",
				rt.cfg.Version, rt.cfg.Persona.Name)),
		},
	}
}

func (m *chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			if strings.HasPrefix(text, "/") {
				return m.slash(text)
			}
			m.append(youStyle.Render("you: ") + text)
			m.waiting = true
			return m, tea.Batch(m.spin.Tick, m.respond(text))
		}

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case replyMsg:
		m.waiting = false
		if msg.err != nil {
			m.append(errStyle.Render("error: " + msg.err.Error()))
		}
		for _, text := range msg.sends {
			m.append(botStyle.Render(m.rt.cfg.Persona.Name+": ") + m.markdown(text))
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *chatModel) View() string {
	if !m.ready {
		return "loading..."
	}
	status := ""
	if m.waiting {
		status = m.spin.View() + " thinking"
	}
	return m.viewport.View() + "\n" +
		m.input.View() + "\n" +
		statusStyle.Render(status)
}

// respond runs the full dispatch cycle off the UI goroutine.
func (m *chatModel) respond(text string) tea.Cmd {
	return func() tea.Msg {
		ev := m.console.NextEvent(text)
		err := m.rt.registry.Dispatch(m.ctx, m.console, ev)
		return replyMsg{sends: m.console.ResetSends(), err: err}
	}
}

// slash handles the operator commands.
func (m *chatModel) slash(text string) (tea.Model, tea.Cmd) {
	switch strings.Fields(text)[0] {
	case "/help":
		m.append(statusStyle.Render("/reset forget the conversation - /notes toggle visible thoughts - /quit leave"))
	case "/quit", "/exit":
		return m, tea.Quit
	case "/reset":
		inst, err := m.rt.registry.GetOrCreate(m.identity)
		if err == nil {
			err = inst.Reset()
		}
		if err != nil {
			m.append(errStyle.Render("error: " + err.Error()))
		} else {
			m.append(botStyle.Render(m.rt.cfg.Persona.Name+": ") + bot.ResetAck)
		}
	case "/notes":
		inst, err := m.rt.registry.GetOrCreate(m.identity)
		if err != nil {
			m.append(errStyle.Render("error: " + err.Error()))
		} else if inst.ToggleNotes() {
			m.append(statusStyle.Render("notes are now visible"))
		} else {
			m.append(statusStyle.Render("notes are hidden again"))
		}
	default:
		m.append(statusStyle.Render("unknown command " + text))
	}
	return m, nil
}

func (m *chatModel) markdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (m *chatModel) append(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}
