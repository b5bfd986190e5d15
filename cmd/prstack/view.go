package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/prstack/pkg/gitctx"
	"github.com/codeGROOVE-dev/prstack/pkg/render"
)

// headerSelector is the insertion point the terminal page offers.
const headerSelector = ".gh-header-meta"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle  = lipgloss.NewStyle().Faint(true).PaddingTop(1)
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(58)
)

type (
	pageChangedMsg    struct{}
	openOptionsMsg    struct{}
	controllerDoneMsg struct{ err error }
)

type viewModel struct {
	err       error
	ctrl      *render.Controller
	doc       *render.MemoryDocument
	setToken  func(string) error
	title     string
	input     textinput.Model
	spinner   spinner.Model
	prompting bool
}

func newViewModel(title string, ctrl *render.Controller, doc *render.MemoryDocument, setToken func(string) error) viewModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "ghp_..."
	ti.EchoMode = textinput.EchoPassword
	ti.CharLimit = 255

	return viewModel{
		title:    title,
		ctrl:     ctrl,
		doc:      doc,
		setToken: setToken,
		spinner:  sp,
		input:    ti,
	}
}

func (m viewModel) indicator() *render.Indicator {
	inds := m.doc.Indicators(m.ctrl.Marker())
	if len(inds) == 0 {
		return nil
	}
	return inds[0]
}

func (m viewModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pageChangedMsg:
		return m, nil

	case openOptionsMsg:
		return m.openPrompt()

	case controllerDoneMsg:
		if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
			m.err = msg.err
		}
		return m, tea.Quit
	}

	if m.prompting {
		return m.updatePrompt(msg)
	}
	return m.updateNormal(msg)
}

func (m viewModel) openPrompt() (tea.Model, tea.Cmd) {
	m.prompting = true
	m.err = nil
	m.input.Reset()
	m.input.Focus()
	return m, textinput.Blink
}

func (m viewModel) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "q":
		m.ctrl.Destroy()
		return m, tea.Quit
	case "enter", " ":
		if ind := m.indicator(); ind != nil {
			ind.Toggle()
		}
	case "t":
		if ind := m.indicator(); ind != nil && ind.RequestCredential() {
			return m, nil
		}
		return m.openPrompt()
	case "x":
		if err := m.setToken(""); err != nil {
			m.err = err
		}
	case "r":
		m.ctrl.Mutated()
	}
	return m, nil
}

func (m viewModel) updatePrompt(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			m.prompting = false
			m.input.Blur()
			return m, nil
		case "enter":
			token := strings.TrimSpace(m.input.Value())
			m.prompting = false
			m.input.Blur()
			if token == "" {
				return m, nil
			}
			if err := m.setToken(token); err != nil {
				m.err = err
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m viewModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("prstack") + " " + dimStyle.Render(m.title) + "\n\n")

	if m.prompting {
		body := "GitHub token\n\n" + m.input.View() + "\n\n" + dimStyle.Render("enter save • esc cancel")
		b.WriteString(modalStyle.Render(body))
		return b.String()
	}

	ind := m.indicator()
	switch {
	case ind == nil:
		b.WriteString(m.spinner.View() + " waiting for pull request context (" + m.ctrl.State().String() + ")")
	default:
		b.WriteString(ind.View())
		if ind.Resolving() {
			b.WriteString("\n" + m.spinner.View() + dimStyle.Render(" resolving lineage"))
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errStyle.Render("error: "+m.err.Error()))
	}
	b.WriteString(helpStyle.Render("\nenter toggle lineage • t set token • x clear token • r refresh • q quit"))
	return b.String()
}

func newViewCmd(a *app) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "view [url]",
		Short: "Show a live stack indicator for a pull request URL or the current checkout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restore, err := a.quietLogs()
			if err != nil {
				return err
			}
			defer restore()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.seedToken(ctx)

			client := a.newClient()
			defer a.closeClient(client)

			var (
				extractor render.Extractor
				pageURL   string
			)
			if len(args) == 1 {
				pageURL = args[0]
				if _, err := gitctx.ParsePageURL(pageURL); err != nil {
					return err
				}
				extractor = gitctx.NewURLExtractor(ctx, pageURL, client, gitctx.WithRefreshAfter(a.cfg.CacheTTL))
			} else {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				checkout, err := gitctx.Open(wd, gitctx.WithRemote(remote),
					gitctx.WithTrunkNames(a.cfg.TrunkBranches...), gitctx.WithLogger(a.logger))
				if err != nil {
					return err
				}
				pageURL = "file://" + wd
				extractor = checkout
			}

			doc := render.NewMemoryDocument(pageURL, extractor)
			doc.AddAnchor(headerSelector)

			var p *tea.Program
			messenger := render.MessengerFunc(func(render.Message) {
				go p.Send(openOptionsMsg{})
			})
			opts := append(a.cfg.ControllerOptions(),
				render.WithLogger(a.logger),
				render.WithMessenger(messenger))
			ctrl := render.NewController(doc, a.newResolver(client), a.creds, opts...)

			p = tea.NewProgram(newViewModel(pageURL, ctrl, doc, a.creds.SetToken))
			doc.OnChange(func() { p.Send(pageChangedMsg{}) })

			go func() {
				err := ctrl.Run(ctx)
				p.Send(controllerDoneMsg{err: err})
			}()
			ctrl.PageLoaded()

			final, err := p.Run()
			ctrl.Destroy()
			if err != nil {
				return fmt.Errorf("run terminal UI: %w", err)
			}
			if vm, ok := final.(viewModel); ok && vm.err != nil {
				return vm.err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", gitctx.DefaultRemote, "Remote naming the GitHub repository")
	return cmd
}

// quietLogs moves logging off the terminal while the UI owns the screen.
func (a *app) quietLogs() (restore func(), err error) {
	prev := a.logger
	var f *os.File
	if a.debug {
		f, err = os.CreateTemp("", "prstack-view-*.log")
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "debug log: %s\n", f.Name())
		a.logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		a.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	slog.SetDefault(a.logger)

	return func() {
		a.logger = prev
		slog.SetDefault(prev)
		if f != nil {
			_ = f.Close() //nolint:errcheck // best effort
		}
	}, nil
}
