package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

var (
	pagerTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	pagerInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8"))
)

// Pager is an interactive scrollable view of a rendered session.
type Pager struct {
	title string
}

// NewPager creates a pager with the given title bar.
func NewPager(title string) *Pager {
	return &Pager{title: title}
}

// Run displays static content until the user quits.
func (p *Pager) Run(content string) error {
	prog := tea.NewProgram(
		&pagerModel{title: p.title, content: content},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err := prog.Run()
	return err
}

// RunLive displays content that re-renders whenever the watched file
// changes, which is how `show --follow` tracks a running session's
// checkpoint database.
func (p *Pager) RunLive(filePath string, renderFunc func() (string, error)) error {
	content, err := renderFunc()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filePath); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	prog := tea.NewProgram(
		&pagerModel{
			title:      p.title,
			content:    content,
			live:       true,
			renderFunc: renderFunc,
			watcher:    watcher,
		},
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = prog.Run()
	watcher.Close()
	return err
}

// fileChangedMsg is sent when the watched file changes.
type fileChangedMsg struct{}

type pagerModel struct {
	viewport   viewport.Model
	title      string
	content    string
	ready      bool
	live       bool
	follow     bool
	renderFunc func() (string, error)
	watcher    *fsnotify.Watcher
	lastUpdate time.Time
}

func (m *pagerModel) Init() tea.Cmd {
	if m.live && m.watcher != nil {
		return m.watchFile()
	}
	return nil
}

// watchFile returns a command that waits for the next file change.
func (m *pagerModel) watchFile() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// Debounce: wait for the write to settle.
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case fileChangedMsg:
		if m.renderFunc != nil {
			if newContent, err := m.renderFunc(); err == nil {
				offset := m.viewport.YOffset
				m.content = newContent
				m.viewport.SetContent(wordwrap.String(m.content, m.viewport.Width))
				m.lastUpdate = time.Now()
				if m.follow {
					m.viewport.GotoBottom()
				} else if offset < m.viewport.TotalLineCount() {
					m.viewport.YOffset = offset
				}
			}
		}
		cmds = append(cmds, m.watchFile())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		case "f":
			if m.live {
				m.follow = !m.follow
				if m.follow {
					m.viewport.GotoBottom()
				}
			}
		}

	case tea.WindowSizeMsg:
		headerHeight, footerHeight := 1, 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(wordwrap.String(m.content, msg.Width))
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
			m.viewport.SetContent(wordwrap.String(m.content, msg.Width))
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := pagerTitleStyle.Render(m.title)
	line := strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(title)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, title, pagerInfoStyle.Render(line))

	percent := 100
	if total := m.viewport.TotalLineCount(); total > m.viewport.Height {
		percent = m.viewport.YOffset * 100 / maxInt(1, total-m.viewport.Height)
		if percent > 100 {
			percent = 100
		}
	}

	help := " q: quit │ g/G: top/bottom "
	if m.live {
		mode := "f: follow"
		if m.follow {
			mode = pagerTitleStyle.Render("● FOLLOW")
		}
		help = fmt.Sprintf(" q: quit │ %s │ g/G: top/bottom ", mode)
	}
	info := fmt.Sprintf(" %d%% ", percent)
	footer := pagerInfoStyle.Render(help) +
		pagerInfoStyle.Render(strings.Repeat("─", maxInt(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))) +
		pagerInfoStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
