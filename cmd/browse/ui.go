package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/provider/sqlprovider"
)

const loadingText = "loading…"

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// dataChangedMsg and searchDoneMsg carry model notifications into the
// bubbletea loop; they are sent from fetch goroutines via Program.Send.
type dataChangedMsg struct{ from, to, total int }

type searchDoneMsg struct{ query string }

// rowSource is the part of cache.Model the view needs.
type rowSource interface {
	GetItem(position int) sqlprovider.Row
	Size() int
	Query() (string, bool)
	SetQuery(q string)
	Stats() cache.Stats
}

type browser struct {
	rows    rowSource
	input   textinput.Model
	editing bool

	cursor int // absolute position
	top    int // first visible position
	width  int
	height int

	searching bool
}

// newBrowser starts in the searching state unless rows already holds data,
// e.g. after a restore.
func newBrowser(rows rowSource) *browser {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter"
	ti.CharLimit = 80
	return &browser{rows: rows, input: ti, height: 24, width: 80, searching: rows.Stats().Segments == 0}
}

func (b *browser) Init() tea.Cmd { return nil }

func (b *browser) visible() int { return max(b.height-3, 1) }

func (b *browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.input.Width = max(msg.Width-4, 10)
	case dataChangedMsg:
		// Nothing to update: returning redraws from the model.
	case searchDoneMsg:
		b.searching = false
	case tea.KeyMsg:
		if b.editing {
			return b.updateInput(msg)
		}
		return b.updateList(msg)
	}
	return b, nil
}

func (b *browser) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		b.editing = false
		b.input.Blur()
		b.cursor, b.top = 0, 0
		b.searching = true
		b.rows.SetQuery(b.input.Value())
		return b, nil
	case "esc":
		b.editing = false
		b.input.Blur()
		return b, nil
	}
	var cmd tea.Cmd
	b.input, cmd = b.input.Update(msg)
	return b, cmd
}

func (b *browser) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return b, tea.Quit
	case "/":
		b.editing = true
		q, _ := b.rows.Query()
		b.input.SetValue(q)
		b.input.CursorEnd()
		return b, b.input.Focus()
	case "up", "k":
		b.move(-1)
	case "down", "j":
		b.move(1)
	case "pgup":
		b.move(-b.visible())
	case "pgdown", " ":
		b.move(b.visible())
	case "home", "g":
		b.move(-b.cursor)
	case "end", "G":
		b.move(b.rows.Size())
	}
	return b, nil
}

func (b *browser) move(delta int) {
	last := b.rows.Size() - 1
	b.cursor = min(max(b.cursor+delta, 0), max(last, 0))
	switch {
	case b.cursor < b.top:
		b.top = b.cursor
	case b.cursor >= b.top+b.visible():
		b.top = b.cursor - b.visible() + 1
	}
}

func (b *browser) View() string {
	var sb strings.Builder

	q, _ := b.rows.Query()
	size := b.rows.Size()
	status := fmt.Sprintf("%d rows", size)
	if b.searching {
		status = "searching…"
	}
	sb.WriteString(headerStyle.Render(fmt.Sprintf("query %q · %s", q, status)))
	sb.WriteString("\n")

	for pos := b.top; pos < b.top+b.visible(); pos++ {
		if pos >= size {
			sb.WriteString("\n")
			continue
		}
		line := loadingStyle.Render(fmt.Sprintf("%7d  %s", pos+1, loadingText))
		if r := b.rows.GetItem(pos); r.ID != 0 {
			line = fmt.Sprintf("%7d  %s", pos+1, r.Text)
		}
		if pos == b.cursor {
			line = cursorStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	if b.editing {
		sb.WriteString(b.input.View())
	} else {
		st := b.rows.Stats()
		sb.WriteString(footerStyle.Render(fmt.Sprintf(
			"↑/↓ pgup/pgdn g/G move · / filter · q quit · %d pages cached, %d hits, %d misses",
			st.Segments, st.Hits, st.Misses)))
	}
	return sb.String()
}

var _ rowSource = (*cache.Model[string, sqlprovider.Row])(nil)
