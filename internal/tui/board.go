// Package tui renders the appointment boards in the terminal.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/knockmap/knockmap/internal/board"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	marketStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	trackStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

const barWidth = 20

// LoadFunc fetches every card of a board.
type LoadFunc func(ctx context.Context, ch board.Channel) ([]board.Card, error)

type cardsMsg struct {
	slug  string
	cards []board.Card
	err   error
}

// BoardModel is the bubbletea model for the terminal board.
type BoardModel struct {
	load      LoadFunc
	channels  []board.Channel
	channel   int
	timeframe board.Timeframe
	group     string

	cards   []board.Card
	loading bool
	err     error
	updated time.Time

	spinner spinner.Model
	width   int
}

// NewBoardModel creates a board model starting on ch.
func NewBoardModel(load LoadFunc, ch board.Channel) BoardModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := BoardModel{
		load:      load,
		channels:  board.Channels,
		timeframe: board.ThisWeek,
		group:     board.AllGroups,
		loading:   true,
		spinner:   s,
		width:     80,
	}
	for i, c := range m.channels {
		if c.Slug == ch.Slug {
			m.channel = i
		}
	}
	return m
}

// Channel returns the board being shown.
func (m BoardModel) Channel() board.Channel { return m.channels[m.channel] }

// Timeframe returns the selected week.
func (m BoardModel) Timeframe() board.Timeframe { return m.timeframe }

// Group returns the selected market group.
func (m BoardModel) Group() string { return m.group }

func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m BoardModel) fetch() tea.Cmd {
	ch := m.Channel()
	load := m.load
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		cards, err := load(ctx, ch)
		return cardsMsg{slug: ch.Slug, cards: cards, err: err}
	}
}

func (m BoardModel) reload() (BoardModel, tea.Cmd) {
	m.loading = true
	m.err = nil
	return m, tea.Batch(m.spinner.Tick, m.fetch())
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.timeframe = m.timeframe.Next()
			return m, nil
		case "g":
			m.group = nextGroup(board.Groups(m.cards), m.group)
			return m, nil
		case "c":
			m.channel = (m.channel + 1) % len(m.channels)
			m.cards = nil
			m.group = board.AllGroups
			return m.reload()
		case "r":
			return m.reload()
		}

	case cardsMsg:
		if msg.slug != m.Channel().Slug {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.cards = msg.cards
			m.updated = time.Now()
		}
		return m, nil

	case spinner.TickMsg:
		if m.loading || m.cards == nil {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}
	return m, nil
}

func nextGroup(groups []string, current string) string {
	for i, g := range groups {
		if g == current {
			return groups[(i+1)%len(groups)]
		}
	}
	return board.AllGroups
}

func (m BoardModel) View() string {
	var b strings.Builder

	ch := m.Channel()
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s · %s · %s", ch.Title, m.timeframe, m.group)))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		b.WriteString("\n")
	case m.cards == nil:
		b.WriteString(fmt.Sprintf("  %s Loading %s...\n", m.spinner.View(), strings.ToLower(ch.Title)))
	default:
		m.writeMarkets(&b)
	}

	b.WriteString("\n")
	if m.loading && m.cards != nil {
		b.WriteString(fmt.Sprintf("  %s Refreshing...\n", m.spinner.View()))
	}
	b.WriteString(dimStyle.Render("  tab: timeframe  g: group  c: switch board  r: reload  q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m BoardModel) writeMarkets(b *strings.Builder) {
	f := board.Filter{Timeframe: m.timeframe}
	if m.group != board.AllGroups {
		f.Groups = []string{m.group}
	}
	v := board.Layout(m.cards, f)
	if v.Cards == 0 {
		b.WriteString(dimStyle.Render("  No active closers for this selection."))
		b.WriteString("\n")
		return
	}

	// Columns alternate markets, so reading them round-robin restores name order.
	for i := 0; i < len(v.Columns[0])+len(v.Columns[1]); i++ {
		mk := v.Columns[i%2][i/2]
		b.WriteString("  ")
		b.WriteString(marketStyle.Render(mk.Name))
		if mk.Notes != "" {
			b.WriteString(dimStyle.Render("  " + mk.Notes))
		}
		b.WriteString("\n")
		for _, row := range mk.Rows {
			for _, c := range row {
				b.WriteString(fmt.Sprintf("    %-14s %s %3d/%-3d %3.0f%%\n",
					c.Name, progressBar(c.Percentage, c.Color), c.Appointments, c.Goal, c.Percentage))
			}
		}
		b.WriteString("\n")
	}
}

// progressBar draws pct as a bar of barWidth cells in color.
func progressBar(pct float64, color string) string {
	filled := int(math.Round(pct / 100 * barWidth))
	filled = max(0, min(filled, barWidth))
	fill := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	return fill.Render(strings.Repeat("█", filled)) + trackStyle.Render(strings.Repeat("░", barWidth-filled))
}

// Run shows the board until the user quits.
func Run(load LoadFunc, ch board.Channel) error {
	_, err := tea.NewProgram(NewBoardModel(load, ch), tea.WithAltScreen()).Run()
	return err
}
