package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/zachfi/radiogo/modules/finder"
	"github.com/zachfi/radiogo/modules/player"
	"github.com/zachfi/radiogo/modules/recorder"
	"github.com/zachfi/radiogo/pkg/radiobrowser"
)

type Finder interface {
	Search(ctx context.Context, query string) ([]radiobrowser.Station, error)
	SetQuery(q string)
	Snapshot() finder.State
}

type Player interface {
	Load(ctx context.Context, url, name string)
	Play(ctx context.Context) error
	Pause()
	Status() player.Status
}

type Recorder interface {
	Toggle(ctx context.Context) (*recorder.Recording, error)
	Status() recorder.Status
}

type focusMode int

const (
	focusInput focusMode = iota
	focusResults
)

// chrome is the number of lines around the results table.
const chrome = 10

var columns = []table.Column{
	{Title: "Name", Width: 28},
	{Title: "Homepage", Width: 30},
	{Title: "Country", Width: 16},
	{Title: "Region", Width: 16},
	{Title: "Codec", Width: 6},
	{Title: "Bitrate", Width: 9},
}

type Model struct {
	ctx      context.Context
	finder   Finder
	player   Player
	recorder Recorder
	refresh  time.Duration

	keys  KeyMap
	help  help.Model
	input textinput.Model
	table table.Model
	focus focusMode

	state        finder.State
	playerStatus player.Status
	recordStatus recorder.Status

	searching     bool
	recordBusy    bool
	statusMessage string
	errorMessage  string
	width         int
	height        int
}

type searchResultMsg struct {
	err error
}

type playResultMsg struct {
	name string
	err  error
}

type recordResultMsg struct {
	rec *recorder.Recording
	err error
}

type tickMsg struct{}

func NewModel(ctx context.Context, f Finder, p Player, r Recorder, refresh time.Duration) Model {
	input := textinput.New()
	input.Placeholder = "Enter station name"
	input.Prompt = ""
	input.CharLimit = 128
	input.Width = 40
	input.Focus()

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(12),
		table.WithFocused(false),
	)
	t.SetStyles(tableStyles())

	m := Model{
		ctx:      ctx,
		finder:   f,
		player:   p,
		recorder: r,
		refresh:  refresh,
		keys:     DefaultKeyMap,
		help:     help.New(),
		input:    input,
		table:    t,
		focus:    focusInput,
	}
	m.state = f.Snapshot()
	m.input.SetValue(m.state.Query)
	m.refreshStatus()

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

func (m Model) tick() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(msg.Height-chrome, 3))
		return m, nil

	case tickMsg:
		m.refreshStatus()
		return m, m.tick()

	case searchResultMsg:
		m.searching = false
		m.statusMessage = ""
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("search failed: %v", msg.err)
			return m, nil
		}
		m.syncResults()
		m.input.SetValue(m.state.Query)
		if len(m.state.Stations) > 0 {
			m.setFocus(focusResults)
		}
		return m, nil

	case playResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("playback failed: %v", msg.err)
		} else if msg.name != "" {
			m.statusMessage = "loaded " + msg.name
		}
		m.refreshStatus()
		return m, nil

	case recordResultMsg:
		m.recordBusy = false
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("recording failed: %v", msg.err)
		}
		if msg.rec != nil {
			m.statusMessage = fmt.Sprintf("saved %s (%s)", msg.rec.Name, byteCountIEC(int64(len(msg.rec.Data))))
		}
		m.refreshStatus()
		return m, nil

	case tea.KeyMsg:
		m.errorMessage = ""

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Focus):
			if m.focus == focusInput {
				m.setFocus(focusResults)
			} else {
				m.setFocus(focusInput)
			}
			return m, nil
		}

		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateResults(msg)
	}

	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Select) {
		if m.searching {
			return m, nil
		}
		m.searching = true
		m.statusMessage = "searching..."
		return m, m.search(m.input.Value())
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	// Editing the query forgets the previous results.
	if v := m.input.Value(); v != before {
		m.finder.SetQuery(v)
		m.syncResults()
	}

	return m, cmd
}

func (m Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		i := m.table.Cursor()
		if i < 0 || i >= len(m.state.Stations) {
			return m, nil
		}
		st := m.state.Stations[i]
		m.statusMessage = "connecting to " + st.Name + "..."
		return m, m.load(st)

	case key.Matches(msg, m.keys.PlayPause):
		status := m.player.Status()
		if status.URL == "" {
			m.errorMessage = "no station selected"
			return m, nil
		}
		if status.State == player.Playing.String() {
			m.player.Pause()
			m.refreshStatus()
			return m, nil
		}
		m.statusMessage = "connecting..."
		return m, m.play()

	case key.Matches(msg, m.keys.Record):
		if m.recordBusy {
			return m, nil
		}
		m.recordBusy = true
		return m, m.toggleRecording()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) setFocus(f focusMode) {
	m.focus = f
	if f == focusInput {
		m.table.Blur()
		m.input.Focus()
		return
	}
	m.input.Blur()
	m.table.Focus()
}

// syncResults copies the finder state into the table.
func (m *Model) syncResults() {
	m.state = m.finder.Snapshot()

	rows := make([]table.Row, 0, len(m.state.Stations))
	for _, s := range m.state.Stations {
		rows = append(rows, table.Row{
			s.Name,
			s.Homepage,
			s.Country,
			s.State,
			s.Codec,
			strconv.Itoa(s.Bitrate) + " kbps",
		})
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func (m *Model) refreshStatus() {
	m.playerStatus = m.player.Status()
	m.recordStatus = m.recorder.Status()
}

func (m Model) search(query string) tea.Cmd {
	f, ctx := m.finder, m.ctx
	return func() tea.Msg {
		_, err := f.Search(ctx, query)
		return searchResultMsg{err: err}
	}
}

func (m Model) load(st radiobrowser.Station) tea.Cmd {
	p, ctx := m.player, m.ctx
	return func() tea.Msg {
		p.Load(ctx, st.StreamURL(), st.Name)
		return playResultMsg{name: st.Name}
	}
}

func (m Model) play() tea.Cmd {
	p, ctx := m.player, m.ctx
	return func() tea.Msg {
		return playResultMsg{err: p.Play(ctx)}
	}
}

func (m Model) toggleRecording() tea.Cmd {
	r, ctx := m.recorder, m.ctx
	return func() tea.Msg {
		rec, err := r.Toggle(ctx)
		return recordResultMsg{rec: rec, err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("📻 radiogo") + "\n\n")
	b.WriteString(labelStyle.Render("Station Name: ") + m.input.View() + "\n\n")

	switch m.state.Phase() {
	case finder.NoResults:
		b.WriteString(statusStyle.Render(fmt.Sprintf("No radio stations found for %q", m.state.Query)) + "\n")
	case finder.HasResults:
		b.WriteString(m.table.View() + "\n")
	}

	b.WriteString("\n" + m.renderPlayer() + "\n")

	switch {
	case m.errorMessage != "":
		b.WriteString(errorStyle.Render("✗ "+m.errorMessage) + "\n")
	case m.statusMessage != "":
		b.WriteString(statusStyle.Render(m.statusMessage) + "\n")
	default:
		b.WriteString("\n")
	}

	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m Model) renderPlayer() string {
	s := m.playerStatus
	if s.URL == "" {
		return statusStyle.Render("no station selected")
	}

	line := statusStyle.Render("⏸ " + s.Name)
	if s.State == player.Playing.String() {
		line = playingStyle.Render("▶ " + s.Name)
	}
	if s.NowPlaying != "" {
		line += statusStyle.Render(" · " + s.NowPlaying)
	}

	button := recordButtonStyle.Render(m.recordStatus.Label)
	if m.recordStatus.Recording {
		button = recordingButtonStyle.Render("● "+m.recordStatus.Label) +
			statusStyle.Render(" "+byteCountIEC(int64(m.recordStatus.Bytes)))
	}

	return line + "  " + button
}

func byteCountIEC(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
