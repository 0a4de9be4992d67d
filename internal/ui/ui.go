package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crowdq/internal/events"
	"github.com/desertthunder/crowdq/internal/formatter"
	"github.com/desertthunder/crowdq/internal/models"
)

// DefaultUser votes and adds songs when Opts.User is empty.
const DefaultUser = "host"

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	AddView
)

// Engine is the part of the coordinator the monitor drives.
type Engine interface {
	AddSong(ctx context.Context, req models.AddSongRequest) models.AddResult
	Vote(ctx context.Context, index int, user string) bool
	Skip(ctx context.Context, count int) []string
	GetQueue() []models.QueueEntry
	NowPlaying() models.NowPlaying
}

// Opts configures [NewModel].
type Opts struct {
	User string      // listener name for votes and adds
	Bus  *events.Bus // optional; playback events trigger a refresh
	Tick time.Duration
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	engine Engine
	bus    *events.Bus
	sub    *events.Subscription
	user   string
	tick   time.Duration

	width   int
	height  int
	queue   list.Model
	input   textinput.Model
	entries []models.QueueEntry
	now     models.NowPlaying
	status  string
	err     error
	busy    bool
	help    help.Model
	keys    keyMap
}

// NewModel creates a monitor for engine.
func NewModel(ctx context.Context, engine Engine, opts Opts) *Model {
	if opts.User == "" {
		opts.User = DefaultUser
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}

	queue := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	queue.Title = "Up next"
	queue.SetFilteringEnabled(false)
	queue.SetShowHelp(false)
	queue.DisableQuitKeybindings()

	input := textinput.New()
	input.Placeholder = "song title, link or track reference"
	input.CharLimit = 200

	return &Model{
		ctx:    ctx,
		view:   QueueView,
		engine: engine,
		bus:    opts.Bus,
		user:   opts.User,
		tick:   opts.Tick,
		queue:  queue,
		input:  input,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init loads the queue and starts listening for playback events.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.refresh(), m.nextTick()}
	if m.bus != nil {
		m.sub = m.bus.Subscribe(events.DefaultBuffer)
		cmds = append(cmds, m.waitForEvent())
	}
	return tea.Batch(cmds...)
}

// Close releases the event subscription.
func (m *Model) Close() {
	if m.bus != nil && m.sub != nil {
		m.bus.Unsubscribe(m.sub)
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.queue.SetSize(msg.Width-4, max(msg.Height-10, 3))
		m.input.Width = max(msg.Width-8, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case AddView:
			return m.handleAddKeys(msg)
		default:
			return m.handleQueueKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRefreshed:
		data := msg.data.(refreshed)
		m.entries = data.entries
		m.now = data.now
		m.queue.SetItems(queueItems(data.entries))
		return m, nil

	case MsgActionDone:
		data := msg.data.(actionDone)
		m.busy = false
		m.status = data.status
		m.err = data.err
		return m, m.refresh()

	case MsgPlaybackEvent:
		return m, tea.Batch(m.refresh(), m.waitForEvent())

	case MsgTick:
		return m, tea.Batch(m.refresh(), m.nextTick())

	case MsgEventsClosed:
		m.sub = nil
		return m, nil
	}
	return m, nil
}

func (m *Model) handleQueueKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.add):
		m.view = AddView
		m.input.Reset()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.vote):
		return m, m.vote()
	case key.Matches(msg, m.keys.skip):
		return m, m.skip()
	}

	var cmd tea.Cmd
	m.queue, cmd = m.queue.Update(msg)
	return m, cmd
}

func (m *Model) handleAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = QueueView
		m.input.Blur()
		return m, nil
	case "enter":
		query := strings.TrimSpace(m.input.Value())
		m.view = QueueView
		m.input.Blur()
		if query == "" {
			return m, nil
		}
		return m, m.add(query)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("crowdq"))
	b.WriteString("\n")
	b.WriteString("Now playing: ")
	if m.now.Playing {
		b.WriteString(styles.ok.Render(formatter.NowPlaying(m.now)))
	} else {
		b.WriteString(styles.help.Render(formatter.NowPlaying(m.now)))
	}
	b.WriteString("\n\n")

	switch m.view {
	case AddView:
		b.WriteString("Add a song\n\n")
		b.WriteString(m.input.View())
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.back}))
	default:
		if len(m.entries) == 0 {
			b.WriteString(styles.help.Render("The queue is empty. Press a to add a song."))
		} else {
			b.WriteString(m.queue.View())
		}
		b.WriteString("\n\n")
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}

	switch {
	case m.busy:
		b.WriteString("\n")
		b.WriteString(styles.warn.Render("working..."))
	case m.err != nil:
		b.WriteString("\n")
		b.WriteString(styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.status != "":
		b.WriteString("\n")
		b.WriteString(styles.ok.Render(m.status))
	}

	return b.String()
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg(m.engine.GetQueue(), m.engine.NowPlaying())
	}
}

func (m *Model) nextTick() tea.Cmd {
	return tea.Tick(m.tick, func(time.Time) tea.Msg { return tickMsg() })
}

// waitForEvent blocks until the next playback event or the bus closes.
func (m *Model) waitForEvent() tea.Cmd {
	sub := m.sub
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case e := <-sub.TrackChanged:
			return playbackEventMsg(events.KindTrackChanged.String() + ":" + e.Current.TrackRef)
		case e := <-sub.NowPlaying:
			return playbackEventMsg(events.KindNowPlaying.String() + ":" + e.Current.TrackRef)
		case <-sub.Done:
			return eventsClosedMsg()
		case <-m.ctx.Done():
			return eventsClosedMsg()
		}
	}
}

func (m *Model) vote() tea.Cmd {
	index := m.queue.Index()
	if index < 0 || index >= len(m.entries) {
		return nil
	}
	entry := m.entries[index]
	m.busy = true
	return func() tea.Msg {
		if m.engine.Vote(m.ctx, index, m.user) {
			return actionDoneMsg(fmt.Sprintf("Voted for %s", entry.Title), nil)
		}
		return actionDoneMsg(fmt.Sprintf("You already voted for %s", entry.Title), nil)
	}
}

func (m *Model) skip() tea.Cmd {
	if len(m.entries) == 0 {
		return nil
	}
	m.busy = true
	return func() tea.Msg {
		retired := m.engine.Skip(m.ctx, 1)
		if len(retired) == 0 {
			return actionDoneMsg("Nothing to skip", nil)
		}
		return actionDoneMsg("Skipped "+strings.Join(retired, ", "), nil)
	}
}

func (m *Model) add(query string) tea.Cmd {
	req := models.AddSongRequest{Title: query, UserID: m.user}
	if looksLikeRef(query) {
		req = models.AddSongRequest{Ref: query, UserID: m.user}
	}
	m.busy = true
	return func() tea.Msg {
		res := m.engine.AddSong(m.ctx, req)
		if !res.Success {
			return actionDoneMsg("", errors.New(res.Error))
		}
		return actionDoneMsg(fmt.Sprintf("Added %s to %s", res.Title, res.ActiveName), nil)
	}
}

// looksLikeRef reports whether query is a link or URI rather than a title to search.
func looksLikeRef(query string) bool {
	return strings.HasPrefix(query, "spotify:") || strings.Contains(query, "open.spotify.com/")
}
