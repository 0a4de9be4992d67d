package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/crowdq/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgRefreshed MsgKind = iota
	MsgActionDone
	MsgPlaybackEvent
	MsgTick
	MsgEventsClosed
)

type refreshed struct {
	entries []models.QueueEntry
	now     models.NowPlaying
}

type actionDone struct {
	status string
	err    error
}

// refreshedMsg is the constructor for [MsgRefreshed]
func refreshedMsg(entries []models.QueueEntry, now models.NowPlaying) Msg {
	return Msg{kind: MsgRefreshed, data: refreshed{entries, now}}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(status string, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionDone{status, err}}
}

// playbackEventMsg is the constructor for [MsgPlaybackEvent]
func playbackEventMsg(kind string) Msg {
	return Msg{kind: MsgPlaybackEvent, data: kind}
}

func tickMsg() Msg {
	return Msg{kind: MsgTick}
}

func eventsClosedMsg() Msg {
	return Msg{kind: MsgEventsClosed}
}
