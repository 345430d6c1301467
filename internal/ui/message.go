package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/lidx/internal/tasks"
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
	MsgPollUpdate MsgKind = iota
	MsgSearchUpdate
	MsgRetryDone
	MsgRefreshDone
	MsgNotice
)

// retryResult is the payload of [MsgRetryDone].
type retryResult struct {
	id  int
	err error
}

// pollUpdateMsg is the constructor for [MsgPollUpdate]
func pollUpdateMsg(state tasks.PollState) Msg {
	return Msg{kind: MsgPollUpdate, data: state}
}

// searchUpdateMsg is the constructor for [MsgSearchUpdate]
func searchUpdateMsg(state tasks.SearchState) Msg {
	return Msg{kind: MsgSearchUpdate, data: state}
}

// retryDoneMsg is the constructor for [MsgRetryDone]
func retryDoneMsg(id int, err error) Msg {
	return Msg{kind: MsgRetryDone, data: retryResult{id: id, err: err}}
}

// refreshDoneMsg is the constructor for [MsgRefreshDone]
func refreshDoneMsg(err error) Msg {
	return Msg{kind: MsgRefreshDone, data: err}
}

// noticeMsg is the constructor for [MsgNotice], a one-shot line shown under the panels
func noticeMsg(text string, isErr bool) Msg {
	return Msg{kind: MsgNotice, data: notice{text: text, isErr: isErr}}
}

// waitForPoll blocks on the next poller update. A closed channel yields no message.
func waitForPoll(ch <-chan tasks.PollState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return pollUpdateMsg(state)
	}
}

// waitForSearch blocks on the next search session update.
func waitForSearch(ch <-chan tasks.SearchState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-ch
		if !ok {
			return nil
		}
		return searchUpdateMsg(state)
	}
}
