package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/tasks"
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
	MsgProgressUpdate MsgKind = iota
	MsgNotice
	MsgJobFinished
	MsgReportsFetched
	MsgReportOpened
)

type jobFinished struct {
	job models.UploadJob
	err error
}

type reportsFetched struct {
	reports []models.Report
	err     error
}

type reportOpened struct {
	report models.Report
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// noticeMsg is the constructor for [MsgNotice]
func noticeMsg(n tasks.Notice) Msg {
	return Msg{kind: MsgNotice, data: n}
}

// jobFinishedMsg is the constructor for [MsgJobFinished]
func jobFinishedMsg(job models.UploadJob, err error) Msg {
	return Msg{kind: MsgJobFinished, data: jobFinished{job, err}}
}

// reportsFetchedMsg is the constructor for [MsgReportsFetched]
func reportsFetchedMsg(reports []models.Report, err error) Msg {
	return Msg{kind: MsgReportsFetched, data: reportsFetched{reports, err}}
}

// reportOpenedMsg is the constructor for [MsgReportOpened]
func reportOpenedMsg(r models.Report, err error) Msg {
	return Msg{kind: MsgReportOpened, data: reportOpened{r, err}}
}

// ChannelNotifier returns a [tasks.Notifier] that forwards notices to ch without blocking.
func ChannelNotifier(ch chan<- tasks.Notice) tasks.Notifier {
	return tasks.NotifierFunc(func(n tasks.Notice) {
		select {
		case ch <- n:
		default:
		}
	})
}
