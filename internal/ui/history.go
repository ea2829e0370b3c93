package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/segx/internal/models"
)

// HistoryOpts supplies the data source and the action for opening a report.
type HistoryOpts struct {
	Load func(ctx context.Context) ([]models.Report, error)
	Open func(ctx context.Context, r models.Report) error
}

// HistoryModel lists completed reports, newest first.
type HistoryModel struct {
	ctx     context.Context
	opts    HistoryOpts
	list    list.Model
	reports []models.Report
	loading bool
	status  string
	err     error
	width   int
	height  int
	help    help.Model
	keys    keyMap
}

// NewHistoryModel creates a [HistoryModel]. Reports are loaded by Init.
func NewHistoryModel(ctx context.Context, opts HistoryOpts) *HistoryModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Reports"
	l.SetShowHelp(false)

	return &HistoryModel{
		ctx:     ctx,
		opts:    opts,
		list:    l,
		loading: true,
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init loads the report list.
func (m *HistoryModel) Init() tea.Cmd {
	return m.load()
}

// Update handles incoming messages and updates the model state.
func (m *HistoryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			m.loading = true
			m.status = ""
			return m, m.load()
		case key.Matches(msg, m.keys.open):
			if item, ok := m.list.SelectedItem().(reportItem); ok {
				m.status = fmt.Sprintf("Opening report #%d...", item.report.Number)
				return m, m.open(item.report)
			}
			return m, nil
		}

	case Msg:
		switch msg.kind {
		case MsgReportsFetched:
			res := msg.data.(reportsFetched)
			m.loading = false
			m.err = res.err
			if res.err == nil {
				m.reports = res.reports
				cmd := m.list.SetItems(reportItems(res.reports))
				m.list.Title = fmt.Sprintf("Reports (%d)", len(res.reports))
				return m, cmd
			}
			return m, nil
		case MsgReportOpened:
			res := msg.data.(reportOpened)
			if res.err != nil {
				m.status = styles.warn.Render(fmt.Sprintf("⚠ report #%d: %v", res.report.Number, res.err))
			} else {
				m.status = styles.ok.Render(fmt.Sprintf("✓ Opened report #%d", res.report.Number))
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *HistoryModel) load() tea.Cmd {
	return func() tea.Msg {
		reports, err := m.opts.Load(m.ctx)
		return reportsFetchedMsg(reports, err)
	}
}

func (m *HistoryModel) open(r models.Report) tea.Cmd {
	return func() tea.Msg {
		if m.opts.Open == nil {
			return reportOpenedMsg(r, nil)
		}
		return reportOpenedMsg(r, m.opts.Open(m.ctx, r))
	}
}

// View renders the list, the last action's status, and key help.
func (m *HistoryModel) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.err))
	}
	if m.loading && len(m.reports) == 0 {
		return "Loading reports...\n"
	}
	if len(m.reports) == 0 {
		return fmt.Sprintf("No completed reports yet.\n\n%s", m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.quit}))
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.open, m.keys.refresh, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.list.View(), m.status, helpView)
}
