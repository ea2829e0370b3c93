package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/segx/internal/models"
	"github.com/desertthunder/segx/internal/tasks"
)

// JobRunner starts, awaits, and stops upload jobs. [tasks.Controller] implements it.
type JobRunner interface {
	Submit(ctx context.Context, slots models.FileSlots, owner models.Identity) (models.UploadJob, error)
	Wait(ctx context.Context) (models.UploadJob, error)
	Stop()
}

var _ JobRunner = (*tasks.Controller)(nil)

// UploadOpts configures an [UploadModel]. Progress and Notices must be the channels the runner writes to.
type UploadOpts struct {
	Runner   JobRunner
	Slots    models.FileSlots
	Owner    models.Identity
	Progress <-chan tasks.ProgressUpdate
	Notices  <-chan tasks.Notice
}

// UploadModel submits one job and follows it to the result.
type UploadModel struct {
	ctx      context.Context
	opts     UploadOpts
	spinner  spinner.Model
	estimate models.ProcessingEstimate
	status   string
	notices  []tasks.Notice
	job      models.UploadJob
	err      error
	done     bool
	stopping bool
	help     help.Model
	keys     keyMap
}

// NewUploadModel creates an [UploadModel]. The job starts when the program calls Init.
func NewUploadModel(ctx context.Context, opts UploadOpts) *UploadModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = NewStyle("#2563EB")

	return &UploadModel{
		ctx:     ctx,
		opts:    opts,
		spinner: s,
		status:  "Preparing upload...",
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init starts the submission and begins listening for progress and notices.
func (m *UploadModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.submit(), m.waitForProgress(), m.waitForNotice())
}

// Update handles incoming messages and updates the model state.
func (m *UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			if !m.done {
				m.opts.Runner.Stop()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.stop):
			if !m.done && !m.stopping {
				m.stopping = true
				m.status = "Stopping..."
				m.opts.Runner.Stop()
			}
			return m, nil
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.applyProgress(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgNotice:
			m.notices = append(m.notices, msg.data.(tasks.Notice))
			return m, m.waitForNotice()
		case MsgJobFinished:
			res := msg.data.(jobFinished)
			m.job = res.job
			m.err = res.err
			m.done = true
			if res.job.State == models.Complete {
				m.estimate = tasks.CompleteEstimate()
			}
			return m, nil
		}
	}

	return m, nil
}

func (m *UploadModel) applyProgress(u tasks.ProgressUpdate) {
	if u.Message != "" {
		m.status = u.Message
	}
	if est, ok := u.Data.(models.ProcessingEstimate); ok && est.Aggregate() >= m.estimate.Aggregate() {
		m.estimate = est
	}
	if u.Phase == tasks.Completed {
		m.estimate = tasks.CompleteEstimate()
	}
}

// Finished reports whether the job has ended.
func (m *UploadModel) Finished() bool {
	return m.done
}

// Job returns the final job and its error once [UploadModel.Finished] is true.
func (m *UploadModel) Job() (models.UploadJob, error) {
	return m.job, m.err
}

func (m *UploadModel) submit() tea.Cmd {
	return func() tea.Msg {
		job, err := m.opts.Runner.Submit(m.ctx, m.opts.Slots, m.opts.Owner)
		if err != nil {
			return jobFinishedMsg(job, err)
		}
		job, err = m.opts.Runner.Wait(m.ctx)
		return jobFinishedMsg(job, err)
	}
}

func (m *UploadModel) waitForProgress() tea.Cmd {
	if m.opts.Progress == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u, ok := <-m.opts.Progress:
			if !ok {
				return nil
			}
			return progressUpdateMsg(u)
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *UploadModel) waitForNotice() tea.Cmd {
	if m.opts.Notices == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case n, ok := <-m.opts.Notices:
			if !ok {
				return nil
			}
			return noticeMsg(n)
		case <-m.ctx.Done():
			return nil
		}
	}
}

// View renders the phase bars, notices, and the result once the job ends.
func (m *UploadModel) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Brain Tumor Segmentation"))
	b.WriteString("\n")

	if !m.done {
		b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.status))
	} else {
		b.WriteString(m.status + "\n\n")
	}

	agg := m.estimate.Aggregate()
	b.WriteString(fmt.Sprintf("%-18s %s %3d%%\n\n", "Overall", styles.Bar(agg, 40), agg))
	for i, ph := range models.Phases {
		v := m.estimate.Phases[i]
		b.WriteString(fmt.Sprintf("%-18s %s %3d%%\n", ph.Label(), styles.Bar(v, 30), v))
	}

	if len(m.notices) > 0 {
		b.WriteString("\n")
		for _, n := range m.notices {
			b.WriteString(renderNotice(n) + "\n")
		}
	}

	if m.done {
		b.WriteString("\n" + m.renderResult())
	}

	keys := []key.Binding{m.keys.stop, m.keys.quit}
	if m.done {
		keys = []key.Binding{m.keys.quit}
	}
	b.WriteString("\n" + m.help.ShortHelpView(keys))
	return b.String()
}

func (m *UploadModel) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("✗ %v", m.err)) + "\n"
	}
	if m.job.Result == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render("✓ Segmentation ready") + "\n")
	b.WriteString(fmt.Sprintf("Segmentation: %s\n", m.job.Result.StaticImage))
	b.WriteString(fmt.Sprintf("Slice sweep:  %s\n", m.job.Result.GIF))
	if m.job.PresentErr != nil {
		b.WriteString(styles.warn.Render(fmt.Sprintf("⚠ %v", m.job.PresentErr)) + "\n")
	}
	b.WriteString("\n" + styles.Legend())
	return b.String()
}

func renderNotice(n tasks.Notice) string {
	switch n.Level {
	case tasks.NoticeSuccess:
		return styles.ok.Render("✓ " + n.Message)
	case tasks.NoticeWarning:
		return styles.warn.Render("⚠ " + n.Message)
	case tasks.NoticeError:
		return styles.err.Render("✗ " + n.Message)
	default:
		return n.Message
	}
}
