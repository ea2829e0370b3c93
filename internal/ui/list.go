package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/segx/internal/models"
)

var _ list.Item = reportItem{}

// reportItem wraps [models.Report] to implement [list.Item].
type reportItem struct {
	report models.Report
}

func (i reportItem) FilterValue() string { return fmt.Sprintf("#%d %s", i.report.Number, i.report.BatchID) }
func (i reportItem) Title() string       { return fmt.Sprintf("Report #%d", i.report.Number) }
func (i reportItem) Description() string {
	desc := i.report.CreatedAt.Local().Format("2006-01-02 15:04")
	if i.report.BatchID != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.report.BatchID)
	}
	return desc
}

func reportItems(reports []models.Report) []list.Item {
	items := make([]list.Item, len(reports))
	for i, r := range reports {
		items[i] = reportItem{report: r}
	}
	return items
}
