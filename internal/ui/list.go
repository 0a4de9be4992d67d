package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/crowdq/internal/models"
)

var _ list.Item = queueItem{}

// queueItem wraps [models.QueueEntry] to implement [list.Item].
type queueItem struct {
	entry models.QueueEntry
}

func (i queueItem) FilterValue() string { return i.entry.Title }
func (i queueItem) Title() string {
	return fmt.Sprintf("%d. %s", i.entry.Position, i.entry.Title)
}
func (i queueItem) Description() string {
	parts := []string{i.entry.AddedBy, votes(i.entry.Votes)}
	if i.entry.Source.Seeded() {
		parts = append(parts, string(i.entry.Source))
	}
	return strings.Join(parts, " • ")
}

func votes(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", n)
}

func queueItems(entries []models.QueueEntry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = queueItem{entry: e}
	}
	return items
}
