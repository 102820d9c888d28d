package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/vidproxy/internal/models"
)

var _ list.Item = formatItem{}

var formatDescriptions = map[models.Format]string{
	models.FormatMP4:  "Video, merged into an mp4 container",
	models.FormatWebM: "Video, merged into a webm container",
	models.FormatMP3:  "Audio only, extracted to mp3",
}

// formatItem wraps [models.Format] to implement [list.Item].
type formatItem struct {
	format models.Format
}

func (i formatItem) FilterValue() string { return string(i.format) }
func (i formatItem) Title() string       { return string(i.format) }
func (i formatItem) Description() string { return formatDescriptions[i.format] }

func formatItems() []list.Item {
	items := make([]list.Item, len(models.Formats))
	for i, f := range models.Formats {
		items[i] = formatItem{format: f}
	}
	return items
}
