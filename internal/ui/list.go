package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/posterctl/internal/models"
)

var _ list.Item = designItem{}

// designItem wraps [models.Design] to implement [list.Item].
type designItem struct {
	design models.Design
}

func (i designItem) FilterValue() string { return i.Title() }
func (i designItem) Title() string       { return fmt.Sprintf("Variant %d", i.design.VariantNumber) }
func (i designItem) Description() string {
	parts := []string{}
	if d := i.design.Dimensions; d != nil {
		parts = append(parts, fmt.Sprintf("%dx%d", d.Width, d.Height))
	}
	if i.design.ImageURL != "" {
		parts = append(parts, i.design.ImageURL)
	} else {
		parts = append(parts, "not rendered")
	}
	if vs := i.design.ValidationScore; vs != nil && len(vs.ReadabilityIssues) > 0 {
		parts = append(parts, fmt.Sprintf("%d readability issues", len(vs.ReadabilityIssues)))
	}
	return strings.Join(parts, " • ")
}

func designItems(designs []models.Design) []list.Item {
	items := make([]list.Item, len(designs))
	for i, d := range designs {
		items[i] = designItem{design: d}
	}
	return items
}
