package tui

import (
	"fmt"

	"dailybrief/internal/core"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// model is the state of the digest browser: a flat cursor over every
// item in the digest, rendered as a group list on the left and the
// selected article's detail on the right.
type model struct {
	digest      *core.Digest
	items       []core.DigestItem
	groupOfItem []int
	selectedIdx int
	width       int
	height      int
	quitting    bool
}

func newModel(digest *core.Digest) model {
	m := model{digest: digest}
	for g, group := range digest.Groups {
		for _, item := range group.Items {
			m.items = append(m.items, item)
			m.groupOfItem = append(m.groupOfItem, g)
		}
	}
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.items)-1 {
				m.selectedIdx++
			}
		}
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	docStyle := lipgloss.NewStyle().Margin(1, 2)
	paneStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(m.width/2 - 5)
	labelStyle := lipgloss.NewStyle().Bold(true)

	listContent := fmt.Sprintf("Digest %s\n\n", m.digest.Date)
	if len(m.items) == 0 {
		listContent += "Digest is empty."
	} else {
		itemIdx := 0
		for _, group := range m.digest.Groups {
			listContent += labelStyle.Render(group.Label) + "\n"
			for _, item := range group.Items {
				cursor := " "
				if itemIdx == m.selectedIdx {
					cursor = ">"
				}
				marker := " "
				if item.IsPrimary {
					marker = "*"
				}
				listContent += fmt.Sprintf("%s%s %s\n", cursor, marker, item.Article.Title)
				itemIdx++
			}
			listContent += "\n"
		}
	}

	detailContent := "Article\n\n"
	if m.selectedIdx < len(m.items) {
		item := m.items[m.selectedIdx]
		group := m.digest.Groups[m.groupOfItem[m.selectedIdx]]

		detailContent += labelStyle.Render(item.Article.Title) + "\n\n"
		if item.Article.URL != "" {
			detailContent += item.Article.URL + "\n\n"
		}
		if item.Summary != "" {
			detailContent += item.Summary + "\n\n"
		} else if group.Summary != "" {
			detailContent += group.Summary + "\n\n"
		}
		detailContent += item.Article.ContentText
	} else {
		detailContent += "Nothing selected."
	}

	leftPane := paneStyle.Render(listContent)
	rightPane := paneStyle.Render(detailContent)

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	help := "\n\n[k] Up | [j] Down | [q] Quit"

	return docStyle.Render(mainContent + help)
}

// Browse opens an interactive read-only view of the digest.
func Browse(digest *core.Digest) error {
	p := tea.NewProgram(newModel(digest), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run digest browser: %w", err)
	}
	return nil
}
