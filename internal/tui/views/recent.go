package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapharvest/internal/tui/styles"
)

type RecentItem struct {
	Path    string
	Term    string
	Records int
	SavedAt time.Time
}

type RecentModel struct {
	items  []RecentItem
	cursor int
}

func NewRecentModel(items []RecentItem) RecentModel {
	return RecentModel{items: items}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.items) {
				path := m.items[m.cursor].Path
				return m, func() tea.Msg { return NavigateToExplorer{Path: path} }
			}
		case "esc", "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Recent datasets"))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Nothing collected yet"))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc quit"))
		return styles.Border.Render(b.String())
	}

	for i, item := range m.items {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}

		name := filepath.Base(item.Path)
		nameStr := style.Render(name)
		if _, err := os.Stat(item.Path); os.IsNotExist(err) {
			nameStr = lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true).Render(name)
		}

		detail := fmt.Sprintf("  %s  %d records  %s", filepath.Dir(item.Path), item.Records, TimeAgo(item.SavedAt))
		if item.Term != "" {
			detail = fmt.Sprintf("  %q%s", item.Term, detail)
		}
		b.WriteString(fmt.Sprintf("%s%s\n%s\n", cursor, nameStr,
			lipgloss.NewStyle().Foreground(styles.Muted).Render(detail)))
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter explore • esc quit"))
	return styles.Border.Render(b.String())
}

func TimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
