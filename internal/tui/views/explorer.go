package views

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rendis/mapharvest/internal/engine/storage"
	"github.com/rendis/mapharvest/internal/model"
	"github.com/rendis/mapharvest/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
)

// ExplorerModel browses one saved dataset: a table, a filter and a detail
// card for the selected record.
type ExplorerModel struct {
	path       string
	businesses []model.Business
	filtered   []model.Business
	table      table.Model
	filter     textinput.Model
	focus      focusArea
	selected   int
	width      int
	height     int
	err        error
	exportMsg  string

	cardScrollY int
	cardLines   []string
}

type datasetLoadedMsg struct {
	Businesses []model.Business
	Err        error
}

// NavigateToExplorer opens a dataset file.
type NavigateToExplorer struct {
	Path string
}

// NavigateBack leaves the current view.
type NavigateBack struct{}

func NewExplorerModel(path string) ExplorerModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ExplorerModel{
		path:     path,
		filter:   filter,
		selected: -1,
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		businesses, err := storage.ReadDataset(context.Background(), path)
		return datasetLoadedMsg{Businesses: businesses, Err: err}
	}
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusTable:
			switch key {
			case "esc", "q":
				return m, func() tea.Msg { return NavigateBack{} }
			case "/", "tab":
				m.focus = focusFilter
				m.filter.Focus()
				return m, textinput.Blink
			case "1":
				m.focus = focusCard
				m.table.SetStyles(unfocusedTableStyles())
				return m, nil
			case "e":
				m.export()
				return m, nil
			}

		case focusFilter:
			switch key {
			case "esc", "enter", "tab":
				m.focus = focusTable
				m.filter.Blur()
				return m, nil
			}

		case focusCard:
			maxScroll := max(len(m.cardLines)-m.panelHeight(), 0)
			switch key {
			case "esc":
				m.focus = focusTable
				m.table.SetStyles(focusedTableStyles())
				return m, nil
			case "up", "k":
				if m.cardScrollY > 0 {
					m.cardScrollY--
				}
				return m, nil
			case "down", "j":
				if m.cardScrollY < maxScroll {
					m.cardScrollY++
				}
				return m, nil
			}
		}

	case datasetLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.businesses = msg.Businesses
		m.filtered = msg.Businesses
		m.buildTable(m.filtered)
		m.updateLayout()
		if len(m.filtered) > 0 {
			m.selected = 0
			m.cardLines = cardLines(m.filtered[0])
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		cursor := m.table.Cursor()
		if cursor != m.selected && cursor < len(m.filtered) {
			m.selected = cursor
			m.cardScrollY = 0
			m.cardLines = cardLines(m.filtered[cursor])
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	}
	return m, cmd
}

var cardLabels = map[model.Field]string{
	model.FieldAddress:        "Address:",
	model.FieldDomain:         "Domain:",
	model.FieldWebsite:        "Website:",
	model.FieldPhone:          "Phone:",
	model.FieldCategory:       "Category:",
	model.FieldLocation:       "Search:",
	model.FieldReviewsCount:   "Reviews:",
	model.FieldReviewsAverage: "Rating:",
	model.FieldPlusCode:       "Plus code:",
}

func cardLines(b model.Business) []string {
	name, ok := b.Name()
	if !ok {
		name = "(no name)"
	}
	lines := []string{name, ""}
	for _, f := range model.Fields {
		label, ok := cardLabels[f]
		if !ok {
			continue
		}
		if v, ok := b.Value(f); ok {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, v))
		}
	}
	lat, okLat := b.Latitude()
	lng, okLng := b.Longitude()
	if okLat && okLng {
		lines = append(lines, fmt.Sprintf("%-10s %.6f, %.6f", "Coords:", lat, lng))
	}
	return lines
}

func (m *ExplorerModel) buildTable(businesses []model.Business) {
	nameW, catW, locW, ratingW, phoneW := 28, 20, 14, 6, 16
	if m.width > 120 {
		extra := m.width - 120
		nameW += extra * 3 / 10
		catW += extra * 3 / 10
		locW += extra * 2 / 10
		phoneW += extra * 2 / 10
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Category", Width: catW},
		{Title: "Location", Width: locW},
		{Title: "Rating", Width: ratingW},
		{Title: "Phone", Width: phoneW},
	}

	rows := make([]table.Row, len(businesses))
	for i, b := range businesses {
		name, _ := b.Name()
		cat, _ := b.Category()
		loc, _ := b.Location()
		phone, _ := b.Phone()
		rating := ""
		if v, ok := b.ReviewsAverage(); ok {
			rating = strconv.FormatFloat(v, 'f', 1, 64)
		}
		rows[i] = table.Row{truncate(name, nameW), truncate(cat, catW), truncate(loc, locW), rating, phone}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	t.SetStyles(focusedTableStyles())
	m.table = t
}

func focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func unfocusedTableStyles() table.Styles {
	s := focusedTableStyles()
	s.Header = s.Header.Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m ExplorerModel) tableHeight() int {
	return max(m.height/2-4, 5)
}

func (m ExplorerModel) panelHeight() int {
	return max(m.height/2-6, 6)
}

func (m *ExplorerModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable(m.filtered)
}

// normalize strips diacritics and lowercases text for matching.
func normalize(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(func(r rune) bool {
		return unicode.Is(unicode.Mn, r)
	}), norm.NFC)
	result, _, _ := transform.String(t, strings.ToLower(s))
	return result
}

// Filter keeps the businesses whose text fields contain every word of query.
func Filter(businesses []model.Business, query string) []model.Business {
	words := strings.Fields(normalize(query))
	if len(words) == 0 {
		return businesses
	}
	var out []model.Business
	for _, b := range businesses {
		haystack := normalize(strings.Join(b.Values(), " "))
		match := true
		for _, w := range words {
			if !strings.Contains(haystack, w) {
				match = false
				break
			}
		}
		if match {
			out = append(out, b)
		}
	}
	return out
}

func (m *ExplorerModel) applyFilter() {
	m.filtered = Filter(m.businesses, m.filter.Value())
	m.buildTable(m.filtered)
	m.selected = -1
	m.cardLines = nil
	if len(m.filtered) > 0 {
		m.selected = 0
		m.cardLines = cardLines(m.filtered[0])
	}
}

// export writes the filtered rows as a spreadsheet next to the dataset.
func (m *ExplorerModel) export() {
	data := m.filtered
	if len(data) == 0 {
		data = m.businesses
	}
	ext := filepath.Ext(m.path)
	out := strings.TrimSuffix(m.path, ext) + ".filtered.xlsx"
	if err := storage.WriteXLSX(out, data); err != nil {
		m.exportMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.exportMsg = fmt.Sprintf("Exported %d rows to %s", len(data), out)
}

func (m ExplorerModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading dataset: %v", m.err))
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(fmt.Sprintf("%s: %d businesses", filepath.Base(m.path), len(m.businesses))))
	if len(m.filtered) != len(m.businesses) {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).
			Render(fmt.Sprintf(" (showing %d)", len(m.filtered))))
	}
	b.WriteString("\n\n")

	filterStyle := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	cardW := max(m.width-4, 40)
	borderColor := styles.Muted
	if m.focus == focusCard {
		borderColor = styles.Primary
	}
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(cardW).
		Height(m.panelHeight()).
		Render(m.viewCard(cardW-4, m.panelHeight()))
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(borderColor).Render("[1] Details"))
	b.WriteString("\n")
	b.WriteString(card)
	b.WriteString("\n\n")

	if m.exportMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.exportMsg))
		b.WriteString("\n")
	}

	var status string
	switch m.focus {
	case focusTable:
		status = "↑↓ navigate • 1 details • / filter • e export xlsx • esc back"
	case focusFilter:
		status = "type to filter • esc back"
	case focusCard:
		status = "↑↓ scroll • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(status))
	return b.String()
}

func (m ExplorerModel) viewCard(w, h int) string {
	if len(m.cardLines) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
			Render("Select a business\nto view details")
	}

	lines := m.cardLines
	scrollY := min(m.cardScrollY, max(len(lines)-h, 0))
	end := min(scrollY+h, len(lines))

	var sb strings.Builder
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	for i, line := range lines[scrollY:end] {
		switch {
		case scrollY+i == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).Render(truncate(line, w)))
		case strings.HasPrefix(line, "Website:"):
			sb.WriteString(label.Render(fmt.Sprintf("%-10s ", "Website:")))
			sb.WriteString(styles.Link.Render(truncate(strings.TrimSpace(strings.TrimPrefix(line, "Website:")), w-11)))
		default:
			sb.WriteString(styles.Value.Render(truncate(line, w)))
		}
		if scrollY+i < end-1 {
			sb.WriteString("\n")
		}
	}
	if scrollY > 0 {
		sb.WriteString("\n" + label.Render("  ▲ more above"))
	}
	if end < len(lines) {
		sb.WriteString("\n" + label.Render("  ▼ more below"))
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
