package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapharvest/internal/engine/scraper"
	"github.com/rendis/mapharvest/internal/tui/views"
)

type viewID int

const (
	viewCollect viewID = iota
	viewExplorer
	viewRecent
)

// App is the root bubbletea model.
type App struct {
	currentView viewID
	previous    viewID
	width       int
	height      int
	collect     views.CollectModel
	explorer    views.ExplorerModel
	recent      views.RecentModel
}

func newCollectApp(terms []string, run views.RunFunc) App {
	return App{currentView: viewCollect, collect: views.NewCollectModel(terms, run)}
}

func newRecentApp(entries []RecentEntry) App {
	items := make([]views.RecentItem, len(entries))
	for i, e := range entries {
		items[i] = views.RecentItem{Path: e.Path, Term: e.Term, Records: e.Records, SavedAt: e.SavedAt}
	}
	return App{currentView: viewRecent, recent: views.NewRecentModel(items)}
}

func newExplorerApp(path string) App {
	return App{currentView: viewExplorer, previous: viewExplorer, explorer: views.NewExplorerModel(path)}
}

func (a App) Init() tea.Cmd {
	switch a.currentView {
	case viewCollect:
		return a.collect.Init()
	case viewExplorer:
		return a.explorer.Init()
	}
	return a.recent.Init()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
	case views.NavigateToExplorer:
		a.previous = a.currentView
		a.currentView = viewExplorer
		a.explorer = views.NewExplorerModel(msg.Path)
		return a, tea.Batch(a.explorer.Init(), a.sizeCmd())
	case views.NavigateBack:
		if a.previous == viewExplorer {
			return a, tea.Quit
		}
		a.currentView = a.previous
		return a, a.sizeCmd()
	}

	var cmd tea.Cmd
	var m tea.Model
	switch a.currentView {
	case viewCollect:
		m, cmd = a.collect.Update(msg)
		a.collect = m.(views.CollectModel)
	case viewExplorer:
		m, cmd = a.explorer.Update(msg)
		a.explorer = m.(views.ExplorerModel)
	case viewRecent:
		m, cmd = a.recent.Update(msg)
		a.recent = m.(views.RecentModel)
	}
	return a, cmd
}

func (a App) View() string {
	var content string
	switch a.currentView {
	case viewCollect:
		content = a.collect.View()
	case viewExplorer:
		content = a.explorer.View()
	case viewRecent:
		content = a.recent.View()
	}

	return lipgloss.Place(
		a.width, a.height,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// sizeCmd sends a WindowSizeMsg so newly created views get the current terminal size.
func (a App) sizeCmd() tea.Cmd {
	w, h := a.width, a.height
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: w, Height: h}
	}
}

// RunCollect shows the progress of run until the user leaves, then returns
// what the run produced.
func RunCollect(terms []string, run views.RunFunc) ([]scraper.TermResult, error) {
	final, err := tea.NewProgram(newCollectApp(terms, run), tea.WithAltScreen()).Run()
	if err != nil {
		return nil, fmt.Errorf("running tui: %w", err)
	}
	return final.(App).collect.Results()
}

// RunRecent lists the recent datasets and lets the user explore one.
func RunRecent(store RecentStore) error {
	entries, err := store.Load()
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(newRecentApp(entries), tea.WithAltScreen()).Run()
	return err
}

// RunExplorer opens a single dataset.
func RunExplorer(path string) error {
	_, err := tea.NewProgram(newExplorerApp(path), tea.WithAltScreen()).Run()
	return err
}
