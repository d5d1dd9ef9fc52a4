package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/mapharvest/internal/engine/scraper"
	"github.com/rendis/mapharvest/internal/tui/styles"
)

const feedSize = 8

// RunFunc starts a collect run. It must stop when ctx is cancelled and
// report every step through onEvent.
type RunFunc func(ctx context.Context, stats *scraper.Stats, onEvent func(scraper.Event)) ([]scraper.TermResult, error)

// sharedState holds data shared between the pipeline goroutine and TUI.
// Lives behind a pointer so it survives bubbletea's value copies.
type sharedState struct {
	mu       sync.Mutex
	stats    *scraper.Stats
	cancel   context.CancelFunc
	term     string
	index    int
	listings int
	feed     []feedLine
	results  []scraper.TermResult
}

type feedLine struct {
	kind scraper.EventKind
	text string
	dup  bool
}

// CollectModel shows a running collect and its per-term summary.
type CollectModel struct {
	terms       []string
	run         RunFunc
	progress    progress.Model
	spinner     spinner.Model
	startTime   time.Time
	done        bool
	stopping    bool
	confirmQuit bool
	err         error
	width       int
	height      int
	shared      *sharedState
}

type progressTickMsg time.Time

type collectDoneMsg struct {
	Results []scraper.TermResult
	Err     error
}

func NewCollectModel(terms []string, run RunFunc) CollectModel {
	return CollectModel{
		terms: terms,
		run:   run,
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(50),
		),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Secondary))),
		startTime: time.Now(),
		shared:    &sharedState{stats: &scraper.Stats{TermsTotal: len(terms)}},
	}
}

func (m CollectModel) Init() tea.Cmd {
	return tea.Batch(m.start(), m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func (m CollectModel) start() tea.Cmd {
	shared := m.shared
	run := m.run
	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		shared.mu.Lock()
		shared.cancel = cancel
		stats := shared.stats
		shared.mu.Unlock()

		results, err := run(ctx, stats, shared.onEvent)
		return collectDoneMsg{Results: results, Err: err}
	}
}

func (m CollectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.done || m.stopping {
				m.shared.stop()
				return m, tea.Quit
			}
			// The pipeline saves the current term before returning.
			m.shared.stop()
			m.stopping = true
			return m, nil
		case "esc":
			if m.done {
				return m, tea.Quit
			}
			if m.confirmQuit {
				m.shared.stop()
				m.stopping = true
				m.confirmQuit = false
				return m, nil
			}
			m.confirmQuit = true
			return m, nil
		case "enter":
			if m.done {
				if path := m.firstFile(); path != "" {
					return m, func() tea.Msg { return NavigateToExplorer{Path: path} }
				}
				return m, tea.Quit
			}
			m.confirmQuit = false
			return m, nil
		}
		if m.confirmQuit {
			m.confirmQuit = false
		}
	case progressTickMsg:
		if m.done {
			return m, nil
		}
		return m, tickCmd()
	case collectDoneMsg:
		m.done = true
		m.err = msg.Err
		m.shared.mu.Lock()
		m.shared.results = msg.Results
		m.shared.mu.Unlock()
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	var pModel tea.Model
	pModel, cmd = m.progress.Update(msg)
	m.progress = pModel.(progress.Model)
	return m, cmd
}

// Results returns what the run produced once it has finished.
func (m CollectModel) Results() ([]scraper.TermResult, error) {
	m.shared.mu.Lock()
	defer m.shared.mu.Unlock()
	return m.shared.results, m.err
}

func (m CollectModel) firstFile() string {
	results, _ := m.Results()
	for _, r := range results {
		if len(r.Files) > 0 {
			return r.Files[0]
		}
	}
	return ""
}

func (m CollectModel) View() string {
	var b strings.Builder

	s := m.shared.snapshot()
	title := fmt.Sprintf("Collecting %d search term(s)", len(m.terms))
	if s.term != "" && !m.done {
		title = fmt.Sprintf("%s Collecting %q", m.spinner.View(), s.term)
	}
	b.WriteString(styles.Title.Render(title))
	b.WriteString("\n\n")

	statsBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(32).
		Render(m.renderStats())
	feedBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(48).
		Render(renderFeed(s.feed))
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, statsBox, " ", feedBox))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(m.percent(s)))
	b.WriteString("\n\n")

	switch {
	case m.done:
		b.WriteString(m.renderResults())
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("enter explore first dataset • esc quit"))
	case m.stopping:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render("Stopping, saving collected records…"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("ctrl+c quit now"))
	case m.confirmQuit:
		b.WriteString(styles.ErrorText.Render("Press ESC again to stop; collected records are still saved"))
		b.WriteString("\n")
		b.WriteString(styles.StatusBar.Render("esc confirm stop • any key continue"))
	default:
		b.WriteString(styles.StatusBar.Render("esc stop • ctrl+c stop"))
	}

	return b.String()
}

func (m CollectModel) percent(s snapshot) float64 {
	stats := s.stats
	if stats == nil || stats.TermsTotal == 0 {
		return 0
	}
	if m.done {
		return 1
	}
	done := float64(stats.TermsDone.Load())
	if s.listings > 0 {
		done += float64(s.index+1) / float64(s.listings)
	}
	pct := done / float64(stats.TermsTotal)
	if pct > 1 {
		pct = 1
	}
	return pct
}

func (m CollectModel) renderStats() string {
	var sb strings.Builder
	elapsed := time.Since(m.startTime).Truncate(time.Second)
	stats := m.shared.snapshot().stats

	statLabel := styles.Label.Width(12)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)
	row := func(label string, value string, style lipgloss.Style) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(style.Render(value))
		sb.WriteString("\n")
	}

	row("Terms:", fmt.Sprintf("%d/%d", stats.TermsDone.Load(), stats.TermsTotal), statVal)
	row("Loaded:", fmt.Sprintf("%d", stats.Loaded.Load()), statVal)
	row("Scraped:", fmt.Sprintf("%d", stats.Scraped.Load()), statVal)
	row("New:", fmt.Sprintf("%d", stats.Added.Load()), styles.Added)
	row("Duplicate:", fmt.Sprintf("%d", stats.Duplicates.Load()), styles.Duplicate)

	skipStyle := statVal
	if stats.Skipped.Load() > 0 {
		skipStyle = lipgloss.NewStyle().Foreground(styles.Error).Bold(true)
	}
	row("Skipped:", fmt.Sprintf("%d", stats.Skipped.Load()), skipStyle)
	row("Elapsed:", elapsed.String(), statVal)
	return sb.String()
}

func renderFeed(feed []feedLine) string {
	if len(feed) == 0 {
		return lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("waiting for listings…")
	}
	lines := make([]string, len(feed))
	for i, l := range feed {
		switch {
		case l.kind == scraper.EventSkipped:
			lines[i] = styles.ErrorText.Render("! " + truncate(l.text, 42))
		case l.dup:
			lines[i] = styles.Duplicate.Render("= " + truncate(l.text, 42))
		case l.kind == scraper.EventListing:
			lines[i] = styles.Added.Render("+ " + truncate(l.text, 42))
		default:
			lines[i] = styles.Value.Render(truncate(l.text, 44))
		}
	}
	return strings.Join(lines, "\n")
}

func (m CollectModel) renderResults() string {
	if m.err != nil && !errors.Is(m.err, context.Canceled) {
		return styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	var sb strings.Builder
	if errors.Is(m.err, context.Canceled) {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Bold(true).Render("Stopped, partial results saved"))
	} else {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Bold(true).Render("Complete!"))
	}
	sb.WriteString("\n")

	results, _ := m.Results()
	for _, r := range results {
		line := fmt.Sprintf("%-28s %d loaded • %d new • %d total", truncate(r.Term, 28), r.Loaded, r.Added, r.Total)
		if len(r.Files) == 0 {
			sb.WriteString(styles.ErrorText.Render(line + " • not saved"))
		} else {
			sb.WriteString(styles.Value.Render(line))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *sharedState) onEvent(e scraper.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case scraper.EventTermStarted:
		s.term, s.index, s.listings = e.Term, 0, 0
	case scraper.EventLoaded:
		text := fmt.Sprintf("%d records loaded", e.Count)
		if e.Err != nil {
			text = "previous file unreadable, starting fresh"
		}
		s.push(feedLine{kind: e.Kind, text: text})
	case scraper.EventListings:
		s.listings = e.Count
		s.push(feedLine{kind: e.Kind, text: fmt.Sprintf("%d listings found", e.Count)})
	case scraper.EventListing:
		s.index = e.Index
		s.push(feedLine{kind: e.Kind, text: e.Business.String(), dup: !e.Added})
	case scraper.EventSkipped:
		s.index = e.Index
		s.push(feedLine{kind: e.Kind, text: e.Err.Error()})
	case scraper.EventSaved:
		s.push(feedLine{kind: e.Kind, text: fmt.Sprintf("saved %d records", e.Count)})
	}
}

func (s *sharedState) push(l feedLine) {
	s.feed = append(s.feed, l)
	if len(s.feed) > feedSize {
		s.feed = s.feed[len(s.feed)-feedSize:]
	}
}

func (s *sharedState) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// snapshot is a lock-free copy of what the view reads.
type snapshot struct {
	stats    *scraper.Stats
	term     string
	index    int
	listings int
	feed     []feedLine
}

func (s *sharedState) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		stats:    s.stats,
		term:     s.term,
		index:    s.index,
		listings: s.listings,
		feed:     append([]feedLine(nil), s.feed...),
	}
}
