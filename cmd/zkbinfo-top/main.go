// Command zkbinfo-top is a terminal dashboard for a running zkbinfo
// daemon: it polls the statistic counters and renders them live.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"

	"github.com/zkb-tools/zkbinfo/pkg/client"
	"github.com/zkb-tools/zkbinfo/pkg/names"
)

// Config
const (
	defaultDaemonURL = "http://localhost:8080"
	pollRate         = time.Second
	viewportHeight   = 20
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	counterNameStyle  = lipgloss.NewStyle().Width(40).Foreground(lipgloss.Color("99"))
	counterValueStyle = lipgloss.NewStyle().Bold(true)
	saveStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	queryStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
)

type tickMsg time.Time

type dataMsg struct {
	counters map[string]uint64
	watch    *watchData
	err      error
}

// watchData is the optional per-pilot pane, populated when
// ZKBINFO_WATCH_CHARACTER is set.
type watchData struct {
	id      int64
	report  *client.ActivityReport
	friends map[int64]uint64
	enemies map[int64]uint64
	labels  map[int64]names.Name
}

type model struct {
	api      *client.Client
	resolver names.Resolver
	watchID  int64
	spinner  spinner.Model
	viewport viewport.Model
	counters map[string]uint64
	prev     map[string]uint64
	watch    *watchData
	err      error
	ready    bool
}

func initialModel(api *client.Client, resolver names.Resolver, watchID int64) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		api:      api,
		resolver: resolver,
		watchID:  watchID,
		spinner:  s,
		counters: make(map[string]uint64),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		fetchData(m.api, m.resolver, m.watchID),
		tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, fetchData(m.api, m.resolver, m.watchID), tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.prev = m.counters
			m.counters = msg.counters
			m.watch = msg.watch
			m.updateViewportContent()
		}

		if !m.ready {
			m.ready = true
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, viewportHeight)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingRight(2)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = viewportHeight
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := m.counters[name]

		var nameStr string
		switch {
		case name == "save":
			nameStr = saveStyle.Render(name)
		default:
			nameStr = queryStyle.Render(name)
		}

		delta := ""
		if prev, ok := m.prev[name]; ok && value > prev {
			delta = okStyle.Render(fmt.Sprintf("  +%d", value-prev))
		}

		line := fmt.Sprintf("%s %s%s\n",
			counterNameStyle.Render(nameStr),
			counterValueStyle.Render(fmt.Sprintf("%d", value)),
			delta,
		)
		sb.WriteString(line)
	}

	if len(names) == 0 {
		sb.WriteString(subtleStyle.Render("No requests served yet."))
	}

	m.viewport.SetContent(sb.String())
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Initializing...", m.spinner.View())
	}

	var totalSaves, totalQueries uint64
	for name, value := range m.counters {
		if name == "save" {
			totalSaves += value
		} else {
			totalQueries += value
		}
	}

	summary := fmt.Sprintf("Killmails saved: %s   Queries served: %s",
		saveStyle.Render(fmt.Sprintf("%d", totalSaves)),
		queryStyle.Render(fmt.Sprintf("%d", totalQueries)))
	if m.watch != nil {
		summary += "\n\n" + m.renderWatchPane()
	}
	topPane := paneStyle.Render(summary)

	header := headerStyle.Render(fmt.Sprintf("%s Request Counters", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %d counters", len(m.counters)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

func (m model) renderWatchPane() string {
	var sb strings.Builder
	w := m.watch

	label := func(id int64) string {
		if name, ok := w.labels[id]; ok && name.Name != "" {
			return name.Name
		}
		return fmt.Sprintf("#%d", id)
	}

	sb.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render("Watching "+label(w.id)) + "\n")
	if w.report != nil {
		sb.WriteString(fmt.Sprintf("Wins: %s  Losses: %s\n",
			okStyle.Render(fmt.Sprintf("%d", w.report.Wins.TotalCount)),
			errorStyle.Render(fmt.Sprintf("%d", w.report.Losses.TotalCount))))
	}

	renderTop := func(title string, counts map[int64]uint64) {
		top := topRelations(counts, 5)
		if len(top) == 0 {
			return
		}
		sb.WriteString(title + ": ")
		parts := make([]string, 0, len(top))
		for _, id := range top {
			parts = append(parts, fmt.Sprintf("%s (%d)", label(id), counts[id]))
		}
		sb.WriteString(strings.Join(parts, ", ") + "\n")
	}
	renderTop("Friends", w.friends)
	renderTop("Enemies", w.enemies)

	return strings.TrimRight(sb.String(), "\n")
}

// topRelations returns the n highest-count ids, ties broken by id.
func topRelations(counts map[int64]uint64, n int) []int64 {
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if counts[ids[i]] != counts[ids[j]] {
			return counts[ids[i]] > counts[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// Commands

func fetchData(api *client.Client, resolver names.Resolver, watchID int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		counters, err := api.Statistic(ctx)
		if err != nil {
			return dataMsg{err: err}
		}

		msg := dataMsg{counters: counters}
		if watchID != 0 {
			watch, err := fetchWatch(ctx, api, resolver, watchID)
			if err != nil {
				return dataMsg{err: err}
			}
			msg.watch = watch
		}
		return msg
	}
}

func fetchWatch(ctx context.Context, api *client.Client, resolver names.Resolver, watchID int64) (*watchData, error) {
	report, err := api.Activity(ctx, "character", watchID)
	if err != nil {
		return nil, err
	}
	friends, err := api.Relations(ctx, "character", "friends", "char", watchID)
	if err != nil {
		return nil, err
	}
	enemies, err := api.Relations(ctx, "character", "enemies", "char", watchID)
	if err != nil {
		return nil, err
	}

	ids := []int64{watchID}
	ids = append(ids, topRelations(friends, 5)...)
	ids = append(ids, topRelations(enemies, 5)...)
	labels, err := resolver.Resolve(ctx, ids)
	if err != nil {
		// unresolved ids fall back to raw numbers
		labels = map[int64]names.Name{}
	}

	return &watchData{
		id:      watchID,
		report:  report,
		friends: friends,
		enemies: enemies,
		labels:  labels,
	}, nil
}

func tick() tea.Cmd {
	return tea.Tick(pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	daemonURL := os.Getenv("ZKBINFO_API_URL")
	if daemonURL == "" {
		daemonURL = defaultDaemonURL
	}

	var watchID int64
	if v := os.Getenv("ZKBINFO_WATCH_CHARACTER"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			fmt.Printf("invalid ZKBINFO_WATCH_CHARACTER: %v\n", err)
			os.Exit(1)
		}
		watchID = parsed
	}

	// shared redis cache when configured, per-process LRU otherwise
	var resolver names.Resolver = names.NewCache(names.NewESIResolver(""), 0)
	if addr := os.Getenv("ZKBINFO_REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		resolver = names.NewRedisCache(rdb, names.NewESIResolver(""), 0)
	}

	p := tea.NewProgram(initialModel(client.NewClient(daemonURL), resolver, watchID), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
