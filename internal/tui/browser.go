// Package tui is the interactive catalog browser.
package tui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jxwalker/modbrowse/internal/browse"
	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/metrics"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
	"github.com/jxwalker/modbrowse/internal/scrollmem"
)

// Route is the navigation target that opened the browser.
type Route struct {
	ResultType modplatform.ResultType
	InstanceID int64
}

// Deps are the long-lived services the browser uses. Memory and Details may be shared
// between browsers so that navigating back keeps the offset and loaded details.
type Deps struct {
	Config   *config.Config
	Registry *modplatform.Registry
	Catalog  *modplatform.Catalog
	Details  *browse.DetailsCache
	Memory   *scrollmem.Memory
	Seed     *query.Seed
	Log      *logging.Logger
	Metrics  *metrics.Manager
}

// detailsDelay debounces details lookups while the selection moves.
var detailsDelay = 150 * time.Millisecond

const detailsHeight = 8

// pageMsg carries a fetch result back to the pipeline that issued the ticket, which is
// not necessarily the one on screen.
type pageMsg struct {
	pipe *browse.Pipeline
	res  browse.Result
}

type catalogMsg struct{ err error }

type detailsTickMsg struct{ seq int }

type detailsMsg struct {
	seq int
	d   modplatform.Details
	err error
}

// catalogView is the search list a version list was opened from.
type catalogView struct {
	pipe        *browse.Pipeline
	selected    int
	showDetails bool
	details     *modplatform.Details
}

type Model struct {
	deps   Deps
	pipe   *browse.Pipeline
	ctx    context.Context
	cancel context.CancelFunc

	th        Theme
	keys      keyMap
	help      help.Model
	spin      spinner.Model
	search    textinput.Model
	searching bool

	w, h      int
	rowHeight int
	selected  int
	notice    string

	showDetails bool
	detailsSeq  int
	details     *modplatform.Details
	detailsErr  error

	// versionsOf is the project whose versions are shown; parent is nil outside that mode.
	versionsOf modplatform.Row
	parent     *catalogView
}

// New creates a browser for route. The initial platform and result type come from the
// config when the route leaves them open.
func New(route Route, deps Deps) (*Model, error) {
	if deps.Registry == nil {
		return nil, errors.New("tui: no platform adapters")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
		deps.Config = cfg
	}
	if deps.Catalog == nil {
		deps.Catalog = modplatform.NewCatalog()
	}
	if deps.Details == nil {
		deps.Details = browse.NewDetailsCache(deps.Registry)
	}
	if deps.Memory == nil {
		deps.Memory = scrollmem.New()
	}

	pf, err := modplatform.ParsePlatform(cfg.Browse.DefaultPlatform)
	if err != nil {
		return nil, err
	}
	if _, err := deps.Registry.Adapter(pf); err != nil {
		pfs := deps.Registry.Platforms()
		if len(pfs) == 0 {
			return nil, err
		}
		pf = pfs[0]
	}
	rt := route.ResultType
	if rt == "" {
		if rt, err = modplatform.ParseResultType(cfg.Browse.DefaultResultType); err != nil {
			return nil, err
		}
	}

	rh := max(cfg.Browse.EstimateRows, 1)
	if cfg.UI.Compact {
		rh = 1
	}
	pipe, err := newPipeline(deps, modplatform.Params{ResultType: rt, Platform: pf, InstanceID: route.InstanceID}, rh, 0, deps.Seed)
	if err != nil {
		return nil, err
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	in := textinput.New()
	in.Placeholder = "Search projects..."
	in.CharLimit = 100

	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		deps:      deps,
		pipe:      pipe,
		ctx:       ctx,
		cancel:    cancel,
		th:        defaultTheme(),
		keys:      defaultKeys(),
		help:      help.New(),
		spin:      s,
		search:    in,
		rowHeight: rh,
	}, nil
}

func newPipeline(deps Deps, initial modplatform.Params, rowHeight, viewport int, seed *query.Seed) (*browse.Pipeline, error) {
	cfg := deps.Config
	return browse.New(browse.Options{
		Initial:      initial,
		EstimateSize: rowHeight,
		Overscan:     cfg.Browse.Overscan,
		Threshold:    cfg.Browse.PrefetchThreshold,
		Viewport:     viewport,
		Log:          deps.Log,
		Metrics:      deps.Metrics,
	}, deps.Registry, deps.Catalog, seed, deps.Memory)
}

// Pipeline exposes the browse session, mostly for tests.
func (m *Model) Pipeline() *browse.Pipeline { return m.pipe }

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spin.Tick, m.fetch(m.pipe.Start())}
	if m.deps.Config.Browse.RefreshCatalog {
		reg, cat, log := m.deps.Registry, m.deps.Catalog, m.deps.Log
		ctx := m.ctx
		cmds = append(cmds, func() tea.Msg {
			return catalogMsg{err: browse.RefreshCatalog(ctx, reg, cat, log)}
		})
	}
	return tea.Batch(cmds...)
}

// fetch runs the network call for tk off the event loop.
func (m *Model) fetch(tk *browse.Ticket) tea.Cmd {
	return m.fetchFor(m.pipe, tk)
}

func (m *Model) fetchFor(pipe *browse.Pipeline, tk *browse.Ticket) tea.Cmd {
	if tk == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg { return pageMsg{pipe: pipe, res: pipe.Fetch(ctx, tk)} }
}

// live reports whether pipe is still shown or can be returned to.
func (m *Model) live(pipe *browse.Pipeline) bool {
	return pipe == m.pipe || (m.parent != nil && pipe == m.parent.pipe)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := m.update(msg)
	if mc := m.measure(); mc != nil {
		cmd = tea.Batch(cmd, mc)
	}
	return m, cmd
}

func (m *Model) update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.search.Width = max(msg.Width-12, 10)
		return m, m.resize()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case pageMsg:
		out, next := msg.pipe.Deliver(msg.res)
		if !m.live(msg.pipe) {
			return m, nil
		}
		if out == browse.OutcomeAppended && msg.pipe == m.pipe {
			m.followOffset()
		}
		return m, m.fetchFor(msg.pipe, next)

	case catalogMsg:
		if msg.err != nil {
			m.notice = "category refresh failed, using built-in lists"
		}
		return m, nil

	case detailsTickMsg:
		if msg.seq != m.detailsSeq || !m.showDetails {
			return m, nil
		}
		return m, m.loadDetails(msg.seq)

	case detailsMsg:
		if msg.seq != m.detailsSeq {
			return m, nil
		}
		if msg.err != nil {
			m.detailsErr = msg.err
			return m, nil
		}
		d := msg.d
		m.details = &d
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateNormal(msg)
	}
	return m, nil
}

func (m *Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := m.pipe.Snapshot()
	page := max(st.Viewport/m.rowHeight, 1)
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.parent != nil {
			m.closeVersions()
		}
		m.pipe.NavigateAway()
		m.cancel()
		m.pipe.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Down):
		return m, m.moveTo(m.selected + 1)
	case key.Matches(msg, m.keys.Up):
		return m, m.moveTo(m.selected - 1)
	case key.Matches(msg, m.keys.PageDown):
		return m, m.moveTo(m.selected + page)
	case key.Matches(msg, m.keys.PageUp):
		return m, m.moveTo(m.selected - page)
	case key.Matches(msg, m.keys.Top):
		return m, m.moveTo(0)
	case key.Matches(msg, m.keys.Bottom):
		return m, m.moveTo(st.Rows - 1)
	case key.Matches(msg, m.keys.Retry):
		return m, m.fetch(m.pipe.Retry())
	case key.Matches(msg, m.keys.Reload):
		m.notice = ""
		m.selected = 0
		m.details, m.detailsErr = nil, nil
		return m, m.fetch(m.pipe.Reload())
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, m.resize()
	case key.Matches(msg, m.keys.Back):
		switch {
		case m.showDetails:
			m.showDetails = false
			return m, m.resize()
		case m.parent != nil:
			m.closeVersions()
			return m, m.resize()
		}
		return m, nil
	case m.parent != nil:
		// Queries and details do not apply to a version list.
		return m, nil
	case key.Matches(msg, m.keys.Versions):
		return m, m.openVersions()
	case key.Matches(msg, m.keys.ResultType):
		next := modplatform.ResultModpack
		if st.Signature.ResultType() == modplatform.ResultModpack {
			next = modplatform.ResultMod
		}
		return m, m.setQuery(query.Update{ResultType: &next})
	case key.Matches(msg, m.keys.Platform):
		pfs := m.deps.Registry.Platforms()
		if len(pfs) < 2 {
			return m, nil
		}
		i := slices.Index(pfs, st.Signature.Platform())
		next := pfs[(i+1)%len(pfs)]
		return m, m.setQuery(query.Update{Platform: &next})
	case key.Matches(msg, m.keys.Sort):
		caps, ok := m.deps.Catalog.Capabilities(st.Signature.Platform())
		if !ok || len(caps.SortFields) == 0 {
			return m, nil
		}
		i := slices.Index(caps.SortFields, st.Signature.Params().SortField)
		next := caps.SortFields[(i+1)%len(caps.SortFields)]
		return m, m.setQuery(query.Update{SortField: &next})
	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.search.SetValue(st.Signature.SearchText())
		m.search.CursorEnd()
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.Details):
		m.showDetails = !m.showDetails
		return m, tea.Batch(m.resize(), m.queueDetails())
	}
	return m, nil
}

// openVersions replaces the search list with the version list of the selected project.
// The search list keeps its session and is shown again by closeVersions.
func (m *Model) openVersions() tea.Cmd {
	row, ok := m.pipe.Row(m.selected)
	if !ok {
		return nil
	}
	p := m.pipe.Snapshot().Signature.Params()
	pipe, err := newPipeline(m.deps, modplatform.Params{
		ResultType:  p.ResultType,
		Platform:    p.Platform,
		GameVersion: p.GameVersion,
		ModLoaders:  p.ModLoaders,
		ProjectID:   row.ID,
	}, m.rowHeight, m.listHeight(), nil)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.parent = &catalogView{pipe: m.pipe, selected: m.selected, showDetails: m.showDetails, details: m.details}
	m.versionsOf = row
	m.pipe = pipe
	m.selected = 0
	m.showDetails = false
	m.detailsSeq++
	m.details, m.detailsErr = nil, nil
	m.notice = ""
	return tea.Batch(m.resize(), m.fetch(pipe.Start()))
}

func (m *Model) closeVersions() {
	m.pipe.NavigateAway()
	m.pipe.Close()
	v := m.parent
	m.parent = nil
	m.versionsOf = modplatform.Row{}
	m.pipe = v.pipe
	m.selected = v.selected
	m.showDetails = v.showDetails
	m.detailsSeq++
	m.details, m.detailsErr = v.details, nil
	m.notice = ""
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		text := m.search.Value()
		return m, m.setQuery(query.Update{SearchText: &text})
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *Model) setQuery(u query.Update) tea.Cmd {
	tk, err := m.pipe.SetQuery(u)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.notice = ""
	m.selected = 0
	m.details, m.detailsErr = nil, nil
	return m.fetch(tk)
}

// moveTo selects row i and scrolls just enough to keep it in view.
func (m *Model) moveTo(i int) tea.Cmd {
	st := m.pipe.Snapshot()
	if st.Rows == 0 {
		return nil
	}
	i = max(0, min(i, st.Rows-1))
	if i == m.selected {
		return nil
	}
	m.selected = i
	top, size := m.pipe.Bounds(i)
	var tk *browse.Ticket
	switch {
	case top < st.Offset:
		tk = m.pipe.ScrollToIndex(i)
	case top+size > st.Offset+st.Viewport:
		tk = m.pipe.ScrollTo(top + size - st.Viewport)
	}
	return tea.Batch(m.fetch(tk), m.queueDetails())
}

// followOffset keeps the selection inside the viewport after the offset moved on its own,
// e.g. when a remembered offset was restored.
func (m *Model) followOffset() {
	st := m.pipe.Snapshot()
	if st.Rows == 0 {
		m.selected = 0
		return
	}
	first := m.pipe.IndexAt(st.Offset)
	if start, _ := m.pipe.Bounds(first); start < st.Offset {
		first++
	}
	last := m.pipe.IndexAt(st.Offset + st.Viewport - 1)
	if start, size := m.pipe.Bounds(last); start+size > st.Offset+st.Viewport {
		last--
	}
	first = min(first, st.Rows-1)
	last = max(last, first)
	m.selected = max(first, min(m.selected, last, st.Rows-1))
}

// measure records the rendered height of the visible rows. Rows that turn out shorter than
// estimated pull later rows into view, so it repeats a few times and re-checks the fetch
// threshold when anything changed.
func (m *Model) measure() tea.Cmd {
	if m.w == 0 {
		return nil
	}
	changed := false
	for pass := 0; pass < 3; pass++ {
		moved := false
		for _, v := range m.pipe.Visible() {
			if v.Sentinel {
				continue
			}
			if h := lipgloss.Height(strings.Join(m.rowLines(v), "\n")); h != v.Size {
				m.pipe.Measure(v.Index, h)
				moved = true
			}
		}
		if !moved {
			break
		}
		changed = true
	}
	if !changed {
		return nil
	}
	tk := m.pipe.ScrollBy(0)
	m.followOffset()
	return m.fetch(tk)
}

func (m *Model) listHeight() int {
	if m.h == 0 {
		return 0
	}
	chrome := 4 + len(splitLines(m.help.View(m.keys)))
	if m.showDetails {
		chrome += detailsHeight
	}
	return max(m.h-chrome, m.rowHeight)
}

func (m *Model) resize() tea.Cmd {
	return m.fetch(m.pipe.Resize(m.listHeight()))
}

func (m *Model) queueDetails() tea.Cmd {
	if !m.showDetails {
		return nil
	}
	m.detailsSeq++
	m.details, m.detailsErr = nil, nil
	seq := m.detailsSeq
	return tea.Tick(detailsDelay, func(time.Time) tea.Msg { return detailsTickMsg{seq: seq} })
}

func (m *Model) loadDetails(seq int) tea.Cmd {
	row, ok := m.pipe.Row(m.selected)
	if !ok {
		return nil
	}
	pf := m.pipe.Snapshot().Signature.Platform()
	if d, ok := m.deps.Details.Get(pf, row.ID); ok {
		m.details = &d
		return nil
	}
	cache, ctx, id := m.deps.Details, m.ctx, row.ID
	return func() tea.Msg {
		ds, err := cache.Load(ctx, pf, []string{id})
		return detailsMsg{seq: seq, d: ds[id], err: err}
	}
}
