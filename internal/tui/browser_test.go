package tui

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/scrollmem"
)

type fakeAdapter struct {
	mu           sync.Mutex
	total        int
	pageSize     int
	fail         int
	calls        int
	versionCalls int
	forgets      int
}

func (f *fakeAdapter) Platform() modplatform.Platform { return modplatform.CurseForge }

func (f *fakeAdapter) FetchPage(_ context.Context, p modplatform.Params, c modplatform.Cursor) (modplatform.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail > 0 {
		f.fail--
		return modplatform.Page{}, &modplatform.FetchError{Platform: modplatform.CurseForge, Status: http.StatusBadGateway, URL: "fake"}
	}
	off, _ := c.Offset()
	var rows []modplatform.Row
	for i := off; i < off+f.pageSize && i < f.total; i++ {
		// odd rows have no summary and render on one line outside compact mode
		summary := "summary"
		if i%2 == 1 {
			summary = ""
		}
		rows = append(rows, modplatform.Row{
			ID:          fmt.Sprintf("%s-%s-%d", p.ResultType, p.SearchText, i),
			DisplayName: fmt.Sprintf("%s project %d", p.ResultType, i),
			Payload:     &modplatform.CurseForgeMeta{ModID: int64(i), Summary: summary, DownloadCount: 1234567},
		})
	}
	next := off + f.pageSize
	return modplatform.Page{Rows: rows, NextCursor: modplatform.OffsetCursor(next), HasNextPage: next < f.total}, nil
}

func (f *fakeAdapter) FetchVersions(_ context.Context, p modplatform.Params, c modplatform.Cursor) (modplatform.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	off, _ := c.Offset()
	var rows []modplatform.Row
	for i := off; i < off+f.pageSize && i < f.total; i++ {
		rows = append(rows, modplatform.Row{
			ID:          fmt.Sprintf("%s@%d", p.ProjectID, i),
			DisplayName: fmt.Sprintf("%s v%d", p.ProjectID, i),
			Payload: &modplatform.VersionMeta{
				Source:       modplatform.CurseForge,
				ProjectID:    p.ProjectID,
				ReleaseType:  "release",
				GameVersions: []string{"1.20.1"},
				FileName:     fmt.Sprintf("file-%d.jar", i),
			},
		})
	}
	next := off + f.pageSize
	return modplatform.Page{Rows: rows, NextCursor: modplatform.OffsetCursor(next), HasNextPage: next < f.total}, nil
}

func (f *fakeAdapter) Forget() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgets++
}

func (f *fakeAdapter) Details(_ context.Context, ids []string) (map[string]modplatform.Details, error) {
	out := make(map[string]modplatform.Details)
	for _, id := range ids {
		out[id] = modplatform.Details{ID: id, Body: "Long description of " + id, License: "MIT"}
	}
	return out, nil
}

func newTestModel(t *testing.T, a *fakeAdapter, mem *scrollmem.Memory) *Model {
	t.Helper()
	cfg := config.Default()
	cfg.Browse.DefaultResultType = "mod"
	cfg.UI.Compact = true
	return newTestModelWith(t, a, mem, cfg)
}

func newTestModelWith(t *testing.T, a *fakeAdapter, mem *scrollmem.Memory, cfg *config.Config) *Model {
	t.Helper()
	detailsDelay = 0
	m, err := New(Route{}, Deps{Config: cfg, Registry: modplatform.NewRegistry(a), Memory: mem})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.search.Cursor.SetMode(cursor.CursorStatic)
	run(m, m.Init())
	update(m, tea.WindowSizeMsg{Width: 100, Height: 20})
	return m
}

// run executes cmd and feeds the browser's own messages back into Update until no
// work is left. Spinner and cursor blink messages are dropped.
func run(m *Model, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0 && steps < 1000; steps++ {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case pageMsg, detailsTickMsg, detailsMsg, catalogMsg:
			_, next := m.Update(msg)
			queue = append(queue, next)
		}
	}
}

func update(m *Model, msg tea.Msg) {
	_, cmd := m.Update(msg)
	run(m, cmd)
}

func press(m *Model, s string) {
	var k tea.KeyMsg
	switch s {
	case "tab":
		k = tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		k = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		k = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		k = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	update(m, k)
}

func TestBrowserLoadsAndPaginates(t *testing.T) {
	a := &fakeAdapter{total: 50, pageSize: 20}
	m := newTestModel(t, a, nil)

	st := m.Pipeline().Snapshot()
	// the first page leaves the 15-row viewport within the prefetch threshold
	if st.Rows != 40 || !st.HasNextPage {
		t.Fatalf("after start: %+v", st)
	}
	if v := m.View(); !strings.Contains(v, "mod project 0") || !strings.Contains(v, "1,234,567 downloads") {
		t.Fatalf("view missing first row:\n%s", v)
	}

	press(m, "G")
	for i := 0; i < 60; i++ {
		press(m, "j")
	}
	st = m.Pipeline().Snapshot()
	if st.Rows != 50 || st.HasNextPage {
		t.Fatalf("after scrolling to the end: %+v", st)
	}
	if m.selected != 49 {
		t.Fatalf("selected = %d", m.selected)
	}
	if !strings.Contains(m.View(), "mod project 49") {
		t.Fatal("last row not rendered")
	}
}

func TestBrowserResultTypeSwitchRestoresOffset(t *testing.T) {
	a := &fakeAdapter{total: 100, pageSize: 40}
	mem := scrollmem.New()
	m := newTestModel(t, a, mem)

	for i := 0; i < 25; i++ {
		press(m, "j")
	}
	before := m.Pipeline().Snapshot().Offset
	if before == 0 {
		t.Fatal("moving down did not scroll")
	}

	press(m, "tab")
	st := m.Pipeline().Snapshot()
	if st.Signature.ResultType() != modplatform.ResultModpack || st.Offset != 0 || m.selected != 0 {
		t.Fatalf("after switch: %+v selected=%d", st, m.selected)
	}
	if !strings.Contains(m.View(), "modpack project 0") {
		t.Fatal("modpack rows not rendered")
	}

	press(m, "tab")
	st = m.Pipeline().Snapshot()
	if st.Offset != before {
		t.Fatalf("offset = %d, want %d", st.Offset, before)
	}
	if m.selected < st.Offset || m.selected >= st.Offset+st.Viewport {
		t.Fatalf("selection %d outside viewport at %d", m.selected, st.Offset)
	}
}

func TestBrowserRetryAfterError(t *testing.T) {
	// the first page fails, and so does the retry the window resize issues
	a := &fakeAdapter{total: 10, pageSize: 10, fail: 2}
	m := newTestModel(t, a, nil)

	v := m.View()
	if !strings.Contains(v, "Platform error (502)") || !strings.Contains(v, "press r to retry") {
		t.Fatalf("error row missing:\n%s", v)
	}
	press(m, "r")
	if st := m.Pipeline().Snapshot(); st.Rows != 10 || st.Err != nil {
		t.Fatalf("after retry: %+v", st)
	}
	if a.calls != 3 {
		t.Fatalf("calls = %d", a.calls)
	}
}

func TestBrowserSearch(t *testing.T) {
	a := &fakeAdapter{total: 5, pageSize: 5}
	m := newTestModel(t, a, nil)

	press(m, "/")
	if !m.searching {
		t.Fatal("search input not opened")
	}
	press(m, "jei")
	press(m, "enter")
	if m.searching {
		t.Fatal("search input still open")
	}
	st := m.Pipeline().Snapshot()
	if st.Signature.SearchText() != "jei" || st.Rows != 5 {
		t.Fatalf("after search: %+v", st)
	}
	if r, _ := m.Pipeline().Row(0); r.ID != "mod-jei-0" {
		t.Fatalf("first row = %s", r.ID)
	}

	press(m, "/")
	press(m, "x")
	press(m, "esc")
	if got := m.Pipeline().Snapshot().Signature.SearchText(); got != "jei" {
		t.Fatalf("esc applied the search: %q", got)
	}
}

func TestBrowserDetails(t *testing.T) {
	a := &fakeAdapter{total: 5, pageSize: 5}
	m := newTestModel(t, a, nil)

	press(m, "j")
	press(m, "enter")
	if m.details == nil || m.details.ID != "mod--1" {
		t.Fatalf("details = %+v", m.details)
	}
	if v := m.View(); !strings.Contains(v, "Long description of mod--1") {
		t.Fatalf("details not rendered:\n%s", v)
	}
	press(m, "esc")
	if m.showDetails {
		t.Fatal("esc did not close details")
	}
}

func TestBrowserQuitRemembersOffset(t *testing.T) {
	a := &fakeAdapter{total: 100, pageSize: 50}
	mem := scrollmem.New()
	m := newTestModel(t, a, mem)
	for i := 0; i < 30; i++ {
		press(m, "j")
	}
	off := m.Pipeline().Snapshot().Offset
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if got := mem.Offset("mod"); got != off || got == 0 {
		t.Fatalf("remembered offset = %d, want %d", got, off)
	}
}

func TestBrowserVersionList(t *testing.T) {
	a := &fakeAdapter{total: 30, pageSize: 20}
	m := newTestModel(t, a, nil)
	catalog := m.Pipeline()

	press(m, "j")
	press(m, "enter")
	press(m, "v")
	if m.parent == nil || m.Pipeline() == catalog {
		t.Fatal("v did not open the version list")
	}
	st := m.Pipeline().Snapshot()
	if st.Signature.ProjectID() != "mod--1" || st.Rows == 0 || m.selected != 0 {
		t.Fatalf("version list: %+v selected=%d", st, m.selected)
	}
	if a.versionCalls == 0 {
		t.Fatal("no version page requested")
	}
	v := m.View()
	for _, want := range []string{"Versions of mod project 1", "mod--1 v0", "esc to go back"} {
		if !strings.Contains(v, want) {
			t.Fatalf("view missing %q:\n%s", want, v)
		}
	}

	press(m, "tab")
	press(m, "/")
	if m.searching || m.Pipeline().Snapshot().Signature.ProjectID() != "mod--1" {
		t.Fatal("query keys changed the version list")
	}

	press(m, "j")
	press(m, "esc")
	if m.parent != nil || m.Pipeline() != catalog {
		t.Fatal("esc did not return to the search list")
	}
	if m.selected != 1 || !m.showDetails {
		t.Fatalf("selection %d, details %v after returning", m.selected, m.showDetails)
	}
	if !strings.Contains(m.View(), "mod project 0") {
		t.Fatal("search rows not rendered after returning")
	}
}

func TestBrowserReload(t *testing.T) {
	a := &fakeAdapter{total: 100, pageSize: 20}
	m := newTestModel(t, a, nil)
	for i := 0; i < 10; i++ {
		press(m, "j")
	}
	before := a.calls

	press(m, "R")
	st := m.Pipeline().Snapshot()
	if st.Rows == 0 || st.Offset != 0 || m.selected != 0 {
		t.Fatalf("after reload: %+v selected=%d", st, m.selected)
	}
	if a.calls <= before || a.forgets != 1 {
		t.Fatalf("calls %d -> %d, forgets = %d", before, a.calls, a.forgets)
	}
}

func TestBrowserMeasuresRowHeights(t *testing.T) {
	a := &fakeAdapter{total: 60, pageSize: 20}
	cfg := config.Default()
	cfg.Browse.DefaultResultType = "mod"
	cfg.UI.Compact = false
	m := newTestModelWith(t, a, nil, cfg)

	st := m.Pipeline().Snapshot()
	if st.TotalSize >= 2*(st.Rows+1) {
		t.Fatalf("TotalSize = %d for %d rows, nothing measured", st.TotalSize, st.Rows)
	}
	tests := []struct{ index, start, size int }{
		{0, 0, 2},
		{1, 2, 1},
		{2, 3, 2},
	}
	for _, tt := range tests {
		if start, size := m.Pipeline().Bounds(tt.index); start != tt.start || size != tt.size {
			t.Errorf("Bounds(%d) = %d,%d want %d,%d", tt.index, start, size, tt.start, tt.size)
		}
	}

	for i := 0; i < 15; i++ {
		press(m, "j")
		st = m.Pipeline().Snapshot()
		top, size := m.Pipeline().Bounds(m.selected)
		if top < st.Offset || top+size > st.Offset+st.Viewport {
			t.Fatalf("row %d at %d+%d outside viewport %d+%d", m.selected, top, size, st.Offset, st.Viewport)
		}
	}
	if !strings.Contains(m.View(), "> mod project 15") {
		t.Fatalf("selected row not rendered:\n%s", m.View())
	}
}
