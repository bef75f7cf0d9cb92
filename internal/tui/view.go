package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jxwalker/modbrowse/internal/accumulator"
	"github.com/jxwalker/modbrowse/internal/browse"
	friendlyerrors "github.com/jxwalker/modbrowse/internal/errors"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

func (m *Model) View() string {
	if m.w == 0 {
		return "Loading..."
	}
	st := m.pipe.Snapshot()
	sections := []string{m.renderHeader(st), m.renderList(st)}
	if m.showDetails {
		sections = append(sections, m.renderDetails())
	}
	sections = append(sections, m.renderStatus(st), m.help.View(m.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderHeader(st browse.Status) string {
	if m.parent != nil {
		return m.renderVersionsHeader(st)
	}
	tabs := make([]string, 0, 2)
	for _, rt := range []modplatform.ResultType{modplatform.ResultMod, modplatform.ResultModpack} {
		label := "Mods"
		if rt == modplatform.ResultModpack {
			label = "Modpacks"
		}
		if st.Signature.ResultType() == rt {
			tabs = append(tabs, m.th.tabActive.Render("["+label+"]"))
		} else {
			tabs = append(tabs, m.th.tabInactive.Render(" "+label+" "))
		}
	}
	p := st.Signature.Params()
	info := fmt.Sprintf("%s  sort: %s", p.Platform, p.SortField)
	if p.SortOrder != modplatform.SortDefault {
		info += " " + string(p.SortOrder)
	}
	if p.GameVersion != "" {
		info += "  mc " + p.GameVersion
	}
	if len(p.ModLoaders) > 0 {
		loaders := make([]string, len(p.ModLoaders))
		for i, l := range p.ModLoaders {
			loaders[i] = string(l)
		}
		info += "  " + strings.Join(loaders, ",")
	}
	line := m.th.title.Render("modbrowse") + "  " + strings.Join(tabs, " ") + "  " + m.th.label.Render(info)

	var search string
	switch {
	case m.searching:
		search = "Search: " + m.search.View()
	case p.SearchText != "":
		search = m.th.label.Render("Search: ") + p.SearchText
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.clip(line), m.clip(search))
}

func (m *Model) renderVersionsHeader(st browse.Status) string {
	p := st.Signature.Params()
	info := string(p.Platform)
	if p.GameVersion != "" {
		info += "  mc " + p.GameVersion
	}
	if len(p.ModLoaders) > 0 {
		loaders := make([]string, len(p.ModLoaders))
		for i, l := range p.ModLoaders {
			loaders[i] = string(l)
		}
		info += "  " + strings.Join(loaders, ",")
	}
	line := m.th.title.Render("modbrowse") + "  " + m.th.tabActive.Render("Versions of "+m.versionsOf.DisplayName) +
		"  " + m.th.label.Render(info)
	return lipgloss.JoinVertical(lipgloss.Left, m.clip(line), m.clip(m.th.label.Render("esc to go back")))
}

// renderList draws the window rows and cuts the overscan back to the viewport.
func (m *Model) renderList(st browse.Status) string {
	if st.Rows == 0 && !st.HasNextPage {
		return m.pad([]string{m.th.label.Render("No results")}, st.Viewport)
	}
	vis := m.pipe.Visible()
	if len(vis) == 0 {
		return m.pad(nil, st.Viewport)
	}
	lines := make([]string, 0, len(vis)*m.rowHeight)
	for _, v := range vis {
		var item []string
		if v.Sentinel {
			item = []string{m.sentinelLine(st)}
		} else {
			item = m.rowLines(v)
		}
		for len(item) < v.Size {
			item = append(item, "")
		}
		lines = append(lines, item[:v.Size]...)
	}
	from := max(st.Offset-vis[0].Start, 0)
	to := min(from+st.Viewport, len(lines))
	if from > to {
		from = to
	}
	return m.pad(lines[from:to], st.Viewport)
}

func (m *Model) rowLines(v browse.VisibleRow) []string {
	r := v.Row
	style := m.th.row
	marker := "  "
	if v.Index == m.selected {
		style = m.th.rowSelected
		marker = "> "
	}
	meta := []string{}
	if a := r.Author(); a != "" {
		meta = append(meta, "by "+a)
	}
	meta = append(meta, humanize.Comma(r.Downloads())+" downloads")
	if t := r.Updated(); !t.IsZero() {
		meta = append(meta, "updated "+humanize.Time(t))
	}
	out := []string{m.clip(style.Render(marker+r.DisplayName) + "  " + m.th.label.Render(strings.Join(meta, " · ")))}
	if s := r.Summary(); m.rowHeight > 1 && s != "" {
		out = append(out, m.clip("  "+m.th.summary.Render(s)))
	}
	return out
}

func (m *Model) sentinelLine(st browse.Status) string {
	switch st.State {
	case accumulator.Error:
		return m.th.bad.Render("  ! "+errorText(st.Err)) + m.th.label.Render("  press r to retry")
	case accumulator.Fetching:
		return "  " + m.spin.View() + " Loading more..."
	}
	return m.th.label.Render("  ...")
}

// errorText returns the one-line user message for a fetch failure.
func errorText(err error) string {
	if errors.Is(err, modplatform.ErrNetwork) {
		return friendlyerrors.Short(friendlyerrors.NetworkError(err))
	}
	return friendlyerrors.Short(err)
}

func (m *Model) renderDetails() string {
	var body []string
	switch {
	case m.detailsErr != nil:
		body = []string{m.th.bad.Render(errorText(m.detailsErr))}
	case m.details == nil:
		body = []string{m.spin.View() + " Loading details..."}
	default:
		d := m.details
		facts := []string{}
		if d.License != "" {
			facts = append(facts, "license "+d.License)
		}
		if d.Followers > 0 {
			facts = append(facts, humanize.Comma(d.Followers)+" followers")
		}
		if !d.Updated.IsZero() {
			facts = append(facts, "updated "+humanize.Time(d.Updated))
		}
		if len(d.Versions) > 0 {
			facts = append(facts, "mc "+d.Versions[len(d.Versions)-1])
		}
		facts = append(facts, "v for versions")
		body = append(body, m.th.label.Render(strings.Join(facts, " · ")))
		if d.SourceURL != "" {
			body = append(body, m.th.label.Render("source: ")+d.SourceURL)
		}
		body = append(body, splitLines(d.Body)...)
	}
	inner := detailsHeight - 2
	if len(body) > inner {
		body = body[:inner]
	}
	for len(body) < inner {
		body = append(body, "")
	}
	w := max(m.w-4, 10)
	for i := range body {
		body[i] = lipgloss.NewStyle().MaxWidth(w).Render(body[i])
	}
	return m.th.border.Width(w).Render(strings.Join(body, "\n"))
}

func (m *Model) renderStatus(st browse.Status) string {
	var s string
	switch {
	case st.Rows == 0 && st.State == accumulator.Fetching:
		s = m.spin.View() + " Loading..."
	case st.HasNextPage:
		s = fmt.Sprintf("%s results loaded, more available", humanize.Comma(int64(st.Rows)))
	default:
		s = fmt.Sprintf("%s results", humanize.Comma(int64(st.Rows)))
	}
	if m.notice != "" {
		s += "  " + m.th.bad.Render(m.notice)
	}
	return m.clip(m.th.footer.Render(s))
}

func (m *Model) clip(s string) string {
	return lipgloss.NewStyle().MaxWidth(m.w).Render(s)
}

func (m *Model) pad(lines []string, n int) string {
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
