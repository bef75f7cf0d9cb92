package browse

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/jxwalker/modbrowse/internal/modplatform"
)

// fakeAdapter serves total numbered rows in offset pages of pageSize.
type fakeAdapter struct {
	platform modplatform.Platform
	total    int
	pageSize int

	mu          sync.Mutex
	calls       []modplatform.Cursor
	fail        int // number of upcoming FetchPage calls that fail
	cats        []modplatform.Category
	catErr      error
	detailCalls int
	versions    []modplatform.Cursor
	forgets     int
}

func (f *fakeAdapter) Platform() modplatform.Platform { return f.platform }

func (f *fakeAdapter) FetchPage(_ context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cursor)
	if f.fail > 0 {
		f.fail--
		return modplatform.Page{}, &modplatform.FetchError{Platform: f.platform, Status: http.StatusServiceUnavailable, URL: "fake"}
	}
	off, err := cursor.Offset()
	if err != nil {
		return modplatform.Page{}, err
	}
	var rows []modplatform.Row
	for i := off; i < off+f.pageSize && i < f.total; i++ {
		rows = append(rows, modplatform.Row{ID: rowID(p, i), DisplayName: fmt.Sprintf("Project %d", i)})
	}
	next := off + f.pageSize
	return modplatform.Page{Rows: rows, NextCursor: modplatform.OffsetCursor(next), HasNextPage: next < f.total}, nil
}

// FetchVersions serves total versions of p.ProjectID in the same pages as FetchPage.
func (f *fakeAdapter) FetchVersions(_ context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, cursor)
	off, err := cursor.Offset()
	if err != nil {
		return modplatform.Page{}, err
	}
	var rows []modplatform.Row
	for i := off; i < off+f.pageSize && i < f.total; i++ {
		rows = append(rows, modplatform.Row{
			ID:          fmt.Sprintf("%s@%d", p.ProjectID, i),
			DisplayName: fmt.Sprintf("Version %d", i),
			Payload:     &modplatform.VersionMeta{Source: f.platform, ProjectID: p.ProjectID},
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

func (f *fakeAdapter) Categories(context.Context) ([]modplatform.Category, error) {
	if f.catErr != nil {
		return nil, f.catErr
	}
	return f.cats, nil
}

func (f *fakeAdapter) Details(_ context.Context, ids []string) (map[string]modplatform.Details, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	out := make(map[string]modplatform.Details, len(ids))
	for _, id := range ids {
		out[id] = modplatform.Details{ID: id, Body: "about " + id}
	}
	return out, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// rowID encodes the query a row was fetched for so tests can detect mixing.
func rowID(p modplatform.Params, i int) string {
	return fmt.Sprintf("%s/%s/%d", p.ResultType, p.SearchText, i)
}

// searchOnlyAdapter has no version listing.
type searchOnlyAdapter struct{ f *fakeAdapter }

func (s searchOnlyAdapter) Platform() modplatform.Platform { return s.f.platform }

func (s searchOnlyAdapter) FetchPage(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	return s.f.FetchPage(ctx, p, cursor)
}
