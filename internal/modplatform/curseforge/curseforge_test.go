package curseforge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/testutil"
)

func newTestClient(ms *testutil.MockHTTPServer, pageSize int) *Client {
	return New(ms.Client(), Options{BaseURL: ms.URL, APIKey: "test-key", UserAgent: "modbrowse-test", PageSize: pageSize})
}

func TestFetchPageMapsRowsAndRequest(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.AddJSONResponse("/v1/mods/search", http.StatusOK, testutil.LoadFixture(t, "search.json"))
	c := newTestClient(ms, 20)

	params := modplatform.Params{
		ResultType:  modplatform.ResultMod,
		Platform:    modplatform.CurseForge,
		SearchText:  "jei",
		SortField:   modplatform.SortTotalDownloads,
		Categories:  []string{"421", "423"},
		GameVersion: "1.20.1",
		ModLoaders:  []modplatform.ModLoader{modplatform.LoaderForge, modplatform.LoaderFabric, modplatform.LoaderPaper},
	}
	page, err := c.FetchPage(context.Background(), params, modplatform.StartCursor)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Rows) != 2 || page.HasNextPage {
		t.Fatalf("page = %d rows, hasNext=%v", len(page.Rows), page.HasNextPage)
	}
	jei := page.Rows[0]
	if jei.ID != "238222" || jei.DisplayName != "Just Enough Items (JEI)" || jei.ThumbnailRef == "" {
		t.Errorf("row = %+v", jei)
	}
	meta, ok := jei.Payload.(*modplatform.CurseForgeMeta)
	if !ok {
		t.Fatalf("payload = %T", jei.Payload)
	}
	if meta.DownloadCount != 392000000 || len(meta.GameVersions) != 2 || len(meta.CategoryIDs) != 2 {
		t.Errorf("meta = %+v", meta)
	}
	if jei.Author() != "mezz" {
		t.Errorf("Author = %q", jei.Author())
	}

	reqs := ms.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d", len(reqs))
	}
	q := reqs[0].Query
	want := map[string]string{
		"gameId":         "432",
		"classId":        "6",
		"searchFilter":   "jei",
		"sortField":      "6",
		"sortOrder":      "desc",
		"categoryIds":    "[421,423]",
		"gameVersion":    "1.20.1",
		"modLoaderTypes": "[1,4]",
		"index":          "0",
		"pageSize":       "20",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if got := reqs[0].Header.Get("x-api-key"); got != "test-key" {
		t.Errorf("x-api-key = %q", got)
	}
}

// serveTotal answers searches from a catalog of total numbered mods.
func serveTotal(total int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, _ := strconv.Atoi(r.URL.Query().Get("index"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		var data []map[string]any
		for i := index; i < index+size && i < total; i++ {
			data = append(data, map[string]any{"id": i + 1, "name": fmt.Sprintf("mod %d", i+1)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data":       data,
			"pagination": map[string]int{"index": index, "pageSize": size, "resultCount": len(data), "totalCount": total},
		})
	}
}

func TestFetchPageTerminatesAtTotalCount(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.Handle("/v1/mods/search", serveTotal(45))
	c := newTestClient(ms, 20)
	params := modplatform.Params{ResultType: modplatform.ResultModpack, Platform: modplatform.CurseForge}

	var (
		cursor = modplatform.StartCursor
		counts []int
		more   []bool
		total  int
	)
	for i := 0; i < 5; i++ {
		page, err := c.FetchPage(context.Background(), params, cursor)
		if err != nil {
			t.Fatalf("FetchPage: %v", err)
		}
		total += len(page.Rows)
		counts = append(counts, total)
		more = append(more, page.HasNextPage)
		if !page.HasNextPage {
			break
		}
		cursor = page.NextCursor
	}
	wantCounts := []int{20, 40, 45}
	wantMore := []bool{true, true, false}
	if fmt.Sprint(counts) != fmt.Sprint(wantCounts) || fmt.Sprint(more) != fmt.Sprint(wantMore) {
		t.Fatalf("counts=%v more=%v, want %v %v", counts, more, wantCounts, wantMore)
	}
	if q := ms.Requests()[0].Query; q.Get("classId") != "4471" {
		t.Errorf("classId = %q", q.Get("classId"))
	}
}

func TestFetchPageStopsAtSearchWindow(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.Handle("/v1/mods/search", serveTotal(50000))
	c := newTestClient(ms, 50)
	params := modplatform.Params{ResultType: modplatform.ResultMod, Platform: modplatform.CurseForge}

	page, err := c.FetchPage(context.Background(), params, modplatform.OffsetCursor(9950))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if page.HasNextPage {
		t.Fatal("expected no next page at the 10000 result window")
	}
	page, err = c.FetchPage(context.Background(), params, modplatform.OffsetCursor(9980))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if got := ms.Requests()[1].Query.Get("pageSize"); got != "20" {
		t.Errorf("pageSize near the window = %s, want 20", got)
	}
	if len(page.Rows) != 20 || page.HasNextPage {
		t.Errorf("rows=%d hasNext=%v", len(page.Rows), page.HasNextPage)
	}
}

func TestFetchPageErrors(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.AddJSONResponse("/v1/mods/search", http.StatusForbidden, `{"error":"forbidden"}`)
	c := newTestClient(ms, 20)
	params := modplatform.Params{ResultType: modplatform.ResultMod, Platform: modplatform.CurseForge}

	page, err := c.FetchPage(context.Background(), params, modplatform.StartCursor)
	if !errors.Is(err, modplatform.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	var fe *modplatform.FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusForbidden {
		t.Fatalf("err = %#v", err)
	}
	if len(page.Rows) != 0 {
		t.Fatal("partial page returned on error")
	}

	if _, err := c.FetchPage(context.Background(), params, modplatform.Cursor("abc")); err == nil {
		t.Fatal("expected error for malformed cursor")
	}
	bad := params
	bad.Categories = []string{"tech"}
	if _, err := c.FetchPage(context.Background(), bad, modplatform.StartCursor); err == nil {
		t.Fatal("expected error for non-numeric category")
	}
}

func TestCategoriesAndDetails(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.AddJSONResponse("/v1/categories", http.StatusOK, `{"data":[
		{"id":6,"name":"Mods","classId":6,"isClass":true},
		{"id":412,"name":"Technology","classId":6},
		{"id":4780,"name":"Fabric","classId":6},
		{"id":4472,"name":"Tech","classId":4471},
		{"id":9,"name":"Texture","classId":12}
	]}`)
	ms.AddJSONResponse("/v1/mods", http.StatusOK, testutil.LoadFixture(t, "search.json"))
	c := newTestClient(ms, 20)

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 3 {
		t.Fatalf("cats = %+v", cats)
	}
	if cats[1].ID != "4780" || len(cats[1].Loaders) != 2 {
		t.Errorf("fabric category = %+v", cats[1])
	}
	if cats[2].ResultType != modplatform.ResultModpack {
		t.Errorf("pack category = %+v", cats[2])
	}

	details, err := c.Details(context.Background(), []string{"238222", "32274"})
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if d := details["238222"]; d.SourceURL != "https://github.com/mezz/JustEnoughItems" || d.Followers != 1200 {
		t.Errorf("details = %+v", d)
	}
	if n := ms.RequestCount("/v1/mods"); n != 1 {
		t.Errorf("details requests = %d, want one batched call", n)
	}
}

func TestFetchVersionsListsFiles(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	ms.AddJSONResponse("/v1/mods/238222/files", http.StatusOK, testutil.LoadFixture(t, "files.json"))
	c := newTestClient(ms, 2)

	params := modplatform.Params{
		ResultType:  modplatform.ResultMod,
		Platform:    modplatform.CurseForge,
		ProjectID:   "238222",
		GameVersion: "1.20.1",
		ModLoaders:  []modplatform.ModLoader{modplatform.LoaderPaper, modplatform.LoaderForge, modplatform.LoaderFabric},
	}
	page, err := c.FetchVersions(context.Background(), params, modplatform.OffsetCursor(2))
	if err != nil {
		t.Fatalf("FetchVersions: %v", err)
	}
	if len(page.Rows) != 2 || !page.HasNextPage || page.NextCursor.String() != "4" {
		t.Fatalf("page = %d rows, hasNext=%v, next=%s", len(page.Rows), page.HasNextPage, page.NextCursor)
	}

	first := page.Rows[0]
	meta, ok := first.Payload.(*modplatform.VersionMeta)
	if !ok {
		t.Fatalf("payload = %T", first.Payload)
	}
	if first.ID != "4712866" || first.DisplayName != "jei-1.20.1-forge-15.2.0.27" || meta.ProjectID != "238222" {
		t.Errorf("row = %+v", first)
	}
	if meta.ReleaseType != "release" || meta.Downloads != 5120000 || first.Payload.Platform() != modplatform.CurseForge {
		t.Errorf("meta = %+v", meta)
	}
	if len(meta.GameVersions) != 1 || meta.GameVersions[0] != "1.20.1" {
		t.Errorf("game versions = %v", meta.GameVersions)
	}
	if len(meta.Loaders) != 1 || meta.Loaders[0] != modplatform.LoaderForge {
		t.Errorf("loaders = %v", meta.Loaders)
	}

	second := page.Rows[1]
	if second.DisplayName != "jei-1.20.1-forge-15.1.0.19.jar" {
		t.Errorf("unnamed file shows %q", second.DisplayName)
	}
	if got := second.Payload.(*modplatform.VersionMeta).Loaders; len(got) != 2 {
		t.Errorf("loaders = %v", got)
	}
	if second.Summary() != "beta · 1.20.1, 1.20 · neoforge, forge · jei-1.20.1-forge-15.1.0.19.jar" {
		t.Errorf("Summary = %q", second.Summary())
	}

	q := ms.Requests()[0].Query
	want := map[string]string{"gameVersion": "1.20.1", "modLoaderType": "1", "index": "2", "pageSize": "2"}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestFetchVersionsRejectsBadProjectID(t *testing.T) {
	ms := testutil.NewMockHTTPServer(t)
	c := newTestClient(ms, 20)
	p := modplatform.Params{ResultType: modplatform.ResultMod, Platform: modplatform.CurseForge, ProjectID: "jei"}
	if _, err := c.FetchVersions(context.Background(), p, modplatform.StartCursor); err == nil {
		t.Fatal("expected an error for a non-numeric mod id")
	}
	if n := len(ms.Requests()); n != 0 {
		t.Errorf("requests = %d", n)
	}
}
