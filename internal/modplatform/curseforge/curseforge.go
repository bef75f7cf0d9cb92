// Package curseforge adapts the CurseForge v1 search API, which paginates by offset.
package curseforge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

const (
	gameMinecraft = 432
	classMods     = 6
	classModpacks = 4471

	// maxResults is the hard window of the search endpoint: index+pageSize may not exceed it.
	maxResults = 10000
)

var sortFields = map[modplatform.SortField]int{
	modplatform.SortFeatured:       1,
	modplatform.SortPopularity:     2,
	modplatform.SortLastUpdated:    3,
	modplatform.SortName:           4,
	modplatform.SortAuthor:         5,
	modplatform.SortTotalDownloads: 6,
}

var loaderTypes = map[modplatform.ModLoader]int{
	modplatform.LoaderForge:      1,
	modplatform.LoaderCauldron:   2,
	modplatform.LoaderLiteLoader: 3,
	modplatform.LoaderFabric:     4,
	modplatform.LoaderQuilt:      5,
	modplatform.LoaderNeoForge:   6,
}

// Client is the CurseForge adapter.
type Client struct {
	http      *http.Client
	baseURL   string
	apiKey    string
	userAgent string
	pageSize  int
	log       *logging.Logger
}

type Options struct {
	BaseURL   string
	APIKey    string
	UserAgent string
	PageSize  int
	Log       *logging.Logger
}

func New(hc *http.Client, opts Options) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	return &Client{
		http:      hc,
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:    opts.APIKey,
		userAgent: opts.UserAgent,
		pageSize:  opts.PageSize,
		log:       opts.Log,
	}
}

// NewFromConfig builds the adapter from the sources.curseforge section.
func NewFromConfig(cfg *config.Config, hc *http.Client, userAgent string, log *logging.Logger) *Client {
	src := cfg.Sources.CurseForge
	return New(hc, Options{
		BaseURL:   src.BaseURL,
		APIKey:    src.Token(),
		UserAgent: userAgent,
		PageSize:  src.PageSize,
		Log:       log.With("platform", string(modplatform.CurseForge)),
	})
}

func (c *Client) Platform() modplatform.Platform { return modplatform.CurseForge }

// FetchPage requests one offset page. The next cursor is offset+pageSize; there is a next
// page while that offset is below both the reported total and the search window.
func (c *Client) FetchPage(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	offset, err := cursor.Offset()
	if err != nil {
		return modplatform.Page{}, err
	}
	size := c.pageSize
	if offset+size > maxResults {
		size = maxResults - offset
	}
	if size <= 0 {
		return modplatform.Page{NextCursor: cursor}, nil
	}

	q, err := searchQuery(p, offset, size)
	if err != nil {
		return modplatform.Page{}, err
	}
	var resp searchResponse
	if err := c.get(ctx, "/v1/mods/search", q, &resp); err != nil {
		return modplatform.Page{}, err
	}

	rows := make([]modplatform.Row, 0, len(resp.Data))
	for _, m := range resp.Data {
		rows = append(rows, m.row())
	}
	next := offset + size
	return modplatform.Page{
		Rows:        rows,
		NextCursor:  modplatform.OffsetCursor(next),
		HasNextPage: next < resp.Pagination.TotalCount && next < maxResults,
	}, nil
}

// FetchVersions lists the files of mod p.ProjectID, newest first, with the same offset
// paging as FetchPage. The endpoint takes a single loader, so only the first known one
// in p.ModLoaders is sent.
func (c *Client) FetchVersions(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	if _, err := strconv.ParseInt(p.ProjectID, 10, 64); err != nil {
		return modplatform.Page{}, fmt.Errorf("curseforge: mod id %q is not numeric", p.ProjectID)
	}
	offset, err := cursor.Offset()
	if err != nil {
		return modplatform.Page{}, err
	}
	size := min(c.pageSize, maxResults-offset)
	if size <= 0 {
		return modplatform.Page{NextCursor: cursor}, nil
	}

	q := url.Values{}
	if gv := strings.TrimSpace(p.GameVersion); gv != "" {
		q.Set("gameVersion", gv)
	}
	for _, l := range p.ModLoaders {
		if t, ok := loaderTypes[l]; ok {
			q.Set("modLoaderType", strconv.Itoa(t))
			break
		}
	}
	q.Set("index", strconv.Itoa(offset))
	q.Set("pageSize", strconv.Itoa(size))

	var resp filesResponse
	if err := c.get(ctx, "/v1/mods/"+p.ProjectID+"/files", q, &resp); err != nil {
		return modplatform.Page{}, err
	}
	rows := make([]modplatform.Row, 0, len(resp.Data))
	for _, f := range resp.Data {
		rows = append(rows, f.row())
	}
	next := offset + size
	return modplatform.Page{
		Rows:        rows,
		NextCursor:  modplatform.OffsetCursor(next),
		HasNextPage: next < resp.Pagination.TotalCount && next < maxResults,
	}, nil
}

func searchQuery(p modplatform.Params, offset, size int) (url.Values, error) {
	q := url.Values{}
	q.Set("gameId", strconv.Itoa(gameMinecraft))
	switch p.ResultType {
	case modplatform.ResultMod:
		q.Set("classId", strconv.Itoa(classMods))
	case modplatform.ResultModpack:
		q.Set("classId", strconv.Itoa(classModpacks))
	default:
		return nil, fmt.Errorf("curseforge: unsupported result type %q", p.ResultType)
	}
	if s := strings.TrimSpace(p.SearchText); s != "" {
		q.Set("searchFilter", s)
	}
	if f, ok := sortFields[p.SortField]; ok {
		q.Set("sortField", strconv.Itoa(f))
		order := p.SortOrder
		if order == modplatform.SortDefault {
			order = modplatform.SortDesc
		}
		q.Set("sortOrder", string(order))
	}
	if len(p.Categories) > 0 {
		ids := make([]int, 0, len(p.Categories))
		for _, c := range p.Categories {
			id, err := strconv.Atoi(c)
			if err != nil {
				return nil, fmt.Errorf("curseforge: category id %q is not numeric", c)
			}
			ids = append(ids, id)
		}
		b, _ := json.Marshal(ids)
		q.Set("categoryIds", string(b))
	}
	if gv := strings.TrimSpace(p.GameVersion); gv != "" {
		q.Set("gameVersion", gv)
	}
	if len(p.ModLoaders) > 0 {
		var types []int
		for _, l := range p.ModLoaders {
			if t, ok := loaderTypes[l]; ok {
				types = append(types, t)
			}
		}
		if len(types) > 0 {
			b, _ := json.Marshal(types)
			q.Set("modLoaderTypes", string(b))
		}
	}
	q.Set("index", strconv.Itoa(offset))
	q.Set("pageSize", strconv.Itoa(size))
	return q, nil
}

// Categories lists the mod and modpack categories of the game.
func (c *Client) Categories(ctx context.Context) ([]modplatform.Category, error) {
	var resp struct {
		Data []struct {
			ID       int    `json:"id"`
			Name     string `json:"name"`
			ClassID  int    `json:"classId"`
			IsClass  bool   `json:"isClass"`
			ParentID int    `json:"parentCategoryId"`
		} `json:"data"`
	}
	q := url.Values{"gameId": {strconv.Itoa(gameMinecraft)}}
	if err := c.get(ctx, "/v1/categories", q, &resp); err != nil {
		return nil, err
	}
	var out []modplatform.Category
	for _, d := range resp.Data {
		if d.IsClass {
			continue
		}
		cat := modplatform.Category{ID: strconv.Itoa(d.ID), Name: d.Name}
		switch d.ClassID {
		case classMods:
			cat.ResultType = modplatform.ResultMod
			cat.Loaders = loaderCategory(d.Name)
		case classModpacks:
			cat.ResultType = modplatform.ResultModpack
		default:
			continue
		}
		out = append(out, cat)
	}
	return out, nil
}

// loaderCategory marks categories named after a loader as specific to that loader.
func loaderCategory(name string) []modplatform.ModLoader {
	switch strings.ToLower(name) {
	case "fabric":
		return []modplatform.ModLoader{modplatform.LoaderFabric, modplatform.LoaderQuilt}
	case "forge":
		return []modplatform.ModLoader{modplatform.LoaderForge}
	case "neoforge":
		return []modplatform.ModLoader{modplatform.LoaderNeoForge}
	case "quilt":
		return []modplatform.ModLoader{modplatform.LoaderQuilt}
	}
	return nil
}

// Details looks up several mods with one POST /v1/mods call.
func (c *Client) Details(ctx context.Context, ids []string) (map[string]modplatform.Details, error) {
	out := make(map[string]modplatform.Details, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	body := struct {
		ModIDs []int64 `json:"modIds"`
	}{}
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("curseforge: mod id %q is not numeric", id)
		}
		body.ModIDs = append(body.ModIDs, n)
	}
	var resp struct {
		Data []mod `json:"data"`
	}
	if err := c.post(ctx, "/v1/mods", body, &resp); err != nil {
		return nil, err
	}
	for _, m := range resp.Data {
		id := strconv.FormatInt(m.ID, 10)
		out[id] = modplatform.Details{
			ID:        id,
			Body:      m.Summary,
			SourceURL: m.Links.SourceURL,
			IssuesURL: m.Links.IssuesURL,
			Followers: m.ThumbsUpCount,
			Versions:  m.gameVersions(),
			Updated:   m.DateModified,
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	logURL := logging.SanitizeURL(req.URL.String())
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &modplatform.FetchError{Platform: modplatform.CurseForge, URL: logURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debugf("%s %s -> %d in %s", req.Method, logURL, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &modplatform.FetchError{
			Platform: modplatform.CurseForge,
			Status:   resp.StatusCode,
			URL:      logURL,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &modplatform.FetchError{Platform: modplatform.CurseForge, URL: logURL, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

type pagination struct {
	Index       int `json:"index"`
	PageSize    int `json:"pageSize"`
	ResultCount int `json:"resultCount"`
	TotalCount  int `json:"totalCount"`
}

type searchResponse struct {
	Data       []mod      `json:"data"`
	Pagination pagination `json:"pagination"`
}

type filesResponse struct {
	Data       []file     `json:"data"`
	Pagination pagination `json:"pagination"`
}

var releaseTypes = map[int]string{1: "release", 2: "beta", 3: "alpha"}

type file struct {
	ID            int64     `json:"id"`
	ModID         int64     `json:"modId"`
	DisplayName   string    `json:"displayName"`
	FileName      string    `json:"fileName"`
	ReleaseType   int       `json:"releaseType"`
	FileDate      time.Time `json:"fileDate"`
	DownloadCount int64     `json:"downloadCount"`
	GameVersions  []string  `json:"gameVersions"`
}

// row splits the file's gameVersions, which mix Minecraft versions with loader and
// environment names, into versions and known loaders.
func (f file) row() modplatform.Row {
	meta := &modplatform.VersionMeta{
		Source:        modplatform.CurseForge,
		ProjectID:     strconv.FormatInt(f.ModID, 10),
		VersionNumber: f.DisplayName,
		FileName:      f.FileName,
		ReleaseType:   releaseTypes[f.ReleaseType],
		Downloads:     f.DownloadCount,
		Published:     f.FileDate,
	}
	for _, gv := range f.GameVersions {
		l := modplatform.ModLoader(strings.ToLower(gv))
		switch {
		case loaderTypes[l] != 0:
			meta.Loaders = append(meta.Loaders, l)
		case gv != "" && gv[0] >= '0' && gv[0] <= '9':
			meta.GameVersions = append(meta.GameVersions, gv)
		}
	}
	name := f.DisplayName
	if name == "" {
		name = f.FileName
	}
	return modplatform.Row{ID: strconv.FormatInt(f.ID, 10), DisplayName: name, Payload: meta}
}

type mod struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Summary string `json:"summary"`
	Links   struct {
		WebsiteURL string `json:"websiteUrl"`
		SourceURL  string `json:"sourceUrl"`
		IssuesURL  string `json:"issuesUrl"`
	} `json:"links"`
	DownloadCount int64 `json:"downloadCount"`
	ThumbsUpCount int64 `json:"thumbsUpCount"`
	Categories    []struct {
		ID int `json:"id"`
	} `json:"categories"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Logo *struct {
		ThumbnailURL string `json:"thumbnailUrl"`
	} `json:"logo"`
	DateModified       time.Time `json:"dateModified"`
	LatestFilesIndexes []struct {
		GameVersion string `json:"gameVersion"`
	} `json:"latestFilesIndexes"`
}

func (m mod) gameVersions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, fi := range m.LatestFilesIndexes {
		if fi.GameVersion != "" && !seen[fi.GameVersion] {
			seen[fi.GameVersion] = true
			out = append(out, fi.GameVersion)
		}
	}
	return out
}

func (m mod) row() modplatform.Row {
	meta := &modplatform.CurseForgeMeta{
		ModID:         m.ID,
		Slug:          m.Slug,
		Summary:       m.Summary,
		DownloadCount: m.DownloadCount,
		DateModified:  m.DateModified,
		GameVersions:  m.gameVersions(),
		WebsiteURL:    m.Links.WebsiteURL,
	}
	for _, a := range m.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	for _, c := range m.Categories {
		meta.CategoryIDs = append(meta.CategoryIDs, c.ID)
	}
	r := modplatform.Row{ID: strconv.FormatInt(m.ID, 10), DisplayName: m.Name, Payload: meta}
	if m.Logo != nil {
		r.ThumbnailRef = m.Logo.ThumbnailURL
	}
	return r
}
