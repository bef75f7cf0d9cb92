// Package modrinth adapts the Modrinth v2 search API. A listing is requested once with the
// configured bulk limit and then served to the browser in locally sliced chunks.
package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

// maxListings bounds the in-session listing cache.
const maxListings = 8

// detailsBatch is the most ids sent in one /v2/projects request.
const detailsBatch = 100

var sortIndexes = map[modplatform.SortField]string{
	modplatform.SortRelevance:   "relevance",
	modplatform.SortDownloads:   "downloads",
	modplatform.SortFollows:     "follows",
	modplatform.SortNewest:      "newest",
	modplatform.SortLastUpdated: "updated",
}

// Client is the Modrinth adapter.
type Client struct {
	http        *http.Client
	baseURL     string
	token       string
	userAgent   string
	bulkLimit   int
	chunkSize   int
	localSearch bool
	log         *logging.Logger

	mu       sync.Mutex
	listings map[string][]modplatform.Row
	order    []string // listing keys, least recently stored first
}

type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	BulkLimit int
	// ChunkSize slices a listing into pages; 0 returns the whole listing as one page.
	ChunkSize   int
	LocalSearch bool
	Log         *logging.Logger
}

func New(hc *http.Client, opts Options) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if opts.BulkLimit <= 0 {
		opts.BulkLimit = 100
	}
	if opts.ChunkSize < 0 {
		opts.ChunkSize = 0
	}
	return &Client{
		http:        hc,
		baseURL:     strings.TrimSuffix(opts.BaseURL, "/"),
		token:       opts.Token,
		userAgent:   opts.UserAgent,
		bulkLimit:   opts.BulkLimit,
		chunkSize:   opts.ChunkSize,
		localSearch: opts.LocalSearch,
		log:         opts.Log,
		listings:    make(map[string][]modplatform.Row),
	}
}

// NewFromConfig builds the adapter from the sources.modrinth section.
func NewFromConfig(cfg *config.Config, hc *http.Client, userAgent string, log *logging.Logger) *Client {
	src := cfg.Sources.Modrinth
	return New(hc, Options{
		BaseURL:     src.BaseURL,
		Token:       src.Token(),
		UserAgent:   userAgent,
		BulkLimit:   src.BulkLimit,
		ChunkSize:   src.ChunkSize,
		LocalSearch: src.LocalSearch,
		Log:         log.With("platform", string(modplatform.Modrinth)),
	})
}

func (c *Client) Platform() modplatform.Platform { return modplatform.Modrinth }

// FetchPage returns the chunk at cursor. The start cursor always requests the listing
// from the server; later cursors slice the stored listing and only go back to the server
// when it has been evicted.
func (c *Client) FetchPage(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	return c.page(ctx, p, cursor, c.search)
}

// FetchVersions pages through the versions of project p.ProjectID the same way FetchPage
// pages through a search: the whole list is requested once and sliced locally.
func (c *Client) FetchVersions(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor) (modplatform.Page, error) {
	return c.page(ctx, p, cursor, c.versions)
}

func (c *Client) page(ctx context.Context, p modplatform.Params, cursor modplatform.Cursor,
	load func(context.Context, modplatform.Params) ([]modplatform.Row, error)) (modplatform.Page, error) {
	offset, err := cursor.Offset()
	if err != nil {
		return modplatform.Page{}, err
	}
	key := p.Key()
	rows, ok := c.listing(key)
	if cursor == modplatform.StartCursor || !ok {
		if rows, err = load(ctx, p); err != nil {
			return modplatform.Page{}, err
		}
		c.store(key, rows)
	}
	return c.slice(rows, offset), nil
}

func (c *Client) slice(rows []modplatform.Row, offset int) modplatform.Page {
	if offset >= len(rows) {
		return modplatform.Page{NextCursor: modplatform.OffsetCursor(offset)}
	}
	end := len(rows)
	if c.chunkSize > 0 && offset+c.chunkSize < end {
		end = offset + c.chunkSize
	}
	chunk := make([]modplatform.Row, end-offset)
	copy(chunk, rows[offset:end])
	return modplatform.Page{
		Rows:        chunk,
		NextCursor:  modplatform.OffsetCursor(end),
		HasNextPage: end < len(rows),
	}
}

func (c *Client) listing(key string) ([]modplatform.Row, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows, ok := c.listings[key]
	return rows, ok
}

func (c *Client) store(key string, rows []modplatform.Row) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.listings[key]; ok {
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.listings[key] = rows
	c.order = append(c.order, key)
	for len(c.order) > maxListings {
		delete(c.listings, c.order[0])
		c.order = c.order[1:]
	}
}

// Forget drops every stored listing.
func (c *Client) Forget() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = make(map[string][]modplatform.Row)
	c.order = nil
}

func (c *Client) search(ctx context.Context, p modplatform.Params) ([]modplatform.Row, error) {
	q, err := searchQuery(p, c.bulkLimit)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := c.get(ctx, "/v2/search", q, &resp); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(p.SearchText)
	rows := make([]modplatform.Row, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		if c.localSearch && text != "" && !fuzzy.MatchNormalizedFold(text, h.Title) {
			continue
		}
		rows = append(rows, h.row())
	}
	c.log.Debugf("listing %q: %d hits, %d kept", p.Key(), len(resp.Hits), len(rows))
	return rows, nil
}

func (c *Client) versions(ctx context.Context, p modplatform.Params) ([]modplatform.Row, error) {
	id := strings.TrimSpace(p.ProjectID)
	if id == "" {
		return nil, fmt.Errorf("modrinth: version listing needs a project id")
	}
	q := url.Values{}
	if len(p.ModLoaders) > 0 {
		ls := make([]string, len(p.ModLoaders))
		for i, l := range p.ModLoaders {
			ls[i] = string(l)
		}
		b, _ := json.Marshal(ls)
		q.Set("loaders", string(b))
	}
	if gv := strings.TrimSpace(p.GameVersion); gv != "" {
		b, _ := json.Marshal([]string{gv})
		q.Set("game_versions", string(b))
	}
	var vs []version
	if err := c.get(ctx, "/v2/project/"+url.PathEscape(id)+"/version", q, &vs); err != nil {
		return nil, err
	}
	rows := make([]modplatform.Row, 0, len(vs))
	for _, v := range vs {
		rows = append(rows, v.row())
	}
	c.log.Debugf("versions of %s: %d", id, len(rows))
	return rows, nil
}

func projectType(rt modplatform.ResultType) (string, error) {
	switch rt {
	case modplatform.ResultMod:
		return "mod", nil
	case modplatform.ResultModpack:
		return "modpack", nil
	}
	return "", fmt.Errorf("modrinth: unsupported result type %q", rt)
}

func searchQuery(p modplatform.Params, limit int) (url.Values, error) {
	pt, err := projectType(p.ResultType)
	if err != nil {
		return nil, err
	}
	// Inner lists are OR'd, outer lists AND'd.
	facets := [][]string{{"project_type:" + pt}}
	if len(p.ModLoaders) > 0 {
		var or []string
		for _, l := range p.ModLoaders {
			or = append(or, "categories:"+string(l))
		}
		facets = append(facets, or)
	}
	if gv := strings.TrimSpace(p.GameVersion); gv != "" {
		facets = append(facets, []string{"versions:" + gv})
	}
	for _, cat := range p.Categories {
		facets = append(facets, []string{"categories:" + cat})
	}
	b, err := json.Marshal(facets)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if s := strings.TrimSpace(p.SearchText); s != "" {
		q.Set("query", s)
	}
	q.Set("facets", string(b))
	if idx, ok := sortIndexes[p.SortField]; ok {
		q.Set("index", idx)
	}
	q.Set("limit", strconv.Itoa(limit))
	return q, nil
}

// Categories lists the mod and modpack categories from /v2/tag/category.
func (c *Client) Categories(ctx context.Context) ([]modplatform.Category, error) {
	var tags []struct {
		Name        string `json:"name"`
		ProjectType string `json:"project_type"`
		Header      string `json:"header"`
	}
	if err := c.get(ctx, "/v2/tag/category", nil, &tags); err != nil {
		return nil, err
	}
	var out []modplatform.Category
	for _, t := range tags {
		if t.Header != "" && t.Header != "categories" {
			continue
		}
		rt, err := modplatform.ParseResultType(t.ProjectType)
		if err != nil {
			continue
		}
		out = append(out, modplatform.Category{ID: t.Name, Name: strings.ReplaceAll(t.Name, "-", " "), ResultType: rt})
	}
	return out, nil
}

// Details looks up projects with /v2/projects, one request per hundred ids.
func (c *Client) Details(ctx context.Context, ids []string) (map[string]modplatform.Details, error) {
	out := make(map[string]modplatform.Details, len(ids))
	for start := 0; start < len(ids); start += detailsBatch {
		end := min(start+detailsBatch, len(ids))
		b, err := json.Marshal(ids[start:end])
		if err != nil {
			return nil, err
		}
		var projects []project
		if err := c.get(ctx, "/v2/projects", url.Values{"ids": {string(b)}}, &projects); err != nil {
			return nil, err
		}
		for _, p := range projects {
			out[p.ID] = p.details()
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
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	logURL := logging.SanitizeURL(u)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return &modplatform.FetchError{Platform: modplatform.Modrinth, URL: logURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debugf("GET %s -> %d in %s", logURL, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &modplatform.FetchError{
			Platform: modplatform.Modrinth,
			Status:   resp.StatusCode,
			URL:      logURL,
			Err:      fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &modplatform.FetchError{Platform: modplatform.Modrinth, URL: logURL, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

type searchResponse struct {
	Hits      []hit `json:"hits"`
	TotalHits int   `json:"total_hits"`
}

type hit struct {
	ProjectID    string    `json:"project_id"`
	ProjectType  string    `json:"project_type"`
	Slug         string    `json:"slug"`
	Author       string    `json:"author"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Categories   []string  `json:"categories"`
	Versions     []string  `json:"versions"`
	Downloads    int64     `json:"downloads"`
	Follows      int64     `json:"follows"`
	IconURL      string    `json:"icon_url"`
	DateModified time.Time `json:"date_modified"`
}

func (h hit) row() modplatform.Row {
	return modplatform.Row{
		ID:           h.ProjectID,
		DisplayName:  h.Title,
		ThumbnailRef: h.IconURL,
		Payload: &modplatform.ModrinthMeta{
			ProjectID:    h.ProjectID,
			Slug:         h.Slug,
			Description:  h.Description,
			Author:       h.Author,
			ProjectType:  h.ProjectType,
			Downloads:    h.Downloads,
			Follows:      h.Follows,
			Categories:   h.Categories,
			Versions:     h.Versions,
			DateModified: h.DateModified,
		},
	}
}

type project struct {
	ID      string `json:"id"`
	Body    string `json:"body"`
	License struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"license"`
	SourceURL    string    `json:"source_url"`
	IssuesURL    string    `json:"issues_url"`
	Followers    int64     `json:"followers"`
	GameVersions []string  `json:"game_versions"`
	Updated      time.Time `json:"updated"`
}

func (p project) details() modplatform.Details {
	license := p.License.Name
	if license == "" {
		license = p.License.ID
	}
	return modplatform.Details{
		ID:        p.ID,
		Body:      p.Body,
		License:   license,
		SourceURL: p.SourceURL,
		IssuesURL: p.IssuesURL,
		Followers: p.Followers,
		Versions:  p.GameVersions,
		Updated:   p.Updated,
	}
}

type version struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	VersionNumber string    `json:"version_number"`
	VersionType   string    `json:"version_type"`
	GameVersions  []string  `json:"game_versions"`
	Loaders       []string  `json:"loaders"`
	Downloads     int64     `json:"downloads"`
	DatePublished time.Time `json:"date_published"`
	Files         []struct {
		Filename string `json:"filename"`
		Primary  bool   `json:"primary"`
	} `json:"files"`
}

// primaryFile is the file flagged primary, or the first file when none is.
func (v version) primaryFile() string {
	for _, f := range v.Files {
		if f.Primary {
			return f.Filename
		}
	}
	if len(v.Files) > 0 {
		return v.Files[0].Filename
	}
	return ""
}

func (v version) row() modplatform.Row {
	meta := &modplatform.VersionMeta{
		Source:        modplatform.Modrinth,
		ProjectID:     v.ProjectID,
		VersionNumber: v.VersionNumber,
		FileName:      v.primaryFile(),
		ReleaseType:   v.VersionType,
		GameVersions:  v.GameVersions,
		Downloads:     v.Downloads,
		Published:     v.DatePublished,
	}
	for _, l := range v.Loaders {
		meta.Loaders = append(meta.Loaders, modplatform.ModLoader(l))
	}
	name := v.Name
	if name == "" {
		name = v.VersionNumber
	}
	return modplatform.Row{ID: v.ID, DisplayName: name, Payload: meta}
}
