package modplatform

import (
	"strings"
	"time"
)

// Row is one normalized search result. Rows are identified by ID alone; the ID is unique
// within the result set of one query.
type Row struct {
	ID           string
	DisplayName  string
	ThumbnailRef string
	Payload      Payload
}

// Payload is the platform-specific part of a row. It is implemented only by
// *CurseForgeMeta and *ModrinthMeta for projects and by *VersionMeta for versions.
type Payload interface {
	Platform() Platform
	sealed()
}

// CurseForgeMeta carries the fields of a CurseForge search hit.
type CurseForgeMeta struct {
	ModID         int64
	Slug          string
	Summary       string
	Authors       []string
	DownloadCount int64
	DateModified  time.Time
	GameVersions  []string
	CategoryIDs   []int
	WebsiteURL    string
}

func (*CurseForgeMeta) Platform() Platform { return CurseForge }
func (*CurseForgeMeta) sealed()            {}

// ModrinthMeta carries the fields of a Modrinth search hit.
type ModrinthMeta struct {
	ProjectID    string
	Slug         string
	Description  string
	Author       string
	ProjectType  string
	Downloads    int64
	Follows      int64
	Categories   []string
	Versions     []string
	DateModified time.Time
}

func (*ModrinthMeta) Platform() Platform { return Modrinth }
func (*ModrinthMeta) sealed()            {}

// VersionMeta describes one downloadable version of a project: a CurseForge file or a
// Modrinth version.
type VersionMeta struct {
	Source        Platform
	ProjectID     string
	VersionNumber string
	FileName      string
	ReleaseType   string // release, beta or alpha
	GameVersions  []string
	Loaders       []ModLoader
	Downloads     int64
	Published     time.Time
}

func (v *VersionMeta) Platform() Platform { return v.Source }
func (*VersionMeta) sealed()              {}

func (v *VersionMeta) describe() string {
	var parts []string
	if v.ReleaseType != "" {
		parts = append(parts, v.ReleaseType)
	}
	if len(v.GameVersions) > 0 {
		parts = append(parts, strings.Join(v.GameVersions, ", "))
	}
	if len(v.Loaders) > 0 {
		ls := make([]string, len(v.Loaders))
		for i, l := range v.Loaders {
			ls[i] = string(l)
		}
		parts = append(parts, strings.Join(ls, ", "))
	}
	if v.FileName != "" {
		parts = append(parts, v.FileName)
	}
	return strings.Join(parts, " · ")
}

// Summary returns the short description of the row.
func (r Row) Summary() string {
	switch p := r.Payload.(type) {
	case *CurseForgeMeta:
		return p.Summary
	case *ModrinthMeta:
		return p.Description
	case *VersionMeta:
		return p.describe()
	}
	return ""
}

// Author returns the primary author name.
func (r Row) Author() string {
	switch p := r.Payload.(type) {
	case *CurseForgeMeta:
		if len(p.Authors) > 0 {
			return p.Authors[0]
		}
	case *ModrinthMeta:
		return p.Author
	}
	return ""
}

// Downloads returns the platform-reported download count.
func (r Row) Downloads() int64 {
	switch p := r.Payload.(type) {
	case *CurseForgeMeta:
		return p.DownloadCount
	case *ModrinthMeta:
		return p.Downloads
	case *VersionMeta:
		return p.Downloads
	}
	return 0
}

// Updated returns the last modification time reported by the platform.
func (r Row) Updated() time.Time {
	switch p := r.Payload.(type) {
	case *CurseForgeMeta:
		return p.DateModified
	case *ModrinthMeta:
		return p.DateModified
	case *VersionMeta:
		return p.Published
	}
	return time.Time{}
}

// Page is one fetched batch. A page is atomic: callers either apply all of it or none.
type Page struct {
	Rows        []Row
	NextCursor  Cursor
	HasNextPage bool
}

// Details is the lazily loaded extended description of a project.
type Details struct {
	ID        string
	Body      string
	License   string
	SourceURL string
	IssuesURL string
	Followers int64
	Versions  []string
	Updated   time.Time
}
