package modplatform

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Platform identifies a remote catalog.
type Platform string

const (
	CurseForge Platform = "curseforge"
	Modrinth   Platform = "modrinth"
)

func (p Platform) Valid() bool { return p == CurseForge || p == Modrinth }

// ParsePlatform accepts the canonical names plus the short aliases used on the CLI.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "curseforge", "cf":
		return CurseForge, nil
	case "modrinth", "mr":
		return Modrinth, nil
	}
	return "", fmt.Errorf("unknown platform %q (want curseforge or modrinth)", s)
}

// ResultType is the kind of project being browsed.
type ResultType string

const (
	ResultMod     ResultType = "mod"
	ResultModpack ResultType = "modpack"
)

func (r ResultType) Valid() bool { return r == ResultMod || r == ResultModpack }

func ParseResultType(s string) (ResultType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mod", "mods":
		return ResultMod, nil
	case "modpack", "modpacks", "pack":
		return ResultModpack, nil
	}
	return "", fmt.Errorf("unknown result type %q (want mod or modpack)", s)
}

// ModLoader is the unified loader name. Not every platform supports every loader.
type ModLoader string

const (
	LoaderForge      ModLoader = "forge"
	LoaderNeoForge   ModLoader = "neoforge"
	LoaderFabric     ModLoader = "fabric"
	LoaderQuilt      ModLoader = "quilt"
	LoaderLiteLoader ModLoader = "liteloader"
	LoaderCauldron   ModLoader = "cauldron"
	LoaderBukkit     ModLoader = "bukkit"
	LoaderPaper      ModLoader = "paper"
	LoaderSpigot     ModLoader = "spigot"
	LoaderPurpur     ModLoader = "purpur"
	LoaderFolia      ModLoader = "folia"
	LoaderSponge     ModLoader = "sponge"
	LoaderVelocity   ModLoader = "velocity"
	LoaderDatapack   ModLoader = "datapack"
	LoaderIris       ModLoader = "iris"
	LoaderOptifine   ModLoader = "optifine"
	LoaderRift       ModLoader = "rift"
)

// SortField is the unified sort key. Each platform offers a subset.
type SortField string

const (
	SortRelevance      SortField = "relevance"
	SortFeatured       SortField = "featured"
	SortPopularity     SortField = "popularity"
	SortLastUpdated    SortField = "last_updated"
	SortName           SortField = "name"
	SortAuthor         SortField = "author"
	SortTotalDownloads SortField = "total_downloads"
	SortDownloads      SortField = "downloads"
	SortFollows        SortField = "follows"
	SortNewest         SortField = "newest"
)

type SortOrder string

const (
	SortDefault SortOrder = ""
	SortAsc     SortOrder = "asc"
	SortDesc    SortOrder = "desc"
)

// Params is the full set of browse parameters for one query. A Params value is what a
// query signature fingerprints and what adapters translate into a platform request.
type Params struct {
	ResultType  ResultType  `json:"result_type"`
	Platform    Platform    `json:"platform"`
	SearchText  string      `json:"search_text,omitempty"`
	SortField   SortField   `json:"sort_field,omitempty"`
	SortOrder   SortOrder   `json:"sort_order,omitempty"`
	Categories  []string    `json:"categories,omitempty"`
	GameVersion string      `json:"game_version,omitempty"`
	ModLoaders  []ModLoader `json:"mod_loaders,omitempty"`
	InstanceID  int64       `json:"instance_id,omitempty"`
	// ProjectID switches the query from a catalog search to the version listing of one
	// project. Only GameVersion and ModLoaders filter a version listing.
	ProjectID string `json:"project_id,omitempty"`
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	p.Categories = slices.Clone(p.Categories)
	p.ModLoaders = slices.Clone(p.ModLoaders)
	return p
}

// Canonical returns a copy with normalized text and sorted, de-duplicated lists so that
// equal queries produce equal keys.
func (p Params) Canonical() Params {
	c := p.Clone()
	c.SearchText = norm.NFC.String(strings.TrimSpace(c.SearchText))
	c.GameVersion = strings.TrimSpace(c.GameVersion)
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.Categories = compactSorted(c.Categories)
	c.ModLoaders = compactSorted(c.ModLoaders)
	return c
}

// Key is the canonical fingerprint of the params. Two Params have the same key iff all
// fields are equal after canonicalization.
func (p Params) Key() string {
	c := p.Canonical()
	cats := make([]string, len(c.Categories))
	for i, id := range c.Categories {
		cats[i] = strconv.Quote(id)
	}
	loaders := make([]string, len(c.ModLoaders))
	for i, l := range c.ModLoaders {
		loaders[i] = string(l)
	}
	return fmt.Sprintf("rt=%s|pf=%s|q=%s|sort=%s:%s|cat=%s|gv=%s|ml=%s|inst=%d|proj=%s",
		c.ResultType, c.Platform, strconv.Quote(c.SearchText), c.SortField, c.SortOrder,
		strings.Join(cats, ","), strconv.Quote(c.GameVersion), strings.Join(loaders, ","), c.InstanceID,
		strconv.Quote(c.ProjectID))
}

func compactSorted[T ~string](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, 0, len(in))
	for _, v := range in {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, T(s))
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Cursor is an opaque resume token. Only the adapter that produced it interprets it.
type Cursor string

// StartCursor requests the first page.
const StartCursor Cursor = ""

// OffsetCursor encodes a numeric offset. Offset zero is the start cursor.
func OffsetCursor(n int) Cursor {
	if n <= 0 {
		return StartCursor
	}
	return Cursor(strconv.Itoa(n))
}

// Offset decodes a cursor produced by OffsetCursor.
func (c Cursor) Offset() (int, error) {
	if c == StartCursor {
		return 0, nil
	}
	n, err := strconv.Atoi(string(c))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid offset cursor %q", string(c))
	}
	return n, nil
}

func (c Cursor) String() string {
	if c == StartCursor {
		return "start"
	}
	return string(c)
}
