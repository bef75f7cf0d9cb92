package modplatform

import (
	"slices"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Category is a platform category filter.
type Category struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ResultType ResultType  `json:"result_type"`
	Loaders    []ModLoader `json:"loaders,omitempty"` // empty: valid for every loader
}

// AppliesTo reports whether the category can be combined with the given loaders.
func (c Category) AppliesTo(loaders []ModLoader) bool {
	if len(c.Loaders) == 0 || len(loaders) == 0 {
		return true
	}
	for _, l := range loaders {
		if slices.Contains(c.Loaders, l) {
			return true
		}
	}
	return false
}

// Capabilities describes what a platform accepts in a query.
type Capabilities struct {
	SortFields  []SortField
	DefaultSort SortField
	SortOrder   bool // platform honours asc/desc
	Loaders     []ModLoader
	// MaxResults caps offset+pageSize for offset-paginated platforms. Zero means unbounded.
	MaxResults int
}

func (c Capabilities) SupportsSort(f SortField) bool { return slices.Contains(c.SortFields, f) }

func (c Capabilities) SupportsLoader(l ModLoader) bool { return slices.Contains(c.Loaders, l) }

// Catalog holds the category lists and capabilities of every platform. It is safe for
// concurrent use; SetCategories replaces a platform's list atomically.
type Catalog struct {
	mu   sync.RWMutex
	caps map[Platform]Capabilities
	cats map[Platform][]Category
}

// NewCatalog returns a catalog seeded with the built-in tables.
func NewCatalog() *Catalog {
	c := &Catalog{
		caps: map[Platform]Capabilities{
			CurseForge: curseForgeCaps,
			Modrinth:   modrinthCaps,
		},
		cats: map[Platform][]Category{
			CurseForge: slices.Clone(curseForgeCategories),
			Modrinth:   slices.Clone(modrinthCategories),
		},
	}
	return c
}

// Capabilities returns the capabilities of p.
func (c *Catalog) Capabilities(p Platform) (Capabilities, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	caps, ok := c.caps[p]
	return caps, ok
}

// SetCategories replaces the category list for p. An empty list is ignored so that a
// failed refresh never wipes the built-ins.
func (c *Catalog) SetCategories(p Platform, cats []Category) {
	if len(cats) == 0 {
		return
	}
	c.mu.Lock()
	c.cats[p] = slices.Clone(cats)
	c.mu.Unlock()
}

// Categories lists the categories of p for a result type that apply to the loaders.
func (c *Catalog) Categories(p Platform, rt ResultType, loaders []ModLoader) []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Category
	for _, cat := range c.cats[p] {
		if cat.ResultType == rt && cat.AppliesTo(loaders) {
			out = append(out, cat)
		}
	}
	return out
}

// Category looks up a category by id.
func (c *Catalog) Category(p Platform, rt ResultType, loaders []ModLoader, id string) (Category, bool) {
	for _, cat := range c.Categories(p, rt, loaders) {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// FindCategories returns categories whose name fuzzily matches term, best matches first.
func (c *Catalog) FindCategories(p Platform, rt ResultType, loaders []ModLoader, term string) []Category {
	cats := c.Categories(p, rt, loaders)
	term = strings.TrimSpace(term)
	if term == "" {
		return cats
	}
	names := make([]string, len(cats))
	for i, cat := range cats {
		names[i] = cat.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(term, names)
	slices.SortStableFunc(ranks, func(a, b fuzzy.Rank) int { return a.Distance - b.Distance })
	out := make([]Category, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, cats[r.OriginalIndex])
	}
	return out
}

var curseForgeCaps = Capabilities{
	SortFields:  []SortField{SortFeatured, SortPopularity, SortLastUpdated, SortName, SortAuthor, SortTotalDownloads},
	DefaultSort: SortPopularity,
	SortOrder:   true,
	Loaders:     []ModLoader{LoaderForge, LoaderCauldron, LoaderLiteLoader, LoaderFabric, LoaderQuilt, LoaderNeoForge},
	MaxResults:  10000,
}

var modrinthCaps = Capabilities{
	SortFields:  []SortField{SortRelevance, SortDownloads, SortFollows, SortNewest, SortLastUpdated},
	DefaultSort: SortRelevance,
	Loaders: []ModLoader{
		LoaderForge, LoaderNeoForge, LoaderFabric, LoaderQuilt, LoaderLiteLoader, LoaderBukkit,
		LoaderPaper, LoaderSpigot, LoaderPurpur, LoaderFolia, LoaderSponge, LoaderVelocity,
		LoaderDatapack, LoaderIris, LoaderOptifine, LoaderRift,
	},
}

func cfMod(id, name string, loaders ...ModLoader) Category {
	return Category{ID: id, Name: name, ResultType: ResultMod, Loaders: loaders}
}

func cfPack(id, name string) Category {
	return Category{ID: id, Name: name, ResultType: ResultModpack}
}

var curseForgeCategories = []Category{
	cfMod("406", "World Gen"),
	cfMod("412", "Technology"),
	cfMod("420", "Storage"),
	cfMod("421", "API and Library"),
	cfMod("422", "Adventure and RPG"),
	cfMod("423", "Map and Information"),
	cfMod("424", "Cosmetic"),
	cfMod("425", "Miscellaneous"),
	cfMod("434", "Armor, Tools, and Weapons"),
	cfMod("435", "Server Utility"),
	cfMod("436", "Food"),
	cfMod("4780", "Fabric", LoaderFabric, LoaderQuilt),
	cfMod("6814", "Performance"),
	cfPack("4472", "Tech"),
	cfPack("4475", "Adventure and RPG"),
	cfPack("4476", "Exploration"),
	cfPack("4478", "Quests"),
	cfPack("4479", "Hardcore"),
	cfPack("4481", "Small / Light"),
	cfPack("4482", "Extra Large"),
	cfPack("4483", "Combat / PvP"),
	cfPack("4484", "Multiplayer"),
	cfPack("5128", "Vanilla+"),
}

func mrCats(rt ResultType, names ...string) []Category {
	out := make([]Category, 0, len(names))
	for _, n := range names {
		out = append(out, Category{ID: n, Name: strings.ReplaceAll(n, "-", " "), ResultType: rt})
	}
	return out
}

var modrinthCategories = append(
	mrCats(ResultMod, "adventure", "cursed", "decoration", "economy", "equipment", "food",
		"game-mechanics", "library", "magic", "management", "minigame", "mobs", "optimization",
		"social", "storage", "technology", "transportation", "utility", "worldgen"),
	mrCats(ResultModpack, "adventure", "challenging", "combat", "kitchen-sink", "lightweight",
		"magic", "multiplayer", "optimization", "quests", "technology")...,
)
