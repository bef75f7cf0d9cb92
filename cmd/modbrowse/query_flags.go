package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
)

// queryFlags are the filter flags shared by search and browse.
type queryFlags struct {
	resultType  string
	platform    string
	sort        string
	order       string
	gameVersion string
	instance    string
	categories  []string
	loaders     []string
}

func addQueryFlags(cmd *cobra.Command, q *queryFlags) {
	f := cmd.Flags()
	f.StringVarP(&q.resultType, "type", "t", "", "Result type: mod|modpack (default: browse.default_result_type)")
	f.StringVarP(&q.platform, "platform", "p", "", "Platform: curseforge|modrinth (default: browse.default_platform)")
	f.StringVar(&q.sort, "sort", "", "Sort field, e.g. popularity, downloads, last_updated")
	f.StringVar(&q.order, "order", "", "Sort order: asc|desc (CurseForge only)")
	f.StringVar(&q.gameVersion, "game-version", "", "Minecraft version, e.g. 1.20.1")
	f.StringVar(&q.instance, "instance", "", "Seed version and loaders from a saved instance (name or id)")
	f.StringSliceVar(&q.categories, "category", nil, "Category id (repeatable)")
	f.StringSliceVar(&q.loaders, "loader", nil, "Mod loader (repeatable), e.g. fabric")
}

func (q *queryFlags) initial(cfg *config.Config) (modplatform.Params, error) {
	rt := q.resultType
	if rt == "" {
		rt = cfg.Browse.DefaultResultType
	}
	pf := q.platform
	if pf == "" {
		pf = cfg.Browse.DefaultPlatform
	}
	var p modplatform.Params
	var err error
	if p.ResultType, err = modplatform.ParseResultType(rt); err != nil {
		return p, err
	}
	if p.Platform, err = modplatform.ParsePlatform(pf); err != nil {
		return p, err
	}
	return p, nil
}

// seed loads the --instance seed, if any.
func (q *queryFlags) seed(cfg *config.Config) (*query.Seed, error) {
	if q.instance == "" {
		return nil, nil
	}
	inst, err := resolveInstance(cfg, q.instance)
	if err != nil {
		return nil, err
	}
	return inst.Seed(), nil
}

// update carries the explicitly given filters so the store validates them strictly.
func (q *queryFlags) update(search string) query.Update {
	var u query.Update
	if s := strings.TrimSpace(search); s != "" {
		u.SearchText = &s
	}
	if q.sort != "" {
		f := modplatform.SortField(strings.ToLower(q.sort))
		u.SortField = &f
	}
	if q.order != "" {
		o := modplatform.SortOrder(strings.ToLower(q.order))
		u.SortOrder = &o
	}
	if q.gameVersion != "" {
		u.GameVersion = &q.gameVersion
	}
	if len(q.categories) > 0 {
		cats := append([]string(nil), q.categories...)
		u.Categories = &cats
	}
	if len(q.loaders) > 0 {
		ls := make([]modplatform.ModLoader, len(q.loaders))
		for i, l := range q.loaders {
			ls[i] = modplatform.ModLoader(strings.ToLower(strings.TrimSpace(l)))
		}
		u.ModLoaders = &ls
	}
	return u
}
