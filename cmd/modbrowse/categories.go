package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/browse"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

func newCategoriesCmd(g *globals) *cobra.Command {
	var q queryFlags
	var refresh bool
	cmd := &cobra.Command{
		Use:   "categories [filter]",
		Short: "List the category ids accepted by --category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(false)
			if err != nil {
				return err
			}
			defer s.Close()
			p, err := q.initial(s.cfg)
			if err != nil {
				return err
			}
			if refresh || s.cfg.Browse.RefreshCatalog {
				if err := browse.RefreshCatalog(cmd.Context(), s.registry, s.catalog, s.log); err != nil {
					s.log.Warnf("showing built-in categories: %v", err)
				}
			}
			var loaders []modplatform.ModLoader
			for _, l := range q.loaders {
				loaders = append(loaders, modplatform.ModLoader(strings.ToLower(l)))
			}
			filter := ""
			if len(args) > 0 {
				filter = args[0]
			}
			cats := s.catalog.FindCategories(p.Platform, p.ResultType, loaders, filter)
			if g.jsonLogs {
				return printJSON(cmd.OutOrStdout(), cats)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, c := range cats {
				fmt.Fprintf(tw, "%s\t%s\n", c.ID, c.Name)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.resultType, "type", "t", "", "Result type: mod|modpack")
	f.StringVarP(&q.platform, "platform", "p", "", "Platform: curseforge|modrinth")
	f.StringSliceVar(&q.loaders, "loader", nil, "Only categories usable with these loaders")
	f.BoolVar(&refresh, "refresh", false, "Fetch the current lists from the platforms")
	return cmd
}
