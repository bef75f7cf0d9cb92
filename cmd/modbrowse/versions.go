package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/browse"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

func newVersionsCmd(g *globals) *cobra.Command {
	var q queryFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "versions PROJECT_ID",
		Short: "Print the downloadable versions of one project",
		Example: `  modbrowse versions 238222 --game-version 1.20.1 --loader forge
  modbrowse versions AANobbMI --platform modrinth --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}
			s, err := g.open(false)
			if err != nil {
				return err
			}
			defer s.Close()

			initial, err := q.initial(s.cfg)
			if err != nil {
				return err
			}
			initial.ProjectID = strings.TrimSpace(args[0])
			if initial.ProjectID == "" {
				return errors.New("project id is empty")
			}
			seed, err := q.seed(s.cfg)
			if err != nil {
				return err
			}
			p, err := browse.New(browse.Options{
				Initial:      initial,
				EstimateSize: 1,
				Viewport:     limit,
				Log:          s.log,
				Metrics:      s.metrics,
			}, s.registry, s.catalog, seed, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			tk, err := p.SetQuery(q.update(""))
			if err != nil {
				return err
			}
			rows, err := collect(cmd, p, tk, limit)
			if err != nil {
				return err
			}
			if g.jsonLogs {
				return printRows(cmd, true, p.Snapshot(), rows)
			}
			return printVersions(cmd, p.Snapshot(), rows)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&q.platform, "platform", "p", "", "Platform: curseforge|modrinth (default: browse.default_platform)")
	f.StringVar(&q.gameVersion, "game-version", "", "Only versions for this Minecraft version")
	f.StringVar(&q.instance, "instance", "", "Filter by a saved instance's version and loader (name or id)")
	f.StringSliceVar(&q.loaders, "loader", nil, "Mod loader (repeatable), e.g. fabric")
	f.IntVarP(&limit, "limit", "n", 20, "Number of versions to print")
	return cmd
}

func printVersions(cmd *cobra.Command, st browse.Status, rows []modplatform.Row) error {
	w := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(w, "No versions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tMINECRAFT\tLOADERS\tDOWNLOADS\tPUBLISHED")
	for _, r := range rows {
		v, ok := r.Payload.(*modplatform.VersionMeta)
		if !ok {
			continue
		}
		published := "-"
		if !v.Published.IsZero() {
			published = humanize.Time(v.Published)
		}
		loaders := make([]string, len(v.Loaders))
		for i, l := range v.Loaders {
			loaders[i] = string(l)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, truncate(r.DisplayName, 40), v.ReleaseType,
			truncate(strings.Join(v.GameVersions, ","), 24), strings.Join(loaders, ","), humanize.Comma(v.Downloads), published)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if st.HasNextPage || st.Rows > len(rows) {
		fmt.Fprintf(w, "\nShowing the first %d versions, raise --limit for more.\n", len(rows))
	}
	return nil
}
