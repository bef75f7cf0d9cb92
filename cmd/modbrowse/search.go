package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/browse"
	friendlyerrors "github.com/jxwalker/modbrowse/internal/errors"
	"github.com/jxwalker/modbrowse/internal/modplatform"
)

type searchResult struct {
	Platform  modplatform.Platform `json:"platform"`
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Author    string               `json:"author,omitempty"`
	Summary   string               `json:"summary,omitempty"`
	Downloads int64                `json:"downloads"`
	Updated   *time.Time           `json:"updated,omitempty"`
}

func newSearchCmd(g *globals) *cobra.Command {
	var q queryFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Print matching projects without opening the browser",
		Example: `  modbrowse search sodium --platform modrinth --loader fabric
  modbrowse search --type modpack --sort total_downloads --limit 50 --json`,
		Args: cobra.MaximumNArgs(1),
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
			seed, err := q.seed(s.cfg)
			if err != nil {
				return err
			}
			if s.cfg.Browse.RefreshCatalog || len(q.categories) > 0 {
				_ = browse.RefreshCatalog(cmd.Context(), s.registry, s.catalog, s.log)
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

			search := ""
			if len(args) > 0 {
				search = args[0]
			}
			tk, err := p.SetQuery(q.update(search))
			if err != nil {
				return err
			}
			rows, err := collect(cmd, p, tk, limit)
			if err != nil {
				return err
			}
			return printRows(cmd, g.jsonLogs, p.Snapshot(), rows)
		},
	}
	addQueryFlags(cmd, &q)
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of results to print")
	return cmd
}

// collect drives the pipeline until limit rows are loaded or the listing is exhausted.
func collect(cmd *cobra.Command, p *browse.Pipeline, tk *browse.Ticket, limit int) ([]modplatform.Row, error) {
	ctx := cmd.Context()
	for tk != nil && p.Snapshot().Rows < limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var out browse.Outcome
		out, tk = p.Deliver(p.Fetch(ctx, tk))
		if out == browse.OutcomeFailed {
			err := p.Snapshot().Err
			if errors.Is(err, modplatform.ErrNetwork) {
				return nil, friendlyerrors.NetworkError(err)
			}
			return nil, err
		}
	}
	n := min(p.Snapshot().Rows, limit)
	rows := make([]modplatform.Row, 0, n)
	for i := 0; i < n; i++ {
		r, _ := p.Row(i)
		rows = append(rows, r)
	}
	return rows, nil
}

func printRows(cmd *cobra.Command, asJSON bool, st browse.Status, rows []modplatform.Row) error {
	pf := st.Signature.Platform()
	if asJSON {
		out := make([]searchResult, 0, len(rows))
		for _, r := range rows {
			res := searchResult{Platform: pf, ID: r.ID, Name: r.DisplayName, Author: r.Author(), Summary: r.Summary(), Downloads: r.Downloads()}
			if t := r.Updated(); !t.IsZero() {
				res.Updated = &t
			}
			out = append(out, res)
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAUTHOR\tDOWNLOADS\tUPDATED")
	for _, r := range rows {
		updated := "-"
		if t := r.Updated(); !t.IsZero() {
			updated = humanize.Time(t)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, truncate(r.DisplayName, 40), r.Author(), humanize.Comma(r.Downloads()), updated)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if st.HasNextPage || st.Rows > len(rows) {
		fmt.Fprintf(cmd.OutOrStdout(), "\nShowing the first %d results from %s, raise --limit for more.\n", len(rows), pf)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
