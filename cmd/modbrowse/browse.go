package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/query"
	"github.com/jxwalker/modbrowse/internal/tui"
)

func newBrowseCmd(g *globals) *cobra.Command {
	var resultType, platform, instance string
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Open the interactive browser",
		Long: `Open the full-screen browser.

Logs go to logging.file while the browser is open; without one they are dropped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := g.open(true)
			if err != nil {
				return err
			}
			defer s.Close()

			var route tui.Route
			if resultType != "" {
				if route.ResultType, err = modplatform.ParseResultType(resultType); err != nil {
					return err
				}
			}
			if platform != "" {
				pf, err := modplatform.ParsePlatform(platform)
				if err != nil {
					return err
				}
				s.cfg.Browse.DefaultPlatform = string(pf)
			}
			var seed *query.Seed
			if instance != "" {
				inst, err := resolveInstance(s.cfg, instance)
				if err != nil {
					return err
				}
				seed = inst.Seed()
				route.InstanceID = inst.ID
				s.log.Infof("browsing for instance %s (mc %s)", inst.Name, inst.GameVersion)
			}

			m, err := tui.New(route, tui.Deps{
				Config:   s.cfg,
				Registry: s.registry,
				Catalog:  s.catalog,
				Seed:     seed,
				Log:      s.log,
				Metrics:  s.metrics,
			})
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVarP(&resultType, "type", "t", "", "Result type: mod|modpack")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform: curseforge|modrinth")
	cmd.Flags().StringVar(&instance, "instance", "", "Seed version and loaders from a saved instance (name or id)")
	return cmd
}
