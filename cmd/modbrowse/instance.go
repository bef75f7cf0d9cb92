package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	friendlyerrors "github.com/jxwalker/modbrowse/internal/errors"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/state"
)

func newInstanceCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instance",
		Aliases: []string{"instances"},
		Short:   "Manage the instances that seed browse filters",
	}
	cmd.AddCommand(newInstanceAddCmd(g), newInstanceListCmd(g), newInstanceRemoveCmd(g), newInstanceCheckCmd(g))
	return cmd
}

// withState opens the instances database for one command.
func (g *globals) withState(fn func(st *state.DB) error) error {
	c, err := g.loadConfig()
	if err != nil {
		return err
	}
	st, err := state.Open(c)
	if err != nil {
		return friendlyerrors.DatabaseError(err)
	}
	defer func() { _ = st.Close() }()
	return fn(st)
}

func newInstanceAddCmd(g *globals) *cobra.Command {
	var inst state.Instance
	var loaders []string
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Save an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inst.Name = args[0]
			for _, l := range loaders {
				inst.ModLoaders = append(inst.ModLoaders, modplatform.ModLoader(strings.ToLower(strings.TrimSpace(l))))
			}
			return g.withState(func(st *state.DB) error {
				added, err := st.AddInstance(inst)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added instance %d: %s\n", added.ID, added.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inst.GameVersion, "game-version", "", "Minecraft version, e.g. 1.20.1")
	cmd.Flags().StringSliceVar(&loaders, "loader", nil, "Mod loader (repeatable)")
	cmd.Flags().StringVar(&inst.Path, "path", "", "Instance directory")
	return cmd
}

func newInstanceListCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withState(func(st *state.DB) error {
				list, err := st.ListInstances()
				if err != nil {
					return err
				}
				if g.jsonLogs {
					return printJSON(cmd.OutOrStdout(), list)
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tVERSION\tLOADERS\tADDED")
				for _, i := range list {
					ls := make([]string, len(i.ModLoaders))
					for j, l := range i.ModLoaders {
						ls[j] = string(l)
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i.ID, i.Name, i.GameVersion, strings.Join(ls, ","), humanize.Time(i.CreatedAt))
				}
				return tw.Flush()
			})
		},
	}
}

func newInstanceRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:     "remove NAME|ID",
		Aliases: []string{"rm"},
		Short:   "Remove a saved instance",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withState(func(st *state.DB) error {
				inst, err := lookupInstance(st, args[0])
				if errors.Is(err, state.ErrNotFound) {
					return fmt.Errorf("no instance named %q", args[0])
				}
				if err != nil {
					return err
				}
				if err := st.RemoveInstance(inst.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed instance %s\n", inst.Name)
				return nil
			})
		},
	}
}

func newInstanceCheckCmd(g *globals) *cobra.Command {
	var backup string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the instances database and optionally back it up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withState(func(st *state.DB) error {
				if err := st.CheckIntegrity(); err != nil {
					return friendlyerrors.DatabaseError(err)
				}
				stats, err := st.GetStats()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database ok: %d instances, %s (%s)\n",
					stats.Instances, humanize.Bytes(uint64(stats.SizeBytes)), st.Path)
				if backup == "" {
					return nil
				}
				if err := st.Backup(backup); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s\n", backup)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&backup, "backup", "", "Also copy the database to this path")
	return cmd
}
