package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jxwalker/modbrowse/internal/config"
	"github.com/jxwalker/modbrowse/internal/httpx"
	"github.com/jxwalker/modbrowse/internal/logging"
	"github.com/jxwalker/modbrowse/internal/metrics"
	"github.com/jxwalker/modbrowse/internal/modplatform"
	"github.com/jxwalker/modbrowse/internal/modplatform/curseforge"
	"github.com/jxwalker/modbrowse/internal/modplatform/modrinth"
	"github.com/jxwalker/modbrowse/internal/state"
)

// globals are the persistent flags shared by every command.
type globals struct {
	cfgPath  string
	logLevel string
	jsonLogs bool
}

// session is what a command needs after startup: the loaded config, a logger tagged with
// a per-run id and the adapters of the enabled platforms.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *modplatform.Registry
	catalog  *modplatform.Catalog
	metrics  *metrics.Manager
	closeLog func()
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "modbrowse",
		Short: "Browse Minecraft mods and modpacks on CurseForge and Modrinth",
		Long: `modbrowse - browse Minecraft mods and modpacks

Results from CurseForge (offset pages) and Modrinth (bulk listings) are merged
into one endlessly scrolling list. Point a browse at a local instance to
pre-filter by its game version and mod loader.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			httpx.Version = version
		},
	}
	root.PersistentFlags().StringVarP(&g.cfgPath, "config", "c", "", "Path to YAML config file (or MODBROWSE_CONFIG; default: ~/.config/modbrowse/config.yml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides logging.level)")
	root.PersistentFlags().BoolVar(&g.jsonLogs, "json", false, "JSON output")

	root.AddCommand(
		newBrowseCmd(g),
		newSearchCmd(g),
		newVersionsCmd(g),
		newCategoriesCmd(g),
		newConfigCmd(g),
		newInstanceCmd(g),
		newVersionCmd(),
	)
	return root
}

func (g *globals) loadConfig() (*config.Config, error) {
	p := g.cfgPath
	if p == "" {
		p = config.DefaultPath()
	}
	if g.cfgPath != "" {
		return config.Load(p)
	}
	return config.LoadOrDefault(p)
}

// logger writes to stderr, or to logging.file for the full-screen browser.
func (g *globals) logger(cfg *config.Config, toFile bool) (*logging.Logger, func(), error) {
	level := cfg.Logging.Level
	if g.logLevel != "" {
		level = g.logLevel
	}
	jsonOut := g.jsonLogs || cfg.Logging.Format == "json"
	closeFn := func() {}
	var log *logging.Logger
	switch {
	case toFile && cfg.Logging.File == "":
		log = logging.Discard()
	case toFile:
		if err := config.EnsureDir(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		log = logging.NewWriter(level, jsonOut, f)
		closeFn = func() { _ = f.Close() }
	default:
		log = logging.NewWriter(level, jsonOut, os.Stderr)
	}
	return log.With("session", uuid.NewString()), closeFn, nil
}

func (g *globals) open(toFile bool) (*session, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	log, closeLog, err := g.logger(cfg, toFile)
	if err != nil {
		return nil, err
	}
	hc := httpx.NewClient(cfg, log)
	ua := httpx.UserAgent(cfg)
	reg := modplatform.NewRegistry()
	if cfg.Sources.CurseForge.Enabled {
		reg.Register(curseforge.NewFromConfig(cfg, hc, ua, log))
	}
	if cfg.Sources.Modrinth.Enabled {
		reg.Register(modrinth.NewFromConfig(cfg, hc, ua, log))
	}
	log.Debugf("platforms: %v", reg.Platforms())
	return &session{
		cfg:      cfg,
		log:      log,
		registry: reg,
		catalog:  modplatform.NewCatalog(),
		metrics:  metrics.New(cfg),
		closeLog: closeLog,
	}, nil
}

func (s *session) Close() {
	if err := s.metrics.Write(); err != nil {
		s.log.Warnf("metrics: %v", err)
	}
	s.closeLog()
}

// resolveInstance looks up an instance by name, or by id when ref is numeric.
func resolveInstance(cfg *config.Config, ref string) (state.Instance, error) {
	st, err := state.Open(cfg)
	if err != nil {
		return state.Instance{}, err
	}
	defer func() { _ = st.Close() }()
	return lookupInstance(st, ref)
}

func lookupInstance(st *state.DB, ref string) (state.Instance, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return st.GetInstance(id)
	}
	return st.GetInstanceByName(ref)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
