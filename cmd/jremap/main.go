package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/standardbeagle/jremap/internal/config"
	"github.com/standardbeagle/jremap/internal/debug"
	"github.com/standardbeagle/jremap/internal/version"

	"github.com/urfave/cli/v2"
)

// loadConfigWithOverrides loads configuration and applies global flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	cfg, err := config.LoadWithRoot(configPath, c.String("root"))
	if err != nil {
		if configPath == "" {
			configPath = "project configuration"
		}
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}
	if c.IsSet("workers") {
		cfg.Performance.Workers = c.Int("workers")
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if c.Bool("force-refresh") {
		cfg.Cache.ForceRefresh = true
	}
	return cfg, nil
}

// validated applies subcommand overrides and then validates
func validated(c *cli.Context, overrides ...func(*config.Config)) (*config.Config, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "jremap",
		Usage:                  "Merge JVM mapping sets and remap compiled classes between namespaces",
		Version:                version.FullInfo(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (.kdl or .toml; default: .jremap.kdl or .jremap.toml in the root)",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root that relative paths resolve against (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "json-log",
				Usage: "Log as JSON lines",
			},
			&cli.BoolFlag{
				Name:  "log-file",
				Usage: "Write logs to a timestamped file in the temp directory instead of stderr",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker count for class scans (0 = number of CPUs)",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the migration cache",
			},
			&cli.BoolFlag{
				Name:  "force-refresh",
				Usage: "Recompute migrations even when cached results exist",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Scan only archive entries matching glob patterns (e.g., --include 'net/**')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Skip archive entries matching glob patterns (e.g., --exclude 'META-INF/**')",
			},
		},
		Before: func(c *cli.Context) error {
			debug.SetVerbose(c.Bool("verbose"))
			debug.SetJSON(c.Bool("json-log"))
			if c.Bool("log-file") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "Logging to %s\n", path)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			{
				Name:  "merge",
				Usage: "Merge a mapping set with a new namespace into the base mappings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "base", Usage: "Base mapping file (official -> intermediary, named)"},
					&cli.StringFlag{Name: "new", Usage: "Mapping file carrying the new namespace"},
					&cli.StringFlag{Name: "fallback", Usage: "Mapping file consulted for members missing from the new set"},
					&cli.StringFlag{Name: "fallback-key", Usage: "Re-key the fallback by this namespace before merging"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Merged mapping file"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: tiny2, tsrg2"},
					&cli.BoolFlag{Name: "lenient", Usage: "Fill missing base entries instead of failing"},
				},
				Action: mergeCommand,
			},
			{
				Name:      "migrate-fields",
				Usage:     "Update field descriptors that changed in the compiled archive",
				ArgsUsage: "[mappings]",
				Flags:     treeFlags(),
				Action:    migrateFieldsCommand,
			},
			{
				Name:      "strip-inherited",
				Usage:     "Remove methods whose intermediate names conflict through an unmapped super-method",
				ArgsUsage: "[mappings]",
				Flags:     treeFlags(),
				Action:    stripInheritedCommand,
			},
			{
				Name:      "remap",
				Usage:     "Rewrite a compiled archive into another namespace",
				ArgsUsage: "[mappings]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Compiled archive to rewrite"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Rewritten archive (may equal the input)"},
					&cli.StringFlag{Name: "from", Usage: "Namespace the archive is named in"},
					&cli.StringFlag{Name: "to", Usage: "Namespace to rewrite into"},
					&cli.StringSliceFlag{Name: "classpath", Aliases: []string{"cp"}, Usage: "Library archives used for hierarchy lookups"},
					&cli.BoolFlag{Name: "strings", Usage: "Rewrite string literals naming mapped classes"},
					&cli.BoolFlag{Name: "rebuild-source-file", Usage: "Rename SourceFile attributes after renamed classes"},
				},
				Action: remapCommand,
			},
			{
				Name:   "run",
				Usage:  "Merge, migrate, write the merged mappings and remap the archive as configured",
				Action: runCommand,
			},
			{
				Name:      "inspect",
				Usage:     "Show the namespaces and element counts of a mapping file",
				ArgsUsage: "<mappings>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "namespaces", Usage: "Source and destination of a headerless file"},
				},
				Action: inspectCommand,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
