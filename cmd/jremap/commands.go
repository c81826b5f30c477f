package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/jremap/internal/cache"
	"github.com/standardbeagle/jremap/internal/config"
	jerrors "github.com/standardbeagle/jremap/internal/errors"
	"github.com/standardbeagle/jremap/internal/mapping"
	"github.com/standardbeagle/jremap/internal/pipeline"
	"github.com/standardbeagle/jremap/pkg/pathutil"
)

// treeFlags are shared by the commands that edit an existing mapping file
func treeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Compiled archive the mappings are checked against"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Where to write the result (default: overwrite the mappings)"},
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: tiny2, tsrg2"},
	}
}

// setPath overrides a configured path with a flag value, made absolute
// because flags are relative to the working directory, not the project root
func setPath(c *cli.Context, flag string, target *string) {
	if !c.IsSet(flag) {
		return
	}
	*target = absPath(c.String(flag))
}

func setString(c *cli.Context, flag string, target *string) {
	if c.IsSet(flag) {
		*target = c.String(flag)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func mergeCommand(c *cli.Context) error {
	cfg, err := validated(c, func(cfg *config.Config) {
		setPath(c, "base", &cfg.Mappings.Base)
		setPath(c, "new", &cfg.Mappings.New)
		setPath(c, "fallback", &cfg.Mappings.Fallback)
		setString(c, "fallback-key", &cfg.Mappings.FallbackKey)
		setPath(c, "output", &cfg.Mappings.Output)
		setString(c, "format", &cfg.Mappings.OutputFormat)
		if c.IsSet("lenient") {
			cfg.Merge.Lenient = c.Bool("lenient")
		}
	})
	if err != nil {
		return err
	}
	if cfg.Mappings.Output == "" {
		return jerrors.NewConfigError("mappings.output", "", errors.New("an output file is required"))
	}

	res, err := pipeline.MergeMappings(cfg)
	if err != nil {
		return err
	}
	if err := pipeline.WriteMappings(cfg, res.Tree); err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Merged %d classes (%s) into %s\n",
		res.Tree.ClassCount(), res.Tree.Namespaces(), pathutil.ToRelative(cfg.Path(cfg.Mappings.Output), cfg.Project.Root))
	if res.Filled > 0 {
		fmt.Fprintf(w, "Filled %d missing base names with source names\n", res.Filled)
	}
	for _, g := range res.Groups {
		fmt.Fprintf(w, "Conflict %s%s: %s\n", g.Name, g.Desc, g.Resolution)
	}
	for _, ref := range res.Dropped {
		fmt.Fprintf(w, "Dropped %s\n", ref)
	}
	for _, ref := range res.Omitted {
		fmt.Fprintf(w, "Omitted %s\n", ref)
	}
	return nil
}

// treeCommand loads a mapping file and the compiled classes, lets edit
// change the tree and writes it back
func treeCommand(c *cli.Context, edit func(cfg *config.Config, tree *mapping.Tree, store cache.Store) (string, error)) error {
	cfg, err := validated(c, func(cfg *config.Config) {
		if c.Args().Present() {
			cfg.Mappings.Output = absPath(c.Args().First())
		}
		setPath(c, "input", &cfg.Archive.Input)
		setString(c, "format", &cfg.Mappings.OutputFormat)
	})
	if err != nil {
		return err
	}
	if cfg.Mappings.Output == "" {
		return jerrors.NewConfigError("mappings.output", "", errors.New("no mapping file given"))
	}

	tree, err := pipeline.ReadMappings(cfg.Path(cfg.Mappings.Output), nil)
	if err != nil {
		return err
	}
	store, err := pipeline.OpenCache(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	summary, err := edit(cfg, tree, store)
	if err != nil {
		return err
	}

	setPath(c, "output", &cfg.Mappings.Output)
	if err := pipeline.WriteMappings(cfg, tree); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s; wrote %s\n", summary, pathutil.ToRelative(cfg.Path(cfg.Mappings.Output), cfg.Project.Root))
	return nil
}

func migrateFieldsCommand(c *cli.Context) error {
	return treeCommand(c, func(cfg *config.Config, tree *mapping.Tree, store cache.Store) (string, error) {
		classes, err := pipeline.ReadClasses(cfg)
		if err != nil {
			return "", err
		}
		res, err := pipeline.MigrateFields(c.Context, cfg, tree, classes, store)
		if err != nil {
			return "", err
		}
		for _, m := range res.Migrations {
			fmt.Fprintf(c.App.Writer, "%s.%s: %s -> %s\n", m.Class, m.Field, m.OldDesc, m.NewDesc)
		}
		return fmt.Sprintf("Migrated %d field descriptors", res.Len()), nil
	})
}

func stripInheritedCommand(c *cli.Context) error {
	return treeCommand(c, func(cfg *config.Config, tree *mapping.Tree, store cache.Store) (string, error) {
		classes, err := pipeline.ReadClasses(cfg)
		if err != nil {
			return "", err
		}
		removed, err := pipeline.StripInherited(c.Context, cfg, tree, classes, store)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Stripped %d inherited methods", len(removed)), nil
	})
}

func remapCommand(c *cli.Context) error {
	cfg, err := validated(c, func(cfg *config.Config) {
		if c.Args().Present() {
			cfg.Mappings.Output = absPath(c.Args().First())
		}
		setPath(c, "input", &cfg.Archive.Input)
		setPath(c, "output", &cfg.Archive.Output)
		setString(c, "from", &cfg.Remap.From)
		setString(c, "to", &cfg.Remap.To)
		for _, p := range c.StringSlice("classpath") {
			cfg.Archive.Classpath = append(cfg.Archive.Classpath, absPath(p))
		}
		if c.IsSet("strings") {
			cfg.Remap.Strings = c.Bool("strings")
		}
		if c.IsSet("rebuild-source-file") {
			cfg.Remap.RebuildSourceFile = c.Bool("rebuild-source-file")
		}
	})
	if err != nil {
		return err
	}
	switch {
	case cfg.Mappings.Output == "":
		return jerrors.NewConfigError("mappings.output", "", errors.New("no mapping file given"))
	case cfg.Archive.Input == "":
		return jerrors.NewConfigError("archive.input", "", errors.New("no archive to remap"))
	case cfg.Archive.Output == "":
		return jerrors.NewConfigError("archive.output", "", errors.New("no output archive given"))
	}

	tree, err := pipeline.ReadMappings(cfg.Path(cfg.Mappings.Output), nil)
	if err != nil {
		return err
	}
	out := cfg.Path(cfg.Archive.Output)
	stats, err := pipeline.RemapArchive(c.Context, cfg, tree, cfg.Path(cfg.Archive.Input), out)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "Remapped %d classes from %s to %s (%d renamed, %d strings, %d split constants) into %s\n",
		stats.Classes, cfg.Remap.From, cfg.Remap.To, stats.Renamed, stats.Strings, stats.Splits, pathutil.ToRelative(out, cfg.Project.Root))
	if len(cfg.Archive.Classpath) > 0 {
		fmt.Fprintf(w, "Classpath: %s\n", strings.Join(pathutil.ToRelativeAll(cfg.Paths(cfg.Archive.Classpath), cfg.Project.Root), ", "))
	}
	return nil
}

func runCommand(c *cli.Context) error {
	cfg, err := validated(c)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(c.Context, cfg)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Merged %d classes (%s)\n", res.Tree().ClassCount(), res.Tree().Namespaces())
	if res.Fields != nil {
		fmt.Fprintf(w, "Migrated %d field descriptors\n", res.Fields.Len())
	}
	if len(res.Stripped) > 0 {
		fmt.Fprintf(w, "Stripped %d inherited methods\n", len(res.Stripped))
	}
	if res.MappingsOut != "" {
		fmt.Fprintf(w, "Wrote %s\n", pathutil.ToRelative(res.MappingsOut, cfg.Project.Root))
	}
	if res.Remap != nil {
		fmt.Fprintf(w, "Remapped %d classes into %s\n", res.Remap.Classes, pathutil.ToRelative(res.ArchiveOut, cfg.Project.Root))
	}
	return nil
}

func inspectCommand(c *cli.Context) error {
	if !c.Args().Present() {
		return cli.Exit("inspect needs a mapping file", 2)
	}
	ns := c.StringSlice("namespaces")
	if len(ns) != 0 && len(ns) != 2 {
		return cli.Exit("--namespaces takes a source and a destination", 2)
	}
	tree, err := pipeline.ReadMappings(c.Args().First(), ns)
	if err != nil {
		return err
	}
	s := pipeline.Summarize(tree)

	w := c.App.Writer
	fmt.Fprintf(w, "Namespaces:  %s\n", strings.Join(s.Namespaces, ", "))
	fmt.Fprintf(w, "Classes:     %d\n", s.Classes)
	fmt.Fprintf(w, "Fields:      %d\n", s.Fields)
	fmt.Fprintf(w, "Methods:     %d\n", s.Methods)
	fmt.Fprintf(w, "Arguments:   %d\n", s.Args)
	fmt.Fprintf(w, "Comments:    %d\n", s.Comments)
	fmt.Fprintf(w, "Fingerprint: %s\n", s.Fingerprint)
	return nil
}
