package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/standardbeagle/jremap/internal/debug"
)

// LoadKDL loads .jremap.kdl from projectRoot; nil without error when absent
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

func parseKDL(content string) (*Config, error) {
	cfg := Default()
	cfg.Project.Root = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "project":
			for _, cn := range n.Children { // project { root "." name "client" }
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "mappings":
			for _, cn := range n.Children {
				assignSimpleString(cn, "base", func(v string) { cfg.Mappings.Base = v })
				assignSimpleString(cn, "new", func(v string) { cfg.Mappings.New = v })
				assignSimpleString(cn, "fallback", func(v string) { cfg.Mappings.Fallback = v })
				assignSimpleString(cn, "fallback_key", func(v string) { cfg.Mappings.FallbackKey = v })
				assignSimpleString(cn, "output", func(v string) { cfg.Mappings.Output = v })
				assignSimpleString(cn, "output_format", func(v string) { cfg.Mappings.OutputFormat = v })
				switch nodeName(cn) {
				case "new_namespaces":
					cfg.Mappings.NewNamespaces = collectStringArgs(cn)
				case "fallback_namespaces":
					cfg.Mappings.FallbackNamespaces = collectStringArgs(cn)
				}
			}
		case "merge":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "lenient":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Merge.Lenient = b
					}
				case "base_namespaces":
					cfg.Merge.BaseNamespaces = collectStringArgs(cn)
				case "human_namespace":
					if s, ok := firstStringArg(cn); ok {
						cfg.Merge.HumanNamespace = s
					}
				}
			}
		case "migrate":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "fields":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Migrate.Fields = b
					}
				case "strip_inherited":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Migrate.StripInherited = b
					}
				case "compiled_namespace":
					if s, ok := firstStringArg(cn); ok {
						cfg.Migrate.CompiledNamespace = s
					}
				case "intermediate_namespace":
					if s, ok := firstStringArg(cn); ok {
						cfg.Migrate.IntermediateNamespace = s
					}
				}
			}
		case "archive":
			for _, cn := range n.Children {
				assignSimpleString(cn, "input", func(v string) { cfg.Archive.Input = v })
				assignSimpleString(cn, "output", func(v string) { cfg.Archive.Output = v })
				if nodeName(cn) == "classpath" {
					cfg.Archive.Classpath = append(cfg.Archive.Classpath, collectStringArgs(cn)...)
				}
			}
		case "remap":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "from":
					if s, ok := firstStringArg(cn); ok {
						cfg.Remap.From = s
					}
				case "to":
					if s, ok := firstStringArg(cn); ok {
						cfg.Remap.To = s
					}
				case "strings":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Remap.Strings = b
					}
				case "rebuild_source_file":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Remap.RebuildSourceFile = b
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.Enabled = b
					}
				case "dir":
					if s, ok := firstStringArg(cn); ok {
						cfg.Cache.Dir = s
					}
				case "in_memory":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.InMemory = b
					}
				case "force_refresh":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Cache.ForceRefresh = b
					}
				case "max_entries":
					if v, ok := firstIntArg(cn); ok {
						cfg.Cache.MaxEntries = v
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				if nodeName(cn) == "workers" {
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Workers = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		default:
			debug.Log("CONFIG", "ignoring unknown node %q", nodeName(n))
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return parseBool(s), true
	}
	return false, false
}

// collectStringArgs reads inline arguments (exclude "a" "b") or, failing
// that, a block where every child node names one value (exclude { "a" })
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}
