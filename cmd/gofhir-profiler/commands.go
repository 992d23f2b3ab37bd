package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gofhir/profiler/pkg/bridge"
	"github.com/gofhir/profiler/pkg/editor"
	"github.com/gofhir/profiler/pkg/export"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/preserve"
	"github.com/gofhir/profiler/pkg/store"
	"github.com/gofhir/profiler/pkg/tree"
	"github.com/gofhir/profiler/pkg/worker"
)

func (a *app) importCmd() *cobra.Command {
	var format, report string
	cmd := &cobra.Command{
		Use:   "import <structure-definition>",
		Short: "Import a StructureDefinition into a stored profile document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ed, err := a.editor(cmd.Context())
			if err != nil {
				return err
			}
			resource, res, err := ed.Import(data)
			if rerr := printIssues(cmd.ErrOrStderr(), report, args[0], res); rerr != nil {
				return rerr
			}
			if err != nil {
				return err
			}

			f, err := a.storeFormat(format)
			if err != nil {
				return err
			}
			out, err := store.Encode(resource, f)
			if err != nil {
				return err
			}
			return a.writeOutput(cmd, out)
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "document format: json or yaml (default by -o extension, else yaml)")
	cmd.Flags().StringVar(&report, "issues", "text", "issue report format: text or json")
	return cmd
}

func (a *app) storeFormat(name string) (store.Format, error) {
	switch strings.ToLower(name) {
	case "json":
		return store.JSON, nil
	case "yaml", "yml":
		return store.YAML, nil
	case "":
		if a.output == "" {
			return store.YAML, nil
		}
		return store.FormatFor(a.output), nil
	}
	return store.JSON, fmt.Errorf("unknown format %q (want json or yaml)", name)
}

func (a *app) exportCmd() *cobra.Command {
	var report string
	var stats bool
	cmd := &cobra.Command{
		Use:   "export <file>...",
		Short: "Export profiles as canonical StructureDefinition JSON",
		Long: `Export reads StructureDefinitions or stored profile documents and writes
canonical StructureDefinition JSON. A StructureDefinition keeps the content
the engine does not model.

With several inputs, -o names a directory that receives one <name>.json per
input; without -o the documents are written to stdout in input order.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ed, err := a.editor(cmd.Context())
			if err != nil {
				return err
			}
			if stats {
				defer printStats(cmd.ErrOrStderr(), ed)
			}
			opts := exportOptions(cmd, a.cfg.ExportOptions())
			if len(args) == 1 {
				return a.exportOne(cmd, ed, args[0], report, opts)
			}
			return a.exportMany(cmd, ed, args, report, opts)
		},
	}
	addExportFlags(cmd)
	cmd.Flags().StringVar(&report, "issues", "text", "issue report format: text or json")
	cmd.Flags().BoolVar(&stats, "stats", false, "print operation and cache statistics to stderr")
	return cmd
}

func (a *app) exportOne(cmd *cobra.Command, ed *editor.Editor, name, report string, opts []export.Option) error {
	data, err := readInput(cmd, name)
	if err != nil {
		return err
	}
	out, res, err := ed.ExportDocument(cmd.Context(), data, opts...)
	if rerr := printIssues(cmd.ErrOrStderr(), report, name, res); rerr != nil {
		return rerr
	}
	if err != nil {
		return err
	}
	return a.writeOutput(cmd, out)
}

func (a *app) exportMany(cmd *cobra.Command, ed *editor.Editor, names []string, report string, opts []export.Option) error {
	jobs := make([]worker.Job, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		jobs = append(jobs, worker.Job{ID: name, Document: data})
	}
	if a.output != "" {
		if err := os.MkdirAll(a.output, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	br := ed.ExportBatch(cmd.Context(), jobs, opts...)
	for _, r := range br.Results {
		if err := printIssues(cmd.ErrOrStderr(), report, r.ID, r.Issues); err != nil {
			return err
		}
		if r.Error != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", r.ID, r.Error)
			continue
		}
		if r.Skipped {
			continue
		}
		if a.output == "" {
			if err := writeTerminated(cmd.OutOrStdout(), r.Output); err != nil {
				return err
			}
			continue
		}
		path := filepath.Join(a.output, outputName(r.ID))
		if err := os.WriteFile(path, r.Output, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}

	if br.FailedJobs > 0 {
		return fmt.Errorf("%d of %d exports failed", br.FailedJobs, br.TotalJobs)
	}
	return nil
}

func outputName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".json"
}

func addExportFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("no-snapshot", false, "omit the snapshot")
	f.Bool("no-differential", false, "omit the differential")
	f.Bool("compact", false, "write compact JSON")
	f.Bool("no-validate", false, "skip the profile rules")
	f.Bool("strict", false, "treat rule warnings as errors")
	f.Bool("force", false, "export even when the profile rules report errors")
}

// exportOptions appends the flags set on cmd to the configured options.
func exportOptions(cmd *cobra.Command, opts []export.Option) []export.Option {
	f := cmd.Flags()
	flag := func(name string) (bool, bool) {
		if !f.Changed(name) {
			return false, false
		}
		v, _ := f.GetBool(name)
		return v, true
	}
	if v, ok := flag("no-snapshot"); ok {
		opts = append(opts, export.WithSnapshot(!v))
	}
	if v, ok := flag("no-differential"); ok {
		opts = append(opts, export.WithDifferential(!v))
	}
	if v, ok := flag("compact"); ok {
		opts = append(opts, export.WithPretty(!v))
	}
	if v, ok := flag("no-validate"); ok {
		opts = append(opts, export.WithValidation(!v))
	}
	if v, ok := flag("strict"); ok {
		opts = append(opts, export.WithStrict(v))
	}
	if v, ok := flag("force"); ok {
		opts = append(opts, export.WithForce(v))
	}
	return opts
}

func (a *app) mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <file>",
		Short: "Merge a profile onto its base and print the element tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ed, err := a.editor(cmd.Context())
			if err != nil {
				return err
			}
			resource, res, err := openProfile(cmd.Context(), ed, data)
			if rerr := printIssues(cmd.ErrOrStderr(), "text", args[0], res); rerr != nil {
				return rerr
			}
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), resource.Root)
		},
	}
}

// openProfile decodes a StructureDefinition or stored profile and merges it onto its
// base. An imported tree is kept when the base cannot be resolved.
func openProfile(ctx context.Context, ed *editor.Editor, data []byte) (*tree.ProfiledResource, *issue.Result, error) {
	res := issue.NewSourceResult("merge")
	var resource *tree.ProfiledResource
	if store.Detect(data) == store.JSON && strings.Contains(string(data), `"resourceType"`) {
		imported, ires, err := ed.Import(data)
		res.Merge(ires)
		if err != nil {
			return nil, res, err
		}
		resource = imported
	} else {
		decoded, err := store.Decode(data)
		if err != nil {
			return nil, res, err
		}
		resource = decoded
	}
	if resource.Base.URL == "" {
		return resource, res, nil
	}

	imported := resource.Root
	mres, err := ed.Open(ctx, resource)
	res.Merge(mres)
	if err != nil {
		if imported == nil || !errors.Is(err, bridge.ErrNotFound) && !errors.Is(err, bridge.ErrUnavailable) {
			return nil, res, err
		}
		res.AddWarning(issue.CodeIncomplete, fmt.Sprintf("base %s not resolved: showing the imported tree", resource.Base.URL))
		resource.Root = imported
	}
	return resource, res, nil
}

func printTree(w io.Writer, root *tree.ElementNode) error {
	if root == nil {
		return errors.New("profile has no element tree")
	}
	var err error
	tree.Walk(root, func(n *tree.ElementNode, slice *tree.SliceNode) {
		if err != nil {
			return
		}
		depth := strings.Count(tree.StripSlices(n.Path), ".")
		label := tree.LastSegment(n.Path)
		if slice != nil {
			label = ":" + slice.Name
		}
		_, err = fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat("  ", depth), label, cardinality(n.Constraints), marker(n.Source))
	})
	return err
}

func cardinality(c tree.Constraints) string {
	lo, hi := "?", "?"
	if c.Min != nil {
		lo = fmt.Sprint(*c.Min)
	}
	if c.Max != nil {
		hi = c.Max.String()
	}
	return lo + ".." + hi
}

func marker(s tree.Source) string {
	if s == tree.Inherited {
		return ""
	}
	return " [" + s.String() + "]"
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <original> [<exported>]",
		Short: "Print the merge patch between a StructureDefinition and its export",
		Long: `Diff prints the JSON merge patch (RFC 7386) that turns the original document
into the exported one. With a single argument the original is exported first;
an empty object means the export reproduces it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			original, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var exported []byte
			if len(args) == 2 {
				if exported, err = readInput(cmd, args[1]); err != nil {
					return err
				}
			} else {
				ed, err := a.editor(cmd.Context())
				if err != nil {
					return err
				}
				out, res, err := ed.ExportDocument(cmd.Context(), original, a.cfg.ExportOptions()...)
				if rerr := printIssues(cmd.ErrOrStderr(), "text", args[0], res); rerr != nil {
					return rerr
				}
				if err != nil {
					return err
				}
				exported = out
			}
			patch, err := preserve.Drift(original, exported)
			if err != nil {
				return err
			}
			return a.writeOutput(cmd, patch)
		},
	}
}

func (a *app) translateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate <file>",
		Short: "Export a profile and print it as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			ed, err := a.editor(cmd.Context())
			if err != nil {
				return err
			}
			opts := exportOptions(cmd, a.cfg.ExportOptions())
			canonical, res, err := ed.ExportDocument(cmd.Context(), data, opts...)
			if rerr := printIssues(cmd.ErrOrStderr(), "text", args[0], res); rerr != nil {
				return rerr
			}
			if err != nil {
				return err
			}
			out, err := ed.Bridge().Translate(cmd.Context(), canonical)
			if err != nil {
				return err
			}
			return a.writeOutput(cmd, out)
		},
	}
	addExportFlags(cmd)
	return cmd
}
