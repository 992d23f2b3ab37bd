// Package main implements the gofhir-profiler CLI tool.
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
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gofhir/profiler/pkg/bridge"
	"github.com/gofhir/profiler/pkg/config"
	"github.com/gofhir/profiler/pkg/editor"
	"github.com/gofhir/profiler/pkg/loader"
	"github.com/gofhir/profiler/pkg/logger"
	"github.com/gofhir/profiler/pkg/registry"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by the subcommands of one invocation.
type app struct {
	v         *viper.Viper
	cfgFile   string
	baseFiles []string
	output    string
	cfg       *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}
	var bindErr error

	root := &cobra.Command{
		Use:   "gofhir-profiler",
		Short: "Edit, merge and export FHIR StructureDefinition profiles",
		Long: `gofhir-profiler imports FHIR StructureDefinitions into an editable element
tree, merges differentials onto their base definitions and exports canonical
StructureDefinition JSON with snapshot and differential.

Base definitions come from FHIR packages (name#version from the package cache,
or .tgz files) and from StructureDefinition files given with --base.`,
		Example: `  gofhir-profiler export profile.json
  gofhir-profiler export --base patient.json --no-snapshot profile.json
  gofhir-profiler import -o profile.yaml profile.json
  gofhir-profiler export -o out/ profiles/*.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if bindErr != nil {
				return bindErr
			}
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default .gofhir-profiler.{yaml,json} if present)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error, none")
	pf.StringSlice("package", nil, "FHIR package name#version or .tgz file (repeatable)")
	pf.String("package-path", loader.DefaultPackagePath(), "FHIR package cache directory")
	pf.Bool("fetch", false, "download packages missing from the cache")
	pf.String("fhir-version", "4.0.1", "FHIR version: R4, R4B, R5 or a version number")
	pf.Int("workers", 0, "parallel exports (0 = number of CPUs)")
	pf.StringSliceVar(&a.baseFiles, "base", nil, "StructureDefinition file used as a base definition (repeatable)")
	pf.StringVarP(&a.output, "output", "o", "", "output file or directory (default stdout)")

	bindings := map[string]string{
		"log_level":    "log-level",
		"packages":     "package",
		"package_path": "package-path",
		"fetch":        "fetch",
		"fhir_version": "fhir-version",
		"workers":      "workers",
	}
	bindErr = bindFlags(a.v, pf, bindings)

	root.AddCommand(
		a.importCmd(),
		a.exportCmd(),
		a.mergeCmd(),
		a.diffCmd(),
		a.translateCmd(),
		versionCmd(),
	)
	return root
}

// bindFlags binds each config key to the flag of the given name.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("bind %s: flag --%s not defined", key, name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(cfg.Level())
	return nil
}

// editor builds the registry of base definitions and an editor resolving
// through it. Packages that cannot be loaded are reported and skipped.
func (a *app) editor(ctx context.Context) (*editor.Editor, error) {
	reg := registry.New()
	l := loader.NewLoader(a.cfg.PackagePath, loader.WithRegistryURL(a.cfg.RegistryURL))

	for _, spec := range a.cfg.Packages {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		pkg, err := a.loadPackage(ctx, l, spec)
		if err != nil {
			logger.Warn("skipping package %s: %v", spec, err)
			continue
		}
		if err := reg.LoadFromPackages(pkg); err != nil {
			return nil, err
		}
		logger.Info("loaded %s (%d definitions)", pkg.Ref(), len(pkg.Definitions))
	}

	for _, file := range a.baseFiles {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read base: %w", err)
		}
		if _, err := reg.Add(data, filepath.Base(file)); err != nil {
			return nil, fmt.Errorf("base %s: %w", file, err)
		}
	}
	logger.Debug("registry holds %d definitions", reg.Count())

	return editor.New(
		editor.WithBridge(&bridge.Context{FHIRVersion: a.cfg.FHIRVersion}),
		editor.WithResolver(reg),
		editor.WithWorkers(a.cfg.Workers),
		editor.WithCacheSize(a.cfg.CacheSize),
	), nil
}

func (a *app) loadPackage(ctx context.Context, l *loader.Loader, spec string) (*loader.Package, error) {
	if strings.HasSuffix(spec, ".tgz") || strings.HasSuffix(spec, ".tar.gz") {
		return l.LoadTgz(spec)
	}
	ref := loader.ParsePackageSpec(spec)
	pkg, err := l.Load(ref)
	if err == nil || !a.cfg.Fetch || !errors.Is(err, loader.ErrPackageNotFound) {
		return pkg, err
	}
	logger.Info("fetching %s from %s", ref, l.RegistryURL())
	return l.Fetch(ctx, ref)
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(name)
}

// writeOutput writes data to the -o file, or to stdout when none is set.
func (a *app) writeOutput(cmd *cobra.Command, data []byte) error {
	if a.output == "" {
		return writeTerminated(cmd.OutOrStdout(), data)
	}
	if err := os.WriteFile(a.output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func writeTerminated(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gofhir-profiler %s\n", version)
		},
	}
}
