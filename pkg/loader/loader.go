// Package loader reads StructureDefinitions out of FHIR NPM packages: the
// local package cache, .tgz archives, or archives served over HTTP.
package loader

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/logger"
)

const (
	// DefaultRegistryURL is the FHIR package registry.
	DefaultRegistryURL = "https://packages.fhir.org"

	// DefaultTimeout bounds a package download.
	DefaultTimeout = 30 * time.Second

	structureDefinition = "StructureDefinition"
)

// ErrPackageNotFound is returned when a package is not in the cache.
var ErrPackageNotFound = errors.New("package not found")

// DefaultPackagePath returns the default FHIR package cache path.
func DefaultPackagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fhir", "packages")
}

// PackageRef names a package version.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the "name#version" form.
func (p PackageRef) String() string {
	return p.Name + "#" + p.Version
}

// ParsePackageSpec parses "name#version". The version is empty when absent.
func ParsePackageSpec(spec string) PackageRef {
	name, version, _ := strings.Cut(spec, "#")
	return PackageRef{Name: name, Version: version}
}

// CorePackages maps FHIR versions to the package holding their base definitions.
var CorePackages = map[string]PackageRef{
	"4.0.1": {Name: "hl7.fhir.r4.core", Version: "4.0.1"},
	"4.3.0": {Name: "hl7.fhir.r4b.core", Version: "4.3.0"},
	"5.0.0": {Name: "hl7.fhir.r5.core", Version: "5.0.0"},
}

// Manifest is the package.json of a FHIR package.
type Manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	FHIRVersion  string            `json:"fhirVersion,omitempty"`
	FHIRVersions []string          `json:"fhirVersions,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Package is a loaded package. Definitions holds the raw JSON of every
// StructureDefinition keyed by canonical URL.
type Package struct {
	Name        string
	Version     string
	Path        string
	FHIRVersion string
	Definitions map[string]json.RawMessage
}

// Ref returns the package reference.
func (p *Package) Ref() PackageRef {
	return PackageRef{Name: p.Name, Version: p.Version}
}

// Loader loads packages.
type Loader struct {
	basePath    string
	registryURL string
	httpClient  *http.Client
	log         *logger.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRegistryURL sets the registry used by Fetch.
func WithRegistryURL(url string) Option {
	return func(l *Loader) {
		l.registryURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(l *Loader) {
		l.httpClient = client
	}
}

// NewLoader creates a Loader over a package cache directory. An empty path
// selects DefaultPackagePath.
func NewLoader(basePath string, opts ...Option) *Loader {
	if basePath == "" {
		basePath = DefaultPackagePath()
	}
	l := &Loader{
		basePath:    basePath,
		registryURL: DefaultRegistryURL,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		log:         logger.With("loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// BasePath returns the package cache directory.
func (l *Loader) BasePath() string {
	return l.basePath
}

// RegistryURL returns the package registry Fetch downloads from.
func (l *Loader) RegistryURL() string {
	return l.registryURL
}

// Load reads a package from the cache directory.
func (l *Loader) Load(ref PackageRef) (*Package, error) {
	dir := filepath.Join(l.basePath, ref.String(), "package")
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s in %s", ErrPackageNotFound, ref, l.basePath)
		}
		return nil, err
	}

	manifest, err := readManifest(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}
	pkg := newPackage(manifest, filepath.Join(l.basePath, ref.String()))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read package directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isResourceFile(name) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			l.log.Warn("skip %s: %v", name, err)
			continue
		}
		pkg.add(data)
	}
	l.log.Debug("loaded %s: %d definitions", ref, len(pkg.Definitions))
	return pkg, nil
}

// LoadVersion loads the core package of a FHIR version.
func (l *Loader) LoadVersion(fhirVersion string) (*Package, error) {
	ref, ok := CorePackages[fhirVersion]
	if !ok {
		return nil, fmt.Errorf("unknown FHIR version %q", fhirVersion)
	}
	return l.Load(ref)
}

// List returns the "name#version" entries of the cache directory.
func (l *Loader) List() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), "#") {
			out = append(out, entry.Name())
		}
	}
	return out, nil
}

// LoadTgz reads a package archive from disk.
func (l *Loader) LoadTgz(path string) (*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open package archive: %w", err)
	}
	defer f.Close()
	return l.ReadTgz(f, path)
}

// Fetch downloads a package archive from the registry.
func (l *Loader) Fetch(ctx context.Context, ref PackageRef) (*Package, error) {
	url := fmt.Sprintf("%s/%s/%s", l.registryURL, ref.Name, ref.Version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/tar+gzip")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: HTTP %d", ref, resp.StatusCode)
	}
	return l.ReadTgz(resp.Body, url)
}

// ReadTgz reads a gzipped package archive. source names the archive in
// errors and becomes the package path.
func (l *Loader) ReadTgz(r io.Reader, source string) (*Package, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream %s: %w", source, err)
	}
	defer gz.Close()

	var manifest *Manifest
	definitions := make([][]byte, 0)
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", source, err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		name := strings.TrimPrefix(header.Name, "package/")
		if name != "package.json" && (strings.Contains(name, "/") || !isResourceFile(name)) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s in %s: %w", name, source, err)
		}
		if name == "package.json" {
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return nil, fmt.Errorf("parse package manifest: %w", err)
			}
			continue
		}
		definitions = append(definitions, data)
	}
	if manifest == nil {
		return nil, fmt.Errorf("package.json not found in %s", source)
	}

	pkg := newPackage(manifest, source)
	for _, data := range definitions {
		pkg.add(data)
	}
	l.log.Debug("read %s: %d definitions", pkg.Ref(), len(pkg.Definitions))
	return pkg, nil
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read package manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse package manifest: %w", err)
	}
	return &m, nil
}

func newPackage(m *Manifest, path string) *Package {
	fhirVersion := m.FHIRVersion
	if fhirVersion == "" && len(m.FHIRVersions) > 0 {
		fhirVersion = m.FHIRVersions[0]
	}
	return &Package{
		Name:        m.Name,
		Version:     m.Version,
		Path:        path,
		FHIRVersion: fhirVersion,
		Definitions: make(map[string]json.RawMessage),
	}
}

func isResourceFile(name string) bool {
	return strings.HasSuffix(name, ".json") && name != "package.json" && name != ".index.json"
}

// add indexes data when it is a StructureDefinition with a URL.
func (p *Package) add(data []byte) {
	var head struct {
		ResourceType string `json:"resourceType"`
		URL          string `json:"url"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return
	}
	if head.ResourceType == structureDefinition && head.URL != "" {
		p.Definitions[head.URL] = data
	}
}
