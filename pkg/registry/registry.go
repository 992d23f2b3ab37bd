// Package registry indexes StructureDefinitions by canonical URL and type and
// serves them as base definitions to the profile engine.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/profiler/pkg/bridge"
	"github.com/gofhir/profiler/pkg/loader"
)

const coreURLPrefix = "http://hl7.org/fhir/StructureDefinition/"

// Definition is the indexed view of a StructureDefinition. Raw keeps the
// document exactly as loaded.
type Definition struct {
	URL            string
	Version        string
	Name           string
	Type           string
	Kind           string
	Abstract       bool
	BaseDefinition string
	FHIRVersion    string
	Package        string
	Raw            json.RawMessage
}

// IsCoreType reports whether d is the core definition of its type.
func (d *Definition) IsCoreType() bool {
	return d.Type != "" && d.URL == coreURLPrefix+d.Type
}

// Registry holds loaded StructureDefinitions.
type Registry struct {
	mu     sync.RWMutex
	byURL  map[string][]*Definition
	byType map[string]*Definition
}

var _ bridge.BaseResolver = (*Registry)(nil)

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byURL:  make(map[string][]*Definition),
		byType: make(map[string]*Definition),
	}
}

// Add indexes one StructureDefinition. pkg names its origin and may be empty.
func (r *Registry) Add(data []byte, pkg string) (*Definition, error) {
	def, err := decode(data)
	if err != nil {
		return nil, err
	}
	def.Package = pkg

	r.mu.Lock()
	defer r.mu.Unlock()
	r.addLocked(def)
	return def, nil
}

// LoadFromPackages indexes every definition of the packages. Packages earlier
// in the list win when two define the same URL and version.
func (r *Registry) LoadFromPackages(packages ...*loader.Package) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pkg := range packages {
		urls := make([]string, 0, len(pkg.Definitions))
		for url := range pkg.Definitions {
			urls = append(urls, url)
		}
		sort.Strings(urls)
		for _, url := range urls {
			def, err := decode(pkg.Definitions[url])
			if err != nil {
				return fmt.Errorf("%s: %s: %w", pkg.Ref(), url, err)
			}
			def.Package = pkg.Ref().String()
			r.addLocked(def)
		}
	}
	return nil
}

func (r *Registry) addLocked(def *Definition) {
	for _, existing := range r.byURL[def.URL] {
		if existing.Version == def.Version {
			return
		}
	}
	r.byURL[def.URL] = append(r.byURL[def.URL], def)
	if def.IsCoreType() {
		if _, ok := r.byType[def.Type]; !ok {
			r.byType[def.Type] = def
		}
	}
}

func decode(data []byte) (*Definition, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
		Version      string `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if head.ResourceType != "StructureDefinition" {
		return nil, fmt.Errorf("resourceType %q is not StructureDefinition", head.ResourceType)
	}

	var sd r4.StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("parse StructureDefinition: %w", err)
	}
	def := &Definition{
		URL:            derefString(sd.Url),
		Version:        head.Version,
		Name:           derefString(sd.Name),
		Type:           derefString(sd.Type),
		BaseDefinition: derefString(sd.BaseDefinition),
		Abstract:       sd.Abstract != nil && *sd.Abstract,
		Raw:            data,
	}
	if sd.Kind != nil {
		def.Kind = string(*sd.Kind)
	}
	if sd.FhirVersion != nil {
		def.FHIRVersion = string(*sd.FhirVersion)
	}
	if def.URL == "" {
		return nil, fmt.Errorf("StructureDefinition %q has no url", def.Name)
	}
	return def, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Get returns the definition of a canonical URL. A "url|version" canonical
// selects that version; an empty version selects the first one loaded.
func (r *Registry) Get(canonical, version string) *Definition {
	url, v, ok := strings.Cut(canonical, "|")
	if ok && version == "" {
		version = v
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := r.byURL[url]
	if len(defs) == 0 {
		return nil
	}
	if version == "" {
		return defs[0]
	}
	for _, def := range defs {
		if def.Version == version || def.Version == "" && def.FHIRVersion == version {
			return def
		}
	}
	return nil
}

// GetByURL returns the first definition loaded for a URL.
func (r *Registry) GetByURL(url string) *Definition {
	return r.Get(url, "")
}

// GetByType returns the core definition of a type such as "Patient".
func (r *Registry) GetByType(typeName string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[typeName]
}

// ResolveBase returns the raw JSON of a definition.
func (r *Registry) ResolveBase(ctx context.Context, canonicalURL, version string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def := r.Get(canonicalURL, version)
	if def == nil {
		if version != "" {
			return nil, fmt.Errorf("%w: %s|%s", bridge.ErrNotFound, canonicalURL, version)
		}
		return nil, fmt.Errorf("%w: %s", bridge.ErrNotFound, canonicalURL)
	}
	return def.Raw, nil
}

// Chain returns the base definitions of url from the nearest ancestor up.
// The walk stops at the first base that is not loaded.
func (r *Registry) Chain(url string) []*Definition {
	var chain []*Definition
	seen := map[string]bool{url: true}
	def := r.GetByURL(url)
	for def != nil && def.BaseDefinition != "" && !seen[def.BaseDefinition] {
		seen[def.BaseDefinition] = true
		def = r.GetByURL(def.BaseDefinition)
		if def != nil {
			chain = append(chain, def)
		}
	}
	return chain
}

// Count returns the number of loaded definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, defs := range r.byURL {
		n += len(defs)
	}
	return n
}

// AllURLs returns the loaded URLs, sorted.
func (r *Registry) AllURLs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	urls := make([]string, 0, len(r.byURL))
	for url := range r.byURL {
		urls = append(urls, url)
	}
	sort.Strings(urls)
	return urls
}
