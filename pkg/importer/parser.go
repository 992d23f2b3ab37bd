package importer

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/gofhir/profiler/pkg/errs"
	"github.com/gofhir/profiler/pkg/issue"
	"github.com/gofhir/profiler/pkg/tree"
)

// ResourceType is the only document kind the importer accepts.
const ResourceType = "StructureDefinition"

// Document is a parsed StructureDefinition.
type Document struct {
	Resource     tree.ProfiledResource
	Snapshot     []*Element
	Differential []*Element
	// Raw is the document as received.
	Raw []byte
}

// HasSnapshot reports whether the document carried snapshot elements.
func (d *Document) HasSnapshot() bool {
	return len(d.Snapshot) > 0
}

// resourceFields are the modeled StructureDefinition keys.
var resourceFields = map[string]func(r *tree.ProfiledResource, raw json.RawMessage) error{
	"id":          stringField(func(r *tree.ProfiledResource) *string { return &r.ID }),
	"url":         stringField(func(r *tree.ProfiledResource) *string { return &r.URL }),
	"version":     stringField(func(r *tree.ProfiledResource) *string { return &r.Version }),
	"name":        stringField(func(r *tree.ProfiledResource) *string { return &r.Name }),
	"title":       stringField(func(r *tree.ProfiledResource) *string { return &r.Title }),
	"status":      stringField(func(r *tree.ProfiledResource) *string { return &r.Status }),
	"description": stringField(func(r *tree.ProfiledResource) *string { return &r.Description }),
	"publisher":   stringField(func(r *tree.ProfiledResource) *string { return &r.Publisher }),
	"fhirVersion": stringField(func(r *tree.ProfiledResource) *string { return &r.FHIRVersion }),
	"type":        stringField(func(r *tree.ProfiledResource) *string { return &r.Type }),
	"derivation":  stringField(func(r *tree.ProfiledResource) *string { return &r.Derivation }),
	"baseDefinition": func(r *tree.ProfiledResource, raw json.RawMessage) error {
		if err := json.Unmarshal(raw, &r.Base.URL); err != nil {
			return err
		}
		r.Base.Name = BaseName(r.Base.URL)
		return nil
	},
	"kind": func(r *tree.ProfiledResource, raw json.RawMessage) error {
		return json.Unmarshal(raw, &r.Kind)
	},
	"abstract": func(r *tree.ProfiledResource, raw json.RawMessage) error {
		return json.Unmarshal(raw, &r.Abstract)
	},
}

func stringField(at func(*tree.ProfiledResource) *string) func(*tree.ProfiledResource, json.RawMessage) error {
	return func(r *tree.ProfiledResource, raw json.RawMessage) error {
		return json.Unmarshal(raw, at(r))
	}
}

// BaseName returns the short name of a canonical URL: the text after the last slash.
func BaseName(url string) string {
	if i := strings.LastIndexByte(url, '/'); i >= 0 {
		return url[i+1:]
	}
	return url
}

// Parse decodes a StructureDefinition. Resource-level keys that are not
// modeled are kept verbatim in Resource.Unknown. Either element section may be
// absent, but not both.
func Parse(data []byte, res *issue.Result) (*Document, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		e := errs.InvalidValue("", "", "document is not a JSON object")
		e.Err = err
		return nil, e
	}

	var resourceType string
	if raw, ok := obj["resourceType"]; ok {
		if err := json.Unmarshal(raw, &resourceType); err != nil {
			return nil, errs.InvalidValue("", "resourceType", "must be a string")
		}
	}
	if resourceType == "" {
		return nil, errs.MissingField("", "resourceType")
	}
	if resourceType != ResourceType {
		return nil, errs.InvalidResourceType(resourceType, ResourceType)
	}

	doc := &Document{Raw: data}
	var snapshot, differential []json.RawMessage
	for _, key := range sortedKeys(obj) {
		raw := obj[key]
		switch key {
		case "resourceType":
			continue
		case "snapshot":
			elements, err := sectionElements(key, raw)
			if err != nil {
				return nil, err
			}
			snapshot = elements
			continue
		case "differential":
			elements, err := sectionElements(key, raw)
			if err != nil {
				return nil, err
			}
			differential = elements
			continue
		}
		if decode, ok := resourceFields[key]; ok {
			if err := decode(&doc.Resource, raw); err != nil {
				e := errs.InvalidValue(ResourceType, key, "malformed value")
				e.Err = err
				return nil, e
			}
			continue
		}
		if doc.Resource.Unknown == nil {
			doc.Resource.Unknown = make(map[string]json.RawMessage)
		}
		doc.Resource.Unknown[key] = raw
		if res != nil {
			res.Add(issue.DiagUnknownFieldPreserved, map[string]any{"field": key}, ResourceType+"."+key)
		}
	}

	if len(snapshot) == 0 && len(differential) == 0 {
		return nil, errs.MissingField(ResourceType, "snapshot")
	}

	var err error
	var reported map[string]bool
	if len(snapshot) > 0 {
		if doc.Snapshot, err = decodeElements("snapshot", snapshot, res); err != nil {
			return nil, err
		}
		reported = reportUnknown(doc.Snapshot, res, nil)
	}
	if len(differential) > 0 {
		// Element diagnostics come from the snapshot when there is one.
		dres := res
		if len(snapshot) > 0 {
			dres = nil
		}
		if doc.Differential, err = decodeElements("differential", differential, dres); err != nil {
			return nil, err
		}
		reportUnknown(doc.Differential, res, reported)
	}
	return doc, nil
}

func sectionElements(section string, raw json.RawMessage) ([]json.RawMessage, error) {
	if string(raw) == "null" {
		return nil, nil
	}
	var s struct {
		Element []json.RawMessage `json:"element"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		e := errs.InvalidValue(ResourceType, section, "must be an object with an element array")
		e.Err = err
		return nil, e
	}
	return s.Element, nil
}
