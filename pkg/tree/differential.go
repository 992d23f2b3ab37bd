package tree

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// DifferentialElement is the flat, persisted record of one profile edit. Tree
// shape is recovered from its address when it is merged.
type DifferentialElement struct {
	ID          string                     `json:"id"`
	Path        string                     `json:"path"`
	ElementID   string                     `json:"elementId,omitempty"`
	SliceName   string                     `json:"sliceName,omitempty"`
	Constraints Constraints                `json:"constraints"`
	Slicing     *Slicing                   `json:"slicing,omitempty"`
	Unknown     map[string]json.RawMessage `json:"unknownFields,omitempty"`
}

// AddressOrigin tells which field of a differential entry carried its slice
// identity.
type AddressOrigin int

// Address origins, in the order they are tried.
const (
	FromElementID AddressOrigin = iota
	FromPath
	FromSliceName
	Unsliced
)

// String returns a short name for the origin.
func (o AddressOrigin) String() string {
	switch o {
	case FromElementID:
		return "elementId"
	case FromPath:
		return "path"
	case FromSliceName:
		return "sliceName"
	default:
		return "unsliced"
	}
}

// ResolveAddress computes the slice-qualified address of the entry. Slice
// identity may be carried by the element id, by the path itself or by the
// sliceName field; the element id wins, then the path, then path:sliceName.
func (d *DifferentialElement) ResolveAddress() (Address, AddressOrigin, error) {
	var (
		raw    string
		origin AddressOrigin
	)
	switch {
	case strings.Contains(d.ElementID, ":"):
		raw, origin = d.ElementID, FromElementID
	case strings.Contains(d.Path, ":"):
		raw, origin = d.Path, FromPath
	case d.SliceName != "" && d.Path != "":
		raw, origin = SlicePath(d.Path, d.SliceName), FromSliceName
	case d.Path != "":
		raw, origin = d.Path, Unsliced
	default:
		raw, origin = d.ElementID, Unsliced
	}
	if raw == "" {
		return nil, origin, fmt.Errorf("differential entry %q has neither path nor element id", d.ID)
	}
	addr, err := ParseAddress(raw)
	if err != nil {
		return nil, origin, err
	}
	return addr, origin, nil
}

// Clone returns a deep copy.
func (d DifferentialElement) Clone() DifferentialElement {
	d.Constraints = d.Constraints.Clone()
	d.Slicing = d.Slicing.Clone()
	d.Unknown = cloneRaw(d.Unknown)
	return d
}

// CloneDifferential deep-copies a differential list.
func CloneDifferential(diff []DifferentialElement) []DifferentialElement {
	if diff == nil {
		return nil
	}
	out := make([]DifferentialElement, len(diff))
	for i, d := range diff {
		out[i] = d.Clone()
	}
	return out
}
