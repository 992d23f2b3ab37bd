package canonical

import (
	"sort"
	"strings"

	"github.com/gofhir/profiler/pkg/tree"
)

// segment classes, in sort order: an unsliced element that ends the path,
// then the slices of that element, then anything below the unsliced element.
const (
	classTerminal = iota
	classSliced
	classNested
)

// PathOrder compares element addresses. Element names at the same position
// are ordered by their rank in a reference tree when both are ranked, ranked
// names before unranked ones, and alphabetically otherwise.
type PathOrder struct {
	rank map[string]int
}

// NewPathOrder ranks element names by a depth-first walk of root. The zero
// PathOrder, or one built from a nil root, orders names alphabetically.
func NewPathOrder(root *tree.ElementNode) *PathOrder {
	o := &PathOrder{rank: make(map[string]int)}
	tree.Walk(root, func(n *tree.ElementNode, _ *tree.SliceNode) {
		p := n.FHIRPath()
		if _, ok := o.rank[p]; !ok {
			o.rank[p] = len(o.rank)
		}
	})
	return o
}

// Compare returns -1, 0 or 1 as address a sorts before, with, or after b.
//
// Both addresses are compared segment by segment. Within a segment the element
// names are compared first. For the same name, an unsliced segment that ends
// its path sorts before the slices of that element, slices sort by slice name
// and each is followed by its own children, and the unsliced element's
// children come after all of its slices. When every compared segment matches,
// the shorter address sorts first.
func (o *PathOrder) Compare(a, b string) int {
	if a == b {
		return 0
	}
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	var prefix strings.Builder
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, asl, _ := strings.Cut(as[i], ":")
		bn, bsl, _ := strings.Cut(bs[i], ":")

		if an != bn {
			return o.compareNames(prefix.String(), an, bn)
		}
		ac, bc := segmentClass(asl, i == len(as)-1), segmentClass(bsl, i == len(bs)-1)
		if ac != bc {
			return cmpInt(ac, bc)
		}
		if asl != bsl {
			return strings.Compare(asl, bsl)
		}
		if prefix.Len() > 0 {
			prefix.WriteByte('.')
		}
		prefix.WriteString(an)
	}
	return cmpInt(len(as), len(bs))
}

func segmentClass(slice string, last bool) int {
	switch {
	case slice != "":
		return classSliced
	case last:
		return classTerminal
	default:
		return classNested
	}
}

func (o *PathOrder) compareNames(prefix, a, b string) int {
	if o != nil && o.rank != nil {
		ra, oka := o.rank[tree.ChildPath(prefix, a)]
		rb, okb := o.rank[tree.ChildPath(prefix, b)]
		switch {
		case oka && okb:
			return cmpInt(ra, rb)
		case oka:
			return -1
		case okb:
			return 1
		}
	}
	return strings.Compare(a, b)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// ComparePaths compares two element addresses with alphabetical name order.
func ComparePaths(a, b string) int {
	return (*PathOrder)(nil).Compare(a, b)
}

// SortPaths sorts addresses in place. A nil order sorts names alphabetically.
func SortPaths(paths []string, order *PathOrder) {
	sort.SliceStable(paths, func(i, j int) bool {
		return order.Compare(paths[i], paths[j]) < 0
	})
}

// SortElements sorts element objects by their "id" key, which holds the
// slice-qualified address.
func SortElements(elements []Object, order *PathOrder) {
	sort.SliceStable(elements, func(i, j int) bool {
		a, _ := elements[i]["id"].(string)
		b, _ := elements[j]["id"].(string)
		return order.Compare(a, b) < 0
	})
}
