package livediff

import "fmt"

// Identity attribute names recognized by the key extractor. The two are
// treated as interchangeable; dj-key is the legacy spelling. A node's
// plain id attribute is deliberately not used as a diff key; keying is
// an explicit opt-in.
const (
	KeyAttr       = "data-key"
	LegacyKeyAttr = "dj-key"
)

// Key is a child's diff identity within its sibling group: the value of
// its identity attribute when present, otherwise its index in the list.
type Key struct {
	Explicit bool
	Value    string // explicit keys only
	Index    int    // index in the sibling list
}

func (k Key) String() string {
	if k.Explicit {
		return fmt.Sprintf("key(%s)", k.Value)
	}
	return fmt.Sprintf("pos(%d)", k.Index)
}

// explicitKey returns the node's identity attribute value, if any.
// Only elements can carry keys; an empty value counts as absent.
func explicitKey(n *Node) (string, bool) {
	if n.Kind != KindElement {
		return "", false
	}
	if v, ok := n.Attr(KeyAttr); ok && v != "" {
		return v, true
	}
	if v, ok := n.Attr(LegacyKeyAttr); ok && v != "" {
		return v, true
	}
	return "", false
}

// ExtractKeys computes the diff identity of every child in a sibling list.
func ExtractKeys(siblings []*Node) []Key {
	keys := make([]Key, len(siblings))
	for i, n := range siblings {
		if v, ok := explicitKey(n); ok {
			keys[i] = Key{Explicit: true, Value: v, Index: i}
		} else {
			keys[i] = Key{Index: i}
		}
	}
	return keys
}

// siblingGroup is the analyzed form of one sibling list.
type siblingGroup struct {
	keys       []Key
	byValue    map[string]int // explicit value -> first index carrying it
	positional []int          // indices of unkeyed children, in order
	duplicates []string       // explicit values seen more than once, first-seen order
}

func (g *siblingGroup) keyed() bool {
	return len(g.byValue) > 0
}

func (g *siblingGroup) mixed() bool {
	return len(g.byValue) > 0 && len(g.positional) > 0
}

// analyzeSiblings extracts keys and flags key-consistency problems.
// Duplicates are not fatal: the first occurrence wins for matching, later
// ones behave like unmatched (extra) nodes.
func analyzeSiblings(siblings []*Node) *siblingGroup {
	g := &siblingGroup{
		keys:    ExtractKeys(siblings),
		byValue: make(map[string]int),
	}
	seenDup := make(map[string]bool)
	for i, k := range g.keys {
		if !k.Explicit {
			g.positional = append(g.positional, i)
			continue
		}
		if _, exists := g.byValue[k.Value]; exists {
			if !seenDup[k.Value] {
				seenDup[k.Value] = true
				g.duplicates = append(g.duplicates, k.Value)
			}
			continue
		}
		g.byValue[k.Value] = i
	}
	return g
}
