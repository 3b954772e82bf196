package livediff

import (
	"bytes"
	"errors"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeKind enumerates the node variants in a rendered tree.
type NodeKind int

const (
	KindElement NodeKind = iota
	KindText
	KindComment
)

func (k NodeKind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindComment:
		return "comment"
	default:
		return "unknown"
	}
}

// Attr is a single attribute. Attributes are kept as an ordered slice,
// not a map, so that attribute patches come out in a deterministic order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is one node of a rendered tree: an element, a text run or a
// comment. Trees handed to Diff are treated as immutable; the differ
// only reads them. Mutation helpers (SetAttr, RemoveAttr) exist for the
// applier, which always works on its own clone.
type Node struct {
	Kind     NodeKind
	Tag      string // element tag; empty for text and comment nodes
	Attrs    []Attr // elements only, insertion ordered
	Children []*Node
	Data     string // text or comment content
}

// NodePath represents the traversal steps from the root to a target node.
// Example: [0, 1, 3] means root -> child[0] -> child[1] -> child[3]
type NodePath []int

func (p NodePath) child(index int) NodePath {
	out := make(NodePath, len(p), len(p)+1)
	copy(out, p)
	return append(out, index)
}

// String renders the path as "0/1/3". The root is "".
func (p NodePath) String() string {
	var buf bytes.Buffer
	for i, step := range p {
		if i > 0 {
			buf.WriteByte('/')
		}
		fmt.Fprintf(&buf, "%d", step)
	}
	return buf.String()
}

func pathEqual(a, b NodePath) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ErrMalformedTree marks trees that violate basic structural assumptions,
// e.g. a text node with children. A malformed tree aborts the whole diff
// cycle; no partial patches are emitted.
var ErrMalformedTree = errors.New("malformed tree")

// Element builds an element node.
func Element(tag string, attrs ...Attr) *Node {
	return &Node{Kind: KindElement, Tag: tag, Attrs: attrs}
}

// Text builds a text node.
func Text(content string) *Node {
	return &Node{Kind: KindText, Data: content}
}

// Comment builds a comment node.
func Comment(content string) *Node {
	return &Node{Kind: KindComment, Data: content}
}

// Append adds children and returns the node for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns the value of the named attribute and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or replaces an attribute, preserving its original position
// when it already exists.
func (n *Node) SetAttr(name, value string) {
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// RemoveAttr deletes an attribute if present.
func (n *Node) RemoveAttr(name string) {
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

// ChildAt traverses the tree using the provided path.
func (n *Node) ChildAt(path NodePath) (*Node, error) {
	current := n
	for step, index := range path {
		if index < 0 || index >= len(current.Children) {
			return nil, fmt.Errorf("node not found at path %v (failed at index %d, step %d)", path, index, step)
		}
		current = current.Children[index]
	}
	return current, nil
}

// Clone deep-copies the tree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Tag: n.Tag, Data: n.Data}
	if len(n.Attrs) > 0 {
		out.Attrs = make([]Attr, len(n.Attrs))
		copy(out.Attrs, n.Attrs)
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Equal reports exact structural equality: kind, tag, every attribute in
// order, and all descendant content. The differ uses it to skip identical
// subtrees, so it must never report a false positive.
func Equal(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Tag != b.Tag || a.Data != b.Data {
		return false
	}
	if len(a.Attrs) != len(b.Attrs) || len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// Validate walks the tree and checks the structural assumptions the
// differ relies on: only elements carry children and tags, text and
// comment nodes are leaves, and no two text siblings are adjacent.
// Serialized HTML merges neighboring text runs into one, so a tree that
// contains them disagrees with its own markup about child counts and
// every path past the merge point addresses the wrong node on the
// client. Normalize repairs such trees.
func (n *Node) Validate() error {
	return n.validate(NodePath{})
}

func (n *Node) validate(path NodePath) error {
	if n == nil {
		return fmt.Errorf("%w: nil node at %q", ErrMalformedTree, path.String())
	}
	switch n.Kind {
	case KindElement:
		if n.Tag == "" {
			return fmt.Errorf("%w: element without tag at %q", ErrMalformedTree, path.String())
		}
	case KindText, KindComment:
		if len(n.Children) > 0 {
			return fmt.Errorf("%w: %s node with %d children at %q", ErrMalformedTree, n.Kind, len(n.Children), path.String())
		}
		if len(n.Attrs) > 0 {
			return fmt.Errorf("%w: %s node with attributes at %q", ErrMalformedTree, n.Kind, path.String())
		}
	default:
		return fmt.Errorf("%w: unknown node kind %d at %q", ErrMalformedTree, int(n.Kind), path.String())
	}
	var prev *Node
	for i, c := range n.Children {
		if err := c.validate(path.child(i)); err != nil {
			return err
		}
		if prev != nil && prev.Kind == KindText && c.Kind == KindText {
			return fmt.Errorf("%w: adjacent text children at %q", ErrMalformedTree, path.child(i).String())
		}
		prev = c
	}
	return nil
}

// Normalize merges adjacent text children throughout the tree, in
// place, and returns the node for chaining. Renderers that emit text in
// pieces produce runs the serialized form cannot keep apart; merging
// them makes the tree agree with its own markup.
func (n *Node) Normalize() *Node {
	if n == nil || len(n.Children) == 0 {
		return n
	}
	out := n.Children[:0]
	for _, c := range n.Children {
		if c != nil && c.Kind == KindText && len(out) > 0 {
			if last := out[len(out)-1]; last != nil && last.Kind == KindText {
				last.Data += c.Data
				continue
			}
		}
		out = append(out, c.Normalize())
	}
	n.Children = out
	return n
}

// countNodes returns the total node count and maximum depth of the tree.
// Sessions use it to bound diff work per cycle.
func countNodes(n *Node) (nodes, depth int) {
	if n == nil {
		return 0, 0
	}
	nodes = 1
	maxChild := 0
	for _, c := range n.Children {
		cn, cd := countNodes(c)
		nodes += cn
		if cd > maxChild {
			maxChild = cd
		}
	}
	return nodes, maxChild + 1
}

// HTML serializes the node back to markup.
func (n *Node) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n.toHTMLNode()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (n *Node) toHTMLNode() *html.Node {
	var out *html.Node
	switch n.Kind {
	case KindText:
		return &html.Node{Type: html.TextNode, Data: n.Data}
	case KindComment:
		return &html.Node{Type: html.CommentNode, Data: n.Data}
	default:
		out = &html.Node{
			Type:     html.ElementNode,
			Data:     n.Tag,
			DataAtom: atom.Lookup([]byte(n.Tag)),
		}
		for _, a := range n.Attrs {
			out.Attr = append(out.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
	}
	for _, c := range n.Children {
		out.AppendChild(c.toHTMLNode())
	}
	return out
}
