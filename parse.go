package livediff

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseOptions controls how rendered markup is materialized into a tree.
// The defaults mirror what the client-side DOM ends up with: comments and
// whitespace-only text runs are dropped so they never participate in the
// diff and never shift sibling indices.
type ParseOptions struct {
	KeepComments   bool
	KeepWhitespace bool
}

// Parse parses rendered markup into a Node tree using the defaults.
//
// html.Parse normalizes fragments into a full html/head/body document, so
// Parse unwraps the scaffolding and returns the first element found in
// the body. The input is expected to have a single root element, which is
// what renderers produce for a diffable view.
func Parse(markup string) (*Node, error) {
	return ParseWith(markup, ParseOptions{})
}

// ParseWith is Parse with explicit options.
func ParseWith(markup string, opts ParseOptions) (*Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}
	root := findRoot(doc)
	if root == nil {
		return nil, errors.New("no root element found in markup")
	}
	return fromHTMLNode(root, opts), nil
}

// findRoot digs through the document -> html -> body wrapping that
// html.Parse adds and returns the first element child of the body. Falls
// back to the first element anywhere if the shape is unexpected.
func findRoot(doc *html.Node) *html.Node {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			for hc := c.FirstChild; hc != nil; hc = hc.NextSibling {
				if hc.Type == html.ElementNode && hc.DataAtom == atom.Body {
					for bc := hc.FirstChild; bc != nil; bc = bc.NextSibling {
						if bc.Type == html.ElementNode {
							return bc
						}
					}
				}
			}
		}
	}
	return firstElement(doc)
}

func firstElement(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		// The parser's scaffolding elements are never the content root.
		switch n.DataAtom {
		case atom.Html, atom.Head, atom.Body:
		default:
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstElement(c); found != nil {
			return found
		}
	}
	return nil
}

func fromHTMLNode(src *html.Node, opts ParseOptions) *Node {
	switch src.Type {
	case html.TextNode:
		return Text(src.Data)
	case html.CommentNode:
		return Comment(src.Data)
	case html.ElementNode:
		out := Element(src.Data)
		for _, a := range src.Attr {
			out.Attrs = append(out.Attrs, Attr{Name: a.Key, Value: a.Val})
		}
		for c := src.FirstChild; c != nil; c = c.NextSibling {
			child := fromHTMLNode(c, opts)
			if child == nil {
				continue
			}
			if child.Kind == KindComment && !opts.KeepComments {
				continue
			}
			if child.Kind == KindText && !opts.KeepWhitespace && isWhitespace(child.Data) {
				continue
			}
			// Dropping a comment can leave two text runs touching; merge
			// them so the tree matches its serialized form.
			if child.Kind == KindText && len(out.Children) > 0 {
				if last := out.Children[len(out.Children)-1]; last.Kind == KindText {
					last.Data += child.Data
					continue
				}
			}
			out.Children = append(out.Children, child)
		}
		return out
	default:
		// Doctype and document nodes have no place in a diffable tree.
		return nil
	}
}

func isWhitespace(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
		default:
			return false
		}
	}
	return true
}

// parseFragment parses markup in the context of a parent element, for
// patch payloads carried as serialized HTML. Fragment parsing needs the
// parent context to get content models right (e.g. <tr> inside <table>).
func parseFragment(markup, parentTag string) ([]*Node, error) {
	context := &html.Node{
		Type:     html.ElementNode,
		Data:     parentTag,
		DataAtom: atom.Lookup([]byte(parentTag)),
	}
	parsed, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	// Patch payloads are round-tripped through our own serializer, so
	// nothing is filtered here.
	keep := ParseOptions{KeepComments: true, KeepWhitespace: true}
	var out []*Node
	for _, p := range parsed {
		if node := fromHTMLNode(p, keep); node != nil {
			out = append(out, node)
		}
	}
	return out, nil
}
