package livediff

import (
	"errors"
	"fmt"
)

// Apply plays an ordered patch list against a tree and returns the
// resulting tree. The input tree is cloned, never mutated, mirroring the
// immutability contract of the differ.
//
// This is the reference applier: it resolves paths the way a conforming
// client must: sequentially, against the tree as already mutated by the
// preceding patches. MOVE_CHILD is resolved by the child's identity key
// first and only falls back to the From index when the child is unkeyed,
// which is what makes a move a true move on a client that retains node
// identity.
func Apply(root *Node, patches []Patch) (*Node, error) {
	if root == nil {
		return nil, errors.New("cannot apply patches to a nil tree")
	}
	// Wrap the root in a synthetic parent so a whole-tree REPLACE_NODE
	// (empty path) needs no special casing.
	holder := Element("#root").Append(root.Clone())
	for i, p := range patches {
		if err := applyPatch(holder, p); err != nil {
			return nil, fmt.Errorf("failed to apply patch %d (%s): %w", i, p.Type, err)
		}
	}
	if len(holder.Children) != 1 {
		return nil, fmt.Errorf("patch list left %d roots", len(holder.Children))
	}
	return holder.Children[0], nil
}

func applyPatch(holder *Node, p Patch) error {
	// All paths are relative to the real root, which is holder's only
	// child.
	target := func(path NodePath) (*Node, error) {
		return holder.Children[0].ChildAt(path)
	}

	switch p.Type {
	case OpReplaceNode:
		parent, index, err := resolveParent(holder, p.Path)
		if err != nil {
			return err
		}
		node, err := parseSingle(p.HTML, parent.Tag)
		if err != nil {
			return err
		}
		parent.Children[index] = node

	case OpSetText:
		node, err := target(p.Path)
		if err != nil {
			return err
		}
		if node.Kind != KindText {
			return fmt.Errorf("target for SET_TEXT is a %s node", node.Kind)
		}
		node.Data = p.Value

	case OpSetAttribute:
		node, err := target(p.Path)
		if err != nil {
			return err
		}
		if node.Kind != KindElement {
			return fmt.Errorf("target for SET_ATTR is a %s node", node.Kind)
		}
		node.SetAttr(p.Name, p.Value)

	case OpRemoveAttribute:
		node, err := target(p.Path)
		if err != nil {
			return err
		}
		if node.Kind != KindElement {
			return fmt.Errorf("target for REMOVE_ATTR is a %s node", node.Kind)
		}
		node.RemoveAttr(p.Name)

	case OpInsertChild:
		parent, err := target(p.Path)
		if err != nil {
			return err
		}
		node, err := parseSingle(p.HTML, parent.Tag)
		if err != nil {
			return err
		}
		index := p.Index
		if index > len(parent.Children) {
			index = len(parent.Children)
		}
		parent.Children = append(parent.Children, nil)
		copy(parent.Children[index+1:], parent.Children[index:])
		parent.Children[index] = node

	case OpRemoveChild:
		parent, index, err := resolveParent(holder, p.Path)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children[:index], parent.Children[index+1:]...)

	case OpMoveChild:
		parent, err := target(p.Path)
		if err != nil {
			return err
		}
		from := -1
		if p.Key != "" {
			for i, c := range parent.Children {
				if v, ok := explicitKey(c); ok && v == p.Key {
					from = i
					break
				}
			}
		}
		if from < 0 {
			from = p.From
		}
		if from < 0 || from >= len(parent.Children) {
			return fmt.Errorf("MOVE_CHILD source %d out of range (key %q, %d children)", from, p.Key, len(parent.Children))
		}
		node := parent.Children[from]
		parent.Children = append(parent.Children[:from], parent.Children[from+1:]...)
		to := p.Index
		if to > len(parent.Children) {
			to = len(parent.Children)
		}
		parent.Children = append(parent.Children, nil)
		copy(parent.Children[to+1:], parent.Children[to:])
		parent.Children[to] = node

	default:
		return fmt.Errorf("unknown patch type: %s", p.Type)
	}

	return nil
}

// resolveParent splits a node-addressing path into its parent node and
// the final child index, relative to the synthetic holder.
func resolveParent(holder *Node, path NodePath) (*Node, int, error) {
	if len(path) == 0 {
		// The addressed node is the root itself; its parent is the holder.
		return holder, 0, nil
	}
	parent, err := holder.Children[0].ChildAt(path[:len(path)-1])
	if err != nil {
		return nil, 0, err
	}
	index := path[len(path)-1]
	if index < 0 || index >= len(parent.Children) {
		return nil, 0, fmt.Errorf("child index %d out of range at %q", index, path.String())
	}
	return parent, index, nil
}

// parseSingle parses a patch HTML payload that carries exactly one node.
func parseSingle(markup, parentTag string) (*Node, error) {
	if parentTag == "" || parentTag == "#root" {
		parentTag = "div"
	}
	if markup == "" {
		return Text(""), nil
	}
	nodes, err := parseFragment(markup, parentTag)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, fmt.Errorf("patch payload parsed to %d nodes, want 1", len(nodes))
	}
	return nodes[0], nil
}
