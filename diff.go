package livediff

import "fmt"

// Diff computes the ordered patch list that transforms old into new.
// A nil old covers first mount: the result is a single whole-tree
// replacement. The inputs are never mutated.
func Diff(old, new *Node) ([]Patch, error) {
	return DiffAt(old, new, NodePath{}, nil)
}

// DiffWith is Diff with a diagnostics collector attached. Diagnostics
// never change the emitted patches; they only observe.
func DiffWith(old, new *Node, diag *Diagnostics) ([]Patch, error) {
	return DiffAt(old, new, NodePath{}, diag)
}

// DiffAt diffs two trees rooted at an arbitrary base path. The base is
// prepended to every emitted patch path, for callers that diff a subtree
// of a larger document.
func DiffAt(old, new *Node, base NodePath, diag *Diagnostics) ([]Patch, error) {
	if new == nil {
		return nil, fmt.Errorf("%w: new tree is nil", ErrMalformedTree)
	}
	if err := new.Validate(); err != nil {
		return nil, fmt.Errorf("new tree: %w", err)
	}
	if old != nil {
		if err := old.Validate(); err != nil {
			return nil, fmt.Errorf("old tree: %w", err)
		}
	}
	d := &differ{diag: diag}
	patches := d.diffNodes(old, new, base)
	if d.err != nil {
		return nil, d.err
	}
	return patches, nil
}

type differ struct {
	diag *Diagnostics
	err  error
}

// render serializes a subtree for a replace/insert payload. Validated
// trees always serialize; a failure here still aborts the whole diff
// rather than emitting a truncated patch list.
func (d *differ) render(n *Node) string {
	s, err := n.HTML()
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("failed to serialize subtree: %w", err)
	}
	return s
}

func (d *differ) replace(new *Node, path NodePath) []Patch {
	return []Patch{{Type: OpReplaceNode, Path: path, HTML: d.render(new)}}
}

// diffNodes compares two nodes assumed to correspond to each other and
// recurses into their children.
func (d *differ) diffNodes(old, new *Node, path NodePath) []Patch {
	if old == nil {
		return d.replace(new, path)
	}

	// A fully equal subtree contributes nothing. Equal is exact, so this
	// is purely an optimization and can never swallow a real change.
	if Equal(old, new) {
		return nil
	}

	if old.Kind != new.Kind {
		return d.replace(new, path)
	}

	switch new.Kind {
	case KindText:
		if old.Data != new.Data {
			return []Patch{{Type: OpSetText, Path: path, Value: new.Data}}
		}
		return nil
	case KindComment:
		// There is no dedicated comment op; a changed comment swaps the
		// node. Comments are usually filtered at parse time anyway.
		if old.Data != new.Data {
			return d.replace(new, path)
		}
		return nil
	}

	// Tag changes replace the whole subtree. Patching an element into a
	// different tag attribute-by-attribute is never worth it and can
	// produce illegal attribute combinations along the way.
	if old.Tag != new.Tag {
		return d.replace(new, path)
	}

	patches := d.diffAttributes(old, new, path)
	patches = append(patches, d.diffChildren(old, new, path)...)
	return patches
}

// diffAttributes emits the symmetric set difference of the two attribute
// lists. Walks old attributes in their stored order, then new ones, so
// output order is deterministic. Each attribute patch is independently
// idempotent; no relative ordering between them is required.
func (d *differ) diffAttributes(old, new *Node, path NodePath) []Patch {
	var patches []Patch
	for _, a := range old.Attrs {
		newValue, exists := new.Attr(a.Name)
		if !exists {
			patches = append(patches, Patch{Type: OpRemoveAttribute, Path: path, Name: a.Name})
		} else if newValue != a.Value {
			patches = append(patches, Patch{Type: OpSetAttribute, Path: path, Name: a.Name, Value: newValue})
		}
	}
	for _, a := range new.Attrs {
		if _, exists := old.Attr(a.Name); !exists {
			patches = append(patches, Patch{Type: OpSetAttribute, Path: path, Name: a.Name, Value: a.Value})
		}
	}
	return patches
}

// diffChildren matches the two sibling lists and emits moves, inserts,
// removes and recursive content patches.
//
// Matching is per sibling group: children with an explicit key match by
// value (first occurrence wins), unkeyed children match by their ordinal
// within the unkeyed subset, not their raw index, so they never steal a
// match from a keyed sibling after an insertion or removal. A group with
// no keys at all degenerates to plain positional matching, which is
// where the unkeyed performance cliff comes from: shifting an unkeyed
// list rewrites every shifted position.
//
// The differ maintains a working copy of the child order that mirrors the
// client's DOM as the emitted patches land. A matched child is moved when
// its old index differs from its new index or the working order does not
// already have it in place; this keeps replay exact while a pure reversal
// of a keyed list still costs exactly one move per child.
func (d *differ) diffChildren(old, new *Node, path NodePath) []Patch {
	oldKids := old.Children
	newKids := new.Children
	if len(oldKids) == 0 && len(newKids) == 0 {
		return nil
	}

	oldGroup := analyzeSiblings(oldKids)
	newGroup := analyzeSiblings(newKids)
	d.reportKeying(path, oldGroup, newGroup)

	var patches []Patch
	// groupCost counts the diff work attributable to this group itself:
	// structural ops on it plus matched children whose subtrees changed.
	// Patches deep inside a single child are that child's churn, not a
	// sign the group needed keys.
	groupCost := 0
	consumed := make([]bool, len(oldKids))

	// work[i] is the old index of the child currently at client position
	// i, or -1 for a freshly inserted node.
	work := make([]int, len(oldKids))
	for i := range work {
		work[i] = i
	}

	positionalOrdinal := 0
	for i, newChild := range newKids {
		oldIndex := -1
		key := newGroup.keys[i]
		if key.Explicit {
			if idx, ok := oldGroup.byValue[key.Value]; ok && !consumed[idx] {
				oldIndex = idx
			}
		} else {
			if positionalOrdinal < len(oldGroup.positional) {
				candidate := oldGroup.positional[positionalOrdinal]
				if !consumed[candidate] {
					oldIndex = candidate
				}
			}
			positionalOrdinal++
		}

		if oldIndex < 0 {
			// No counterpart in old: insert the full subtree. No
			// recursion needed, nothing of it exists on the client.
			patches = append(patches, Patch{
				Type:  OpInsertChild,
				Path:  path,
				Index: i,
				HTML:  d.render(newChild),
			})
			work = insertAt(work, i, -1)
			groupCost++
			continue
		}

		consumed[oldIndex] = true
		current := indexOf(work, oldIndex)
		if oldIndex != i || current != i {
			// From is the child's position at application time (the
			// working order), not its old-list index: the client's list
			// has already shifted under the preceding patches.
			move := Patch{Type: OpMoveChild, Path: path, From: current, Index: i}
			if key.Explicit {
				move.Key = key.Value
			}
			patches = append(patches, move)
			work = removeAt(work, current)
			work = insertAt(work, i, oldIndex)
			groupCost++
		}

		// Content patches for the matched pair come after its move; the
		// child path is its position after all structural patches so far.
		childPatches := d.diffNodes(oldKids[oldIndex], newChild, path.child(i))
		if len(childPatches) > 0 {
			groupCost++
		}
		patches = append(patches, childPatches...)
	}

	// Old children never consumed are gone from new. After the walk the
	// first len(newKids) working positions are settled, so the leftovers
	// all sit past them; removing highest position first keeps the lower
	// removal paths valid.
	var removals []int
	for pos, oldIndex := range work {
		if oldIndex >= 0 && !consumed[oldIndex] {
			removals = append(removals, pos)
		}
	}
	for i := len(removals) - 1; i >= 0; i-- {
		patches = append(patches, Patch{Type: OpRemoveChild, Path: path.child(removals[i])})
	}
	groupCost += len(removals)

	d.reportUnkeyedCost(path, oldGroup, newGroup, len(oldKids), groupCost)
	return patches
}

func (d *differ) reportKeying(path NodePath, oldGroup, newGroup *siblingGroup) {
	for _, value := range oldGroup.duplicates {
		d.diag.warn(WarnDuplicateKey, path, fmt.Sprintf("duplicate key %q in old sibling list", value))
	}
	for _, value := range newGroup.duplicates {
		d.diag.warn(WarnDuplicateKey, path, fmt.Sprintf("duplicate key %q in new sibling list", value))
	}
	if newGroup.mixed() {
		d.diag.warn(WarnMixedKeying, path, fmt.Sprintf(
			"sibling group mixes %d keyed and %d unkeyed children", len(newGroup.byValue), len(newGroup.positional)))
	} else if oldGroup.mixed() {
		d.diag.warn(WarnMixedKeying, path, fmt.Sprintf(
			"old sibling group mixes %d keyed and %d unkeyed children", len(oldGroup.byValue), len(oldGroup.positional)))
	}
}

// reportUnkeyedCost flags a large unkeyed group whose own diff cost
// exceeded half its size: the signature of a reorder or shift that
// keying would have turned into moves. Cost is the group-level count
// built up in diffChildren, so deep churn inside one child cannot trip
// it. Group size is the old list, so pure growth of a list never warns.
func (d *differ) reportUnkeyedCost(path NodePath, oldGroup, newGroup *siblingGroup, size, cost int) {
	if oldGroup.keyed() || newGroup.keyed() {
		return
	}
	if size < d.diag.unkeyedThreshold() {
		return
	}
	if cost > size/2 {
		d.diag.warn(WarnUnkeyedPerformance, path, fmt.Sprintf(
			"unkeyed group of %d children saw changes at %d positions; add %s to the children to enable keyed diffing",
			size, cost, KeyAttr))
	}
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func insertAt(s []int, index, v int) []int {
	if index > len(s) {
		index = len(s)
	}
	s = append(s, 0)
	copy(s[index+1:], s[index:])
	s[index] = v
	return s
}

func removeAt(s []int, index int) []int {
	return append(s[:index], s[index+1:]...)
}
