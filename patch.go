package livediff

// PatchType discriminates the DOM mutation instructions.
type PatchType string

const (
	OpReplaceNode     PatchType = "REPLACE_NODE" // Swap the whole subtree at Path for HTML
	OpSetText         PatchType = "SET_TEXT"     // Replace the text content at Path
	OpSetAttribute    PatchType = "SET_ATTR"     // Set/add attribute Name=Value at Path
	OpRemoveAttribute PatchType = "REMOVE_ATTR"  // Remove attribute Name at Path
	OpInsertChild     PatchType = "INSERT_CHILD" // Insert HTML under Path at Index
	OpRemoveChild     PatchType = "REMOVE_CHILD" // Remove the node at Path
	OpMoveChild       PatchType = "MOVE_CHILD"   // Reorder a child of Path to Index
)

// Patch is one atomic, ordered DOM mutation. Patches are applied strictly
// in emitted order; every Path resolves against the client's DOM as it
// stands after the preceding patches in the same list have landed.
//
// For INSERT_CHILD and MOVE_CHILD, Path addresses the parent and Index the
// target slot. MOVE_CHILD carries the moved child's identity Key when it
// has one, so a client that retains node identity can relocate the live
// node (preserving focus, scroll and selection) instead of rebuilding it;
// From is the index fallback for unkeyed moves and is the child's index
// at application time, after the preceding patches have landed. All other
// ops address the target node itself.
type Patch struct {
	Type  PatchType `json:"type"`
	Path  NodePath  `json:"path"`
	Name  string    `json:"name,omitempty"`  // attribute name
	Value string    `json:"value,omitempty"` // attribute value or text content
	HTML  string    `json:"html,omitempty"`  // serialized subtree for replace/insert
	Index int       `json:"index,omitempty"` // insert slot / move destination
	From  int       `json:"from,omitempty"`  // move source index (fallback)
	Key   string    `json:"key,omitempty"`   // move identity key
}

// UpdateMode discriminates the two shapes an update can take on the wire,
// so the client never has to guess.
type UpdateMode string

const (
	// ModePatches carries an ordered patch list. The list may be empty,
	// which is a valid "nothing changed" update.
	ModePatches UpdateMode = "patches"
	// ModeFull carries the full serialized subtree. Used on first mount
	// and whenever a session declines to diff.
	ModeFull UpdateMode = "full"
)

// Update is the envelope a session emits once per render cycle. Version
// is a per-session counter starting at 1 for the mount render; clients
// can use it to detect dropped updates.
type Update struct {
	Mode    UpdateMode `json:"mode"`
	Version uint64     `json:"version"`
	Patches []Patch    `json:"patches,omitempty"`
	HTML    string     `json:"html,omitempty"`
}
