package schematree

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrNodeNotFound is returned when an edit references an unknown node id.
var ErrNodeNotFound = errors.New("schematree: node not found")

var compositionLabels = map[Composition]string{
	AllOf:      "All Of",
	AnyOf:      "Any Of",
	OneOf:      "One Of",
	Not:        "Not",
	IfThenElse: "If / Then / Else",
}

// NewNode returns an empty node of the given type.
func NewNode(t Type, name string, ids IDSource) *Node {
	n := newNode(ids.NewID(), name)
	n.Type = t
	return n
}

// NewCompositionNode returns an empty composition node labelled for display.
func NewCompositionNode(kind Composition, name string, ids IDSource) *Node {
	n := newNode(ids.NewID(), name)
	n.Composition = kind
	n.DisplayName = compositionLabels[kind]
	return n
}

// NewRoot returns an empty object root.
func NewRoot(ids IDSource) *Node {
	n := newNode(ids.NewID(), NameRoot)
	n.DisplayName = DisplayRoot
	n.Type = TypeObject
	return n
}

// Find returns the node with the given id, or nil.
func Find(root *Node, id string) *Node {
	if root.ID == id {
		return root
	}
	for _, child := range root.Children {
		if found := Find(child, id); found != nil {
			return found
		}
	}
	return nil
}

// AncestorIDs returns the ids of every ancestor of the target, nearest
// parent first. It is nil when the target is the root or absent.
func AncestorIDs(root *Node, targetID string) []string {
	var path []string
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if n.ID == targetID {
			return true
		}
		for _, child := range n.Children {
			if walk(child) {
				path = append(path, n.ID)
				return true
			}
		}
		return false
	}
	walk(root)
	return path
}

// HasProperties reports whether root has any child outside its definitions.
func HasProperties(root *Node) bool {
	for _, child := range root.Children {
		if !child.IsDefinition() {
			return true
		}
	}
	return false
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

// DisplayNameToID derives a camelCase property key from a human label,
// e.g. "Max Retry Count" becomes "maxRetryCount".
func DisplayNameToID(displayName string) string {
	words := strings.Fields(nonAlphanumeric.ReplaceAllString(displayName, ""))
	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			r := []rune(w)
			r[0] = unicode.ToUpper(r[0])
			w = string(r)
		}
		b.WriteString(w)
	}
	return b.String()
}

// Editor holds one editing session's tree and selection. It is not safe
// for concurrent use.
type Editor struct {
	Root     *Node
	Selected string
}

// NewEditor starts a session on root.
func NewEditor(root *Node) *Editor {
	return &Editor{Root: root}
}

// SetTree replaces the tree and clears the selection.
func (e *Editor) SetTree(root *Node) {
	e.Root = root
	e.Selected = ""
}

// Select marks a node as selected.
func (e *Editor) Select(id string) {
	e.Selected = id
}

// Add appends node under the parent and selects it. When node.Role is
// empty it is inferred from the parent and the node's name.
func (e *Editor) Add(parentID string, node *Node) error {
	parent := Find(e.Root, parentID)
	if parent == nil {
		return fmt.Errorf("add under %q: %w", parentID, ErrNodeNotFound)
	}
	if node.Role == RoleRoot {
		node.setRole(inferRole(parent, node))
	}
	parent.Children = append(parent.Children, node)
	e.Selected = node.ID
	return nil
}

// Delete removes the node and its subtree. Deleting the selected node
// clears the selection.
func (e *Editor) Delete(id string) error {
	if !removeChild(e.Root, id) {
		return fmt.Errorf("delete %q: %w", id, ErrNodeNotFound)
	}
	if e.Selected == id {
		e.Selected = ""
	}
	return nil
}

// Update applies fn to the node with the given id. When fn renames the
// node or changes its Group without setting a Role, the Role is derived
// again.
func (e *Editor) Update(id string, fn func(n *Node)) error {
	n := Find(e.Root, id)
	if n == nil {
		return fmt.Errorf("update %q: %w", id, ErrNodeNotFound)
	}
	name, group, role := n.Name, n.Group, n.Role
	fn(n)
	if n.Role == role && (n.Name != name || n.Group != group) {
		if parent := findParent(e.Root, id); parent != nil {
			n.setRole(roleUnder(parent, n))
		}
	}
	return nil
}

// ToggleExpand flips the node's expanded state.
func (e *Editor) ToggleExpand(id string) error {
	return e.Update(id, func(n *Node) { n.Expanded = !n.Expanded })
}

// Move detaches a node and inserts it under targetParentID at index.
// The index is clamped to the target's child count. A node moved to a
// different parent takes the role that parent gives it.
func (e *Editor) Move(nodeID, targetParentID string, index int) error {
	node := Find(e.Root, nodeID)
	if node == nil || node == e.Root {
		return fmt.Errorf("move %q: %w", nodeID, ErrNodeNotFound)
	}
	if Find(node, targetParentID) != nil {
		return fmt.Errorf("move %q: cannot move a node into its own subtree", nodeID)
	}
	target := Find(e.Root, targetParentID)
	if target == nil {
		return fmt.Errorf("move to %q: %w", targetParentID, ErrNodeNotFound)
	}

	parent := findParent(e.Root, nodeID)
	removeChild(e.Root, nodeID)
	if parent != target {
		node.setRole(roleUnder(target, node))
	}

	if index < 0 {
		index = 0
	}
	if index > len(target.Children) {
		index = len(target.Children)
	}
	target.Children = append(target.Children, nil)
	copy(target.Children[index+1:], target.Children[index:])
	target.Children[index] = node
	return nil
}

func removeChild(n *Node, id string) bool {
	for i, child := range n.Children {
		if child.ID == id {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
		if removeChild(child, id) {
			return true
		}
	}
	return false
}

func findParent(n *Node, id string) *Node {
	for _, child := range n.Children {
		if child.ID == id {
			return n
		}
		if found := findParent(child, id); found != nil {
			return found
		}
	}
	return nil
}

// roleUnder is inferRole, except that definitions keep their exact role so
// "$defs" entries stay in "$defs".
func roleUnder(parent, child *Node) Role {
	if child.IsDefinition() && child.Group == GroupDefinitions {
		return child.Role
	}
	return inferRole(parent, child)
}

// inferRole picks the role a child without one plays, following the naming
// convention Parse uses.
func inferRole(parent, child *Node) Role {
	if child.Group == GroupDefinitions {
		return RoleDefinition
	}
	switch {
	case child.Name == NameItems:
		return RoleItems
	case strings.HasPrefix(child.Name, "items["):
		return RoleTupleItem
	case child.Name == NameContains:
		return RoleContains
	case child.Name == NameAdditionalProperties:
		return RoleAdditionalProperties
	}

	switch parent.Composition {
	case AllOf:
		return RoleAllOf
	case AnyOf:
		return RoleAnyOf
	case OneOf:
		return RoleOneOf
	case Not:
		return RoleNot
	case IfThenElse:
		switch child.Name {
		case "then":
			return RoleThen
		case "else":
			return RoleElse
		}
		return RoleIf
	}

	switch {
	case strings.HasPrefix(child.Name, "allOf["):
		return RoleAllOf
	case strings.HasPrefix(child.Name, "anyOf["):
		return RoleAnyOf
	case strings.HasPrefix(child.Name, "oneOf["):
		return RoleOneOf
	}
	return RoleProperty
}
