// Package schematree maps JSON Schema documents to an editable tree of nodes
// and back.
//
// Parse turns a schema into a *Node tree; Serialize turns a tree back into a
// schema. The round trip preserves validation behaviour but not key order.
// Each child records the Role it plays under its parent (property, array
// items, composition operand, definition, ...), and Serialize dispatches on
// that role. Child names follow a display convention ("(items)",
// "items[0]", "allOf[1]", "not", "(additionalProperties)") that editors can
// show as-is.
package schematree

// Type is a JSON Schema primitive type a node can declare.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

func (t Type) valid() bool {
	switch t {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// Composition is the composition keyword a node represents.
type Composition string

const (
	AllOf      Composition = "allOf"
	AnyOf      Composition = "anyOf"
	OneOf      Composition = "oneOf"
	Not        Composition = "not"
	IfThenElse Composition = "if/then/else"
)

// Role describes how a child node attaches to its parent schema.
type Role string

const (
	RoleRoot                 Role = ""
	RoleProperty             Role = "property"
	RoleItems                Role = "items"
	RoleTupleItem            Role = "tupleItem"
	RoleContains             Role = "contains"
	RoleAdditionalProperties Role = "additionalProperties"
	RoleAllOf                Role = "allOf"
	RoleAnyOf                Role = "anyOf"
	RoleOneOf                Role = "oneOf"
	RoleNot                  Role = "not"
	RoleIf                   Role = "if"
	RoleThen                 Role = "then"
	RoleElse                 Role = "else"
	// RoleDefinition is an entry of "definitions".
	RoleDefinition Role = "definition"
	// RoleDef is an entry of "$defs".
	RoleDef Role = "def"
)

// GroupDefinitions tags children that live in the schema's definitions map.
const GroupDefinitions = "definitions"

// Synthetic child names.
const (
	NameItems                = "(items)"
	NameContains             = "(contains)"
	NameAdditionalProperties = "(additionalProperties)"
	NameRoot                 = "root"
	DisplayRoot              = "Root"
)

// Node is one schema in the editable tree.
//
// At most one of Type, Composition and Ref describes what the node is.
// Keywords and ExtraKeywords never hold structural keys; structure lives in
// Children.
type Node struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DisplayName string      `json:"displayName"`
	Type        Type        `json:"type,omitempty"`
	Composition Composition `json:"compositionKind,omitempty"`
	// Required is only meaningful for property children.
	Required bool `json:"required"`
	// UnmatchedRequired lists "required" names with no property child,
	// e.g. the operands of {"anyOf": [{"required": ["a"]}, ...]}.
	UnmatchedRequired []string `json:"unmatchedRequired,omitempty"`
	Ref string `json:"ref,omitempty"`
	// Role is inferred from the parent and Name when empty.
	Role Role `json:"role,omitempty"`
	// Group mirrors Role for definition children so editors can filter them.
	Group string `json:"group,omitempty"`
	// Boolean is set for the boolean schemas true and false.
	Boolean *bool `json:"boolean,omitempty"`

	// Keywords holds recognised validation and metadata keywords.
	Keywords map[string]any `json:"keywords"`
	// ExtraKeywords holds everything else, emitted verbatim on serialize.
	ExtraKeywords map[string]any `json:"extraKeywords"`
	Children      []*Node        `json:"children"`
	// Expanded is editor display state only.
	Expanded bool `json:"expanded,omitempty"`
}

// IsDefinition reports whether n belongs to its parent's definitions map.
func (n *Node) IsDefinition() bool {
	return n.Role == RoleDefinition || n.Role == RoleDef
}

func (n *Node) setRole(r Role) {
	n.Role = r
	if n.IsDefinition() {
		n.Group = GroupDefinitions
	} else {
		n.Group = ""
	}
}

func newNode(id, name string) *Node {
	return &Node{
		ID:            id,
		Name:          name,
		DisplayName:   name,
		Keywords:      map[string]any{},
		ExtraKeywords: map[string]any{},
		Children:      []*Node{},
		Expanded:      true,
	}
}
