package schematree

import (
	"maps"
	"slices"
)

// mergedKeys are the map keywords whose ExtraKeywords entries are merged
// with the entries built from children.
var mergedKeys = map[string]bool{
	"properties":  true,
	"definitions": true,
	"$defs":       true,
}

// Serialize converts a tree back into a JSON Schema document.
//
// Children without a Role are placed by their name and the parent's kind,
// the same way Editor.Add infers it. Keywords whose value is nil or the
// empty string are treated as unset and dropped. An empty "required" list
// is omitted. ExtraKeywords are written last and win over anything emitted
// before them, except that entries for "properties", "definitions" and
// "$defs" are merged into the maps built from children.
func Serialize(n *Node) map[string]any {
	if n.Boolean != nil {
		if *n.Boolean {
			return map[string]any{}
		}
		return map[string]any{"not": map[string]any{}}
	}
	return serializeObject(n)
}

func serializeValue(n *Node) any {
	if n.Boolean != nil {
		return *n.Boolean
	}
	return serializeObject(n)
}

func serializeObject(n *Node) map[string]any {
	schema := map[string]any{}

	if n.Ref != "" {
		schema["$ref"] = n.Ref
	}
	if n.Type != "" {
		schema["type"] = string(n.Type)
	}
	for key, value := range n.Keywords {
		if isUnset(value) {
			continue
		}
		schema[key] = value
	}

	var (
		properties  = map[string]any{}
		required    []string
		itemNodes   []*Node
		itemRoles   []Role
		allOf       []any
		anyOf       []any
		oneOf       []any
		definitions = map[string]any{}
		defs        = map[string]any{}
	)

	for _, child := range n.Children {
		role := child.Role
		if role == RoleRoot {
			role = inferRole(n, child)
		}
		switch role {
		case RoleProperty:
			properties[child.Name] = serializeValue(child)
			if child.Required {
				required = append(required, child.Name)
			}
		case RoleItems, RoleTupleItem:
			itemNodes = append(itemNodes, child)
			itemRoles = append(itemRoles, role)
		case RoleContains:
			schema["contains"] = serializeValue(child)
		case RoleAllOf:
			allOf = append(allOf, serializeValue(child))
		case RoleAnyOf:
			anyOf = append(anyOf, serializeValue(child))
		case RoleOneOf:
			oneOf = append(oneOf, serializeValue(child))
		case RoleNot, RoleIf, RoleThen, RoleElse:
			schema[string(role)] = serializeValue(child)
		case RoleAdditionalProperties:
			schema["additionalProperties"] = serializeValue(child)
		case RoleDefinition:
			definitions[child.Name] = serializeValue(child)
		case RoleDef:
			defs[child.Name] = serializeValue(child)
		}
	}

	if len(properties) > 0 {
		schema["properties"] = properties
	}
	for _, name := range n.UnmatchedRequired {
		if !slices.Contains(required, name) {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	switch {
	case len(itemNodes) == 1 && itemRoles[0] == RoleItems:
		schema["items"] = serializeValue(itemNodes[0])
	case len(itemNodes) > 0:
		tuple := make([]any, len(itemNodes))
		for i, item := range itemNodes {
			tuple[i] = serializeValue(item)
		}
		schema["items"] = tuple
	}

	if allOf != nil {
		schema["allOf"] = allOf
	}
	if anyOf != nil {
		schema["anyOf"] = anyOf
	}
	if oneOf != nil {
		schema["oneOf"] = oneOf
	}
	if len(definitions) > 0 {
		schema["definitions"] = definitions
	}
	if len(defs) > 0 {
		schema["$defs"] = defs
	}

	for key, value := range n.ExtraKeywords {
		extra, isMap := value.(map[string]any)
		built, hasBuilt := schema[key].(map[string]any)
		if isMap && hasBuilt && mergedKeys[key] {
			merged := maps.Clone(built)
			maps.Copy(merged, extra)
			schema[key] = merged
			continue
		}
		schema[key] = value
	}

	return schema
}

func isUnset(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
