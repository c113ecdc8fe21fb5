package schematree

import (
	"fmt"
	"sort"
)

// knownKeywords are the validation and metadata keywords kept in
// Node.Keywords. "type" is handled separately.
var knownKeywords = map[string]bool{
	"enum":             true,
	"const":            true,
	"default":          true,
	"title":            true,
	"description":      true,
	"examples":         true,
	"readOnly":         true,
	"writeOnly":        true,
	"$comment":         true,
	"minLength":        true,
	"maxLength":        true,
	"pattern":          true,
	"format":           true,
	"contentEncoding":  true,
	"contentMediaType": true,
	"minimum":          true,
	"maximum":          true,
	"exclusiveMinimum": true,
	"exclusiveMaximum": true,
	"multipleOf":       true,
	"minItems":         true,
	"maxItems":         true,
	"uniqueItems":      true,
	"minProperties":    true,
	"maxProperties":    true,
}

// compositionOrder is the priority in which a node's Composition is chosen.
var compositionOrder = []struct {
	key  string
	kind Composition
}{
	{"allOf", AllOf},
	{"anyOf", AnyOf},
	{"oneOf", OneOf},
	{"not", Not},
	{"if", IfThenElse},
}

// Parse converts a JSON Schema document into a tree rooted at a node named
// "root". ids supplies node identifiers.
func Parse(schema map[string]any, ids IDSource) *Node {
	return ParseNamed(schema, "", ids)
}

// ParseNamed is like Parse but gives the root node the provided name.
func ParseNamed(schema map[string]any, name string, ids IDSource) *Node {
	if ids == nil {
		ids = UUIDSource{}
	}
	p := &parser{ids: ids}
	return p.parseObject(schema, name)
}

type parser struct {
	ids IDSource
}

// parseValue parses a sub-schema, which may be an object or a boolean.
func (p *parser) parseValue(v any, name string, role Role) (*Node, bool) {
	var n *Node
	switch s := v.(type) {
	case map[string]any:
		n = p.parseObject(s, name)
	case bool:
		n = newNode(p.ids.NewID(), name)
		b := s
		n.Boolean = &b
	default:
		return nil, false
	}
	n.setRole(role)
	return n, true
}

func (p *parser) parseObject(schema map[string]any, name string) *Node {
	n := newNode(p.ids.NewID(), NameRoot)
	if name != "" {
		n.Name = name
	}

	switch {
	case name != "":
		n.DisplayName = name
	case isString(schema["title"]):
		n.DisplayName = schema["title"].(string)
	default:
		n.DisplayName = DisplayRoot
	}

	if raw, ok := schema["type"]; ok {
		if t, ok := raw.(string); ok && Type(t).valid() {
			n.Type = Type(t)
		} else {
			n.ExtraKeywords["type"] = raw
		}
	}

	if raw, ok := schema["$ref"]; ok {
		if ref, ok := raw.(string); ok {
			n.Ref = ref
		} else {
			n.ExtraKeywords["$ref"] = raw
		}
	}

	if n.Type == "" {
		for _, c := range compositionOrder {
			if isSchemaLike(c.kind, schema[c.key]) {
				n.Composition = c.kind
				break
			}
		}
	}

	for key, value := range schema {
		switch key {
		case "type", "$ref":
			continue
		}
		if isStructural(key) {
			continue
		}
		if knownKeywords[key] {
			n.Keywords[key] = value
		} else {
			n.ExtraKeywords[key] = value
		}
	}

	p.parseProperties(n, schema)
	p.parseComposition(n, schema)
	p.parseArray(n, schema)
	p.parseAdditionalProperties(n, schema)
	p.parseDefinitions(n, schema, "definitions", RoleDefinition)
	p.parseDefinitions(n, schema, "$defs", RoleDef)

	return n
}

func (p *parser) parseProperties(n *Node, schema map[string]any) {
	var requiredNames []string
	switch list := schema["required"].(type) {
	case nil:
	case []any:
		for _, v := range list {
			if s, ok := v.(string); ok {
				requiredNames = append(requiredNames, s)
			}
		}
	case []string:
		requiredNames = list
	default:
		n.ExtraKeywords["required"] = list
	}
	required := make(map[string]bool, len(requiredNames))
	for _, name := range requiredNames {
		required[name] = true
	}

	raw, ok := schema["properties"]
	props, isMap := raw.(map[string]any)
	if ok && !isMap {
		n.ExtraKeywords["properties"] = raw
	}
	malformed := map[string]any{}
	for _, propName := range sortedKeys(props) {
		child, ok := p.parseValue(props[propName], propName, RoleProperty)
		if !ok {
			malformed[propName] = props[propName]
			continue
		}
		child.Required = required[propName]
		delete(required, propName)
		n.Children = append(n.Children, child)
	}
	if len(malformed) > 0 {
		n.ExtraKeywords["properties"] = malformed
	}

	for _, name := range requiredNames {
		if required[name] {
			n.UnmatchedRequired = append(n.UnmatchedRequired, name)
			delete(required, name)
		}
	}
}

func (p *parser) parseComposition(n *Node, schema map[string]any) {
	for _, c := range []struct {
		key  string
		role Role
	}{{"allOf", RoleAllOf}, {"anyOf", RoleAnyOf}, {"oneOf", RoleOneOf}} {
		raw, ok := schema[c.key]
		if !ok {
			continue
		}
		list, ok := schemaList(raw)
		if !ok {
			n.ExtraKeywords[c.key] = raw
			continue
		}
		for i, sub := range list {
			child, _ := p.parseValue(sub, fmt.Sprintf("%s[%d]", c.key, i), c.role)
			n.Children = append(n.Children, child)
		}
	}

	for _, c := range []struct {
		key  string
		role Role
	}{{"not", RoleNot}, {"if", RoleIf}, {"then", RoleThen}, {"else", RoleElse}} {
		raw, ok := schema[c.key]
		if !ok {
			continue
		}
		if child, ok := p.parseValue(raw, c.key, c.role); ok {
			n.Children = append(n.Children, child)
		} else {
			n.ExtraKeywords[c.key] = raw
		}
	}
}

func (p *parser) parseArray(n *Node, schema map[string]any) {
	if raw, ok := schema["items"]; ok {
		if tuple, ok := schemaList(raw); ok {
			for i, sub := range tuple {
				child, _ := p.parseValue(sub, fmt.Sprintf("items[%d]", i), RoleTupleItem)
				n.Children = append(n.Children, child)
			}
		} else if child, ok := p.parseValue(raw, NameItems, RoleItems); ok {
			n.Children = append(n.Children, child)
		} else {
			n.ExtraKeywords["items"] = raw
		}
	}

	if raw, ok := schema["contains"]; ok {
		if child, ok := p.parseValue(raw, NameContains, RoleContains); ok {
			n.Children = append(n.Children, child)
		} else {
			n.ExtraKeywords["contains"] = raw
		}
	}
}

func (p *parser) parseAdditionalProperties(n *Node, schema map[string]any) {
	raw, ok := schema["additionalProperties"]
	if !ok {
		return
	}
	if sub, ok := raw.(map[string]any); ok {
		child, _ := p.parseValue(sub, NameAdditionalProperties, RoleAdditionalProperties)
		n.Children = append(n.Children, child)
		return
	}
	// Boolean form has no child representation.
	n.ExtraKeywords["additionalProperties"] = raw
}

func (p *parser) parseDefinitions(n *Node, schema map[string]any, key string, role Role) {
	raw, ok := schema[key]
	if !ok {
		return
	}
	defs, ok := raw.(map[string]any)
	if !ok {
		n.ExtraKeywords[key] = raw
		return
	}
	malformed := map[string]any{}
	for _, defName := range sortedKeys(defs) {
		child, ok := p.parseValue(defs[defName], defName, role)
		if !ok {
			malformed[defName] = defs[defName]
			continue
		}
		n.Children = append(n.Children, child)
	}
	if len(malformed) > 0 {
		n.ExtraKeywords[key] = malformed
	}
}

// isStructural reports whether key is represented through children rather
// than keywords. Malformed values of these keys are moved to ExtraKeywords
// by the individual parse steps.
func isStructural(key string) bool {
	switch key {
	case "properties", "required", "items", "contains", "additionalProperties",
		"allOf", "anyOf", "oneOf", "not", "if", "then", "else",
		"definitions", "$defs":
		return true
	}
	return false
}

func isSchemaLike(kind Composition, v any) bool {
	switch kind {
	case AllOf, AnyOf, OneOf:
		_, ok := schemaList(v)
		return ok
	default:
		return isSchema(v)
	}
}

// schemaList returns v as a non-empty list of sub-schemas. Lists holding
// anything else are kept whole in ExtraKeywords.
func schemaList(v any) ([]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	for _, sub := range list {
		if !isSchema(sub) {
			return nil, false
		}
	}
	return list, true
}

func isSchema(v any) bool {
	switch v.(type) {
	case map[string]any, bool:
		return true
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
