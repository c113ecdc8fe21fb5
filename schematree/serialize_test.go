package schematree

import (
	"encoding/json"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		schema string
	}{
		{
			name: "object with metadata",
			schema: `{
				"type": "object",
				"title": "Service",
				"description": "service settings",
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 3, "pattern": "^[a-z]+$"},
					"port": {"type": "integer", "minimum": 1, "maximum": 65535, "default": 8080}
				},
				"required": ["name", "port"]
			}`,
		},
		{
			name:   "tuple items",
			schema: `{"type": "array", "items": [{"type": "number"}, {"type": "string"}]}`,
		},
		{
			name:   "single items with nested object",
			schema: `{"type": "array", "minItems": 1, "uniqueItems": true, "items": {"type": "object", "properties": {"id": {"type": "string"}}, "required": ["id"]}}`,
		},
		{
			name:   "additionalProperties schema",
			schema: `{"type": "object", "additionalProperties": {"type": "string"}}`,
		},
		{
			name:   "contains",
			schema: `{"type": "array", "contains": {"type": "number", "minimum": 10}}`,
		},
		{
			name:   "anyOf",
			schema: `{"anyOf": [{"type": "string"}, {"type": "number"}]}`,
		},
		{
			name:   "not",
			schema: `{"not": {"type": "string"}}`,
		},
		{
			name:   "conditional",
			schema: `{"if": {"properties": {"kind": {"const": "a"}}}, "then": {"properties": {"a": {"type": "string"}}}, "else": {"properties": {"b": {"type": "number"}}}}`,
		},
		{
			name:   "typed schema with allOf",
			schema: `{"type": "object", "properties": {"a": {"type": "string"}}, "allOf": [{"properties": {"a": {"minLength": 1}}}]}`,
		},
		{
			name:   "definitions and refs",
			schema: `{"type": "object", "properties": {"home": {"$ref": "#/definitions/address"}}, "definitions": {"address": {"type": "object", "properties": {"street": {"type": "string"}}}}}`,
		},
		{
			name:   "$defs keyword kept",
			schema: `{"$defs": {"zip": {"type": "string", "pattern": "^[0-9]{5}$"}}, "properties": {"zip": {"$ref": "#/$defs/zip"}}}`,
		},
		{
			name:   "unknown keywords",
			schema: `{"type": "string", "x-ui-widget": "textarea", "deprecated": true, "$id": "urn:example"}`,
		},
		{
			name:   "boolean subschemas",
			schema: `{"properties": {"anything": true, "nothing": false}, "items": false}`,
		},
		{
			name:   "keywords without child form",
			schema: `{"type": "object", "patternProperties": {"^x-": {"type": "string"}}, "propertyNames": {"maxLength": 8}, "dependencies": {"a": ["b"]}}`,
		},
		{
			name:   "type union",
			schema: `{"type": ["string", "null"], "enum": ["a", "b", null]}`,
		},
		{
			name:   "required alternatives without properties",
			schema: `{"type": "object", "properties": {"email": {"type": "string"}, "phone": {"type": "string"}}, "anyOf": [{"required": ["email"]}, {"required": ["phone"]}]}`,
		},
		{
			name:   "required names mixed with declared properties",
			schema: `{"type": "object", "properties": {"a": {"type": "string"}}, "required": ["a", "b"]}`,
		},
		{
			name:   "non-schema property and definition values",
			schema: `{"properties": {"a": {"type": "string"}, "b": 5}, "required": ["a", "b"], "definitions": {"x": {}, "y": "bad"}}`,
		},
		{
			name:   "non-schema operands",
			schema: `{"anyOf": [{"type": "string"}, 3], "allOf": []}`,
		},
		{
			name:   "non-schema tuple items",
			schema: `{"type": "array", "items": [1, {"type": "string"}]}`,
		},
		{
			name:   "numeric and content keywords",
			schema: `{"type": "number", "exclusiveMinimum": 0, "multipleOf": 0.5, "readOnly": true, "examples": [1.5, 2]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Serialize(Parse(mustSchema(t, tt.schema), &sequence{}))
			assertSchemaEqual(t, got, tt.schema)
		})
	}
}

func TestSerializeDropsUnsetKeywords(t *testing.T) {
	root := NewRoot(&sequence{})
	root.Keywords["description"] = ""
	root.Keywords["default"] = nil
	root.Keywords["title"] = "Kept"
	root.Keywords["minProperties"] = 0

	assertSchemaEqual(t, Serialize(root), `{"type": "object", "title": "Kept", "minProperties": 0}`)
}

func TestSerializeOmitsEmptyRequired(t *testing.T) {
	got := Serialize(Parse(mustSchema(t, `{"type": "object", "properties": {"a": {}}, "required": []}`), &sequence{}))
	assertSchemaEqual(t, got, `{"type": "object", "properties": {"a": {}}}`)
}

func TestSerializeExtraKeywordsWin(t *testing.T) {
	n := NewNode(TypeString, "s", &sequence{})
	n.Keywords["format"] = "email"
	n.ExtraKeywords["format"] = "uri"

	assertSchemaEqual(t, Serialize(n), `{"type": "string", "format": "uri"}`)
}

func TestSerializeEditedTree(t *testing.T) {
	ids := &sequence{}
	root := NewRoot(ids)
	ed := NewEditor(root)

	name := NewNode(TypeString, "name", ids)
	name.Required = true
	tags := NewNode(TypeArray, "tags", ids)
	choice := NewCompositionNode(OneOf, "choice", ids)
	def := NewNode(TypeObject, "shared", ids)
	def.Group = GroupDefinitions

	for _, n := range []*Node{name, tags, choice, def} {
		if err := ed.Add(root.ID, n); err != nil {
			t.Fatalf("Add(%s): %v", n.Name, err)
		}
	}
	if err := ed.Add(tags.ID, NewNode(TypeString, NameItems, ids)); err != nil {
		t.Fatalf("Add items: %v", err)
	}
	if err := ed.Add(choice.ID, NewNode(TypeString, "first", ids)); err != nil {
		t.Fatalf("Add operand: %v", err)
	}
	if err := ed.Add(choice.ID, NewNode(TypeInteger, "second", ids)); err != nil {
		t.Fatalf("Add operand: %v", err)
	}

	assertSchemaEqual(t, Serialize(root), `{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"choice": {"oneOf": [{"type": "string"}, {"type": "integer"}]}
		},
		"required": ["name"],
		"definitions": {"shared": {"type": "object"}}
	}`)
}

func TestSerializeRequiredOrderFollowsChildren(t *testing.T) {
	ids := &sequence{}
	root := Parse(mustSchema(t, `{"type": "object", "properties": {"a": {}, "b": {}}, "required": ["a", "b"]}`), ids)

	ed := NewEditor(root)
	if err := ed.Move(root.Children[1].ID, root.ID, 0); err != nil {
		t.Fatalf("Move: %v", err)
	}

	got := Serialize(root)
	req, ok := got["required"].([]string)
	if !ok || len(req) != 2 || req[0] != "b" || req[1] != "a" {
		t.Errorf("required = %v, want [b a]", got["required"])
	}
}

func TestSerializeBooleanRoot(t *testing.T) {
	f := false
	assertSchemaEqual(t, Serialize(&Node{Boolean: &f}), `{"not": {}}`)
}

func TestSerializeInfersMissingRoles(t *testing.T) {
	var root Node
	tree := `{
		"name": "root",
		"type": "object",
		"children": [
			{"name": "a", "type": "string", "required": true},
			{"name": "tags", "type": "array", "children": [{"name": "(items)", "type": "string"}]},
			{"name": "pair", "type": "array", "children": [{"name": "items[0]", "type": "number"}, {"name": "items[1]", "type": "string"}]},
			{"name": "choice", "compositionKind": "oneOf", "children": [{"name": "x", "type": "string"}, {"name": "y", "type": "integer"}]},
			{"name": "extra", "type": "object", "children": [{"name": "(additionalProperties)", "type": "string"}]},
			{"name": "shared", "type": "object", "group": "definitions"}
		]
	}`
	if err := json.Unmarshal([]byte(tree), &root); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	assertSchemaEqual(t, Serialize(&root), `{
		"type": "object",
		"properties": {
			"a": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}},
			"pair": {"type": "array", "items": [{"type": "number"}, {"type": "string"}]},
			"choice": {"oneOf": [{"type": "string"}, {"type": "integer"}]},
			"extra": {"type": "object", "additionalProperties": {"type": "string"}}
		},
		"required": ["a"],
		"definitions": {"shared": {"type": "object"}}
	}`)
}

func TestSerializeAppendedChildren(t *testing.T) {
	ids := &sequence{}
	root := NewRoot(ids)
	b := NewNode(TypeString, "b", ids)
	b.Required = true
	root.Children = append(root.Children, b)

	assertSchemaEqual(t, Serialize(root), `{"type": "object", "properties": {"b": {"type": "string"}}, "required": ["b"]}`)
}

func TestSerializeUnmatchedRequiredNotDuplicated(t *testing.T) {
	ids := &sequence{}
	root := Parse(mustSchema(t, `{"type": "object", "required": ["a"]}`), ids)
	a := NewNode(TypeString, "a", ids)
	a.Required = true
	if err := NewEditor(root).Add(root.ID, a); err != nil {
		t.Fatalf("Add: %v", err)
	}

	assertSchemaEqual(t, Serialize(root), `{"type": "object", "properties": {"a": {"type": "string"}}, "required": ["a"]}`)
}
