// Package compat decides whether replacing one JSON Schema with another is
// safe for data that was valid under the old schema.
//
// The rules are deliberately narrow:
//   - Adding a new optional property is safe.
//   - Making a required property optional is safe.
//   - Removing an optional property is safe.
//   - Making an optional property required is unsafe.
//   - Adding a brand-new required property is unsafe.
//   - Removing a required property is unsafe.
//   - Changing the declared type of a property is unsafe.
//
// Only "properties" and "required" are inspected, recursing into properties
// that are objects on both sides. Array item schemas and composition
// keywords (allOf, anyOf, oneOf, not, if/then/else) are not compared.
package compat

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Kind classifies an incompatibility.
type Kind string

const (
	// RequiredAdded is reported when data that omitted a property would now be rejected.
	RequiredAdded Kind = "REQUIRED_ADDED"
	// RequiredRemoved is reported when a required property disappears from the schema.
	RequiredRemoved Kind = "REQUIRED_REMOVED"
	// TypeChanged is reported when a property's declared type differs.
	TypeChanged Kind = "TYPE_CHANGED"
)

// Issue is a single backward-incompatible change.
type Issue struct {
	// Path is the dot-joined property path, e.g. "address.street".
	Path    string `json:"path"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind"`
}

// String implements fmt.Stringer.
func (i Issue) String() string {
	return fmt.Sprintf("%s [%s]: %s", i.Path, i.Kind, i.Message)
}

// Issues is the result of a compatibility check.
type Issues []Issue

// String joins all issues, one per line.
func (is Issues) String() string {
	lines := make([]string, len(is))
	for i, issue := range is {
		lines[i] = issue.String()
	}
	return strings.Join(lines, "\n")
}

// Check compares oldSchema with newSchema and returns every incompatibility
// found. An empty result means the update is safe. Check never fails:
// malformed "properties" or "required" values are treated as empty.
func Check(oldSchema, newSchema map[string]any) Issues {
	issues := Issues{}
	compareSchemas(oldSchema, newSchema, "", &issues)
	return issues
}

func compareSchemas(oldSchema, newSchema map[string]any, basePath string, issues *Issues) {
	oldProps := getProperties(oldSchema)
	newProps := getProperties(newSchema)
	oldRequired := getRequiredSet(oldSchema)
	newRequired := getRequiredSet(newSchema)

	for _, propName := range sortedKeys(oldProps) {
		propPath := joinPath(basePath, propName)
		oldProp := asObject(oldProps[propName])

		newRaw, exists := newProps[propName]
		if !exists {
			if oldRequired[propName] {
				*issues = append(*issues, Issue{
					Path:    propPath,
					Message: "Required property was removed",
					Kind:    RequiredRemoved,
				})
			}
			continue
		}
		newProp := asObject(newRaw)

		oldType, oldHasType := oldProp["type"]
		newType, newHasType := newProp["type"]
		if oldHasType && newHasType && !reflect.DeepEqual(oldType, newType) {
			*issues = append(*issues, Issue{
				Path:    propPath,
				Message: fmt.Sprintf("Type changed from '%v' to '%v'", formatType(oldType), formatType(newType)),
				Kind:    TypeChanged,
			})
		}

		if !oldRequired[propName] && newRequired[propName] {
			*issues = append(*issues, Issue{
				Path:    propPath,
				Message: "Optional property was made required",
				Kind:    RequiredAdded,
			})
		}

		if oldType == "object" && newType == "object" {
			compareSchemas(oldProp, newProp, propPath, issues)
		}
	}

	for _, propName := range getRequiredList(newSchema) {
		if _, existed := oldProps[propName]; existed {
			continue
		}
		*issues = append(*issues, Issue{
			Path:    joinPath(basePath, propName),
			Message: "New required property was added",
			Kind:    RequiredAdded,
		})
	}
}

// getProperties returns the "properties" map, or an empty map when it is
// missing or not an object.
func getProperties(schema map[string]any) map[string]any {
	if props, ok := schema["properties"].(map[string]any); ok {
		return props
	}
	return map[string]any{}
}

// getRequiredList returns the string entries of "required" in declaration
// order without duplicates.
func getRequiredList(schema map[string]any) []string {
	raw, ok := schema["required"].([]any)
	if !ok {
		if strs, ok := schema["required"].([]string); ok {
			raw = make([]any, len(strs))
			for i, s := range strs {
				raw[i] = s
			}
		}
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func getRequiredSet(schema map[string]any) map[string]bool {
	list := getRequiredList(schema)
	set := make(map[string]bool, len(list))
	for _, name := range list {
		set[name] = true
	}
	return set
}

func asObject(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func formatType(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i, p := range v {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, "|")
	default:
		return fmt.Sprint(v)
	}
}
