package schematree

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
)

// sequence is a deterministic IDSource for tests.
type sequence struct {
	next int
}

func (s *sequence) NewID() string {
	s.next++
	return fmt.Sprintf("n%d", s.next)
}

func mustSchema(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("invalid schema JSON: %v", err)
	}
	return m
}

// assertSchemaEqual compares two schema documents for semantic equality,
// ignoring key order and Go slice element types.
func assertSchemaEqual(t *testing.T, actual map[string]any, expected string) {
	t.Helper()

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual schema: %v", err)
	}
	var aVal, eVal any
	if err := json.Unmarshal(actualJSON, &aVal); err != nil {
		t.Fatalf("failed to unmarshal actual schema: %v", err)
	}
	if err := json.Unmarshal([]byte(expected), &eVal); err != nil {
		t.Fatalf("failed to unmarshal expected schema: %v", err)
	}

	if !reflect.DeepEqual(aVal, eVal) {
		canonicalActual, _ := json.MarshalIndent(aVal, "", "  ")
		canonicalExpected, _ := json.MarshalIndent(eVal, "", "  ")
		t.Errorf("schema mismatch:\ngot:\n%s\n\nwant:\n%s", canonicalActual, canonicalExpected)
	}
}

func childNames(n *Node) []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}
