package pokey

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
)

const addressSchema = `{
	"type": "object",
	"title": "Address",
	"properties": {
		"street": {"type": "string"},
		"zip": {"type": "string", "pattern": "^[0-9]{5}$"}
	},
	"required": ["street"]
}`

// assertJSONEqual compares two JSON-compatible values for semantic equality.
func assertJSONEqual(t *testing.T, actual any, expected string) {
	t.Helper()
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	var a, e any
	if err := json.Unmarshal(actualJSON, &a); err != nil {
		t.Fatalf("failed to unmarshal actual: %v", err)
	}
	if err := json.Unmarshal([]byte(expected), &e); err != nil {
		t.Fatalf("failed to unmarshal expected: %v", err)
	}
	if !reflect.DeepEqual(a, e) {
		t.Errorf("JSON mismatch:\ngot:  %s\nwant: %s", actualJSON, expected)
	}
}

func TestLoadDocument(t *testing.T) {
	doc, err := LoadDocument([]byte(addressSchema))
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc["title"] != "Address" {
		t.Errorf("title = %v", doc["title"])
	}

	for _, bad := range []string{`[1, 2]`, `null`, `{"a":`} {
		if _, err := LoadDocument([]byte(bad)); err == nil {
			t.Errorf("LoadDocument(%s) succeeded, want error", bad)
		}
	}
}

func TestLoadDocumentFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "schema-*.json")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.WriteString(addressSchema); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}
	tmpFile.Close()

	doc, err := LoadDocumentFromFile(tmpFile.Name())
	if err != nil {
		t.Fatalf("LoadDocumentFromFile failed: %v", err)
	}
	if _, ok := doc["properties"]; !ok {
		t.Errorf("properties missing from %v", doc)
	}
}

func TestLoadDocumentFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schema.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(addressSchema))
	}))
	defer srv.Close()

	doc, err := LoadDocumentFromSource(srv.URL + "/schema.json")
	if err != nil {
		t.Fatalf("LoadDocumentFromSource(url) failed: %v", err)
	}
	if doc["type"] != "object" {
		t.Errorf("type = %v", doc["type"])
	}

	if _, err := LoadDocumentFromURL(srv.URL + "/missing.json"); err == nil {
		t.Error("expected error for HTTP 404")
	}
}

func TestLoadDocumentFromSource(t *testing.T) {
	tests := []struct {
		name   string
		source string
		valid  bool
	}{
		{name: "raw JSON", source: `  {"type": "object"}`, valid: true},
		{name: "non-existent file", source: "/nonexistent/path/schema.json", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := LoadDocumentFromSource(tt.source)
			if tt.valid {
				if err != nil {
					t.Errorf("LoadDocumentFromSource failed: %v", err)
				}
				if doc == nil {
					t.Error("expected non-nil document")
				}
			} else if err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCheckCompatibilityJSON(t *testing.T) {
	tests := []struct {
		name      string
		newSchema string
		want      string
	}{
		{
			name: "optional property added",
			newSchema: `{"type": "object", "properties": {
				"street": {"type": "string"}, "zip": {"type": "string"}, "city": {"type": "string"}
			}, "required": ["street"]}`,
			want: `[]`,
		},
		{
			name:      "required property removed",
			newSchema: `{"type": "object", "properties": {"zip": {"type": "string"}}}`,
			want:      `[{"path": "street", "message": "Required property was removed", "kind": "REQUIRED_REMOVED"}]`,
		},
		{
			name: "optional made required and type changed",
			newSchema: `{"type": "object", "properties": {
				"street": {"type": "string"}, "zip": {"type": "integer"}
			}, "required": ["street", "zip"]}`,
			want: `[
				{"path": "zip", "message": "Type changed from 'string' to 'integer'", "kind": "TYPE_CHANGED"},
				{"path": "zip", "message": "Optional property was made required", "kind": "REQUIRED_ADDED"}
			]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, err := CheckCompatibilityJSON([]byte(addressSchema), []byte(tt.newSchema))
			if err != nil {
				t.Fatalf("CheckCompatibilityJSON failed: %v", err)
			}
			assertJSONEqual(t, issues, tt.want)
		})
	}

	if _, err := CheckCompatibilityJSON([]byte(`nope`), []byte(addressSchema)); err == nil {
		t.Error("expected error for malformed old schema")
	}
}

func TestCheckCompatibilityIdentity(t *testing.T) {
	doc, err := LoadDocument([]byte(addressSchema))
	if err != nil {
		t.Fatal(err)
	}
	if issues := CheckCompatibility(doc, doc); len(issues) != 0 {
		t.Errorf("identical schemas reported issues: %v", issues)
	}
}

func TestTreeRoundTrip(t *testing.T) {
	doc, err := LoadDocument([]byte(addressSchema))
	if err != nil {
		t.Fatal(err)
	}

	root := ParseTree(doc)
	if root.DisplayName != "Address" || len(root.Children) != 2 {
		t.Fatalf("unexpected tree root: %+v", root)
	}
	if root.Children[0].ID == root.Children[1].ID || root.ID == "" {
		t.Error("tree ids are not unique")
	}
	assertJSONEqual(t, SerializeTree(root), addressSchema)
}

func TestCompileAndValidate(t *testing.T) {
	doc, err := LoadDocument([]byte(addressSchema))
	if err != nil {
		t.Fatal(err)
	}
	s, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if err := s.Validate([]byte(`{"street": "Main St", "zip": "12345"}`)); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if err := s.Validate([]byte(`{"zip": "abc"}`)); err == nil {
		t.Error("invalid config accepted")
	}
}
