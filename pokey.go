// Package pokey checks JSON Schema evolutions for backward compatibility
// and maps schemas to and from an editable tree.
//
// Schema documents are handled as decoded JSON (map[string]any). Use the
// LoadDocument helpers to read them from bytes, files, or URLs:
//   - CheckCompatibility reports the changes in a new schema that would break
//     data valid under the old one
//   - ParseTree and SerializeTree convert between a schema and a
//     schematree.Node tree
//   - Compile prepares a schema for validating config data
package pokey

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/nbcuni/pokey/compat"
	"github.com/nbcuni/pokey/schematree"
	"github.com/nbcuni/pokey/validate"
)

// LoadDocument decodes a JSON object.
func LoadDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("JSON document is not an object")
	}
	return doc, nil
}

// LoadDocumentFromFile loads a JSON object from a file path.
func LoadDocumentFromFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document file: %w", err)
	}
	return LoadDocument(data)
}

// LoadDocumentFromURL loads a JSON object from a URL.
func LoadDocumentFromURL(url string) (map[string]any, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document from URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch document: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document response: %w", err)
	}
	return LoadDocument(data)
}

// LoadDocumentFromSource loads a document from a file path, URL, or raw JSON.
func LoadDocumentFromSource(source string) (map[string]any, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return LoadDocumentFromURL(source)
	}
	if strings.HasPrefix(strings.TrimSpace(source), "{") {
		return LoadDocument([]byte(source))
	}
	return LoadDocumentFromFile(source)
}

// CheckCompatibility lists the backward-incompatible changes from oldSchema
// to newSchema. An empty result means the update is safe.
func CheckCompatibility(oldSchema, newSchema map[string]any) compat.Issues {
	return compat.Check(oldSchema, newSchema)
}

// CheckCompatibilityJSON is CheckCompatibility on raw JSON documents.
func CheckCompatibilityJSON(oldJSON, newJSON []byte) (compat.Issues, error) {
	oldSchema, err := LoadDocument(oldJSON)
	if err != nil {
		return nil, fmt.Errorf("old schema: %w", err)
	}
	newSchema, err := LoadDocument(newJSON)
	if err != nil {
		return nil, fmt.Errorf("new schema: %w", err)
	}
	return compat.Check(oldSchema, newSchema), nil
}

// ParseTree builds an editable tree from a schema, assigning random ids.
func ParseTree(schema map[string]any) *schematree.Node {
	return schematree.Parse(schema, schematree.UUIDSource{})
}

// SerializeTree rebuilds a schema document from a tree.
func SerializeTree(root *schematree.Node) map[string]any {
	return schematree.Serialize(root)
}

// Compile compiles a schema for validating config data.
func Compile(schema map[string]any) (*validate.Schema, error) {
	return validate.Compile(schema)
}
