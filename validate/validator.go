// Package validate compiles JSON Schema documents and validates config data
// against them.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// resourceURL is the location a document is registered under while compiling.
const resourceURL = "schema.json"

var printer = message.NewPrinter(language.English)

// CompileError reports a schema document that cannot be compiled.
type CompileError struct {
	Message string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return "schema cannot be compiled: " + e.Message
}

// Violation is one failed constraint on an instance.
type Violation struct {
	// Path is the JSON pointer to the failing location (e.g., "/config/timeout").
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error represents a validation failure.
type Error struct {
	Message    string
	Violations []Violation
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.Path, v.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// Schema is a compiled JSON Schema document.
type Schema struct {
	compiled *jsonschema.Schema
	raw      map[string]any
}

// Compile compiles a schema document. Documents without "$schema" are
// treated as draft-07.
func Compile(doc map[string]any) (*Schema, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, &CompileError{Message: fmt.Sprintf("failed to marshal schema: %v", err)}
	}
	return CompileJSON(data)
}

// CompileJSON compiles a schema from raw JSON.
func CompileJSON(schemaJSON []byte) (*Schema, error) {
	var raw map[string]any
	if err := json.Unmarshal(schemaJSON, &raw); err != nil {
		return nil, &CompileError{Message: fmt.Sprintf("failed to parse schema JSON: %v", err)}
	}

	// jsonschema.UnmarshalJSON keeps numbers as json.Number.
	schemaValue, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, &CompileError{Message: fmt.Sprintf("failed to unmarshal schema: %v", err)}
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	if err := compiler.AddResource(resourceURL, schemaValue); err != nil {
		return nil, &CompileError{Message: err.Error()}
	}

	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, &CompileError{Message: err.Error()}
	}

	return &Schema{compiled: compiled, raw: raw}, nil
}

// Check reports whether doc is a compilable schema.
func Check(doc map[string]any) error {
	_, err := Compile(doc)
	return err
}

// Raw returns the decoded schema document.
func (s *Schema) Raw() map[string]any {
	return s.raw
}

// Validate validates a JSON instance. Returns nil if validation succeeds.
func (s *Schema) Validate(instanceJSON []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(instanceJSON))
	if err != nil {
		return &Error{Message: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return s.validate(instance)
}

// ValidateValue validates an already-decoded value.
func (s *Schema) ValidateValue(instance any) error {
	data, err := json.Marshal(instance)
	if err != nil {
		return &Error{Message: fmt.Sprintf("instance cannot be encoded: %v", err)}
	}
	return s.Validate(data)
}

func (s *Schema) validate(instance any) error {
	err := s.compiled.Validate(instance)
	if err == nil {
		return nil
	}
	return convertError(err)
}

// convertError flattens a jsonschema error tree into its leaf violations.
func convertError(err error) *Error {
	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return &Error{Message: err.Error()}
	}

	out := &Error{Message: "instance does not conform to the schema"}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out.Violations = append(out.Violations, Violation{
				Path:    "/" + strings.Join(e.InstanceLocation, "/"),
				Message: e.ErrorKind.LocalizedString(printer),
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(validationErr)
	return out
}
