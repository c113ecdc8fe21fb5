// Package registry stores versioned JSON Schemas and the configs that
// conform to them.
//
// Schema updates are only accepted when they are backward compatible with
// the stored version (see package compat), and config data is validated
// against its schema before it is persisted.
package registry

import "time"

// Status is the lifecycle state shared by schemas and configs.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDisabled
}

// Schema is a named JSON Schema document.
type Schema struct {
	ID         string         `json:"id" dynamodbav:"id"`
	Name       string         `json:"name" dynamodbav:"name"`
	Status     Status         `json:"status" dynamodbav:"status"`
	SchemaData map[string]any `json:"schemaData" dynamodbav:"schemaData"`
	CreatedAt  time.Time      `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
}

// SchemaListItem is a Schema without its document, as returned by list
// operations.
type SchemaListItem struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Name      string    `json:"name" dynamodbav:"name"`
	Status    Status    `json:"status" dynamodbav:"status"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// ListItem returns the list projection of s.
func (s *Schema) ListItem() SchemaListItem {
	return SchemaListItem{
		ID:        s.ID,
		Name:      s.Name,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// Config is a named document validated against a Schema.
type Config struct {
	ID         string         `json:"id" dynamodbav:"id"`
	Name       string         `json:"name" dynamodbav:"name"`
	SchemaID   string         `json:"schemaId" dynamodbav:"schemaId"`
	Status     Status         `json:"status" dynamodbav:"status"`
	ConfigData map[string]any `json:"configData" dynamodbav:"configData"`
	CreatedAt  time.Time      `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt" dynamodbav:"updatedAt"`
}

// ConfigListItem is a Config without its data.
type ConfigListItem struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Name      string    `json:"name" dynamodbav:"name"`
	SchemaID  string    `json:"schemaId" dynamodbav:"schemaId"`
	Status    Status    `json:"status" dynamodbav:"status"`
	CreatedAt time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// ListItem returns the list projection of c.
func (c *Config) ListItem() ConfigListItem {
	return ConfigListItem{
		ID:        c.ID,
		Name:      c.Name,
		SchemaID:  c.SchemaID,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// CreateSchemaRequest is the input to Service.CreateSchema.
type CreateSchemaRequest struct {
	Name       string         `json:"name"`
	SchemaData map[string]any `json:"schemaData"`
}

// UpdateSchemaRequest is the input to Service.UpdateSchema. A nil Name
// keeps the current name.
type UpdateSchemaRequest struct {
	Name       *string        `json:"name,omitempty"`
	SchemaData map[string]any `json:"schemaData"`
}

// CreateConfigRequest is the input to Service.CreateConfig.
type CreateConfigRequest struct {
	Name       string         `json:"name"`
	SchemaID   string         `json:"schemaId"`
	ConfigData map[string]any `json:"configData"`
}

// UpdateConfigRequest is the input to Service.UpdateConfig. A nil Name
// keeps the current name.
type UpdateConfigRequest struct {
	Name       *string        `json:"name,omitempty"`
	SchemaID   string         `json:"schemaId"`
	ConfigData map[string]any `json:"configData"`
}

// ListQuery filters a list operation. Zero values mean "no filter".
//
// Name and ID match as case-insensitive substrings; Status and SchemaID
// match exactly. NextToken is an opaque cursor returned by a previous page.
type ListQuery struct {
	Status    Status
	Name      string
	ID        string
	SchemaID  string
	Limit     int
	NextToken string
}

// Page is one page of list results. NextToken is empty on the last page.
type Page[T any] struct {
	Items     []T    `json:"items"`
	NextToken string `json:"nextToken,omitempty"`
}
