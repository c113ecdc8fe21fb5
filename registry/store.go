package registry

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by a Store when no record matches.
var ErrNotFound = errors.New("record not found")

// Store persists schemas and configs. Implementations live under store/.
//
// Names are unique per record kind and are stored lower-cased; FindXByName
// performs an exact match. Put operations replace the whole record and keep
// any name index in step with renames.
type Store interface {
	GetSchema(ctx context.Context, id string) (*Schema, error)
	PutSchema(ctx context.Context, s *Schema) error
	FindSchemaByName(ctx context.Context, name string) (*Schema, error)
	ListSchemas(ctx context.Context, q ListQuery) (Page[SchemaListItem], error)

	GetConfig(ctx context.Context, id string) (*Config, error)
	PutConfig(ctx context.Context, c *Config) error
	FindConfigByName(ctx context.Context, name string) (*Config, error)
	ListConfigs(ctx context.Context, q ListQuery) (Page[ConfigListItem], error)

	Close() error
}

// MatchSchema reports whether s passes the filters of q. Stores that
// filter in memory share it.
func MatchSchema(q ListQuery, s SchemaListItem) bool {
	return matchCommon(q, s.ID, s.Name, s.Status)
}

// MatchConfig reports whether c passes the filters of q.
func MatchConfig(q ListQuery, c ConfigListItem) bool {
	if q.SchemaID != "" && c.SchemaID != q.SchemaID {
		return false
	}
	return matchCommon(q, c.ID, c.Name, c.Status)
}

func matchCommon(q ListQuery, id, name string, status Status) bool {
	if q.Status != "" && status != q.Status {
		return false
	}
	if q.Name != "" && !strings.Contains(name, strings.ToLower(q.Name)) {
		return false
	}
	if q.ID != "" && !strings.Contains(id, strings.ToLower(q.ID)) {
		return false
	}
	return true
}
