package registry

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nbcuni/pokey/compat"
	"github.com/nbcuni/pokey/validate"
)

const (
	// DefaultPageLimit is used when a ListQuery has no limit.
	DefaultPageLimit = 20
	// MaxPageLimit caps the page size of list operations.
	MaxPageLimit = 100
	// MinSearchLength is the shortest name or id substring filter that is
	// executed; shorter filters yield an empty page.
	MinSearchLength = 3
)

// Service implements the schema and config operations on top of a Store.
type Service struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides the generator used for record ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService returns a Service backed by store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSchema stores a new active schema. The document is opened up with
// validate.AllowAdditionalProperties before it is compiled and saved.
func (s *Service) CreateSchema(ctx context.Context, req CreateSchemaRequest) (*Schema, error) {
	if req.Name == "" || req.SchemaData == nil {
		return nil, newError(CodeBadRequest, "missing required fields: name, schemaData")
	}
	name := strings.ToLower(req.Name)

	data := validate.AllowAdditionalProperties(req.SchemaData)
	if err := validate.Check(data); err != nil {
		s.logger.ErrorContext(ctx, "schema data cannot be compiled", "name", name, "err", err)
		return nil, &Error{Code: CodeSchemaInvalid, Message: "schema data cannot be compiled", Details: err.Error()}
	}

	if err := s.ensureSchemaNameFree(ctx, name); err != nil {
		return nil, err
	}

	now := s.now()
	schema := &Schema{
		ID:         s.newID(),
		Name:       name,
		Status:     StatusActive,
		SchemaData: data,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutSchema(ctx, schema); err != nil {
		return nil, s.internal(ctx, "failed to create schema", err)
	}
	s.logger.InfoContext(ctx, "schema created", "id", schema.ID, "name", schema.Name)
	return schema, nil
}

// UpdateSchema replaces the document of a schema and optionally renames it.
// The update is rejected with CodeSchemaIncompatible, and nothing is
// persisted, when compat.Check reports any issue.
func (s *Service) UpdateSchema(ctx context.Context, id string, req UpdateSchemaRequest) (*Schema, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	if req.SchemaData == nil {
		return nil, newError(CodeBadRequest, "missing required field: schemaData")
	}

	existing, err := s.loadSchema(ctx, id)
	if err != nil {
		return nil, err
	}

	data := validate.AllowAdditionalProperties(req.SchemaData)
	if err := validate.Check(data); err != nil {
		s.logger.ErrorContext(ctx, "updated schema data cannot be compiled", "id", id, "err", err)
		return nil, &Error{Code: CodeSchemaInvalid, Message: "schema data cannot be compiled", Details: err.Error()}
	}

	if issues := compat.Check(existing.SchemaData, data); len(issues) > 0 {
		s.logger.WarnContext(ctx, "incompatible schema update rejected", "id", id, "issues", len(issues))
		return nil, &Error{
			Code:    CodeSchemaIncompatible,
			Message: "schema update is not backward-compatible",
			Details: issues,
		}
	}

	name := existing.Name
	if req.Name != nil {
		name = strings.ToLower(*req.Name)
	}
	if name != existing.Name {
		if err := s.ensureSchemaNameFree(ctx, name); err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.Name = name
	updated.SchemaData = data
	updated.UpdatedAt = s.now()
	if err := s.store.PutSchema(ctx, &updated); err != nil {
		return nil, s.internal(ctx, "failed to update schema", err)
	}
	s.logger.InfoContext(ctx, "schema updated", "id", id, "name", name)
	return &updated, nil
}

// GetSchema returns the schema with the given id, whatever its status.
func (s *Service) GetSchema(ctx context.Context, id string) (*Schema, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	return s.loadSchema(ctx, id)
}

// ListSchemas returns one page of schemas matching q.
func (s *Service) ListSchemas(ctx context.Context, q ListQuery) (Page[SchemaListItem], error) {
	q, ok, err := normalizeQuery(q)
	if err != nil || !ok {
		return Page[SchemaListItem]{Items: []SchemaListItem{}}, err
	}
	page, err := s.store.ListSchemas(ctx, q)
	if err != nil {
		return Page[SchemaListItem]{}, s.internal(ctx, "failed to list schemas", err)
	}
	if page.Items == nil {
		page.Items = []SchemaListItem{}
	}
	return page, nil
}

// DisableSchema marks a schema disabled. Configs cannot be created or
// updated against a disabled schema.
func (s *Service) DisableSchema(ctx context.Context, id string) (*Schema, error) {
	return s.setSchemaStatus(ctx, id, StatusDisabled)
}

// ActivateSchema marks a schema active.
func (s *Service) ActivateSchema(ctx context.Context, id string) (*Schema, error) {
	return s.setSchemaStatus(ctx, id, StatusActive)
}

// CreateConfig stores a new active config after validating its data
// against the referenced schema.
func (s *Service) CreateConfig(ctx context.Context, req CreateConfigRequest) (*Config, error) {
	if req.Name == "" || req.SchemaID == "" || req.ConfigData == nil {
		return nil, newError(CodeBadRequest, "missing required fields: name, schemaId, configData")
	}
	name := strings.ToLower(req.Name)

	if err := s.validateConfigData(ctx, req.SchemaID, req.ConfigData); err != nil {
		return nil, err
	}
	if err := s.ensureConfigNameFree(ctx, name); err != nil {
		return nil, err
	}

	now := s.now()
	cfg := &Config{
		ID:         s.newID(),
		Name:       name,
		SchemaID:   req.SchemaID,
		Status:     StatusActive,
		ConfigData: req.ConfigData,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutConfig(ctx, cfg); err != nil {
		return nil, s.internal(ctx, "failed to create config", err)
	}
	s.logger.InfoContext(ctx, "config created", "id", cfg.ID, "name", cfg.Name, "schemaId", cfg.SchemaID)
	return cfg, nil
}

// UpdateConfig replaces the data of a config, which may move to another
// schema, and optionally renames it.
func (s *Service) UpdateConfig(ctx context.Context, id string, req UpdateConfigRequest) (*Config, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	if req.SchemaID == "" || req.ConfigData == nil {
		return nil, newError(CodeBadRequest, "missing required fields: schemaId, configData")
	}

	existing, err := s.loadConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validateConfigData(ctx, req.SchemaID, req.ConfigData); err != nil {
		return nil, err
	}

	name := existing.Name
	if req.Name != nil {
		name = strings.ToLower(*req.Name)
	}
	if name != existing.Name {
		if err := s.ensureConfigNameFree(ctx, name); err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.Name = name
	updated.SchemaID = req.SchemaID
	updated.ConfigData = req.ConfigData
	updated.UpdatedAt = s.now()
	if err := s.store.PutConfig(ctx, &updated); err != nil {
		return nil, s.internal(ctx, "failed to update config", err)
	}
	s.logger.InfoContext(ctx, "config updated", "id", id, "name", name)
	return &updated, nil
}

// GetConfig returns the config with the given id. Disabled configs are
// reported as not found unless includeDisabled is set.
func (s *Service) GetConfig(ctx context.Context, id string, includeDisabled bool) (*Config, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	cfg, err := s.loadConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if cfg.Status == StatusDisabled && !includeDisabled {
		return nil, newError(CodeConfigNotFound, "configuration not found")
	}
	return cfg, nil
}

// ListConfigs returns one page of configs matching q.
func (s *Service) ListConfigs(ctx context.Context, q ListQuery) (Page[ConfigListItem], error) {
	q, ok, err := normalizeQuery(q)
	if err != nil || !ok {
		return Page[ConfigListItem]{Items: []ConfigListItem{}}, err
	}
	page, err := s.store.ListConfigs(ctx, q)
	if err != nil {
		return Page[ConfigListItem]{}, s.internal(ctx, "failed to list configs", err)
	}
	if page.Items == nil {
		page.Items = []ConfigListItem{}
	}
	return page, nil
}

// DisableConfig marks a config disabled.
func (s *Service) DisableConfig(ctx context.Context, id string) (*Config, error) {
	return s.setConfigStatus(ctx, id, StatusDisabled)
}

// ActivateConfig marks a config active.
func (s *Service) ActivateConfig(ctx context.Context, id string) (*Config, error) {
	return s.setConfigStatus(ctx, id, StatusActive)
}

func (s *Service) setSchemaStatus(ctx context.Context, id string, status Status) (*Schema, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	existing, err := s.loadSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *existing
	updated.Status = status
	updated.UpdatedAt = s.now()
	if err := s.store.PutSchema(ctx, &updated); err != nil {
		return nil, s.internal(ctx, "failed to set schema status", err)
	}
	s.logger.InfoContext(ctx, "schema status changed", "id", id, "status", status)
	return &updated, nil
}

func (s *Service) setConfigStatus(ctx context.Context, id string, status Status) (*Config, error) {
	if id == "" {
		return nil, newError(CodeBadRequest, "missing path parameter: id")
	}
	existing, err := s.loadConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *existing
	updated.Status = status
	updated.UpdatedAt = s.now()
	if err := s.store.PutConfig(ctx, &updated); err != nil {
		return nil, s.internal(ctx, "failed to set config status", err)
	}
	s.logger.InfoContext(ctx, "config status changed", "id", id, "status", status)
	return &updated, nil
}

// validateConfigData checks that the schema exists, is active, and accepts data.
func (s *Service) validateConfigData(ctx context.Context, schemaID string, data map[string]any) error {
	schema, err := s.loadSchema(ctx, schemaID)
	if err != nil {
		return err
	}
	if schema.Status != StatusActive {
		return newError(CodeSchemaDisabled, "schema is not active")
	}

	compiled, err := validate.Compile(schema.SchemaData)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored schema cannot be compiled", "schemaId", schemaID, "err", err)
		return newError(CodeSchemaInvalid, "stored schema is malformed")
	}

	if err := compiled.ValidateValue(data); err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			return &Error{
				Code:    CodeConfigDataInvalid,
				Message: "configData does not conform to the schema",
				Details: verr.Violations,
			}
		}
		return s.internal(ctx, "failed to validate config data", err)
	}
	return nil
}

func (s *Service) loadSchema(ctx context.Context, id string) (*Schema, error) {
	schema, err := s.store.GetSchema(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(CodeSchemaNotFound, "schema not found")
	}
	if err != nil {
		return nil, s.internal(ctx, "failed to load schema", err)
	}
	return schema, nil
}

func (s *Service) loadConfig(ctx context.Context, id string) (*Config, error) {
	cfg, err := s.store.GetConfig(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, newError(CodeConfigNotFound, "configuration not found")
	}
	if err != nil {
		return nil, s.internal(ctx, "failed to load config", err)
	}
	return cfg, nil
}

func (s *Service) ensureSchemaNameFree(ctx context.Context, name string) error {
	_, err := s.store.FindSchemaByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return s.internal(ctx, "failed to look up schema name", err)
	default:
		return newError(CodeSchemaNameConflict, "a schema with this name already exists")
	}
}

func (s *Service) ensureConfigNameFree(ctx context.Context, name string) error {
	_, err := s.store.FindConfigByName(ctx, name)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return s.internal(ctx, "failed to look up config name", err)
	default:
		return newError(CodeConfigNameConflict, "a configuration with this name already exists")
	}
}

// internal logs err and hides it behind CodeInternal.
func (s *Service) internal(ctx context.Context, msg string, err error) *Error {
	s.logger.ErrorContext(ctx, msg, "code", CodeInternal, "err", err)
	return newError(CodeInternal, "internal server error")
}

// normalizeQuery clamps the limit and validates the status filter. It
// reports ok=false when a substring filter is too short to run.
func normalizeQuery(q ListQuery) (ListQuery, bool, error) {
	if q.Status != "" && !q.Status.Valid() {
		return q, false, newError(CodeBadRequest, "invalid status filter")
	}
	if tooShort(q.Name) || tooShort(q.ID) {
		return q, false, nil
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultPageLimit
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxPageLimit:
		q.Limit = MaxPageLimit
	}
	q.Name = strings.ToLower(q.Name)
	q.ID = strings.ToLower(q.ID)
	return q, true, nil
}

func tooShort(filter string) bool {
	return filter != "" && len(filter) < MinSearchLength
}
