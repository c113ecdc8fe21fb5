// Package dynamostore implements registry.Store on DynamoDB.
//
// Each record kind lives in its own table keyed by "id", with a global
// secondary index on "name" used for uniqueness lookups.
package dynamostore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nbcuni/pokey/registry"
)

const (
	DefaultSchemasTable = "Schemas"
	DefaultConfigsTable = "Configurations"
	DefaultRegion       = "us-east-1"

	schemasNameIndex = "schemas-name-index"
	configsNameIndex = "configs-name-index"
)

// API is the subset of the DynamoDB client used by the store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Options configures the store. Empty fields take the package defaults.
type Options struct {
	Region       string
	Endpoint     string // e.g. http://localhost:8000 for DynamoDB Local
	SchemasTable string
	ConfigsTable string
}

func (o Options) withDefaults() Options {
	if o.Region == "" {
		o.Region = DefaultRegion
	}
	if o.SchemasTable == "" {
		o.SchemasTable = DefaultSchemasTable
	}
	if o.ConfigsTable == "" {
		o.ConfigsTable = DefaultConfigsTable
	}
	return o
}

// Store is a registry.Store backed by DynamoDB.
type Store struct {
	client       API
	schemasTable string
	configsTable string
}

var _ registry.Store = (*Store)(nil)

// New builds a client from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, opts Options) *Store {
	opts = opts.withDefaults()
	return &Store{
		client:       client,
		schemasTable: opts.SchemasTable,
		configsTable: opts.ConfigsTable,
	}
}

// Close is a no-op; the AWS client holds no resources that need releasing.
func (s *Store) Close() error {
	return nil
}

func (s *Store) GetSchema(ctx context.Context, id string) (*registry.Schema, error) {
	var out registry.Schema
	if err := s.get(ctx, s.schemasTable, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutSchema(ctx context.Context, schema *registry.Schema) error {
	return s.put(ctx, s.schemasTable, schema)
}

func (s *Store) FindSchemaByName(ctx context.Context, name string) (*registry.Schema, error) {
	id, err := s.lookupName(ctx, s.schemasTable, schemasNameIndex, name)
	if err != nil {
		return nil, err
	}
	return s.GetSchema(ctx, id)
}

func (s *Store) ListSchemas(ctx context.Context, q registry.ListQuery) (registry.Page[registry.SchemaListItem], error) {
	return scan[registry.SchemaListItem](ctx, s.client, s.schemasTable, q,
		"id", "name", "status", "createdAt", "updatedAt")
}

func (s *Store) GetConfig(ctx context.Context, id string) (*registry.Config, error) {
	var out registry.Config
	if err := s.get(ctx, s.configsTable, id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) PutConfig(ctx context.Context, cfg *registry.Config) error {
	return s.put(ctx, s.configsTable, cfg)
}

func (s *Store) FindConfigByName(ctx context.Context, name string) (*registry.Config, error) {
	id, err := s.lookupName(ctx, s.configsTable, configsNameIndex, name)
	if err != nil {
		return nil, err
	}
	return s.GetConfig(ctx, id)
}

func (s *Store) ListConfigs(ctx context.Context, q registry.ListQuery) (registry.Page[registry.ConfigListItem], error) {
	return scan[registry.ConfigListItem](ctx, s.client, s.configsTable, q,
		"id", "name", "schemaId", "status", "createdAt", "updatedAt")
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (s *Store) get(ctx context.Context, table, id string, out any) error {
	res, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", table, id, err)
	}
	if res.Item == nil {
		return registry.ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshal %s/%s: %w", table, id, err)
	}
	return nil
}

func (s *Store) put(ctx context.Context, table string, record any) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", table, err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put %s record: %w", table, err)
	}
	return nil
}

// lookupName queries the name index and returns the id of the match.
func (s *Store) lookupName(ctx context.Context, table, index, name string) (string, error) {
	keyCond := expression.Key("name").Equal(expression.Value(name))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithProjection(expression.NamesList(expression.Name("id"))).
		Build()
	if err != nil {
		return "", fmt.Errorf("build name query: %w", err)
	}

	res, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return "", fmt.Errorf("query %s: %w", index, err)
	}
	if len(res.Items) == 0 {
		return "", registry.ErrNotFound
	}

	var hit struct {
		ID string `dynamodbav:"id"`
	}
	if err := attributevalue.UnmarshalMap(res.Items[0], &hit); err != nil {
		return "", fmt.Errorf("unmarshal %s hit: %w", index, err)
	}
	return hit.ID, nil
}

// filterCondition translates q into a scan filter. ok is false when q has
// no filters.
func filterCondition(q registry.ListQuery) (cond expression.ConditionBuilder, ok bool) {
	var conds []expression.ConditionBuilder
	if q.Name != "" {
		conds = append(conds, expression.Contains(expression.Name("name"), q.Name))
	}
	if q.ID != "" {
		conds = append(conds, expression.Contains(expression.Name("id"), q.ID))
	}
	if q.Status != "" {
		conds = append(conds, expression.Name("status").Equal(expression.Value(string(q.Status))))
	}
	if q.SchemaID != "" {
		conds = append(conds, expression.Name("schemaId").Equal(expression.Value(q.SchemaID)))
	}
	if len(conds) == 0 {
		return cond, false
	}
	cond = conds[0]
	for _, c := range conds[1:] {
		cond = cond.And(c)
	}
	return cond, true
}

// scan runs one page of a filtered table scan. DynamoDB applies the limit
// before the filter, so a page may hold fewer items than requested while a
// cursor is still returned.
func scan[I any](ctx context.Context, client API, table string, q registry.ListQuery, fields ...string) (registry.Page[I], error) {
	page := registry.Page[I]{Items: []I{}}

	names := make([]expression.NameBuilder, 0, len(fields))
	for _, f := range fields {
		names = append(names, expression.Name(f))
	}
	b := expression.NewBuilder().WithProjection(expression.NamesList(names[0], names[1:]...))
	if cond, ok := filterCondition(q); ok {
		b = b.WithFilter(cond)
	}
	expr, err := b.Build()
	if err != nil {
		return page, fmt.Errorf("build scan expression: %w", err)
	}

	in := &dynamodb.ScanInput{
		TableName:                 aws.String(table),
		ProjectionExpression:      expr.Projection(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if q.Limit > 0 {
		in.Limit = aws.Int32(int32(q.Limit))
	}
	if start := decodeCursor(q.NextToken); start != "" {
		in.ExclusiveStartKey = idKey(start)
	}

	res, err := client.Scan(ctx, in)
	if err != nil {
		return page, fmt.Errorf("scan %s: %w", table, err)
	}
	if err := attributevalue.UnmarshalListOfMaps(res.Items, &page.Items); err != nil {
		return page, fmt.Errorf("unmarshal %s page: %w", table, err)
	}
	if page.Items == nil {
		page.Items = []I{}
	}

	if res.LastEvaluatedKey != nil {
		token, err := encodeCursor(res.LastEvaluatedKey)
		if err != nil {
			return page, err
		}
		page.NextToken = token
	}
	return page, nil
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	id, ok := key["id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("last evaluated key has no string id")
	}
	return base64.RawURLEncoding.EncodeToString([]byte(id.Value)), nil
}

// decodeCursor treats a malformed token as the start of the listing.
func decodeCursor(token string) string {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return ""
	}
	return string(b)
}
