package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbcuni/pokey/registry"
)

// fakeDynamo keeps items per table keyed by id. Query matches on the name
// attribute; Scan pages in id order and records its input without
// evaluating filters.
type fakeDynamo struct {
	tables   map[string]map[string]map[string]types.AttributeValue
	lastScan *dynamodb.ScanInput
	failWith error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func stringAttr(item map[string]types.AttributeValue, key string) string {
	if s, ok := item[key].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	item := f.tables[*in.TableName][stringAttr(in.Key, "id")]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tables[*in.TableName]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		f.tables[*in.TableName] = t
	}
	t[stringAttr(in.Item, "id")] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var want string
	for _, v := range in.ExpressionAttributeValues {
		want = v.(*types.AttributeValueMemberS).Value
	}
	out := &dynamodb.QueryOutput{}
	for _, item := range f.tables[*in.TableName] {
		if stringAttr(item, "name") == want {
			out.Items = append(out.Items, map[string]types.AttributeValue{"id": item["id"]})
		}
	}
	return out, nil
}

func (f *fakeDynamo) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.lastScan = in

	t := f.tables[*in.TableName]
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := stringAttr(in.ExclusiveStartKey, "id")
	out := &dynamodb.ScanOutput{}
	for _, id := range ids {
		if start != "" && id <= start {
			continue
		}
		if in.Limit != nil && len(out.Items) == int(*in.Limit) {
			out.LastEvaluatedKey = idKey(stringAttr(out.Items[len(out.Items)-1], "id"))
			break
		}
		out.Items = append(out.Items, t[id])
	}
	return out, nil
}

func newTestStore(t *testing.T) (*Store, *fakeDynamo) {
	t.Helper()
	fake := newFakeDynamo()
	return NewWithClient(fake, Options{}), fake
}

func TestSchemaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := &registry.Schema{
		ID:     "s-1",
		Name:   "billing",
		Status: registry.StatusActive,
		SchemaData: map[string]any{
			"type":     "object",
			"required": []any{"plan"},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	require.NoError(t, s.PutSchema(ctx, in))
	assert.Contains(t, fake.tables, DefaultSchemasTable)

	got, err := s.GetSchema(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, in.Status, got.Status)
	assert.Equal(t, in.SchemaData, got.SchemaData)
	assert.True(t, ts.Equal(got.CreatedAt))

	byName, err := s.FindSchemaByName(ctx, "billing")
	require.NoError(t, err)
	assert.Equal(t, "s-1", byName.ID)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	in := &registry.Config{
		ID:         "c-1",
		Name:       "prod",
		SchemaID:   "s-1",
		Status:     registry.StatusDisabled,
		ConfigData: map[string]any{"retries": float64(3)},
	}
	require.NoError(t, s.PutConfig(ctx, in))
	assert.Contains(t, fake.tables, DefaultConfigsTable)

	got, err := s.FindConfigByName(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, in.ConfigData, got.ConfigData)
	assert.Equal(t, registry.StatusDisabled, got.Status)
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.GetSchema(ctx, "nope")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = s.FindConfigByName(ctx, "nope")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestClientErrorsAreWrapped(t *testing.T) {
	s, fake := newTestStore(t)
	boom := errors.New("throttled")
	fake.failWith = boom

	_, err := s.GetConfig(context.Background(), "c-1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, registry.ErrNotFound)
}

func TestListPagesWithCursor(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.PutSchema(ctx, &registry.Schema{
			ID:     fmt.Sprintf("s-%d", i),
			Name:   fmt.Sprintf("schema-%d", i),
			Status: registry.StatusActive,
		}))
	}

	first, err := s.ListSchemas(ctx, registry.ListQuery{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.NextToken)

	second, err := s.ListSchemas(ctx, registry.ListQuery{Limit: 2, NextToken: first.NextToken})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "s-2", second.Items[0].ID)
	assert.Empty(t, second.NextToken)
}

func TestListBuildsFilterExpression(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStore(t)

	_, err := s.ListConfigs(ctx, registry.ListQuery{
		Name:     "prod",
		Status:   registry.StatusActive,
		SchemaID: "s-1",
		Limit:    10,
	})
	require.NoError(t, err)

	in := fake.lastScan
	require.NotNil(t, in)
	assert.Equal(t, DefaultConfigsTable, aws.ToString(in.TableName))
	assert.Equal(t, int32(10), aws.ToInt32(in.Limit))
	require.NotNil(t, in.FilterExpression)
	assert.Contains(t, aws.ToString(in.FilterExpression), "contains")

	var values []string
	for _, v := range in.ExpressionAttributeValues {
		values = append(values, v.(*types.AttributeValueMemberS).Value)
	}
	assert.ElementsMatch(t, []string{"prod", "active", "s-1"}, values)

	var names []string
	for _, n := range in.ExpressionAttributeNames {
		names = append(names, n)
	}
	assert.Subset(t, names, []string{"name", "status", "schemaId", "id"})
}

func TestListWithoutFilters(t *testing.T) {
	s, fake := newTestStore(t)

	page, err := s.ListSchemas(context.Background(), registry.ListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Nil(t, fake.lastScan.FilterExpression)
	assert.Nil(t, fake.lastScan.Limit)
}
