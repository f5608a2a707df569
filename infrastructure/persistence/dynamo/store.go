// Package dynamo implements the ItemStore contract on DynamoDB. All logical
// tables share one physical table; CreateTable is a no-op because the table
// is provisioned by infrastructure tooling.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"libreria/infrastructure/persistence/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

// API is the subset of the DynamoDB client the adapter uses. Tests substitute
// a fake.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store is the DynamoDB-backed ItemStore.
type Store struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// New creates a DynamoDB adapter over the physical table.
func New(client API, tableName string, logger *zap.Logger) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// CreateTable is a no-op: the physical table already exists.
func (s *Store) CreateTable(_ context.Context, table string) error {
	s.logger.Debug("createTable ignored on DynamoDB backend", zap.String("table", table))
	return nil
}

// conditionFailed maps the backend's conditional-check failure to the
// contract's sentinel so callers never inspect AWS error shapes.
func conditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// Put inserts or overwrites the item, optionally guarded by an
// attribute_not_exists condition.
func (s *Store) Put(ctx context.Context, table string, item store.Item, opts *store.PutOptions) error {
	if item.PartitionKey() == "" {
		return fmt.Errorf("put: item requires a %s attribute", store.AttrPartitionKey)
	}

	record := item.Clone()
	record[store.AttrSortKey] = item.SortKey()

	av, err := attributevalue.MarshalMap(map[string]interface{}(record))
	if err != nil {
		return fmt.Errorf("marshal item for table %s: %w", table, err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	}
	if cond := buildNotExistsCondition(opts); cond != nil {
		input.ConditionExpression = aws.String(cond.Expression)
		input.ExpressionAttributeNames = cond.Names
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		if conditionFailed(err) {
			return fmt.Errorf("put %s/%s: %w", item.PartitionKey(), item.SortKey(), store.ErrConditionFailed)
		}
		return fmt.Errorf("put item in table %s: %w", table, err)
	}
	return nil
}

func marshalKey(key store.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.AttrPartitionKey: &types.AttributeValueMemberS{Value: key.PK},
		store.AttrSortKey:      &types.AttributeValueMemberS{Value: key.SortOrDefault()},
	}
}

// Get returns the item at the composite key, or absence.
func (s *Store) Get(ctx context.Context, table string, key store.Key) (store.Item, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       marshalKey(key),
	})
	if err != nil {
		return nil, false, fmt.Errorf("get item from table %s: %w", table, err)
	}
	if out.Item == nil {
		return nil, false, nil
	}

	item, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

// Delete removes the item at the key. Idempotent.
func (s *Store) Delete(ctx context.Context, table string, key store.Key) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       marshalKey(key),
	}); err != nil {
		return fmt.Errorf("delete item from table %s: %w", table, err)
	}
	return nil
}

// Scan reads the whole table, following continuation tokens until the pages
// are exhausted or the limit is met.
func (s *Store) Scan(ctx context.Context, table string, limit int32) ([]store.Item, error) {
	var items []store.Item
	var startKey map[string]types.AttributeValue

	for {
		input := &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		}
		if limit > 0 {
			input.Limit = aws.Int32(limit)
		}

		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan table %s: %w", table, err)
		}

		page, err := unmarshalItems(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)

		if limit > 0 && int32(len(items)) >= limit {
			return items[:limit], nil
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Query returns all items matching q, draining pagination unless a limit is
// supplied.
func (s *Store) Query(ctx context.Context, table string, q store.Query) ([]store.Item, error) {
	if q.PartitionKey == "" {
		return nil, store.ErrMissingPartitionKey
	}

	names := map[string]string{"#pk": store.AttrPartitionKey}
	values := map[string]types.AttributeValue{
		":pk": &types.AttributeValueMemberS{Value: q.PartitionKey},
	}
	keyCondition := "#pk = :pk"

	switch {
	case q.SortKeyEquals != "":
		names["#sk"] = store.AttrSortKey
		values[":sk"] = &types.AttributeValueMemberS{Value: q.SortKeyEquals}
		keyCondition += " AND #sk = :sk"
	case q.SortKeyPrefix != "":
		names["#sk"] = store.AttrSortKey
		values[":skpref"] = &types.AttributeValueMemberS{Value: q.SortKeyPrefix}
		keyCondition += " AND begins_with(#sk, :skpref)"
	}

	var items []store.Item
	var startKey map[string]types.AttributeValue

	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    aws.String(keyCondition),
			ExpressionAttributeNames:  names,
			ExpressionAttributeValues: values,
			ExclusiveStartKey:         startKey,
		}
		if q.Limit > 0 {
			input.Limit = aws.Int32(q.Limit)
		}

		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query table %s: %w", table, err)
		}

		page, err := unmarshalItems(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)

		if q.Limit > 0 && int32(len(items)) >= q.Limit {
			return items[:q.Limit], nil
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// RawQuery describes an arbitrary index query for range conditions the
// uniform contract cannot express.
type RawQuery struct {
	IndexName    string
	KeyCondition expression.KeyConditionBuilder
	Filter       *expression.ConditionBuilder
	Limit        int32
}

// QueryRaw runs a query against an arbitrary index with a caller-supplied
// condition, draining pagination unless a limit is supplied.
func (s *Store) QueryRaw(ctx context.Context, q RawQuery) ([]store.Item, error) {
	builder := expression.NewBuilder().WithKeyCondition(q.KeyCondition)
	if q.Filter != nil {
		builder = builder.WithFilter(*q.Filter)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build raw query expression: %w", err)
	}

	var items []store.Item
	var startKey map[string]types.AttributeValue

	for {
		input := &dynamodb.QueryInput{
			TableName:                 aws.String(s.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         startKey,
		}
		if q.IndexName != "" {
			input.IndexName = aws.String(q.IndexName)
		}
		if q.Limit > 0 {
			input.Limit = aws.Int32(q.Limit)
		}

		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("raw query: %w", err)
		}

		page, err := unmarshalItems(out.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)

		if q.Limit > 0 && int32(len(items)) >= q.Limit {
			return items[:q.Limit], nil
		}
		if out.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// Update compiles the patch into an update expression and applies it. Key
// attributes are stripped from the patch first: the composite key is
// immutable. A missing item is absence, not an error; the attribute_exists
// guard stops UpdateItem from upserting.
func (s *Store) Update(ctx context.Context, table string, key store.Key, patch store.Item) (store.Item, bool, error) {
	stripped := patch.Clone()
	delete(stripped, store.AttrPartitionKey)
	delete(stripped, store.AttrSortKey)

	compiled, err := buildUpdateExpression(stripped)
	if err != nil {
		return nil, false, err
	}
	if compiled == nil {
		return s.Get(ctx, table, key)
	}

	names := make(map[string]string, len(compiled.Names)+1)
	for k, v := range compiled.Names {
		names[k] = v
	}
	names["#pk"] = store.AttrPartitionKey

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       marshalKey(key),
		UpdateExpression:          aws.String(compiled.Expression),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: compiled.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if conditionFailed(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("update item in table %s: %w", table, err)
	}

	item, err := unmarshalItem(out.Attributes)
	if err != nil {
		return nil, false, err
	}
	return item, true, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (store.Item, error) {
	var m map[string]interface{}
	if err := attributevalue.UnmarshalMap(av, &m); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return store.Item(m), nil
}

func unmarshalItems(avs []map[string]types.AttributeValue) ([]store.Item, error) {
	items := make([]store.Item, 0, len(avs))
	for _, av := range avs {
		item, err := unmarshalItem(av)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
