// Package ddbtest provides an in-memory stand-in for the DynamoDB API used by
// the store package. It understands the subset of expressions the store emits:
// conjunctions of "#name = :value" terms and attribute_exists /
// attribute_not_exists on a single attribute.
package ddbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BatchLimit is the number of items accepted per batch request.
const BatchLimit = 25

// Table is a single in-memory DynamoDB table with a composite key.
type Table struct {
	// Name is the table name requests must address.
	Name string

	// HashKey and RangeKey are the key attribute names.
	HashKey  string
	RangeKey string

	// Fail makes the named operation (e.g. "BatchWriteItem") return the error.
	Fail map[string]error

	// UnprocessedRounds makes the next N batch calls leave their last request
	// unprocessed.
	UnprocessedRounds int

	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	calls map[string]int
	sizes map[string][]int
}

// New creates an empty table keyed by hashKey and rangeKey.
func New(name, hashKey, rangeKey string) *Table {
	return &Table{
		Name:     name,
		HashKey:  hashKey,
		RangeKey: rangeKey,
		Fail:     map[string]error{},
		items:    map[string]map[string]types.AttributeValue{},
		calls:    map[string]int{},
		sizes:    map[string][]int{},
	}
}

// Calls returns how many times op was invoked.
func (t *Table) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// BatchSizes returns the number of requests carried by each call to op.
func (t *Table) BatchSizes(op string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.sizes[op]...)
}

// Len returns the number of stored items.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Seed stores items directly, bypassing conditions and counters.
func (t *Table) Seed(items ...map[string]types.AttributeValue) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range items {
		t.items[t.keyOf(item)] = clone(item)
	}
}

// Item returns a stored item by its key attributes, or nil.
func (t *Table) Item(key map[string]types.AttributeValue) map[string]types.AttributeValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	if item, ok := t.items[t.keyOf(key)]; ok {
		return clone(item)
	}
	return nil
}

func (t *Table) enter(op string, table *string) error {
	t.calls[op]++
	if err := t.Fail[op]; err != nil {
		return err
	}
	if table != nil && aws.ToString(table) != t.Name {
		return &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(table))}
	}
	return nil
}

// GetItem implements the DynamoDB GetItem call.
func (t *Table) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("GetItem", in.TableName); err != nil {
		return nil, err
	}

	item, ok := t.items[t.keyOf(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: clone(item)}, nil
}

// PutItem implements the DynamoDB PutItem call.
func (t *Table) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("PutItem", in.TableName); err != nil {
		return nil, err
	}

	key := t.keyOf(in.Item)
	if err := t.checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, t.items[key]); err != nil {
		return nil, err
	}
	t.items[key] = clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// DeleteItem implements the DynamoDB DeleteItem call.
func (t *Table) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("DeleteItem", in.TableName); err != nil {
		return nil, err
	}

	key := t.keyOf(in.Key)
	if err := t.checkCondition(in.ConditionExpression, in.ExpressionAttributeNames, t.items[key]); err != nil {
		return nil, err
	}
	delete(t.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Scan implements the DynamoDB Scan call. Limit bounds the number of items
// evaluated before the filter is applied, as DynamoDB does.
func (t *Table) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("Scan", in.TableName); err != nil {
		return nil, err
	}

	items, last, err := t.page(in.ExclusiveStartKey, in.Limit, nil, in.FilterExpression,
		in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dynamodb.ScanOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

// Query implements the DynamoDB Query call for equality key conditions.
func (t *Table) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("Query", in.TableName); err != nil {
		return nil, err
	}
	if in.KeyConditionExpression == nil {
		return nil, validationException("KeyConditionExpression is required")
	}

	items, last, err := t.page(in.ExclusiveStartKey, in.Limit, in.KeyConditionExpression, in.FilterExpression,
		in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	return &dynamodb.QueryOutput{
		Items:            items,
		Count:            int32(len(items)),
		LastEvaluatedKey: last,
	}, nil
}

// BatchGetItem implements the DynamoDB BatchGetItem call. Missing keys are
// omitted from the response.
func (t *Table) BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("BatchGetItem", nil); err != nil {
		return nil, err
	}

	req, ok := in.RequestItems[t.Name]
	if !ok || len(in.RequestItems) != 1 {
		return nil, &types.ResourceNotFoundException{Message: aws.String("unexpected tables in request")}
	}
	t.sizes["BatchGetItem"] = append(t.sizes["BatchGetItem"], len(req.Keys))
	if len(req.Keys) > BatchLimit {
		return nil, validationException(fmt.Sprintf("too many items requested: %d", len(req.Keys)))
	}

	seen := map[string]bool{}
	for _, k := range req.Keys {
		id := t.keyOf(k)
		if seen[id] {
			return nil, validationException("Provided list of item keys contains duplicates")
		}
		seen[id] = true
	}

	keys := req.Keys
	out := &dynamodb.BatchGetItemOutput{
		Responses:       map[string][]map[string]types.AttributeValue{t.Name: {}},
		UnprocessedKeys: map[string]types.KeysAndAttributes{},
	}
	if t.UnprocessedRounds > 0 && len(keys) > 0 {
		t.UnprocessedRounds--
		out.UnprocessedKeys[t.Name] = types.KeysAndAttributes{Keys: keys[len(keys)-1:]}
		keys = keys[:len(keys)-1]
	}

	for _, k := range keys {
		if item, ok := t.items[t.keyOf(k)]; ok {
			out.Responses[t.Name] = append(out.Responses[t.Name], clone(item))
		}
	}
	return out, nil
}

// BatchWriteItem implements the DynamoDB BatchWriteItem call.
func (t *Table) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.enter("BatchWriteItem", nil); err != nil {
		return nil, err
	}

	writes, ok := in.RequestItems[t.Name]
	if !ok || len(in.RequestItems) != 1 {
		return nil, &types.ResourceNotFoundException{Message: aws.String("unexpected tables in request")}
	}
	t.sizes["BatchWriteItem"] = append(t.sizes["BatchWriteItem"], len(writes))
	if len(writes) > BatchLimit {
		return nil, validationException(fmt.Sprintf("too many items in batch: %d", len(writes)))
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	if t.UnprocessedRounds > 0 && len(writes) > 0 {
		t.UnprocessedRounds--
		out.UnprocessedItems[t.Name] = writes[len(writes)-1:]
		writes = writes[:len(writes)-1]
	}

	for _, w := range writes {
		switch {
		case w.PutRequest != nil:
			t.items[t.keyOf(w.PutRequest.Item)] = clone(w.PutRequest.Item)
		case w.DeleteRequest != nil:
			delete(t.items, t.keyOf(w.DeleteRequest.Key))
		default:
			return nil, validationException("empty write request")
		}
	}
	return out, nil
}

// page walks items in key order starting after startKey, evaluating at most
// limit items.
func (t *Table) page(
	startKey map[string]types.AttributeValue,
	limit *int32,
	keyCond, filter *string,
	names map[string]string,
	values map[string]types.AttributeValue,
) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if len(startKey) > 0 {
		after := t.keyOf(startKey)
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	result := []map[string]types.AttributeValue{}
	evaluated := 0
	for i := start; i < len(keys); i++ {
		if limit != nil && *limit > 0 && evaluated >= int(*limit) {
			last := t.items[keys[i-1]]
			return result, map[string]types.AttributeValue{
				t.HashKey:  last[t.HashKey],
				t.RangeKey: last[t.RangeKey],
			}, nil
		}
		evaluated++

		item := t.items[keys[i]]
		if keyCond != nil {
			ok, err := matches(*keyCond, names, values, item)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
		}
		if filter != nil {
			ok, err := matches(*filter, names, values, item)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				continue
			}
		}
		result = append(result, clone(item))
	}
	return result, nil, nil
}

// checkCondition evaluates an existence condition against the current item.
func (t *Table) checkCondition(cond *string, names map[string]string, current map[string]types.AttributeValue) error {
	if cond == nil || *cond == "" {
		return nil
	}

	expr := strings.TrimSpace(*cond)
	var want bool
	switch {
	case strings.HasPrefix(expr, "attribute_exists(") && strings.HasSuffix(expr, ")"):
		want = true
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_exists("), ")")
	case strings.HasPrefix(expr, "attribute_not_exists(") && strings.HasSuffix(expr, ")"):
		want = false
		expr = strings.TrimSuffix(strings.TrimPrefix(expr, "attribute_not_exists("), ")")
	default:
		return validationException("unsupported condition: " + *cond)
	}

	attr, err := resolveName(expr, names)
	if err != nil {
		return err
	}
	_, exists := current[attr]
	if exists != want {
		return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	return nil
}

// matches evaluates a conjunction of equality terms against item.
func matches(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	for _, term := range strings.Split(expr, " AND ") {
		parts := strings.Split(strings.TrimSpace(term), " = ")
		if len(parts) != 2 {
			return false, validationException("unsupported expression term: " + term)
		}
		attr, err := resolveName(strings.TrimSpace(parts[0]), names)
		if err != nil {
			return false, err
		}
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, validationException("missing expression value: " + parts[1])
		}
		if !reflect.DeepEqual(item[attr], want) {
			return false, nil
		}
	}
	return true, nil
}

func resolveName(token string, names map[string]string) (string, error) {
	if !strings.HasPrefix(token, "#") {
		return token, nil
	}
	name, ok := names[token]
	if !ok {
		return "", validationException("missing expression attribute name: " + token)
	}
	return name, nil
}

func (t *Table) keyOf(item map[string]types.AttributeValue) string {
	return scalar(item[t.HashKey]) + "\x00" + scalar(item[t.RangeKey])
}

func scalar(v types.AttributeValue) string {
	switch v := v.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	default:
		return ""
	}
}

func clone(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// ErrValidation is matched by every request rejected as malformed.
var ErrValidation = errors.New("ddbtest: validation exception")

func validationException(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
