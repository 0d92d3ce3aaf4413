package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Pages is a lazy sequence of result pages over the collection. Each call to
// NextPage issues one backend request; Cursor captures the position so the
// sequence can be resumed later with Store.ScanFrom.
type Pages struct {
	store    *Store
	scan     *dynamodb.ScanInput
	query    *dynamodb.QueryInput
	startKey map[string]types.AttributeValue
	started  bool
	err      error
}

// HasMorePages reports whether NextPage may return more results.
func (p *Pages) HasMorePages() bool {
	if p.err != nil {
		return false
	}
	return !p.started || len(p.startKey) > 0
}

// NextPage fetches the next page. A page may be empty when the filter rejected
// every item the backend evaluated; keep going while HasMorePages is true.
func (p *Pages) NextPage(ctx context.Context) ([]Ride, error) {
	if p.err != nil {
		return nil, p.err
	}
	if !p.HasMorePages() {
		return nil, nil
	}

	var (
		raw  []map[string]types.AttributeValue
		last map[string]types.AttributeValue
	)
	if p.query != nil {
		p.query.ExclusiveStartKey = p.startKey
		out, err := p.store.client.Query(ctx, p.query)
		if err != nil {
			p.err = serverError("query", err)
			return nil, p.err
		}
		raw, last = out.Items, out.LastEvaluatedKey
	} else {
		p.scan.ExclusiveStartKey = p.startKey
		out, err := p.store.client.Scan(ctx, p.scan)
		if err != nil {
			p.err = serverError("scan", err)
			return nil, p.err
		}
		raw, last = out.Items, out.LastEvaluatedKey
	}

	rides := make([]Ride, 0, len(raw))
	for _, item := range raw {
		var r Ride
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			p.err = serverError("scan", fmt.Errorf("unmarshal ride: %w", err))
			return nil, p.err
		}
		rides = append(rides, r)
	}

	p.started = true
	p.startKey = last
	return rides, nil
}

// Cursor returns an opaque token for the position after the last fetched page.
// It is empty before the first page and once the sequence is exhausted.
func (p *Pages) Cursor() string {
	if len(p.startKey) == 0 {
		return ""
	}
	cursor, err := encodeCursor(p.startKey)
	if err != nil {
		return ""
	}
	return cursor
}

// Err returns the error that stopped the sequence, if any.
func (p *Pages) Err() error {
	return p.err
}

// Scan returns a page sequence over the rides matching f.
func (s *Store) Scan(ctx context.Context, f Filter) *Pages {
	return s.ScanFrom(ctx, f, "")
}

// ScanFrom returns a page sequence over the rides matching f, resumed from a
// cursor previously returned by Pages.Cursor. An empty cursor starts over.
func (s *Store) ScanFrom(_ context.Context, f Filter, cursor string) *Pages {
	p := &Pages{store: s}

	if cursor != "" {
		key, err := decodeCursor(cursor)
		if err != nil {
			p.err = &ValidationError{Message: ErrInvalidCursor.Error()}
			return p
		}
		p.startKey = key
		p.started = true
	}

	var limit *int32
	if s.config.PageSize > 0 {
		limit = aws.Int32(s.config.PageSize)
	}

	entity := condition{attr: AttrEntity, value: stringValue(s.config.Entity)}
	terms := filterTerms(f)

	if s.config.QueryPartition {
		// id is the sort key; everything else is filtered after the read.
		key := equalityExpr(entity, terms[0])
		p.query = &dynamodb.QueryInput{
			TableName:                 aws.String(s.config.Table),
			KeyConditionExpression:    aws.String(key.Expr),
			ExpressionAttributeNames:  key.Names,
			ExpressionAttributeValues: key.Values,
			Limit:                     limit,
		}
		if filter := equalityExpr(terms[1:]...); filter != nil {
			p.query.FilterExpression = aws.String(filter.Expr)
			p.query.ExpressionAttributeNames = mergeExprNames(key.Names, filter.Names)
			p.query.ExpressionAttributeValues = mergeExprValues(key.Values, filter.Values)
		}
		return p
	}

	filter := equalityExpr(append([]condition{entity}, terms...)...)
	p.scan = &dynamodb.ScanInput{
		TableName:                 aws.String(s.config.Table),
		FilterExpression:          aws.String(filter.Expr),
		ExpressionAttributeNames:  filter.Names,
		ExpressionAttributeValues: filter.Values,
		Limit:                     limit,
	}
	return p
}

// GetMany returns every ride matching f. It drains the page sequence, so the
// cost grows with the size of the collection, not the size of the result.
func (s *Store) GetMany(ctx context.Context, f Filter) ([]Ride, error) {
	pages := s.Scan(ctx, f)
	rides := []Ride{}
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		rides = append(rides, page...)
	}
	return rides, nil
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	var plain map[string]string
	if err := attributevalue.UnmarshalMap(key, &plain); err != nil {
		return "", err
	}
	data, err := json.Marshal(plain)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	data, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var plain map[string]string
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if plain[AttrEntity] == "" || plain[AttrID] == "" {
		return nil, ErrInvalidCursor
	}
	return attributevalue.MarshalMap(plain)
}
