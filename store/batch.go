package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// chunk splits items into consecutive groups of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// batchGet fetches the rides with the given ids. Missing ids are silently
// omitted by the backend; the result is keyed by id so callers can diff.
func (s *Store) batchGet(ctx context.Context, ids []string) (map[string]Ride, error) {
	found := make(map[string]Ride, len(ids))

	for _, batch := range chunk(ids, MaxBatchRequestSize) {
		keys := make([]map[string]types.AttributeValue, 0, len(batch))
		for _, id := range batch {
			keys = append(keys, s.key(id))
		}

		request := map[string]types.KeysAndAttributes{
			s.config.Table: {Keys: keys, ConsistentRead: aws.Bool(true)},
		}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > s.config.MaxBatchRetries {
				return nil, ErrUnprocessed
			}
			if attempt > 0 {
				s.logger.Warn("re-requesting unprocessed keys",
					"table", s.config.Table,
					"attempt", attempt,
					"keys", len(request[s.config.Table].Keys),
				)
			}

			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
			if err != nil {
				return nil, err
			}
			for _, raw := range out.Responses[s.config.Table] {
				var r Ride
				if err := attributevalue.UnmarshalMap(raw, &r); err != nil {
					return nil, fmt.Errorf("unmarshal ride: %w", err)
				}
				found[r.ID] = r
			}
			request = out.UnprocessedKeys
		}
	}

	return found, nil
}

// batchWrite submits write requests in chunks of MaxBatchRequestSize and
// re-submits unprocessed items. Items within a chunk are not written atomically.
func (s *Store) batchWrite(ctx context.Context, writes []types.WriteRequest) error {
	batches := chunk(writes, MaxBatchRequestSize)
	for n, batch := range batches {
		s.logger.Debug("writing batch",
			"table", s.config.Table,
			"batch", n+1,
			"of", len(batches),
			"items", len(batch),
		)

		request := map[string][]types.WriteRequest{s.config.Table: batch}
		for attempt := 0; len(request) > 0; attempt++ {
			if attempt > s.config.MaxBatchRetries {
				return ErrUnprocessed
			}
			if attempt > 0 {
				s.logger.Warn("re-submitting unprocessed items",
					"table", s.config.Table,
					"attempt", attempt,
					"items", len(request[s.config.Table]),
				)
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: request})
			if err != nil {
				return err
			}
			request = out.UnprocessedItems
		}
	}
	return nil
}

// putRequests marshals rides into batch put requests.
func putRequests(rides []Ride) ([]types.WriteRequest, error) {
	writes := make([]types.WriteRequest, 0, len(rides))
	for _, r := range rides {
		item, err := attributevalue.MarshalMap(r)
		if err != nil {
			return nil, fmt.Errorf("marshal ride %s: %w", r.ID, err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	return writes, nil
}

// deleteRequests builds batch delete requests for the given ids.
func (s *Store) deleteRequests(ids []string) []types.WriteRequest {
	writes := make([]types.WriteRequest, 0, len(ids))
	for _, id := range ids {
		writes = append(writes, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: s.key(id)}})
	}
	return writes
}
