package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-playground/validator/v10"
)

// Store provides ride CRUD and batch operations over a single DynamoDB table.
type Store struct {
	client   DynamoDB
	config   Config
	ids      IDGenerator
	validate *validator.Validate
	logger   *slog.Logger
}

// New creates a new Store instance.
func New(client DynamoDB, config Config) *Store {
	config.validate()
	return &Store{
		client:   client,
		config:   config,
		ids:      UUIDGenerator{},
		validate: newValidator(),
		logger:   slog.Default(),
	}
}

// SetIDGenerator replaces the ID generation strategy.
func (s *Store) SetIDGenerator(ids IDGenerator) {
	if ids != nil {
		s.ids = ids
	}
}

// SetLogger sets the logger used for batch diagnostics.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Config returns the effective configuration.
func (s *Store) Config() Config {
	return s.config
}

// key computes the primary key of a ride.
func (s *Store) key(id string) PK {
	return PK{
		AttrEntity: &types.AttributeValueMemberS{Value: s.config.Entity},
		AttrID:     &types.AttributeValueMemberS{Value: id},
	}
}

// GetOne retrieves a ride by id, returning ErrNotFound if it is missing.
func (s *Store) GetOne(ctx context.Context, id string) (*Ride, error) {
	if id == "" {
		return nil, newValidationError("id is required")
	}
	r, err := s.get(ctx, id)
	if err != nil {
		return nil, serverError("get", err)
	}
	return r, nil
}

func (s *Store) get(ctx context.Context, id string) (*Ride, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            s.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	var r Ride
	if err := attributevalue.UnmarshalMap(result.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal ride: %w", err)
	}
	return &r, nil
}

// put writes a ride guarded by the given existence condition.
func (s *Store) put(ctx context.Context, r Ride, cond string) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal ride: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.config.Table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: keyNames(),
	})
	return err
}

// newID draws an identifier from the configured generator.
func (s *Store) newID() (string, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	if id == "" {
		return "", errors.New("generate id: empty id")
	}
	return id, nil
}

// CreateOne validates in, assigns id and entity, and persists the ride.
func (s *Store) CreateOne(ctx context.Context, in RideInput) (*Ride, error) {
	if err := s.validateInput(in); err != nil {
		return nil, serverError("create", err)
	}

	id, err := s.newID()
	if err != nil {
		return nil, serverError("create", err)
	}
	r := newRide(id, s.config.Entity, in)

	if err := s.put(ctx, r, NotExistsCondition()); err != nil {
		if isConditionFailed(err) {
			return nil, serverError("create", ErrAlreadyExists)
		}
		return nil, serverError("create", err)
	}
	return &r, nil
}

// CreateMany validates every payload, assigns ids, and persists all rides with
// batch writes. Nothing is written if any payload is invalid.
func (s *Store) CreateMany(ctx context.Context, in []RideInput) ([]Ride, error) {
	if len(in) == 0 {
		return nil, newValidationError("You had to specify at least one ride")
	}
	if len(in) > s.config.MaxBatchItems {
		return nil, newValidationError("too many rides: %d exceeds the limit of %d", len(in), s.config.MaxBatchItems)
	}
	if err := s.validateInputs(in); err != nil {
		return nil, serverError("create many", err)
	}

	rides := make([]Ride, 0, len(in))
	for _, item := range in {
		id, err := s.newID()
		if err != nil {
			return nil, serverError("create many", err)
		}
		rides = append(rides, newRide(id, s.config.Entity, item))
	}

	writes, err := putRequests(rides)
	if err != nil {
		return nil, serverError("create many", err)
	}
	if err := s.batchWrite(ctx, writes); err != nil {
		return nil, serverError("create many", err)
	}
	return rides, nil
}

// UpdateOne merges patch onto the stored ride and persists the result.
func (s *Store) UpdateOne(ctx context.Context, id string, patch RidePatch) (*Ride, error) {
	if id == "" {
		return nil, newValidationError("id is required")
	}
	if err := s.validatePatch(patch); err != nil {
		return nil, serverError("update", err)
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, serverError("update", err)
	}

	merged := patch.Apply(*current)
	if err := s.put(ctx, merged, ExistsCondition()); err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, serverError("update", err)
	}
	return &merged, nil
}

// UpdateMany applies patch to every ride in ids. All ids must exist; if any is
// missing nothing is written and a ValidationError names the missing ids.
//
// The existence check and the batch write are separate requests. A ride
// deleted between them is re-created by the write.
func (s *Store) UpdateMany(ctx context.Context, ids []string, patch RidePatch) ([]Ride, error) {
	ids, err := s.normalizeIDs(ids)
	if err != nil {
		return nil, err
	}
	if err := s.validatePatch(patch); err != nil {
		return nil, serverError("update many", err)
	}

	current, err := s.checkExist(ctx, ids)
	if err != nil {
		return nil, serverError("update many", err)
	}

	merged := make([]Ride, 0, len(ids))
	for _, id := range ids {
		merged = append(merged, patch.Apply(current[id]))
	}

	writes, err := putRequests(merged)
	if err != nil {
		return nil, serverError("update many", err)
	}
	if err := s.batchWrite(ctx, writes); err != nil {
		return nil, serverError("update many", err)
	}

	updated, err := s.batchGet(ctx, ids)
	if err != nil {
		return nil, serverError("update many", err)
	}
	return inOrder(ids, updated), nil
}

// DeleteOne removes a ride and returns it as it was before deletion.
func (s *Store) DeleteOne(ctx context.Context, id string) (*Ride, error) {
	if id == "" {
		return nil, newValidationError("id is required")
	}

	current, err := s.get(ctx, id)
	if err != nil {
		return nil, serverError("delete", err)
	}

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.config.Table),
		Key:                      s.key(id),
		ConditionExpression:      aws.String(ExistsCondition()),
		ExpressionAttributeNames: keyNames(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrNotFound
		}
		return nil, serverError("delete", err)
	}
	return current, nil
}

// DeleteMany removes every ride in ids and returns the pre-delete snapshot.
// All ids must exist; if any is missing nothing is deleted.
//
// The existence check and the batch delete are separate requests and are not
// protected against concurrent writers.
func (s *Store) DeleteMany(ctx context.Context, ids []string) ([]Ride, error) {
	ids, err := s.normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	current, err := s.checkExist(ctx, ids)
	if err != nil {
		return nil, serverError("delete many", err)
	}

	if err := s.batchWrite(ctx, s.deleteRequests(ids)); err != nil {
		return nil, serverError("delete many", err)
	}
	return inOrder(ids, current), nil
}

// checkExist batch-gets ids and fails with a ValidationError naming every id
// that is absent.
func (s *Store) checkExist(ctx context.Context, ids []string) (map[string]Ride, error) {
	found, err := s.batchGet(ctx, ids)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, newValidationError("%s does not exist", strings.Join(missing, ", "))
	}
	return found, nil
}

// normalizeIDs trims ids, drops blanks and duplicates, and enforces the batch cap.
func (s *Store) normalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	if len(out) == 0 {
		return nil, newValidationError("No ids in query")
	}
	if len(out) > s.config.MaxBatchItems {
		return nil, newValidationError("too many ids: %d exceeds the limit of %d", len(out), s.config.MaxBatchItems)
	}
	return out, nil
}

// inOrder returns the rides of byID in the order of ids, skipping absent ones.
func inOrder(ids []string, byID map[string]Ride) []Ride {
	out := make([]Ride, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// isConditionFailed reports whether err is a failed condition expression.
func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
