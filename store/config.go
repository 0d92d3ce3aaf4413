package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	// DefaultTable is the table used when Config.Table is empty.
	DefaultTable = "rides"

	// DefaultEntity is the discriminator written to every ride.
	DefaultEntity = "ride"

	// MaxBatchRequestSize is the DynamoDB limit of items per BatchWriteItem request.
	// BatchGetItem requests are chunked at the same size.
	MaxBatchRequestSize = 25
)

// Config holds configuration for the Store.
type Config struct {
	// Table is the DynamoDB table holding the collection.
	// Default: "rides"
	Table string

	// Entity is the partition discriminator injected into every record.
	// Default: "ride"
	Entity string

	// PageSize is the Limit applied to each Scan/Query page.
	// Default: 0 (backend decides, up to 1 MB per page)
	PageSize int32

	// QueryPartition switches listing from Scan to a Query on the entity partition.
	// Default: false
	QueryPartition bool

	// MaxBatchItems caps the number of items a single batch operation accepts.
	// Larger batches are rejected with a ValidationError; anything up to the cap
	// is chunked into requests of MaxBatchRequestSize.
	// Default: 100
	MaxBatchItems int

	// MaxBatchRetries bounds re-submission of unprocessed batch items.
	// Default: 5
	MaxBatchRetries int

	// Connection configures how Open builds the DynamoDB client.
	Connection Connection
}

// Connection holds the backend endpoint and credentials.
type Connection struct {
	// Region is the AWS region. Empty uses the SDK default chain.
	Region string

	// Endpoint overrides the DynamoDB endpoint (e.g. DynamoDB Local).
	Endpoint string

	// Profile selects a shared config profile.
	Profile string

	// AccessKeyID and SecretAccessKey set static credentials when both are present.
	AccessKeyID     string
	SecretAccessKey string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:           DefaultTable,
		Entity:          DefaultEntity,
		MaxBatchItems:   100,
		MaxBatchRetries: 5,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.Entity == "" {
		c.Entity = DefaultEntity
	}
	if c.PageSize < 0 {
		c.PageSize = 0
	}
	if c.MaxBatchItems < 1 {
		c.MaxBatchItems = 100
	}
	if c.MaxBatchRetries < 0 {
		c.MaxBatchRetries = 0
	}
}

// NewClient builds a DynamoDB client from the connection settings.
func NewClient(ctx context.Context, conn Connection) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if conn.Region != "" {
		opts = append(opts, awsconfig.WithRegion(conn.Region))
	}
	if conn.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(conn.Profile))
	}
	if conn.AccessKeyID != "" && conn.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(conn.AccessKeyID, conn.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if conn.Endpoint != "" {
			o.BaseEndpoint = aws.String(conn.Endpoint)
		}
	}), nil
}

// Open builds a DynamoDB client from config.Connection and returns a Store using it.
func Open(ctx context.Context, config Config) (*Store, error) {
	client, err := NewClient(ctx, config.Connection)
	if err != nil {
		return nil, &ServerError{Op: "open", Err: err}
	}
	return New(client, config), nil
}
