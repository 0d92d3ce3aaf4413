// Package store provides a DynamoDB data access layer for ride records.
//
// All rides live in one table keyed by a partition discriminator ("entity",
// always "ride") and an item identifier ("id"). The [Store] offers point and
// batch variants of every CRUD operation and checks that every targeted id
// exists before a batch update or delete touches anything.
//
// # Operations
//
//	GetOne(ctx, id)              point lookup
//	GetMany(ctx, filter)         all matches, every page drained
//	Scan(ctx, filter)            lazy page sequence, resumable by cursor
//	CreateOne(ctx, in)           validate, assign id, put
//	CreateMany(ctx, in)          validate all, assign ids, batch put
//	UpdateOne(ctx, id, patch)    fetch, merge, put
//	UpdateMany(ctx, ids, patch)  existence check, merge, batch put
//	DeleteOne(ctx, id)           fetch, delete
//	DeleteMany(ctx, ids)         existence check, batch delete
//
// # Batches
//
// Batch requests are split into chunks of [MaxBatchRequestSize] and
// unprocessed items are re-submitted up to Config.MaxBatchRetries times.
// Batches larger than Config.MaxBatchItems are rejected.
//
// Batch writes are not atomic across items and carry no conditions. The
// existence check in UpdateMany and DeleteMany is a separate read, so a
// concurrent delete between the check and the write goes unnoticed.
//
// # Configuration
//
// Use [DefaultConfig] and pass the result to [New] with a client, or to
// [Open] to have the client built from Config.Connection:
//
//	cfg := store.DefaultConfig()
//	cfg.Table = "rides-prod"
//	cfg.Connection.Region = "us-east-1"
//	rides, err := store.Open(ctx, cfg)
//
// # Errors
//
//   - [*ValidationError] - caller input was rejected; carries field errors
//   - [ErrNotFound] - point operation targeted a missing ride
//   - [*ServerError] - anything else, wrapping the cause
//
// [KindOf] classifies an error into one of the three kinds.
package store
