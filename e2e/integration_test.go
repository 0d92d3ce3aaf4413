//go:build e2e

// Package e2e contains end-to-end integration tests using a real DynamoDB table.
// Run with: go test -tags=e2e -v ./e2e/...
//
// The connection comes from the same environment variables the service reads;
// set DYNAMODB_ENDPOINT=http://localhost:8000 to run against DynamoDB Local.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/ridestore/internal/config"
	"github.com/jacentio/ridestore/store"
)

// Table names are unique per test run to avoid conflicts.
const tablePrefix = "ridestore-e2e-test"

var (
	testID     string
	ridesTable string

	ddbClient *dynamodb.Client
	testStore *store.Store
)

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	testID = uuid.New().String()[:8]
	ridesTable = fmt.Sprintf("%s-%s-rides", tablePrefix, testID)

	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Table: %s\n", ridesTable)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Store.Table = ridesTable
	cfg.Store.PageSize = 10

	ctx := context.Background()
	ddbClient, err = store.NewClient(ctx, cfg.Store.Connection)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}

	if err := createTable(ctx); err != nil {
		fmt.Printf("Failed to create table: %v\n", err)
		os.Exit(1)
	}

	testStore = store.New(ddbClient, cfg.Store)

	code := m.Run()

	if err := deleteTable(ctx); err != nil {
		fmt.Printf("Failed to delete table: %v\n", err)
	}

	os.Exit(code)
}

func createTable(ctx context.Context) error {
	fmt.Println("Creating test table...")

	_, err := ddbClient.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(ridesTable),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(store.AttrEntity), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(store.AttrID), KeyType: types.KeyTypeRange},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(store.AttrEntity), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(store.AttrID), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", ridesTable, err)
	}

	fmt.Println("Waiting for table to become active...")
	waiter := dynamodb.NewTableExistsWaiter(ddbClient)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(ridesTable),
	}, 2*time.Minute); err != nil {
		return fmt.Errorf("wait for table %s: %w", ridesTable, err)
	}

	fmt.Println("Table ready")
	return nil
}

func deleteTable(ctx context.Context) error {
	fmt.Println("Deleting test table...")
	_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(ridesTable),
	})
	return err
}

// --- Helpers ---

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func input(mark string, passengers int) store.RideInput {
	return store.RideInput{CarMark: strPtr(mark), PassengerAmount: intPtr(passengers)}
}

// --- Tests ---

func TestCreateOne_GetOne(t *testing.T) {
	ctx := context.Background()

	in := input("Volvo", 3)
	in.CarYear = intPtr(2004)
	created, err := testStore.CreateOne(ctx, in)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == "" || created.Entity != "ride" {
		t.Fatalf("expected id and entity to be assigned, got %+v", created)
	}

	got, err := testStore.GetOne(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.CarMark != "Volvo" || got.PassengerAmount != 3 || got.CarYear == nil || *got.CarYear != 2004 {
		t.Errorf("unexpected ride %+v", got)
	}
}

func TestGetOne_NotFound(t *testing.T) {
	_, err := testStore.GetOne(context.Background(), uuid.New().String())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateMany_GetMany(t *testing.T) {
	ctx := context.Background()
	mark := "Batch" + testID

	in := make([]store.RideInput, 30)
	for i := range in {
		in[i] = input(mark, i%4+1)
	}
	created, err := testStore.CreateMany(ctx, in)
	if err != nil {
		t.Fatalf("create many failed: %v", err)
	}
	if len(created) != 30 {
		t.Fatalf("expected 30 rides, got %d", len(created))
	}

	all, err := testStore.GetMany(ctx, store.Filter{CarMark: mark})
	if err != nil {
		t.Fatalf("get many failed: %v", err)
	}
	if len(all) != 30 {
		t.Errorf("expected 30 rides across pages, got %d", len(all))
	}

	two, err := testStore.GetMany(ctx, store.Filter{CarMark: mark, PassengerAmount: intPtr(2)})
	if err != nil {
		t.Fatalf("get many failed: %v", err)
	}
	for _, r := range two {
		if r.PassengerAmount != 2 {
			t.Errorf("expected passengerAmount 2, got %+v", r)
		}
	}
	if len(two) == 0 {
		t.Error("expected filtered matches")
	}
}

func TestScan_Resume(t *testing.T) {
	ctx := context.Background()
	mark := "Pages" + testID

	in := make([]store.RideInput, 12)
	for i := range in {
		in[i] = input(mark, 1)
	}
	if _, err := testStore.CreateMany(ctx, in); err != nil {
		t.Fatalf("create many failed: %v", err)
	}

	seen := map[string]bool{}
	cursor := ""
	for i := 0; i < 100; i++ {
		pages := testStore.ScanFrom(ctx, store.Filter{CarMark: mark}, cursor)
		page, err := pages.NextPage(ctx)
		if err != nil {
			t.Fatalf("page failed: %v", err)
		}
		for _, r := range page {
			seen[r.ID] = true
		}
		cursor = pages.Cursor()
		if cursor == "" {
			break
		}
	}
	if len(seen) != 12 {
		t.Errorf("expected 12 distinct rides, got %d", len(seen))
	}
}

func TestUpdateOne(t *testing.T) {
	ctx := context.Background()

	created, err := testStore.CreateOne(ctx, input("Toyota", 2))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := testStore.UpdateOne(ctx, created.ID, store.RidePatch{CarYear: intPtr(2010)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.CarYear == nil || *updated.CarYear != 2010 || updated.CarMark != "Toyota" {
		t.Errorf("unexpected ride %+v", updated)
	}

	_, err = testStore.UpdateOne(ctx, uuid.New().String(), store.RidePatch{CarYear: intPtr(2010)})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateMany_AllOrNothing(t *testing.T) {
	ctx := context.Background()

	created, err := testStore.CreateMany(ctx, []store.RideInput{input("Honda", 1), input("Honda", 2)})
	if err != nil {
		t.Fatalf("create many failed: %v", err)
	}

	ghost := uuid.New().String()
	_, err = testStore.UpdateMany(ctx, []string{created[0].ID, ghost}, store.RidePatch{PassengerAmount: intPtr(9)})
	if store.KindOf(err) != store.KindValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	unchanged, err := testStore.GetOne(ctx, created[0].ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if unchanged.PassengerAmount != 1 {
		t.Errorf("expected ride untouched, got %+v", unchanged)
	}

	updated, err := testStore.UpdateMany(ctx, []string{created[0].ID, created[1].ID}, store.RidePatch{PassengerAmount: intPtr(9)})
	if err != nil {
		t.Fatalf("update many failed: %v", err)
	}
	for _, r := range updated {
		if r.PassengerAmount != 9 {
			t.Errorf("expected passengerAmount 9, got %+v", r)
		}
	}
}

func TestDeleteOne_DeleteMany(t *testing.T) {
	ctx := context.Background()

	created, err := testStore.CreateMany(ctx, []store.RideInput{input("Skoda", 1), input("Skoda", 2), input("Skoda", 3)})
	if err != nil {
		t.Fatalf("create many failed: %v", err)
	}

	deleted, err := testStore.DeleteOne(ctx, created[0].ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted.ID != created[0].ID {
		t.Errorf("expected deleted ride %s, got %s", created[0].ID, deleted.ID)
	}
	if _, err := testStore.DeleteOne(ctx, created[0].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	_, err = testStore.DeleteMany(ctx, []string{created[0].ID, created[1].ID})
	if store.KindOf(err) != store.KindValidation {
		t.Fatalf("expected ValidationError for missing id, got %v", err)
	}

	removed, err := testStore.DeleteMany(ctx, []string{created[1].ID, created[2].ID})
	if err != nil {
		t.Fatalf("delete many failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("expected 2 deleted rides, got %d", len(removed))
	}
	for _, r := range created {
		if _, err := testStore.GetOne(ctx, r.ID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("expected %s gone, got %v", r.ID, err)
		}
	}
}
