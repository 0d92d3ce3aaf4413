package store

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the table key.
const (
	AttrEntity = "entity"
	AttrID     = "id"
)

// DynamoDB is the subset of the AWS SDK v2 DynamoDB client the Store relies on.
// It is satisfied by *dynamodb.Client.
type DynamoDB interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(context.Context, *dynamodb.BatchGetItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(context.Context, *dynamodb.BatchWriteItemInput, ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Ride is a persisted ride record.
type Ride struct {
	ID              string `dynamodbav:"id" json:"id"`
	Entity          string `dynamodbav:"entity" json:"entity"`
	CarMark         string `dynamodbav:"carMark" json:"carMark"`
	CarYear         *int   `dynamodbav:"carYear,omitempty" json:"carYear,omitempty"`
	PassengerAmount int    `dynamodbav:"passengerAmount" json:"passengerAmount"`
}

// RideInput is the payload accepted by CreateOne and CreateMany.
// Pointers distinguish a missing field from its zero value.
type RideInput struct {
	PassengerAmount *int    `json:"passengerAmount" validate:"required,gt=0"`
	CarMark         *string `json:"carMark" validate:"required,alphanum,min=3,max=30"`
	CarYear         *int    `json:"carYear,omitempty" validate:"omitempty,gte=1900,lte=2013"`
}

// RidePatch is the payload accepted by UpdateOne and UpdateMany.
// Fields left nil are not modified.
type RidePatch struct {
	PassengerAmount *int    `json:"passengerAmount,omitempty" validate:"omitempty,gt=0"`
	CarMark         *string `json:"carMark,omitempty" validate:"omitempty,alphanum,min=3,max=30"`
	CarYear         *int    `json:"carYear,omitempty" validate:"omitempty,gte=1900,lte=2013"`
}

// Apply merges the supplied patch fields onto r.
func (p RidePatch) Apply(r Ride) Ride {
	if p.PassengerAmount != nil {
		r.PassengerAmount = *p.PassengerAmount
	}
	if p.CarMark != nil {
		r.CarMark = *p.CarMark
	}
	if p.CarYear != nil {
		year := *p.CarYear
		r.CarYear = &year
	}
	return r
}

// Filter selects rides by equality on the fields that are set.
type Filter struct {
	ID              string
	CarMark         string
	CarYear         *int
	PassengerAmount *int
}

// newRide builds a record from a validated input.
func newRide(id, entity string, in RideInput) Ride {
	r := Ride{ID: id, Entity: entity}
	if in.PassengerAmount != nil {
		r.PassengerAmount = *in.PassengerAmount
	}
	if in.CarMark != nil {
		r.CarMark = *in.CarMark
	}
	if in.CarYear != nil {
		year := *in.CarYear
		r.CarYear = &year
	}
	return r
}
