// Package dynamostore keeps requests and rating aggregates in DynamoDB.
// Conditional writes carry every precondition; a rating commit is a
// two-item TransactWriteItems.
package dynamostore

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DefaultRequestsTable = "service_requests"
	DefaultRatingsTable  = "provider_ratings"

	providerIndex = "provider_id-index"
	seekerIndex   = "seeker_id-index"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// ClientOptions configures the SDK client. Endpoint points at DynamoDB Local
// or LocalStack; credentials default to static dummies when it is set.
type ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds a DynamoDB client from opts and the default AWS chain.
func NewClient(ctx context.Context, opts ClientOptions) (*dynamodb.Client, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.Endpoint != "" {
		if opts.AccessKeyID == "" {
			opts.AccessKeyID = "local"
		}
		if opts.SecretAccessKey == "" {
			opts.SecretAccessKey = "local"
		}
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, classify("dynamostore: load config", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// EnsureTables creates both tables and their indexes if they are missing and
// waits until they are active.
func EnsureTables(ctx context.Context, api API, requestsTable, ratingsTable string) error {
	str := types.ScalarAttributeTypeS
	inputs := []*dynamodb.CreateTableInput{
		{
			TableName:   aws.String(requestsTable),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: str},
				{AttributeName: aws.String("provider_id"), AttributeType: str},
				{AttributeName: aws.String("seeker_id"), AttributeType: str},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
			GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
				{
					IndexName: aws.String(providerIndex),
					KeySchema: []types.KeySchemaElement{
						{AttributeName: aws.String("provider_id"), KeyType: types.KeyTypeHash},
						{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
					},
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				},
				{
					IndexName: aws.String(seekerIndex),
					KeySchema: []types.KeySchemaElement{
						{AttributeName: aws.String("seeker_id"), KeyType: types.KeyTypeHash},
						{AttributeName: aws.String("id"), KeyType: types.KeyTypeRange},
					},
					Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
				},
			},
		},
		{
			TableName:   aws.String(ratingsTable),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("provider_id"), AttributeType: str},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("provider_id"), KeyType: types.KeyTypeHash},
			},
		},
	}

	waiter := dynamodb.NewTableExistsWaiter(api)
	for _, in := range inputs {
		_, err := api.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return classify("dynamostore: create table "+aws.ToString(in.TableName), err)
		}
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: in.TableName}, 30*time.Second); err != nil {
			return classify("dynamostore: wait table "+aws.ToString(in.TableName), err)
		}
	}
	return nil
}
