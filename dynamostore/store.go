package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
	"github.com/muthu-raja18/QuickServe-sub001/rating"
	"github.com/muthu-raja18/QuickServe-sub001/request"
)

// Store implements request.Store and rating.Store. Index queries are
// eventually consistent; point reads and all writes are not.
type Store struct {
	api           API
	requestsTable string
	ratingsTable  string
	log           *zap.Logger
}

func NewStore(api API, requestsTable, ratingsTable string, log *zap.Logger) *Store {
	if requestsTable == "" {
		requestsTable = DefaultRequestsTable
	}
	if ratingsTable == "" {
		ratingsTable = DefaultRatingsTable
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{api: api, requestsTable: requestsTable, ratingsTable: ratingsTable, log: log}
}

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (s *Store) Create(ctx context.Context, r request.ServiceRequest) error {
	av, err := attributevalue.MarshalMap(toRequestItem(r))
	if err != nil {
		return fmt.Errorf("dynamostore: marshal request: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(s.requestsTable),
		Item:                     av,
		ConditionExpression:      aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{"#id": "id"},
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return request.ErrDuplicate
	}
	return classify("dynamostore: create request", err)
}

func (s *Store) Get(ctx context.Context, id string) (request.ServiceRequest, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.requestsTable),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return request.ServiceRequest{}, classify("dynamostore: get request", err)
	}
	if len(out.Item) == 0 {
		return request.ServiceRequest{}, request.ErrNotFound
	}
	return decodeRequest(out.Item)
}

func decodeRequest(av map[string]types.AttributeValue) (request.ServiceRequest, error) {
	var it requestItem
	if err := attributevalue.UnmarshalMap(av, &it); err != nil {
		return request.ServiceRequest{}, fault.Wrap(fault.KindIntegrity, "dynamostore: decode request", err)
	}
	return it.domain(), nil
}

func (s *Store) ListByProvider(ctx context.Context, providerID string, statuses ...request.Status) ([]request.ServiceRequest, error) {
	return s.queryIndex(ctx, providerIndex, "provider_id", providerID, statuses)
}

func (s *Store) ListBySeeker(ctx context.Context, seekerID string, statuses ...request.Status) ([]request.ServiceRequest, error) {
	return s.queryIndex(ctx, seekerIndex, "seeker_id", seekerID, statuses)
}

func (s *Store) queryIndex(ctx context.Context, index, attr, owner string, statuses []request.Status) ([]request.ServiceRequest, error) {
	p := dynamodb.NewQueryPaginator(s.api, &dynamodb.QueryInput{
		TableName:                 aws.String(s.requestsTable),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String("#owner = :owner"),
		ExpressionAttributeNames:  map[string]string{"#owner": attr},
		ExpressionAttributeValues: map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: owner}},
	})

	var out []request.ServiceRequest
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, classify("dynamostore: query "+index, err)
		}
		for _, av := range page.Items {
			r, err := decodeRequest(av)
			if err != nil {
				return nil, err
			}
			if request.MatchStatus(r.Status, statuses) {
				out = append(out, r)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Transition encodes c as a conditional UpdateItem.
func (s *Store) Transition(ctx context.Context, c request.Change) (request.ServiceRequest, error) {
	if err := c.Validate(); err != nil {
		return request.ServiceRequest{}, err
	}
	at := formatTime(c.At)
	names := map[string]string{
		"#id":         "id",
		"#status":     "status",
		"#stamp":      request.TimestampColumn(c.To),
		"#updated_at": "updated_at",
	}
	values := map[string]types.AttributeValue{
		":from": &types.AttributeValueMemberS{Value: string(c.From)},
		":to":   &types.AttributeValueMemberS{Value: string(c.To)},
		":at":   &types.AttributeValueMemberS{Value: at},
	}
	cond := "attribute_exists(#id) AND #status = :from"
	if !c.NotExpiredAt.IsZero() {
		cond += " AND #expires_at >= :not_expired"
		names["#expires_at"] = "expires_at"
		values[":not_expired"] = &types.AttributeValueMemberS{Value: formatTime(c.NotExpiredAt)}
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.requestsTable),
		Key:                       idKey(c.ID),
		UpdateExpression:          aws.String("SET #status = :to, #stamp = :at, #updated_at = :at"),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return request.ServiceRequest{}, request.ErrStale
	}
	if err != nil {
		return request.ServiceRequest{}, classify("dynamostore: transition", err)
	}
	return decodeRequest(out.Attributes)
}

func (s *Store) Load(ctx context.Context, providerID string) (rating.Aggregate, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.ratingsTable),
		Key:            map[string]types.AttributeValue{"provider_id": &types.AttributeValueMemberS{Value: providerID}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return rating.Aggregate{}, classify("dynamostore: load aggregate", err)
	}
	if len(out.Item) == 0 {
		return rating.Aggregate{ProviderID: providerID}, nil
	}
	var it aggregateItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return rating.Aggregate{}, fault.Wrap(fault.KindIntegrity, "dynamostore: decode aggregate", err)
	}
	return it.domain(), nil
}

func (s *Store) aggregatePut(next rating.Aggregate, expected int64) (*types.Put, error) {
	av, err := attributevalue.MarshalMap(toAggregateItem(next))
	if err != nil {
		return nil, fmt.Errorf("dynamostore: marshal aggregate: %w", err)
	}
	put := &types.Put{
		TableName:                aws.String(s.ratingsTable),
		Item:                     av,
		ExpressionAttributeNames: map[string]string{"#pid": "provider_id"},
		ConditionExpression:      aws.String("attribute_not_exists(#pid)"),
	}
	if expected > 0 {
		put.ConditionExpression = aws.String("#version = :expected")
		put.ExpressionAttributeNames = map[string]string{"#version": "version"}
		put.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		}
	}
	return put, nil
}

// CommitRating closes the request and swaps the aggregate in one transaction.
func (s *Store) CommitRating(ctx context.Context, c rating.Commit) (request.ServiceRequest, error) {
	put, err := s.aggregatePut(c.Next, c.Expected)
	if err != nil {
		return request.ServiceRequest{}, err
	}
	at := formatTime(c.At)
	closeRequest := &types.Update{
		TableName:        aws.String(s.requestsTable),
		Key:              idKey(c.RequestID),
		UpdateExpression: aws.String("SET #status = :completed, #rating = :stars, #review = :review, #confirmed_at = :at, #updated_at = :at"),
		ConditionExpression: aws.String(
			"#status = :awaiting AND attribute_not_exists(#rating) AND #provider_id = :provider"),
		ExpressionAttributeNames: map[string]string{
			"#status":       "status",
			"#rating":       "rating",
			"#review":       "review",
			"#confirmed_at": "confirmed_at",
			"#updated_at":   "updated_at",
			"#provider_id":  "provider_id",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":completed": &types.AttributeValueMemberS{Value: string(request.StatusCompleted)},
			":awaiting":  &types.AttributeValueMemberS{Value: string(request.StatusAwaitingConfirmation)},
			":stars":     &types.AttributeValueMemberN{Value: strconv.Itoa(c.Stars)},
			":review":    &types.AttributeValueMemberS{Value: c.Review},
			":at":        &types.AttributeValueMemberS{Value: at},
			":provider":  &types.AttributeValueMemberS{Value: c.ProviderID},
		},
	}

	_, err = s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Update: closeRequest},
			{Put: put},
		},
	})
	if err != nil {
		return request.ServiceRequest{}, commitError(err)
	}
	return s.Get(ctx, c.RequestID)
}

// commitError maps a cancelled rating transaction to the failed condition.
// Item 0 is the request, item 1 the aggregate.
func commitError(err error) error {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return classify("dynamostore: commit rating", err)
	}
	for i, reason := range tce.CancellationReasons {
		switch aws.ToString(reason.Code) {
		case "ConditionalCheckFailed":
			if i == 0 {
				return rating.ErrNotAwaiting
			}
			return rating.ErrVersionConflict
		case "TransactionConflict":
			return fmt.Errorf("%w: %v", rating.ErrVersionConflict, err)
		case "ThrottlingError", "ProvisionedThroughputExceeded":
			return fault.Wrap(fault.KindUnavailable, "dynamostore: commit rating", err)
		}
	}
	return fault.Wrap(fault.KindConflict, "dynamostore: commit rating", err)
}

func (s *Store) SaveReconciled(ctx context.Context, next rating.Aggregate, expected int64) error {
	put, err := s.aggregatePut(next, expected)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 put.TableName,
		Item:                      put.Item,
		ConditionExpression:       put.ConditionExpression,
		ExpressionAttributeNames:  put.ExpressionAttributeNames,
		ExpressionAttributeValues: put.ExpressionAttributeValues,
	})
	var cfe *types.ConditionalCheckFailedException
	if errors.As(err, &cfe) {
		return rating.ErrVersionConflict
	}
	return classify("dynamostore: save aggregate", err)
}

func (s *Store) ListCompleted(ctx context.Context, providerID string) ([]request.ServiceRequest, error) {
	return s.ListByProvider(ctx, providerID, request.StatusCompleted)
}

func (s *Store) ListProviders(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	scans := []*dynamodb.ScanInput{
		{
			TableName:                aws.String(s.ratingsTable),
			ProjectionExpression:     aws.String("#pid"),
			ExpressionAttributeNames: map[string]string{"#pid": "provider_id"},
		},
		{
			TableName:                 aws.String(s.requestsTable),
			ProjectionExpression:      aws.String("#pid"),
			FilterExpression:          aws.String("#status = :completed AND attribute_exists(#pid)"),
			ExpressionAttributeNames:  map[string]string{"#pid": "provider_id", "#status": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":completed": &types.AttributeValueMemberS{Value: string(request.StatusCompleted)}},
		},
	}
	for _, in := range scans {
		p := dynamodb.NewScanPaginator(s.api, in)
		for p.HasMorePages() {
			page, err := p.NextPage(ctx)
			if err != nil {
				return nil, classify("dynamostore: scan "+aws.ToString(in.TableName), err)
			}
			for _, av := range page.Items {
				var row struct {
					ProviderID string `dynamodbav:"provider_id"`
				}
				if err := attributevalue.UnmarshalMap(av, &row); err != nil {
					return nil, fault.Wrap(fault.KindIntegrity, "dynamostore: decode provider id", err)
				}
				if row.ProviderID != "" {
					seen[row.ProviderID] = struct{}{}
				}
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
