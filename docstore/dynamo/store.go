// Package dynamo implements docstore on DynamoDB. Tables are provisioned
// outside the application:
//
//	<prefix>reviews     PK id;      GSI gsi_recent (kind, created_at), gsi_item (item_id, created_at)
//	<prefix>item_stats  PK item_id
//	<prefix>audit_logs  PK id;      GSI gsi_recent (kind, created_at)
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/models"
)

const (
	indexRecent = "gsi_recent"
	indexItem   = "gsi_item"

	kindReview = "review"
	kindAudit  = "audit"

	batchGetMax     = 100
	batchGetRetries = 5
)

// API is the subset of the DynamoDB client used here.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

type Config struct {
	TablePrefix string
	Timeout     time.Duration
}

type Store struct {
	api          API
	timeout      time.Duration
	batchBackoff time.Duration
	reviewsTable string
	statsTable   string
	auditTable   string
}

var _ docstore.Store = (*Store)(nil)

func New(api API, cfg Config) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Store{
		api:          api,
		timeout:      cfg.Timeout,
		batchBackoff: 50 * time.Millisecond,
		reviewsTable: cfg.TablePrefix + "reviews",
		statsTable:   cfg.TablePrefix + "item_stats",
		auditTable:   cfg.TablePrefix + "audit_logs",
	}
}

// NewFromConfig builds the store on a real DynamoDB client.
func NewFromConfig(awsCfg aws.Config, cfg Config) *Store {
	return New(dynamodb.NewFromConfig(awsCfg), cfg)
}

func (s *Store) AddReview(ctx context.Context, review *models.Review) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	item, err := encodeReview(review)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.reviewsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put review: %w", err)
	}
	return nil
}

func (s *Store) RecentReviews(ctx context.Context, limit int) ([]models.Review, error) {
	values, err := marshalValues(map[string]interface{}{":k": kindReview})
	if err != nil {
		return nil, err
	}
	items, err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.reviewsTable),
		IndexName:                 aws.String(indexRecent),
		KeyConditionExpression:    aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": "kind"},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query recent reviews: %w", err)
	}
	return decodeReviews(items)
}

func (s *Store) ReviewsForItem(ctx context.Context, itemID int, limit int) ([]models.Review, error) {
	values, err := marshalValues(map[string]interface{}{":i": itemID})
	if err != nil {
		return nil, err
	}
	items, err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.reviewsTable),
		IndexName:                 aws.String(indexItem),
		KeyConditionExpression:    aws.String("#i = :i"),
		ExpressionAttributeNames:  map[string]string{"#i": "item_id"},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews for item %d: %w", itemID, err)
	}
	return decodeReviews(items)
}

func (s *Store) GetItemStats(ctx context.Context, itemID string) (*models.ItemStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key, err := marshalValues(map[string]interface{}{"item_id": itemID})
	if err != nil {
		return nil, err
	}
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.statsTable),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item stats %s: %w", itemID, err)
	}
	if len(out.Item) == 0 {
		return nil, docstore.ErrNotFound
	}
	st, err := decodeStats(out.Item)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ListItemStats reads aggregates in batches, re-requesting any keys DynamoDB
// leaves unprocessed. Keys still unprocessed after batchGetRetries rounds fail
// the call rather than silently dropping aggregates.
func (s *Store) ListItemStats(ctx context.Context, itemIDs []string) (map[string]models.ItemStats, error) {
	out := make(map[string]models.ItemStats, len(itemIDs))

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for start := 0; start < len(itemIDs); start += batchGetMax {
		end := start + batchGetMax
		if end > len(itemIDs) {
			end = len(itemIDs)
		}

		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range itemIDs[start:end] {
			key, err := marshalValues(map[string]interface{}{"item_id": id})
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
		}

		if err := s.batchGetStats(ctx, keys, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) batchGetStats(ctx context.Context, keys []map[string]types.AttributeValue, out map[string]models.ItemStats) error {
	request := map[string]types.KeysAndAttributes{s.statsTable: {Keys: keys}}

	for attempt := 0; ; attempt++ {
		res, err := s.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: request})
		if err != nil {
			return fmt.Errorf("failed to batch get item stats: %w", err)
		}
		for _, item := range res.Responses[s.statsTable] {
			st, err := decodeStats(item)
			if err != nil {
				return err
			}
			out[st.ItemID] = st
		}

		pending, ok := res.UnprocessedKeys[s.statsTable]
		if !ok || len(pending.Keys) == 0 {
			return nil
		}
		if attempt+1 >= batchGetRetries {
			return fmt.Errorf("failed to batch get item stats: %d keys unprocessed after %d attempts", len(pending.Keys), batchGetRetries)
		}
		request = map[string]types.KeysAndAttributes{s.statsTable: pending}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to batch get item stats: %w", ctx.Err())
		case <-time.After(time.Duration(attempt+1) * s.batchBackoff):
		}
	}
}

func (s *Store) SwapItemStats(ctx context.Context, next models.ItemStats, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw := map[string]interface{}{
		":c":  next.ReviewCount,
		":t":  next.TotalRating,
		":a":  next.AvgRating,
		":u":  formatTime(next.UpdatedAt),
		":nv": next.Version,
	}
	condition := "attribute_not_exists(#v)"
	if expectedVersion != 0 {
		condition = "#v = :ev"
		raw[":ev"] = expectedVersion
	}
	values, err := marshalValues(raw)
	if err != nil {
		return err
	}
	key, err := marshalValues(map[string]interface{}{"item_id": next.ItemID})
	if err != nil {
		return err
	}

	_, err = s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.statsTable),
		Key:              key,
		UpdateExpression: aws.String("SET #c = :c, #t = :t, #a = :a, #u = :u, #v = :nv"),
		ExpressionAttributeNames: map[string]string{
			"#c": "review_count",
			"#t": "total_rating",
			"#a": "avg_rating",
			"#u": "updated_at",
			"#v": "version",
		},
		ExpressionAttributeValues: values,
		ConditionExpression:       aws.String(condition),
	})

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return docstore.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update item stats %s: %w", next.ItemID, err)
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditLog) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	item, err := encodeAudit(entry)
	if err != nil {
		return err
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.auditTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put audit log: %w", err)
	}
	return nil
}

func (s *Store) RecentAudit(ctx context.Context, limit int) ([]models.AuditLog, error) {
	values, err := marshalValues(map[string]interface{}{":k": kindAudit})
	if err != nil {
		return nil, err
	}
	items, err := s.query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.auditTable),
		IndexName:                 aws.String(indexRecent),
		KeyConditionExpression:    aws.String("#k = :k"),
		ExpressionAttributeNames:  map[string]string{"#k": "kind"},
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return decodeAudits(items)
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.statsTable),
	})
	return err
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) query(ctx context.Context, in *dynamodb.QueryInput) ([]map[string]types.AttributeValue, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	return out.Items, nil
}
