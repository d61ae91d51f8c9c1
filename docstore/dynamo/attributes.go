package dynamo

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/yeremiapane/diner-app/models"
)

// createdAtLayout keeps a fixed width so that string sort keys order by time.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(createdAtLayout)
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(createdAtLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return t, nil
}

type reviewRecord struct {
	ID        string `dynamodbav:"id"`
	Kind      string `dynamodbav:"kind"`
	Username  string `dynamodbav:"username"`
	ItemID    int    `dynamodbav:"item_id"`
	Rating    int    `dynamodbav:"rating"`
	Comment   string `dynamodbav:"comment"`
	CreatedAt string `dynamodbav:"created_at"`
}

type statsRecord struct {
	ItemID      string  `dynamodbav:"item_id"`
	ReviewCount int64   `dynamodbav:"review_count"`
	TotalRating int64   `dynamodbav:"total_rating"`
	AvgRating   float64 `dynamodbav:"avg_rating"`
	UpdatedAt   string  `dynamodbav:"updated_at"`
	Version     int64   `dynamodbav:"version"`
}

type auditRecord struct {
	ID        string                 `dynamodbav:"id"`
	Kind      string                 `dynamodbav:"kind"`
	Event     string                 `dynamodbav:"event"`
	Username  *string                `dynamodbav:"username,omitempty"`
	IP        string                 `dynamodbav:"ip"`
	Metadata  map[string]interface{} `dynamodbav:"metadata,omitempty"`
	CreatedAt string                 `dynamodbav:"created_at"`
}

func encodeReview(r *models.Review) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(reviewRecord{
		ID:        r.ID,
		Kind:      kindReview,
		Username:  r.Username,
		ItemID:    r.ItemID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: formatTime(r.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode review: %w", err)
	}
	return item, nil
}

func decodeReviews(items []map[string]types.AttributeValue) ([]models.Review, error) {
	var records []reviewRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	reviews := make([]models.Review, 0, len(records))
	for _, rec := range records {
		created, err := parseTime(rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", rec.ID, err)
		}
		reviews = append(reviews, models.Review{
			ID:        rec.ID,
			Username:  rec.Username,
			ItemID:    rec.ItemID,
			Rating:    rec.Rating,
			Comment:   rec.Comment,
			CreatedAt: created,
		})
	}
	return reviews, nil
}

func decodeStats(item map[string]types.AttributeValue) (models.ItemStats, error) {
	var rec statsRecord
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return models.ItemStats{}, fmt.Errorf("failed to decode item stats: %w", err)
	}
	updated, err := parseTime(rec.UpdatedAt)
	if err != nil {
		return models.ItemStats{}, fmt.Errorf("item stats %s: %w", rec.ItemID, err)
	}
	return models.ItemStats{
		ItemID:      rec.ItemID,
		ReviewCount: rec.ReviewCount,
		TotalRating: rec.TotalRating,
		AvgRating:   rec.AvgRating,
		UpdatedAt:   updated,
		Version:     rec.Version,
	}, nil
}

func encodeAudit(e *models.AuditLog) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(auditRecord{
		ID:        e.ID,
		Kind:      kindAudit,
		Event:     e.Event,
		Username:  e.Username,
		IP:        e.IP,
		Metadata:  e.Metadata,
		CreatedAt: formatTime(e.CreatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit log: %w", err)
	}
	return item, nil
}

func decodeAudits(items []map[string]types.AttributeValue) ([]models.AuditLog, error) {
	var records []auditRecord
	if err := attributevalue.UnmarshalListOfMaps(items, &records); err != nil {
		return nil, fmt.Errorf("failed to decode audit logs: %w", err)
	}

	entries := make([]models.AuditLog, 0, len(records))
	for _, rec := range records {
		created, err := parseTime(rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("audit log %s: %w", rec.ID, err)
		}
		entries = append(entries, models.AuditLog{
			ID:        rec.ID,
			Event:     rec.Event,
			Username:  rec.Username,
			IP:        rec.IP,
			Metadata:  rec.Metadata,
			CreatedAt: created,
		})
	}
	return entries, nil
}

// marshalValues encodes expression values and keys.
func marshalValues(values map[string]interface{}) (map[string]types.AttributeValue, error) {
	out, err := attributevalue.MarshalMap(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attribute values: %w", err)
	}
	return out, nil
}
