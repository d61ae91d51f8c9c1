package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/utils"
)

const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"

	DefaultExportLimit = 100
	MaxExportLimit     = 1000

	// ArchiveKeyHeader carries the object key of an archived export.
	ArchiveKeyHeader = "X-Export-Archive-Key"
)

var exportColumns = []string{"id", "username", "item_id", "rating", "comment", "created_at"}

type ExportQuery struct {
	Format string
	ItemID *int
	Limit  int
}

// ParseExportQuery reads raw query values. Unknown formats fall back to CSV
// and a malformed limit to the default. An item_id that is present but empty
// or malformed is an error.
func ParseExportQuery(values url.Values) (ExportQuery, error) {
	q := ExportQuery{
		Format: ExportFormatCSV,
		Limit:  utils.ParseLimit(values.Get("limit"), DefaultExportLimit, 1, MaxExportLimit),
	}
	if strings.EqualFold(strings.TrimSpace(values.Get("format")), ExportFormatJSON) {
		q.Format = ExportFormatJSON
	}
	id, err := utils.ParseOptionalInt(values, "item_id")
	if err != nil {
		return ExportQuery{}, ErrInvalidItemID
	}
	q.ItemID = id
	return q, nil
}

// Values renders the query back into URL parameters.
func (q ExportQuery) Values() map[string]string {
	v := map[string]string{
		"format": q.Format,
		"limit":  strconv.Itoa(q.Limit),
	}
	if q.ItemID != nil {
		v["item_id"] = strconv.Itoa(*q.ItemID)
	}
	return v
}

type ExportResult struct {
	ContentType string
	Filename    string
	Body        []byte
	ArchiveKey  string
}

// Exporter is satisfied by the in-process ReviewExporter and by ExportClient,
// which calls the export function over HTTP.
type Exporter interface {
	Export(ctx context.Context, q ExportQuery) (*ExportResult, error)
}

// Archiver keeps a copy of a CSV export somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, key, contentType string, body []byte) error
}

type exportRow struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	ItemID    int    `json:"item_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"created_at"`
}

func toExportRow(r models.Review) exportRow {
	created := ""
	if !r.CreatedAt.IsZero() {
		created = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return exportRow{
		ID:        r.ID,
		Username:  r.Username,
		ItemID:    r.ItemID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: created,
	}
}

type ReviewExporter struct {
	Reviews  docstore.ReviewStore
	Archiver Archiver
	Prefix   string
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewReviewExporter(reviews docstore.ReviewStore, archiver Archiver, prefix string, log logrus.FieldLogger) *ReviewExporter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReviewExporter{Reviews: reviews, Archiver: archiver, Prefix: prefix, Log: log, Now: time.Now}
}

func (e *ReviewExporter) Export(ctx context.Context, q ExportQuery) (*ExportResult, error) {
	var (
		reviews []models.Review
		err     error
	)
	if q.ItemID != nil {
		reviews, err = e.Reviews.ReviewsForItem(ctx, *q.ItemID, q.Limit)
	} else {
		reviews, err = e.Reviews.RecentReviews(ctx, q.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	SortReviewsNewestFirst(reviews)

	rows := make([]exportRow, len(reviews))
	for i, r := range reviews {
		rows[i] = toExportRow(r)
	}

	if q.Format == ExportFormatJSON {
		body, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("encode reviews: %w", err)
		}
		return &ExportResult{ContentType: "application/json", Body: body}, nil
	}

	body, err := encodeCSV(rows)
	if err != nil {
		return nil, err
	}
	res := &ExportResult{
		ContentType: "text/csv; charset=utf-8",
		Filename:    fmt.Sprintf("reviews_export_%s.csv", e.Now().UTC().Format("20060102_150405")),
		Body:        body,
	}

	if e.Archiver != nil {
		key := e.Prefix + res.Filename
		if err := e.Archiver.Archive(ctx, key, res.ContentType, body); err != nil {
			metrics.BestEffortFailures.WithLabelValues("export_archive").Inc()
			e.Log.WithError(err).WithField("key", key).Warn("export archive failed")
		} else {
			res.ArchiveKey = key
		}
	}
	return res, nil
}

func encodeCSV(rows []exportRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportColumns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.ID,
			r.Username,
			strconv.Itoa(r.ItemID),
			strconv.Itoa(r.Rating),
			r.Comment,
			r.CreatedAt,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
