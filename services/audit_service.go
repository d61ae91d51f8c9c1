package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/docstore"
	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
)

// Auditor appends audit entries. It never returns an error: a failed write is
// logged and the triggering action carries on. A nil Auditor records nothing.
type Auditor struct {
	Store   docstore.AuditStore
	Log     logrus.FieldLogger
	Timeout time.Duration
}

func NewAuditor(store docstore.AuditStore, log logrus.FieldLogger) *Auditor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Auditor{Store: store, Log: log, Timeout: 3 * time.Second}
}

func (a *Auditor) Record(ctx context.Context, event string, username *string, ip string, meta map[string]interface{}) {
	if a == nil {
		return
	}
	entry := &models.AuditLog{
		ID:        uuid.NewString(),
		Event:     event,
		Username:  username,
		IP:        ip,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}

	// detached from the request so a client disconnect does not drop the entry
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Timeout)
	defer cancel()

	if err := a.Store.AppendAudit(ctx, entry); err != nil {
		metrics.BestEffortFailures.WithLabelValues("audit").Inc()
		a.Log.WithError(err).WithField("event", event).Warn("audit write failed")
	}
}

func (a *Auditor) Recent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	return a.Store.RecentAudit(ctx, limit)
}
