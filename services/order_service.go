package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/models"
)

// strictTransitions is the forward-only lifecycle used under the strict policy.
var strictTransitions = map[string][]string{
	models.OrderStatusPending:   {models.OrderStatusPreparing, models.OrderStatusCancelled},
	models.OrderStatusPreparing: {models.OrderStatusCompleted, models.OrderStatusCancelled},
}

// TransitionAllowed reports whether an order may move from one status to
// another under the given policy. The permissive policy lets an admin set any
// known status from any status.
func TransitionAllowed(policy, from, to string) bool {
	if !models.ValidOrderStatus(to) {
		return false
	}
	if policy != config.StatusPolicyStrict {
		return true
	}
	if from == to {
		return false
	}
	for _, next := range strictTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderService struct {
	DB       *gorm.DB
	Policy   string
	Auditor  *Auditor
	Notifier Notifier
	Log      logrus.FieldLogger
}

func NewOrderService(db *gorm.DB, policy string, auditor *Auditor, notifier Notifier, log logrus.FieldLogger) *OrderService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OrderService{DB: db, Policy: policy, Auditor: auditor, Notifier: notifier, Log: log}
}

type StatusChange struct {
	OrderID uint
	Status  string
	Actor   string
	IP      string
}

func (s *OrderService) UpdateStatus(ctx context.Context, change StatusChange) (*models.Order, error) {
	if !models.ValidOrderStatus(change.Status) {
		return nil, ErrInvalidStatus
	}

	var (
		order models.Order
		from  string
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, change.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("load order %d: %w", change.OrderID, err)
		}

		from = order.Status
		if !TransitionAllowed(s.Policy, from, change.Status) {
			return ErrIllegalTransition
		}

		if err := tx.Model(&order).Update("status", change.Status).Error; err != nil {
			return fmt.Errorf("update order %d status: %w", change.OrderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       order.Status,
		"username": change.Actor,
	}).Info("order status changed")

	actor := change.Actor
	s.Auditor.Record(ctx, models.AuditOrderStatusChanged, &actor, change.IP, map[string]interface{}{
		"order_id": order.ID,
		"from":     from,
		"to":       order.Status,
	})
	s.Notifier.Broadcast(EventOrderStatusChanged, order)

	return &order, nil
}

// ListForUser returns one user's orders with line items, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Preload("Items.MenuItem").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// ListAll returns every order with owner and line items, newest first,
// optionally narrowed to one status.
func (s *OrderService) ListAll(ctx context.Context, status string) ([]models.Order, error) {
	q := s.DB.WithContext(ctx).
		Preload("User").
		Preload("Items").
		Preload("Items.MenuItem").
		Order("created_at DESC, id DESC")
	if status != "" {
		if !models.ValidOrderStatus(status) {
			return nil, ErrInvalidStatus
		}
		q = q.Where("status = ?", status)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
