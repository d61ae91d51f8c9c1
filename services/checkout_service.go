package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/metrics"
	"github.com/yeremiapane/diner-app/models"
	"github.com/yeremiapane/diner-app/utils"
)

type CheckoutService struct {
	DB       *gorm.DB
	Auditor  *Auditor
	Notifier Notifier
	Log      logrus.FieldLogger
}

func NewCheckoutService(db *gorm.DB, auditor *Auditor, notifier Notifier, log logrus.FieldLogger) *CheckoutService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CheckoutService{DB: db, Auditor: auditor, Notifier: notifier, Log: log}
}

type CheckoutRequest struct {
	UserID   uint
	Username string
	IP       string
	Cart     *Cart
}

// Checkout turns the cart into a pending order. Prices are read inside the
// same transaction that writes the order and its line items, and each line
// keeps the unit price it was sold at. Either the order and every line commit
// or nothing does. The caller clears the cart on success.
func (cs *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	if req.UserID == 0 {
		return nil, ErrNotAuthenticated
	}
	if req.Cart == nil || req.Cart.Empty() {
		return nil, ErrEmptyCart
	}

	var order models.Order
	err := cs.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		priced, err := PriceCart(ctx, tx, req.Cart)
		if err != nil {
			return err
		}
		if len(priced.Lines) == 0 {
			return ErrEmptyCart
		}

		order = models.Order{
			UserID:     req.UserID,
			Status:     models.OrderStatusPending,
			TotalPrice: priced.Total,
		}
		if err := tx.Omit("Items").Create(&order).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		items := make([]models.OrderItem, 0, len(priced.Lines))
		for _, line := range priced.Lines {
			items = append(items, models.OrderItem{
				OrderID:    order.ID,
				MenuItemID: line.Item.ID,
				Quantity:   line.Quantity,
				UnitPrice:  line.Item.Price,
			})
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
		order.Items = items

		if len(priced.Missing) > 0 {
			cs.Log.WithFields(logrus.Fields{
				"user_id": req.UserID,
				"missing": priced.Missing,
			}).Warn("checkout dropped items no longer on the menu")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersPlaced.Inc()
	cs.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  req.UserID,
		"total":    utils.FormatCurrency(order.TotalPrice),
	}).Info("order placed")

	username := req.Username
	cs.Auditor.Record(ctx, models.AuditOrderCreated, &username, req.IP, map[string]interface{}{
		"order_id": order.ID,
		"total":    order.TotalPrice.StringFixed(2),
		"items":    len(order.Items),
	})
	cs.Notifier.Broadcast(EventOrderCreated, order)

	return &order, nil
}
