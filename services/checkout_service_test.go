package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/docstore/memory"
	"github.com/yeremiapane/diner-app/models"
)

func newCheckout(t *testing.T, db *gorm.DB) (*CheckoutService, *memory.Store, *recordingNotifier) {
	t.Helper()
	store := memory.New()
	notifier := &recordingNotifier{}
	return NewCheckoutService(db, NewAuditor(store, nil), notifier, nil), store, notifier
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "alice")
	svc, store, notifier := newCheckout(t, db)

	cart := NewCart(user.ID)
	cart.Add(1)
	cart.Add(1)
	cart.Add(3)

	order, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: user.ID, Username: "alice", Cart: cart})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "24.47", order.TotalPrice.StringFixed(2))
	require.Len(t, order.Items, 2)

	var stored models.Order
	require.NoError(t, db.Preload("Items").First(&stored, order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("24.47")))

	sum := decimal.Zero
	for _, it := range stored.Items {
		sum = sum.Add(it.LineTotal())
	}
	assert.True(t, sum.Equal(stored.TotalPrice))

	audit, err := store.RecentAudit(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.AuditOrderCreated, audit[0].Event)

	assert.Equal(t, []string{EventOrderCreated}, notifier.names())
}

func TestCheckoutSnapshotsPrices(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "bob")
	svc, _, _ := newCheckout(t, db)

	cart := NewCart(user.ID)
	cart.Add(1)
	cart.Add(1)
	cart.Add(3)
	order, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: user.ID, Cart: cart})
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.MenuItem{}).Where("id = ?", 1).
		Update("price", decimal.RequireFromString("99.99")).Error)

	var stored models.Order
	require.NoError(t, db.Preload("Items", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("menu_item_id ASC")
	}).First(&stored, order.ID).Error)

	assert.Equal(t, "24.47", stored.TotalPrice.StringFixed(2))
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "10.49", stored.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "3.49", stored.Items[1].UnitPrice.StringFixed(2))
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "carol")
	svc, _, _ := newCheckout(t, db)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: user.ID, Cart: NewCart(user.ID)})
	assert.ErrorIs(t, err, ErrEmptyCart)

	// a cart that only holds items no longer on the menu is empty too
	ghost := NewCart(user.ID)
	ghost.Add(404)
	_, err = svc.Checkout(context.Background(), CheckoutRequest{UserID: user.ID, Cart: ghost})
	assert.ErrorIs(t, err, ErrEmptyCart)

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCheckoutRequiresUser(t *testing.T) {
	db := setupTestDB(t)
	svc, _, _ := newCheckout(t, db)

	cart := NewCart(0)
	cart.Add(1)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{Cart: cart})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestCheckoutIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "dave")
	svc, _, notifier := newCheckout(t, db)

	boom := errors.New("disk full")
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_order_items", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "order_items" {
			tx.AddError(boom)
		}
	})
	require.NoError(t, err)

	cart := NewCart(user.ID)
	cart.Add(1)
	cart.Add(2)
	_, err = svc.Checkout(context.Background(), CheckoutRequest{UserID: user.ID, Cart: cart})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var orders, items int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&items).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Empty(t, notifier.names())
}
