package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

type OrderController struct {
	Checkout *services.CheckoutService
	Orders   *services.OrderService
	Log      logrus.FieldLogger
}

func NewOrderController(checkout *services.CheckoutService, orders *services.OrderService, log logrus.FieldLogger) *OrderController {
	return &OrderController{Checkout: checkout, Orders: orders, Log: log}
}

// PlaceOrder checks out the session cart and empties it on success.
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	id, _ := middlewares.CurrentIdentity(c)
	cart := loadCart(c)

	order, err := oc.Checkout.Checkout(c.Request.Context(), services.CheckoutRequest{
		UserID:   id.UserID,
		Username: id.Username,
		IP:       c.ClientIP(),
		Cart:     cart,
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			oc.Log.WithError(err).WithField("user_id", id.UserID).Error("checkout failed")
		}
		utils.RespondError(c, statusFor(err), publicError(err))
		return
	}

	cart.Clear()
	if err := saveCart(c, cart); err != nil {
		oc.Log.WithError(err).WithField("order_id", order.ID).Warn("order placed but cart not cleared")
	}

	utils.RespondJSON(c, http.StatusCreated, "Order placed", order)
}

// MyOrders lists the caller's orders, newest first.
func (oc *OrderController) MyOrders(c *gin.Context) {
	orders, err := oc.Orders.ListForUser(c.Request.Context(), middlewares.CurrentUserID(c))
	if err != nil {
		oc.Log.WithError(err).Error("list orders")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order history", orders)
}
