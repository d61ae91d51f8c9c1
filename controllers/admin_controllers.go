package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/functions"
	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

type AdminController struct {
	Orders   *services.OrderService
	Auditor  *services.Auditor
	Exporter services.Exporter
	Log      logrus.FieldLogger
}

func NewAdminController(orders *services.OrderService, auditor *services.Auditor, exporter services.Exporter, log logrus.FieldLogger) *AdminController {
	return &AdminController{Orders: orders, Auditor: auditor, Exporter: exporter, Log: log}
}

// ListOrders shows every order, optionally filtered by ?status=.
func (ac *AdminController) ListOrders(c *gin.Context) {
	orders, err := ac.Orders.ListAll(c.Request.Context(), c.Query("status"))
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			ac.Log.WithError(err).Error("list all orders")
		}
		utils.RespondError(c, statusFor(err), publicError(err))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All orders", orders)
}

func (ac *AdminController) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid order_id"))
		return
	}

	var req struct {
		Status string `json:"status" form:"status" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("status is required"))
		return
	}

	admin, _ := middlewares.CurrentIdentity(c)
	order, err := ac.Orders.UpdateStatus(c.Request.Context(), services.StatusChange{
		OrderID: uint(orderID),
		Status:  req.Status,
		Actor:   admin.Username,
		IP:      c.ClientIP(),
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			ac.Log.WithError(err).WithField("order_id", orderID).Error("update order status")
		}
		utils.RespondError(c, statusFor(err), publicError(err))
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// AuditLog returns the newest audit entries.
func (ac *AdminController) AuditLog(c *gin.Context) {
	limit := utils.ParseLimit(c.Query("limit"), defaultAuditLimit, 1, maxAuditLimit)

	entries, err := ac.Auditor.Recent(c.Request.Context(), limit)
	if err != nil {
		ac.Log.WithError(err).Warn("audit log unavailable")
		utils.RespondError(c, http.StatusServiceUnavailable, errors.New("audit log is unavailable"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Audit log", entries)
}

// ExportReviews streams the review export as a download.
func (ac *AdminController) ExportReviews(c *gin.Context) {
	q, err := services.ParseExportQuery(c.Request.URL.Query())
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	res, err := ac.Exporter.Export(c.Request.Context(), q)
	if err != nil {
		ac.Log.WithError(err).Warn("review export failed")
		utils.RespondError(c, http.StatusServiceUnavailable, services.ErrExportUnavailable)
		return
	}

	resp := functions.ExportResponse(res)
	for k, v := range resp.Header {
		c.Header(k, v)
	}
	c.Data(resp.Status, res.ContentType, resp.Body)
}
