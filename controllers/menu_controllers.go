package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

const (
	defaultStatsLimit = 20
	maxStatsLimit     = 100
)

type MenuController struct {
	Catalog *services.CatalogService
	Log     logrus.FieldLogger
}

func NewMenuController(catalog *services.CatalogService, log logrus.FieldLogger) *MenuController {
	return &MenuController{Catalog: catalog, Log: log}
}

// GetMenu lists the menu with ratings; items without ratings show none.
func (mc *MenuController) GetMenu(c *gin.Context) {
	items, err := mc.Catalog.RatedItems(c.Request.Context(), 0)
	if err != nil {
		mc.Log.WithError(err).Error("load menu")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Menu", items)
}

// APIMenu is the bare menu array.
func (mc *MenuController) APIMenu(c *gin.Context) {
	items, err := mc.Catalog.Items(c.Request.Context(), 0)
	if err != nil {
		mc.Log.WithError(err).Error("load menu")
		utils.RespondAPIError(c, http.StatusInternalServerError, "menu unavailable")
		return
	}
	c.JSON(http.StatusOK, items)
}

// APIStats merges menu items with their rating aggregates.
func (mc *MenuController) APIStats(c *gin.Context) {
	limit := utils.ParseLimit(c.Query("limit"), defaultStatsLimit, 1, maxStatsLimit)

	items, err := mc.Catalog.RatedItems(c.Request.Context(), limit)
	if err != nil {
		mc.Log.WithError(err).Error("load stats")
		utils.RespondAPIError(c, http.StatusInternalServerError, "stats unavailable")
		return
	}
	c.JSON(http.StatusOK, items)
}
