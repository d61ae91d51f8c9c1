package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

type CartController struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func NewCartController(db *gorm.DB, log logrus.FieldLogger) *CartController {
	return &CartController{DB: db, Log: log}
}

// loadCart returns the session cart for the current caller.
func loadCart(c *gin.Context) *services.Cart {
	return services.DecodeCart(middlewares.LoadCart(c), middlewares.CurrentUserID(c))
}

func saveCart(c *gin.Context, cart *services.Cart) error {
	raw, err := cart.Encode()
	if err != nil {
		return err
	}
	return middlewares.SaveCart(c, raw)
}

func itemIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("item_id"))
	if err != nil || id <= 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid item_id"))
		return 0, false
	}
	return id, true
}

func (cc *CartController) respondCart(c *gin.Context, message string, cart *services.Cart) {
	priced, err := services.PriceCart(c.Request.Context(), cc.DB, cart)
	if err != nil {
		cc.Log.WithError(err).Error("price cart")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	utils.RespondJSON(c, http.StatusOK, message, priced)
}

func (cc *CartController) View(c *gin.Context) {
	cc.respondCart(c, "Cart", loadCart(c))
}

func (cc *CartController) Add(c *gin.Context) {
	id, ok := itemIDParam(c)
	if !ok {
		return
	}
	cart := loadCart(c)
	cart.Add(id)
	if err := saveCart(c, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	cc.respondCart(c, "Added to cart", cart)
}

func (cc *CartController) Remove(c *gin.Context) {
	id, ok := itemIDParam(c)
	if !ok {
		return
	}
	cart := loadCart(c)
	cart.Remove(id)
	if err := saveCart(c, cart); err != nil {
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	cc.respondCart(c, "Removed from cart", cart)
}
