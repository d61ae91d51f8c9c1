package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/diner-app/middlewares"
	"github.com/yeremiapane/diner-app/services"
	"github.com/yeremiapane/diner-app/utils"
)

const (
	defaultReviewLimit = 20
	maxReviewLimit     = 100
)

type ReviewController struct {
	Reviews *services.ReviewService
	Log     logrus.FieldLogger
}

func NewReviewController(reviews *services.ReviewService, log logrus.FieldLogger) *ReviewController {
	return &ReviewController{Reviews: reviews, Log: log}
}

// Create stores a review from the signed-in user. Ratings outside 1..5 are
// clamped, not rejected.
func (rc *ReviewController) Create(c *gin.Context) {
	var req struct {
		ItemID  *int   `json:"item_id" form:"item_id" binding:"required"`
		Rating  *int   `json:"rating" form:"rating" binding:"required"`
		Comment string `json:"comment" form:"comment"`
	}
	if err := c.ShouldBind(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("item_id and rating are required integers"))
		return
	}

	id, _ := middlewares.CurrentIdentity(c)
	review, err := rc.Reviews.Submit(c.Request.Context(), services.SubmitReview{
		Username: id.Username,
		ItemID:   *req.ItemID,
		Rating:   *req.Rating,
		Comment:  req.Comment,
		IP:       c.ClientIP(),
	})
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			rc.Log.WithError(err).Error("submit review")
		}
		utils.RespondError(c, statusFor(err), publicError(err))
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Thanks for your review", review)
}

// List is the session-facing review listing.
func (rc *ReviewController) List(c *gin.Context) {
	itemID, err := utils.ParseOptionalInt(c.Request.URL.Query(), "item_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, services.ErrInvalidItemID)
		return
	}
	limit := utils.ParseLimit(c.Query("limit"), defaultReviewLimit, 1, maxReviewLimit)

	reviews, err := rc.Reviews.List(c.Request.Context(), itemID, limit)
	if err != nil {
		rc.Log.WithError(err).Error("list reviews")
		utils.RespondError(c, http.StatusInternalServerError, errInternal)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Reviews", reviews)
}

// APIList returns a bare array, newest first.
func (rc *ReviewController) APIList(c *gin.Context) {
	itemID, err := utils.ParseOptionalInt(c.Request.URL.Query(), "item_id")
	if err != nil {
		utils.RespondAPIError(c, http.StatusBadRequest, services.ErrInvalidItemID.Error())
		return
	}
	limit := utils.ParseLimit(c.Query("limit"), defaultReviewLimit, 1, maxReviewLimit)

	reviews, err := rc.Reviews.List(c.Request.Context(), itemID, limit)
	if err != nil {
		rc.Log.WithError(err).Error("list reviews")
		utils.RespondAPIError(c, http.StatusInternalServerError, "reviews unavailable")
		return
	}
	c.JSON(http.StatusOK, reviews)
}
