package services

import "errors"

var (
	ErrEmptyCart           = errors.New("your cart is empty")
	ErrUnknownMenuItem     = errors.New("unknown menu item")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	ErrAggregateContention = errors.New("rating aggregate is contended, giving up")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidStatus       = errors.New("invalid order status")
	ErrIllegalTransition   = errors.New("order status transition not allowed")
	ErrNotAuthenticated    = errors.New("please log in to continue")
	ErrInvalidItemID       = errors.New("item_id must be an integer")
	ErrExportUnavailable   = errors.New("review export is unavailable")
)
