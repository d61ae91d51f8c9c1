package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/models"
)

// Cart is the per-session basket. Owner is the user id the cart was built
// under, 0 for an anonymous session.
type Cart struct {
	Owner uint        `json:"owner"`
	Items map[int]int `json:"items"`
}

func NewCart(owner uint) *Cart {
	return &Cart{Owner: owner, Items: map[int]int{}}
}

// DecodeCart restores a cart from its session form. A cart built under a
// different signed-in user is discarded. An anonymous cart is adopted by the
// user who signs in on the same session.
func DecodeCart(raw string, current uint) *Cart {
	if raw == "" {
		return NewCart(current)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return NewCart(current)
	}
	if c.Owner != 0 && c.Owner != current {
		return NewCart(current)
	}
	c.Owner = current
	if c.Items == nil {
		c.Items = map[int]int{}
	}
	return &c
}

func (c *Cart) Encode() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Add increments the quantity of itemID by one.
func (c *Cart) Add(itemID int) {
	c.Items[itemID]++
}

// Remove drops the whole entry for itemID.
func (c *Cart) Remove(itemID int) {
	delete(c.Items, itemID)
}

func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

func (c *Cart) Clear() {
	c.Items = map[int]int{}
}

// itemIDs returns the cart's ids in ascending order.
func (c *Cart) itemIDs() []int {
	ids := make([]int, 0, len(c.Items))
	for id, qty := range c.Items {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

type PricedLine struct {
	Item      models.MenuItem `json:"item"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type PricedCart struct {
	Lines []PricedLine    `json:"items"`
	Total decimal.Decimal `json:"total"`
	// Missing lists cart ids that no longer exist on the menu.
	Missing []int `json:"missing"`
}

// PriceCart prices a cart against the current menu. Ids that no longer
// resolve to a menu item are left out of the total and reported in Missing.
func PriceCart(ctx context.Context, db *gorm.DB, cart *Cart) (*PricedCart, error) {
	priced := &PricedCart{Lines: []PricedLine{}, Total: decimal.Zero, Missing: []int{}}
	ids := cart.itemIDs()
	if len(ids) == 0 {
		return priced, nil
	}

	var items []models.MenuItem
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("load menu prices: %w", err)
	}
	byID := make(map[int]models.MenuItem, len(items))
	for _, it := range items {
		byID[int(it.ID)] = it
	}

	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			priced.Missing = append(priced.Missing, id)
			continue
		}
		qty := cart.Items[id]
		line := item.Price.Mul(decimal.NewFromInt(int64(qty)))
		priced.Lines = append(priced.Lines, PricedLine{Item: item, Quantity: qty, LineTotal: line})
		priced.Total = priced.Total.Add(line)
	}
	return priced, nil
}
