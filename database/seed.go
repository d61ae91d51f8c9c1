package database

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeremiapane/diner-app/config"
	"github.com/yeremiapane/diner-app/models"
)

// StarterMenu is inserted into an empty menu table.
var StarterMenu = []models.MenuItem{
	{Name: "Chicken Burger", Description: "Crispy chicken, lettuce and mayo in a toasted bun", Price: decimal.RequireFromString("10.49"), Category: "Mains"},
	{Name: "Margherita Pizza", Description: "Tomato, mozzarella and basil", Price: decimal.RequireFromString("9.99"), Category: "Mains"},
	{Name: "Fries", Description: "Salted skin-on fries", Price: decimal.RequireFromString("3.49"), Category: "Sides"},
	{Name: "Coke", Description: "330ml can", Price: decimal.RequireFromString("1.99"), Category: "Drinks"},
}

// Seed fills an empty menu and creates the bootstrap admin. Running it again
// changes nothing.
func Seed(db *gorm.DB, admin config.AdminConfig, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	var count int64
	if err := db.Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if count == 0 {
		items := make([]models.MenuItem, len(StarterMenu))
		copy(items, StarterMenu)
		if err := db.Create(&items).Error; err != nil {
			return fmt.Errorf("seed menu: %w", err)
		}
		log.WithField("items", len(items)).Info("seeded starter menu")
	}

	if admin.Username == "" || admin.Password == "" {
		return nil
	}

	var existing models.User
	err := db.Where("username = ?", admin.Username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user := models.User{Username: admin.Username, PasswordHash: string(hashed), Role: models.RoleAdmin}
	if err := db.Create(&user).Error; err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.WithField("username", user.Username).Info("bootstrapped admin user")
	return nil
}
