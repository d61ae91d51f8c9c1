package config

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds the connection string, preferring a unix socket (Cloud SQL style)
// over host:port when both are configured.
func (d DatabaseConfig) MySQLDSN() string {
	if d.DSN != "" && d.Driver == "mysql" {
		return d.DSN
	}

	addr := fmt.Sprintf("tcp(%s:%d)", d.Host, d.Port)
	if d.UnixSocket != "" {
		addr = fmt.Sprintf("unix(%s)", d.UnixSocket)
	}

	return fmt.Sprintf("%s:%s@%s/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, addr, d.Name)
}

// InitDB opens the relational store and applies the pool settings.
func InitDB(d DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch d.Driver {
	case "mysql":
		dialector = mysql.Open(d.MySQLDSN())
	case "sqlite":
		dialector = sqlite.Open(d.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", d.Driver)
	}

	// TranslateError maps driver unique violations to gorm.ErrDuplicatedKey.
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	if d.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(d.MaxOpenConns + d.MaxIdleConns)
	}
	if d.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(d.MaxIdleConns)
	}
	if d.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(d.ConnMaxLifetime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
