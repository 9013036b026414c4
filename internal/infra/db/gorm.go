package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"petstore/internal/config"
	"petstore/internal/domain/model"
)

// DSNはDATABASE_URLを優先し、なければPOSTGRES_*から組み立てる
func DSN(cfg config.Postgres) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DB, cfg.SSLMode,
	)
}

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Postgres) (*gorm.DB, error) {
	return Open(DSN(cfg))
}

func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
}

// テーブル作成
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Promotion{},
		&model.Order{},
		&model.OrderItem{},
		&model.AuditLog{},
		&model.OutboxEvent{},
		&model.CardPayment{},
	)
}
