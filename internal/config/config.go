package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Configはアプリ全体の設定
type Config struct {
	Port      string `env:"PORT" env-default:"8080"`
	GoEnv     string `env:"GO_ENV" env-default:"dev"` // dev/prod
	JWTSecret string `env:"JWT_SECRET"`
	FEURL     string `env:"FE_URL" env-default:"http://localhost:3000"` // CORS用

	Postgres  Postgres
	Pricing   Pricing
	Payment   Payment
	SMTP      SMTP
	Redis     Redis
	Kafka     Kafka
	Outbox    Outbox
	Telemetry Telemetry
	Log       Log
}

type Postgres struct {
	URL      string `env:"DATABASE_URL"` // あれば最優先
	Host     string `env:"POSTGRES_HOST" env-default:"localhost"`
	Port     int    `env:"POSTGRES_PORT" env-default:"5432"`
	User     string `env:"POSTGRES_USER" env-default:"postgres"`
	Password string `env:"POSTGRES_PASSWORD" env-default:"postgres"`
	DB       string `env:"POSTGRES_DB" env-default:"petstore"`
	SSLMode  string `env:"POSTGRES_SSLMODE" env-default:"disable"`
}

// 価格計算のポリシー（金額はすべてセント）
type Pricing struct {
	TaxRate               float64 `env:"TAX_RATE" env-default:"0.08"`
	ShippingFee           int64   `env:"SHIPPING_FEE" env-default:"500"`
	FreeShippingThreshold int64   `env:"FREE_SHIPPING_THRESHOLD" env-default:"5000"`
}

// 決済プロバイダの資格情報。グローバルに置かず各ゲートウェイへ渡す。
type Payment struct {
	Timeout time.Duration `env:"PAYMENT_TIMEOUT" env-default:"10s"`

	BakongBaseURL   string        `env:"BAKONG_BASE_URL" env-default:"https://api-bakong.nbc.gov.kh"`
	BakongToken     string        `env:"BAKONG_TOKEN"`
	BakongAccountID string        `env:"BAKONG_ACCOUNT_ID"`
	MerchantID      string        `env:"BAKONG_MERCHANT_ID"`
	AcquiringBank   string        `env:"BAKONG_ACQUIRING_BANK" env-default:"Dev Bank"`
	MerchantName    string        `env:"MERCHANT_NAME" env-default:"PetStore Plus"`
	MerchantCity    string        `env:"MERCHANT_CITY" env-default:"Phnom Penh"`
	StoreLabel      string        `env:"STORE_LABEL" env-default:"PetStore+"`
	QRExpiry        time.Duration `env:"QR_EXPIRY" env-default:"15m"`

	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	Currency        string `env:"PAYMENT_CURRENCY" env-default:"usd"`
}

type SMTP struct {
	Host     string        `env:"SMTP_HOST"`
	Port     int           `env:"SMTP_PORT" env-default:"587"`
	User     string        `env:"SMTP_USER"`
	Password string        `env:"SMTP_PASSWORD"`
	From     string        `env:"SMTP_FROM" env-default:"no-reply@petstore.local"`
	Timeout  time.Duration `env:"SMTP_TIMEOUT" env-default:"10s"`
}

type Redis struct {
	Addr    string        `env:"REDIS_ADDR"` // 空ならロックなし
	LockTTL time.Duration `env:"PAYMENT_POLL_LOCK_TTL" env-default:"15s"`
}

type Kafka struct {
	Brokers []string `env:"KAFKA_BROKERS" env-separator:","` // 空なら order_events はログのみ
}

type Outbox struct {
	Interval    time.Duration `env:"OUTBOX_INTERVAL" env-default:"500ms"`
	BatchSize   int           `env:"OUTBOX_BATCH_SIZE" env-default:"50"`
	MaxAttempts int           `env:"OUTBOX_MAX_ATTEMPTS" env-default:"5"`
}

type Telemetry struct {
	Endpoint    string `env:"OTEL_EXPORTER_ENDPOINT"` // 空ならトレースなし
	ServiceName string `env:"OTEL_SERVICE_NAME" env-default:"petstore-api"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
}

// Loadは.env（あれば）と環境変数から設定を読む
func Load() (Config, error) {
	// .envはローカル開発用。無くてもよい
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// 必須チェック
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Postgres.URL == "" && c.Postgres.Host == "" {
		return fmt.Errorf("DATABASE_URL or POSTGRES_HOST is required")
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be in [0, 1)")
	}
	if c.Pricing.ShippingFee < 0 || c.Pricing.FreeShippingThreshold < 0 {
		return fmt.Errorf("SHIPPING_FEE and FREE_SHIPPING_THRESHOLD must be >= 0")
	}
	return nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}
