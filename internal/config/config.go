package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定（起動時に1回だけ作って各部品に渡す）
type Config struct {
	DatabaseURL string // DATABASE_URL（空ならPOSTGRES_*から組み立てる）

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	DBMaxOpenConns int
	DBMaxIdleConns int

	SecretKey       string        // JWT署名シークレット
	Algorithm       string        // HS256 / HS384 / HS512
	AccessTokenTTL  time.Duration // ACCESS_TOKEN_EXPIRE_MINUTES
	RefreshTokenTTL time.Duration // REFRESH_TOKEN_EXPIRE_MINUTES
	BcryptCost      int

	PaymentBaseURL     string
	PaymentCallbackURL string
	PaymentRedirectURL string

	APIHost string
	APIPort int
	Debug   bool

	RedisAddr       string // 空ならキャッシュ無効
	RedisPassword   string
	RedisDB         int
	ProductCacheTTL time.Duration

	ProductsCSVPath string

	AuditRequestBodyLimit  int
	AuditResponseBodyLimit int
}

// Addrはecho.Startに渡すlisten アドレス
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// DSNはDATABASE_URLを最優先、無ければPOSTGRES_*から作る
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

// Loadは.env（あれば）と環境変数から設定を読む
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		DatabaseURL: v.GetString("DATABASE_URL"),

		PostgresUser:     v.GetString("POSTGRES_USER"),
		PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
		PostgresDB:       v.GetString("POSTGRES_DB"),
		PostgresHost:     v.GetString("POSTGRES_HOST"),
		PostgresPort:     v.GetInt("POSTGRES_PORT"),
		PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),

		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		SecretKey:       v.GetString("SECRET_KEY"),
		Algorithm:       strings.ToUpper(v.GetString("ALGORITHM")),
		AccessTokenTTL:  time.Duration(v.GetInt("ACCESS_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		RefreshTokenTTL: time.Duration(v.GetInt("REFRESH_TOKEN_EXPIRE_MINUTES")) * time.Minute,
		BcryptCost:      v.GetInt("BCRYPT_COST"),

		PaymentBaseURL:     strings.TrimRight(v.GetString("PAYMENT_BASE_URL"), "/"),
		PaymentCallbackURL: v.GetString("PAYMENT_CALLBACK_URL"),
		PaymentRedirectURL: v.GetString("PAYMENT_REDIRECT_URL"),

		APIHost: v.GetString("API_HOST"),
		APIPort: v.GetInt("API_PORT"),
		Debug:   v.GetBool("DEBUG"),

		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		ProductCacheTTL: time.Duration(v.GetInt("PRODUCT_CACHE_TTL_SECONDS")) * time.Second,

		ProductsCSVPath: v.GetString("PRODUCTS_CSV_PATH"),

		AuditRequestBodyLimit:  v.GetInt("AUDIT_REQUEST_BODY_LIMIT"),
		AuditResponseBodyLimit: v.GetInt("AUDIT_RESPONSE_BODY_LIMIT"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", 5432)
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "app")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ALGORITHM", "HS256")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_MINUTES", 7*24*60)
	v.SetDefault("BCRYPT_COST", 12)

	v.SetDefault("PAYMENT_BASE_URL", "http://localhost:8000")
	v.SetDefault("PAYMENT_CALLBACK_URL", "http://localhost:8000/payment/callback")
	v.SetDefault("PAYMENT_REDIRECT_URL", "http://localhost:3000/orders")

	v.SetDefault("API_HOST", "0.0.0.0")
	v.SetDefault("API_PORT", 8000)
	v.SetDefault("DEBUG", false)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PRODUCT_CACHE_TTL_SECONDS", 300)

	v.SetDefault("PRODUCTS_CSV_PATH", "items.csv")

	v.SetDefault("AUDIT_REQUEST_BODY_LIMIT", 1000)
	v.SetDefault("AUDIT_RESPONSE_BODY_LIMIT", 5000)
}

// Validateは必須チェック
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY is required")
	}
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("ALGORITHM must be one of HS256, HS384, HS512: %q", c.Algorithm)
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("REFRESH_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("API_PORT must be 1-65535: %d", c.APIPort)
	}
	if c.PaymentBaseURL == "" {
		return fmt.Errorf("PAYMENT_BASE_URL is required")
	}
	if c.AuditRequestBodyLimit <= 0 || c.AuditResponseBodyLimit <= 0 {
		return fmt.Errorf("AUDIT_*_BODY_LIMIT must be positive")
	}
	return nil
}
