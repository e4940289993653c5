package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Vendure      VendureConfig
	Storefront   StorefrontConfig
	MercadoPago  MercadoPagoConfig
	Stripe       StripeConfig
	DB           DBConfig
	Redis        RedisConfig
	Operator     OperatorConfig
	Idempotency  IdempotencyConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type VendureConfig struct {
	ShopAPIURL string        `envconfig:"VENDURE_SHOP_API_URL" default:"http://localhost:3000/shop-api"`
	Timeout    time.Duration `envconfig:"VENDURE_TIMEOUT" default:"15s"`
}

type StorefrontConfig struct {
	PublicBaseURL string   `envconfig:"NEXT_PUBLIC_BASE_URL"`
	ShopURL       string   `envconfig:"SHOP_URL"`
	CORSOrigins   []string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

// RawBaseURL returns the first configured storefront base URL before normalisation.
func (s StorefrontConfig) RawBaseURL() string {
	if v := strings.TrimSpace(s.PublicBaseURL); v != "" {
		return v
	}
	if v := strings.TrimSpace(s.ShopURL); v != "" {
		return v
	}
	return defaultStorefrontBaseURL
}

type MercadoPagoConfig struct {
	Env             string        `envconfig:"MERCADOPAGO_ENV" default:"dev"`
	AccessTokenDev  string        `envconfig:"MERCADOPAGO_ACCESS_TOKEN_DEV"`
	AccessTokenProd string        `envconfig:"MERCADOPAGO_ACCESS_TOKEN_PROD"`
	PublicKeyDev    string        `envconfig:"NEXT_PUBLIC_MERCADOPAGO_PUBLIC_KEY_DEV"`
	PublicKeyProd   string        `envconfig:"NEXT_PUBLIC_MERCADOPAGO_PUBLIC_KEY_PROD"`
	WebhookSecret   string        `envconfig:"MERCADOPAGO_WEBHOOK_SECRET"`
	APIBaseURL      string        `envconfig:"MERCADOPAGO_API_BASE_URL" default:"https://api.mercadopago.com"`
	Timeout         time.Duration `envconfig:"MERCADOPAGO_TIMEOUT" default:"20s"`
	WebhookDedupe   time.Duration `envconfig:"MERCADOPAGO_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

// MercadoPagoCredentials is the credential pair selected for the active environment.
type MercadoPagoCredentials struct {
	Env         string
	AccessToken string
	PublicKey   string
}

// Credentials resolves the token/public key pair for the configured environment.
func (m MercadoPagoConfig) Credentials() (MercadoPagoCredentials, error) {
	env := strings.ToLower(strings.TrimSpace(m.Env))
	if env == "" {
		env = MercadoPagoEnvDev
	}
	creds := MercadoPagoCredentials{Env: env}
	switch env {
	case MercadoPagoEnvProd:
		creds.AccessToken = strings.TrimSpace(m.AccessTokenProd)
		creds.PublicKey = strings.TrimSpace(m.PublicKeyProd)
	case MercadoPagoEnvDev:
		creds.AccessToken = strings.TrimSpace(m.AccessTokenDev)
		creds.PublicKey = strings.TrimSpace(m.PublicKeyDev)
	default:
		return creds, fmt.Errorf("MERCADOPAGO_ENV must be %q or %q, got %q", MercadoPagoEnvDev, MercadoPagoEnvProd, m.Env)
	}
	if creds.AccessToken == "" {
		return creds, fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN_%s is not set", strings.ToUpper(env))
	}
	return creds, nil
}

type StripeConfig struct {
	APIKey string `envconfig:"STRIPE_SECRET_KEY"`
	Env    string `envconfig:"STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STOREFRONT_DB_HOST"`
	LegacyPort     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STOREFRONT_DB_USER"`
	LegacyPassword string `envconfig:"STOREFRONT_DB_PASSWORD"`
	LegacyName     string `envconfig:"STOREFRONT_DB_NAME"`
	LegacySSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Enabled reports whether a ledger database has been configured.
func (db DBConfig) Enabled() bool {
	return strings.TrimSpace(db.DSN) != ""
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Enabled reports whether Redis has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type OperatorConfig struct {
	Secret            string `envconfig:"STOREFRONT_OPERATOR_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_OPERATOR_JWT_ISSUER" default:"storefront-checkout"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_OPERATOR_JWT_EXPIRATION_MINUTES" default:"480"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

type RateLimitConfig struct {
	ProcessPaymentWindow     time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_PROCESS_PAYMENT_WINDOW" default:"1m"`
	ProcessPaymentIPLimit    int           `envconfig:"STOREFRONT_RATE_LIMIT_PROCESS_PAYMENT_IP_LIMIT" default:"10"`
	ProcessPaymentEmailLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_PROCESS_PAYMENT_EMAIL_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

// ensureDSN assembles a DSN from the split DB_* variables. A missing database is
// allowed: the ledger degrades to a no-op.
func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = defaultSQLiteDSN
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	provided := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	missing := []string{}
	seen := false
	for _, env := range legacyDBEnvVars {
		if provided[env] == "" {
			missing = append(missing, env)
			continue
		}
		seen = true
	}
	if !seen {
		return nil
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
