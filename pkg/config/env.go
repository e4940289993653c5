package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	MercadoPagoEnvDev  = "dev"
	MercadoPagoEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	defaultStorefrontBaseURL = "http://localhost:3000"
	defaultSQLiteDSN         = "file:storefront.db?cache=shared"
)

// Environment variable names referenced outside of struct tags.
const (
	EnvAppEnv    = "STOREFRONT_APP_ENV"
	EnvPort      = "STOREFRONT_APP_PORT"
	EnvDBDSN     = "STOREFRONT_DB_DSN"
	EnvDBHost    = "STOREFRONT_DB_HOST"
	EnvDBUser    = "STOREFRONT_DB_USER"
	EnvDBName    = "STOREFRONT_DB_NAME"
	EnvUseSQLite = "STOREFRONT_USE_SQLITE"
	EnvRedisURL  = "STOREFRONT_REDIS_URL"

	EnvVendureShopAPIURL = "VENDURE_SHOP_API_URL"
	EnvPublicBaseURL     = "NEXT_PUBLIC_BASE_URL"
	EnvShopURL           = "SHOP_URL"

	EnvMercadoPagoEnv             = "MERCADOPAGO_ENV"
	EnvMercadoPagoAccessTokenDev  = "MERCADOPAGO_ACCESS_TOKEN_DEV"
	EnvMercadoPagoAccessTokenProd = "MERCADOPAGO_ACCESS_TOKEN_PROD"
	EnvMercadoPagoPublicKeyDev    = "NEXT_PUBLIC_MERCADOPAGO_PUBLIC_KEY_DEV"
	EnvMercadoPagoPublicKeyProd   = "NEXT_PUBLIC_MERCADOPAGO_PUBLIC_KEY_PROD"

	EnvOperatorJWTSecret = "STOREFRONT_OPERATOR_JWT_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
