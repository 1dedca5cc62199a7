package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvAppPort        = "STOREFRONT_APP_PORT"
	EnvStoreDriver    = "STOREFRONT_STORE_DRIVER"
	EnvStoreDSN       = "STOREFRONT_STORE_DSN"
	EnvGatewayBaseURL = "STOREFRONT_GATEWAY_BASE_URL"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
)
