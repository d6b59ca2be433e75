package consts

const (
	COMPONENT_LOGGING     = "logging"
	COMPONENT_HTTP_SERVER = "http_server"
	COMPONENT_DATABASE    = "database"
	COMPONENT_REDIS       = "redis"
	COMPONENT_PROMETHEUS  = "prometheus"
	COMPONENT_TELEMETRY   = "telemetry"
	COMPONENT_BLOB_STORE  = "blob_store"
)
