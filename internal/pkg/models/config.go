package models

// Config represents application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	JWT      JWTConfig
	Logger   LoggerConfig
	NewRelic NewRelicConfig
	Dispatch DispatchConfig
	Pricing  PricingConfig
	Routing  RoutingConfig
}

// AppConfig contains application-specific configuration
type AppConfig struct {
	Name        string
	Environment string
	Debug       bool
	Version     string
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     int
	WriteTimeout    int
	ShutdownTimeout int
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Database  string
	SSLMode   string
	MaxConns  int
	IdleConns int
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// NATSConfig contains NATS connection configuration
type NATSConfig struct {
	URL string
}

// JWTConfig contains JWT authentication configuration.
// When Secret is empty, identify tokens are not required and the
// client-supplied identity is trusted (development mode).
type JWTConfig struct {
	Secret     string
	Expiration int // in minutes
	Issuer     string
}

// LoggerConfig contains logging configuration
type LoggerConfig struct {
	Level    string
	FilePath string
}

// NewRelicConfig contains New Relic agent configuration
type NewRelicConfig struct {
	LicenseKey  string
	AppName     string
	Enabled     bool
	ForwardLogs bool
}

// DispatchConfig contains dispatch engine tunables
type DispatchConfig struct {
	SearchRadiusKm  float64 // candidate radius around the pickup point
	SessionCap      int     // max concurrent sessions per user
	RateLimit       int     // events allowed per window per (user, kind)
	RateWindowSec   int     // rate limiter window length
	SendBufferSize  int     // outbound queue depth per session
	LocationStaleTL int     // seconds before a stored position expires
}

// PricingConfig drives the local fare fallback when the routing
// service is unreachable.
type PricingConfig struct {
	BaseFare       float64
	PerKmRate      float64
	PerMinuteRate  float64
	MinimumFare    float64
	PeakMultiplier float64
	Currency       string
}

// RoutingConfig contains the external route/fare service endpoint
type RoutingConfig struct {
	URL        string
	TimeoutSec int
	AvgSpeedKm float64 // assumed speed for the straight-line fallback
	RoadFactor float64 // straight-line to road distance correction
}
