package config

import "time"

// Supported store backends.
const (
	StoreKindMongo  = "mongo"
	StoreKindMemory = "memory"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	StoreKind         string        `mapstructure:"store_kind" yaml:"store_kind"`
	MongoURI          string        `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase     string        `mapstructure:"mongo_database" yaml:"mongo_database"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	MaxMessageChars   int           `mapstructure:"max_message_chars" yaml:"max_message_chars"`
	SendTimeout       time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" yaml:"reconcile_interval"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		LogLevel:          "info",
		StoreKind:         StoreKindMongo,
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "chatcore",
		MaxMessageChars:   1000,
		SendTimeout:       5 * time.Second,
		ReconcileInterval: 10 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}
