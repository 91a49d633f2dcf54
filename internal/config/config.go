package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Interpreter InterpreterConfig `mapstructure:"interpreter" validate:"required"`
	Queue       QueueConfig       `mapstructure:"queue"       validate:"required"`
	Services    ServicesConfig    `mapstructure:"services"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// InterpreterConfig contains the command interpreter (LLM) settings.
type InterpreterConfig struct {
	GeminiAPIKey      string  `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=30"`
	MinConfidence     float64 `mapstructure:"min_confidence"      validate:"gte=0,lte=1"`
}

// QueueConfig contains the dispatch pool and queue settings.
type QueueConfig struct {
	// MaxConcurrent is the global ceiling on tasks being executed at once.
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"required,gt=0,lte=100"`

	// PollInterval is how long the scheduling loop sleeps, in milliseconds,
	// when the queue is empty or the pool is at capacity.
	PollIntervalMillis int `mapstructure:"poll_interval_millis" validate:"gte=10,lte=60000"`
}

// ServiceConfig describes one downstream service the router can dispatch to.
type ServiceConfig struct {
	BaseURL        string `mapstructure:"base_url"        validate:"required,url"`
	Active         bool   `mapstructure:"active"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=1,lte=300"`
}

// ServicesConfig maps service names to their downstream configuration.
type ServicesConfig map[string]ServiceConfig
