package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Default downstream service ports mirror the conventional local deployment:
// one service per port starting at 8001.
const (
	defaultBrowserServiceURL       = "http://localhost:8001"
	defaultDocumentServiceURL      = "http://localhost:8002"
	defaultCommunicationServiceURL = "http://localhost:8003"
	defaultMediaServiceURL         = "http://localhost:8004"
	defaultBotBuilderServiceURL    = "http://localhost:8005"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; environment variables override it.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with MAESTRO_ prefix, e.g. MAESTRO_SERVER_PORT,
	// MAESTRO_SERVICES_BROWSER_SERVICE_BASE_URL.
	v.SetEnvPrefix("MAESTRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values for all settings that have a sensible
// out-of-the-box choice. Secrets (database URL, API key) have no defaults and
// must be supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("interpreter.model_name", "gemini-2.0-flash")
	v.SetDefault("interpreter.max_retries", 3)
	v.SetDefault("interpreter.retry_delay_seconds", 2)
	v.SetDefault("interpreter.min_confidence", 0.5)

	v.SetDefault("queue.max_concurrent", 5)
	v.SetDefault("queue.poll_interval_millis", 1000)

	for name, url := range map[string]string{
		"browser_service":       defaultBrowserServiceURL,
		"document_service":      defaultDocumentServiceURL,
		"communication_service": defaultCommunicationServiceURL,
		"media_service":         defaultMediaServiceURL,
		"bot_builder_service":   defaultBotBuilderServiceURL,
	} {
		v.SetDefault("services."+name+".base_url", url)
		v.SetDefault("services."+name+".active", true)
		v.SetDefault("services."+name+".timeout_seconds", 30)
	}
}

// validate runs struct validation over the loaded configuration and wraps
// failures in a readable error.
func validate(cfg *Config) error {
	val := validator.New()
	if err := val.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Map values cannot carry `validate:"dive"` through mapstructure cleanly,
	// so downstream service entries are checked explicitly.
	for name, svc := range cfg.Services {
		if svc.BaseURL == "" {
			return fmt.Errorf("config validation failed: services.%s.base_url is required", name)
		}
		if svc.TimeoutSeconds <= 0 {
			return fmt.Errorf("config validation failed: services.%s.timeout_seconds must be positive", name)
		}
	}

	return nil
}
