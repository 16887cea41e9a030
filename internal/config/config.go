package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	TransportBrowser = "browser"
	TransportWebhook = "webhook"
)

type Config struct {
	APIPort   int    `env:"API_PORT,default=5000"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	MaxRetries      int           `env:"MAX_RETRIES,default=3"`
	RetryBackoff    time.Duration `env:"RETRY_BACKOFF,default=2s"`
	MessageDelay    time.Duration `env:"MESSAGE_DELAY,default=10s"`
	RateLimitPerMin int           `env:"RATE_LIMIT_PER_MIN,default=6"`

	Transport  string `env:"TRANSPORT,default=browser"`
	WebhookURL string `env:"WEBHOOK_URL"`

	WhatsAppWebURL      string        `env:"WHATSAPP_WEB_URL,default=https://web.whatsapp.com"`
	ChromeUserDataDir   string        `env:"CHROME_USER_DATA_DIR"`
	ChromeProfile       string        `env:"CHROME_PROFILE"`
	ChromePath          string        `env:"CHROME_PATH"`
	ChromeHeadless      bool          `env:"CHROME_HEADLESS,default=false"`
	SessionCheckTimeout time.Duration `env:"SESSION_CHECK_TIMEOUT,default=15s"`
	LoginTimeout        time.Duration `env:"LOGIN_TIMEOUT,default=120s"`
	ChatLoadTimeout     time.Duration `env:"CHAT_LOAD_TIMEOUT,default=45s"`
	UploadTimeout       time.Duration `env:"UPLOAD_TIMEOUT,default=60s"`

	UploadDir      string `env:"UPLOAD_DIR,default=uploads"`
	StaticDir      string `env:"STATIC_DIR,default=build"`
	MaxUploadBytes int    `env:"MAX_UPLOAD_BYTES,default=16777216"`

	DatabaseDSN string `env:"DATABASE_DSN"`
	RedisURL    string `env:"REDIS_URL"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over the file.
func Load() (*Config, error) {
	return LoadFiles(".env")
}

func LoadFiles(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %q: %w", file, err)
		}
	}

	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Transport {
	case TransportBrowser:
	case TransportWebhook:
		if strings.TrimSpace(c.WebhookURL) == "" {
			return fmt.Errorf("invalid config: WEBHOOK_URL is required when TRANSPORT=%s", TransportWebhook)
		}
	default:
		return fmt.Errorf("invalid config: unsupported TRANSPORT %q", c.Transport)
	}

	if c.MaxRetries < 1 {
		return fmt.Errorf("invalid config: MAX_RETRIES must be >= 1, got %d", c.MaxRetries)
	}
	if c.RetryBackoff < 0 || c.MessageDelay < 0 {
		return fmt.Errorf("invalid config: RETRY_BACKOFF and MESSAGE_DELAY must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid config: MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}
