package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// ErrMissingConfiguration is returned when a setting the process cannot run
// without is absent.
var ErrMissingConfiguration = errors.New("missing configuration")

const (
	MailDriverPostmark = "postmark"
	MailDriverLog      = "log"
)

// Config holds runtime configuration. It is resolved once at startup and
// passed to the components that need it.
type Config struct {
	Port          string `env:"SHELF_PORT,default=8080"`
	DBPath        string `env:"SHELF_DB_PATH,default=shelf.db"`
	BaseURL       string `env:"SHELF_BASE_URL"`
	LogLevel      string `env:"SHELF_LOG_LEVEL,default=info"`
	LogFormat     string `env:"SHELF_LOG_FORMAT,default=text"`
	MailDriver    string `env:"SHELF_MAIL_DRIVER,default=postmark"`
	PostmarkToken string `env:"SHELF_POSTMARK_TOKEN"`
	FromEmail     string `env:"SHELF_FROM_EMAIL"`
	CookieSecure  bool   `env:"SHELF_COOKIE_SECURE,default=false"`
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (Config, error) {
	_ = godotenv.Load()
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom populates a Config from the given lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.MailDriver = strings.ToLower(strings.TrimSpace(cfg.MailDriver))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every missing required key in a single error wrapping
// ErrMissingConfiguration.
func (c Config) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "SHELF_BASE_URL")
	}
	switch c.MailDriver {
	case MailDriverPostmark:
		if c.PostmarkToken == "" {
			missing = append(missing, "SHELF_POSTMARK_TOKEN")
		}
		if c.FromEmail == "" {
			missing = append(missing, "SHELF_FROM_EMAIL")
		}
	case MailDriverLog:
	default:
		return fmt.Errorf("unknown mail driver %q", c.MailDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}
