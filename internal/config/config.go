package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"support-agent/internal/integrations/paramstore"
)

// Config is the whole runtime configuration, read from the environment.
type Config struct {
	ParamPrefix string     `env:"PARAM_PREFIX"`
	LogLevel    slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	WebhookSecret    string `env:"WEBHOOK_SECRET"`
	RequireSignature bool   `env:"REQUIRE_SIGNATURE" envDefault:"false"`

	OpenAIAPIKey      string        `env:"OPENAI_API_KEY"`
	OpenAIModel       string        `env:"OPENAI_MODEL" envDefault:"gpt-4"`
	OpenAIBaseURL     string        `env:"OPENAI_BASE_URL"`
	OpenAITemperature *float64      `env:"OPENAI_TEMPERATURE"`
	CompletionTimeout time.Duration `env:"COMPLETION_TIMEOUT" envDefault:"15s"`

	SunshineAppID    string        `env:"SUNSHINE_APP_ID"`
	SunshineKeyID    string        `env:"SUNSHINE_KEY_ID"`
	SunshineSecret   string        `env:"SUNSHINE_SECRET"`
	SunshineBaseURL  string        `env:"SUNSHINE_BASE_URL"`
	SunshineAuth     string        `env:"SUNSHINE_AUTH" envDefault:"basic"`
	DeliveryTimeout  time.Duration `env:"DELIVERY_TIMEOUT" envDefault:"10s"`
	BotAuthorID      string        `env:"BOT_AUTHOR_ID"`
	AutomationMarker string        `env:"AUTOMATION_MARKER" envDefault:"support-agent-autoreply"`

	ZendeskSubdomain string `env:"ZENDESK_SUBDOMAIN"`
	ZendeskEmail     string `env:"ZENDESK_EMAIL"`
	ZendeskAPIToken  string `env:"ZENDESK_API_TOKEN"`
	EscalationTag    string `env:"ESCALATION_TAG" envDefault:"live_agent_requested"`

	AutoReplyDisabled bool          `env:"AUTOREPLY_DISABLED" envDefault:"false"`
	RateLimit         int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"5"`
	RateBucketMaxAge  time.Duration `env:"RATE_BUCKET_MAX_AGE" envDefault:"2m"`
	DedupWindow       time.Duration `env:"DEDUP_WINDOW" envDefault:"60s"`
	DedupIDTTL        time.Duration `env:"DEDUP_ID_TTL" envDefault:"1h"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`
	FailureThreshold  int           `env:"FAILURE_THRESHOLD" envDefault:"10"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given environment instead of the process one.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.ParamPrefix = strings.TrimRight(strings.TrimSpace(cfg.ParamPrefix), "/")
	if cfg.RateLimit <= 0 {
		return Config{}, errors.New("config: RATE_LIMIT_PER_MINUTE must be positive")
	}
	if cfg.FailureThreshold <= 0 {
		return Config{}, errors.New("config: FAILURE_THRESHOLD must be positive")
	}
	return cfg, nil
}

// Parameter names under ParamPrefix.
const (
	paramWebhookSecret = "/webhook-secret"
	paramSunshineKey   = "/sunshine-key"
	paramZendeskToken  = "/zendesk-token"
)

type sunshineSecret struct {
	AppID  string `json:"app_id"`
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

type zendeskSecret struct {
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	Token     string `json:"token"`
}

// LoadSecrets fills secrets missing from the environment from Parameter Store.
// The OpenAI key is resolved lazily by its client and is not loaded here.
// Zendesk credentials are optional; a missing parameter is only logged.
func (c *Config) LoadSecrets(ctx context.Context, g paramstore.Getter) error {
	if c.ParamPrefix == "" || g == nil {
		return nil
	}

	if c.WebhookSecret == "" {
		v, err := g.GetParameter(ctx, c.ParamPrefix+paramWebhookSecret)
		if err != nil {
			return fmt.Errorf("config: load webhook secret: %w", err)
		}
		c.WebhookSecret = strings.TrimSpace(v)
	}

	if c.SunshineKeyID == "" || c.SunshineSecret == "" {
		var s sunshineSecret
		if err := paramstore.GetJSON(ctx, g, c.ParamPrefix+paramSunshineKey, &s); err != nil {
			return fmt.Errorf("config: load sunshine key: %w", err)
		}
		if c.SunshineAppID == "" {
			c.SunshineAppID = s.AppID
		}
		c.SunshineKeyID, c.SunshineSecret = s.KeyID, s.Secret
	}

	if c.ZendeskAPIToken == "" {
		var z zendeskSecret
		if err := paramstore.GetJSON(ctx, g, c.ParamPrefix+paramZendeskToken, &z); err != nil {
			slog.Warn("zendesk credentials unavailable, escalation tagging disabled", "err", err)
			return nil
		}
		if c.ZendeskSubdomain == "" {
			c.ZendeskSubdomain = z.Subdomain
		}
		if c.ZendeskEmail == "" {
			c.ZendeskEmail = z.Email
		}
		c.ZendeskAPIToken = z.Token
	}
	return nil
}

// Validate checks that everything needed to serve webhooks is present.
func (c Config) Validate() error {
	var missing []string
	if c.WebhookSecret == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}
	if c.OpenAIAPIKey == "" && c.ParamPrefix == "" {
		missing = append(missing, "OPENAI_API_KEY or PARAM_PREFIX")
	}
	if c.SunshineAppID == "" {
		missing = append(missing, "SUNSHINE_APP_ID")
	}
	if c.SunshineKeyID == "" || c.SunshineSecret == "" {
		missing = append(missing, "SUNSHINE_KEY_ID/SUNSHINE_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// ZendeskEnabled reports whether ticketing credentials are complete.
func (c Config) ZendeskEnabled() bool {
	return c.ZendeskSubdomain != "" && c.ZendeskEmail != "" && c.ZendeskAPIToken != ""
}
