package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/danielpatrickdp/entity-advisor/internal/gap"
	"github.com/danielpatrickdp/entity-advisor/internal/guardrail"
	"github.com/danielpatrickdp/entity-advisor/internal/orchestrator"
	"github.com/danielpatrickdp/entity-advisor/internal/reasoner"
)

// EnvPrefix namespaces environment overrides: guardrail.max_cost_per_session
// is read from ADVISOR_GUARDRAIL_MAX_COST_PER_SESSION.
const EnvPrefix = "ADVISOR"

// #region types
// Provider kinds.
const (
	KindOpenAI   = "openai"
	KindGemini   = "gemini"
	KindGRPC     = "grpc"
	KindScripted = "scripted"
)

// ProviderConfig describes one reasoner backend. Providers are tried in
// the order listed.
type ProviderConfig struct {
	Name      string `mapstructure:"name" validate:"required"`
	Kind      string `mapstructure:"kind" validate:"required,oneof=openai gemini grpc scripted"`
	Model     string `mapstructure:"model" validate:"required"`
	BaseURL   string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKeyEnv string `mapstructure:"api_key_env"` // name of the variable holding the key
	Address   string `mapstructure:"address" validate:"required_if=Kind grpc"`
}

// APIKey resolves the provider key from the environment.
func (p ProviderConfig) APIKey() string {
	if p.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(p.APIKeyEnv)
}

// StoreConfig selects the session repository.
type StoreConfig struct {
	Driver   string        `mapstructure:"driver" validate:"oneof=memory sqlite redis"`
	Path     string        `mapstructure:"path" validate:"required_if=Driver sqlite"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Driver redis"`
	TTL      time.Duration `mapstructure:"ttl" validate:"min=0"`
}

// PriceConfig overrides or adds one model's per-million-token rates.
type PriceConfig struct {
	Model  string  `mapstructure:"model" validate:"required"`
	Input  float64 `mapstructure:"input" validate:"gte=0"`
	Output float64 `mapstructure:"output" validate:"gte=0"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Config is the whole process configuration.
type Config struct {
	Log          LogConfig                 `mapstructure:"log"`
	Server       ServerConfig              `mapstructure:"server"`
	Store        StoreConfig               `mapstructure:"store"`
	Providers    []ProviderConfig          `mapstructure:"providers" validate:"min=1,dive"`
	Pricing      []PriceConfig             `mapstructure:"pricing" validate:"dive"`
	Reasoner     reasoner.Config           `mapstructure:"reasoner"`
	Guardrail    guardrail.Config          `mapstructure:"guardrail"`
	Orchestrator orchestrator.Config       `mapstructure:"orchestrator"`
	GapPolicy    gap.Policy                `mapstructure:"gap_policy"`
}

// PriceTable merges configured rates over the built-in table.
func (c Config) PriceTable() map[string]reasoner.Price {
	table := reasoner.DefaultPricing()
	for _, p := range c.Pricing {
		table[p.Model] = reasoner.Price{Input: p.Input, Output: p.Output}
	}
	return table
}

// #endregion types

// #region defaults
// Default returns a configuration that runs against Groq with an OpenAI
// fallback and an on-disk SQLite store.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Store:  StoreConfig{Driver: "sqlite", Path: "advisor.db", TTL: 24 * time.Hour},
		Providers: []ProviderConfig{
			{Name: "groq", Kind: KindOpenAI, Model: "llama-3.3-70b-versatile", BaseURL: reasoner.GroqBaseURL, APIKeyEnv: "GROQ_API_KEY"},
			{Name: "openai", Kind: KindOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
		},
		Reasoner:     reasoner.DefaultConfig(),
		Guardrail:    guardrail.DefaultConfig(),
		Orchestrator: orchestrator.DefaultConfig(),
		GapPolicy:    gap.DefaultPolicy(),
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.redis_url", d.Store.RedisURL)
	v.SetDefault("store.ttl", d.Store.TTL)

	providers := make([]map[string]any, len(d.Providers))
	for i, p := range d.Providers {
		providers[i] = map[string]any{
			"name": p.Name, "kind": p.Kind, "model": p.Model,
			"base_url": p.BaseURL, "api_key_env": p.APIKeyEnv, "address": p.Address,
		}
	}
	v.SetDefault("providers", providers)

	r := d.Reasoner
	v.SetDefault("reasoner.max_attempts", r.MaxAttempts)
	v.SetDefault("reasoner.initial_backoff", r.InitialBackoff)
	v.SetDefault("reasoner.max_backoff", r.MaxBackoff)
	v.SetDefault("reasoner.multiplier", r.Multiplier)
	v.SetDefault("reasoner.jitter", r.Jitter)
	v.SetDefault("reasoner.call_timeout", r.CallTimeout)
	v.SetDefault("reasoner.rate_per_second", r.RatePerSecond)
	v.SetDefault("reasoner.burst", r.Burst)
	v.SetDefault("reasoner.breaker.failure_threshold", r.Breaker.FailureThreshold)
	v.SetDefault("reasoner.breaker.success_threshold", r.Breaker.SuccessThreshold)
	v.SetDefault("reasoner.breaker.open_timeout", r.Breaker.OpenTimeout)
	v.SetDefault("reasoner.breaker.half_open_max", r.Breaker.HalfOpenMax)

	g := d.Guardrail
	v.SetDefault("guardrail.max_iterations", g.MaxIterations)
	v.SetDefault("guardrail.max_tokens_per_session", g.MaxTokensPerSession)
	v.SetDefault("guardrail.max_cost_per_session", g.MaxCostPerSession)
	v.SetDefault("guardrail.require_human_approval_threshold", g.RequireHumanApprovalThreshold)
	v.SetDefault("guardrail.max_tool_calls_per_iteration", g.MaxToolCallsPerIteration)
	v.SetDefault("guardrail.session_timeout", g.SessionTimeout)

	o := d.Orchestrator
	v.SetDefault("orchestrator.confidence_threshold", o.ConfidenceThreshold)
	v.SetDefault("orchestrator.max_iterations", o.MaxIterations)
	v.SetDefault("orchestrator.history_window", o.HistoryWindow)
	v.SetDefault("orchestrator.think_temperature", o.ThinkTemperature)
	v.SetDefault("orchestrator.max_tokens", o.MaxTokens)
	v.SetDefault("orchestrator.low_confidence", o.LowConfidence)

	v.SetDefault("gap_policy.min_factors", d.GapPolicy.MinFactors)
	v.SetDefault("gap_policy.min_iterations", d.GapPolicy.MinIterations)
}

// #endregion defaults

// #region load
var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads path, or advisor.yaml from the working directory when path is
// empty, applies ADVISOR_* overrides and validates the result. A missing
// advisor.yaml is not an error; a missing explicit path is.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("advisor")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field limits.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Reasoner.MaxBackoff < cfg.Reasoner.InitialBackoff {
		return fmt.Errorf("invalid config: reasoner.max_backoff (%s) below initial_backoff (%s)",
			cfg.Reasoner.MaxBackoff, cfg.Reasoner.InitialBackoff)
	}
	seen := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if seen[p.Name] {
			return fmt.Errorf("invalid config: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// #endregion load
