// Package config loads the agent chat configuration from an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes generic overrides, e.g. AGENTCHAT_SERVER__PORT.
const EnvPrefix = "AGENTCHAT_"

const (
	DefaultAliasID        = "TSTALIASID"
	DefaultRegion         = "us-east-1"
	DefaultTitle          = "Welcome to AutoMDR Agent.."
	DefaultPort           = 8080
	DefaultRequestTimeout = 5 * time.Minute
	DefaultUploadLimit    = 10 << 20
	DefaultEncoding       = "cl100k_base"
)

// bedrockEnv maps the agent's historical environment variables to keys.
var bedrockEnv = map[string]string{
	"BEDROCK_AGENT_ID":            "agent.id",
	"BEDROCK_AGENT_ALIAS_ID":      "agent.alias_id",
	"BEDROCK_AGENT_TEST_UI_TITLE": "ui.title",
	"BEDROCK_AGENT_TEST_UI_ICON":  "ui.icon",
}

type Config struct {
	Agent     AgentConfig     `koanf:"agent"`
	Server    ServerConfig    `koanf:"server"`
	UI        UIConfig        `koanf:"ui"`
	Log       LogConfig       `koanf:"log"`
	Tokens    TokensConfig    `koanf:"tokens"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type AgentConfig struct {
	ID          string `koanf:"id"`
	AliasID     string `koanf:"alias_id"`
	Region      string `koanf:"region"`
	EnableTrace bool   `koanf:"enable_trace"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	UploadLimit    int64         `koanf:"upload_limit"` // bytes

	// APIKeyHashes are hex SHA-256 hashes of accepted bearer keys. The API
	// is open when empty.
	APIKeyHashes []string `koanf:"api_key_hashes"`
}

type UIConfig struct {
	Title string `koanf:"title"`
	Icon  string `koanf:"icon"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TokensConfig struct {
	Encoding string `koanf:"encoding"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads path (DefaultPath when empty), then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("BEDROCK_AGENT_", ".", func(s string) string {
		return bedrockEnv[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(env.Provider("AWS_REGION", ".", func(s string) string {
		if s != "AWS_REGION" {
			return ""
		}
		return "agent.region"
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	setDefault(k, "agent.alias_id", DefaultAliasID)
	setDefault(k, "agent.region", DefaultRegion)
	setDefault(k, "agent.enable_trace", true)
	setDefault(k, "server.port", DefaultPort)
	setDefault(k, "server.request_timeout", DefaultRequestTimeout.String())
	setDefault(k, "server.upload_limit", DefaultUploadLimit)
	setDefault(k, "ui.title", DefaultTitle)
	setDefault(k, "log.level", "info")
	setDefault(k, "log.format", "json")
	setDefault(k, "tokens.encoding", DefaultEncoding)
	setDefault(k, "telemetry.service_name", "bedrock-agent-chat")

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Agent.ID = substituteEnvVars(cfg.Agent.ID)
	cfg.Agent.AliasID = substituteEnvVars(cfg.Agent.AliasID)
	cfg.Agent.Region = substituteEnvVars(cfg.Agent.Region)
	cfg.UI.Title = substituteEnvVars(cfg.UI.Title)
	cfg.UI.Icon = substituteEnvVars(cfg.UI.Icon)

	return &cfg, nil
}

func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Agent.ID == "" {
		return errors.New("agent.id is required (set BEDROCK_AGENT_ID)")
	}
	if c.Agent.AliasID == "" {
		return errors.New("agent.alias_id is required")
	}
	if c.Agent.Region == "" {
		return errors.New("agent.region is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.UploadLimit <= 0 {
		return fmt.Errorf("server.upload_limit must be positive, got %d", c.Server.UploadLimit)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format and level.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
