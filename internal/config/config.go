// Package config handles configuration loading and management for soloagency.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "soloagency"

// Config holds all configuration for soloagency.
type Config struct {
	Provider     ProviderConfig     `mapstructure:"provider"`
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Classifier   ClassifierConfig   `mapstructure:"classifier"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
	Synthesis    SynthesisConfig    `mapstructure:"synthesis"`
	Conversation ConversationConfig `mapstructure:"conversation"`
	Shaping      ShapingConfig      `mapstructure:"shaping"`
	Defaults     DefaultsConfig     `mapstructure:"defaults"`
	Specialists  SpecialistsConfig  `mapstructure:"specialists"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
	Storage      StorageConfig      `mapstructure:"storage"`
	Log          LogConfig          `mapstructure:"log"`
	Session      SessionConfig      `mapstructure:"session"`
	Profile      ProfileConfig      `mapstructure:"profile"`
}

// ProviderConfig selects the completion backend.
type ProviderConfig struct {
	// Name is anthropic, bedrock or gemini.
	Name       string `mapstructure:"name"`
	Model      string `mapstructure:"model"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ClassifierConfig tunes the routing call.
type ClassifierConfig struct {
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int64   `mapstructure:"max_tokens"`
	MaxSpecialists int     `mapstructure:"max_specialists"`
}

// DispatchConfig tunes the specialist calls.
type DispatchConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	Concurrency int     `mapstructure:"concurrency"`
	// Policy is all_or_nothing or partial.
	Policy string `mapstructure:"policy"`
}

// SynthesisConfig tunes the merge call.
type SynthesisConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	Structured  bool    `mapstructure:"structured"`
}

// ConversationConfig holds history settings.
type ConversationConfig struct {
	Window      int `mapstructure:"window"`
	QueryBudget int `mapstructure:"query_budget"`
	// Mode is turns or thread.
	Mode string `mapstructure:"mode"`
}

// ShapingConfig holds reply length settings.
type ShapingConfig struct {
	WordBudget int `mapstructure:"word_budget"`
}

// DefaultsConfig holds fallback values.
type DefaultsConfig struct {
	Specialist string `mapstructure:"specialist"`
}

// SpecialistsConfig points at an optional catalogue replacing the built-in one.
type SpecialistsConfig struct {
	File string `mapstructure:"file"`
}

// TimeoutsConfig holds timeout settings.
type TimeoutsConfig struct {
	Completion time.Duration `mapstructure:"completion"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// SessionConfig holds per-conversation limits.
type SessionConfig struct {
	// FreeMessages caps user messages per conversation. 0 is unlimited.
	FreeMessages int `mapstructure:"free_messages"`
}

// ProfileConfig describes the solopreneur. It is shared with every
// specialist as background.
type ProfileConfig struct {
	FirstName           string `mapstructure:"first_name"`
	LastName            string `mapstructure:"last_name"`
	BusinessName        string `mapstructure:"business_name"`
	BusinessDescription string `mapstructure:"business_description"`
	Bio                 string `mapstructure:"bio"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GEMINI_API_KEY, SOLOAGENCY_*)
// 2. Project config (.soloagency.yaml in current directory or parent)
// 3. User config (~/.config/soloagency/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("SOLOAGENCY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Gemini.APIKey = expandEnv(cfg.Gemini.APIKey)
	cfg.Storage.Path = expandEnv(cfg.Storage.Path)
	cfg.Log.File = expandEnv(cfg.Log.File)
	cfg.Specialists.File = expandEnv(cfg.Specialists.File)

	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range cfg.settings() {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		v.Set(key, value)
	}

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// settings flattens the config into dot-notation keys.
func (c *Config) settings() map[string]any {
	return map[string]any{
		"provider.name":                c.Provider.Name,
		"provider.model":               c.Provider.Model,
		"provider.aws_region":          c.Provider.AWSRegion,
		"provider.aws_profile":         c.Provider.AWSProfile,
		"anthropic.api_key":            c.Anthropic.APIKey,
		"gemini.api_key":               c.Gemini.APIKey,
		"classifier.temperature":       c.Classifier.Temperature,
		"classifier.max_tokens":        c.Classifier.MaxTokens,
		"classifier.max_specialists":   c.Classifier.MaxSpecialists,
		"dispatch.temperature":         c.Dispatch.Temperature,
		"dispatch.max_tokens":          c.Dispatch.MaxTokens,
		"dispatch.concurrency":         c.Dispatch.Concurrency,
		"dispatch.policy":              c.Dispatch.Policy,
		"synthesis.temperature":        c.Synthesis.Temperature,
		"synthesis.max_tokens":         c.Synthesis.MaxTokens,
		"synthesis.structured":         c.Synthesis.Structured,
		"conversation.window":          c.Conversation.Window,
		"conversation.query_budget":    c.Conversation.QueryBudget,
		"conversation.mode":            c.Conversation.Mode,
		"shaping.word_budget":          c.Shaping.WordBudget,
		"defaults.specialist":          c.Defaults.Specialist,
		"specialists.file":             c.Specialists.File,
		"timeouts.completion":          c.Timeouts.Completion,
		"storage.path":                 c.Storage.Path,
		"log.level":                    c.Log.Level,
		"log.file":                     c.Log.File,
		"session.free_messages":        c.Session.FreeMessages,
		"profile.first_name":           c.Profile.FirstName,
		"profile.last_name":            c.Profile.LastName,
		"profile.business_name":        c.Profile.BusinessName,
		"profile.business_description": c.Profile.BusinessDescription,
		"profile.bio":                  c.Profile.Bio,
	}
}

// secretKeys are masked by Get.
var secretKeys = map[string]bool{
	"anthropic.api_key": true,
	"gemini.api_key":    true,
}

// Keys returns every configuration key in sorted order.
func (c *Config) Keys() []string {
	settings := c.settings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns a configuration value by dot-notation key. API keys are masked.
func (c *Config) Get(key string) (string, error) {
	key = strings.ToLower(key)
	value, ok := c.settings()[key]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	if secretKeys[key] {
		return MaskAPIKey(value.(string)), nil
	}
	return fmt.Sprint(value), nil
}

// Set parses value according to the type of key and stores it. The
// result must pass Validate.
func (c *Config) Set(key, value string) error {
	key = strings.ToLower(key)
	settings := c.settings()
	current, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	parsed, err := parseLike(current, value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	v := viper.New()
	for k, val := range settings {
		v.Set(k, val)
	}
	v.Set(key, parsed)

	next := &Config{}
	if err := v.Unmarshal(next); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = *next
	return nil
}

func parseLike(current any, value string) (any, error) {
	switch current.(type) {
	case string:
		return value, nil
	case bool:
		return strconv.ParseBool(value)
	case int:
		return strconv.Atoi(value)
	case int64:
		return strconv.ParseInt(value, 10, 64)
	case float64:
		return strconv.ParseFloat(value, 64)
	case time.Duration:
		return time.ParseDuration(value)
	default:
		return nil, fmt.Errorf("unsupported type %T", current)
	}
}

// Validate rejects unknown enum values and non-positive budgets.
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "anthropic", "bedrock", "gemini":
	default:
		return fmt.Errorf("invalid provider.name %q: want anthropic, bedrock or gemini", c.Provider.Name)
	}
	switch c.Dispatch.Policy {
	case "all_or_nothing", "partial":
	default:
		return fmt.Errorf("invalid dispatch.policy %q: want all_or_nothing or partial", c.Dispatch.Policy)
	}
	switch c.Conversation.Mode {
	case "turns", "thread":
	default:
		return fmt.Errorf("invalid conversation.mode %q: want turns or thread", c.Conversation.Mode)
	}

	positive := map[string]int64{
		"classifier.max_tokens":     c.Classifier.MaxTokens,
		"dispatch.max_tokens":       c.Dispatch.MaxTokens,
		"dispatch.concurrency":      int64(c.Dispatch.Concurrency),
		"synthesis.max_tokens":      c.Synthesis.MaxTokens,
		"conversation.window":       int64(c.Conversation.Window),
		"conversation.query_budget": int64(c.Conversation.QueryBudget),
		"shaping.word_budget":       int64(c.Shaping.WordBudget),
		"timeouts.completion":       int64(c.Timeouts.Completion),
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}

	if c.Classifier.MaxSpecialists < 0 {
		return fmt.Errorf("classifier.max_specialists must not be negative")
	}
	if c.Session.FreeMessages < 0 {
		return fmt.Errorf("session.free_messages must not be negative")
	}
	if c.Defaults.Specialist == "" {
		return fmt.Errorf("defaults.specialist is required")
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ProfileContext renders the profile as shared context. It returns "" when
// no profile field is set.
func (c *Config) ProfileContext() string {
	p := c.Profile
	if p.FirstName == "" && p.LastName == "" && p.BusinessName == "" && p.BusinessDescription == "" && p.Bio == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Context about this solopreneur:\n")
	sb.WriteString("User information:\n")
	fmt.Fprintf(&sb, "Name: %s\n", strings.TrimSpace(p.FirstName+" "+p.LastName))
	fmt.Fprintf(&sb, "Business: %s\n", p.BusinessName)
	fmt.Fprintf(&sb, "Business description: %s\n", p.BusinessDescription)
	fmt.Fprintf(&sb, "Bio: %s", p.Bio)
	return sb.String()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()
	for key, value := range d.settings() {
		v.SetDefault(key, value)
	}
}

// getUserConfigDir returns the XDG config directory for soloagency.
func getUserConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// xdgDir resolves an XDG base directory for the app, falling back to
// fallback under the home directory.
func xdgDir(env, fallback string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallback, appName)
	}
	return filepath.Join(home, fallback, appName)
}

// findProjectConfig searches for .soloagency.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, "."+appName+".yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "anthropic",
		},
		Classifier: ClassifierConfig{
			Temperature: 0.2,
			MaxTokens:   300,
		},
		Dispatch: DispatchConfig{
			Temperature: 0.7,
			MaxTokens:   500,
			Concurrency: 4,
			Policy:      "all_or_nothing",
		},
		Synthesis: SynthesisConfig{
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		Conversation: ConversationConfig{
			Window:      10,
			QueryBudget: 500,
			Mode:        "turns",
		},
		Shaping: ShapingConfig{
			WordBudget: 200,
		},
		Defaults: DefaultsConfig{
			Specialist: "strategy",
		},
		Timeouts: TimeoutsConfig{
			Completion: 45 * time.Second,
		},
		Storage: StorageConfig{
			Path: filepath.Join(xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share")), appName+".db"),
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state")), appName+".log"),
		},
	}
}
