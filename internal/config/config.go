// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Header value sources understood by the header projector.
const (
	HeaderSourceReferenceID = "reference_id"
	HeaderSourceInstanceID  = "instance_id"
	HeaderSourceParam       = "param"
	HeaderSourceStatic      = "static"
)

// Header profiles.
const (
	// HeaderProfileReference installs the reference and instance identifiers.
	HeaderProfileReference = "reference"
	// HeaderProfileCustom installs exactly the configured rules.
	HeaderProfileCustom = "custom"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	SignOn  SignOnConfig  `mapstructure:"signon" yaml:"signon"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the browser that performs the login.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// LaunchTimeout bounds the time to get a responsive browser.
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// WaitSelector, when set, must become visible before cookies are harvested.
	WaitSelector string        `mapstructure:"wait_selector" yaml:"wait_selector"`
	PostLoadWait time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
	CloseTimeout time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	// Stealth hides the most common automation markers from the identity provider.
	Stealth   bool     `mapstructure:"stealth" yaml:"stealth"`
	Timezone  string   `mapstructure:"timezone" yaml:"timezone"`
	Locale    string   `mapstructure:"locale" yaml:"locale"`
	Languages []string `mapstructure:"languages" yaml:"languages"`
}

// NetworkConfig tunes the HTTP client used outside the browser.
type NetworkConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ForceHTTP2      bool          `mapstructure:"force_http2" yaml:"force_http2"`
	Proxy           ProxyConfig   `mapstructure:"proxy" yaml:"proxy"`
	// RetryMax applies to the initial redirect fetch only.
	RetryMax     int           `mapstructure:"retry_max" yaml:"retry_max"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min" yaml:"retry_wait_min"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max" yaml:"retry_wait_max"`
	// RateLimit caps requests per second on the bridged session. Zero is unlimited.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	UserAgent string  `mapstructure:"user_agent" yaml:"user_agent"`
}

// ProxyConfig defines the configuration for an outbound proxy.
type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

// SignOnConfig describes the application being signed into.
type SignOnConfig struct {
	Strategy        string        `mapstructure:"strategy" yaml:"strategy"`
	AppURL          string        `mapstructure:"app_url" yaml:"app_url"`
	PostRedirectURL string        `mapstructure:"post_redirect_url" yaml:"post_redirect_url"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Headers         HeadersConfig `mapstructure:"headers" yaml:"headers"`
}

// HeadersConfig selects the authentication headers installed on a bridged session.
type HeadersConfig struct {
	Profile string       `mapstructure:"profile" yaml:"profile"`
	Rules   []HeaderRule `mapstructure:"rules" yaml:"rules"`
}

// HeaderRule derives one header. Source is one of the HeaderSource constants;
// Param names the fragment parameter for the "param" source and Value is the
// literal for the "static" source. Prefix is prepended to the derived value.
type HeaderRule struct {
	Name   string `mapstructure:"name" yaml:"name"`
	Source string `mapstructure:"source" yaml:"source"`
	Param  string `mapstructure:"param" yaml:"param"`
	Value  string `mapstructure:"value" yaml:"value"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

// ReferenceProfileRules is the header set installed by the "reference" profile.
func ReferenceProfileRules() []HeaderRule {
	return []HeaderRule{
		{Name: "X-Reference-Id", Source: HeaderSourceReferenceID},
		{Name: "X-Instance-Id", Source: HeaderSourceInstanceID},
	}
}

// EffectiveRules resolves the profile into the concrete rule list.
func (h HeadersConfig) EffectiveRules() []HeaderRule {
	if strings.EqualFold(h.Profile, HeaderProfileCustom) {
		return append([]HeaderRule(nil), h.Rules...)
	}
	return ReferenceProfileRules()
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "ssobridge")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "90s")
	v.SetDefault("browser.post_load_wait", "2s")
	v.SetDefault("browser.close_timeout", "10s")
	v.SetDefault("browser.stealth", true)

	// -- Network --
	v.SetDefault("network.timeout", "30s")
	v.SetDefault("network.ignore_tls_errors", false)
	v.SetDefault("network.force_http2", true)
	v.SetDefault("network.proxy.enabled", false)
	v.SetDefault("network.retry_max", 2)
	v.SetDefault("network.retry_wait_min", "500ms")
	v.SetDefault("network.retry_wait_max", "5s")
	v.SetDefault("network.rate_limit", 0.0)
	v.SetDefault("network.user_agent", "ssobridge/1.0")

	// -- Sign-on --
	v.SetDefault("signon.strategy", "AUTO_SIGN_ON")
	v.SetDefault("signon.timeout", "5m")
	v.SetDefault("signon.headers.profile", HeaderProfileReference)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Browser.NavigationTimeout < 0 || c.Browser.PostLoadWait < 0 || c.Browser.LaunchTimeout < 0 {
		return fmt.Errorf("browser timeouts must not be negative")
	}
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.Network.RetryMax < 0 {
		return fmt.Errorf("network.retry_max must not be negative")
	}
	if c.Network.RateLimit < 0 {
		return fmt.Errorf("network.rate_limit must not be negative")
	}
	if c.Network.Proxy.Enabled {
		if _, err := url.Parse(c.Network.Proxy.Address); err != nil || c.Network.Proxy.Address == "" {
			return fmt.Errorf("network.proxy.address must be a valid URL when the proxy is enabled")
		}
	}
	if err := c.SignOn.Headers.Validate(); err != nil {
		return fmt.Errorf("signon.headers configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the header profile and its rules.
func (h *HeadersConfig) Validate() error {
	switch strings.ToLower(h.Profile) {
	case "", HeaderProfileReference:
		return nil
	case HeaderProfileCustom:
	default:
		return fmt.Errorf("unknown profile %q (expected %q or %q)", h.Profile, HeaderProfileReference, HeaderProfileCustom)
	}

	if len(h.Rules) == 0 {
		return fmt.Errorf("the custom profile requires at least one rule")
	}
	seen := make(map[string]bool, len(h.Rules))
	for i, r := range h.Rules {
		if strings.TrimSpace(r.Name) == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		key := strings.ToLower(r.Name)
		if seen[key] {
			return fmt.Errorf("rule %d: duplicate header %q", i, r.Name)
		}
		seen[key] = true

		switch r.Source {
		case HeaderSourceReferenceID, HeaderSourceInstanceID:
		case HeaderSourceParam:
			if r.Param == "" {
				return fmt.Errorf("rule %d (%s): source %q requires param", i, r.Name, r.Source)
			}
		case HeaderSourceStatic:
			if r.Value == "" {
				return fmt.Errorf("rule %d (%s): source %q requires value", i, r.Name, r.Source)
			}
		default:
			return fmt.Errorf("rule %d (%s): unknown source %q", i, r.Name, r.Source)
		}
	}
	return nil
}
