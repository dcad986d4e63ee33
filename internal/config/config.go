package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	// ResolverBackendSystem resolves names through the operating system resolver (net.Resolver).
	ResolverBackendSystem = "system"
	// ResolverBackendDNS sends DNS wire queries directly to the configured nameservers.
	ResolverBackendDNS = "dns"
)

// Config represents the application configuration structure.
// It contains settings for the environment, logging, name resolution, the
// WHOIS endpoint and metrics export.
type Config struct {
	// Environment specifies the current running environment (development, production, etc.)
	Environment string `env:"ENVIRONMENT" env-default:"development" yaml:"environment"`
	// LogLevel is the minimum zap level written to stderr
	LogLevel string `env:"LOG_LEVEL" env-default:"warn" yaml:"logLevel"`

	// Resolver contains all name resolution related configurations
	Resolver struct {
		// Backend selects the resolver implementation: "system" or "dns"
		Backend string `env:"RESOLVER_BACKEND" env-default:"system" yaml:"backend"`
		// Servers is an optional list of nameservers (host or host:port) to query instead of the defaults
		Servers []string `env:"RESOLVER_SERVERS" env-separator:"," yaml:"servers"`
		// ResolvConf is the resolv.conf file read by the dns backend when Servers is empty
		ResolvConf string `env:"RESOLVER_RESOLV_CONF" env-default:"/etc/resolv.conf" yaml:"resolvConf"`
		// Timeout bounds a whole resolution, including retries across servers
		Timeout time.Duration `env:"RESOLVER_TIMEOUT" env-default:"5s" yaml:"timeout"`
	} `yaml:"resolver"`

	// Whois contains all WHOIS endpoint related configurations
	Whois struct {
		// Host is the WHOIS server hostname
		Host string `env:"WHOIS_HOST" env-default:"whois.cymru.com" yaml:"host"`
		// Port is the WHOIS server TCP port
		Port int `env:"WHOIS_PORT" env-default:"43" yaml:"port"`
		// DialTimeout is the maximum duration for establishing the TCP connection
		DialTimeout time.Duration `env:"WHOIS_DIAL_TIMEOUT" env-default:"10s" yaml:"dialTimeout"`
		// WriteTimeout is the maximum duration for sending the query line
		WriteTimeout time.Duration `env:"WHOIS_WRITE_TIMEOUT" env-default:"5s" yaml:"writeTimeout"`
		// ReadTimeout is the maximum duration for reading the whole response
		ReadTimeout time.Duration `env:"WHOIS_READ_TIMEOUT" env-default:"30s" yaml:"readTimeout"`
		// MaxResponseBytes caps the size of a response
		MaxResponseBytes int64 `env:"WHOIS_MAX_RESPONSE_BYTES" env-default:"1048576" yaml:"maxResponseBytes"`
	} `yaml:"whois"`

	// Metrics contains metrics export related configurations
	Metrics struct {
		// TextfilePath is where metrics are written in Prometheus text format on exit; empty disables export
		TextfilePath string `env:"METRICS_TEXTFILE_PATH" yaml:"textfilePath"`
	} `yaml:"metrics"`
}

// Load returns a filled Config struct. When configPath is empty only environment
// variables (and defaults) are used, otherwise the yaml file is read first and
// environment variables override it.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("could not read config from env: %w", err)
		}

		return &cfg, nil
	}

	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}

	return &cfg, nil
}
