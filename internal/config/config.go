package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type HSMConfig struct {
	Host           string        `env:"HSM_HOST" env-required:"true"`
	Port           string        `env:"HSM_PORT" env-required:"true"`
	Header         string        `env:"HSM_HEADER" env-default:"HEAD"`
	Timeout        time.Duration `env:"HSM_TIMEOUT" env-default:"5s"`
	ConnectTimeout time.Duration `env:"HSM_CONNECT_TIMEOUT" env-default:"3s"`
	StrictFraming  bool          `env:"HSM_STRICT_FRAMING" env-default:"false"`
	PoolSize       int           `env:"HSM_POOL_SIZE" env-default:"1"`

	// StartupKeyGen lets the startup check generate a ZPK and an RSA key pair.
	// Off by default: only a random number is requested.
	StartupKeyGen bool `env:"HSM_STARTUP_KEYGEN" env-default:"false"`
}

// Addr is the host:port the sessions dial.
func (c HSMConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

type HTTPServConfig struct {
	ServerAddr string `env:"HTTP_ADDR" env-default:":8080"`
}

type AuditConfig struct {
	File string `env:"AUDIT_FILE"`
}

type Config struct {
	HSM      HSMConfig
	Log      LogConfig
	HTTPServ HTTPServConfig
	Audit    AuditConfig
}

// MustLoad reads the .env file given with -config, then the environment.
// It panics when the configuration is incomplete.
func MustLoad() *Config {
	cfg, err := Load(getConfigPath())
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads path, when not empty, into the environment and decodes the
// configuration from it. Variables already set take precedence over the file.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.HSM.Timeout <= 0:
		return fmt.Errorf("HSM_TIMEOUT must be positive, got %s", c.HSM.Timeout)
	case c.HSM.ConnectTimeout <= 0:
		return fmt.Errorf("HSM_CONNECT_TIMEOUT must be positive, got %s", c.HSM.ConnectTimeout)
	case c.HSM.PoolSize < 1:
		return fmt.Errorf("HSM_POOL_SIZE must be at least 1, got %d", c.HSM.PoolSize)
	case len(c.HSM.Header) != 4:
		return fmt.Errorf("HSM_HEADER must be 4 characters, got %q", c.HSM.Header)
	}
	return nil
}

func getConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	return res
}
