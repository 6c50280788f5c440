package adapter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const DefaultStatementLimit = 1000

// Config holds the connection parameters of an Adapter.
type Config struct {
	// URL selects the store driver by scheme, e.g. memory://dev,
	// file:///var/lib/store or tcp://host:3306.
	URL string `mapstructure:"url"`
	// App names the perspective the session works through.
	App string `mapstructure:"app"`

	// Token is the access token presented to the store. TokenFile is read
	// when Token is empty; it may be a local path, an http(s) URL or an
	// s3://bucket/key URL.
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"token_file"`
	// Username overrides the identity derived from the token.
	Username string `mapstructure:"username"`

	PreparedStatements bool `mapstructure:"prepared_statements"`
	// StatementLimit bounds the statement pool; zero or less disables it.
	StatementLimit int `mapstructure:"statement_limit"`

	S3 S3Config `mapstructure:"s3"`
}

// S3Config configures access to token files stored in S3 or an
// S3-compatible service.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DefaultConfig enables prepared statements and caches up to
// DefaultStatementLimit statements per worker.
func DefaultConfig() Config {
	return Config{
		PreparedStatements: true,
		StatementLimit:     DefaultStatementLimit,
	}
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("url", "")
	v.SetDefault("app", "")
	v.SetDefault("token", "")
	v.SetDefault("token_file", "")
	v.SetDefault("username", "")
	v.SetDefault("prepared_statements", defaults.PreparedStatements)
	v.SetDefault("statement_limit", defaults.StatementLimit)
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
}

// NewViper returns a viper instance carrying the adapter defaults and
// STOREADAPTER_* environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STOREADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path, if given, over the defaults; environment
// variables override both. The result is validated.
func LoadConfig(path string) (Config, error) {
	return LoadConfigWith(NewViper(), path)
}

func LoadConfigWith(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return config, config.Validate()
}

// Validate checks the parameters needed before connecting.
func (c Config) Validate() error {
	if c.URL == "" {
		return &ConfigurationError{Param: "url"}
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" {
		return &ConfigurationError{Param: "url", Reason: fmt.Sprintf("%q is not a store url", c.URL)}
	}
	if c.App == "" {
		return &ConfigurationError{Param: "app"}
	}
	if c.Token != "" && c.TokenFile != "" {
		return &ConfigurationError{Param: "token_file", Reason: "token and token_file are mutually exclusive"}
	}
	return nil
}
