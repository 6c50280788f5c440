package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/nickyhof/storeadapter/core"
	"github.com/nickyhof/storeadapter/op"
	"github.com/nickyhof/storeadapter/ps"
)

// Config is the server configuration, read from a file and
// STOREADAPTER_SERVER_* environment variables.
type Config struct {
	Addr string `mapstructure:"addr"`
	// BaseDir holds the store repository; empty means in memory.
	BaseDir string `mapstructure:"base_dir"`
	// GitURL seeds an empty BaseDir by cloning.
	GitURL string `mapstructure:"git_url"`
	// GitToken authenticates the clone.
	GitToken string `mapstructure:"git_token"`

	TLS          TLSConfig           `mapstructure:"tls"`
	Auth         AuthConfig          `mapstructure:"auth"`
	Identity     IdentityConfig      `mapstructure:"identity"`
	Perspectives []PerspectiveConfig `mapstructure:"perspectives"`
}

type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

type IdentityConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

type PerspectiveConfig struct {
	Name     string   `mapstructure:"name"`
	Database string   `mapstructure:"database"`
	Tables   []string `mapstructure:"tables"`
	ReadOnly bool     `mapstructure:"read_only"`
}

func (p PerspectiveConfig) Perspective() core.Perspective {
	database := p.Database
	if database == "" {
		database = p.Name
	}
	return core.Perspective{Name: p.Name, Database: database, Tables: p.Tables, ReadOnly: p.ReadOnly}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":3306")
	v.SetDefault("base_dir", "")
	v.SetDefault("git_url", "")
	v.SetDefault("git_token", "")
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.name_claim", "name")
	v.SetDefault("auth.email_claim", "email")
	v.SetDefault("identity.name", "storeadapter server")
	v.SetDefault("identity.email", "server@storeadapter.local")
}

// NewViper returns a viper instance with the server defaults and
// environment binding, for callers that bind flags before loading.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("STOREADAPTER_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from path, if given, on top of defaults
// and environment variables.
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
	if config.Auth.Enabled && config.Auth.JWTSecret == "" {
		return Config{}, errors.New("auth.jwt_secret is required when auth is enabled")
	}
	return config, nil
}

func (c Config) CoreIdentity() core.Identity {
	return core.Identity{Name: c.Identity.Name, Email: c.Identity.Email}
}

// OpenPersistence opens the store the configuration describes.
func (c Config) OpenPersistence() (*ps.Persistence, error) {
	if c.BaseDir == "" {
		return ps.NewMemoryPersistence()
	}
	var clone *ps.CloneOptions
	if c.GitURL != "" {
		clone = &ps.CloneOptions{URL: c.GitURL, Auth: ps.TokenAuth(c.GitToken)}
	}
	return ps.NewFilePersistence(c.BaseDir, clone)
}

// EnsurePerspectives stores the configured perspectives that do not exist
// yet, creating their databases as needed.
func EnsurePerspectives(persistence *ps.Persistence, perspectives []PerspectiveConfig, identity core.Identity) error {
	persistence.Lock()
	defer persistence.Unlock()

	for _, cfg := range perspectives {
		if cfg.Name == "" {
			return errors.New("perspective without a name")
		}
		if _, err := persistence.GetPerspective(cfg.Name); err == nil {
			continue
		}

		perspective := cfg.Perspective()
		if _, err := op.EnsureDatabase(perspective.Database, persistence, identity); err != nil {
			return fmt.Errorf("perspective %s: %w", perspective.Name, err)
		}
		if _, err := persistence.CreatePerspective(perspective, identity); err != nil {
			return fmt.Errorf("perspective %s: %w", perspective.Name, err)
		}
	}
	return nil
}
