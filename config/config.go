package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvironmentProduction = "production"

	EnvironmentDevelopment = "development"
)

type Config struct {
	Environment string `mapstructure:"environment"`

	Server ServerConfig `mapstructure:"server"`

	DB DBConfig `mapstructure:"db"`

	Cache CacheConfig `mapstructure:"cache"`

	Auth AuthConfig `mapstructure:"auth"`

	Notify NotifyConfig `mapstructure:"notify"`

	Log LogConfig `mapstructure:"log"`

	CORS CORSConfig `mapstructure:"cors"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DBConfig selects postgres for deployments and sqlite for local runs.
type DBConfig struct {
	Driver string `mapstructure:"driver"`

	Host string `mapstructure:"host"`

	Port string `mapstructure:"port"`

	User string `mapstructure:"user"`

	Password string `mapstructure:"password"`

	Name string `mapstructure:"name"`

	// DSN is the sqlite file path, or a full postgres DSN overriding the fields above
	DSN string `mapstructure:"dsn"`
}

type CacheConfig struct {
	// Capacity is the number of argument sets remembered per report query
	Capacity int `mapstructure:"capacity"`

	// Fingerprints bounds the machine config lookup cache
	Fingerprints int64 `mapstructure:"fingerprints"`
}

type AuthConfig struct {
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
}

type NotifyConfig struct {
	CrashEndpoint string `mapstructure:"crash_endpoint"`
}

type LogConfig struct {
	Dir string `mapstructure:"dir"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// flagKeys maps command line flags to config keys
var flagKeys = map[string]string{

	"environment": "environment",

	"port": "server.port",

	"db-driver": "db.driver",

	"db-dsn": "db.dsn",

	"log-dir": "log.dir",
}

// RegisterFlags adds the flags Load understands to fs
func RegisterFlags(fs *pflag.FlagSet) {

	fs.String("environment", EnvironmentDevelopment, "production or development")

	fs.String("port", "8080", "HTTP listen port")

	fs.String("db-driver", "postgres", "postgres or sqlite")

	fs.String("db-dsn", "", "database DSN or sqlite file")

	fs.String("log-dir", "", "write logs to a dated file in this directory")
}

func setDefaults(v *viper.Viper) {

	v.SetDefault("environment", EnvironmentDevelopment)

	v.SetDefault("server.port", "8080")

	v.SetDefault("db.driver", "postgres")

	v.SetDefault("db.host", "localhost")

	v.SetDefault("db.port", "5432")

	v.SetDefault("db.user", "postgres")

	v.SetDefault("db.password", "postgres")

	v.SetDefault("db.name", "statsdb")

	v.SetDefault("db.dsn", "")

	v.SetDefault("cache.capacity", 3)

	v.SetDefault("cache.fingerprints", 100000)

	v.SetDefault("auth.api_key_hashes", []string{})

	v.SetDefault("notify.crash_endpoint", "")

	v.SetDefault("log.dir", "")

	v.SetDefault("cors.allow_origins", []string{"*"})
}

// Load reads .env, then the optional config file, then STATSDB_* environment
// variables, then flags. Later sources win.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {

	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("STATSDB")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	if configFile != "" {

		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if flags != nil {

		for name, key := range flagKeys {

			flag := flags.Lookup(name)

			if flag == nil {
				continue
			}

			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {

	switch c.Environment {

	case EnvironmentProduction, EnvironmentDevelopment:

	default:
		return fmt.Errorf("invalid environment %q, expected %q or %q", c.Environment, EnvironmentProduction, EnvironmentDevelopment)
	}

	switch c.DB.Driver {

	case "postgres", "sqlite":

	default:
		return fmt.Errorf("invalid db driver %q", c.DB.Driver)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// GetDBConnectionString returns the DSN for the configured driver
func (c *Config) GetDBConnectionString() string {

	if c.DB.DSN != "" {
		return c.DB.DSN
	}

	if c.DB.Driver == "sqlite" {
		return "statsdb.sqlite"
	}

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name)
}

func (c *Config) GetServerPort() string {
	return c.Server.Port
}
