package main

import (
	"errors"
	"strings"
	"time"

	"github.com/rexlx/spark/forum"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"http"`
	Database struct {
		Type string `mapstructure:"type"`
		DSN  string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Auth struct {
		TokenTTL   time.Duration `mapstructure:"token_ttl"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`
	Session struct {
		Lifetime time.Duration `mapstructure:"lifetime"`
		Secure   bool          `mapstructure:"secure"`
	} `mapstructure:"session"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	Seed struct {
		Pages bool `mapstructure:"pages"`
		// Defaults replaces the built-in page list when set.
		Defaults []forum.PageSeed `mapstructure:"defaults"`
	} `mapstructure:"seed"`
}

var defaults = map[string]any{
	"http.addr":        ":8080",
	"database.type":    "sqlite",
	"database.dsn":     "./spark.db",
	"auth.token_ttl":   forum.DefaultTokenTTL,
	"auth.bcrypt_cost": forum.DefaultBcryptCost,
	"session.lifetime": 24 * time.Hour,
	"session.secure":   false,
	"log.level":        "info",
	"log.format":       "json",
	"seed.pages":       true,
}

// loadConfig merges, from lowest to highest precedence: defaults, the config
// file (spark.yaml in . or /etc/spark, or the --config path), SPARK_*
// environment variables and flags set on cmd.
func loadConfig(cmd *cobra.Command, path string) (Config, error) {
	var c Config
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("spark")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/spark")
	}
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return c, err
		}
	}

	v.SetEnvPrefix("spark")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	if len(c.Seed.Defaults) == 0 {
		c.Seed.Defaults = forum.DefaultPages
	}
	return c, nil
}
