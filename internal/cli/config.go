package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys.
const (
	keyStorePath         = "store.path"
	keyRemoteBaseURL     = "remote.base_url"
	keyRemoteTimeout     = "remote.timeout"
	keyIdleTimeout       = "idle.timeout"
	keyCatalogPath       = "catalog.path"
	keyQuestionnairePath = "questionnaire.path"
	keyServerAddr        = "server.addr"
)

// Config is the resolved configuration: flags over FORMSYNC_* environment
// variables over the config file over defaults.
type Config struct {
	StorePath         string
	RemoteBaseURL     string
	RemoteTimeout     time.Duration
	IdleTimeout       time.Duration
	CatalogPath       string
	QuestionnairePath string
	ServerAddr        string
}

// newViper creates a viper instance with defaults and environment binding.
//
// FORMSYNC_STORE_PATH overrides store.path, and so on.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FORMSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyStorePath, "formsync.db")
	v.SetDefault(keyRemoteBaseURL, "")
	v.SetDefault(keyRemoteTimeout, "10s")
	v.SetDefault(keyIdleTimeout, "10m")
	v.SetDefault(keyCatalogPath, "")
	v.SetDefault(keyQuestionnairePath, "questionnaire.yaml")
	v.SetDefault(keyServerAddr, "127.0.0.1:8080")
	return v
}

// readConfigFile loads cfgFile, or formsync.toml from the working
// directory when cfgFile is empty. A missing default file is not an error.
func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("formsync")
		v.SetConfigType("toml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// resolveConfig reads the typed configuration out of v.
func resolveConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		StorePath:         v.GetString(keyStorePath),
		RemoteBaseURL:     v.GetString(keyRemoteBaseURL),
		RemoteTimeout:     v.GetDuration(keyRemoteTimeout),
		IdleTimeout:       v.GetDuration(keyIdleTimeout),
		CatalogPath:       v.GetString(keyCatalogPath),
		QuestionnairePath: v.GetString(keyQuestionnairePath),
		ServerAddr:        v.GetString(keyServerAddr),
	}
	if cfg.StorePath == "" {
		return Config{}, fmt.Errorf("%s must not be empty", keyStorePath)
	}
	if cfg.IdleTimeout <= 0 {
		return Config{}, fmt.Errorf("%s must be a positive duration, got %q", keyIdleTimeout, v.GetString(keyIdleTimeout))
	}
	if cfg.RemoteTimeout < 0 {
		return Config{}, fmt.Errorf("%s must not be negative", keyRemoteTimeout)
	}
	return cfg, nil
}
