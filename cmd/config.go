package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	configDirName  = ".geppetto"
	envPrefix      = "GEPPETTO"
	defaultTimeout = 30 * time.Second
)

// loadConfig reads ~/.geppetto/config.toml. Every key can be overridden by a
// GEPPETTO_ variable, e.g. GEPPETTO_FETCH_ROOT, including from a .env file in
// the working directory.
func loadConfig() (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, configDirName)

	cfg := viper.New()
	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(configDir)
	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	cfg.SetDefault("catalog.path", filepath.Join(configDir, "catalog.toml"))
	cfg.SetDefault("secrets.dir", filepath.Join(configDir, "secrets"))
	cfg.SetDefault("secrets.backend", "file")
	cfg.SetDefault("fetch.root", ".")
	cfg.SetDefault("fetch.cache_size", 256)
	cfg.SetDefault("fetch.timeout", defaultTimeout)
	cfg.SetDefault("query.timeout", defaultTimeout)
	cfg.SetDefault("s3.region", "us-east-1")
	cfg.SetDefault("s3.use_ssl", true)

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return cfg, nil
}

// newLogger writes human-readable logs to stderr. Only warnings and errors
// show until --verbose lowers the level.
func newLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = level
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
