package main

import (
	"bytes"
	"encoding/json"
	goerrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/natefinch/atomic"
	"github.com/spf13/viper"

	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/templating"
)

const (
	envPrefix         = "TMPLR"
	configFileEnv     = "TMPLR_CONFIG_FILE"
	configName        = ".tmplr"
	defaultConfigFile = ".tmplr.json"
)

// Config is the top-level configuration.
type Config struct {
	LogLevel  string `json:"log_level" mapstructure:"log_level"`
	LogFormat string `json:"log_format" mapstructure:"log_format"`
	// HistoryPath enables the render history journal when set.
	HistoryPath string                   `json:"history_path" mapstructure:"history_path"`
	Render      *templating.RenderConfig `json:"render" mapstructure:"render"`
}

// DefaultConfig creates a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		HistoryPath: "",
		Render:      templating.DefaultConfig(),
	}
}

// setDefaults registers every key with v so environment variables can
// override keys that appear in no config file.
func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("history_path", def.HistoryPath)
	v.SetDefault("render.autoescape_extensions", def.Render.AutoescapeExtensions)
	v.SetDefault("render.helpers", def.Render.Helpers)
	v.SetDefault("render.sanitize", def.Render.Sanitize)
}

// LoadConfig layers defaults, the config file, TMPLR_* environment
// variables and any flags already bound to v, in increasing precedence.
//
// The config file is explicit if given, else $TMPLR_CONFIG_FILE, else
// .tmplr.{json,yaml,...} in wd. Only the last one may be missing.
func LoadConfig(v *viper.Viper, explicit, wd string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	searched := false
	switch {
	case explicit != "":
		v.SetConfigFile(explicit)
	case os.Getenv(configFileEnv) != "":
		v.SetConfigFile(os.Getenv(configFileEnv))
	default:
		v.AddConfigPath(wd)
		v.SetConfigName(configName)
		searched = true
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !(searched && goerrors.As(err, &notFound)) {
			return nil, errors.Wrap(err, errcodes.ErrCodeInvalidConfig, "failed to read config file: "+err.Error()).
				WithContext("path", v.ConfigFileUsed())
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errcodes.ErrCodeInvalidConfig, "failed to parse configuration: "+err.Error())
	}
	if cfg.Render == nil {
		cfg.Render = templating.DefaultConfig()
	}
	return cfg, nil
}

// WriteDefaultConfig writes the default configuration as indented JSON to
// path. An existing file is never overwritten.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.New(errcodes.ErrCodeInvalidConfig, "refusing to overwrite existing config file "+path).
			WithContext("path", path)
	}

	data, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return errors.Wrap(err, errcodes.ErrCodeInvalidConfig, "failed to marshal default config: "+err.Error())
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, errcodes.ErrCodeOutputWrite, "failed to create config directory: "+err.Error()).
				WithContext("path", dir)
		}
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeOutputWrite, "failed to write config file "+path+": "+err.Error()).
			WithContext("path", path)
	}
	return nil
}
