// Package config loads the dashboard's runtime settings via
// github.com/spf13/viper, the teacher's configuration-loading dependency,
// backed by a YAML file (decoded by viper itself) with environment-variable
// overrides.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config is every setting spec.md §6 names, plus the locale and time zone
// the dist-build debug block and locale-aware number formatting need.
type Config struct {
	DefaultThreadLineLimit    int    `mapstructure:"default_thread_line_limit" yaml:"default_thread_line_limit"`
	ThreadLineLimitOnWarning  int    `mapstructure:"thread_line_limit_on_warning" yaml:"thread_line_limit_on_warning"`
	ThreadLineLimitOnError    int    `mapstructure:"thread_line_limit_on_error" yaml:"thread_line_limit_on_error"`
	AlwaysSortThreadsByTime   bool   `mapstructure:"always_sort_threads_by_time" yaml:"always_sort_threads_by_time"`
	RenderIntervalMs          int    `mapstructure:"render_interval_ms" yaml:"render_interval_ms"`
	TestResultVerbosity       string `mapstructure:"test_result_verbosity" yaml:"test_result_verbosity"`
	TestLogPath               string `mapstructure:"test_log_path" yaml:"test_log_path"`
	Locale                    string `mapstructure:"locale" yaml:"locale"`
	TimeZone                  string `mapstructure:"time_zone" yaml:"time_zone"`
}

// Defaults mirrors the values a fresh dashboard run needs with no
// configuration file present at all.
func Defaults() Config {
	return Config{
		DefaultThreadLineLimit:   10,
		ThreadLineLimitOnWarning: 5,
		ThreadLineLimitOnError:   2,
		AlwaysSortThreadsByTime:  false,
		RenderIntervalMs:         100,
		TestResultVerbosity:      "normal",
		TestLogPath:              "",
		Locale:                   "en-US",
		TimeZone:                 "Local",
	}
}

// Load reads configFile (if non-empty) through viper, applying Defaults
// first so every field has a sane value even with a partial or absent
// file; environment variables prefixed BUILDCONSOLE_ take precedence over
// the file, viper's own override order.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BUILDCONSOLE")
	v.AutomaticEnv()

	defaults := Defaults()
	v.SetDefault("default_thread_line_limit", defaults.DefaultThreadLineLimit)
	v.SetDefault("thread_line_limit_on_warning", defaults.ThreadLineLimitOnWarning)
	v.SetDefault("thread_line_limit_on_error", defaults.ThreadLineLimitOnError)
	v.SetDefault("always_sort_threads_by_time", defaults.AlwaysSortThreadsByTime)
	v.SetDefault("render_interval_ms", defaults.RenderIntervalMs)
	v.SetDefault("test_result_verbosity", defaults.TestResultVerbosity)
	v.SetDefault("test_log_path", defaults.TestLogPath)
	v.SetDefault("locale", defaults.Locale)
	v.SetDefault("time_zone", defaults.TimeZone)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// ParseLocale resolves the configured locale string to a language.Tag,
// falling back to American English on an unrecognized value.
func (c Config) ParseLocale() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// ParseTimeZone resolves the configured time zone name, falling back to
// time.Local on an unrecognized value.
func (c Config) ParseTimeZone() *time.Location {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RenderInterval returns RenderIntervalMs as a time.Duration.
func (c Config) RenderInterval() time.Duration {
	if c.RenderIntervalMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.RenderIntervalMs) * time.Millisecond
}
