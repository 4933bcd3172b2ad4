// Package config resolves tada's settings from defaults, TOML files, the
// environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Makepad-fr/tada/internal/apiclient"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/view"
)

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
	DefaultTheme     = "classic"
	FileName         = "config.toml"
)

// Config is the resolved configuration.
type Config struct {
	APIBaseURL     string        `toml:"api_base_url"`
	HomeDir        string        `toml:"home_dir"`
	LogLevel       string        `toml:"log_level"`
	LogFormat      string        `toml:"log_format"`
	LogFile        string        `toml:"log_file"`
	Theme          string        `toml:"theme"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	DefaultFilter  string        `toml:"default_filter"`
}

// Source says where a value came from.
type Source string

const (
	SourceDefault  Source = "default"
	SourceUserFile Source = "user file"
	SourceFile     Source = "config file"
	SourceEnv      Source = "env"
	SourceFlag     Source = "flag"
)

// Fields lists the configurable keys in display order.
var Fields = []string{
	"api_base_url", "home_dir", "log_level", "log_format",
	"log_file", "theme", "request_timeout", "default_filter",
}

// Loaded is a Config plus the origin of each field.
type Loaded struct {
	*Config
	Sources map[string]Source
	Files   []string
}

// LoadOptions control Load. Getenv defaults to os.Getenv; Flags holds
// values explicitly set on the command line, keyed like the TOML fields.
type LoadOptions struct {
	ExplicitFile string
	Flags        map[string]string
	Getenv       func(string) string
}

// DefaultHome is ~/.tada, or .tada when the home dir is unknown.
func DefaultHome() string {
	h, err := os.UserHomeDir()
	if err != nil || h == "" {
		return ".tada"
	}
	return filepath.Join(h, ".tada")
}

func setDefaults(cfg *Config) {
	cfg.APIBaseURL = apiclient.DefaultBaseURL
	cfg.HomeDir = DefaultHome()
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.Theme = DefaultTheme
	cfg.DefaultFilter = view.All.String()
}

// Load resolves the configuration:
// 1. Defaults
// 2. User config file (<home>/config.toml)
// 3. Explicit --config file
// 4. Environment variables
// 5. CLI flags
func Load(opts LoadOptions) (*Loaded, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := &Config{}
	setDefaults(cfg)
	l := &Loaded{Config: cfg, Sources: map[string]Source{}}
	for _, f := range Fields {
		l.Sources[f] = SourceDefault
	}

	// The home dir locates the user file, so it is resolved first.
	if v := getenv("TADA_HOME"); v != "" {
		cfg.HomeDir = v
	}
	if v := opts.Flags["home_dir"]; v != "" {
		cfg.HomeDir = v
	}
	cfg.HomeDir = expandPath(cfg.HomeDir)

	userFile := filepath.Join(cfg.HomeDir, FileName)
	if _, err := os.Stat(userFile); err == nil {
		if err := l.loadFile(userFile, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userFile, err)
		}
	}
	if opts.ExplicitFile != "" {
		if err := l.loadFile(opts.ExplicitFile, SourceFile); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", opts.ExplicitFile, err)
		}
	}

	if err := l.loadEnv(getenv); err != nil {
		return nil, err
	}
	if err := l.loadFlags(opts.Flags); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg.HomeDir = expandPath(cfg.HomeDir)
	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.HomeDir, "tada.log")
	} else if cfg.LogFile != "-" {
		cfg.LogFile = expandPath(cfg.LogFile)
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return l, nil
}

func (l *Loaded) loadFile(path string, src Source) error {
	md, err := toml.DecodeFile(path, l.Config)
	if err != nil {
		return err
	}
	if und := md.Undecoded(); len(und) > 0 {
		keys := make([]string, len(und))
		for i, k := range und {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	for _, f := range Fields {
		if md.IsDefined(f) {
			l.Sources[f] = src
		}
	}
	l.Files = append(l.Files, path)
	return nil
}

var envVars = map[string]string{
	"api_base_url":    "TADA_API_URL",
	"home_dir":        "TADA_HOME",
	"log_level":       "TADA_LOG_LEVEL",
	"log_format":      "TADA_LOG_FORMAT",
	"log_file":        "TADA_LOG_FILE",
	"theme":           "TADA_THEME",
	"request_timeout": "TADA_TIMEOUT",
	"default_filter":  "TADA_FILTER",
}

// EnvVar returns the environment variable for a field.
func EnvVar(field string) string { return envVars[field] }

func (l *Loaded) loadEnv(getenv func(string) string) error {
	for _, f := range Fields {
		v := getenv(envVars[f])
		if v == "" {
			continue
		}
		if err := l.set(f, v); err != nil {
			return fmt.Errorf("%s: %w", envVars[f], err)
		}
		l.Sources[f] = SourceEnv
	}
	return nil
}

func (l *Loaded) loadFlags(flags map[string]string) error {
	for _, f := range Fields {
		v, ok := flags[f]
		if !ok || v == "" {
			continue
		}
		if err := l.set(f, v); err != nil {
			return fmt.Errorf("--%s: %w", strings.ReplaceAll(f, "_", "-"), err)
		}
		l.Sources[f] = SourceFlag
	}
	return nil
}

func (l *Loaded) set(field, v string) error {
	c := l.Config
	switch field {
	case "api_base_url":
		c.APIBaseURL = v
	case "home_dir":
		c.HomeDir = v
	case "log_level":
		c.LogLevel = v
	case "log_format":
		c.LogFormat = v
	case "log_file":
		c.LogFile = v
	case "theme":
		c.Theme = v
	case "request_timeout":
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.RequestTimeout = d
	case "default_filter":
		c.DefaultFilter = v
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// Get renders a field for display.
func (c *Config) Get(field string) string {
	switch field {
	case "api_base_url":
		return c.APIBaseURL
	case "home_dir":
		return c.HomeDir
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	case "log_file":
		return c.LogFile
	case "theme":
		return c.Theme
	case "request_timeout":
		if c.RequestTimeout == 0 {
			return "none"
		}
		return c.RequestTimeout.String()
	case "default_filter":
		return c.DefaultFilter
	}
	return ""
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_base_url %q: want an http(s) URL", c.APIBaseURL))
	}
	if _, err := view.ParseFilter(c.DefaultFilter); err != nil {
		errs = append(errs, fmt.Errorf("default_filter: %w", err))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log_level %q: want debug, info, warn or error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want text or json", c.LogFormat))
	}
	if !validTheme(c.Theme) {
		errs = append(errs, fmt.Errorf("theme %q: want one of %s", c.Theme, strings.Join(ui.Themes, ", ")))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout %s: must not be negative", c.RequestTimeout))
	}
	return errors.Join(errs...)
}

// Filter is the parsed default filter; Validate reports bad names.
func (c *Config) Filter() view.Filter {
	f, _ := view.ParseFilter(c.DefaultFilter)
	return f
}

func validTheme(name string) bool {
	for _, t := range ui.Themes {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

func expandPath(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if h, err := os.UserHomeDir(); err == nil {
			return filepath.Join(h, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
