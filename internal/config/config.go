// Package config resolves the client configuration from defaults, JSON
// config files with comments, a .env file and TASKIES_* variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tailscale/hujson"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrEnvInvalid         = errors.New("invalid environment value")
	ErrGatewayURLMissing  = errors.New("gateway url is required (gateway_url or TASKIES_URL)")
	ErrAnonKeyMissing     = errors.New("anon key is required (anon_key or TASKIES_ANON_KEY)")
	ErrCacheBackend       = errors.New(`cache_backend must be "sqlite" or "file"`)
	ErrTimeoutNegative    = errors.New("timeouts cannot be negative")
)

// Cache backends
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Duration is a time.Duration read from strings such as "15s"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// plain numbers are seconds
		var secs float64
		if nerr := json.Unmarshal(b, &secs); nerr != nil {
			return fmt.Errorf("duration must be a string like \"15s\": %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all configuration options
type Config struct {
	GatewayURL    string   `json:"gateway_url"`
	AnonKey       string   `json:"anon_key"`
	Timeout       Duration `json:"timeout,omitempty"`
	ResetRedirect string   `json:"reset_redirect,omitempty"`

	BreakerFailures uint32   `json:"breaker_failures,omitempty"`
	BreakerTimeout  Duration `json:"breaker_timeout,omitempty"`

	CacheBackend string `json:"cache_backend,omitempty"`
	CachePath    string `json:"cache_path,omitempty"` // database file, or directory for the file backend

	LogFile  string `json:"log_file,omitempty"` // "-" logs to stderr
	LogLevel string `json:"log_level,omitempty"`

	// Sources tracks which files were loaded, for diagnostics
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded
type Sources struct {
	Global   string
	Explicit string
	DotEnv   string
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Timeout:         Duration(15 * time.Second),
		ResetRedirect:   "taskies://reset-password",
		BreakerFailures: 3,
		BreakerTimeout:  Duration(5 * time.Second),
		CacheBackend:    BackendSQLite,
		LogLevel:        "info",
	}
}

// LoadInput holds the inputs for Load
type LoadInput struct {
	ConfigPath string            // --config; must exist when set
	EnvFile    string            // .env file; missing is fine unless set explicitly
	Env        map[string]string // process environment
}

// Load resolves the configuration. Precedence, highest wins:
//  1. defaults
//  2. global config ($XDG_CONFIG_HOME/taskies/config.json)
//  3. the explicit config file
//  4. the .env file
//  5. the process environment
//
// Flags are applied by the caller on the result.
func Load(in LoadInput) (Config, error) {
	cfg := Default()

	if path := GlobalPath(in.Env); path != "" {
		fileCfg, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = merge(cfg, fileCfg)
			cfg.Sources.Global = path
		}
	}

	if in.ConfigPath != "" {
		fileCfg, _, err := loadFile(in.ConfigPath, true)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
		cfg.Sources.Explicit = in.ConfigPath
	}

	env := map[string]string{}
	envFile, mustExist := in.EnvFile, true
	if envFile == "" {
		envFile, mustExist = ".env", false
	}
	dotenv, err := godotenv.Read(envFile)
	switch {
	case err == nil:
		env = dotenv
		cfg.Sources.DotEnv = envFile
	case mustExist || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigFileRead, envFile, err)
	}
	for k, v := range in.Env {
		env[k] = v
	}

	cfg, err = applyEnv(cfg, env)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GlobalPath returns the global config path, "" when no home is known
func GlobalPath(env map[string]string) string {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "taskies", "config.json")
	}
	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "taskies", "config.json")
	}
	return ""
}

// loadFile reads a JSON-with-comments config file. A missing file is only an
// error when mustExist is set.
func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigFileRead, path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return cfg, true, nil
}

// Parse decodes one config document. Comments and trailing commas are
// allowed.
func Parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.GatewayURL != "" {
		base.GatewayURL = overlay.GatewayURL
	}
	if overlay.AnonKey != "" {
		base.AnonKey = overlay.AnonKey
	}
	if overlay.Timeout != 0 {
		base.Timeout = overlay.Timeout
	}
	if overlay.ResetRedirect != "" {
		base.ResetRedirect = overlay.ResetRedirect
	}
	if overlay.BreakerFailures != 0 {
		base.BreakerFailures = overlay.BreakerFailures
	}
	if overlay.BreakerTimeout != 0 {
		base.BreakerTimeout = overlay.BreakerTimeout
	}
	if overlay.CacheBackend != "" {
		base.CacheBackend = overlay.CacheBackend
	}
	if overlay.CachePath != "" {
		base.CachePath = overlay.CachePath
	}
	if overlay.LogFile != "" {
		base.LogFile = overlay.LogFile
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	return base
}

// applyEnv overlays the TASKIES_* variables of env
func applyEnv(cfg Config, env map[string]string) (Config, error) {
	var overlay Config
	overlay.GatewayURL = env["TASKIES_URL"]
	overlay.AnonKey = env["TASKIES_ANON_KEY"]
	overlay.ResetRedirect = env["TASKIES_RESET_REDIRECT"]
	overlay.CacheBackend = env["TASKIES_CACHE_BACKEND"]
	overlay.CachePath = env["TASKIES_CACHE_PATH"]
	overlay.LogFile = env["TASKIES_LOG_FILE"]
	overlay.LogLevel = env["TASKIES_LOG_LEVEL"]

	for key, dst := range map[string]*Duration{
		"TASKIES_TIMEOUT":         &overlay.Timeout,
		"TASKIES_BREAKER_TIMEOUT": &overlay.BreakerTimeout,
	} {
		if v := env[key]; v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return Config{}, fmt.Errorf("%w %s: %w", ErrEnvInvalid, key, err)
			}
			*dst = Duration(d)
		}
	}
	if v := env["TASKIES_BREAKER_FAILURES"]; v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return Config{}, fmt.Errorf("%w TASKIES_BREAKER_FAILURES: %w", ErrEnvInvalid, err)
		}
		overlay.BreakerFailures = uint32(n)
	}
	return merge(cfg, overlay), nil
}

// Validate checks the settings needed to reach the backend
func (c Config) Validate() error {
	if strings.TrimSpace(c.GatewayURL) == "" {
		return ErrGatewayURLMissing
	}
	if strings.TrimSpace(c.AnonKey) == "" {
		return ErrAnonKeyMissing
	}
	if c.CacheBackend != BackendSQLite && c.CacheBackend != BackendFile {
		return ErrCacheBackend
	}
	if c.Timeout < 0 || c.BreakerTimeout < 0 {
		return ErrTimeoutNegative
	}
	return nil
}

// Environ turns os.Environ output into a map
func Environ(kv []string) map[string]string {
	env := make(map[string]string, len(kv))
	for _, e := range kv {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return env
}
