package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadPrecedence(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, "taskies", "config.json"), `{
		// shared settings
		"gateway_url": "https://global.example.com",
		"anon_key": "global-key",
		"timeout": "30s",
		"cache_backend": "file",
	}`)
	explicit := filepath.Join(t.TempDir(), "work.json")
	writeFile(t, explicit, `{"gateway_url": "https://work.example.com", "breaker_failures": 5}`)
	envFile := filepath.Join(t.TempDir(), ".env")
	writeFile(t, envFile, "TASKIES_ANON_KEY=dotenv-key\nTASKIES_LOG_LEVEL=debug\n")

	cfg, err := Load(LoadInput{
		ConfigPath: explicit,
		EnvFile:    envFile,
		Env: map[string]string{
			"XDG_CONFIG_HOME":   home,
			"TASKIES_LOG_LEVEL": "warn",
			"TASKIES_TIMEOUT":   "5s",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://work.example.com", cfg.GatewayURL)
	assert.Equal(t, "dotenv-key", cfg.AnonKey)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, Duration(5*time.Second), cfg.Timeout)
	assert.Equal(t, uint32(5), cfg.BreakerFailures)
	assert.Equal(t, BackendFile, cfg.CacheBackend)
	assert.Equal(t, Duration(5*time.Second), cfg.BreakerTimeout)
	assert.Equal(t, "taskies://reset-password", cfg.ResetRedirect)

	assert.Equal(t, filepath.Join(home, "taskies", "config.json"), cfg.Sources.Global)
	assert.Equal(t, explicit, cfg.Sources.Explicit)
	assert.Equal(t, envFile, cfg.Sources.DotEnv)
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	cfg, err := Load(LoadInput{
		Env: map[string]string{
			"TASKIES_URL":      "https://api.example.com",
			"TASKIES_ANON_KEY": "anon",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.CacheBackend)
	assert.Equal(t, Duration(15*time.Second), cfg.Timeout)
	assert.Empty(t, cfg.Sources.Global)
}

func TestLoadErrors(t *testing.T) {
	base := map[string]string{"TASKIES_URL": "https://api.example.com", "TASKIES_ANON_KEY": "anon"}
	with := func(k, v string) map[string]string {
		env := map[string]string{}
		for key, val := range base {
			env[key] = val
		}
		env[k] = v
		return env
	}
	broken := filepath.Join(t.TempDir(), "broken.json")
	writeFile(t, broken, `{"gateway_url": `)

	tests := []struct {
		name string
		in   LoadInput
		want error
	}{
		{"missing url", LoadInput{Env: with("TASKIES_URL", "")}, ErrGatewayURLMissing},
		{"missing key", LoadInput{Env: with("TASKIES_ANON_KEY", "")}, ErrAnonKeyMissing},
		{"bad backend", LoadInput{Env: with("TASKIES_CACHE_BACKEND", "redis")}, ErrCacheBackend},
		{"bad duration", LoadInput{Env: with("TASKIES_TIMEOUT", "soon")}, ErrEnvInvalid},
		{"bad failures", LoadInput{Env: with("TASKIES_BREAKER_FAILURES", "-1")}, ErrEnvInvalid},
		{"explicit config missing", LoadInput{ConfigPath: filepath.Join(t.TempDir(), "nope.json"), Env: base}, ErrConfigFileNotFound},
		{"explicit config broken", LoadInput{ConfigPath: broken, Env: base}, ErrConfigInvalid},
		{"explicit env file missing", LoadInput{EnvFile: filepath.Join(t.TempDir(), "nope.env"), Env: base}, ErrConfigFileRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte(`{"timeout": 2.5, "breaker_timeout": "1m"}`))
	require.NoError(t, err)
	assert.Equal(t, Duration(2500*time.Millisecond), cfg.Timeout)
	assert.Equal(t, Duration(time.Minute), cfg.BreakerTimeout)

	_, err = Parse([]byte(`{"timeout": "later"}`))
	assert.Error(t, err)
}

func TestGlobalPath(t *testing.T) {
	assert.Equal(t, filepath.Join("/x", "taskies", "config.json"), GlobalPath(map[string]string{"XDG_CONFIG_HOME": "/x", "HOME": "/h"}))
	assert.Equal(t, filepath.Join("/h", ".config", "taskies", "config.json"), GlobalPath(map[string]string{"HOME": "/h"}))
	assert.Empty(t, GlobalPath(nil))
}

func TestEnviron(t *testing.T) {
	env := Environ([]string{"A=1", "B=x=y", "broken"})
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, env)
}
