package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileWithDefaults(t *testing.T) {
	path := writeConfig(t, `
constants:
  source: http
  http:
    base_url: https://cms.sogif.example
  revalidate: 30m
server:
  allowed_origins: [https://sogif.example]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://cms.sogif.example", cfg.Constants.HTTP.BaseURL)
	assert.Equal(t, 30*time.Minute, cfg.Constants.Revalidate)
	assert.Equal(t, 10*time.Second, cfg.Constants.HTTP.RequestTimeout)
	assert.Equal(t, uint32(3), cfg.Constants.Breaker.MaxFailures)
	assert.Equal(t, "sogif:constants", cfg.Constants.Redis.Key)
	assert.Equal(t, []string{"https://sogif.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "exports", cfg.ResolveExportDir(""))
	assert.Equal(t, "out", cfg.ResolveExportDir("out"))
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "constants:\n  source: file\n")
	t.Setenv("SOGIF_CONSTANTS_FILE_PATH", "/srv/constants.json")
	t.Setenv("SOGIF_CONSTANTS_REVALIDATE", "2h")
	t.Setenv("SOGIF_SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SOGIF_LEADS_IP_SALT", "pepper")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/constants.json", cfg.Constants.File.Path)
	assert.Equal(t, 2*time.Hour, cfg.Constants.Revalidate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "pepper", cfg.Leads.IPSalt)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Constants: ConstantsConfig{
			Source:     SourceFile,
			Revalidate: time.Hour,
			File:       ConstantsFile{Path: "constants.yaml"},
		}}
	}
	require.NoError(t, func() error { c := base(); return c.Validate() }())

	cases := map[string]func(*Config){
		"zero revalidate":       func(c *Config) { c.Constants.Revalidate = 0 },
		"unknown source":        func(c *Config) { c.Constants.Source = "ftp" },
		"http without base url": func(c *Config) { c.Constants.Source = SourceHTTP },
		"postgres without dsn":  func(c *Config) { c.Constants.Source = SourcePostgres },
		"warm without interval": func(c *Config) { c.Constants.Warm.Enabled = true },
		"turnstile no secret":   func(c *Config) { c.Leads.Turnstile.Enabled = true },
		"required no turnstile": func(c *Config) { c.Leads.Turnstile.Required = true },
		"telegram no token":     func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"negative lead rate":    func(c *Config) { c.Leads.RatePerHour = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := writeConfig(t, "constants:\n  source: http\n")
	_, err := Load(path)
	assert.Error(t, err)
}
