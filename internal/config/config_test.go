package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-lti/internal/config"
	"github.com/mind-engage/mindengage-lti/internal/db"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := config.Parse(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, db.DriverSQLite, cfg.Driver())
	assert.Equal(t, config.SessionSQL, cfg.SessionBackend)
	assert.Equal(t, 8*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 15*time.Second, cfg.OutcomeTimeout)
	assert.Equal(t, 90*time.Minute, cfg.NonceTTL)
	assert.Equal(t, 10*time.Minute, cfg.TimestampSkew)
	assert.True(t, cfg.CookieSecure)
	assert.True(t, cfg.TrustForwardedProto)
	assert.False(t, cfg.ForceHTTPS)
}

func TestParseOverrides(t *testing.T) {
	cfg, err := config.Parse(map[string]string{
		"LTI_DB_DRIVER":       "pg",
		"LTI_SESSION_BACKEND": "redis",
		"LTI_SESSION_TTL":     "30m",
		"LTI_CORS_ORIGINS":    "https://a.example, https://b.example,",
		"LTI_COOKIE_SECURE":   "false",
		"HTTPS":               "on",
	})
	require.NoError(t, err)

	assert.Equal(t, db.DriverPostgres, cfg.Driver())
	assert.Equal(t, config.SessionRedis, cfg.SessionBackend)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.ForceHTTPS)
}

func TestParseRejects(t *testing.T) {
	for name, environ := range map[string]map[string]string{
		"driver":   {"LTI_DB_DRIVER": "oracle"},
		"backend":  {"LTI_SESSION_BACKEND": "files"},
		"ttl":      {"LTI_SESSION_TTL": "0s"},
		"duration": {"LTI_NONCE_TTL": "soon"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse(environ)
			assert.Error(t, err)
		})
	}
}

const settingsYAML = `
properties:
  - custom_canvas_user_id
  - roles
roles:
  staff: [TeachingAssistant]
  grader: [urn:lti:role:ims/lis/TeachingAssistant]
url_fix:
  - prefix: https://localhost
    replacements:
      - from: https://localhost
        to: http://localhost
tools:
  - id: 1
    title: Quiz
    launch_url: https://tool.example/lti/initial
    privacy_level: public
    options:
      - name: course_navigation
        properties:
          - {name: enabled, value: "true"}
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestSettingsFile(t *testing.T) {
	f, err := config.ReadSettingsFile(writeFile(t, settingsYAML))
	require.NoError(t, err)

	cfg, err := config.Parse(map[string]string{"LTI_FORCE_HTTPS": "true"})
	require.NoError(t, err)
	s := f.Settings(cfg)

	assert.True(t, s.ForceHTTPS)
	assert.True(t, s.Properties.Contains("custom_canvas_user_id"))
	assert.True(t, s.Properties.Contains("ext_roles"))

	ok, err := s.Roles.Match("staff", []string{"TeachingAssistant"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Roles.Match("staff", []string{"Instructor"})
	require.NoError(t, err)
	assert.True(t, ok, "defaults are kept")
	assert.True(t, s.Roles.Has("grader"))

	assert.Equal(t, "http://localhost:8000/x", s.URLFix.Apply("https://localhost:8000/x"))

	tool, ok := f.Tool(1)
	require.True(t, ok)
	assert.Equal(t, "Quiz", tool.Title)
	require.Len(t, tool.Options, 1)
	assert.Equal(t, "enabled", tool.Options[0].Properties[0].Name)
	_, ok = f.Tool(2)
	assert.False(t, ok)
}

func TestSettingsFileEmptyPath(t *testing.T) {
	f, err := config.ReadSettingsFile("")
	require.NoError(t, err)
	cfg, err := config.Parse(map[string]string{})
	require.NoError(t, err)
	s := f.Settings(cfg)
	assert.Empty(t, f.Tools)
	assert.True(t, s.Roles.Has("staff"))
}

func TestSettingsFileInvalid(t *testing.T) {
	cases := map[string]string{
		"reserved role":  "roles:\n  any: [Instructor]\n",
		"empty prefix":   "url_fix:\n  - replacements: []\n",
		"duplicate tool": "tools:\n  - {id: 1, title: a, launch_url: u}\n  - {id: 1, title: b, launch_url: u}\n",
		"bad privacy":    "tools:\n  - {id: 1, title: a, launch_url: u, privacy_level: world}\n",
		"not yaml":       "roles: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.ReadSettingsFile(writeFile(t, body))
			assert.Error(t, err)
		})
	}
	_, err := config.ReadSettingsFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
