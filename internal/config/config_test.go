package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  host: localhost
  user: family
  database: familytree
jwt:
  secret: 0123456789abcdef0123456789abcdef
storage:
  upload_dir: /tmp/uploads
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, IdentityProviderPostgres, cfg.Identity.Provider)
	assert.Equal(t, 10*time.Second, cfg.AdminCacheTTL())
	assert.Equal(t, 300*time.Millisecond, cfg.PendingDebounce())
	assert.Equal(t, 90*24*time.Hour, cfg.NotificationRetention())
	assert.Equal(t, 72*time.Hour, cfg.DigestThreshold())
	assert.Equal(t, 3, cfg.Notifications.RetryAttempts)
	assert.Equal(t, "0 0 8 * * *", cfg.Scheduler.SendPendingDigest)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "postgres://family:@localhost:5432/familytree?sslmode=disable", cfg.GetDatabaseConnectionString())
	assert.Equal(t, ":8080", cfg.GetHTTPAddress())
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PENDING_DEBOUNCE_MS", "50")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GRPC_PORT", "not-a-number")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 9090, cfg.Server.GRPCPort)
	assert.Equal(t, 50*time.Millisecond, cfg.PendingDebounce())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"short secret": `
database: {host: h, user: u, database: d}
jwt: {secret: short}
storage: {upload_dir: /tmp}
`,
		"missing database": `
jwt: {secret: 0123456789abcdef0123456789abcdef}
storage: {upload_dir: /tmp}
`,
		"firebase without credentials": minimalYAML + `
identity:
  provider: firebase
`,
		"unknown provider": minimalYAML + `
identity:
  provider: ldap
`,
		"bad port": minimalYAML + `
server:
  http_port: 70000
`,
		"not yaml": "database: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+`
identity:
  provider: firebase
  credentials_file: /etc/firebase.json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, IdentityProviderFirebase, cfg.Identity.Provider)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestGetSecurityLevel(t *testing.T) {
	assert.Equal(t, SecurityPublic, GetSecurityLevel("auth.login"))
	assert.Equal(t, SecurityRefresh, GetSecurityLevel("auth.refresh"))
	assert.Equal(t, SecurityOptional, GetSecurityLevel("requests.submit"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("requests.approve"))
	assert.Equal(t, SecurityAccess, GetSecurityLevel("something.new"))
}
