package cfgloader_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/dddbase/cfgloader"
)

type dbConfig struct {
	Host     string `yaml:"host"     validate:"required"`
	Password string `yaml:"password" mask:"true"`
}

type appConfig struct {
	Name    string        `yaml:"name"    validate:"required"`
	Retries int           `yaml:"retries" default:"5"`
	Backoff time.Duration `yaml:"backoff" default:"200ms"`
	DB      dbConfig      `yaml:"db"`
}

func writeConfig(t *testing.T, env, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, env+".yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad(t *testing.T) {
	t.Setenv("DB_PASSWORD", "s3cret")
	dir := writeConfig(t, cfgloader.EnvTest, `
name: hotel
retries: 2
db:
  host: localhost
  password: ${DB_PASSWORD}
`)

	cfg, err := cfgloader.Load[appConfig](
		cfgloader.WithConfigDir(dir),
		cfgloader.WithEnvironment(cfgloader.EnvTest),
		cfgloader.WithSilent(),
	)
	require.NoError(t, err)

	assert.Equal(t, "hotel", cfg.Name)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff)
	assert.Equal(t, "s3cret", cfg.DB.Password)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name string
		env  string
		body string
	}{
		{name: "unknown environment", env: "qa", body: "name: x"},
		{name: "missing required field", env: cfgloader.EnvTest, body: "db: {host: h}"},
		{name: "broken yaml", env: cfgloader.EnvTest, body: "name: [x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeConfig(t, tc.env, tc.body)

			_, err := cfgloader.Load[appConfig](
				cfgloader.WithConfigDir(dir),
				cfgloader.WithEnvironment(tc.env),
				cfgloader.WithSilent(),
			)
			require.Error(t, err)
			assert.True(t, errx.IsCodeIn(err, cfgloader.CodeInvalidConfig))
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := cfgloader.Load[appConfig](
		cfgloader.WithConfigDir(t.TempDir()),
		cfgloader.WithEnvironment(cfgloader.EnvLocal),
		cfgloader.WithSilent(),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_PointerRejected(t *testing.T) {
	_, err := cfgloader.Load[*appConfig](cfgloader.WithEnvironment(cfgloader.EnvTest))
	require.Error(t, err)
}

func TestMasked(t *testing.T) {
	out, err := cfgloader.Masked(appConfig{Name: "hotel", DB: dbConfig{Host: "h", Password: "abc"}})
	require.NoError(t, err)

	assert.Contains(t, out, "***")
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "name: hotel")
}
