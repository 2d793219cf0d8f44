package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/horockey/fit/internal/config"
	"github.com/horockey/fit/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
worker:
  id: w1
  port: 9000
application:
  name: billing
  version: v2
registry:
  hosts: ["10.0.0.1:8080"]
  sync_interval: 5s
security:
  roles:
    - name: cashier
      permissions:
        - generic_id: billing.charge
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_ParseArgs(t *testing.T) {
	args, err := config.ParseArgs([]string{
		"--config_file", "a.yaml",
		"--worker.port", "1",
		"--worker.port", "2",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"config_file": "a.yaml", "worker.port": "2"}, args)

	cases := [][]string{
		{},
		{"--worker.port", "1"},
		{"--config_file"},
		{"config_file", "a.yaml"},
		{"--", "a.yaml"},
	}
	for _, argv := range cases {
		_, err := config.ParseArgs(argv)
		assert.ErrorIs(t, err, model.ErrParameter, "%v", argv)
	}
}

func Test_Load(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "w1", cfg.Worker.ID)
	assert.Equal(t, 9000, cfg.Worker.Port)
	assert.Equal(t, "127.0.0.1", cfg.Worker.Host)
	assert.Equal(t, "billing", cfg.Application.Name)
	assert.Equal(t, 5*time.Second, cfg.Registry.SyncInterval)
	assert.Equal(t, 30*time.Second, cfg.Registry.HeartbeatInterval)
	require.Len(t, cfg.Security.Roles, 1)
	assert.Equal(t, model.Permission{Fitable: model.Fitable{GenericID: "billing.charge"}}, cfg.Security.Roles[0].Permissions[0].Model())
	require.NoError(t, cfg.Validate())

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "worker: [\n"))
	assert.Error(t, err)
}

func Test_Apply(t *testing.T) {
	cfg := config.Default()

	require.NoError(t, cfg.Apply(map[string]string{
		"Worker.Port":            "7000",
		"worker.host":            "0.0.0.0",
		"registry.server":        "true",
		"registry.SYNC_INTERVAL": "1m",
		"logging.level":          "debug",
	}))
	assert.Equal(t, 7000, cfg.Worker.Port)
	assert.Equal(t, "0.0.0.0", cfg.Worker.Host)
	assert.True(t, cfg.Registry.Server)
	assert.Equal(t, time.Minute, cfg.Registry.SyncInterval)

	v, err := cfg.Get("logging.level")
	require.NoError(t, err)
	assert.Equal(t, "debug", v)

	bad := []map[string]string{
		{"worker.nope": "1"},
		{"worker": "1"},
		{"worker.port.deeper": "1"},
		{"worker.port": "many"},
		{"registry.server": "yes"},
		{"registry.sync_interval": "soon"},
		{"registry.hosts": "a"},
	}
	for _, overrides := range bad {
		assert.ErrorIs(t, cfg.Apply(overrides), model.ErrParameter, "%v", overrides)
	}
}

func Test_FromArgs(t *testing.T) {
	path := writeConfig(t, sample)

	cfg, err := config.FromArgs([]string{"--config_file", path, "--worker.port", "9100"})
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Worker.Port)

	_, err = config.FromArgs([]string{"--config_file", path, "--application.name", ""})
	assert.ErrorIs(t, err, model.ErrParameter)

	_, err = config.FromArgs([]string{"--config_file", path, "--worker.protocol", "grpc"})
	assert.ErrorIs(t, err, model.ErrParameter)
}
