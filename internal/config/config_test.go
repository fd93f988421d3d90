package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8081, cfg.BridgePort)
	assert.Equal(t, "symmetric", cfg.MatchMode)
	assert.Equal(t, "kick", cfg.Backpressure)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, time.Minute, cfg.RegisterRate.Interval)
	assert.Equal(t, "info", cfg.Log.Level)
	require.Len(t, cfg.ICEServers, 1)
	assert.Equal(t, []string{"stun:stun.l.google.com:19302"}, cfg.ICEServers[0].URLs)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rendezvous.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
port: 9000
match_mode: room
backpressure: drop
log:
  level: debug
ice_servers:
  - urls: ["turn:turn.example.org:3478"]
    username: u
    credential: p
`), 0o600))

	t.Setenv("RENDEZVOUS_BRIDGE_PORT", "0")
	t.Setenv("RENDEZVOUS_LOG_LEVEL", "warn")

	cfg, err := Load(newFlags(t, "--config", file, "--port", "9100"))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port, "flag beats file")
	assert.Equal(t, 0, cfg.BridgePort, "env beats default")
	assert.Equal(t, "warn", cfg.Log.Level, "env beats file")
	assert.Equal(t, "room", cfg.MatchMode)
	assert.Equal(t, "drop", cfg.Backpressure)

	ice := cfg.WebRTC()
	require.Len(t, ice, 1)
	assert.Equal(t, "u", ice[0].Username)
	assert.Equal(t, "p", ice[0].Credential)
}

func TestValidate(t *testing.T) {
	base := Config{Port: 8080, MatchMode: "room", Backpressure: "kick"}
	require.NoError(t, base.Validate())

	c := base
	c.MatchMode = "mesh"
	assert.ErrorIs(t, c.Validate(), ErrInvalidMatchMode)

	c = base
	c.Backpressure = "block"
	assert.ErrorIs(t, c.Validate(), ErrInvalidBackpressure)

	c = base
	c.Port = 0
	assert.ErrorIs(t, c.Validate(), ErrInvalidPort)

	c = base
	c.BridgePort = 70000
	assert.ErrorIs(t, c.Validate(), ErrInvalidPort)
}
