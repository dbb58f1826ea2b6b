package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	saved := versionInfo
	t.Cleanup(func() { versionInfo = saved })

	SetVersionInfo("0.4.0", "9f2c1e7", "2026-03-02")
	assert.Equal(t, "0.4.0", versionInfo.Version)
	assert.Equal(t, "9f2c1e7", versionInfo.Commit)
	assert.Equal(t, "2026-03-02", versionInfo.BuildDate)

	SetVersionInfo("", "", "")
	assert.Empty(t, versionInfo.Version)
}

func TestGetAppIdentity(t *testing.T) {
	t.Run("nil when cleared", func(t *testing.T) {
		orig := appIdentity
		appIdentity = nil
		defer func() { appIdentity = orig }()

		assert.Nil(t, GetAppIdentity())
	})

	t.Run("gospool identity by default", func(t *testing.T) {
		id := GetAppIdentity()
		if assert.NotNil(t, id) {
			assert.Equal(t, "gospool", id.BinaryName)
			assert.Equal(t, "GOSPOOL", id.EnvPrefix)
			assert.Equal(t, "gospool", id.ConfigName)
		}
	})
}

func TestSetDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	setDefaults()

	assert.Equal(t, 8080, viper.GetInt("server.port"))
	assert.Equal(t, "info", viper.GetString("logging.level"))

	assert.Equal(t, "lp", viper.GetString("spool.binary"))
	assert.Equal(t, "lpstat", viper.GetString("spool.status_binary"))
	assert.Equal(t, "log", viper.GetString("spool.strategy"))
	assert.Equal(t, "1s", viper.GetString("spool.poll_interval"))
	assert.Equal(t, 10, viper.GetInt("spool.poll_attempts"))
	assert.Equal(t, "10s", viper.GetString("spool.watch_timeout"))

	assert.Equal(t, 5, viper.GetInt("pool.min_workers"))
	assert.Equal(t, 100, viper.GetInt("pool.max_workers"))
	assert.Equal(t, "1m0s", viper.GetString("pool.job_timeout"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 64, ExitCode(exitError(64, "Invalid manifest", errors.New("bad"))))

	wrapped := fmt.Errorf("outer: %w", exitError(3, "inner", errors.New("x")))
	assert.Equal(t, 3, ExitCode(wrapped))
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"print", "printers", "jobs", "totals", "batches", "serve", "version", "doctor"}
	got := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing command %s", name)
	}
}
