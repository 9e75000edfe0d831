package cli_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santacall/santacall/internal/pkg/env"
	"github.com/santacall/santacall/internal/pkg/service/santacall/cli"
)

type result struct {
	exitCode int
	stdout   string
	stderr   string
}

func run(envs *env.Map, fs afero.Fs, args ...string) result {
	var stdout, stderr bytes.Buffer
	root := cli.NewRootCommand(&stdout, &stderr, envs, fs)
	code := root.Execute(context.Background(), args)
	return result{exitCode: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestSlotCheck(t *testing.T) {
	t.Parallel()

	out := run(env.Empty(), afero.NewMemMapFs(), "slot", "check", "--slot", "2024-12-03T16:30:00.000Z", "--local-offset", "+01:00", "--now", "2024-12-02T09:00:00.000Z")
	assert.Equal(t, 0, out.exitCode, out.stderr)
	assert.Equal(t, "Slot 2024-12-03 17:30 +01:00 is bookable.\n", out.stdout)
}

func TestSlotCheck_Rejected(t *testing.T) {
	t.Parallel()

	out := run(env.Empty(), afero.NewMemMapFs(), "slot", "check", "--slot", "2024-12-02T17:00:00.000Z", "--now", "2024-12-02T09:00:00.000Z")
	assert.Equal(t, 1, out.exitCode)
	assert.Empty(t, out.stdout)
	assert.Contains(t, out.stderr, "at least 1 day in advance")

	out = run(env.Empty(), afero.NewMemMapFs(), "slot", "check", "--slot", "2024-12-03T21:00:00.000Z", "--now", "2024-12-02T09:00:00.000Z")
	assert.Equal(t, 1, out.exitCode)
	assert.Contains(t, out.stderr, "between 16:00 and 20:00 local time")

	out = run(env.Empty(), afero.NewMemMapFs(), "slot", "check", "--now", "2024-12-02T09:00:00.000Z")
	assert.Equal(t, 1, out.exitCode)
	assert.Contains(t, out.stderr, `Flag "--slot" is required.`)
}

func TestSlotCheck_Config(t *testing.T) {
	t.Parallel()

	args := []string{"slot", "check", "--slot", "2024-12-02T17:00:00.000Z", "--now", "2024-12-02T09:00:00.000Z"}

	// Flag
	out := run(env.Empty(), afero.NewMemMapFs(), append(args, "--time-window.min-lead-time=2h")...)
	assert.Equal(t, 0, out.exitCode, out.stderr)

	// Env
	envs := env.FromMap(map[string]string{"SANTACALL_TIME_WINDOW_MIN_LEAD_TIME": "2h"})
	out = run(envs, afero.NewMemMapFs(), args...)
	assert.Equal(t, 0, out.exitCode, out.stderr)

	// Env file
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/app/.env", []byte("SANTACALL_TIME_WINDOW_MIN_LEAD_TIME=2h\n"), 0o640))
	out = run(env.Empty(), fs, append(args, "--env-dir", "/app")...)
	assert.Equal(t, 0, out.exitCode, out.stderr)
	assert.Contains(t, out.stderr, `loaded env file "/app/.env"`)

	// Invalid config
	out = run(env.Empty(), afero.NewMemMapFs(), append(args, "--time-window.call-window-end-hour=30")...)
	assert.Equal(t, 1, out.exitCode)
	assert.Contains(t, out.stderr, "Invalid configuration")
}
