package main

import (
	"bytes"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setEnv(t *testing.T, redisAddr string) {
	t.Setenv("API_KEYS", "alpha-1111,beta-2222")
	t.Setenv("REDIS_URL", redisAddr)
	t.Setenv("KEY_POOL_NAME", "cli_test_keys")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "worker", "ingest", "ask", "keys"})
}

func TestKeysCmd_SeedAndShow(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	out, err := run(t, "keys", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "key pool is empty")

	out, err = run(t, "keys", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 2 keys")

	out, err = run(t, "keys", "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "left unchanged")

	out, err = run(t, "keys", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "1. ****1111")
	assert.Contains(t, out, "2. ****2222")
	assert.NotContains(t, out, "alpha")
}

func TestKeysCmd_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())
	mr.Close()

	_, err := run(t, "keys", "show")
	assert.Error(t, err)
}

func TestIngestCmd_RequiresCourse(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	_, err := run(t, "ingest", "lecture.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "course")
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	_, err := run(t, "ask", "--course", "database-systems")
	assert.Error(t, err)
}

func TestRootCmd_MissingKeys(t *testing.T) {
	t.Setenv("API_KEYS", "")
	t.Setenv("VECTOR_BACKEND", "memory")

	_, err := run(t, "keys", "show")
	assert.Error(t, err)
}

func TestKeysCmd_Reset(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	_, err := mr.Push("cli_test_keys", "stale-9999")
	require.NoError(t, err)

	out, err := run(t, "keys", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "pool reset to 2 keys")

	out, err = run(t, "keys", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "9999")
	assert.Contains(t, out, "****1111")
}

func TestOneShotCmds_RejectMemoryBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	setEnv(t, mr.Addr())

	tests := []struct {
		name string
		args []string
	}{
		{"Ingest", []string{"ingest", "--course", "database-systems", "DB-Week3.pdf.txt"}},
		{"Ask", []string{"ask", "--course", "database-systems", "What is 3NF?"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "VECTOR_BACKEND=memory")
		})
	}
}
