package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := buildRoot()
	for _, path := range [][]string{
		{"serve"},
		{"preview", "start"},
		{"preview", "stop"},
		{"preview", "status"},
		{"save"},
	} {
		cmd, rest, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestGlobalFlagDefaults(t *testing.T) {
	root := buildRoot()
	f := root.PersistentFlags()

	url, err := f.GetString("api-url")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/api", url)

	timeout, err := f.GetDuration("api-timeout")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestPreviewStartRequiresFlags(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"preview", "start", "--service-id=svc-1"})
	root.SetOut(new(discard))
	root.SetErr(new(discard))
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestSaveRequiresFileID(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"save"})
	root.SetOut(new(discard))
	root.SetErr(new(discard))
	require.Error(t, root.Execute())
}

func TestServeRejectsExtraArgs(t *testing.T) {
	root := buildRoot()
	root.SetArgs([]string{"serve", "a.toml", "b.toml"})
	root.SetOut(new(discard))
	root.SetErr(new(discard))
	require.Error(t, root.Execute())
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
