package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "visaslot dev")
}

func TestKeys(t *testing.T) {
	out, err := run(t, "keys")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "export COOKIE_HASH_KEY="))
	assert.True(t, strings.HasPrefix(lines[2], "export PROFILE_KEY="))
}

func TestProfileInitAndShow(t *testing.T) {
	t.Setenv("PROFILE_PATH", filepath.Join(t.TempDir(), "profile.json"))
	t.Setenv("PROFILE_KEY", "")

	_, err := run(t, "profile", "show")
	assert.Error(t, err)

	out, err := run(t, "profile", "init", "--name", "Asha")
	require.NoError(t, err)
	assert.Contains(t, out, `saved profile "Asha" (0 bookings)`)

	out, err = run(t, "profile", "show")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Asha"`)
}

func TestReconcileNeedsDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "reconcile", "list")
	assert.ErrorContains(t, err, "DATABASE_URL")
}
