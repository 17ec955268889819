package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
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

func TestSeedCommandIssuesMissingCodes(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	cfgPath := filepath.Join(t.TempDir(), "absent.yaml")

	out, err := run(t, "--config", cfgPath, "seed", "../fixtures.example.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "seeded 2 players, 1 matches, 1 reservations, 1 tickets")
	assert.Contains(t, out, "reservation 12: RES-12-")
}

func TestSeedCommandRequiresFile(t *testing.T) {
	_, err := run(t, "seed")
	assert.Error(t, err)
}

func TestIssueCommand(t *testing.T) {
	out, err := run(t, "issue", "42")
	require.NoError(t, err)

	fields := strings.Fields(out)
	require.Len(t, fields, 4)
	code, hash := fields[1], fields[3]

	parsed, err := ticket.ParseCode(code)
	require.NoError(t, err)
	assert.Equal(t, int64(42), parsed.ReservationID)
	assert.Len(t, hash, 64)

	_, err = run(t, "issue", "forty-two")
	assert.Error(t, err)
}

func TestMigratePrintsSchema(t *testing.T) {
	out, err := run(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "migrate", "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS tickets")
}
