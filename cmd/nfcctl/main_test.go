package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/jwtauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--db-driver", "sqlite", "--database-url", dbPath}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestProvisioningFlow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "meals.db")

	out, err := run(t, dbPath, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema is up to date\n", out)

	out, err = run(t, dbPath, "card", "add", "aa:11:bb:22")
	require.NoError(t, err)
	assert.Contains(t, out, "card AA11BB22 added")

	_, err = run(t, dbPath, "card", "add", "AA11BB22")
	assert.ErrorContains(t, err, "duplicate")

	out, err = run(t, dbPath, "allowance", "grant", "--serial", "AA11BB22", "--date", "2024-06-01", "--type", "lunch", "--days", "3")
	require.NoError(t, err)
	assert.Equal(t, "granted 3 allowance(s)\n", out)

	out, err = run(t, dbPath, "card", "allowances", "AA11BB22")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "2024-06-01")
	assert.Contains(t, lines[1], "lunch")

	out, err = run(t, dbPath, "events")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGrant_RequiresFlags(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "meals.db")

	_, err := run(t, dbPath, "allowance", "grant", "--serial", "AA11BB22")
	assert.ErrorContains(t, err, "required flag")
}

func TestUnknownDriver(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--db-driver", "oracle", "migrate"})

	assert.ErrorContains(t, cmd.Execute(), "unsupported DB_DRIVER")
}

func TestToken(t *testing.T) {
	out, err := run(t, ":memory:", "token", "--admin-jwt-secret", "s3cret", "--ttl", "1h")
	require.NoError(t, err)

	token, err := jwtauth.VerifyToken(jwtauth.New("HS256", []byte("s3cret"), nil), strings.TrimSpace(out))
	require.NoError(t, err)
	role, ok := token.Get("role")
	require.True(t, ok)
	assert.Equal(t, "admin", role)

	t.Setenv("ADMIN_JWT_SECRET", "")
	_, err = run(t, ":memory:", "token")
	assert.ErrorContains(t, err, "admin secret is required")
}
