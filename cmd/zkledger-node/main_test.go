package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkledger.dev/node/ledger"
	"zkledger.dev/node/serde/registry"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTypeID(t *testing.T) {
	out, err := run(t, "typeid", "zkledger.contracts.cash.State")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d\tzkledger.contracts.cash.State\n", registry.StableID("zkledger.contracts.cash.State")), out)

	out, err = run(t, "typeid")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestConfig_FlagsOverride(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "config", "--datadir", dir, "--peer", "127.0.0.1:1", "--peer", "127.0.0.1:1")
	require.NoError(t, err)
	assert.Contains(t, out, dir)
	assert.Equal(t, 1, strings.Count(out, "127.0.0.1:1"))

	_, err = run(t, "config", "--datadir", dir, "--backend", "groth16")
	require.Error(t, err)
}

func TestIssueThenVerify(t *testing.T) {
	dir := t.TempDir()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	owner, err := ledger.ParsePublicKey(pub)
	require.NoError(t, err)
	file := filepath.Join(dir, "issue.tx")

	out, err := run(t, "issue", "--datadir", dir, "--log-level", "error",
		"--amount", "100", "--owner", owner.String(), "--out", file)
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	_, err = ledger.ParseSecureHash(id)
	require.NoError(t, err)

	out, err = run(t, "witness", "size", file, "--datadir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "total "), out)

	out, err = run(t, "verify", file, "--datadir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, "verified "+id+"\n", out)

	out, err = run(t, "resolve", file, "--datadir", dir, "--log-level", "error")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIssue_BadOwner(t *testing.T) {
	_, err := run(t, "issue", "--datadir", t.TempDir(), "--owner", "not-base58!")
	require.Error(t, err)
}
