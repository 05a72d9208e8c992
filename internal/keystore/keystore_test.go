package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_GeneratesOnFirstStart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	keys, err := Load(dir)
	require.NoError(t, err)
	assert.NotNil(t, keys.ECDSA)
	assert.Len(t, keys.Ed25519, 64)
	assert.Len(t, keys.MacaroonRoot, 32)

	for _, name := range []string{ecdsaKeyFile, ed25519File, rootKeyFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
	}
}

func TestLoad_IsStableAcrossRestarts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keys")

	first, err := Load(dir)
	require.NoError(t, err)

	second, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, first.ECDSA.Serialize(), second.ECDSA.Serialize())
	assert.Equal(t, first.Ed25519, second.Ed25519)
	assert.Equal(t, first.MacaroonRoot, second.MacaroonRoot)
}

func TestLoad_RejectsWrongLengthFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, rootKeyFile), []byte("too-short"), filePerm))

	_, err := Load(dir)
	assert.Error(t, err)
}
