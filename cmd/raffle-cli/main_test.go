package main

import (
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"keygen", "airdrop", "create", "buy", "end", "close-ticket", "show", "tickets", "draw"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestKeygenWritesLoadableKeypair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "id.json")
	root := rootCmd()
	root.SetArgs([]string{"keygen", "--out", path})
	require.NoError(t, root.Execute())

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	require.NoError(t, err)
	assert.Len(t, key, 64)
}
