package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testService = "simpleos"
	testKeyID   = "EOS6MRyAjQq8ud7hVNYcfnVPJqcVpscN5So8BhtHuGYqET5GDW5CV"
	testWIF     = "5KQwrPbwdL6PhXujxW37FSSQZ1JiwsST4cqQzDeyXtP79zkvFD3"
)

func TestPutGet(t *testing.T) {
	store := NewStore(t.TempDir(), "correct horse")

	require.NoError(t, store.PutSecret(testService, testKeyID, testWIF))

	got, err := store.GetSecret(testService, testKeyID)
	require.NoError(t, err)
	assert.Equal(t, testWIF, got)

	path := filepath.Join(store.Dir(), testService, testKeyID+".enc")
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testWIF)
}

func TestGetSecret_NotFound(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")

	_, err := store.GetSecret(testService, "EOS-unknown")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestGetSecret_WrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewStore(dir, "right").PutSecret(testService, testKeyID, testWIF))

	_, err := NewStore(dir, "wrong").GetSecret(testService, testKeyID)
	assert.ErrorContains(t, err, "decryption failed")
}

func TestGetSecret_RenamedFileFails(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")
	require.NoError(t, store.PutSecret(testService, "EOS-a", testWIF))

	dir := filepath.Join(store.Dir(), testService)
	require.NoError(t, os.Rename(filepath.Join(dir, "EOS-a.enc"), filepath.Join(dir, "EOS-b.enc")))

	_, err := store.GetSecret(testService, "EOS-b")
	assert.Error(t, err)
}

func TestGetSecret_Garbage(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")
	dir := filepath.Join(store.Dir(), testService)
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EOS-x.enc"), []byte("ACK1short"), 0600))

	_, err := store.GetSecret(testService, "EOS-x")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestSaltIsPerFile(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")
	require.NoError(t, store.PutSecret(testService, "EOS-a", testWIF))
	require.NoError(t, store.PutSecret(testService, "EOS-b", testWIF))

	a, err := os.ReadFile(filepath.Join(store.Dir(), testService, "EOS-a.enc"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(store.Dir(), testService, "EOS-b.enc"))
	require.NoError(t, err)
	assert.NotEqual(t, a[:4+saltSize], b[:4+saltSize])
}

func TestDeleteAndList(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")

	ids, err := store.List(testService)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.PutSecret(testService, "EOS-b", testWIF))
	require.NoError(t, store.PutSecret(testService, "EOS-a", testWIF))
	require.NoError(t, store.PutSecret("other", "EOS-c", testWIF))

	ids, err = store.List(testService)
	require.NoError(t, err)
	assert.Equal(t, []string{"EOS-a", "EOS-b"}, ids)

	require.NoError(t, store.DeleteSecret(testService, "EOS-a"))
	assert.ErrorIs(t, store.DeleteSecret(testService, "EOS-a"), ErrSecretNotFound)

	ids, err = store.List(testService)
	require.NoError(t, err)
	assert.Equal(t, []string{"EOS-b"}, ids)
}

func TestInvalidInput(t *testing.T) {
	assert.ErrorIs(t, NewStore(t.TempDir(), "").PutSecret(testService, testKeyID, testWIF), ErrEmptyPassphrase)
	assert.ErrorIs(t, NewStore(t.TempDir(), "p").PutSecret(testService, "", testWIF), ErrInvalidKeyID)
	assert.Error(t, NewStore(t.TempDir(), "p").PutSecret(testService, testKeyID, ""))
}

func TestSanitize_StaysInsideDir(t *testing.T) {
	store := NewStore(t.TempDir(), "pass")
	require.NoError(t, store.PutSecret(testService, "../../escape", testWIF))

	ids, err := store.List(testService)
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	got, err := store.GetSecret(testService, "../../escape")
	require.NoError(t, err)
	assert.Equal(t, testWIF, got)
}
