package keystore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestEncryptDecrypt(t *testing.T) {
	f, err := Encrypt(mnemonic, "secure-password", LightParams)
	require.NoError(t, err)
	assert.Equal(t, "aes-256-gcm", f.Crypto.Cipher)
	assert.Equal(t, LightParams.N, f.Crypto.KDFParams.N)
	assert.Len(t, f.ID, 36)

	plaintext, err := Decrypt(f, "secure-password")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, plaintext)

	_, err = Decrypt(f, "wrong-password")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("期望 ErrWrongPassword, 实际: %v", err)
	}
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	f, err := Encrypt(mnemonic, "pw", LightParams)
	require.NoError(t, err)

	// 翻转密文首字节
	b := []byte(f.Crypto.CipherText)
	if b[0] == '0' {
		b[0] = '1'
	} else {
		b[0] = '0'
	}
	f.Crypto.CipherText = string(b)

	_, err = Decrypt(f, "pw")
	assert.ErrorIs(t, err, ErrWrongPassword)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wallet.json")

	exists, err := Exists(path)
	require.NoError(t, err)
	assert.False(t, exists)

	f, err := Encrypt(mnemonic, "123456", LightParams)
	require.NoError(t, err)
	require.NoError(t, f.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f.ID, loaded.ID)

	decrypted, err := Decrypt(loaded, "123456")
	require.NoError(t, err)
	assert.Equal(t, mnemonic, decrypted)
}
