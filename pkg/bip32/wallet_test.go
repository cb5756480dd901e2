package bip32

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BIP-32 Test Vector 1
const tv1Seed = "000102030405060708090a0b0c0d0e0f"

func TestNewMasterKeyFromSeed(t *testing.T) {
	seed, _ := hex.DecodeString(tv1Seed)

	wallet, err := NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("生成主密钥失败: %v", err)
	}

	master := wallet.MasterKey()
	assert.Equal(t, "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi", master.String())

	pub, err := master.Neuter()
	require.NoError(t, err)
	assert.Equal(t, "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8", pub.String())
	assert.False(t, pub.IsPrivate())
}

func TestNewMasterKeyFromSeed_InvalidSeed(t *testing.T) {
	_, err := NewMasterKeyFromSeed([]byte{1, 2, 3}, nil)
	if !errors.Is(err, ErrInvalidSeed) {
		t.Fatalf("期望 ErrInvalidSeed, 实际: %v", err)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    []uint32
		wantErr bool
	}{
		{"root", "m", nil, false},
		{"bip44 btc", "m/44'/0'/0'/0/7", []uint32{44 + hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, 0, 7}, false},
		{"h suffix", "m/44h/60h/1h/0/0", []uint32{44 + hdkeychain.HardenedKeyStart, 60 + hdkeychain.HardenedKeyStart, 1 + hdkeychain.HardenedKeyStart, 0, 0}, false},
		{"missing prefix", "44'/0'", nil, true},
		{"garbage", "m/abc", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerivePath_MatchesStepwiseDerive(t *testing.T) {
	seed, _ := hex.DecodeString(tv1Seed)
	wallet, err := NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)

	byPath, err := wallet.DerivePath(BIP44Path(CoinTypeETH, 0, 0, 5))
	require.NoError(t, err)

	// 逐级派生结果应一致
	key := wallet.MasterKey()
	for _, idx := range []uint32{44 + hdkeychain.HardenedKeyStart, 60 + hdkeychain.HardenedKeyStart, hdkeychain.HardenedKeyStart, 0, 5} {
		key, err = key.Derive(idx)
		require.NoError(t, err)
	}
	assert.Equal(t, key.String(), byPath.String())
	assert.Equal(t, "m/44'/60'/0'/0/5", BIP44Path(CoinTypeETH, 0, 0, 5))
}
