package bip32

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// BTCKeychain 实现 ExtendedKey，封装 hdkeychain.ExtendedKey
type BTCKeychain struct {
	key *hdkeychain.ExtendedKey
}

func (k *BTCKeychain) String() string {
	return k.key.String()
}

func (k *BTCKeychain) ECPubKey() (*btcec.PublicKey, error) {
	return k.key.ECPubKey()
}

func (k *BTCKeychain) ECPrivKey() (*btcec.PrivateKey, error) {
	return k.key.ECPrivKey()
}

func (k *BTCKeychain) Derive(index uint32) (ExtendedKey, error) {
	childKey, err := k.key.Derive(index)
	if err != nil {
		return nil, fmt.Errorf("派生子密钥失败: %w", err)
	}
	return &BTCKeychain{key: childKey}, nil
}

func (k *BTCKeychain) IsPrivate() bool {
	return k.key.IsPrivate()
}

func (k *BTCKeychain) Neuter() (ExtendedKey, error) {
	neuterKey, err := k.key.Neuter()
	if err != nil {
		return nil, fmt.Errorf("转换公钥失败: %w", err)
	}
	return &BTCKeychain{key: neuterKey}, nil
}

// Wallet 实现 HDWallet 接口
type Wallet struct {
	masterKey *BTCKeychain
}

// NewMasterKeyFromSeed 使用 BIP-39 种子生成主密钥
// network 只影响 xprv/xpub 的版本前缀，派生结果与网络无关
func NewMasterKeyFromSeed(seed []byte, network *chaincfg.Params) (*Wallet, error) {
	if len(seed) < hdkeychain.MinSeedBytes || len(seed) > hdkeychain.MaxSeedBytes {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &chaincfg.MainNetParams
	}

	masterKey, err := hdkeychain.NewMaster(seed, network)
	if err != nil {
		return nil, fmt.Errorf("生成主密钥失败: %w", err)
	}

	return &Wallet{masterKey: &BTCKeychain{key: masterKey}}, nil
}

func (w *Wallet) MasterKey() ExtendedKey {
	return w.masterKey
}

// DerivePath 解析路径并派生密钥
// 支持格式: m/44'/0'/0'/0/0 或 m/44h/0h/0h/0/0
func (w *Wallet) DerivePath(path string) (ExtendedKey, error) {
	indexes, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	var current ExtendedKey = w.masterKey
	for _, index := range indexes {
		current, err = current.Derive(index)
		if err != nil {
			return nil, err
		}
	}
	return current, nil
}

// ParsePath 把字符串路径转换为索引序列，hardened 段已加上 HardenedKeyStart
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "m/") {
		return nil, fmt.Errorf("%w: %q 必须以 m/ 开头", ErrInvalidPath, path)
	}

	segments := strings.Split(path[2:], "/")
	indexes := make([]uint32, 0, len(segments))
	for _, segment := range segments {
		hardened := false
		if strings.HasSuffix(segment, "'") || strings.HasSuffix(segment, "h") {
			hardened = true
			segment = segment[:len(segment)-1]
		}

		val, err := strconv.ParseUint(segment, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: 路径段 %q: %v", ErrInvalidPath, segment, err)
		}
		index := uint32(val)
		if hardened {
			if index >= hdkeychain.HardenedKeyStart {
				return nil, fmt.Errorf("%w: 路径段 %q 越界", ErrInvalidPath, segment)
			}
			index += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, index)
	}
	return indexes, nil
}
