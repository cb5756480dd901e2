package bip32

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// BIP-44 coin types (SLIP-0044)
const (
	CoinTypeBTC uint32 = 0
	CoinTypeETH uint32 = 60
)

// ExtendedKey 包装了 BIP-32 扩展密钥
type ExtendedKey interface {
	// String 返回 Base58 编码的密钥字符串 (xprv... / xpub...)
	String() string
	ECPubKey() (*btcec.PublicKey, error)
	// ECPrivKey 获取底层 EC 私钥 (用于签名)，公钥节点会返回错误
	ECPrivKey() (*btcec.PrivateKey, error)
	Derive(index uint32) (ExtendedKey, error)
	IsPrivate() bool
	Neuter() (ExtendedKey, error)
}

// HDWallet 定义了分层确定性钱包的基本行为
type HDWallet interface {
	MasterKey() ExtendedKey
	// DerivePath 根据路径 (如 "m/44'/0'/0'/0/0") 派生密钥
	DerivePath(path string) (ExtendedKey, error)
}

var (
	ErrInvalidSeed = errors.New("无效的种子")
	ErrInvalidPath = errors.New("无效的派生路径")
)

// BIP44Path 拼出 m/44'/coin'/account'/change/index
func BIP44Path(coinType, account, change, index uint32) string {
	return fmt.Sprintf("m/44'/%d'/%d'/%d/%d", coinType, account, change, index)
}
