// Package keyring 持有主种子，进程启动时构造一次后只读，显式注入给需要签名或派生地址的组件。
package keyring

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"custody-core/internal/chain"
	"custody-core/pkg/bip32"
	"custody-core/pkg/bip39"
	"custody-core/pkg/crypto_util"
	"custody-core/pkg/keystore"
	"custody-core/pkg/logger"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"
)

var (
	// ErrNoSeed 既没有 keystore 也没有助记词，且不允许自动生成
	ErrNoSeed = errors.New("keyring: 未找到主种子")
	// ErrSeedNotPersisted 新生成的种子无法落盘，继续运行会丢失资金
	ErrSeedNotPersisted = errors.New("keyring: 新生成的种子无法保存")
)

// 账户划分: 0' 为用户充值地址，1' 为热钱包
const (
	depositAccount uint32 = 0
	hotAccount     uint32 = 1
)

// Options 加载参数
type Options struct {
	KeystorePath      string
	Password          string
	Mnemonic          string // 仅开发环境
	GenerateIfMissing bool
	Network           *chaincfg.Params // 只影响 xprv/xpub 前缀
	ScryptParams      keystore.Params
}

// DerivedAddress 派生结果
type DerivedAddress struct {
	Address   string
	Path      string
	PublicKey string // 压缩公钥 hex
}

// Provider 主种子持有者
type Provider struct {
	wallet      *bip32.Wallet
	fingerprint string
}

// Load 按优先级加载主种子
// 1. 加密 keystore 文件
// 2. 配置中的明文助记词 (开发环境)
// 3. generate_if_missing 时生成新助记词并加密落盘，落盘失败直接返回错误
func Load(opts Options) (*Provider, error) {
	if opts.ScryptParams.N == 0 {
		opts.ScryptParams = keystore.StandardParams
	}

	// 1. keystore
	if opts.KeystorePath != "" {
		exists, err := keystore.Exists(opts.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("检查 keystore 失败: %w", err)
		}
		if exists {
			f, err := keystore.Load(opts.KeystorePath)
			if err != nil {
				return nil, err
			}
			mnemonic, err := keystore.Decrypt(f, opts.Password)
			if err != nil {
				return nil, fmt.Errorf("解密 keystore 失败: %w", err)
			}
			p, err := FromMnemonic(mnemonic, opts.Network)
			if err != nil {
				return nil, err
			}
			logger.Info("[Keyring] 已从 keystore 加载主种子",
				zap.String("path", opts.KeystorePath), zap.String("fingerprint", p.Fingerprint()))
			return p, nil
		}
	}

	// 2. 明文助记词
	if opts.Mnemonic != "" {
		p, err := FromMnemonic(opts.Mnemonic, opts.Network)
		if err != nil {
			return nil, err
		}
		logger.Warn("[Keyring] 正在使用配置文件中的明文助记词，仅限开发环境！",
			zap.String("fingerprint", p.Fingerprint()))
		return p, nil
	}

	// 3. 生成
	if !opts.GenerateIfMissing {
		return nil, ErrNoSeed
	}
	if opts.KeystorePath == "" || opts.Password == "" {
		return nil, fmt.Errorf("%w: 需要 keystore_path 和 password", ErrSeedNotPersisted)
	}

	mnemonic, err := bip39.Generate(256)
	if err != nil {
		return nil, err
	}
	f, err := keystore.Encrypt(mnemonic, opts.Password, opts.ScryptParams)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedNotPersisted, err)
	}
	if err := f.Save(opts.KeystorePath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSeedNotPersisted, err)
	}

	p, err := FromMnemonic(mnemonic, opts.Network)
	if err != nil {
		return nil, err
	}
	logger.Error("[Keyring] 已生成新的主种子并加密保存，请立即离线备份 keystore 文件和密码！丢失即无法恢复资金",
		zap.String("path", opts.KeystorePath), zap.String("fingerprint", p.Fingerprint()))
	return p, nil
}

// FromMnemonic 直接从助记词构造
func FromMnemonic(mnemonic string, network *chaincfg.Params) (*Provider, error) {
	seed, err := bip39.ToSeed(mnemonic, "")
	if err != nil {
		return nil, err
	}
	w, err := bip32.NewMasterKeyFromSeed(seed, network)
	if err != nil {
		return nil, err
	}
	xpub, err := w.MasterKey().Neuter()
	if err != nil {
		return nil, err
	}
	return &Provider{
		wallet:      w,
		fingerprint: crypto_util.Fingerprint([]byte(xpub.String())),
	}, nil
}

// Fingerprint 主公钥的 blake3 短指纹，可以放心打印
func (p *Provider) Fingerprint() string {
	return p.fingerprint
}

// DeriveAddress m/44'/coin'/0'/0/index，同样的输入永远得到同样的地址
func (p *Provider) DeriveAddress(c chain.Chain, index uint32) (*DerivedAddress, error) {
	path := bip32.BIP44Path(c.CoinType(), depositAccount, 0, index)
	key, err := p.wallet.DerivePath(path)
	if err != nil {
		return nil, err
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}
	addr, err := c.DeriveAddress(pub)
	if err != nil {
		return nil, err
	}
	return &DerivedAddress{
		Address:   addr,
		Path:      path,
		PublicKey: hex.EncodeToString(pub.SerializeCompressed()),
	}, nil
}

// VerifyAddress 重新派生并比较
// 先做格式校验，之后大小写不敏感比较 (ETH 校验和与 bech32 都允许大小写变化)
func (p *Provider) VerifyAddress(c chain.Chain, index uint32, addr string) (bool, error) {
	if err := c.ValidateAddress(addr); err != nil {
		return false, nil
	}
	d, err := p.DeriveAddress(c, index)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(d.Address, addr), nil
}

// HotWalletPath m/44'/coin'/1'/0/0
func HotWalletPath(c chain.Chain) string {
	return bip32.BIP44Path(c.CoinType(), hotAccount, 0, 0)
}

// HotWalletKey 热钱包签名私钥
func (p *Provider) HotWalletKey(c chain.Chain) (*btcec.PrivateKey, error) {
	key, err := p.wallet.DerivePath(HotWalletPath(c))
	if err != nil {
		return nil, err
	}
	return key.ECPrivKey()
}

func (p *Provider) HotWalletAddress(c chain.Chain) (string, error) {
	key, err := p.wallet.DerivePath(HotWalletPath(c))
	if err != nil {
		return "", err
	}
	pub, err := key.ECPubKey()
	if err != nil {
		return "", err
	}
	return c.DeriveAddress(pub)
}
