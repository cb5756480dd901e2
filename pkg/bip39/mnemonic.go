package bip39

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic 助记词校验失败 (单词表或校验和)
var ErrInvalidMnemonic = errors.New("助记词无效")

// Generate 生成一个新的随机助记词 (BIP-39)
// bitSize: 熵的位数，128 为 12 个单词，256 为 24 个单词
func Generate(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", fmt.Errorf("生成熵失败: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("生成助记词失败: %w", err)
	}
	return mnemonic, nil
}

// Normalize 合并多余空白并转小写，配置文件里手抄的助记词经常带换行
func Normalize(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

func Validate(mnemonic string) bool {
	return bip39.IsMnemonicValid(Normalize(mnemonic))
}

// ToSeed 校验后转换为 64 字节种子
// passphrase 即 "第 25 个单词"，不需要时传空字符串
func ToSeed(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = Normalize(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	return bip39.NewSeed(mnemonic, passphrase), nil
}
