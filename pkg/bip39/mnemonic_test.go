package bip39

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerate(t *testing.T) {
	for _, tc := range []struct {
		bits  int
		words int
	}{{128, 12}, {256, 24}} {
		mnemonic, err := Generate(tc.bits)
		if err != nil {
			t.Fatalf("生成 %d 位助记词失败: %v", tc.bits, err)
		}
		if n := len(strings.Fields(mnemonic)); n != tc.words {
			t.Fatalf("期望 %d 个单词, 实际 %d", tc.words, n)
		}
		if !Validate(mnemonic) {
			t.Errorf("生成的助记词无效: %s", mnemonic)
		}
	}
}

func TestToSeed_KnownVector(t *testing.T) {
	expected := "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc19a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

	// 大小写和多余空白不影响结果
	messy := "  ABANDON abandon abandon abandon abandon abandon\n abandon abandon abandon abandon abandon about "
	for _, m := range []string{abandonMnemonic, messy} {
		seed, err := ToSeed(m, "")
		if err != nil {
			t.Fatalf("转换种子失败: %v", err)
		}
		if got := hex.EncodeToString(seed); got != expected {
			t.Errorf("Seed 不匹配\n预期: %s\n实际: %s", expected, got)
		}
	}
}

func TestToSeed_Invalid(t *testing.T) {
	_, err := ToSeed("hello world invalid mnemonic phrase designed to fail validation check", "")
	if !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("期望 ErrInvalidMnemonic, 实际: %v", err)
	}
}
