package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/scrypt"
)

// ErrWrongPassword 密码错误或文件被篡改 (MAC 不匹配)
var ErrWrongPassword = errors.New("keystore: 密码错误或数据损坏")

// File 仿照 Ethereum Keystore V3 的结构，但加密的内容是助记词而不是单个私钥
type File struct {
	Crypto  CryptoJSON `json:"crypto"`
	ID      string     `json:"id"`
	Version int        `json:"version"`
}

type CryptoJSON struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

type CipherParams struct {
	IV string `json:"iv"`
}

type KDFParams struct {
	DKLen int    `json:"dklen"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
	Salt  string `json:"salt"`
}

// Params scrypt 成本参数
type Params struct {
	N int
	R int
	P int
}

var (
	// StandardParams 生产使用
	StandardParams = Params{N: 262144, R: 8, P: 1}
	// LightParams 测试和开发机使用
	LightParams = Params{N: 4096, R: 8, P: 1}
)

const dkLen = 32

// Encrypt 用密码加密助记词
func Encrypt(mnemonic, password string, params Params) (*File, error) {
	// 1. 随机 salt
	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	// 2. scrypt 派生 AES-256 密钥
	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, dkLen)
	if err != nil {
		return nil, fmt.Errorf("scrypt 派生失败: %w", err)
	}

	// 3. AES-256-GCM
	gcm, err := newGCM(derivedKey)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, []byte(mnemonic), nil)

	return &File{
		Version: 3,
		ID:      uuid.NewString(),
		Crypto: CryptoJSON{
			Cipher:       "aes-256-gcm",
			CipherText:   hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{IV: hex.EncodeToString(nonce)},
			KDF:          "scrypt",
			KDFParams: KDFParams{
				DKLen: dkLen,
				N:     params.N,
				R:     params.R,
				P:     params.P,
				Salt:  hex.EncodeToString(salt),
			},
			MAC: hex.EncodeToString(computeMAC(derivedKey, ciphertext)),
		},
	}, nil
}

// Decrypt 解密得到助记词
func Decrypt(f *File, password string) (string, error) {
	if f.Crypto.KDF != "scrypt" || f.Crypto.Cipher != "aes-256-gcm" {
		return "", fmt.Errorf("keystore: 不支持的算法 %s/%s", f.Crypto.KDF, f.Crypto.Cipher)
	}

	salt, err := hex.DecodeString(f.Crypto.KDFParams.Salt)
	if err != nil {
		return "", fmt.Errorf("keystore: salt 无效: %w", err)
	}
	nonce, err := hex.DecodeString(f.Crypto.CipherParams.IV)
	if err != nil {
		return "", fmt.Errorf("keystore: iv 无效: %w", err)
	}
	ciphertext, err := hex.DecodeString(f.Crypto.CipherText)
	if err != nil {
		return "", fmt.Errorf("keystore: ciphertext 无效: %w", err)
	}
	mac, err := hex.DecodeString(f.Crypto.MAC)
	if err != nil {
		return "", fmt.Errorf("keystore: mac 无效: %w", err)
	}

	kdf := f.Crypto.KDFParams
	derivedKey, err := scrypt.Key([]byte(password), salt, kdf.N, kdf.R, kdf.P, kdf.DKLen)
	if err != nil {
		return "", fmt.Errorf("scrypt 派生失败: %w", err)
	}

	// 先验 MAC 再解密
	if !hmac.Equal(mac, computeMAC(derivedKey, ciphertext)) {
		return "", ErrWrongPassword
	}

	gcm, err := newGCM(derivedKey)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

// Save 原子写入 (临时文件 + rename)，权限 0600
func (f *File) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("创建 keystore 目录失败: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("写入 keystore 失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("写入 keystore 失败: %w", err)
	}
	return nil
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keystore 格式错误: %w", err)
	}
	return &f, nil
}

// Exists 文件存在时返回 true；路径不存在 (含父路径不是目录) 返回 false
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return false, nil
	}
	return false, err
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func computeMAC(key, ciphertext []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(ciphertext)
	return h.Sum(nil)
}
