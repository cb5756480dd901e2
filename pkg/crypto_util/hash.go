package crypto_util

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Keccak256 以太坊使用的哈希算法 (不是标准 SHA3-256)
func Keccak256(data ...[]byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return hash.Sum(nil)
}

// CalculateKeccak256 返回 Keccak256 的 hex 字符串
func CalculateKeccak256(data []byte) string {
	return hex.EncodeToString(Keccak256(data))
}

// CalculateBlake3 计算输入的 Blake3 哈希值
func CalculateBlake3(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Fingerprint 取 Blake3 前 8 字节作为短指纹，用于在日志里标识密钥而不泄露内容
func Fingerprint(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:8])
}
