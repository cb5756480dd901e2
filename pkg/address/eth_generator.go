package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"custody-core/pkg/crypto_util"
)

// ETHGenerator 以太坊地址生成器
type ETHGenerator struct{}

func NewETHGenerator() *ETHGenerator {
	return &ETHGenerator{}
}

// PubKeyToAddress 将公钥字节 (非压缩格式, 65 bytes, 0x04...) 转换为 EIP-55 地址
func (g *ETHGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	if len(pubKeyBytes) == 65 && pubKeyBytes[0] == 0x04 {
		pubKeyBytes = pubKeyBytes[1:]
	}
	if len(pubKeyBytes) != 64 {
		return "", fmt.Errorf("非压缩公钥长度应为 64/65 字节, 实际 %d", len(pubKeyBytes))
	}

	// Keccak-256 后取后 20 字节
	hash := crypto_util.Keccak256(pubKeyBytes)
	return ToChecksumAddress(hex.EncodeToString(hash[12:])), nil
}

// Validate 校验 0x 前缀 + 40 位十六进制；大小写混合时必须满足 EIP-55 校验和
func (g *ETHGenerator) Validate(addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("%w: 缺少 0x 前缀", ErrInvalidAddress)
	}
	body := addr[2:]
	if len(body) != 40 {
		return fmt.Errorf("%w: 长度错误", ErrInvalidAddress)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return fmt.Errorf("%w: 非十六进制", ErrInvalidAddress)
	}

	lower, upper := strings.ToLower(body), strings.ToUpper(body)
	if body != lower && body != upper && "0x"+body != ToChecksumAddress(body) {
		return fmt.Errorf("%w: EIP-55 校验和不匹配", ErrInvalidAddress)
	}
	return nil
}

// ToChecksumAddress 实现 EIP-55 混合大小写校验，输入可带或不带 0x
func ToChecksumAddress(address string) string {
	address = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))
	hexHash := hex.EncodeToString(crypto_util.Keccak256([]byte(address)))

	var sb strings.Builder
	sb.WriteString("0x")
	for i := 0; i < len(address); i++ {
		char := address[i]
		// hash 对应位 >= 8 时大写
		if hexCharToInt(hexHash[i]) >= 8 {
			sb.WriteString(strings.ToUpper(string(char)))
		} else {
			sb.WriteByte(char)
		}
	}
	return sb.String()
}

func hexCharToInt(c byte) byte {
	if c >= '0' && c <= '9' {
		return c - '0'
	}
	if c >= 'a' && c <= 'f' {
		return c - 'a' + 10
	}
	return 0
}
