package address

import "errors"

// ErrInvalidAddress 地址格式或网络不匹配
var ErrInvalidAddress = errors.New("invalid address")

// Generator 把公钥编码为某条链的地址，并校验外部输入的地址
type Generator interface {
	PubKeyToAddress(pubKeyBytes []byte) (string, error)
	Validate(addr string) error
}
