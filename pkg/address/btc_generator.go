package address

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// BTCGenerator 比特币地址生成器
type BTCGenerator struct {
	network *chaincfg.Params
}

func NewBTCGenerator(network *chaincfg.Params) *BTCGenerator {
	if network == nil {
		network = &chaincfg.MainNetParams
	}
	return &BTCGenerator{network: network}
}

// PubKeyToAddress 将公钥字节 (压缩格式) 转换为 P2PKH 地址
func (g *BTCGenerator) PubKeyToAddress(pubKeyBytes []byte) (string, error) {
	addr, err := btcutil.NewAddressPubKey(pubKeyBytes, g.network)
	if err != nil {
		return "", err
	}
	return addr.AddressPubKeyHash().EncodeAddress(), nil
}

// Validate 接受 P2PKH / P2SH / SegWit 地址，但必须属于当前网络
func (g *BTCGenerator) Validate(addr string) error {
	decoded, err := btcutil.DecodeAddress(addr, g.network)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if !decoded.IsForNet(g.network) {
		return fmt.Errorf("%w: 地址不属于 %s 网络", ErrInvalidAddress, g.network.Name)
	}
	return nil
}
