package ethereum

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"custody-core/internal/chain"
	"custody-core/pkg/address"
	"custody-core/pkg/bip32"
	"custody-core/pkg/wallet/types"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// TransferGasLimit 原生 ETH 转账固定 gas
const TransferGasLimit uint64 = 21000

// Chain 以太坊实现
type Chain struct {
	client   *Client
	chainID  *big.Int
	gen      *address.ETHGenerator
	required int64
}

func NewChain(client *Client, chainID int64, requiredConfirmations int64) *Chain {
	return &Chain{
		client:   client,
		chainID:  big.NewInt(chainID),
		gen:      address.NewETHGenerator(),
		required: requiredConfirmations,
	}
}

func (c *Chain) Symbol() chain.Symbol { return chain.ETH }
func (c *Chain) CoinType() uint32 { return bip32.CoinTypeETH }
func (c *Chain) RequiredConfirmations() int64 { return c.required }
func (c *Chain) Client() chain.Client { return c.client }
func (c *Chain) ValidateAddress(a string) error { return c.gen.Validate(a) }

func (c *Chain) DeriveAddress(pub *btcec.PublicKey) (string, error) {
	return c.gen.PubKeyToAddress(pub.SerializeUncompressed())
}

// FetchSpendableInputs 账户模型，唯一的 "输入" 就是账户余额
func (c *Chain) FetchSpendableInputs(ctx context.Context, from string) ([]chain.SpendableInput, error) {
	bal, err := c.client.GetBalance(ctx, from)
	if err != nil {
		return nil, err
	}
	return []chain.SpendableInput{{Amount: bal}}, nil
}

// EstimateFee gasPrice × 21000
func (c *Chain) EstimateFee(ctx context.Context, _ int) (decimal.Decimal, error) {
	gp, err := c.client.GasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return chain.FromBaseUnits(transferFee(gp), chain.ETHDecimals), nil
}

func (c *Chain) BuildAndSign(ctx context.Context, key *btcec.PrivateKey, from, to string, amount decimal.Decimal) (*types.SignedTransaction, error) {
	ecdsaKey := key.ToECDSA()
	if signer := crypto.PubkeyToAddress(ecdsaKey.PublicKey); !common.IsHexAddress(from) || signer != common.HexToAddress(from) {
		return nil, fmt.Errorf("私钥与发送地址不匹配: %s != %s", signer.Hex(), from)
	}

	// 1. nonce 与 gas price
	nonce, err := c.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, err
	}
	gasPrice, err := c.client.GasPrice(ctx)
	if err != nil {
		return nil, err
	}

	// 2. 手续费从金额中扣除
	fee := transferFee(gasPrice)
	value := new(big.Int).Sub(chain.ToBaseUnits(amount, chain.ETHDecimals), fee)
	if value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: 金额 %s ETH, 手续费 %s ETH", chain.ErrAmountTooSmall,
			amount, chain.FromBaseUnits(fee, chain.ETHDecimals))
	}

	// 3. EIP-155 签名
	tx := ethtypes.NewTransaction(nonce, common.HexToAddress(to), value, TransferGasLimit, gasPrice, nil)
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(c.chainID), ecdsaKey)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &types.SignedTransaction{
		Chain:     chain.ETH.String(),
		From:      from,
		To:        to,
		TxHash:    signed.Hash().Hex(),
		RawTx:     "0x" + hex.EncodeToString(raw),
		Fee:       chain.FromBaseUnits(fee, chain.ETHDecimals),
		NetAmount: chain.FromBaseUnits(value, chain.ETHDecimals),
	}, nil
}

func (c *Chain) Broadcast(ctx context.Context, tx *types.SignedTransaction) (string, error) {
	return c.client.Broadcast(ctx, tx.RawTx)
}

func transferFee(gasPrice *big.Int) *big.Int {
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(TransferGasLimit))
}

var _ chain.Chain = (*Chain)(nil)
