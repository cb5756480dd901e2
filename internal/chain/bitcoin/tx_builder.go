package bitcoin

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"

	"custody-core/internal/chain"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// 启用 RBF，卡住时可以加价替换
const rbfSequence uint32 = 0xfffffffd

// TxPlan 选币结果，金额单位 sat
type TxPlan struct {
	Inputs []chain.SpendableInput
	Total  int64
	Net    int64 // 收款方实际到账
	Change int64
	Fee    int64 // Total - Net - Change
}

// PlanTx 大额优先选币，手续费从 amount 中扣除
// 找零低于粉尘线时并入手续费
func PlanTx(utxos []chain.SpendableInput, amountSats, feeRate int64) (*TxPlan, error) {
	if amountSats <= 0 {
		return nil, chain.ErrAmountTooSmall
	}

	sorted := make([]chain.SpendableInput, len(utxos))
	copy(sorted, utxos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	plan := &TxPlan{}
	for _, u := range sorted {
		if plan.Total >= amountSats {
			break
		}
		plan.Inputs = append(plan.Inputs, u)
		plan.Total += u.Value
	}
	if plan.Total < amountSats {
		return nil, fmt.Errorf("%w: 需要 %d sat, 可用 %d sat", chain.ErrInsufficientFunds, amountSats, plan.Total)
	}

	outputs := 1
	if plan.Total-amountSats >= DustThreshold {
		outputs = 2
		plan.Change = plan.Total - amountSats
	}

	networkFee := EstimateFeeSats(feeRate, len(plan.Inputs), outputs)
	plan.Net = amountSats - networkFee
	if plan.Net < DustThreshold {
		return nil, fmt.Errorf("%w: 金额 %d sat, 手续费 %d sat", chain.ErrAmountTooSmall, amountSats, networkFee)
	}
	plan.Fee = plan.Total - plan.Net - plan.Change
	return plan, nil
}

// BuildSignedTx 按 plan 构造 P2PKH 交易并逐个输入签名，签完用脚本引擎自检
func BuildSignedTx(key *btcec.PrivateKey, network *chaincfg.Params, from, to string, plan *TxPlan) (*wire.MsgTx, error) {
	fromAddr, err := btcutil.DecodeAddress(from, network)
	if err != nil {
		return nil, fmt.Errorf("解析发送地址失败: %w", err)
	}
	toAddr, err := btcutil.DecodeAddress(to, network)
	if err != nil {
		return nil, fmt.Errorf("解析接收地址失败: %w", err)
	}

	// 私钥必须对应 from 地址
	keyAddr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()), network)
	if err != nil {
		return nil, err
	}
	if keyAddr.EncodeAddress() != fromAddr.EncodeAddress() {
		return nil, fmt.Errorf("私钥与发送地址不匹配: %s != %s", keyAddr.EncodeAddress(), from)
	}

	fromScript, err := txscript.PayToAddrScript(fromAddr)
	if err != nil {
		return nil, err
	}
	toScript, err := txscript.PayToAddrScript(toAddr)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(plan.Inputs))
	for _, in := range plan.Inputs {
		hash, err := chainhash.NewHashFromStr(in.TxHash)
		if err != nil {
			return nil, fmt.Errorf("无效的 UTXO txid %s: %w", in.TxHash, err)
		}
		op := wire.NewOutPoint(hash, in.Vout)
		txIn := wire.NewTxIn(op, nil, nil)
		txIn.Sequence = rbfSequence
		tx.AddTxIn(txIn)
		prevOuts[*op] = wire.NewTxOut(in.Value, fromScript)
	}

	tx.AddTxOut(wire.NewTxOut(plan.Net, toScript))
	if plan.Change > 0 {
		tx.AddTxOut(wire.NewTxOut(plan.Change, fromScript))
	}

	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range plan.Inputs {
		sigScript, err := txscript.SignatureScript(tx, i, fromScript, txscript.SigHashAll, key, true)
		if err != nil {
			return nil, fmt.Errorf("签名输入 %d 失败: %w", i, err)
		}
		tx.TxIn[i].SignatureScript = sigScript

		vm, err := txscript.NewEngine(fromScript, tx, i, txscript.StandardVerifyFlags, nil, sigHashes, in.Value, fetcher)
		if err != nil {
			return nil, err
		}
		if err := vm.Execute(); err != nil {
			return nil, fmt.Errorf("输入 %d 签名自检失败: %w", i, err)
		}
	}
	return tx, nil
}

// SerializeTx 序列化为十六进制
func SerializeTx(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSize())
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
