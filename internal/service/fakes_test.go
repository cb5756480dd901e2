package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/chain/bitcoin"
	"custody-core/internal/chain/ethereum"
	"custody-core/internal/keyring"
	"custody-core/internal/model"
	"custody-core/internal/testutil"
	"custody-core/pkg/wallet/types"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// 有效的外部地址
const (
	btcExternal = "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"
	ethExternal = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
)

// fakeClient 内存版链上状态
type fakeClient struct {
	mu           sync.Mutex
	tip          int64
	tipErr       error
	txs          map[string]chain.TxInfo
	history      map[string][]chain.TxInfo
	historyErr   error
	balances     map[string]decimal.Decimal
	broadcastErr error
	broadcasts   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		txs:      map[string]chain.TxInfo{},
		history:  map[string][]chain.TxInfo{},
		balances: map[string]decimal.Decimal{},
	}
}

// addTx 交易同时出现在收款地址的历史里
func (f *fakeClient) addTx(hash string, block int64, to string, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx := chain.TxInfo{Hash: hash, BlockHeight: block, Transfers: []chain.Transfer{{To: to, Amount: decimal.RequireFromString(amount)}}}
	f.txs[hash] = tx
	f.history[strings.ToLower(to)] = append(f.history[strings.ToLower(to)], tx)
}

// addHistory 让已有交易出现在另一个地址的历史里
func (f *fakeClient) addHistory(addr, hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[strings.ToLower(addr)] = append(f.history[strings.ToLower(addr)], f.txs[hash])
}

func (f *fakeClient) setTip(h int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tip = h
}

func (f *fakeClient) setBalance(addr, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[strings.ToLower(addr)] = decimal.RequireFromString(amount)
}

func (f *fakeClient) GetTransaction(_ context.Context, hash string) (*chain.TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.txs[hash]
	if !ok {
		return nil, chain.ErrNotFound
	}
	return &tx, nil
}

func (f *fakeClient) GetAddressHistory(_ context.Context, addr string) ([]chain.TxInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return append([]chain.TxInfo(nil), f.history[strings.ToLower(addr)]...), nil
}

func (f *fakeClient) GetTipHeight(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tip, f.tipErr
}

func (f *fakeClient) GetFeeEstimate(context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(10), nil
}

func (f *fakeClient) GetBalance(_ context.Context, addr string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[strings.ToLower(addr)], nil
}

func (f *fakeClient) Broadcast(_ context.Context, raw string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broadcastErr != nil {
		return "", f.broadcastErr
	}
	f.broadcasts = append(f.broadcasts, raw)
	return "", nil
}

// fakeChain 地址派生/校验用真实实现，签名广播用假的
type fakeChain struct {
	chain.Chain
	client  *fakeClient
	fee     decimal.Decimal
	signErr error
	signed  int
}

func (c *fakeChain) Client() chain.Client { return c.client }

func (c *fakeChain) FetchSpendableInputs(context.Context, string) ([]chain.SpendableInput, error) {
	return nil, nil
}

func (c *fakeChain) EstimateFee(context.Context, int) (decimal.Decimal, error) { return c.fee, nil }

func (c *fakeChain) BuildAndSign(_ context.Context, key *btcec.PrivateKey, from, to string, amount decimal.Decimal) (*types.SignedTransaction, error) {
	if c.signErr != nil {
		return nil, c.signErr
	}
	if key == nil {
		return nil, fmt.Errorf("missing key")
	}
	c.signed++
	return &types.SignedTransaction{
		Chain:     c.Symbol().String(),
		From:      from,
		To:        to,
		TxHash:    fmt.Sprintf("%s-tx-%d", strings.ToLower(c.Symbol().String()), c.signed),
		RawTx:     fmt.Sprintf("raw-%d", c.signed),
		Fee:       c.fee,
		NetAmount: amount.Sub(c.fee),
	}, nil
}

func (c *fakeChain) Broadcast(ctx context.Context, tx *types.SignedTransaction) (string, error) {
	if _, err := c.client.Broadcast(ctx, tx.RawTx); err != nil {
		return "", err
	}
	return tx.TxHash, nil
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	live   bool
	err    error
}

func (p *fakePrices) Price(_ context.Context, currency string) (decimal.Decimal, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return decimal.Zero, false, p.err
	}
	return p.prices[strings.ToUpper(currency)], p.live, nil
}

// testEnv 一套接好线的服务
type testEnv struct {
	db     *gorm.DB
	clock  *clock.Mock
	btc    *fakeChain
	eth    *fakeChain
	chains *chain.Registry
	keys   *keyring.Provider
	prices *fakePrices

	addresses   *AddressService
	creditor    *LedgerCreditor
	tracker     *ConfirmationTracker
	scanner     *DepositScanner
	deposits    *DepositService
	limiter     *WithdrawalLimiter
	withdrawals *WithdrawService
	hotwallet   *HotWalletMonitor
	processor   *WithdrawalProcessor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))

	keys, err := keyring.FromMnemonic(abandonMnemonic, &chaincfg.MainNetParams)
	require.NoError(t, err)

	btc := &fakeChain{Chain: bitcoin.NewChain(nil, &chaincfg.MainNetParams, 3), client: newFakeClient(), fee: decimal.RequireFromString("0.0001")}
	eth := &fakeChain{Chain: ethereum.NewChain(nil, 1, 12), client: newFakeClient(), fee: decimal.RequireFromString("0.00042")}
	chains := chain.NewRegistry(btc, eth)

	prices := &fakePrices{live: true, prices: map[string]decimal.Decimal{
		"BTC": decimal.NewFromInt(60000),
		"ETH": decimal.NewFromInt(3000),
	}}

	env := &testEnv{db: db, clock: mock, btc: btc, eth: eth, chains: chains, keys: keys, prices: prices}
	env.addresses = NewAddressService(db, keys, chains)
	env.creditor = NewLedgerCreditor(db, prices, mock)
	env.tracker = NewConfirmationTracker(db, chains, env.creditor)
	env.scanner = NewDepositScanner(db, chains, env.addresses, env.tracker, 0, mock)
	env.deposits = NewDepositService(db, env.addresses, env.tracker)
	env.limiter = NewWithdrawalLimiter(db, DefaultLimitConfig(), mock)
	env.withdrawals = NewWithdrawService(db, chains, prices, env.limiter, WithdrawConfig{MinAmountUSD: decimal.NewFromInt(10), RequiredApprovals: 1}, mock)
	env.hotwallet = NewHotWalletMonitor(db, chains, keys, map[string]Thresholds{
		"btc": {Critical: decimal.RequireFromString("0.1"), Warning: decimal.RequireFromString("0.5"), Target: decimal.NewFromInt(2)},
		"eth": {Critical: decimal.NewFromInt(1), Warning: decimal.NewFromInt(5), Target: decimal.NewFromInt(20)},
	}, time.Hour, mock)
	env.processor = NewWithdrawalProcessor(db, chains, env.withdrawals, keys, env.hotwallet, 20)
	return env
}

// fund 直接给用户入一笔 USD，同时记流水，保持余额 = 流水之和
func (e *testEnv) fund(t *testing.T, userID uint64, usd string) {
	t.Helper()
	amount := decimal.RequireFromString(usd)
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		tx.Model(&model.LedgerTransaction{}).Count(&n)
		if err := appendLedger(tx, userID, model.LedgerTypeDeposit, amount, fmt.Sprintf("seed:%d", n), "test funding"); err != nil {
			return err
		}
		return creditBalance(tx, userID, amount)
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID uint64) decimal.Decimal {
	t.Helper()
	var acc model.Account
	err := e.db.Where("user_id = ?", userID).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return acc.Balance
}

func (e *testEnv) ledgerSum(t *testing.T, userID uint64) decimal.Decimal {
	t.Helper()
	var rows []model.LedgerTransaction
	require.NoError(t, e.db.Where("user_id = ?", userID).Find(&rows).Error)
	sum := decimal.Zero
	for _, r := range rows {
		sum = sum.Add(r.Amount)
	}
	return sum
}

func (e *testEnv) hotAddress(t *testing.T, c chain.Chain) string {
	t.Helper()
	addr, err := e.keys.HotWalletAddress(c)
	require.NoError(t, err)
	return addr
}

func (e *testEnv) outboxTypes(t *testing.T) []string {
	t.Helper()
	var rows []model.OutboxMessage
	require.NoError(t, e.db.Order("id").Find(&rows).Error)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(r.Payload, &env))
		out = append(out, env.Type)
	}
	return out
}
