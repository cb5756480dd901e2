package chain

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"custody-core/pkg/wallet/types"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	s, err := ParseSymbol(" btc ")
	require.NoError(t, err)
	assert.Equal(t, BTC, s)

	_, err = ParseSymbol("DOGE")
	assert.True(t, errors.Is(err, ErrUnsupportedCurrency))
}

func TestConfirmations(t *testing.T) {
	assert.Equal(t, int64(0), Confirmations(100, 0), "未上链")
	assert.Equal(t, int64(1), Confirmations(100, 100))
	assert.Equal(t, int64(3), Confirmations(102, 100))
	assert.Equal(t, int64(0), Confirmations(99, 100), "索引器之间高度不一致")
}

func TestTxInfo_AmountTo(t *testing.T) {
	tx := TxInfo{Transfers: []Transfer{
		{To: "0xAbC", Amount: decimal.RequireFromString("0.5")},
		{To: "0xabc", Amount: decimal.RequireFromString("0.25")},
		{To: "0xdef", Amount: decimal.RequireFromString("9")},
	}}
	assert.Equal(t, "0.75", tx.AmountTo("0xABC").String())
	assert.True(t, tx.AmountTo("0x123").IsZero())
}

func TestTransient(t *testing.T) {
	assert.Nil(t, Transient("op", nil))

	err := Transient("GET /x", errors.New("boom"))
	assert.True(t, IsTransient(err))
	assert.Same(t, err, Transient("again", err), "不重复包装")

	nf := Transient("GET /tx", ErrNotFound)
	assert.False(t, IsTransient(nf))
	assert.True(t, errors.Is(nf, ErrNotFound))
}

func TestUnits(t *testing.T) {
	assert.Equal(t, int64(1000000), BTCToSats(decimal.RequireFromString("0.01")))
	assert.Equal(t, int64(1), BTCToSats(decimal.RequireFromString("0.000000019")), "向下取整")
	assert.Equal(t, "0.01", SatsToBTC(1000000).String())

	wei := ToBaseUnits(decimal.RequireFromString("1.5"), ETHDecimals)
	assert.Equal(t, "1500000000000000000", wei.String())
	assert.Equal(t, "1.5", FromBaseUnits(wei, ETHDecimals).String())
	assert.Equal(t, 0, big.NewInt(0).Cmp(ToBaseUnits(decimal.Zero, ETHDecimals)))
}

type stubChain struct{ sym Symbol }

func (s stubChain) Symbol() Symbol { return s.sym }
func (s stubChain) CoinType() uint32 { return 0 }
func (s stubChain) RequiredConfirmations() int64 { return 1 }
func (s stubChain) DeriveAddress(*btcec.PublicKey) (string, error) { return "", nil }
func (s stubChain) ValidateAddress(string) error { return nil }
func (s stubChain) Client() Client { return nil }
func (s stubChain) EstimateFee(context.Context, int) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (s stubChain) FetchSpendableInputs(context.Context, string) ([]SpendableInput, error) {
	return nil, nil
}
func (s stubChain) BuildAndSign(context.Context, *btcec.PrivateKey, string, string, decimal.Decimal) (*types.SignedTransaction, error) {
	return nil, nil
}
func (s stubChain) Broadcast(context.Context, *types.SignedTransaction) (string, error) {
	return "", nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubChain{ETH}, stubChain{BTC})

	c, err := r.Get("eth")
	require.NoError(t, err)
	assert.Equal(t, ETH, c.Symbol())

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, BTC, all[0].Symbol())

	only := NewRegistry(stubChain{BTC})
	_, err = only.Get("ETH")
	assert.True(t, errors.Is(err, ErrUnsupportedCurrency))
}

func TestDoRequest_StatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, `{"v":1}`)
		case "/bad-json":
			_, _ = io.WriteString(w, `{"v":`)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	hc := &http.Client{Timeout: time.Second}
	ctx := context.Background()

	var out struct{ V int }
	require.NoError(t, GetJSON(ctx, hc, srv.URL+"/ok", &out))
	assert.Equal(t, 1, out.V)

	assert.True(t, IsTransient(GetJSON(ctx, hc, srv.URL+"/bad-json", &out)))
	assert.True(t, errors.Is(GetJSON(ctx, hc, srv.URL+"/missing", &out), ErrNotFound))
	assert.True(t, IsTransient(GetJSON(ctx, hc, srv.URL+"/down", &out)))
}
