package price

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"custody-core/internal/chain"

	"github.com/shopspring/decimal"
)

// coinIDs 币种到 CoinGecko id
var coinIDs = map[string]string{
	"BTC": "bitcoin",
	"ETH": "ethereum",
}

// CoinGecko /simple/price 接口
type CoinGecko struct {
	baseURL string
	hc      *http.Client
}

func NewCoinGecko(baseURL string, timeout time.Duration) *CoinGecko {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: timeout},
	}
}

// Fetch 一次请求拿全部币种的 USD 价格
func (g *CoinGecko) Fetch(ctx context.Context, currencies []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(currencies))
	for _, c := range currencies {
		id, ok := coinIDs[strings.ToUpper(c)]
		if !ok {
			return nil, fmt.Errorf("%w: %s", chain.ErrUnsupportedCurrency, c)
		}
		ids = append(ids, id)
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	var resp map[string]map[string]decimal.Decimal
	if err := chain.GetJSON(ctx, g.hc, g.baseURL+"/simple/price?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	out := make(map[string]decimal.Decimal, len(currencies))
	for _, c := range currencies {
		usd, ok := resp[coinIDs[strings.ToUpper(c)]]["usd"]
		if !ok || !usd.IsPositive() {
			return nil, chain.Transient("coingecko", fmt.Errorf("缺少 %s 价格", c))
		}
		out[strings.ToUpper(c)] = usd
	}
	return out, nil
}
