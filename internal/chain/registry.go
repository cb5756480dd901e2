package chain

import (
	"fmt"
	"sort"
)

// Registry 按币种分发，是唯一允许按币种分支的地方
type Registry struct {
	chains map[Symbol]Chain
}

func NewRegistry(chains ...Chain) *Registry {
	r := &Registry{chains: make(map[Symbol]Chain, len(chains))}
	for _, c := range chains {
		r.chains[c.Symbol()] = c
	}
	return r
}

// Get 接受任意大小写的币种字符串
func (r *Registry) Get(currency string) (Chain, error) {
	sym, err := ParseSymbol(currency)
	if err != nil {
		return nil, err
	}
	c, ok := r.chains[sym]
	if !ok {
		return nil, fmt.Errorf("%w: %s 未启用", ErrUnsupportedCurrency, sym)
	}
	return c, nil
}

// All 按币种排序返回，保证任务遍历顺序稳定
func (r *Registry) All() []Chain {
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}
