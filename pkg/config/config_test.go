package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	var c Config
	c.BTC.RequiredConfirmations = 3
	c.ETH.RequiredConfirmations = 12
	c.Withdrawal.RequiredApprovals = 1
	return c
}

func TestValidate(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"btc zero", func(c *Config) { c.BTC.RequiredConfirmations = 0 }, "btc.required_confirmations"},
		{"eth negative", func(c *Config) { c.ETH.RequiredConfirmations = -1 }, "eth.required_confirmations"},
		{"approvals zero", func(c *Config) { c.Withdrawal.RequiredApprovals = 0 }, "withdrawal.required_approvals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}
