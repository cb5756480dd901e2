package cmd

import (
	"fmt"
	"os"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"custody-core/internal/chain"
	"custody-core/internal/chain/bitcoin"
	"custody-core/internal/chain/ethereum"
	"custody-core/internal/keyring"
	"custody-core/pkg/config"
)

// rootCmd 代表基础命令，没有子命令时直接调用
var rootCmd = &cobra.Command{
	Use:   "custody-cli",
	Short: "托管钱包运维工具",
	Long: `custody-core 的离线运维工具。
初始化加密 keystore、派生和核对充值地址、查看热钱包地址、广播已签名交易。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.Init()
	},
}

// Execute 将所有子命令添加到根命令并设置标志
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("keystore", "", "keystore 文件路径 (默认读取配置 wallet.keystore_path)")
}

func keystorePath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("keystore"); p != "" {
		return p
	}
	return config.Global.Wallet.KeystorePath
}

// readPassword 优先使用 WALLET_PASSWORD，否则从终端读取
func readPassword(prompt string) (string, error) {
	if pw := os.Getenv("WALLET_PASSWORD"); pw != "" {
		return pw, nil
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("读取密码失败: %w", err)
	}
	return string(b), nil
}

func network() (*chaincfg.Params, error) {
	return bitcoin.NetworkParams(config.Global.BTC.Network)
}

// offlineChains 只用于派生和校验地址，不连节点
func offlineChains() (*chain.Registry, error) {
	params, err := network()
	if err != nil {
		return nil, err
	}
	return chain.NewRegistry(
		bitcoin.NewChain(nil, params, config.Global.BTC.RequiredConfirmations),
		ethereum.NewChain(nil, config.Global.ETH.ChainID, config.Global.ETH.RequiredConfirmations),
	), nil
}

func loadKeys(cmd *cobra.Command) (*keyring.Provider, error) {
	params, err := network()
	if err != nil {
		return nil, err
	}
	opts := keyring.Options{
		KeystorePath: keystorePath(cmd),
		Mnemonic:     config.Global.Wallet.Mnemonic,
		Network:      params,
	}
	if _, err := os.Stat(opts.KeystorePath); err == nil {
		if opts.Password, err = readPassword("输入 keystore 密码: "); err != nil {
			return nil, err
		}
	}
	return keyring.Load(opts)
}

func exitf(format string, args ...interface{}) {
	fmt.Printf(format+"\n", args...)
	os.Exit(1)
}
