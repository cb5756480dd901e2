package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"custody-core/internal/keyring"
)

var hotwalletCmd = &cobra.Command{
	Use:   "hotwallet",
	Short: "打印热钱包地址 (补充资金用)",
	Run: func(cmd *cobra.Command, args []string) {
		chains, err := offlineChains()
		if err != nil {
			exitf("%v", err)
		}
		keys, err := loadKeys(cmd)
		if err != nil {
			exitf("加载主种子失败: %v", err)
		}

		fmt.Printf("种子指纹: %s\n\n", keys.Fingerprint())
		for _, c := range chains.All() {
			addr, err := keys.HotWalletAddress(c)
			if err != nil {
				exitf("%s 派生失败: %v", c.Symbol(), err)
			}
			fmt.Printf("%-4s %-18s %s\n", c.Symbol(), keyring.HotWalletPath(c), addr)
		}
	},
}

func init() {
	rootCmd.AddCommand(hotwalletCmd)
}
