package cmd

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/spf13/cobra"
)

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "派生或核对用户充值地址",
	Long: `用户 ID 即派生索引: m/44'/coin'/0'/0/<user_id>。
带 --verify 时重新派生并与给定地址比较，用于核对数据库里的地址。`,
	Run: func(cmd *cobra.Command, args []string) {
		userID, _ := cmd.Flags().GetUint64("user")
		currency, _ := cmd.Flags().GetString("currency")
		verify, _ := cmd.Flags().GetString("verify")

		if userID >= hdkeychain.HardenedKeyStart {
			exitf("user_id 超出可派生范围")
		}

		chains, err := offlineChains()
		if err != nil {
			exitf("%v", err)
		}
		c, err := chains.Get(currency)
		if err != nil {
			exitf("%v", err)
		}
		keys, err := loadKeys(cmd)
		if err != nil {
			exitf("加载主种子失败: %v", err)
		}

		if verify != "" {
			ok, err := keys.VerifyAddress(c, uint32(userID), verify)
			if err != nil {
				exitf("核对失败: %v", err)
			}
			if !ok {
				exitf("❌ %s 不是用户 %d 的 %s 充值地址", verify, userID, c.Symbol())
			}
			fmt.Printf("✅ 地址匹配: user=%d %s %s\n", userID, c.Symbol(), verify)
			return
		}

		d, err := keys.DeriveAddress(c, uint32(userID))
		if err != nil {
			exitf("派生失败: %v", err)
		}
		fmt.Printf("币种:   %s\n", c.Symbol())
		fmt.Printf("路径:   %s\n", d.Path)
		fmt.Printf("地址:   %s\n", d.Address)
		fmt.Printf("公钥:   %s\n", d.PublicKey)
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
	addressCmd.Flags().Uint64P("user", "u", 0, "用户 ID (派生索引)")
	addressCmd.Flags().StringP("currency", "c", "BTC", "BTC / ETH")
	addressCmd.Flags().String("verify", "", "需要核对的地址")
}
