package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"custody-core/internal/keyring"
	"custody-core/pkg/bip39"
	"custody-core/pkg/keystore"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "初始化主种子 (生成助记词并加密保存)",
	Long:  `生成 24 词 BIP-39 助记词，用 scrypt + AES-256-GCM 加密后写入 keystore 文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		outputFile := keystorePath(cmd)
		if _, err := os.Stat(outputFile); err == nil {
			exitf("错误: 文件 %s 已存在。请先删除或指定其他文件名。", outputFile)
		}

		fmt.Println("正在初始化主种子...")
		fmt.Println("请设置一个强密码来保护您的助记词。")

		// 1. 输入密码
		password, err := readPassword("输入密码: ")
		if err != nil {
			exitf("%v", err)
		}
		if os.Getenv("WALLET_PASSWORD") == "" {
			confirm, err := readPassword("确认密码: ")
			if err != nil {
				exitf("%v", err)
			}
			if password != confirm {
				exitf("两次输入的密码不一致！")
			}
		}
		if len(password) < 8 {
			exitf("密码长度至少需要 8 位。")
		}

		// 2. 生成助记词
		mnemonic, err := bip39.Generate(256)
		if err != nil {
			exitf("生成助记词失败: %v", err)
		}

		// 3. 加密
		params := keystore.StandardParams
		if light, _ := cmd.Flags().GetBool("light"); light {
			params = keystore.LightParams
		}
		f, err := keystore.Encrypt(mnemonic, password, params)
		if err != nil {
			exitf("加密失败: %v", err)
		}

		// 4. 保存
		if err := f.Save(outputFile); err != nil {
			exitf("保存文件失败: %v", err)
		}

		p, err := keyring.FromMnemonic(mnemonic, nil)
		if err != nil {
			exitf("校验助记词失败: %v", err)
		}

		fmt.Printf("\n✅ 主种子已初始化！\n")
		fmt.Printf("文件位置: %s\n", outputFile)
		fmt.Printf("Keystore ID: %s\n", f.ID)
		fmt.Printf("种子指纹: %s\n", p.Fingerprint())
		fmt.Println("\n⚠️  警告: 请务必离线备份 keystore 文件和密码！丢失即无法恢复资金。")

		fmt.Print("\n是否需要现在显示助记词以便备份? (y/N): ")
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		input = strings.TrimSpace(strings.ToLower(input))

		if input == "y" || input == "yes" {
			fmt.Println("\n---------------------------------------------------")
			fmt.Println("助记词 (请抄写在纸上并安全保管):")
			fmt.Println(mnemonic)
			fmt.Println("---------------------------------------------------")
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("light", false, "使用低成本 scrypt 参数 (仅开发环境)")
}
