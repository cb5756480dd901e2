package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"custody-core/internal/chain"
	"custody-core/internal/chain/bitcoin"
	"custody-core/internal/chain/ethereum"
	"custody-core/pkg/config"
	"custody-core/pkg/wallet/types"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast",
	Short: "广播已签名的交易 (Online)",
	Long:  `读取已签名的交易文件 (SignedTransaction JSON)，按 chain 字段广播到 BTC 或 ETH 网络。`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")

		// 1. 读取 Signed Tx
		data, err := os.ReadFile(inputFile)
		if err != nil {
			exitf("读取文件失败: %v", err)
		}
		var signed types.SignedTransaction
		if err := json.Unmarshal(data, &signed); err != nil {
			exitf("解析文件失败: %v", err)
		}
		sym, err := chain.ParseSymbol(signed.Chain)
		if err != nil {
			exitf("%v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		// 2. 连接节点
		var client chain.Client
		switch sym {
		case chain.BTC:
			btc := config.Global.BTC
			fmt.Printf("正在连接 Esplora: %s ...\n", btc.APIURL)
			client = bitcoin.NewClient(btc.APIURL, btc.FeeURL, btc.DefaultFeeRate, btc.Timeout)
		case chain.ETH:
			rpcURL := config.Global.ETH.RpcUrl
			fmt.Printf("正在连接 RPC: %s ...\n", rpcURL)
			rpc, err := ethereum.Dial(ctx, rpcURL)
			if err != nil {
				exitf("连接失败: %v", err)
			}
			client = ethereum.NewClient(rpc, nil)
		}

		// 3. 广播
		hash, err := client.Broadcast(ctx, signed.RawTx)
		if err != nil {
			exitf("❌ 广播失败: %v", err)
		}
		if hash == "" {
			hash = signed.TxHash
		}
		fmt.Printf("✅ 广播成功! %s tx: %s\n", sym, hash)
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
	broadcastCmd.Flags().StringP("input", "i", "signed.json", "已签名的交易文件")
}
