package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	DB         DBConfig         `mapstructure:"db"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	BTC        BTCConfig        `mapstructure:"btc"`
	ETH        ETHConfig        `mapstructure:"eth"`
	Price      PriceConfig      `mapstructure:"price"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Limits     LimitsConfig     `mapstructure:"limits"`
	HotWallet  HotWalletConfig  `mapstructure:"hot_wallet"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type WalletConfig struct {
	Mnemonic          string `mapstructure:"mnemonic"`      // 仅开发环境
	KeystorePath      string `mapstructure:"keystore_path"` // 加密助记词文件
	Password          string `mapstructure:"password"`      // 通常通过环境变量 WALLET_PASSWORD 传入
	GenerateIfMissing bool   `mapstructure:"generate_if_missing"`
}

type BTCConfig struct {
	Network               string        `mapstructure:"network"` // mainnet, testnet3, regtest
	APIURL                string        `mapstructure:"api_url"` // Esplora 兼容 API
	FeeURL                string        `mapstructure:"fee_url"` // mempool.space API 根路径
	DefaultFeeRate        int64         `mapstructure:"default_fee_rate"`
	RequiredConfirmations int64         `mapstructure:"required_confirmations"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

type ETHConfig struct {
	RpcUrl                string        `mapstructure:"rpc_url"`
	IndexerURL            string        `mapstructure:"indexer_url"` // Etherscan 兼容 API
	IndexerAPIKey         string        `mapstructure:"indexer_api_key"`
	ChainID               int64         `mapstructure:"chain_id"`
	RequiredConfirmations int64         `mapstructure:"required_confirmations"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

type PriceConfig struct {
	APIURL   string             `mapstructure:"api_url"`
	CacheTTL time.Duration      `mapstructure:"cache_ttl"`
	Fallback map[string]float64 `mapstructure:"fallback"` // 预言机不可用时的兜底价格，viper 会把 key 转成小写
	Timeout  time.Duration      `mapstructure:"timeout"`
}

type TasksConfig struct {
	ScanInterval         time.Duration `mapstructure:"scan_interval"`
	ConfirmationInterval time.Duration `mapstructure:"confirmation_interval"`
	ProcessorInterval    time.Duration `mapstructure:"processor_interval"`
	MonitorInterval      time.Duration `mapstructure:"monitor_interval"`
	RelayInterval        time.Duration `mapstructure:"relay_interval"`
	ScanRequestDelay     time.Duration `mapstructure:"scan_request_delay"`
	SingleInstanceLock   bool          `mapstructure:"single_instance_lock"`
}

type LimitsConfig struct {
	BaseDailyUSD   float64   `mapstructure:"base_daily_usd"`
	BaseMonthlyUSD float64   `mapstructure:"base_monthly_usd"`
	VIPMultipliers []float64 `mapstructure:"vip_multipliers"`
}

type ThresholdConfig struct {
	Critical float64 `mapstructure:"critical"`
	Warning  float64 `mapstructure:"warning"`
	Target   float64 `mapstructure:"target"`
}

type HotWalletConfig struct {
	AlertCooldown time.Duration              `mapstructure:"alert_cooldown"`
	Thresholds    map[string]ThresholdConfig `mapstructure:"thresholds"`
	SampleRetain  time.Duration              `mapstructure:"sample_retain"`
}

type WithdrawalConfig struct {
	MinAmountUSD      float64 `mapstructure:"min_amount_usd"`
	RequiredApprovals int     `mapstructure:"required_approvals"`
	BatchSize         int     `mapstructure:"batch_size"`
}

var Global Config

func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量覆盖, 例如 WALLET_PASSWORD -> wallet.password
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	if err := Global.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Validate 检查会让业务静默卡住的取值
func (c *Config) Validate() error {
	if c.BTC.RequiredConfirmations < 1 {
		return fmt.Errorf("btc.required_confirmations 必须 >= 1, 当前 %d", c.BTC.RequiredConfirmations)
	}
	if c.ETH.RequiredConfirmations < 1 {
		return fmt.Errorf("eth.required_confirmations 必须 >= 1, 当前 %d", c.ETH.RequiredConfirmations)
	}
	if c.Withdrawal.RequiredApprovals < 1 {
		return fmt.Errorf("withdrawal.required_approvals 必须 >= 1, 当前 %d", c.Withdrawal.RequiredApprovals)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "custody_user")
	viper.SetDefault("db.password", "custody_password")
	viper.SetDefault("db.name", "custody_db")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("wallet.keystore_path", "custody-keystore.json")
	viper.SetDefault("wallet.generate_if_missing", false)

	viper.SetDefault("btc.network", "mainnet")
	viper.SetDefault("btc.api_url", "https://blockstream.info/api")
	viper.SetDefault("btc.fee_url", "https://mempool.space/api")
	viper.SetDefault("btc.default_fee_rate", 10)
	viper.SetDefault("btc.required_confirmations", 3)
	viper.SetDefault("btc.timeout", 30*time.Second)

	viper.SetDefault("eth.rpc_url", "https://ethereum-rpc.publicnode.com")
	viper.SetDefault("eth.indexer_url", "https://api.etherscan.io/api")
	viper.SetDefault("eth.chain_id", 1)
	viper.SetDefault("eth.required_confirmations", 12)
	viper.SetDefault("eth.timeout", 30*time.Second)

	viper.SetDefault("price.api_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("price.cache_ttl", time.Minute)
	viper.SetDefault("price.fallback", map[string]float64{"BTC": 60000, "ETH": 3000})
	viper.SetDefault("price.timeout", 10*time.Second)

	viper.SetDefault("tasks.scan_interval", 60*time.Second)
	viper.SetDefault("tasks.confirmation_interval", 30*time.Second)
	viper.SetDefault("tasks.processor_interval", 30*time.Second)
	viper.SetDefault("tasks.monitor_interval", 5*time.Minute)
	viper.SetDefault("tasks.relay_interval", 500*time.Millisecond)
	viper.SetDefault("tasks.scan_request_delay", 200*time.Millisecond)
	viper.SetDefault("tasks.single_instance_lock", true)

	viper.SetDefault("limits.base_daily_usd", 10000)
	viper.SetDefault("limits.base_monthly_usd", 100000)
	viper.SetDefault("limits.vip_multipliers", []float64{1, 1.5, 2, 3, 5})

	viper.SetDefault("hot_wallet.alert_cooldown", time.Hour)
	viper.SetDefault("hot_wallet.sample_retain", 30*24*time.Hour)
	viper.SetDefault("hot_wallet.thresholds", map[string]interface{}{
		"BTC": map[string]float64{"critical": 0.1, "warning": 0.5, "target": 2},
		"ETH": map[string]float64{"critical": 1, "warning": 5, "target": 20},
	})

	viper.SetDefault("withdrawal.min_amount_usd", 10)
	viper.SetDefault("withdrawal.required_approvals", 1)
	viper.SetDefault("withdrawal.batch_size", 20)
}
