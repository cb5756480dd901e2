package main

import (
	"context"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/chain"
	"custody-core/internal/chain/bitcoin"
	"custody-core/internal/chain/ethereum"
	"custody-core/internal/handler"
	"custody-core/internal/keyring"
	"custody-core/internal/model"
	"custody-core/internal/price"
	"custody-core/internal/scheduler"
	"custody-core/internal/server"
	"custody-core/internal/service"
	"custody-core/internal/service/mq"
	"custody-core/internal/worker"
	"custody-core/pkg/cache"
	"custody-core/pkg/config"
	"custody-core/pkg/database"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
	"custody-core/pkg/utils/lock"
)

// @title Custody Core API
// @version 1.0
// @description Custodial BTC/ETH deposit and withdrawal service
// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config / Logger / Metrics
	config.Init()
	cfg := config.Global

	logger.Init(cfg.App.Env)
	defer logger.Sync()
	monitor.Init()

	// 1. 连接数据库
	db, err := database.ConnectPostgres(
		database.DSN(cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name),
		cfg.App.Env == "development",
	)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	if cfg.App.Env == "development" {
		// 其他环境用 cmd/migrate
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("AutoMigrate 失败", zap.Error(err))
		}
	}

	// 2. 连接 Redis
	rdb, err := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal("Redis 连接失败", zap.Error(err))
	}

	// 3. 主种子
	network, err := bitcoin.NetworkParams(cfg.BTC.Network)
	if err != nil {
		logger.Fatal("BTC 网络配置错误", zap.Error(err))
	}
	keys, err := keyring.Load(keyring.Options{
		KeystorePath:      cfg.Wallet.KeystorePath,
		Password:          cfg.Wallet.Password,
		Mnemonic:          cfg.Wallet.Mnemonic,
		GenerateIfMissing: cfg.Wallet.GenerateIfMissing,
		Network:           network,
	})
	if err != nil {
		logger.Fatal("加载主种子失败，请先运行 'custody-cli init'", zap.Error(err))
	}

	// 4. 链
	chains, err := buildChains(cfg, network)
	if err != nil {
		logger.Fatal("初始化链客户端失败", zap.Error(err))
	}

	// 5. 价格: L1 内存 + L2 Redis
	priceCache := cache.NewMultiLevelCache(
		cache.NewMemoryCache(cfg.Price.CacheTTL, 5*time.Minute),
		cache.NewRedisCache(rdb, "custody:"),
	)
	oracle := price.NewOracle(price.NewCoinGecko(cfg.Price.APIURL, cfg.Price.Timeout), priceCache, cfg.Price.CacheTTL, cfg.Price.Fallback)

	// 6. 业务服务
	var locker lock.DistributedLock
	if cfg.Tasks.SingleInstanceLock {
		locker = lock.NewRedisLock(rdb)
	}

	addresses := service.NewAddressService(db, keys, chains)
	creditor := service.NewLedgerCreditor(db, oracle, nil)
	tracker := service.NewConfirmationTracker(db, chains, creditor)
	scanner := service.NewDepositScanner(db, chains, addresses, tracker, cfg.Tasks.ScanRequestDelay, nil)
	deposits := service.NewDepositService(db, addresses, tracker)
	limiter := service.NewWithdrawalLimiter(db, limitConfig(cfg.Limits), nil)
	withdrawals := service.NewWithdrawService(db, chains, oracle, limiter, service.WithdrawConfig{
		MinAmountUSD:      decimal.NewFromFloat(cfg.Withdrawal.MinAmountUSD),
		RequiredApprovals: cfg.Withdrawal.RequiredApprovals,
	}, nil)
	hotwallet := service.NewHotWalletMonitor(db, chains, keys, thresholds(cfg.HotWallet), cfg.HotWallet.AlertCooldown, nil)
	processor := service.NewWithdrawalProcessor(db, chains, withdrawals, keys, hotwallet, cfg.Withdrawal.BatchSize)

	// 7. 事件总线: outbox -> MQ -> 通知任务
	producer, consumer := buildMQ(cfg, rdb)
	relay := service.NewRelayService(db, producer)
	workerClient := worker.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	workerServer := worker.NewServer(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, 10)
	notifications := service.NewNotificationConsumer(consumer, workerClient)

	// 8. 定时任务
	runner := scheduler.NewRunner(nil, locker)
	runner.Add(scanner, cfg.Tasks.ScanInterval)
	runner.Add(tracker, cfg.Tasks.ConfirmationInterval)
	runner.Add(processor, cfg.Tasks.ProcessorInterval)
	runner.Add(hotwallet, cfg.Tasks.MonitorInterval)
	runner.Add(relay, cfg.Tasks.RelayInterval)

	cronService := service.NewCronService(db, locker, oracle, cfg.HotWallet.SampleRetain)

	// 9. HTTP
	r := server.NewHTTPRouter(server.Handlers{
		Wallet:   handler.NewWalletHandler(addresses, deposits),
		Withdraw: handler.NewWithdrawHandler(withdrawals),
		Admin:    handler.NewAdminHandler(withdrawals, limiter, hotwallet),
		Health:   handler.NewHealthHandler(db, chains),
	})

	runnerDone := make(chan struct{})
	app := server.New(server.Config{HttpPort: cfg.App.HttpPort}, r,
		server.Component(func(context.Context) error { return workerServer.Start() }, workerServer.Stop),
		server.Component(notifications.Start, func() { _ = consumer.Close() }),
		server.Component(func(context.Context) error { return cronService.Start() }, cronService.Stop),
		server.Component(func(ctx context.Context) error {
			go func() {
				defer close(runnerDone)
				if err := runner.Run(ctx); err != nil {
					logger.Error("[Scheduler] 退出", zap.Error(err))
				}
			}()
			return nil
		}, func() { <-runnerDone }),
	)

	logger.Info("custody-server 启动",
		zap.String("env", cfg.App.Env),
		zap.String("seed_fingerprint", keys.Fingerprint()),
		zap.String("mq", cfg.Redis.MQType))

	// 运行 (阻塞)
	if err := app.Run(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}

	// 10. 退出后资源清理
	_ = producer.Close()
	_ = workerClient.Close()
	closeDB(db)
	_ = rdb.Close()
	logger.Info("系统已退出")
}

func buildChains(cfg config.Config, network *chaincfg.Params) (*chain.Registry, error) {
	btcClient := bitcoin.NewClient(cfg.BTC.APIURL, cfg.BTC.FeeURL, cfg.BTC.DefaultFeeRate, cfg.BTC.Timeout)
	btc := bitcoin.NewChain(btcClient, network, cfg.BTC.RequiredConfirmations)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ETH.Timeout)
	defer cancel()
	rpc, err := ethereum.Dial(ctx, cfg.ETH.RpcUrl)
	if err != nil {
		return nil, err
	}
	indexer := ethereum.NewIndexer(cfg.ETH.IndexerURL, cfg.ETH.IndexerAPIKey, cfg.ETH.Timeout)
	eth := ethereum.NewChain(ethereum.NewClient(rpc, indexer), cfg.ETH.ChainID, cfg.ETH.RequiredConfirmations)

	return chain.NewRegistry(btc, eth), nil
}

func buildMQ(cfg config.Config, rdb *redis.Client) (mq.Producer, mq.Consumer) {
	if cfg.Redis.MQType == "kafka" {
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers), mq.NewKafkaConsumer(cfg.Kafka.Brokers, "custody_notify_group")
	}
	logger.Info("使用 Redis Streams 作为消息队列...")
	return mq.NewRedisProducer(rdb, 100000), mq.NewRedisConsumer(rdb, "custody_notify", "notify-0")
}

func limitConfig(c config.LimitsConfig) service.LimitConfig {
	out := service.LimitConfig{
		BaseDaily:   decimal.NewFromFloat(c.BaseDailyUSD),
		BaseMonthly: decimal.NewFromFloat(c.BaseMonthlyUSD),
	}
	for _, m := range c.VIPMultipliers {
		out.VIPMultipliers = append(out.VIPMultipliers, decimal.NewFromFloat(m))
	}
	return out
}

// thresholds viper 会把 map key 转成小写，这里统一转大写
func thresholds(c config.HotWalletConfig) map[string]service.Thresholds {
	out := make(map[string]service.Thresholds, len(c.Thresholds))
	for cur, t := range c.Thresholds {
		out[strings.ToUpper(cur)] = service.Thresholds{
			Critical: decimal.NewFromFloat(t.Critical),
			Warning:  decimal.NewFromFloat(t.Warning),
			Target:   decimal.NewFromFloat(t.Target),
		}
	}
	return out
}

func closeDB(db *gorm.DB) {
	logger.Info("正在关闭数据库连接...")
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
