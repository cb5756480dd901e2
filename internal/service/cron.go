package service

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"custody-core/internal/model"
	"custody-core/internal/price"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
	"custody-core/pkg/utils/lock"
)

const (
	lockKeyRefreshPrices = "cron:lock:refresh_prices"
	lockKeyPruneSamples  = "cron:lock:prune_samples"
)

// CronService 低频维护任务：刷新价格缓存、清理过期的热钱包采样
type CronService struct {
	cron         *cron.Cron
	locker       lock.DistributedLock
	oracle       *price.Oracle
	db           *gorm.DB
	clock        clock.Clock
	sampleRetain time.Duration
}

// NewCronService locker 为 nil 时不加锁，适合单实例
func NewCronService(db *gorm.DB, locker lock.DistributedLock, oracle *price.Oracle, sampleRetain time.Duration) *CronService {
	return &CronService{
		cron:         cron.New(),
		locker:       locker,
		oracle:       oracle,
		db:           db,
		clock:        clock.New(),
		sampleRetain: sampleRetain,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc("@every 1m", s.RefreshPrices); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.PruneSamples); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Cron Service started")
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// RefreshPrices 每分钟刷新一次价格缓存，多实例只有拿到锁的执行
func (s *CronService) RefreshPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer monitor.ObserveTask("refresh_prices", s.clock.Now())

	s.runLocked(ctx, lockKeyRefreshPrices, 30*time.Second, func(ctx context.Context) error {
		return s.oracle.Refresh(ctx)
	})
}

// PruneSamples 删除保留期之前的余额采样
func (s *CronService) PruneSamples() {
	if s.sampleRetain <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.runLocked(ctx, lockKeyPruneSamples, time.Minute, func(ctx context.Context) error {
		n, err := s.pruneSamplesBefore(ctx, s.clock.Now().Add(-s.sampleRetain))
		if err == nil && n > 0 {
			logger.Info("[Cron] 清理热钱包采样", zap.Int64("rows", n))
		}
		return err
	})
}

func (s *CronService) pruneSamplesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("sampled_at < ?", cutoff).
		Delete(&model.HotWalletBalanceSample{})
	return res.RowsAffected, res.Error
}

func (s *CronService) runLocked(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) {
	if s.locker == nil {
		if err := fn(ctx); err != nil {
			logger.Warn("[Cron] 任务失败", zap.String("task", key), zap.Error(err))
		}
		return
	}

	ran, err := lock.WithLock(ctx, s.locker, key, ttl, fn)
	if err != nil {
		logger.Warn("[Cron] 任务失败", zap.String("task", key), zap.Error(err))
		return
	}
	if !ran {
		// 其他节点在运行
		logger.Debug("[Cron] 获取锁失败，跳过", zap.String("task", key))
	}
}
