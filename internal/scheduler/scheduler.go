// Package scheduler 按固定间隔运行后台任务，时钟可注入
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"custody-core/internal/chain"
	"custody-core/pkg/logger"
	"custody-core/pkg/monitor"
	"custody-core/pkg/utils/lock"
)

// Task 一个周期性任务，每次调用处理一轮
type Task interface {
	Name() string
	RunOnce(ctx context.Context) error
}

type entry struct {
	task     Task
	interval time.Duration
}

// Runner 每个任务一个 goroutine，互不阻塞
type Runner struct {
	clock   clock.Clock
	locker  lock.DistributedLock
	entries []entry
}

// NewRunner locker 非 nil 时，每轮先抢锁 "task:<name>"，保证多实例只有一个在跑
func NewRunner(clk clock.Clock, locker lock.DistributedLock) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{clock: clk, locker: locker}
}

func (r *Runner) Add(task Task, interval time.Duration) {
	r.entries = append(r.entries, entry{task: task, interval: interval})
}

// Run 阻塞直到 ctx 取消
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range r.entries {
		if e.interval <= 0 {
			return fmt.Errorf("scheduler: 任务 %s 的间隔无效: %s", e.task.Name(), e.interval)
		}
		g.Go(func() error {
			r.loop(ctx, e)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, e entry) {
	ticker := r.clock.Ticker(e.interval)
	defer ticker.Stop()

	logger.Info("[Scheduler] 任务启动", zap.String("task", e.task.Name()), zap.Duration("interval", e.interval))

	// 启动后先跑一轮
	r.Tick(ctx, e.task, e.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Scheduler] 任务停止", zap.String("task", e.task.Name()))
			return
		case <-ticker.C:
			r.Tick(ctx, e.task, e.interval)
		}
	}
}

// Tick 执行一轮，错误只记日志
func (r *Runner) Tick(ctx context.Context, task Task, interval time.Duration) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("[Scheduler] 任务 panic", zap.String("task", task.Name()), zap.Any("panic", p))
		}
	}()
	defer monitor.ObserveTask(task.Name(), time.Now())

	var err error
	if r.locker != nil {
		var ran bool
		ran, err = lock.WithLock(ctx, r.locker, "task:"+task.Name(), 2*interval, task.RunOnce)
		if err == nil && !ran {
			logger.Debug("[Scheduler] 其他实例正在运行，跳过", zap.String("task", task.Name()))
			return
		}
	} else {
		err = task.RunOnce(ctx)
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
	case chain.IsTransient(err):
		logger.Warn("[Scheduler] 外部依赖暂时不可用", zap.String("task", task.Name()), zap.Error(err))
	default:
		logger.Error("[Scheduler] 任务失败", zap.String("task", task.Name()), zap.Error(err))
	}
}
