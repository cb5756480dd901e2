package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"custody-core/pkg/logger"
)

type Config struct {
	HttpPort string
}

// App HTTP 服务 + 一组随进程启停的后台组件
type App struct {
	httpServer *http.Server
	background []Background
}

// Background 后台组件，Start 非阻塞
type Background interface {
	Start(ctx context.Context) error
	Stop()
}

func New(cfg Config, httpHandler *gin.Engine, background ...Background) *App {
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		background: background,
	}
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Start background
	for i, b := range a.background {
		if err := b.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				a.background[j].Stop()
			}
			return err
		}
	}

	// 2. Start HTTP
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 3. Signal Handling (Blocking)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case runErr = <-errCh:
		logger.Error("HTTP Server failure", zap.Error(runErr))
	}

	// 4. Graceful Shutdown，先停 HTTP 再停后台
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	cancel()
	for i := len(a.background) - 1; i >= 0; i-- {
		a.background[i].Stop()
	}
	logger.Info("Server exited properly")
	return runErr
}

type component struct {
	start func(ctx context.Context) error
	stop  func()
}

func (c component) Start(ctx context.Context) error { return c.start(ctx) }
func (c component) Stop()                           { c.stop() }

// Component 用一对函数组装 Background
func Component(start func(ctx context.Context) error, stop func()) Background {
	if stop == nil {
		stop = func() {}
	}
	return component{start: start, stop: stop}
}
