package worker

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"custody-core/internal/worker/tasks"
	"custody-core/pkg/logger"
)

// Server 封装 Asynq Server (Worker)
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewServer concurrency 为同时处理的任务数
func NewServer(addr string, password string, db int, concurrency int) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     addr,
			Password: password,
			DB:       db,
		},
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				tasks.QueueCritical: 6,
				tasks.QueueDefault:  3,
			},
			Logger: logger.NewAsynqLogger(),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeNotificationDeliver, tasks.HandleNotificationTask)

	return &Server{server: srv, mux: mux}
}

// Start 非阻塞启动，信号由调用方处理
func (s *Server) Start() error {
	if err := s.server.Start(s.mux); err != nil {
		logger.Error("Worker Server failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}
