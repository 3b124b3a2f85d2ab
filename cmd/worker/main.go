package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"PeerTasks/internal/config"
	"PeerTasks/internal/db"
	"PeerTasks/internal/domain"
	"PeerTasks/internal/rpc"
	"PeerTasks/internal/service"
	"PeerTasks/internal/worker"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env file")
	}
	cfg := config.Load()

	ctx := context.Background()

	//初始化依赖
	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open queue db failed: %v", err)
	}
	defer conn.Close()

	if err := db.EnsureSchema(ctx, conn); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}

	queue := service.NewTaskQueue(conn)
	registry := worker.NewRegistry()

	// echo 处理器：原样返回负载，便于联调和端到端验证
	registry.Register("echo", func(ctx context.Context, task *domain.Task) (json.RawMessage, error) {
		return task.Payload, nil
	})

	taskTypes := cfg.TaskTypes
	if len(taskTypes) == 0 {
		taskTypes = registry.Types()
	}

	workerID := uuid.NewString()

	// RPC 服务挂在后台；起不来就退化为仅本地模式，不影响 worker
	svc := rpc.NewService(queue, rpc.Options{
		ListenAddr:         ":" + cfg.RPCPort,
		Token:              cfg.RPCToken,
		PublicAddr:         cfg.PublicAddr,
		AnnounceFile:       cfg.AnnounceFile,
		DefaultWaitTimeout: cfg.WaitTimeout,
	})
	if err := svc.Start(ctx); err != nil {
		log.Printf("rpc service unavailable, running local-only: %v", err)
	}

	go worker.StartHeartbeat(ctx, workerID, 30*time.Second)

	runner := worker.NewRunner(queue, registry, workerID, taskTypes, cfg.PollInterval)
	pool := worker.NewPool(ctx, runner, cfg.WorkerConcurrency)
	pool.Start()

	log.Printf("worker %s running, concurrency=%d, db=%s", workerID, cfg.WorkerConcurrency, cfg.DBPath)
	select {}
}
