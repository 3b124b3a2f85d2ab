package main

import (
	"context"
	"log"

	"PeerTasks/internal/config"
	"PeerTasks/internal/db"
	"PeerTasks/internal/http/handler"
	"PeerTasks/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env file")
	}

	// 加载配置
	cfg := config.Load()

	ctx := context.Background()

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open queue db failed: %v", err)
	}
	defer conn.Close()

	// 确保最小表结构存在
	if err := db.EnsureSchema(ctx, conn); err != nil {
		log.Fatalf("ensure schema failed: %v", err)
	}

	// 组装服务与路由
	queue := service.NewTaskQueue(conn)

	engine := gin.Default()
	th := handler.NewTaskHandler(queue)
	hh := handler.NewHealthHandler(conn)
	qh := handler.NewQueueHandler(conn)

	// 健康与就绪
	engine.GET("/healthz", hh.Healthz)
	engine.GET("/readyz", hh.Readyz)

	// 任务 API
	api := engine.Group("/api/v1")
	{
		api.POST("/tasks", th.CreateTask)
		api.GET("/tasks", th.ListTasks)
		api.GET("/tasks/:id", th.GetTaskByID)
		api.GET("/queue/stats", qh.Stats)
	}

	log.Printf("starting api server on :%s", cfg.HTTPPort)
	if err := engine.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
