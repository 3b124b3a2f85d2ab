package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	DBPath            string
	HTTPPort          string
	RPCPort           string
	RPCToken          string
	PublicAddr        string
	AnnounceFile      string
	PollInterval      time.Duration
	WaitTimeout       time.Duration
	WorkerConcurrency int
	TaskTypes         []string
}

func Load() AppConfig {
	dbPath := os.Getenv("QUEUE_DB_PATH")
	if dbPath == "" {
		dbPath = "tasks.db"
	}

	httpPort := os.Getenv("HTTP_PORT")
	if httpPort == "" {
		httpPort = "8080"
	}

	rpcPort := os.Getenv("RPC_PORT")
	if rpcPort == "" {
		rpcPort = "9876"
	}

	pollMs := 500
	if v := os.Getenv("POLL_INTERVAL_MS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			pollMs = parsed
		}
	}

	waitS := 300
	if v := os.Getenv("WAIT_TIMEOUT_S"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			waitS = parsed
		}
	}

	concurrency := 1
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			concurrency = parsed
		}
	}

	// 按逗号分割任务类型；为空表示认领所有类型
	var taskTypes []string
	if v := os.Getenv("TASK_TYPES"); v != "" {
		for _, tt := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(tt); trimmed != "" {
				taskTypes = append(taskTypes, trimmed)
			}
		}
	}

	return AppConfig{
		DBPath:            dbPath,
		HTTPPort:          httpPort,
		RPCPort:           rpcPort,
		RPCToken:          os.Getenv("RPC_TOKEN"),
		PublicAddr:        os.Getenv("PUBLIC_ADDR"),
		AnnounceFile:      os.Getenv("ANNOUNCE_FILE"),
		PollInterval:      time.Duration(pollMs) * time.Millisecond,
		WaitTimeout:       time.Duration(waitS) * time.Second,
		WorkerConcurrency: concurrency,
		TaskTypes:         taskTypes,
	}
}
