package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"PeerTasks/internal/config"
	"PeerTasks/internal/rpc"

	"github.com/joho/godotenv"
)

// Remote submitter: dials a running RPC service, enqueues one task and
// optionally blocks for its terminal state.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	addr := flag.String("addr", "127.0.0.1:"+cfg.RPCPort, "rpc service address")
	taskType := flag.String("type", "echo", "task type")
	modelName := flag.String("model", "default", "model name passed to the handler")
	payload := flag.String("payload", "{}", "payload JSON object")
	wait := flag.Bool("wait", false, "block until the task reaches a terminal status")
	waitS := flag.Float64("wait-timeout", cfg.WaitTimeout.Seconds(), "wait timeout in seconds")
	flag.Parse()

	client := rpc.NewClient(*addr, cfg.RPCToken, 10*time.Second)

	taskID, err := client.SubmitTask(*taskType, *modelName, json.RawMessage(*payload))
	if err != nil {
		log.Fatalf("submit failed: %v", err)
	}
	log.Printf("submitted task %s", taskID)

	if !*wait {
		fmt.Println(taskID)
		return
	}

	task, err := client.WaitTask(taskID, *waitS)
	if err != nil {
		log.Fatalf("wait failed: %v", err)
	}
	out, _ := json.MarshalIndent(task, "", "  ")
	os.Stdout.Write(append(out, '\n'))
}
