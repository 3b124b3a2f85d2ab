package worker

import (
	"context"
	"log"
	"time"
)

// StartHeartbeat logs a liveness tick every interval until ctx is cancelled.
func StartHeartbeat(ctx context.Context, workerID string, interval time.Duration) {
	tkr := time.NewTicker(interval)
	defer tkr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tkr.C:
			log.Printf("worker %s heartbeat", workerID)
		}
	}
}
