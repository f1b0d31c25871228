// Command stdesc replays LiDAR scan sequences through the triangle
// descriptor loop-closure detector and evaluates the detected closures.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("stdesc: %v", err)
	}
}
