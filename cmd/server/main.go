package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/fushaoqin-devops/go-chatroom/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	config := server.ParseConfig()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting chat server...")

	srv := server.NewServer(config)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Press Ctrl+C to stop")

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"chat-server": func(ctx context.Context) error {
				log.Println("Shutting down gracefully...")
				return srv.Stop()
			},
		},
	)

	exitCode := <-wait
	log.Println("Server stopped")
	os.Exit(exitCode)
}
