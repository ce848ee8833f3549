package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"studio/internal/cli"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.BuildCLI().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "studioctl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
