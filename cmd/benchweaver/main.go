package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"benchweaver/internal/cli"
)

// main cancels the session on SIGINT/SIGTERM so a running measurement's
// process group is killed before exit.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := cli.Run(ctx, os.Args[1:], cli.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	stop()
	os.Exit(result.ExitCode)
}
