// gopwn drives a bettercap instance through recon epochs and runs
// user plugins on its events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gopwn/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "gopwn: %v\n", err)
		os.Exit(1)
	}
}
