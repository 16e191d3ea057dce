// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"soundhub/cmd"
	applog "soundhub/internal/log"
	"soundhub/pkg/build"
)

// main loads the build information, then hands control to the command
// tree. Every command stops on SIGINT or SIGTERM through the context and
// releases its output device and recording on the way out.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build info not injected, running as development build: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		stop()
		applog.Fatalf("%v", err)
	}
}
