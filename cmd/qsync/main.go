package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/llxisdsh/qsync/internal/cli"
)

const (
	cmdName = "qsync"

	shortDesc = "Stress scenarios for the qsync synchronizers."
	longDesc  = `Run stress scenarios against the qsync queue-based synchronizers.

Each scenario exercises one primitive under contention and fails if an
invariant is broken: overlapping critical sections for the mutex, more
holders than permits for the semaphore, lost or duplicated items for the
blocking queue.
`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCmd(cmdName, shortDesc, longDesc)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		stop()
		os.Exit(1)
	}
}
