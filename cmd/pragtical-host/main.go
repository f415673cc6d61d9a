// Command pragtical-host runs Lua scripts with the editor's native modules.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/jgmdev/pragtical/go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := cli.NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
