// Command docchat answers questions about a folder of company documents.
// It ingests .txt, .pdf and .docx files into a persistent vector collection
// and streams answers grounded on the most relevant passages from a hosted
// chat model.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/54b3r/docchat/cmd/docchat/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the CLI and returns the process exit status. Interrupting the
// program is a normal way to leave it and exits 0.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	root := commands.NewRootCmd()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	fmt.Fprintln(stderr, err)
	return 1
}
