// Command formsync collects questionnaire answers offline-first and keeps
// a remote form in sync with them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/formsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
