// Command labmatch matches company project requests to university
// researchers and explains each match. It provides a CLI (via Cobra) and an
// HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/labmatch-go/cmd/labmatch/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
