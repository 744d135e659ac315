// Command arcade runs an arcade chain node and submits transactions to it.
package main

import (
	"fmt"
	"os"

	"github.com/tolelom/arcadechain/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
