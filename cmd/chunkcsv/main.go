// Command chunkcsv reads large delimited-text inputs in parallel,
// chunking the byte range across a worker pool and committing parsed rows
// into an in-memory columnar table in input order.
package main

import (
	"fmt"
	"os"

	"github.com/eunmann/chunkcsv/internal/cli"
)

func main() {
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
