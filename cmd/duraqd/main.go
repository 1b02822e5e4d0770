// Command duraqd is a single-process CLI around the commit log: it puts
// and fetches records and drives recovery and page-cache warm-up
// directly, without a network front-end. Grounded on the dittofs CLI's
// cobra root-command/Execute() shape.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
