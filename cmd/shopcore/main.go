// Command shopcore serves the session and catalog HTTP API and carries the
// operational tooling around it: schema migrations, account management and
// load tests.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
