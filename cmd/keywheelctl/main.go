// Command keywheelctl is the operator CLI for the keywheel service.
package main

import (
	"fmt"
	"os"

	"github.com/keywheel/keywheel/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
